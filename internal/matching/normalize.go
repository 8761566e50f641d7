package matching

import (
	"time"

	"github.com/spigell/joblens/internal/jobs"
)

const (
	// PlaceholderJobURL stands in for a missing job link.
	PlaceholderJobURL = "#"

	postedAtLayout = time.DateOnly
)

// Normalize converts matcher results to display jobs, keeping rank order.
// The score is passed through unchanged. Salaries are left unknown and the
// posting date is the date of normalization, since the matcher carries neither.
func Normalize(matches []JobMatch, now time.Time) *jobs.Jobs {
	out := &jobs.Jobs{Items: make([]*jobs.Job, 0, len(matches))}
	postedAt := now.Format(postedAtLayout)

	for _, m := range matches {
		url := m.JobURL
		if url == "" {
			url = PlaceholderJobURL
		}

		out.Items = append(out.Items, &jobs.Job{
			ID:           m.ID,
			Title:        m.Title,
			Company:      m.Company,
			Location:     m.Location,
			Description:  m.Description,
			Requirements: m.Requirements,
			PostedAt:     postedAt,
			MatchScore:   m.Score,
			JobURL:       url,
			Metadata:     m.Metadata,
		})
	}

	return out
}
