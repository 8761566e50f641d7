package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const ScraperName = "scraper"

var DefaultScraper = Endpoint{URL: "http://localhost:8000", Timeout: 30 * time.Second}

const (
	minScrapeJobs = 1
	maxScrapeJobs = 500
)

type ScrapeRequest struct {
	SourceName string     `json:"source_name"`
	MaxJobs    int        `json:"max_jobs"`
	Since      *time.Time `json:"since,omitempty"`
}

// ScrapedJob is a job posting as the scraper stores it.
type ScrapedJob struct {
	SourceName     string   `json:"source_name"`
	ExternalID     string   `json:"external_id,omitempty"`
	JobURL         string   `json:"job_url"`
	JobURLHash     string   `json:"job_url_hash,omitempty"`
	Title          string   `json:"title"`
	Company        string   `json:"company,omitempty"`
	Location       string   `json:"location,omitempty"`
	Description    string   `json:"description"`
	Requirements   string   `json:"requirements,omitempty"`
	EmploymentType string   `json:"employment_type,omitempty"`
	RemoteOption   string   `json:"remote_option,omitempty"`
	SalaryMin      *float64 `json:"salary_min,omitempty"`
	SalaryMax      *float64 `json:"salary_max,omitempty"`
	Skills         []string `json:"skills,omitempty"`
	PostedAt       string   `json:"posted_at,omitempty"`
}

type ScrapeResponse struct {
	SourceName string       `json:"source_name"`
	JobCount   int          `json:"job_count"`
	Jobs       []ScrapedJob `json:"jobs"`
	Error      string       `json:"error,omitempty"`
}

type Scraper struct {
	*Client
}

func NewScraper(endpoint Endpoint, token string, log *zap.Logger) *Scraper {
	return &Scraper{Client: New(ScraperName, endpoint, token, log)}
}

// Scrape asks the scraper to collect up to req.MaxJobs postings from a source.
// A response carrying an error message is returned together with that error.
func (s *Scraper) Scrape(ctx context.Context, req *ScrapeRequest) (*ScrapeResponse, error) {
	if req.SourceName == "" {
		return nil, fmt.Errorf("%s: source name is required", s.name)
	}
	if req.MaxJobs < minScrapeJobs || req.MaxJobs > maxScrapeJobs {
		return nil, fmt.Errorf("%s: max jobs must be between %d and %d, got %d", s.name, minScrapeJobs, maxScrapeJobs, req.MaxJobs)
	}

	var resp ScrapeResponse
	if err := s.postJSON(ctx, "/scrape", req, &resp); err != nil {
		return nil, err
	}

	s.logger.Info("scrape finished", zap.String("source", resp.SourceName), zap.Int("jobs", resp.JobCount))

	if resp.Error != "" {
		return &resp, fmt.Errorf("%s: %s", s.name, resp.Error)
	}

	return &resp, nil
}

// ToEmbed converts scraped postings for submission to the embedder. The job
// URL hash identifies a posting when the scraper did not assign an id.
func (r *ScrapeResponse) ToEmbed() []JobToEmbed {
	out := make([]JobToEmbed, 0, len(r.Jobs))
	for _, j := range r.Jobs {
		id := j.ExternalID
		if j.JobURLHash != "" {
			id = j.JobURLHash
		}
		if id == "" {
			id = j.JobURL
		}
		out = append(out, JobToEmbed{
			ID:          id,
			Title:       j.Title,
			Description: j.Description,
			Company:     j.Company,
			Location:    j.Location,
			SourceName:  j.SourceName,
		})
	}
	return out
}
