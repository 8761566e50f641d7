package matching

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/filtering"
	"github.com/spigell/joblens/internal/jobs"
	"github.com/spigell/joblens/internal/logger"
	"github.com/spigell/joblens/internal/session"
)

// Matcher is the remote ranking service.
type Matcher interface {
	Match(ctx context.Context, req *Request) (*Response, error)
	MatchWithRerank(ctx context.Context, req *Request) (*Response, error)
}

// Query holds what the user asked for on the listing.
type Query struct {
	Limit     int
	Location  string
	MinSalary *int
	Rerank    bool
	// ExcludeFile lists jobs hidden by the user. Empty disables hiding.
	ExcludeFile string
	// ExcludeCompanies drops jobs from these companies.
	ExcludeCompanies []string
	// SkipFilters names filter steps to turn off for this query.
	SkipFilters []string
}

type Recommender struct {
	matcher Matcher
	logger  *zap.Logger
	now     func() time.Time
}

func NewRecommender(m Matcher, log *zap.Logger) *Recommender {
	return &Recommender{
		matcher: m,
		logger:  logger.WithFields(log, zap.String("component", "matching")),
		now:     time.Now,
	}
}

// Recommend asks the matcher for jobs similar to embedding and applies the
// client-side filters to the ranked result.
func (r *Recommender) Recommend(ctx context.Context, sess *session.Session, embedding []float64, q Query) (*jobs.Jobs, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit == 0 {
		limit = DefaultLimit
	}

	req, err := BuildRequest(embedding, limit, WithLocation(q.Location))
	if err != nil {
		return nil, err
	}

	call := r.matcher.Match
	if q.Rerank {
		call = r.matcher.MatchWithRerank
	}

	resp, err := call(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMatchUnavailable, err)
	}

	found := Normalize(resp.Jobs, r.now())
	r.logger.Debug("matches received",
		logger.UserField(sess.UserID),
		zap.Int("jobs", found.Len()),
		zap.Int("total", resp.TotalMatches),
		zap.Bool("rerank", q.Rerank),
	)

	steps := filtering.Steps(filtering.Criteria{
		Location:         q.Location,
		MinSalary:        q.MinSalary,
		ExcludeCompanies: q.ExcludeCompanies,
	}, q.ExcludeFile)
	for _, name := range q.SkipFilters {
		filtering.DisableByName(steps, name, "skipped on request")
	}

	f := filtering.New(steps, r.logger)
	for _, status := range f.Describe() {
		r.logger.Debug("filter configured",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	filtered, err := f.Run(ctx, found)
	if err != nil {
		return nil, fmt.Errorf("filtering matches: %w", err)
	}

	r.logger.Debug("jobs listed", zap.Strings("ids", filtered.IDs()))

	return filtered, nil
}
