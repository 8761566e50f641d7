package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	MatcherName = "matcher"

	matchPath       = "/match"
	matchRerankPath = "/match-with-rerank"
)

// DefaultMatcher is where the matcher listens unless configured otherwise.
var DefaultMatcher = Endpoint{URL: "http://localhost:8001", Timeout: 30 * time.Second}

// MatchRequest is the body of POST /match and POST /match-with-rerank.
type MatchRequest struct {
	CVEmbedding []float64     `json:"cv_embedding"`
	Limit       int           `json:"limit"`
	Filters     *MatchFilters `json:"filters,omitempty"`
}

type MatchFilters struct {
	Location string `json:"location,omitempty"`
}

// JobMatch is a ranked job as the matcher returns it. Score is a percentage
// in [0, 100].
type JobMatch struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Company      string         `json:"company"`
	Location     string         `json:"location"`
	JobURL       string         `json:"job_url"`
	Description  string         `json:"description"`
	Requirements string         `json:"requirements"`
	Score        float64        `json:"score"`
	Metadata     map[string]any `json:"metadata"`
}

type MatchResponse struct {
	Jobs         []JobMatch `json:"jobs"`
	TotalMatches int        `json:"total_matches"`
}

type Matcher struct {
	*Client
}

func NewMatcher(endpoint Endpoint, token string, log *zap.Logger) *Matcher {
	return &Matcher{Client: New(MatcherName, endpoint, token, log)}
}

func (m *Matcher) Match(ctx context.Context, req *MatchRequest) (*MatchResponse, error) {
	return m.match(ctx, matchPath, req)
}

// MatchWithRerank uses the alternate ranking strategy. The contract is the
// same as Match.
func (m *Matcher) MatchWithRerank(ctx context.Context, req *MatchRequest) (*MatchResponse, error) {
	return m.match(ctx, matchRerankPath, req)
}

func (m *Matcher) match(ctx context.Context, path string, req *MatchRequest) (*MatchResponse, error) {
	var resp MatchResponse
	if err := m.postJSON(ctx, path, req, &resp); err != nil {
		return nil, err
	}

	m.logger.Debug("got matches", zap.Int("returned", len(resp.Jobs)), zap.Int("total", resp.TotalMatches))

	return &resp, nil
}
