// Package matching turns a CV embedding into a ranked, filtered job list.
package matching

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/joblens/internal/services"
)

const (
	// Dimensions is the embedding length the matcher accepts.
	Dimensions = 384
	// DefaultLimit is the number of matches requested when none is given.
	DefaultLimit = 20

	placeholderValue = 0.1
)

var (
	// ErrContractViolation reports a request the matcher contract forbids.
	ErrContractViolation = errors.New("match contract violation")
	// ErrMatchUnavailable wraps transport and backend failures of the matcher.
	ErrMatchUnavailable = errors.New("matching service unavailable")
)

type (
	Request  = services.MatchRequest
	Filters  = services.MatchFilters
	JobMatch = services.JobMatch
	Response = services.MatchResponse
)

type Option func(*Request)

// WithLocation adds a location filter. A blank location leaves the request
// without filters.
func WithLocation(location string) Option {
	return func(r *Request) {
		location = strings.TrimSpace(location)
		if location == "" {
			return
		}
		if r.Filters == nil {
			r.Filters = &Filters{}
		}
		r.Filters.Location = location
	}
}

// BuildRequest validates the embedding and limit and assembles a match request.
func BuildRequest(embedding []float64, limit int, opts ...Option) (*Request, error) {
	if len(embedding) != Dimensions {
		return nil, fmt.Errorf("%w: embedding has %d dimensions, want %d", ErrContractViolation, len(embedding), Dimensions)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrContractViolation, limit)
	}

	req := &Request{
		CVEmbedding: embedding,
		Limit:       limit,
	}
	for _, opt := range opts {
		opt(req)
	}

	return req, nil
}

// PlaceholderEmbedding returns a constant vector for browsing matches
// before a CV has been embedded.
func PlaceholderEmbedding() []float64 {
	v := make([]float64, Dimensions)
	for i := range v {
		v[i] = placeholderValue
	}
	return v
}
