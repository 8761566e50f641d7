package matching

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/busy"
	"github.com/spigell/joblens/internal/jobs"
	"github.com/spigell/joblens/internal/session"
)

// Listing keeps the job list shown to the user. A matcher outage renders as
// an empty list instead of an error.
type Listing struct {
	recommender *Recommender
	logger      *zap.Logger
	busy        busy.Flag

	mu      sync.Mutex
	jobs    *jobs.Jobs
	lastErr error
}

func NewListing(r *Recommender, log *zap.Logger) *Listing {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listing{recommender: r, logger: log, jobs: jobs.Empty()}
}

// Refresh fetches a new job list. Only one refresh may run at a time.
// ErrNotAuthenticated and ErrContractViolation are returned to the caller and
// leave the current list untouched.
func (l *Listing) Refresh(ctx context.Context, sess *session.Session, embedding []float64, q Query) (*jobs.Jobs, error) {
	release, err := l.busy.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	found, err := l.recommender.Recommend(ctx, sess, embedding, q)
	switch {
	case errors.Is(err, ErrMatchUnavailable):
		l.logger.Warn("matching failed, showing no jobs", zap.Error(err))
		found = jobs.Empty()
	case err != nil:
		return nil, err
	}

	l.mu.Lock()
	l.jobs = found
	l.lastErr = err
	l.mu.Unlock()

	return found, nil
}

// Jobs returns the list from the last successful refresh.
func (l *Listing) Jobs() *jobs.Jobs {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.jobs
}

// LastError is the matcher failure behind the current empty list, if any.
func (l *Listing) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}
