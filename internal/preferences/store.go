package preferences

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/logger"
	"github.com/spigell/joblens/internal/session"
)

var (
	// ErrStoreUnavailable wraps every backend or transport failure other
	// than a missing row.
	ErrStoreUnavailable = errors.New("preference store unavailable")
	// ErrNoRecord is returned by backends when the identity has no row yet.
	ErrNoRecord = errors.New("no preference record")
)

// Backend is a row store keyed by user id.
type Backend interface {
	// Fetch returns ErrNoRecord when the identity has no row.
	Fetch(ctx context.Context, sess *session.Session) (*Record, error)
	Insert(ctx context.Context, sess *session.Session, r *Record) error
	Update(ctx context.Context, sess *session.Session, r *Record) error
}

// AtomicUpserter is implemented by backends with a single insert-or-update
// primitive. The store prefers it over check-then-act.
type AtomicUpserter interface {
	Upsert(ctx context.Context, sess *session.Session, r *Record) error
}

// Cache is an optional read-through cache in front of the backend.
type Cache interface {
	Get(ctx context.Context, userID string) (*Record, bool, error)
	Set(ctx context.Context, userID string, r *Record) error
	Delete(ctx context.Context, userID string) error
}

// Store reads and writes the single preference record of an identity.
type Store struct {
	backend Backend
	cache   Cache
	logger  *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore returns a Store. cache may be nil.
func NewStore(backend Backend, cache Cache, log *zap.Logger) *Store {
	return &Store{
		backend: backend,
		cache:   cache,
		logger:  logger.WithFields(log, zap.String("component", "preference-store")),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Get returns the record of the bound identity. found is false when the
// identity has never saved preferences.
func (s *Store) Get(ctx context.Context, sess *session.Session) (*Record, bool, error) {
	if err := sess.Require(); err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, sess.UserID)
		switch {
		case err != nil:
			s.logger.Warn("reading preference cache", logger.UserField(sess.UserID), zap.Error(err))
		case ok:
			s.logger.Debug("preference cache hit", logger.UserField(sess.UserID))
			return cached, true, nil
		}
	}

	record, err := s.backend.Fetch(ctx, sess)
	if errors.Is(err, ErrNoRecord) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable(err)
	}

	s.fillCache(ctx, sess.UserID, record)

	return record, true, nil
}

// Upsert stores r as the record of the bound identity. Backends without an
// atomic upsert go through check-then-act, serialized per identity within
// this process; writers in other processes can still race.
func (s *Store) Upsert(ctx context.Context, sess *session.Session, r *Record) error {
	if err := sess.Require(); err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: record is required", ErrInvalid)
	}

	record := *r
	record.UserID = sess.UserID

	if atomic, ok := s.backend.(AtomicUpserter); ok {
		if err := atomic.Upsert(ctx, sess, &record); err != nil {
			return unavailable(err)
		}
	} else if err := s.checkThenAct(ctx, sess, &record); err != nil {
		return err
	}

	s.fillCache(ctx, sess.UserID, &record)
	s.logger.Info("preferences saved", logger.UserField(sess.UserID))

	return nil
}

func (s *Store) checkThenAct(ctx context.Context, sess *session.Session, r *Record) error {
	unlock := s.lock(sess.UserID)
	defer unlock()

	_, err := s.backend.Fetch(ctx, sess)
	switch {
	case errors.Is(err, ErrNoRecord):
		s.logger.Debug("inserting preference record", logger.UserField(sess.UserID))
		err = s.backend.Insert(ctx, sess, r)
	case err == nil:
		s.logger.Debug("updating preference record", logger.UserField(sess.UserID))
		err = s.backend.Update(ctx, sess, r)
	}

	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) fillCache(ctx context.Context, userID string, r *Record) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, userID, r); err != nil {
		s.logger.Warn("refreshing preference cache", logger.UserField(userID), zap.Error(err))
		// A stale entry is worse than none.
		if err := s.cache.Delete(ctx, userID); err != nil {
			s.logger.Warn("dropping preference cache entry", logger.UserField(userID), zap.Error(err))
		}
	}
}

func (s *Store) lock(userID string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[userID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func unavailable(err error) error {
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, session.ErrNotAuthenticated) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
