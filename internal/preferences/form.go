package preferences

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/busy"
	"github.com/spigell/joblens/internal/logger"
	"github.com/spigell/joblens/internal/session"
)

// Form is the in-memory state of the preferences screen.
type Form struct {
	store  *Store
	logger *zap.Logger
	busy   busy.Flag

	mu      sync.RWMutex
	current Preferences
	saved   bool
	loadErr error
}

// NewForm returns a form showing the defaults.
func NewForm(store *Store, log *zap.Logger) *Form {
	return &Form{
		store:   store,
		logger:  logger.WithFields(log, zap.String("component", "preference-form")),
		current: Defaults(),
	}
}

// Load fills the form from the store. An unreachable store is not fatal:
// the form keeps the defaults, the failure is logged and kept in LoadError.
// A missing identity is returned to the caller.
func (f *Form) Load(ctx context.Context, sess *session.Session) (Preferences, error) {
	release, err := f.busy.Acquire()
	if err != nil {
		return f.Current(), err
	}
	defer release()

	record, found, err := f.store.Get(ctx, sess)
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		f.logger.Warn("loading preferences failed, showing defaults", zap.Error(err))
		f.set(Defaults(), false)
		f.setLoadErr(err)
		return f.Current(), nil
	case err != nil:
		return f.Current(), err
	case !found:
		f.logger.Debug("no saved preferences yet", logger.UserField(sess.UserID))
		f.set(Defaults(), false)
	default:
		f.set(FromStore(*record), true)
	}
	f.setLoadErr(nil)

	return f.Current(), nil
}

// Save validates p and writes it. On failure the form keeps its previous
// state; on success p becomes the current state.
func (f *Form) Save(ctx context.Context, sess *session.Session, p Preferences) error {
	release, err := f.busy.Acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := p.Validate(); err != nil {
		return err
	}

	record := ToStore(p)
	if err := f.store.Upsert(ctx, sess, &record); err != nil {
		f.logger.Warn("saving preferences failed", zap.Error(err))
		return err
	}

	f.set(FromStore(record), true)
	return nil
}

// Current returns the preferences shown on the form.
func (f *Form) Current() Preferences {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Saved reports whether the current state came from the store.
func (f *Form) Saved() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.saved
}

// LoadError is the store failure behind defaults shown by the last Load.
// Partial edits on top of such defaults would overwrite the stored fields
// the user never saw.
func (f *Form) LoadError() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loadErr
}

func (f *Form) set(p Preferences, saved bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = p
	f.saved = saved
}

func (f *Form) setLoadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr = err
}
