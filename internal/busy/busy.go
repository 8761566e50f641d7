// Package busy provides the scoped in-flight flag that guards a UI action
// (save, refresh) against a second submission while the first is pending.
package busy

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrBusy is returned when the action is already in flight.
var ErrBusy = errors.New("another request is already in flight")

// Flag is held for the duration of a single external call.
// The zero value is ready to use.
type Flag struct {
	held atomic.Bool
}

// Acquire marks the flag as held. The returned release function frees it
// and is safe to call more than once, so callers can defer it on every
// exit path.
func (f *Flag) Acquire() (func(), error) {
	if !f.held.CompareAndSwap(false, true) {
		return func() {}, ErrBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() { f.held.Store(false) })
	}, nil
}

// Held reports whether an action is currently in flight.
func (f *Flag) Held() bool {
	return f.held.Load()
}
