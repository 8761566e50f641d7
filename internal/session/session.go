// Package session holds the identity bound to the CLI: the hosted-auth user
// and its access token. A Session value is passed explicitly into every
// component that needs it.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotAuthenticated is returned when an operation needs an identity and
// none is bound.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrExpired marks a session whose access token has run out. Require wraps it
// together with ErrNotAuthenticated; the refresh token may still be good.
var ErrExpired = errors.New("session expired")

// Session is the bound identity.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
}

var now = time.Now

// Require returns ErrNotAuthenticated unless s carries a usable identity.
// It is safe to call on a nil session.
func (s *Session) Require() error {
	if s == nil {
		return ErrNotAuthenticated
	}
	if strings.TrimSpace(s.UserID) == "" || strings.TrimSpace(s.AccessToken) == "" {
		return ErrNotAuthenticated
	}
	if !s.ExpiresAt.IsZero() && !now().Before(s.ExpiresAt) {
		return fmt.Errorf("%w: %w at %s", ErrNotAuthenticated, ErrExpired, s.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// Refreshable reports whether an expired s can be renewed with its refresh
// token.
func (s *Session) Refreshable() bool {
	return s != nil &&
		strings.TrimSpace(s.RefreshToken) != "" &&
		errors.Is(s.Require(), ErrExpired)
}

// Load reads a session file. A missing file means nobody is signed in and
// yields a nil session without error.
func Load(path string) (*Session, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session file %q: %w", path, err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing session file %q: %w", path, err)
	}

	return &s, nil
}

// Save writes the session file readable by the owner only.
func Save(path string, s *Session) error {
	if s == nil {
		return errors.New("session is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Remove deletes the session file. Removing an absent file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file %q: %w", path, err)
	}
	return nil
}

// DefaultPath returns ~/.joblens/session.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".joblens", "session.json")
	}
	return filepath.Join(home, ".joblens", "session.json")
}
