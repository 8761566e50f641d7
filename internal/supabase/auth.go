package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/logger"
	"github.com/spigell/joblens/internal/session"
)

// ErrConfirmationRequired is returned by SignUp when the account was created
// but has to be confirmed by email before signing in.
var ErrConfirmationRequired = errors.New("account created, confirm the email address before signing in")

type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// FullName returns the name given at sign up, if any.
func (u *User) FullName() string {
	name, _ := u.UserMetadata["full_name"].(string)
	return name
}

type credentials struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user"`
}

func (t *tokenResponse) session() *session.Session {
	s := &session.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	if t.User != nil {
		s.UserID = t.User.ID
		s.Email = t.User.Email
	}
	return s
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	q := url.Values{"grant_type": {"password"}}
	req, err := c.newRequest(ctx, http.MethodPost, authPath+"/token", q, credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var resp tokenResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}

	sess := resp.session()
	c.logger.Info("signed in", logger.UserField(sess.UserID))

	return sess, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh trades a refresh token for a new session. The refresh token is
// single use; the returned session carries its replacement.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("refreshing session: %w", session.ErrNotAuthenticated)
	}

	q := url.Values{"grant_type": {"refresh_token"}}
	req, err := c.newRequest(ctx, http.MethodPost, authPath+"/token", q, refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	var resp tokenResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("refreshing session: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("refreshing session: %w: no access token in response", session.ErrNotAuthenticated)
	}

	sess := resp.session()
	c.logger.Debug("session refreshed", logger.UserField(sess.UserID), zap.Time("expires_at", sess.ExpiresAt))

	return sess, nil
}

// SignUp registers an account. When the project signs new users in right
// away the session is returned, otherwise ErrConfirmationRequired.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*session.Session, error) {
	body := credentials{Email: email, Password: password}
	if fullName != "" {
		body.Data = map[string]any{"full_name": fullName}
	}

	req, err := c.newRequest(ctx, http.MethodPost, authPath+"/signup", nil, body)
	if err != nil {
		return nil, err
	}

	var resp tokenResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("signing up: %w", err)
	}

	if resp.AccessToken == "" {
		return nil, ErrConfirmationRequired
	}

	return resp.session(), nil
}

// SignOut revokes the session tokens on the server.
func (c *Client) SignOut(ctx context.Context, sess *session.Session) error {
	if err := sess.Require(); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, authPath+"/logout", nil, nil)
	if err != nil {
		return err
	}

	if err := c.do(withToken(req, sess.AccessToken), nil); err != nil {
		return fmt.Errorf("signing out: %w", err)
	}

	return nil
}

// User returns the account behind the session.
func (c *Client) User(ctx context.Context, sess *session.Session) (*User, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodGet, authPath+"/user", nil, nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := c.do(withToken(req, sess.AccessToken), &user); err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	return &user, nil
}

// UpdateUser merges data into the account metadata.
func (c *Client) UpdateUser(ctx context.Context, sess *session.Session, data map[string]any) (*User, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPut, authPath+"/user", nil, map[string]any{"data": data})
	if err != nil {
		return nil, err
	}

	var user User
	if err := c.do(withToken(req, sess.AccessToken), &user); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	c.logger.Debug("user updated", logger.UserField(user.ID), zap.Int("fields", len(data)))

	return &user, nil
}
