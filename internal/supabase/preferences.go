package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spigell/joblens/internal/preferences"
	"github.com/spigell/joblens/internal/session"
)

// ErrDuplicateRows is returned by Fetch when the identity owns more than one
// preference row. Writing on top of that state would only add another row.
var ErrDuplicateRows = errors.New("more than one preference row")

// Fetch returns the preference row of the session user,
// preferences.ErrNoRecord when there is none, or ErrDuplicateRows.
func (c *Client) Fetch(ctx context.Context, sess *session.Session) (*preferences.Record, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}

	q := url.Values{
		"select":  {strings.Join(preferences.Columns, ",")},
		"user_id": {"eq." + sess.UserID},
		// Two rows are enough to tell a duplicate from a single record.
		"limit": {"2"},
	}
	req, err := c.newRequest(ctx, http.MethodGet, c.tablePath(), q, nil)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := c.do(withToken(req, sess.AccessToken), &rows); err != nil {
		return nil, err
	}

	switch len(rows) {
	case 0:
		return nil, preferences.ErrNoRecord
	case 1:
		return preferences.DecodeRecord(rows[0])
	default:
		return nil, fmt.Errorf("%w: user %s", ErrDuplicateRows, sess.UserID)
	}
}

func (c *Client) Insert(ctx context.Context, sess *session.Session, r *preferences.Record) error {
	if err := sess.Require(); err != nil {
		return err
	}

	row := *r
	row.UserID = sess.UserID

	req, err := c.newRequest(ctx, http.MethodPost, c.tablePath(), nil, &row)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")

	return c.do(withToken(req, sess.AccessToken), nil)
}

func (c *Client) Update(ctx context.Context, sess *session.Session, r *preferences.Record) error {
	if err := sess.Require(); err != nil {
		return err
	}

	row := *r
	row.UserID = sess.UserID

	q := url.Values{"user_id": {"eq." + sess.UserID}}
	req, err := c.newRequest(ctx, http.MethodPatch, c.tablePath(), q, &row)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")

	return c.do(withToken(req, sess.AccessToken), nil)
}

func (c *Client) tablePath() string {
	table := c.Table
	if table == "" {
		table = DefaultTable
	}
	return restPath + "/" + table
}
