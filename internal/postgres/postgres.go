// Package postgres stores preference records directly in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/joblens/internal/preferences"
	"github.com/spigell/joblens/internal/session"
)

const DefaultTable = "user_preferences"

// querier is the part of pgxpool.Pool the backend uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool creates and verifies a pgxpool connection pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

type Backend struct {
	db    querier
	table string
}

func New(db querier, table string) *Backend {
	if table == "" {
		table = DefaultTable
	}
	return &Backend{db: db, table: pgx.Identifier{table}.Sanitize()}
}

// EnsureSchema creates the preference table when it does not exist.
func (b *Backend) EnsureSchema(ctx context.Context) error {
	_, err := b.db.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id                  BIGSERIAL PRIMARY KEY,
		user_id             TEXT NOT NULL UNIQUE,
		location_preference TEXT,
		remote_preference   TEXT,
		job_types           TEXT[],
		min_salary          INTEGER,
		industries          TEXT[],
		experience_level    TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, b.table))
	if err != nil {
		return fmt.Errorf("ensureSchema: %w", err)
	}
	return nil
}

func (b *Backend) Fetch(ctx context.Context, sess *session.Session) (*preferences.Record, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}

	var (
		r          preferences.Record
		remote     string
		experience string
	)
	err := b.db.QueryRow(ctx, fmt.Sprintf(
		`SELECT user_id, COALESCE(location_preference, ''), COALESCE(remote_preference, ''),
		        job_types, COALESCE(min_salary, 0), industries, COALESCE(experience_level, '')
		 FROM %s WHERE user_id = $1`, b.table),
		sess.UserID,
	).Scan(&r.UserID, &r.LocationPreference, &remote, &r.JobTypes, &r.MinSalary, &r.Industries, &experience)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, preferences.ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	r.RemotePreference = preferences.RemoteWork(remote)
	r.ExperienceLevel = preferences.ExperienceLevel(experience)

	return &r, nil
}

func (b *Backend) Insert(ctx context.Context, sess *session.Session, r *preferences.Record) error {
	if err := sess.Require(); err != nil {
		return err
	}

	_, err := b.db.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (user_id, location_preference, remote_preference, job_types, min_salary, industries, experience_level)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`, b.table),
		args(sess, r)...,
	)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

func (b *Backend) Update(ctx context.Context, sess *session.Session, r *preferences.Record) error {
	if err := sess.Require(); err != nil {
		return err
	}

	tag, err := b.db.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET location_preference = $2, remote_preference = $3, job_types = $4,
		        min_salary = $5, industries = $6, experience_level = $7, updated_at = now()
		 WHERE user_id = $1`, b.table),
		args(sess, r)...,
	)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return preferences.ErrNoRecord
	}
	return nil
}

// Upsert writes the record in one statement, so concurrent writers for the
// same user never produce a second row.
func (b *Backend) Upsert(ctx context.Context, sess *session.Session, r *preferences.Record) error {
	if err := sess.Require(); err != nil {
		return err
	}

	_, err := b.db.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (user_id, location_preference, remote_preference, job_types, min_salary, industries, experience_level)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
		   location_preference = EXCLUDED.location_preference,
		   remote_preference   = EXCLUDED.remote_preference,
		   job_types           = EXCLUDED.job_types,
		   min_salary          = EXCLUDED.min_salary,
		   industries          = EXCLUDED.industries,
		   experience_level    = EXCLUDED.experience_level,
		   updated_at          = now()`, b.table),
		args(sess, r)...,
	)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

func args(sess *session.Session, r *preferences.Record) []any {
	return []any{
		sess.UserID,
		r.LocationPreference,
		string(r.RemotePreference),
		nonNil(r.JobTypes),
		r.MinSalary,
		nonNil(r.Industries),
		string(r.ExperienceLevel),
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
