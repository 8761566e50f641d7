// Package embedcache stores CV embeddings on disk so a listing can be
// refreshed without uploading the CV again.
package embedcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Sources an embedding can come from.
const (
	SourceService = "service"
	SourceGemini  = "gemini"
)

// Entry is a stored embedding owned by a user.
type Entry struct {
	Owner     string
	Vector    []float64
	Source    string
	CreatedAt time.Time
}

type Cache struct {
	db *sql.DB
}

// DefaultPath is ~/.joblens/embeddings.db.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".joblens", "embeddings.db")
	}
	return filepath.Join(home, ".joblens", "embeddings.db")
}

// Open opens (or creates) the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("embedcache: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("embedcache: open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("embedcache: init schema: %w", err)
	}

	return &Cache{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS embeddings (
		owner      TEXT PRIMARY KEY,
		vector     TEXT NOT NULL,
		source     TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	return err
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Put replaces the embedding of owner.
func (c *Cache) Put(ctx context.Context, owner string, vector []float64, source string) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return errors.New("embedcache: owner is required")
	}
	if len(vector) == 0 {
		return errors.New("embedcache: empty vector")
	}

	data, err := json.Marshal(vector)
	if err != nil {
		return err
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO embeddings (owner, vector, source, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner) DO UPDATE SET vector = excluded.vector, source = excluded.source, created_at = excluded.created_at`,
		owner, string(data), source, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("embedcache: put: %w", err)
	}
	return nil
}

// Get returns the embedding of owner. found is false when none is stored.
func (c *Cache) Get(ctx context.Context, owner string) (*Entry, bool, error) {
	var (
		vector    string
		createdAt string
		e         = Entry{Owner: owner}
	)

	err := c.db.QueryRowContext(ctx,
		`SELECT vector, source, created_at FROM embeddings WHERE owner = ?`, owner,
	).Scan(&vector, &e.Source, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("embedcache: get: %w", err)
	}

	if err := json.Unmarshal([]byte(vector), &e.Vector); err != nil {
		return nil, false, fmt.Errorf("embedcache: decoding vector: %w", err)
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &e, true, nil
}

func (c *Cache) Delete(ctx context.Context, owner string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM embeddings WHERE owner = ?`, owner); err != nil {
		return fmt.Errorf("embedcache: delete: %w", err)
	}
	return nil
}
