// Package cache keeps preference records in Redis in front of the row store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spigell/joblens/internal/preferences"
)

const (
	keyPrefix = "joblens:prefs:"

	DefaultTTL = 10 * time.Minute
)

// Preferences caches preference records per user id.
type Preferences struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return rdb, nil
}

func New(rdb *redis.Client, ttl time.Duration) *Preferences {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Preferences{rdb: rdb, ttl: ttl}
}

func key(userID string) string {
	return keyPrefix + userID
}

// Get returns the cached record. A miss is not an error.
func (p *Preferences) Get(ctx context.Context, userID string) (*preferences.Record, bool, error) {
	val, err := p.rdb.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var r preferences.Record
	if err := json.Unmarshal(val, &r); err != nil {
		return nil, false, fmt.Errorf("decoding cached preferences: %w", err)
	}

	return &r, true, nil
}

func (p *Preferences) Set(ctx context.Context, userID string, r *preferences.Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return p.rdb.Set(ctx, key(userID), data, p.ttl).Err()
}

func (p *Preferences) Delete(ctx context.Context, userID string) error {
	return p.rdb.Del(ctx, key(userID)).Err()
}
