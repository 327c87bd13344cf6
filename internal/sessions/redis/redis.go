// Package redis implements a session backend on top of redis, so that the
// authorization request and the callback can be served by different
// instances.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pomerium/lineauth/internal/sessions"
)

var _ sessions.Backend = (*Backend)(nil)

const (
	// DefaultTTL is how long a value lives before redis expires it.
	DefaultTTL = 10 * time.Minute

	keyPrefix = "lineauth:session:"
)

// Backend stores each correlation value as its own redis key with an expiry.
type Backend struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to the redis server at rawURL (redis:// or rediss://) and
// verifies the connection.
func New(ctx context.Context, rawURL string, ttl time.Duration) (*Backend, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("internal/sessions/redis: parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("internal/sessions/redis: ping failed: %w", err)
	}
	return NewFromClient(client, ttl), nil
}

// NewFromClient creates a backend that uses an existing client.
func NewFromClient(client *redis.Client, ttl time.Duration) *Backend {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Backend{client: client, ttl: ttl}
}

func entryKey(sessionID, key string) string {
	return keyPrefix + sessionID + ":" + key
}

// Set stores value under key for the session.
func (b *Backend) Set(ctx context.Context, sessionID, key, value string) error {
	if err := b.client.Set(ctx, entryKey(sessionID, key), value, b.ttl).Err(); err != nil {
		return fmt.Errorf("internal/sessions/redis: set: %w", err)
	}
	return nil
}

// Get returns the value of key for the session.
func (b *Backend) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	return result(b.client.Get(ctx, entryKey(sessionID, key)))
}

// Take returns the value of key for the session and removes it with a single
// GETDEL, so concurrent callbacks cannot both observe it.
func (b *Backend) Take(ctx context.Context, sessionID, key string) (string, bool, error) {
	return result(b.client.GetDel(ctx, entryKey(sessionID, key)))
}

func result(cmd *redis.StringCmd) (string, bool, error) {
	v, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("internal/sessions/redis: %s: %w", cmd.Name(), err)
	}
	return v, true, nil
}

// Close closes the redis connection.
func (b *Backend) Close() error {
	return b.client.Close()
}
