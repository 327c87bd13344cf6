// Package memory implements an in-process session backend.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pomerium/lineauth/internal/sessions"
)

var _ sessions.Backend = (*Backend)(nil)

const (
	// DefaultSize is the default maximum number of stored values.
	DefaultSize = 10000
	// DefaultTTL is how long a value lives before it is evicted.
	DefaultTTL = 10 * time.Minute
)

// Backend keeps correlation values in a size bounded LRU cache whose entries
// expire after a TTL. Values are lost on restart.
type Backend struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, string]
}

// New creates a new memory backend. Zero arguments select the defaults.
func New(size int, ttl time.Duration) *Backend {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Backend{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

func entryKey(sessionID, key string) string {
	return sessionID + "\x00" + key
}

// Set stores value under key for the session.
func (b *Backend) Set(_ context.Context, sessionID, key, value string) error {
	b.mu.Lock()
	b.lru.Add(entryKey(sessionID, key), value)
	b.mu.Unlock()
	return nil
}

// Get returns the value of key for the session.
func (b *Backend) Get(_ context.Context, sessionID, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.lru.Get(entryKey(sessionID, key))
	return v, ok, nil
}

// Take returns the value of key for the session and removes it.
func (b *Backend) Take(_ context.Context, sessionID, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := entryKey(sessionID, key)
	v, ok := b.lru.Get(k)
	if ok {
		b.lru.Remove(k)
	}
	return v, ok, nil
}

// Close releases the stored values.
func (b *Backend) Close() error {
	b.mu.Lock()
	b.lru.Purge()
	b.mu.Unlock()
	return nil
}
