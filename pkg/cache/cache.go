// Package cache provides a small key-value cache capability with TTL
// expiration and an in-process implementation.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store is the capability contract for key-value caches. A zero TTL stores
// the entry with the implementation's default expiration.
type Store interface {
	Get(key string) (any, bool)
	Put(key string, value any, ttl time.Duration)
	Delete(key string)
}

type memory struct {
	inner *gocache.Cache
}

// NewMemory creates an in-process Store with the given default TTL.
// Expired entries are swept at twice the default TTL.
func NewMemory(defaultTTL time.Duration) Store {
	return &memory{
		inner: gocache.New(defaultTTL, 2*defaultTTL),
	}
}

func (m *memory) Get(key string) (any, bool) {
	return m.inner.Get(key)
}

func (m *memory) Put(key string, value any, ttl time.Duration) {
	m.inner.Set(key, value, ttl)
}

func (m *memory) Delete(key string) {
	m.inner.Delete(key)
}
