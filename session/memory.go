package session

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryStore implements Store on an in-process cache with expiry.
// Useful for development and testing; state does not survive restarts.
type memoryStore struct {
	c      *gocache.Cache
	prefix string
}

// NewMemory creates an in-process store. The prefix namespaces keys so
// several stores can share a process without colliding.
func NewMemory(prefix string) Store {
	return &memoryStore{
		c:      gocache.New(gocache.NoExpiration, 10*time.Minute),
		prefix: prefix,
	}
}

func (s *memoryStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func ttlOrForever(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := s.c.Get(s.key(key))
	if !ok {
		return "", ErrNotFound
	}
	return v.(string), nil
}

func (s *memoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.c.Set(s.key(key), value, ttlOrForever(ttl))
	return nil
}

func (s *memoryStore) Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	// gocache.Add errors when the key already exists, which is exactly the
	// first-write-wins contract.
	if err := s.c.Add(s.key(key), value, ttlOrForever(ttl)); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.c.Delete(s.key(key))
	return nil
}
