package local

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// NonceStore keeps claimed nonces in a bounded LRU. Evicted entries can be
// claimed again, so size must cover the traffic of one ttl window.
type NonceStore struct {
	mu    sync.Mutex
	cache *lru.Cache
	now   func() time.Time
}

func NewNonceStore(size int) (*NonceStore, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &NonceStore{cache: c, now: time.Now}, nil
}

func (s *NonceStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if v, ok := s.cache.Get(key); ok && now.Before(v.(time.Time)) {
		return false, nil
	}
	s.cache.Add(key, now.Add(ttl))
	return true, nil
}
