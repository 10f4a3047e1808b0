// Package local provides in-process implementations of the cache interfaces
// for single-replica deployments and tests.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// LockManager hands out per-key mutexes. ttl is ignored: a holder keeps the
// lock until it releases it.
type LockManager struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLockManager() *LockManager {
	return &LockManager{slots: make(map[string]chan struct{})}
}

func (lm *LockManager) slot(key string) chan struct{} {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	ch, ok := lm.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		lm.slots[key] = ch
	}
	return ch
}

func (lm *LockManager) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	ch := lm.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("local: lock %s: %w", key, domain.ErrLockHeld)
	}
	var once sync.Once
	return func() { once.Do(func() { <-ch }) }, nil
}

var _ domain.LockManager = (*LockManager)(nil)
