// Package memory implements the domain stores in process memory for
// single-node deployments and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// ListingStore implements domain.ListingStore.
type ListingStore struct {
	mu       sync.RWMutex
	listings map[domain.Address]domain.ListingConfig
}

func NewListingStore() *ListingStore {
	return &ListingStore{listings: make(map[domain.Address]domain.ListingConfig)}
}

func (s *ListingStore) Get(_ context.Context, addr domain.Address) (domain.ListingConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[addr]
	if !ok {
		return domain.ListingConfig{}, fmt.Errorf("memory: listing %s: %w", addr, domain.ErrNotFound)
	}
	return clone(l), nil
}

func (s *ListingStore) Create(_ context.Context, l domain.ListingConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.listings[l.Address]; ok && existing.IsOpen() {
		return fmt.Errorf("memory: listing %s: %w", l.Address, domain.ErrAlreadyExists)
	}
	s.listings[l.Address] = clone(l)
	return nil
}

func (s *ListingStore) Update(_ context.Context, l domain.ListingConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.listings[l.Address]
	if !ok {
		return fmt.Errorf("memory: update listing %s: %w", l.Address, domain.ErrNotFound)
	}
	if !existing.IsOpen() || existing.HighestBid.Amount > l.HighestBid.Amount {
		return fmt.Errorf("memory: update listing %s: %w", l.Address, domain.ErrStaleWrite)
	}
	s.listings[l.Address] = clone(l)
	return nil
}

func (s *ListingStore) ListBySeller(_ context.Context, seller domain.Address, opts domain.ListOpts) ([]domain.ListingConfig, error) {
	s.mu.RLock()
	var out []domain.ListingConfig
	for _, l := range s.listings {
		if l.Seller != seller {
			continue
		}
		if opts.Since != nil && l.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && l.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, clone(l))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, opts), nil
}

func (s *ListingStore) ListClosedBefore(_ context.Context, before time.Time) ([]domain.ListingConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ListingConfig
	for _, l := range s.listings {
		if closedBefore(l, before) {
			out = append(out, clone(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.Before(*out[j].ClosedAt) })
	return out, nil
}

func (s *ListingStore) DeleteClosedBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for addr, l := range s.listings {
		if closedBefore(l, before) {
			delete(s.listings, addr)
			n++
		}
	}
	return n, nil
}

func closedBefore(l domain.ListingConfig, before time.Time) bool {
	return !l.IsOpen() && l.ClosedAt != nil && l.ClosedAt.Before(before)
}

func clone(l domain.ListingConfig) domain.ListingConfig {
	if l.Window != nil {
		w := *l.Window
		l.Window = &w
	}
	if l.ClosedAt != nil {
		t := *l.ClosedAt
		l.ClosedAt = &t
	}
	return l
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

var _ domain.ListingStore = (*ListingStore)(nil)
