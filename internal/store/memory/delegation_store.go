package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// DelegationStore implements domain.DelegationStore.
type DelegationStore struct {
	mu          sync.RWMutex
	delegations map[domain.Address]domain.AuthorityDelegation
}

func NewDelegationStore() *DelegationStore {
	return &DelegationStore{delegations: make(map[domain.Address]domain.AuthorityDelegation)}
}

func (s *DelegationStore) Get(_ context.Context, auctionHouse domain.Address) (domain.AuthorityDelegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.delegations[auctionHouse]
	if !ok {
		return domain.AuthorityDelegation{}, fmt.Errorf("memory: delegation %s: %w", auctionHouse, domain.ErrNotFound)
	}
	return d, nil
}

func (s *DelegationStore) Create(_ context.Context, d domain.AuthorityDelegation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.delegations[d.AuctionHouse]; ok {
		return fmt.Errorf("memory: delegation %s: %w", d.AuctionHouse, domain.ErrAlreadyExists)
	}
	s.delegations[d.AuctionHouse] = d
	return nil
}

var _ domain.DelegationStore = (*DelegationStore)(nil)
