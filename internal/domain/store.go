package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ListingStore persists listing configs. Reads always hit the backing store.
type ListingStore interface {
	Get(ctx context.Context, addr Address) (ListingConfig, error)
	// Create inserts a listing. It fails with ErrAlreadyExists while an open
	// listing holds the address; a closed one is replaced.
	Create(ctx context.Context, l ListingConfig) error
	// Update applies a change to an open listing. It fails with
	// ErrStaleWrite when the stored row is closed or already carries a
	// higher bid than l.
	Update(ctx context.Context, l ListingConfig) error
	ListBySeller(ctx context.Context, seller Address, opts ListOpts) ([]ListingConfig, error)
	ListClosedBefore(ctx context.Context, before time.Time) ([]ListingConfig, error)
	DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error)
}

// DelegationStore persists one AuthorityDelegation per instance.
type DelegationStore interface {
	Get(ctx context.Context, auctionHouse Address) (AuthorityDelegation, error)
	Create(ctx context.Context, d AuthorityDelegation) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
