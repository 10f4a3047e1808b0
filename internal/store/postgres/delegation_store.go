package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

const pgUniqueViolation = "23505"

// DelegationStore implements domain.DelegationStore using PostgreSQL.
type DelegationStore struct {
	pool *pgxpool.Pool
}

// NewDelegationStore creates a new DelegationStore backed by the given pool.
func NewDelegationStore(pool *pgxpool.Pool) *DelegationStore {
	return &DelegationStore{pool: pool}
}

// Get returns the delegation recorded for an instance.
func (s *DelegationStore) Get(ctx context.Context, auctionHouse domain.Address) (domain.AuthorityDelegation, error) {
	const query = `SELECT auction_house, delegate, nonce, scopes, created_at
		FROM delegations WHERE auction_house = $1`

	var (
		d            domain.AuthorityDelegation
		ah, delegate string
		nonce        int16
		mask         int64
	)
	err := s.pool.QueryRow(ctx, query, auctionHouse.String()).Scan(&ah, &delegate, &nonce, &mask, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AuthorityDelegation{}, fmt.Errorf("postgres: delegation %s: %w", auctionHouse, domain.ErrNotFound)
	}
	if err != nil {
		return domain.AuthorityDelegation{}, fmt.Errorf("postgres: get delegation %s: %w", auctionHouse, err)
	}

	p := addressParser{}
	d.AuctionHouse = p.parse(ah)
	d.Delegate = p.parse(delegate)
	if p.err != nil {
		return domain.AuthorityDelegation{}, fmt.Errorf("postgres: decode delegation %s: %w", auctionHouse, p.err)
	}
	d.Nonce = uint8(nonce)
	d.Scopes = domain.ScopeSetFromMask(uint64(mask))
	return d, nil
}

// Create records a delegation. A second delegation for the same instance
// fails with domain.ErrAlreadyExists.
func (s *DelegationStore) Create(ctx context.Context, d domain.AuthorityDelegation) error {
	const query = `INSERT INTO delegations (auction_house, delegate, nonce, scopes, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		d.AuctionHouse.String(),
		d.Delegate.String(),
		int16(d.Nonce),
		int64(d.Scopes.Mask()),
		d.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("postgres: delegation %s: %w", d.AuctionHouse, domain.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("postgres: create delegation %s: %w", d.AuctionHouse, err)
	}
	return nil
}

var _ domain.DelegationStore = (*DelegationStore)(nil)
