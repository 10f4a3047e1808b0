package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// ListingStore implements domain.ListingStore using PostgreSQL. Amounts are
// NUMERIC(20,0) so the full uint64 range round-trips.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a new ListingStore backed by the given pool.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

const listingSelectCols = `address, nonce, auction_house, seller, token_account, token_mint,
	treasury_mint, token_size::TEXT, window_start, window_end, min_bid::TEXT,
	highest_bid_amount::TEXT, highest_bid_trade_state, status, created_at, updated_at, closed_at`

// Get reads the listing fresh from the database.
func (s *ListingStore) Get(ctx context.Context, addr domain.Address) (domain.ListingConfig, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+listingSelectCols+` FROM listings WHERE address = $1`, addr.String())
	l, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ListingConfig{}, fmt.Errorf("postgres: listing %s: %w", addr, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ListingConfig{}, fmt.Errorf("postgres: get listing %s: %w", addr, err)
	}
	return l, nil
}

// Create inserts the listing, replacing a closed row at the same address.
func (s *ListingStore) Create(ctx context.Context, l domain.ListingConfig) error {
	const query = `
		INSERT INTO listings (
			address, nonce, auction_house, seller, token_account, token_mint,
			treasury_mint, token_size, window_start, window_end, min_bid,
			highest_bid_amount, highest_bid_trade_state, status, created_at, updated_at, closed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8::NUMERIC, $9, $10, $11::NUMERIC,
			$12::NUMERIC, $13, $14, $15, $16, $17
		)
		ON CONFLICT (address) DO UPDATE SET
			nonce = EXCLUDED.nonce,
			token_size = EXCLUDED.token_size,
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			min_bid = EXCLUDED.min_bid,
			highest_bid_amount = EXCLUDED.highest_bid_amount,
			highest_bid_trade_state = EXCLUDED.highest_bid_trade_state,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			closed_at = EXCLUDED.closed_at
		WHERE listings.status <> 'open'`

	tag, err := s.pool.Exec(ctx, query, listingArgs(l)...)
	if err != nil {
		return fmt.Errorf("postgres: create listing %s: %w", l.Address, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: create listing %s: %w", l.Address, domain.ErrAlreadyExists)
	}
	return nil
}

// Update writes the mutable fields of an open listing. The row is only
// touched while it is still open and its stored bid does not exceed the new
// one, so a writer that lost its host lock cannot lower the highest bid.
func (s *ListingStore) Update(ctx context.Context, l domain.ListingConfig) error {
	const query = `
		UPDATE listings SET
			highest_bid_amount = $2::NUMERIC,
			highest_bid_trade_state = $3,
			status = $4,
			updated_at = $5,
			closed_at = $6
		WHERE address = $1
		  AND status = 'open'
		  AND highest_bid_amount <= $2::NUMERIC`

	tag, err := s.pool.Exec(ctx, query,
		l.Address.String(),
		strconv.FormatUint(l.HighestBid.Amount, 10),
		tradeStateText(l.HighestBid.BuyerTradeState),
		string(l.Status),
		l.UpdatedAt,
		l.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update listing %s: %w", l.Address, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM listings WHERE address = $1)`, l.Address.String(),
	).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: update listing %s: %w", l.Address, err)
	}
	if !exists {
		return fmt.Errorf("postgres: update listing %s: %w", l.Address, domain.ErrNotFound)
	}
	return fmt.Errorf("postgres: update listing %s: %w", l.Address, domain.ErrStaleWrite)
}

// ListBySeller returns a seller's listings, newest first.
func (s *ListingStore) ListBySeller(ctx context.Context, seller domain.Address, opts domain.ListOpts) ([]domain.ListingConfig, error) {
	q := newListQuery(`SELECT `+listingSelectCols+` FROM listings WHERE seller = $1`, seller.String()).
		window("created_at", opts)

	rows, err := s.pool.Query(ctx, q.sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list listings by seller: %w", err)
	}
	defer rows.Close()
	return scanListingRows(rows)
}

// ListClosedBefore returns sold or canceled listings closed before the cutoff.
func (s *ListingStore) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.ListingConfig, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingSelectCols+` FROM listings
		 WHERE status <> 'open' AND closed_at < $1 ORDER BY closed_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed listings: %w", err)
	}
	defer rows.Close()
	return scanListingRows(rows)
}

// DeleteClosedBefore removes archived listings.
func (s *ListingStore) DeleteClosedBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM listings WHERE status <> 'open' AND closed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete closed listings: %w", err)
	}
	return tag.RowsAffected(), nil
}

func listingArgs(l domain.ListingConfig) []any {
	var start, end *int64
	if l.Window != nil {
		start, end = &l.Window.Start, &l.Window.End
	}
	return []any{
		l.Address.String(),
		int16(l.Nonce),
		l.AuctionHouse.String(),
		l.Seller.String(),
		l.TokenAccount.String(),
		l.TokenMint.String(),
		l.TreasuryMint.String(),
		strconv.FormatUint(l.TokenSize, 10),
		start,
		end,
		strconv.FormatUint(l.MinBid, 10),
		strconv.FormatUint(l.HighestBid.Amount, 10),
		tradeStateText(l.HighestBid.BuyerTradeState),
		string(l.Status),
		l.CreatedAt,
		l.UpdatedAt,
		l.ClosedAt,
	}
}

func tradeStateText(a domain.Address) string {
	if a.IsZero() {
		return ""
	}
	return a.String()
}

func scanListing(scanner interface{ Scan(dest ...any) error }) (domain.ListingConfig, error) {
	var (
		l                                        domain.ListingConfig
		nonce                                    int16
		addr, ah, seller, ta, mint, treasuryMint string
		size, minBid, highest, highestTS, status string
		start, end                               *int64
	)
	err := scanner.Scan(
		&addr, &nonce, &ah, &seller, &ta, &mint,
		&treasuryMint, &size, &start, &end, &minBid,
		&highest, &highestTS, &status, &l.CreatedAt, &l.UpdatedAt, &l.ClosedAt,
	)
	if err != nil {
		return domain.ListingConfig{}, err
	}

	p := addressParser{}
	l.Address = p.parse(addr)
	l.AuctionHouse = p.parse(ah)
	l.Seller = p.parse(seller)
	l.TokenAccount = p.parse(ta)
	l.TokenMint = p.parse(mint)
	l.TreasuryMint = p.parse(treasuryMint)
	if highestTS != "" {
		l.HighestBid.BuyerTradeState = p.parse(highestTS)
	}
	l.TokenSize = p.uint(size)
	l.MinBid = p.uint(minBid)
	l.HighestBid.Amount = p.uint(highest)
	if p.err != nil {
		return domain.ListingConfig{}, fmt.Errorf("postgres: decode listing %s: %w", addr, p.err)
	}

	l.Nonce = uint8(nonce)
	l.Status = domain.ListingStatus(status)
	if start != nil && end != nil {
		l.Window = &domain.TimedAuctionWindow{Start: *start, End: *end}
	}
	return l, nil
}

func scanListingRows(rows pgx.Rows) ([]domain.ListingConfig, error) {
	var out []domain.ListingConfig
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: listing rows: %w", err)
	}
	return out, nil
}

// addressParser keeps the first decode error so scans stay linear.
type addressParser struct {
	err error
}

func (p *addressParser) parse(s string) domain.Address {
	a, err := domain.ParseAddress(s)
	if err != nil && p.err == nil {
		p.err = err
	}
	return a
}

func (p *addressParser) uint(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

var _ domain.ListingStore = (*ListingStore)(nil)
