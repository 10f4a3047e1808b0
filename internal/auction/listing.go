package auction

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// OpenParams describes a listing about to be created.
type OpenParams struct {
	Address      domain.Address
	Nonce        uint8
	AuctionHouse domain.Address
	Seller       domain.Address
	TokenAccount domain.Address
	TokenMint    domain.Address
	TreasuryMint domain.Address
	TokenSize    uint64
	MinBid       uint64
	Timed        *domain.TimedAuctionArgs
}

// Open validates p and returns the new listing with no bids.
func Open(p OpenParams, now time.Time) (domain.ListingConfig, error) {
	if err := ValidateMinBid(p.MinBid); err != nil {
		return domain.ListingConfig{}, err
	}
	window, err := NewWindow(p.Timed, now.Unix())
	if err != nil {
		return domain.ListingConfig{}, err
	}

	return domain.ListingConfig{
		Address:      p.Address,
		Nonce:        p.Nonce,
		AuctionHouse: p.AuctionHouse,
		Seller:       p.Seller,
		TokenAccount: p.TokenAccount,
		TokenMint:    p.TokenMint,
		TreasuryMint: p.TreasuryMint,
		TokenSize:    p.TokenSize,
		Window:       window,
		MinBid:       p.MinBid,
		Status:       domain.ListingStatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ApplyBid records an accepted bid. The highest bid never decreases.
func ApplyBid(l *domain.ListingConfig, bid domain.Bid, now time.Time) error {
	if bid.Amount < l.HighestBid.Amount {
		return fmt.Errorf("auction: bid %d below highest %d: %w", bid.Amount, l.HighestBid.Amount, domain.ErrBidTooLow)
	}
	l.HighestBid = bid
	l.UpdatedAt = now
	return nil
}

// CheckOwner requires the caller to hold the item's token account.
func CheckOwner(caller domain.Caller, ta domain.TokenAccount) error {
	if !caller.Signed || caller.Address != ta.Owner {
		return fmt.Errorf("auction: %s does not own %s: %w", caller.Address, ta.Address, domain.ErrUnauthorized)
	}
	return nil
}

// CheckAuthority requires the caller to be the instance authority.
func CheckAuthority(caller domain.Caller, ah domain.AuctionHouse) error {
	if !caller.Signed || caller.Address != ah.Authority {
		return fmt.Errorf("auction: %s is not the authority of %s: %w", caller.Address, ah.Address, domain.ErrUnauthorized)
	}
	return nil
}

// CheckCancel allows the trade state owner or the instance authority.
func CheckCancel(caller domain.Caller, owner domain.Address, ah domain.AuctionHouse) error {
	if caller.Signed && (caller.Address == owner || caller.Address == ah.Authority) {
		return nil
	}
	return fmt.Errorf("auction: %s may not cancel for %s: %w", caller.Address, owner, domain.ErrUnauthorized)
}
