package domain

import (
	"fmt"
	"math"
	"time"
)

// AskPrice is the price component of a seller trade state created through
// the auctioneer. The real price is only known at settlement.
const AskPrice uint64 = math.MaxUint64

// FreePrice is the price component of the zero-price trade state used for
// post-sale cleanup.
const FreePrice uint64 = 0

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	ListingStatusOpen     ListingStatus = "open"
	ListingStatusSold     ListingStatus = "sold"
	ListingStatusCanceled ListingStatus = "canceled"
)

// Preset auction lengths.
const (
	AuctionDuration12h = 12 * time.Hour
	AuctionDuration24h = 24 * time.Hour
	AuctionDuration48h = 48 * time.Hour
)

// TimedAuctionArgs is the seller's request for a bidding window. A nil
// StartTime means the auction opens immediately.
type TimedAuctionArgs struct {
	StartTime *int64 `json:"start_time,omitempty"`
	Duration  string `json:"duration"`
}

// ParseDuration resolves the requested length to one of the presets.
func (a TimedAuctionArgs) ParseDuration() (time.Duration, error) {
	d, err := time.ParseDuration(a.Duration)
	if err != nil {
		return 0, fmt.Errorf("duration %q: %w", a.Duration, ErrInvalidAuctionDuration)
	}
	switch d {
	case AuctionDuration12h, AuctionDuration24h, AuctionDuration48h:
		return d, nil
	default:
		return 0, fmt.Errorf("duration %s: %w", d, ErrInvalidAuctionDuration)
	}
}

// TimedAuctionWindow bounds bidding to [Start, End) in unix seconds.
type TimedAuctionWindow struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Bid is the current best offer on a listing.
type Bid struct {
	Amount          uint64  `json:"amount"`
	BuyerTradeState Address `json:"buyer_trade_state"`
}

// ListingConfig is the auctioneer-owned record for one listing.
type ListingConfig struct {
	Address      Address             `json:"address"`
	Nonce        uint8               `json:"nonce"`
	AuctionHouse Address             `json:"auction_house"`
	Seller       Address             `json:"seller"`
	TokenAccount Address             `json:"token_account"`
	TokenMint    Address             `json:"token_mint"`
	TreasuryMint Address             `json:"treasury_mint"`
	TokenSize    uint64              `json:"token_size"`
	Window       *TimedAuctionWindow `json:"window,omitempty"`
	MinBid       uint64              `json:"min_bid"`
	HighestBid   Bid                 `json:"highest_bid"`
	Status       ListingStatus       `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	ClosedAt     *time.Time          `json:"closed_at,omitempty"`
}

func (l ListingConfig) IsOpen() bool {
	return l.Status == ListingStatusOpen
}

// HasBid reports whether any bid has been accepted.
func (l ListingConfig) HasBid() bool {
	return !l.HighestBid.BuyerTradeState.IsZero()
}

// Close marks the listing finished at t.
func (l *ListingConfig) Close(status ListingStatus, t time.Time) {
	l.Status = status
	l.UpdatedAt = t
	closed := t
	l.ClosedAt = &closed
}
