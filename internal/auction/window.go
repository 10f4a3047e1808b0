// Package auction holds the listing lifecycle rules: window construction,
// bid acceptance, settlement eligibility and the caller checks that guard
// each transition. Everything here is pure; callers supply the current
// listing state and a single clock reading.
package auction

import (
	"fmt"
	"math"
	"time"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// NewWindow builds the bidding window requested at sell time. A nil args
// yields an untimed listing.
func NewWindow(args *domain.TimedAuctionArgs, now int64) (*domain.TimedAuctionWindow, error) {
	if args == nil {
		return nil, nil
	}

	start := now
	if args.StartTime != nil {
		start = *args.StartTime
	}
	if start < now {
		return nil, fmt.Errorf("auction: start %d before now %d: %w", start, now, domain.ErrAuctionStartTimeInThePast)
	}

	d, err := args.ParseDuration()
	if err != nil {
		return nil, fmt.Errorf("auction: %w", err)
	}
	secs := int64(d / time.Second)
	if start > math.MaxInt64-secs {
		return nil, fmt.Errorf("auction: start %d leaves no room for a %s window: %w", start, d, domain.ErrBadRequest)
	}

	return &domain.TimedAuctionWindow{
		Start: start,
		End:   start + secs,
	}, nil
}

// CheckBidWindow allows bids in [start, end).
func CheckBidWindow(w *domain.TimedAuctionWindow, now int64) error {
	if w == nil {
		return nil
	}
	if now < w.Start {
		return fmt.Errorf("auction: now %d, starts %d: %w", now, w.Start, domain.ErrAuctionNotStarted)
	}
	if now >= w.End {
		return fmt.Errorf("auction: now %d, ended %d: %w", now, w.End, domain.ErrAuctionEnded)
	}
	return nil
}

// CheckSettleWindow allows settlement strictly after end. At now == end
// neither bidding nor settlement is possible.
func CheckSettleWindow(w *domain.TimedAuctionWindow, now int64) error {
	if w == nil {
		return nil
	}
	if now <= w.End {
		return fmt.Errorf("auction: now %d, ends %d: %w", now, w.End, domain.ErrAuctionActive)
	}
	return nil
}
