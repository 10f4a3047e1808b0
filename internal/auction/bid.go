package auction

import (
	"fmt"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// stepDecimals is the number of trailing decimal places below which bid
// increments are not meaningful.
const stepDecimals = 2

// maxStepExponent is the largest power of ten that fits in a uint64.
const maxStepExponent = 19

// MinBidStep returns 10^(decimals-2) minor units.
func MinBidStep(decimals uint8) (uint64, error) {
	if decimals < stepDecimals {
		return 0, fmt.Errorf("auction: currency has %d decimals: %w", decimals, domain.ErrBidStepTooSmall)
	}
	exp := int(decimals) - stepDecimals
	if exp > maxStepExponent {
		return 0, fmt.Errorf("auction: step 10^%d overflows: %w", exp, domain.ErrBidStepTooSmall)
	}
	step := uint64(1)
	for i := 0; i < exp; i++ {
		step *= 10
	}
	return step, nil
}

// ValidateMinBid rejects listings that could be won for nothing.
func ValidateMinBid(minBid uint64) error {
	if minBid == 0 {
		return fmt.Errorf("auction: %w", domain.ErrMinBidMustNotBeZero)
	}
	return nil
}

// CheckBid validates a new bid of amount against the listing as currently
// persisted.
func CheckBid(l domain.ListingConfig, amount uint64, decimals uint8, now int64) error {
	if !l.IsOpen() {
		return fmt.Errorf("auction: listing %s is %s: %w", l.Address, l.Status, domain.ErrListingClosed)
	}
	if err := CheckBidWindow(l.Window, now); err != nil {
		return err
	}
	if amount < l.MinBid {
		return fmt.Errorf("auction: bid %d below minimum %d: %w", amount, l.MinBid, domain.ErrBidTooLow)
	}
	if amount < l.HighestBid.Amount {
		return fmt.Errorf("auction: bid %d below highest %d: %w", amount, l.HighestBid.Amount, domain.ErrBidTooLow)
	}

	step, err := MinBidStep(decimals)
	if err != nil {
		return err
	}
	if l.HasBid() && amount-l.HighestBid.Amount < step {
		return fmt.Errorf("auction: increment %d below step %d: %w",
			amount-l.HighestBid.Amount, step, domain.ErrBidStepTooSmall)
	}
	return nil
}

// CheckExecute validates that buyerTradeState may settle the listing now.
func CheckExecute(l domain.ListingConfig, buyerTradeState domain.Address, now int64) error {
	if !l.IsOpen() {
		return fmt.Errorf("auction: listing %s is %s: %w", l.Address, l.Status, domain.ErrListingClosed)
	}
	if err := CheckSettleWindow(l.Window, now); err != nil {
		return err
	}
	if !l.HasBid() || buyerTradeState != l.HighestBid.BuyerTradeState {
		return fmt.Errorf("auction: trade state %s: %w", buyerTradeState, domain.ErrNotHighestBidder)
	}
	return nil
}
