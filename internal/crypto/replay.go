package crypto

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

var (
	ErrStaleRequest    = errors.New("crypto: request timestamp outside accepted skew")
	ErrReplayedRequest = errors.New("crypto: request nonce already used")
)

// ReplayGuard rejects envelopes that are too old, too far in the future, or
// whose (signer, nonce) pair has been seen inside the skew window.
type ReplayGuard struct {
	nonces  domain.NonceStore
	maxSkew time.Duration
	now     func() time.Time
}

func NewReplayGuard(nonces domain.NonceStore, maxSkew time.Duration) *ReplayGuard {
	if maxSkew <= 0 {
		maxSkew = 30 * time.Second
	}
	return &ReplayGuard{nonces: nonces, maxSkew: maxSkew, now: time.Now}
}

// WithClock replaces the guard's time source.
func (g *ReplayGuard) WithClock(now func() time.Time) *ReplayGuard {
	g.now = now
	return g
}

// Check claims the nonce of r for signer.
func (g *ReplayGuard) Check(ctx context.Context, signer common.Address, r Request) error {
	ts := time.Unix(r.Timestamp, 0)
	skew := g.now().Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > g.maxSkew {
		return fmt.Errorf("%w: %s", ErrStaleRequest, skew)
	}
	key := signer.Hex() + ":" + strconv.FormatInt(r.Nonce, 10)
	fresh, err := g.nonces.Claim(ctx, key, 2*g.maxSkew)
	if err != nil {
		return fmt.Errorf("crypto: claiming nonce: %w", err)
	}
	if !fresh {
		return ErrReplayedRequest
	}
	return nil
}
