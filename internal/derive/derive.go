// Package derive maps ordered domain parameters to deterministic account
// identities. An identity is keccak256 over the length-prefixed seeds, a
// one-byte nonce, the owning program and a fixed marker. The nonce is the smallest value
// whose identity falls outside the externally controllable wallet
// namespace, so no key holder can ever sign as a derived account.
package derive

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

const (
	// MaxSeeds is the maximum number of seeds in one derivation.
	MaxSeeds = 16
	// MaxSeedLen is the maximum length of a single seed.
	MaxSeedLen = 32
	// DefaultMaxAttempts bounds the nonce search.
	DefaultMaxAttempts = 256

	marker = "DerivedIdentity"
)

var (
	// ErrExternallyControllable is returned by Create when the candidate
	// lands in the wallet namespace. Find retries with the next nonce.
	ErrExternallyControllable = errors.New("derive: candidate is externally controllable")
	ErrInvalidSeeds           = errors.New("derive: invalid seeds")
	ErrAddressMismatch        = errors.New("derive: address does not match seeds")
	ErrNonceMismatch          = errors.New("derive: nonce is not canonical")
)

// Deriver derives identities owned by one program.
type Deriver struct {
	program     domain.Address
	maxAttempts int
	external    func(domain.Address) bool
}

// Option configures a Deriver.
type Option func(*Deriver)

// WithMaxAttempts bounds the nonce search. Values outside 1..256 are clamped.
func WithMaxAttempts(n int) Option {
	return func(d *Deriver) {
		switch {
		case n < 1:
			d.maxAttempts = 1
		case n > DefaultMaxAttempts:
			d.maxAttempts = DefaultMaxAttempts
		default:
			d.maxAttempts = n
		}
	}
}

// WithExternalCheck replaces the predicate deciding whether a candidate is
// externally controllable.
func WithExternalCheck(fn func(domain.Address) bool) Option {
	return func(d *Deriver) {
		if fn != nil {
			d.external = fn
		}
	}
}

// New creates a Deriver for program.
func New(program domain.Address, opts ...Option) *Deriver {
	d := &Deriver{
		program:     program,
		maxAttempts: DefaultMaxAttempts,
		external:    domain.Address.IsWallet,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Program returns the owning program identity.
func (d *Deriver) Program() domain.Address {
	return d.program
}

// Create computes the identity for seeds under a fixed nonce. Each seed is
// length-prefixed in the hash input.
func (d *Deriver) Create(nonce uint8, seeds ...[]byte) (domain.Address, error) {
	if err := checkSeeds(seeds); err != nil {
		return domain.ZeroAddress, err
	}

	parts := make([][]byte, 0, 2*len(seeds)+3)
	for _, seed := range seeds {
		parts = append(parts, []byte{byte(len(seed))}, seed)
	}
	parts = append(parts, []byte{nonce}, d.program[:], []byte(marker))

	var addr domain.Address
	copy(addr[:], ethcrypto.Keccak256(parts...))

	if d.external(addr) {
		return domain.ZeroAddress, ErrExternallyControllable
	}
	return addr, nil
}

// Find tries nonces 0, 1, 2, ... and returns the first identity that is not
// externally controllable.
func (d *Deriver) Find(seeds ...[]byte) (domain.Address, uint8, error) {
	for i := 0; i < d.maxAttempts; i++ {
		addr, err := d.Create(uint8(i), seeds...)
		if err == nil {
			return addr, uint8(i), nil
		}
		if !errors.Is(err, ErrExternallyControllable) {
			return domain.ZeroAddress, 0, err
		}
	}
	return domain.ZeroAddress, 0, fmt.Errorf("derive: %d attempts exhausted: %w", d.maxAttempts, domain.ErrNoValidNonce)
}

// Verify re-derives the identity from seeds and nonce and compares it to
// addr.
func (d *Deriver) Verify(addr domain.Address, nonce uint8, seeds ...[]byte) error {
	got, err := d.Create(nonce, seeds...)
	if err != nil {
		return err
	}
	if got != addr {
		return fmt.Errorf("%w: want %s, got %s", ErrAddressMismatch, got, addr)
	}
	return nil
}

// Canonical returns the identity for seeds after checking that nonce is the
// one Find would pick.
func (d *Deriver) Canonical(nonce uint8, seeds ...[]byte) (domain.Address, error) {
	addr, want, err := d.Find(seeds...)
	if err != nil {
		return domain.ZeroAddress, err
	}
	if nonce != want {
		return domain.ZeroAddress, fmt.Errorf("%w: supplied %d, canonical %d", ErrNonceMismatch, nonce, want)
	}
	return addr, nil
}

func checkSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return fmt.Errorf("%w: %d seeds, max %d", ErrInvalidSeeds, len(seeds), MaxSeeds)
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLen {
			return fmt.Errorf("%w: seed %d is %d bytes, max %d", ErrInvalidSeeds, i, len(s), MaxSeedLen)
		}
	}
	return nil
}
