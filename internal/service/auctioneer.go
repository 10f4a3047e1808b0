// Package service implements the auctioneer's operation handlers. Each
// handler loads the instance, re-derives every identity it forwards, runs
// the listing rules against freshly read state, forwards through the
// delegate and only then persists the listing change.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/auctioneer/internal/derive"
	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/forward"
)

const defaultLockTTL = 30 * time.Second

// Recorder observes completed operations and published events.
type Recorder interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
	ObserveEvent(t domain.EventType)
}

// EventNotifier is told about accepted operations.
type EventNotifier interface {
	NotifyEvent(ctx context.Context, ev domain.Event) error
}

// Auctioneer runs the delegated marketplace operations.
type Auctioneer struct {
	scheme      derive.Scheme
	registry    domain.Registry
	forwarder   *forward.Forwarder
	listings    domain.ListingStore
	delegations domain.DelegationStore
	audit       domain.AuditStore
	locks       domain.LockManager
	bus         domain.SignalBus
	clock       domain.Clock
	recorder    Recorder
	notifier    EventNotifier
	lockTTL     time.Duration
	logger      *slog.Logger
}

// New creates an Auctioneer with all required dependencies.
func New(
	scheme derive.Scheme,
	registry domain.Registry,
	forwarder *forward.Forwarder,
	listings domain.ListingStore,
	delegations domain.DelegationStore,
	audit domain.AuditStore,
	locks domain.LockManager,
	bus domain.SignalBus,
	logger *slog.Logger,
) *Auctioneer {
	return &Auctioneer{
		scheme:      scheme,
		registry:    registry,
		forwarder:   forwarder,
		listings:    listings,
		delegations: delegations,
		audit:       audit,
		locks:       locks,
		bus:         bus,
		clock:       domain.SystemClock{},
		lockTTL:     defaultLockTTL,
		logger:      logger.With(slog.String("component", "auctioneer")),
	}
}

// WithClock replaces the system clock.
func (s *Auctioneer) WithClock(c domain.Clock) *Auctioneer {
	s.clock = c
	return s
}

// WithRecorder attaches operation metrics.
func (s *Auctioneer) WithRecorder(r Recorder) *Auctioneer {
	s.recorder = r
	return s
}

// WithNotifier attaches sale and cancel notifications.
func (s *Auctioneer) WithNotifier(n EventNotifier) *Auctioneer {
	s.notifier = n
	return s
}

// WithLockTTL bounds how long a crashed replica can hold a listing lock.
func (s *Auctioneer) WithLockTTL(ttl time.Duration) *Auctioneer {
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

// Scheme exposes the derivation scheme for read-only helpers.
func (s *Auctioneer) Scheme() derive.Scheme {
	return s.scheme
}

// Listing returns the persisted listing at addr.
func (s *Auctioneer) Listing(ctx context.Context, addr domain.Address) (domain.ListingConfig, error) {
	l, err := s.listings.Get(ctx, addr)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ListingConfig{}, fmt.Errorf("service: listing %s: %w", addr, domain.ErrListingNotFound)
	}
	if err != nil {
		return domain.ListingConfig{}, fmt.Errorf("service: listing %s: %w", addr, err)
	}
	return l, nil
}

// ListingsBySeller returns a seller's listings, newest first.
func (s *Auctioneer) ListingsBySeller(ctx context.Context, seller domain.Address, opts domain.ListOpts) ([]domain.ListingConfig, error) {
	ls, err := s.listings.ListBySeller(ctx, seller, opts)
	if err != nil {
		return nil, fmt.Errorf("service: listings of %s: %w", seller, err)
	}
	return ls, nil
}

// Delegation returns the auctioneer's delegation on an instance.
func (s *Auctioneer) Delegation(ctx context.Context, auctionHouse domain.Address) (domain.AuthorityDelegation, error) {
	d, err := s.delegations.Get(ctx, auctionHouse)
	if err != nil {
		return domain.AuthorityDelegation{}, fmt.Errorf("service: delegation %s: %w", auctionHouse, err)
	}
	return d, nil
}

// instance is everything a forwarded call needs about its auction house.
type instance struct {
	house          domain.AuctionHouse
	delegation     domain.AuthorityDelegation
	engineDelegate domain.Address
}

func (s *Auctioneer) loadHouse(ctx context.Context, addr domain.Address) (domain.AuctionHouse, error) {
	ah, err := s.registry.AuctionHouse(ctx, addr)
	if err != nil {
		return domain.AuctionHouse{}, fmt.Errorf("service: auction house %s: %w", addr, err)
	}
	return ah, nil
}

// loadInstance resolves the house and its delegation and checks the
// caller's delegate nonce against the canonical one.
func (s *Auctioneer) loadInstance(ctx context.Context, addr domain.Address, delegateNonce uint8) (instance, error) {
	ah, err := s.loadHouse(ctx, addr)
	if err != nil {
		return instance{}, err
	}
	d, err := s.delegations.Get(ctx, ah.Address)
	if errors.Is(err, domain.ErrNotFound) {
		return instance{}, fmt.Errorf("service: %s has not authorized the auctioneer: %w", ah.Address, domain.ErrUnauthorized)
	}
	if err != nil {
		return instance{}, fmt.Errorf("service: delegation %s: %w", ah.Address, err)
	}

	delegate, err := canonical(s.scheme.Auctioneer, "delegate", delegateNonce, derive.DelegateSeeds(ah.Address))
	if err != nil {
		return instance{}, err
	}
	if delegate != d.Delegate {
		return instance{}, fmt.Errorf("service: delegate %s is not the recorded %s: %w",
			delegate, d.Delegate, domain.ErrMalformedForwardRequest)
	}
	record, _, err := s.scheme.EngineDelegate(ah.Address, d.Delegate)
	if err != nil {
		return instance{}, fmt.Errorf("service: engine delegate: %w", err)
	}
	return instance{house: ah, delegation: d, engineDelegate: record}, nil
}

func (s *Auctioneer) tokenAccount(ctx context.Context, addr domain.Address) (domain.TokenAccount, domain.Address, error) {
	ta, err := s.registry.TokenAccount(ctx, addr)
	if err != nil {
		return domain.TokenAccount{}, domain.ZeroAddress, fmt.Errorf("service: token account %s: %w", addr, err)
	}
	meta, err := s.registry.Metadata(ctx, ta.Mint)
	if err != nil {
		return domain.TokenAccount{}, domain.ZeroAddress, fmt.Errorf("service: metadata of %s: %w", ta.Mint, err)
	}
	return ta, meta, nil
}

// canonical maps a non-canonical caller nonce to MalformedForwardRequest.
func canonical(d *derive.Deriver, what string, nonce uint8, seeds [][]byte) (domain.Address, error) {
	addr, err := d.Canonical(nonce, seeds...)
	if errors.Is(err, derive.ErrNonceMismatch) {
		return domain.ZeroAddress, fmt.Errorf("service: %s: %v: %w", what, err, domain.ErrMalformedForwardRequest)
	}
	if err != nil {
		return domain.ZeroAddress, fmt.Errorf("service: %s: %w", what, err)
	}
	return addr, nil
}

func find(d *derive.Deriver, what string, seeds [][]byte) (domain.Address, uint8, error) {
	addr, nonce, err := d.Find(seeds...)
	if err != nil {
		return domain.ZeroAddress, 0, fmt.Errorf("service: %s: %w", what, err)
	}
	return addr, nonce, nil
}

// withLock runs fn while holding the host lock for key. Events fn emits are
// audited and published under the lock; notifications go out after release.
func (s *Auctioneer) withLock(ctx context.Context, key string, fn func(emit func(domain.Event)) error) error {
	unlock, err := s.locks.Acquire(ctx, key, s.lockTTL)
	if err != nil {
		return fmt.Errorf("service: lock %s: %w", key, err)
	}

	var emitted []domain.Event
	err = func() error {
		defer unlock()
		return fn(func(ev domain.Event) {
			s.emit(ctx, ev)
			emitted = append(emitted, ev)
		})
	}()
	for _, ev := range emitted {
		s.notify(ctx, ev)
	}
	return err
}

func listingLockKey(addr domain.Address) string { return "listing:" + addr.String() }
func escrowLockKey(addr domain.Address) string  { return "escrow:" + addr.String() }

// freshListing reads the listing at addr, mapping absence to
// ListingNotFound.
func (s *Auctioneer) freshListing(ctx context.Context, addr domain.Address) (domain.ListingConfig, bool, error) {
	l, err := s.listings.Get(ctx, addr)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ListingConfig{}, false, nil
	}
	if err != nil {
		return domain.ListingConfig{}, false, fmt.Errorf("service: load listing %s: %w", addr, err)
	}
	return l, true, nil
}

// observe records metrics for one handler invocation.
func (s *Auctioneer) observe(op string, start time.Time, err error) {
	if s.recorder != nil {
		s.recorder.ObserveOperation(op, err, time.Since(start))
	}
}
