package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/auctioneer/internal/auction"
	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// Authorize records the auctioneer's delegate for an instance. Only the
// instance authority may call it, and only once.
func (s *Auctioneer) Authorize(ctx context.Context, req AuthorizeRequest) (d domain.AuthorityDelegation, err error) {
	start := time.Now()
	defer func() { s.observe("authorize", start, err) }()

	ah, err := s.loadHouse(ctx, req.AuctionHouse)
	if err != nil {
		return domain.AuthorityDelegation{}, err
	}
	if err := auction.CheckAuthority(req.Caller, ah); err != nil {
		return domain.AuthorityDelegation{}, err
	}
	delegate, nonce, err := s.scheme.Delegate(ah.Address)
	if err != nil {
		return domain.AuthorityDelegation{}, fmt.Errorf("service: derive delegate: %w", err)
	}

	d = domain.AuthorityDelegation{
		AuctionHouse: ah.Address,
		Delegate:     delegate,
		Nonce:        nonce,
		Scopes:       domain.NewScopeSet(req.Scopes.Scopes()...),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.delegations.Create(ctx, d); err != nil {
		return domain.AuthorityDelegation{}, fmt.Errorf("service: authorize %s: %w", ah.Address, err)
	}

	s.logger.InfoContext(ctx, "auctioneer authorized",
		slog.String("auction_house", ah.Address.String()),
		slog.String("delegate", delegate.String()),
		slog.Int("scopes", d.Scopes.Len()),
	)
	ev := newEvent(domain.EventAuthorized, ah, req.Caller.Address, d.CreatedAt)
	s.emit(ctx, ev)
	s.notify(ctx, ev)
	return d, nil
}
