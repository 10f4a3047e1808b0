package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

func newEvent(typ domain.EventType, ah domain.AuctionHouse, wallet domain.Address, at time.Time) domain.Event {
	return domain.Event{
		ID:           uuid.NewString(),
		Type:         typ,
		AuctionHouse: ah.Address,
		Wallet:       wallet,
		TreasuryMint: ah.TreasuryMint,
		At:           at,
	}
}

func addrPtr(a domain.Address) *domain.Address { return &a }

// emit audits and publishes. The operation has already been applied, so
// failures here are only logged.
func (s *Auctioneer) emit(ctx context.Context, ev domain.Event) {
	detail := map[string]any{
		"id":            ev.ID,
		"auction_house": ev.AuctionHouse.String(),
		"wallet":        ev.Wallet.String(),
		"amount":        ev.Amount,
	}
	if ev.Listing != nil {
		detail["listing"] = ev.Listing.String()
	}
	if ev.TradeState != nil {
		detail["trade_state"] = ev.TradeState.String()
	}
	if err := s.audit.Log(ctx, string(ev.Type), detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.WarnContext(ctx, "marshal event failed", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelAuctionEvents, payload); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, domain.StreamAuctionEvents, payload); err != nil {
		s.logger.WarnContext(ctx, "stream append failed",
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}

	if s.recorder != nil {
		s.recorder.ObserveEvent(ev.Type)
	}
}

// notify hands ev to the external notifier.
func (s *Auctioneer) notify(ctx context.Context, ev domain.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyEvent(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}
