package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/auctioneer/internal/auction"
	"github.com/alanyoungcy/auctioneer/internal/derive"
	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/forward"
)

// Buy places the caller's bid on an open listing and raises its highest
// bid.
func (s *Auctioneer) Buy(ctx context.Context, req BuyRequest) (l domain.ListingConfig, err error) {
	start := time.Now()
	defer func() { s.observe("buy", start, err) }()

	if !req.Caller.Signed {
		return domain.ListingConfig{}, fmt.Errorf("service: buyer %s did not sign: %w", req.Caller.Address, domain.ErrUnauthorized)
	}
	wallet := req.Caller.Address

	inst, err := s.loadInstance(ctx, req.AuctionHouse, req.DelegateNonce)
	if err != nil {
		return domain.ListingConfig{}, err
	}
	ah := inst.house
	ta, metadata, err := s.tokenAccount(ctx, req.TokenAccount)
	if err != nil {
		return domain.ListingConfig{}, err
	}
	currency, err := s.registry.Mint(ctx, ah.TreasuryMint)
	if err != nil {
		return domain.ListingConfig{}, fmt.Errorf("service: treasury mint %s: %w", ah.TreasuryMint, err)
	}

	escrow, err := canonical(s.scheme.Engine, "escrow", req.EscrowNonce, derive.EscrowSeeds(ah.Address, wallet))
	if err != nil {
		return domain.ListingConfig{}, err
	}
	buyerTS, err := canonical(s.scheme.Engine, "buyer trade state", req.TradeStateNonce,
		derive.TradeStateSeeds(wallet, ah.Address, ta.Address, ah.TreasuryMint, ta.Mint, req.Price, req.TokenSize))
	if err != nil {
		return domain.ListingConfig{}, err
	}
	listingAddr, _, err := find(s.scheme.Auctioneer, "listing config",
		derive.ListingConfigSeeds(ta.Owner, ah.Address, ta.Address, ah.TreasuryMint, ta.Mint, req.TokenSize))
	if err != nil {
		return domain.ListingConfig{}, err
	}

	err = s.withLock(ctx, listingLockKey(listingAddr), func(emit func(domain.Event)) error {
		current, ok, err := s.freshListing(ctx, listingAddr)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("service: listing %s: %w", listingAddr, domain.ErrListingNotFound)
		}

		now := s.clock.Now()
		if err := auction.CheckBid(current, req.Price, currency.Decimals, now.Unix()); err != nil {
			return err
		}

		accounts := forward.BuyAccounts{
			Wallet:            wallet,
			PaymentAccount:    orDefault(req.PaymentAccount, wallet),
			TransferAuthority: orDefault(req.TransferAuthority, wallet),
			TreasuryMint:      ah.TreasuryMint,
			TokenAccount:      ta.Address,
			Metadata:          metadata,
			Escrow:            escrow,
			Authority:         ah.Authority,
			AuctionHouse:      ah.Address,
			FeeAccount:        ah.FeeAccount,
			BuyerTradeState:   buyerTS,
			Delegate:          inst.delegation.Delegate,
			EngineDelegate:    inst.engineDelegate,
		}
		args := forward.BuyArgs{
			TradeStateNonce: req.TradeStateNonce,
			EscrowNonce:     req.EscrowNonce,
			BuyerPrice:      req.Price,
			TokenSize:       req.TokenSize,
		}
		if err := s.forwarder.Forward(ctx, inst.delegation, accounts, args, req.Caller); err != nil {
			return fmt.Errorf("service: buy: %w", err)
		}

		if err := auction.ApplyBid(&current, domain.Bid{Amount: req.Price, BuyerTradeState: buyerTS}, now); err != nil {
			return err
		}
		if err := s.listings.Update(ctx, current); err != nil {
			return fmt.Errorf("service: record bid on %s: %w", listingAddr, err)
		}
		l = current

		ev := newEvent(domain.EventBidPlaced, ah, wallet, now)
		ev.Listing, ev.TradeState, ev.Amount = addrPtr(listingAddr), addrPtr(buyerTS), req.Price
		emit(ev)
		return nil
	})
	if err != nil {
		return domain.ListingConfig{}, err
	}

	s.logger.InfoContext(ctx, "bid accepted",
		slog.String("listing", l.Address.String()),
		slog.String("buyer", wallet.String()),
		slog.Uint64("amount", req.Price),
	)
	return l, nil
}

// Deposit tops up the caller's escrow. No listing is involved.
func (s *Auctioneer) Deposit(ctx context.Context, req DepositRequest) (err error) {
	start := time.Now()
	defer func() { s.observe("deposit", start, err) }()

	if !req.Caller.Signed {
		return fmt.Errorf("service: depositor %s did not sign: %w", req.Caller.Address, domain.ErrUnauthorized)
	}
	wallet := req.Caller.Address

	inst, err := s.loadInstance(ctx, req.AuctionHouse, req.DelegateNonce)
	if err != nil {
		return err
	}
	ah := inst.house
	escrow, err := canonical(s.scheme.Engine, "escrow", req.EscrowNonce, derive.EscrowSeeds(ah.Address, wallet))
	if err != nil {
		return err
	}

	return s.withLock(ctx, escrowLockKey(escrow), func(emit func(domain.Event)) error {
		accounts := forward.DepositAccounts{
			Wallet:            wallet,
			PaymentAccount:    orDefault(req.PaymentAccount, wallet),
			TransferAuthority: orDefault(req.TransferAuthority, wallet),
			Escrow:            escrow,
			TreasuryMint:      ah.TreasuryMint,
			Authority:         ah.Authority,
			AuctionHouse:      ah.Address,
			FeeAccount:        ah.FeeAccount,
			Delegate:          inst.delegation.Delegate,
			EngineDelegate:    inst.engineDelegate,
		}
		args := forward.DepositArgs{EscrowNonce: req.EscrowNonce, Amount: req.Amount}
		if err := s.forwarder.Forward(ctx, inst.delegation, accounts, args, req.Caller); err != nil {
			return fmt.Errorf("service: deposit: %w", err)
		}

		ev := newEvent(domain.EventDeposited, ah, wallet, s.clock.Now())
		ev.Amount = req.Amount
		emit(ev)
		return nil
	})
}
