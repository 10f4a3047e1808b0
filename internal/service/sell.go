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

// Sell opens a listing: it creates the seller's ask trade state on the
// engine, delegating the tokens to the program signer, and records the
// ListingConfig.
func (s *Auctioneer) Sell(ctx context.Context, req SellRequest) (l domain.ListingConfig, err error) {
	start := time.Now()
	defer func() { s.observe("sell", start, err) }()

	inst, err := s.loadInstance(ctx, req.AuctionHouse, req.DelegateNonce)
	if err != nil {
		return domain.ListingConfig{}, err
	}
	ah := inst.house
	ta, metadata, err := s.tokenAccount(ctx, req.TokenAccount)
	if err != nil {
		return domain.ListingConfig{}, err
	}
	if err := auction.CheckOwner(req.Caller, ta); err != nil {
		return domain.ListingConfig{}, err
	}
	seller := ta.Owner

	sellerTS, err := canonical(s.scheme.Engine, "seller trade state", req.TradeStateNonce,
		derive.TradeStateSeeds(seller, ah.Address, ta.Address, ah.TreasuryMint, ta.Mint, domain.AskPrice, req.TokenSize))
	if err != nil {
		return domain.ListingConfig{}, err
	}
	freeTS, err := canonical(s.scheme.Engine, "free trade state", req.FreeTradeStateNonce,
		derive.TradeStateSeeds(seller, ah.Address, ta.Address, ah.TreasuryMint, ta.Mint, domain.FreePrice, req.TokenSize))
	if err != nil {
		return domain.ListingConfig{}, err
	}
	pas, err := canonical(s.scheme.Engine, "program as signer", req.ProgramAsSignerNonce, derive.ProgramAsSignerSeeds())
	if err != nil {
		return domain.ListingConfig{}, err
	}
	listingAddr, listingNonce, err := find(s.scheme.Auctioneer, "listing config",
		derive.ListingConfigSeeds(seller, ah.Address, ta.Address, ah.TreasuryMint, ta.Mint, req.TokenSize))
	if err != nil {
		return domain.ListingConfig{}, err
	}

	err = s.withLock(ctx, listingLockKey(listingAddr), func(emit func(domain.Event)) error {
		existing, ok, err := s.freshListing(ctx, listingAddr)
		if err != nil {
			return err
		}
		if ok && existing.IsOpen() {
			return fmt.Errorf("service: listing %s is open: %w", listingAddr, domain.ErrAlreadyExists)
		}

		now := s.clock.Now()
		l, err = auction.Open(auction.OpenParams{
			Address:      listingAddr,
			Nonce:        listingNonce,
			AuctionHouse: ah.Address,
			Seller:       seller,
			TokenAccount: ta.Address,
			TokenMint:    ta.Mint,
			TreasuryMint: ah.TreasuryMint,
			TokenSize:    req.TokenSize,
			MinBid:       req.MinBid,
			Timed:        req.Timed,
		}, now)
		if err != nil {
			return err
		}

		accounts := forward.SellAccounts{
			Wallet:           seller,
			TokenAccount:     ta.Address,
			Metadata:         metadata,
			Authority:        ah.Authority,
			AuctionHouse:     ah.Address,
			FeeAccount:       ah.FeeAccount,
			SellerTradeState: sellerTS,
			FreeTradeState:   freeTS,
			Delegate:         inst.delegation.Delegate,
			EngineDelegate:   inst.engineDelegate,
			ProgramAsSigner:  pas,
		}
		args := forward.SellArgs{
			TradeStateNonce:      req.TradeStateNonce,
			FreeTradeStateNonce:  req.FreeTradeStateNonce,
			ProgramAsSignerNonce: req.ProgramAsSignerNonce,
			BuyerPrice:           domain.AskPrice,
			TokenSize:            req.TokenSize,
		}
		if err := s.forwarder.Forward(ctx, inst.delegation, accounts, args, req.Caller); err != nil {
			return fmt.Errorf("service: sell: %w", err)
		}
		if err := s.listings.Create(ctx, l); err != nil {
			return fmt.Errorf("service: record listing %s: %w", listingAddr, err)
		}

		ev := newEvent(domain.EventListingCreated, ah, seller, now)
		ev.Listing, ev.TradeState, ev.Amount = addrPtr(listingAddr), addrPtr(sellerTS), req.MinBid
		emit(ev)
		return nil
	})
	if err != nil {
		return domain.ListingConfig{}, err
	}

	s.logger.InfoContext(ctx, "listing opened",
		slog.String("listing", l.Address.String()),
		slog.String("seller", seller.String()),
		slog.Uint64("min_bid", l.MinBid),
		slog.Bool("timed", l.Window != nil),
	)
	return l, nil
}
