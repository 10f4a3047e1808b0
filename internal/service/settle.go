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

// Cancel revokes a trade state. Canceling the seller's ask closes the
// listing; canceling a bid leaves the listing and its highest bid as they
// are.
func (s *Auctioneer) Cancel(ctx context.Context, req CancelRequest) (err error) {
	start := time.Now()
	defer func() { s.observe("cancel", start, err) }()

	inst, err := s.loadInstance(ctx, req.AuctionHouse, req.DelegateNonce)
	if err != nil {
		return err
	}
	ah := inst.house
	if err := auction.CheckCancel(req.Caller, req.Wallet, ah); err != nil {
		return err
	}
	ta, err := s.registry.TokenAccount(ctx, req.TokenAccount)
	if err != nil {
		return fmt.Errorf("service: token account %s: %w", req.TokenAccount, err)
	}

	tradeState, _, err := find(s.scheme.Engine, "trade state",
		derive.TradeStateSeeds(req.Wallet, ah.Address, ta.Address, ah.TreasuryMint, ta.Mint, req.Price, req.TokenSize))
	if err != nil {
		return err
	}
	listingAddr, _, err := find(s.scheme.Auctioneer, "listing config",
		derive.ListingConfigSeeds(ta.Owner, ah.Address, ta.Address, ah.TreasuryMint, ta.Mint, req.TokenSize))
	if err != nil {
		return err
	}
	isAsk := req.Wallet == ta.Owner && req.Price == domain.AskPrice

	return s.withLock(ctx, listingLockKey(listingAddr), func(emit func(domain.Event)) error {
		var (
			listing    domain.ListingConfig
			hasListing bool
		)
		if isAsk {
			var lerr error
			listing, hasListing, lerr = s.freshListing(ctx, listingAddr)
			if lerr != nil {
				return lerr
			}
			if hasListing && !listing.IsOpen() {
				return fmt.Errorf("service: listing %s is %s: %w", listingAddr, listing.Status, domain.ErrListingClosed)
			}
		}

		accounts := forward.CancelAccounts{
			Wallet:         req.Wallet,
			TokenAccount:   ta.Address,
			TokenMint:      ta.Mint,
			Authority:      ah.Authority,
			AuctionHouse:   ah.Address,
			FeeAccount:     ah.FeeAccount,
			TradeState:     tradeState,
			Delegate:       inst.delegation.Delegate,
			EngineDelegate: inst.engineDelegate,
		}
		args := forward.CancelArgs{BuyerPrice: req.Price, TokenSize: req.TokenSize}
		if err := s.forwarder.Forward(ctx, inst.delegation, accounts, args, req.Caller); err != nil {
			return fmt.Errorf("service: cancel: %w", err)
		}

		now := s.clock.Now()
		evType := domain.EventBidCanceled
		if isAsk {
			evType = domain.EventListingCanceled
		}
		if hasListing {
			listing.Close(domain.ListingStatusCanceled, now)
			if err := s.listings.Update(ctx, listing); err != nil {
				return fmt.Errorf("service: close listing %s: %w", listingAddr, err)
			}
		}

		ev := newEvent(evType, ah, req.Wallet, now)
		ev.Listing, ev.TradeState, ev.Amount = addrPtr(listingAddr), addrPtr(tradeState), req.Price
		if isAsk {
			ev.Amount = 0
		}
		emit(ev)

		s.logger.InfoContext(ctx, "trade state canceled",
			slog.String("trade_state", tradeState.String()),
			slog.String("wallet", req.Wallet.String()),
			slog.Bool("ask", isAsk),
		)
		return nil
	})
}

// ExecuteSale settles a listing against its highest bid. Anyone may crank
// it once the window is over.
func (s *Auctioneer) ExecuteSale(ctx context.Context, req ExecuteSaleRequest) (l domain.ListingConfig, err error) {
	start := time.Now()
	defer func() { s.observe("execute_sale", start, err) }()

	inst, err := s.loadInstance(ctx, req.AuctionHouse, req.DelegateNonce)
	if err != nil {
		return domain.ListingConfig{}, err
	}
	ah := inst.house
	ta, metadata, err := s.tokenAccount(ctx, req.TokenAccount)
	if err != nil {
		return domain.ListingConfig{}, err
	}
	seller := ta.Owner

	escrow, err := canonical(s.scheme.Engine, "escrow", req.EscrowNonce, derive.EscrowSeeds(ah.Address, req.Buyer))
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
	buyerTS, _, err := find(s.scheme.Engine, "buyer trade state",
		derive.TradeStateSeeds(req.Buyer, ah.Address, ta.Address, ah.TreasuryMint, ta.Mint, req.Price, req.TokenSize))
	if err != nil {
		return domain.ListingConfig{}, err
	}
	sellerTS, _, err := find(s.scheme.Engine, "seller trade state",
		derive.TradeStateSeeds(seller, ah.Address, ta.Address, ah.TreasuryMint, ta.Mint, domain.AskPrice, req.TokenSize))
	if err != nil {
		return domain.ListingConfig{}, err
	}
	listingAddr, _, err := find(s.scheme.Auctioneer, "listing config",
		derive.ListingConfigSeeds(seller, ah.Address, ta.Address, ah.TreasuryMint, ta.Mint, req.TokenSize))
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
		if err := auction.CheckExecute(current, buyerTS, now.Unix()); err != nil {
			return err
		}

		accounts := forward.ExecuteSaleAccounts{
			Buyer:             req.Buyer,
			Seller:            seller,
			TokenAccount:      ta.Address,
			TokenMint:         ta.Mint,
			Metadata:          metadata,
			TreasuryMint:      ah.TreasuryMint,
			Escrow:            escrow,
			SellerReceipt:     orDefault(req.SellerReceipt, seller),
			BuyerReceiptToken: req.BuyerReceiptToken,
			Authority:         ah.Authority,
			AuctionHouse:      ah.Address,
			FeeAccount:        ah.FeeAccount,
			Treasury:          ah.Treasury,
			BuyerTradeState:   buyerTS,
			SellerTradeState:  sellerTS,
			FreeTradeState:    freeTS,
			Delegate:          inst.delegation.Delegate,
			EngineDelegate:    inst.engineDelegate,
			ProgramAsSigner:   pas,
		}
		args := forward.ExecuteSaleArgs{
			EscrowNonce:          req.EscrowNonce,
			FreeTradeStateNonce:  req.FreeTradeStateNonce,
			ProgramAsSignerNonce: req.ProgramAsSignerNonce,
			BuyerPrice:           req.Price,
			TokenSize:            req.TokenSize,
		}
		if err := s.forwarder.Forward(ctx, inst.delegation, accounts, args, req.Caller); err != nil {
			return fmt.Errorf("service: execute sale: %w", err)
		}

		current.Close(domain.ListingStatusSold, now)
		if err := s.listings.Update(ctx, current); err != nil {
			return fmt.Errorf("service: close listing %s: %w", listingAddr, err)
		}
		l = current

		ev := newEvent(domain.EventSaleExecuted, ah, req.Buyer, now)
		ev.Listing, ev.TradeState, ev.Amount = addrPtr(listingAddr), addrPtr(buyerTS), req.Price
		emit(ev)
		return nil
	})
	if err != nil {
		return domain.ListingConfig{}, err
	}

	s.logger.InfoContext(ctx, "sale executed",
		slog.String("listing", l.Address.String()),
		slog.String("buyer", req.Buyer.String()),
		slog.Uint64("price", req.Price),
	)
	return l, nil
}

// Withdraw moves funds out of a wallet's escrow. The engine rejects
// over-withdrawal.
func (s *Auctioneer) Withdraw(ctx context.Context, req WithdrawRequest) (err error) {
	start := time.Now()
	defer func() { s.observe("withdraw", start, err) }()

	wallet := orDefault(req.Wallet, req.Caller.Address)
	inst, err := s.loadInstance(ctx, req.AuctionHouse, req.DelegateNonce)
	if err != nil {
		return err
	}
	ah := inst.house
	if !req.Caller.Signed || (req.Caller.Address != wallet && req.Caller.Address != ah.Authority) {
		return fmt.Errorf("service: %s may not withdraw for %s: %w", req.Caller.Address, wallet, domain.ErrUnauthorized)
	}
	escrow, err := canonical(s.scheme.Engine, "escrow", req.EscrowNonce, derive.EscrowSeeds(ah.Address, wallet))
	if err != nil {
		return err
	}

	return s.withLock(ctx, escrowLockKey(escrow), func(emit func(domain.Event)) error {
		accounts := forward.WithdrawAccounts{
			Wallet:         wallet,
			ReceiptAccount: orDefault(req.ReceiptAccount, wallet),
			Escrow:         escrow,
			TreasuryMint:   ah.TreasuryMint,
			Authority:      ah.Authority,
			AuctionHouse:   ah.Address,
			FeeAccount:     ah.FeeAccount,
			Delegate:       inst.delegation.Delegate,
			EngineDelegate: inst.engineDelegate,
		}
		args := forward.WithdrawArgs{EscrowNonce: req.EscrowNonce, Amount: req.Amount}
		if err := s.forwarder.Forward(ctx, inst.delegation, accounts, args, req.Caller); err != nil {
			return fmt.Errorf("service: withdraw: %w", err)
		}

		ev := newEvent(domain.EventWithdrawn, ah, wallet, s.clock.Now())
		ev.Amount = req.Amount
		emit(ev)
		return nil
	})
}
