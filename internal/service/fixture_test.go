package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/cache/local"
	"github.com/alanyoungcy/auctioneer/internal/derive"
	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/engine/memory"
	"github.com/alanyoungcy/auctioneer/internal/forward"
	"github.com/alanyoungcy/auctioneer/internal/service"
	memstore "github.com/alanyoungcy/auctioneer/internal/store/memory"
)

func fill(b byte) domain.Address {
	var a domain.Address
	for i := range a {
		a[i] = b
	}
	return a
}

var (
	creator      = fill(0x01)
	authority    = fill(0x02)
	treasuryMint = fill(0x10)
	itemMint     = fill(0x20)
	seller       = fill(0x30)
	itemAccount  = fill(0x31)
	buyerA       = fill(0x40)
	buyerB       = fill(0x50)
	stranger     = fill(0x60)
)

func signed(a domain.Address) domain.Caller { return domain.Caller{Address: a, Signed: true} }

type fixture struct {
	t        *testing.T
	ctx      context.Context
	now      time.Time
	scheme   derive.Scheme
	engine   *memory.Engine
	listings *memstore.ListingStore
	audit    *memstore.AuditStore
	bus      *local.SignalBus
	locks    *local.LockManager
	svc      *service.Auctioneer
	house    domain.AuctionHouse
}

func newFixture(t *testing.T, scopes ...domain.Scope) *fixture {
	t.Helper()
	if len(scopes) == 0 {
		scopes = domain.AllScopes()
	}
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		now:      time.Unix(1_700_000_000, 0).UTC(),
		scheme:   derive.NewScheme(fill(0xA1), fill(0xE1)),
		listings: memstore.NewListingStore(),
		audit:    memstore.NewAuditStore(),
		bus:      local.NewSignalBus(),
		locks:    local.NewLockManager(),
	}
	f.engine = memory.New(f.scheme)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fwd := forward.New(f.engine, nil, logger)
	f.svc = service.New(f.scheme, f.engine, fwd, f.listings, memstore.NewDelegationStore(),
		f.audit, f.locks, f.bus, logger).
		WithClock(domain.ClockFunc(func() time.Time { return f.now }))

	f.engine.AddMint(domain.Mint{Address: treasuryMint, Decimals: 2}, fill(0x11))
	f.engine.AddMint(domain.Mint{Address: itemMint}, fill(0x21))
	f.engine.AddTokenAccount(domain.TokenAccount{Address: itemAccount, Owner: seller, Mint: itemMint, Amount: 1})
	f.engine.Fund(buyerA, 10_000)
	f.engine.Fund(buyerB, 10_000)

	house, err := f.engine.CreateAuctionHouse(creator, authority, treasuryMint)
	require.NoError(t, err)
	f.house = house

	delegate, _, err := f.scheme.Delegate(house.Address)
	require.NoError(t, err)
	require.NoError(t, f.engine.DelegateAuctioneer(house.Address, delegate, domain.AllScopes()...))

	_, err = f.svc.Authorize(f.ctx, service.AuthorizeRequest{
		AuctionHouse: house.Address,
		Scopes:       domain.NewScopeSet(scopes...),
		Caller:       signed(authority),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) nonce(_ domain.Address, n uint8, err error) uint8 {
	f.t.Helper()
	require.NoError(f.t, err)
	return n
}

func (f *fixture) addr(a domain.Address, _ uint8, err error) domain.Address {
	f.t.Helper()
	require.NoError(f.t, err)
	return a
}

func (f *fixture) delegateNonce() uint8 {
	return f.nonce(f.scheme.Delegate(f.house.Address))
}

func (f *fixture) tradeState(wallet domain.Address, price uint64) domain.Address {
	return f.addr(f.scheme.TradeState(wallet, f.house.Address, itemAccount, treasuryMint, itemMint, price, 1))
}

func (f *fixture) listingAddress() domain.Address {
	return f.addr(f.scheme.ListingConfig(seller, f.house.Address, itemAccount, treasuryMint, itemMint, 1))
}

func (f *fixture) sellRequest(minBid uint64, timed *domain.TimedAuctionArgs) service.SellRequest {
	ah := f.house.Address
	return service.SellRequest{
		AuctionHouse:         ah,
		TokenAccount:         itemAccount,
		TradeStateNonce:      f.nonce(f.scheme.TradeState(seller, ah, itemAccount, treasuryMint, itemMint, domain.AskPrice, 1)),
		FreeTradeStateNonce:  f.nonce(f.scheme.TradeState(seller, ah, itemAccount, treasuryMint, itemMint, domain.FreePrice, 1)),
		ProgramAsSignerNonce: f.nonce(f.scheme.ProgramAsSigner()),
		DelegateNonce:        f.delegateNonce(),
		TokenSize:            1,
		Timed:                timed,
		MinBid:               minBid,
		Caller:               signed(seller),
	}
}

func (f *fixture) sell(minBid uint64, timed *domain.TimedAuctionArgs) domain.ListingConfig {
	f.t.Helper()
	l, err := f.svc.Sell(f.ctx, f.sellRequest(minBid, timed))
	require.NoError(f.t, err)
	return l
}

func (f *fixture) buyRequest(buyer domain.Address, price uint64) service.BuyRequest {
	ah := f.house.Address
	return service.BuyRequest{
		AuctionHouse:    ah,
		TokenAccount:    itemAccount,
		TradeStateNonce: f.nonce(f.scheme.TradeState(buyer, ah, itemAccount, treasuryMint, itemMint, price, 1)),
		EscrowNonce:     f.nonce(f.scheme.Escrow(ah, buyer)),
		DelegateNonce:   f.delegateNonce(),
		Price:           price,
		TokenSize:       1,
		Caller:          signed(buyer),
	}
}

func (f *fixture) buy(buyer domain.Address, price uint64) (domain.ListingConfig, error) {
	return f.svc.Buy(f.ctx, f.buyRequest(buyer, price))
}

func (f *fixture) executeRequest(buyer domain.Address, price uint64) service.ExecuteSaleRequest {
	ah := f.house.Address
	return service.ExecuteSaleRequest{
		AuctionHouse:         ah,
		Buyer:                buyer,
		TokenAccount:         itemAccount,
		BuyerReceiptToken:    fill(0x70),
		EscrowNonce:          f.nonce(f.scheme.Escrow(ah, buyer)),
		FreeTradeStateNonce:  f.nonce(f.scheme.TradeState(seller, ah, itemAccount, treasuryMint, itemMint, domain.FreePrice, 1)),
		ProgramAsSignerNonce: f.nonce(f.scheme.ProgramAsSigner()),
		DelegateNonce:        f.delegateNonce(),
		Price:                price,
		TokenSize:            1,
		Caller:               signed(stranger),
	}
}

func (f *fixture) execute(buyer domain.Address, price uint64) (domain.ListingConfig, error) {
	return f.svc.ExecuteSale(f.ctx, f.executeRequest(buyer, price))
}

func (f *fixture) cancelRequest(wallet domain.Address, price uint64, caller domain.Address) service.CancelRequest {
	return service.CancelRequest{
		AuctionHouse:  f.house.Address,
		Wallet:        wallet,
		TokenAccount:  itemAccount,
		DelegateNonce: f.delegateNonce(),
		Price:         price,
		TokenSize:     1,
		Caller:        signed(caller),
	}
}

func (f *fixture) escrow(wallet domain.Address) domain.Address {
	return f.addr(f.scheme.Escrow(f.house.Address, wallet))
}
