package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/cache/local"
	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/engine/memory"
	"github.com/alanyoungcy/auctioneer/internal/service"
)

func ptr[T any](v T) *T { return &v }

func TestAuthorize(t *testing.T) {
	f := newFixture(t)

	d, err := f.svc.Delegation(f.ctx, f.house.Address)
	require.NoError(t, err)
	want, nonce, err := f.scheme.Delegate(f.house.Address)
	require.NoError(t, err)
	assert.Equal(t, want, d.Delegate)
	assert.Equal(t, nonce, d.Nonce)
	assert.True(t, d.CheckScope(domain.ScopeSell))

	_, err = f.svc.Authorize(f.ctx, service.AuthorizeRequest{AuctionHouse: f.house.Address, Caller: signed(authority)})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestAuthorizeRequiresAuthority(t *testing.T) {
	f := newFixture(t)
	other, err := f.engine.CreateAuctionHouse(fill(0x03), authority, itemMint)
	require.NoError(t, err)

	_, err = f.svc.Authorize(f.ctx, service.AuthorizeRequest{AuctionHouse: other.Address, Caller: signed(stranger)})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.Authorize(f.ctx, service.AuthorizeRequest{AuctionHouse: other.Address, Caller: domain.Caller{Address: authority}})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	d, err := f.svc.Authorize(f.ctx, service.AuthorizeRequest{AuctionHouse: other.Address, Caller: signed(authority)})
	require.NoError(t, err)
	assert.Zero(t, d.Scopes.Len())
}

func TestSellCreatesListing(t *testing.T) {
	f := newFixture(t)

	l := f.sell(100, nil)
	assert.Equal(t, f.listingAddress(), l.Address)
	assert.Equal(t, uint64(0), l.HighestBid.Amount)
	assert.False(t, l.HasBid())
	assert.True(t, f.engine.HasTradeState(f.tradeState(seller, domain.AskPrice)))

	ta, err := f.engine.TokenAccount(f.ctx, itemAccount)
	require.NoError(t, err)
	pas, _, err := f.scheme.ProgramAsSigner()
	require.NoError(t, err)
	assert.Equal(t, pas, ta.Delegate)

	stored, err := f.svc.Listing(f.ctx, l.Address)
	require.NoError(t, err)
	assert.Equal(t, l.Address, stored.Address)

	_, err = f.svc.Sell(f.ctx, f.sellRequest(100, nil))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestSellRejections(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Sell(f.ctx, f.sellRequest(0, nil))
	assert.ErrorIs(t, err, domain.ErrMinBidMustNotBeZero)

	past := f.now.Unix() - 1
	_, err = f.svc.Sell(f.ctx, f.sellRequest(10, &domain.TimedAuctionArgs{StartTime: &past, Duration: "12h"}))
	assert.ErrorIs(t, err, domain.ErrAuctionStartTimeInThePast)

	_, err = f.svc.Sell(f.ctx, f.sellRequest(10, &domain.TimedAuctionArgs{Duration: "3h"}))
	assert.ErrorIs(t, err, domain.ErrInvalidAuctionDuration)

	req := f.sellRequest(10, nil)
	req.Caller = signed(stranger)
	_, err = f.svc.Sell(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	req = f.sellRequest(10, nil)
	req.TradeStateNonce++
	_, err = f.svc.Sell(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrMalformedForwardRequest)

	req = f.sellRequest(10, nil)
	req.DelegateNonce++
	_, err = f.svc.Sell(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrMalformedForwardRequest)

	assert.False(t, f.engine.HasTradeState(f.tradeState(seller, domain.AskPrice)))
	_, err = f.svc.Listing(f.ctx, f.listingAddress())
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestBidStepScenario(t *testing.T) {
	f := newFixture(t)
	f.sell(100, nil)

	l, err := f.buy(buyerA, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), l.HighestBid.Amount)

	_, err = f.buy(buyerB, 100)
	assert.ErrorIs(t, err, domain.ErrBidStepTooSmall)

	l, err = f.buy(buyerB, 101)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), l.HighestBid.Amount)
	assert.Equal(t, f.tradeState(buyerB, 101), l.HighestBid.BuyerTradeState)

	_, err = f.buy(buyerA, 100)
	assert.ErrorIs(t, err, domain.ErrBidTooLow)

	_, err = f.buy(buyerA, 99)
	assert.ErrorIs(t, err, domain.ErrBidTooLow)

	stored, err := f.svc.Listing(f.ctx, l.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), stored.HighestBid.Amount)
	assert.Equal(t, uint64(101), f.engine.Balance(f.escrow(buyerB)))
}

func TestBuyRequiresSignedCaller(t *testing.T) {
	f := newFixture(t)
	f.sell(100, nil)

	req := f.buyRequest(buyerA, 100)
	req.Caller.Signed = false
	_, err := f.svc.Buy(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestBuyUnknownListing(t *testing.T) {
	f := newFixture(t)
	_, err := f.buy(buyerA, 100)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestExecuteSaleRequiresHighestBidder(t *testing.T) {
	f := newFixture(t)
	f.sell(100, nil)
	_, err := f.buy(buyerA, 100)
	require.NoError(t, err)
	_, err = f.buy(buyerB, 150)
	require.NoError(t, err)

	_, err = f.execute(buyerA, 100)
	assert.ErrorIs(t, err, domain.ErrNotHighestBidder)

	_, err = f.execute(buyerA, 150)
	assert.ErrorIs(t, err, domain.ErrNotHighestBidder)

	l, err := f.execute(buyerB, 150)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusSold, l.Status)
	require.NotNil(t, l.ClosedAt)

	assert.Equal(t, uint64(150), f.engine.Balance(seller))
	receipt, err := f.engine.TokenAccount(f.ctx, fill(0x70))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Amount)
	assert.Equal(t, buyerB, receipt.Owner)
	assert.False(t, f.engine.HasTradeState(f.tradeState(seller, domain.AskPrice)))

	_, err = f.execute(buyerB, 150)
	assert.ErrorIs(t, err, domain.ErrListingClosed)
	_, err = f.buy(buyerA, 200)
	assert.ErrorIs(t, err, domain.ErrListingClosed)
}

func TestTimedAuctionBoundaries(t *testing.T) {
	f := newFixture(t)
	start := f.now.Unix() + 60
	l := f.sell(10, &domain.TimedAuctionArgs{StartTime: ptr(start), Duration: "12h"})
	require.NotNil(t, l.Window)
	end := l.Window.End
	assert.Equal(t, start+12*3600, end)

	_, err := f.buy(buyerA, 10)
	assert.ErrorIs(t, err, domain.ErrAuctionNotStarted)

	f.now = time.Unix(start, 0)
	_, err = f.buy(buyerA, 10)
	require.NoError(t, err)

	f.now = time.Unix(end-1, 0)
	_, err = f.execute(buyerA, 10)
	assert.ErrorIs(t, err, domain.ErrAuctionActive)

	f.now = time.Unix(end, 0)
	_, err = f.buy(buyerB, 20)
	assert.ErrorIs(t, err, domain.ErrAuctionEnded)
	_, err = f.execute(buyerA, 10)
	assert.ErrorIs(t, err, domain.ErrAuctionActive)

	f.now = time.Unix(end+1, 0)
	sold, err := f.execute(buyerA, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusSold, sold.Status)
}

func TestCancelAsk(t *testing.T) {
	f := newFixture(t)
	f.sell(100, nil)

	err := f.svc.Cancel(f.ctx, f.cancelRequest(seller, domain.AskPrice, stranger))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, f.svc.Cancel(f.ctx, f.cancelRequest(seller, domain.AskPrice, seller)))
	l, err := f.svc.Listing(f.ctx, f.listingAddress())
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusCanceled, l.Status)
	assert.False(t, f.engine.HasTradeState(f.tradeState(seller, domain.AskPrice)))

	err = f.svc.Cancel(f.ctx, f.cancelRequest(seller, domain.AskPrice, seller))
	assert.ErrorIs(t, err, domain.ErrListingClosed)

	relisted := f.sell(200, nil)
	assert.Equal(t, domain.ListingStatusOpen, relisted.Status)
	assert.Equal(t, uint64(200), relisted.MinBid)
}

func TestCancelByAuthority(t *testing.T) {
	f := newFixture(t)
	f.sell(100, nil)
	require.NoError(t, f.svc.Cancel(f.ctx, f.cancelRequest(seller, domain.AskPrice, authority)))
}

func TestCancelBidKeepsListing(t *testing.T) {
	f := newFixture(t)
	f.sell(100, nil)
	_, err := f.buy(buyerA, 100)
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(f.ctx, f.cancelRequest(buyerA, 100, buyerA)))
	assert.False(t, f.engine.HasTradeState(f.tradeState(buyerA, 100)))

	l, err := f.svc.Listing(f.ctx, f.listingAddress())
	require.NoError(t, err)
	assert.True(t, l.IsOpen())
	assert.Equal(t, uint64(100), l.HighestBid.Amount)

	err = f.svc.Cancel(f.ctx, f.cancelRequest(buyerA, 100, buyerA))
	var engErr *domain.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, memory.CodeTradeStateNotFound, engErr.Code)
}

func TestDepositAndWithdraw(t *testing.T) {
	f := newFixture(t)
	ah := f.house.Address
	escrowNonce := f.nonce(f.scheme.Escrow(ah, buyerA))

	require.NoError(t, f.svc.Deposit(f.ctx, service.DepositRequest{
		AuctionHouse:  ah,
		EscrowNonce:   escrowNonce,
		DelegateNonce: f.delegateNonce(),
		Amount:        500,
		Caller:        signed(buyerA),
	}))
	assert.Equal(t, uint64(500), f.engine.Balance(f.escrow(buyerA)))
	assert.Equal(t, uint64(9_500), f.engine.Balance(buyerA))

	withdraw := service.WithdrawRequest{
		AuctionHouse:  ah,
		EscrowNonce:   escrowNonce,
		DelegateNonce: f.delegateNonce(),
		Amount:        200,
		Caller:        signed(buyerA),
	}
	require.NoError(t, f.svc.Withdraw(f.ctx, withdraw))
	assert.Equal(t, uint64(300), f.engine.Balance(f.escrow(buyerA)))

	withdraw.Amount = 301
	err := f.svc.Withdraw(f.ctx, withdraw)
	var engErr *domain.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, memory.CodeInsufficientFunds, engErr.Code)

	withdraw.Amount = 1
	withdraw.Caller = signed(stranger)
	withdraw.Wallet = buyerA
	assert.ErrorIs(t, f.svc.Withdraw(f.ctx, withdraw), domain.ErrUnauthorized)

	withdraw.Caller = signed(authority)
	require.NoError(t, f.svc.Withdraw(f.ctx, withdraw))
}

func TestMissingScopeBlocksForward(t *testing.T) {
	f := newFixture(t, domain.ScopeSell)
	f.sell(100, nil)

	_, err := f.buy(buyerA, 100)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	l, err := f.svc.Listing(f.ctx, f.listingAddress())
	require.NoError(t, err)
	assert.False(t, l.HasBid())
}

func TestUnauthorizedInstance(t *testing.T) {
	f := newFixture(t)
	other, err := f.engine.CreateAuctionHouse(fill(0x04), authority, treasuryMint)
	require.NoError(t, err)

	req := f.sellRequest(10, nil)
	req.AuctionHouse = other.Address
	_, err = f.svc.Sell(f.ctx, req)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestEventsAndAudit(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	events, err := f.bus.Subscribe(ctx, domain.ChannelAuctionEvents)
	require.NoError(t, err)

	l := f.sell(100, nil)

	select {
	case raw := <-events:
		var ev domain.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, domain.EventListingCreated, ev.Type)
		require.NotNil(t, ev.Listing)
		assert.Equal(t, l.Address, *ev.Listing)
		assert.Equal(t, seller, ev.Wallet)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	stream, err := f.bus.StreamRead(f.ctx, domain.StreamAuctionEvents, "0", 0)
	require.NoError(t, err)
	assert.Len(t, stream, 2)

	entries, err := f.audit.List(f.ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, string(domain.EventListingCreated), entries[0].Event)
	assert.Equal(t, string(domain.EventAuthorized), entries[1].Event)
}

func TestListingsBySeller(t *testing.T) {
	f := newFixture(t)
	l := f.sell(100, nil)

	got, err := f.svc.ListingsBySeller(f.ctx, seller, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, l.Address, got[0].Address)
}

// lockCheckingNotifier records whether the listing lock was free when each
// notification arrived.
type lockCheckingNotifier struct {
	locks *local.LockManager
	free  map[domain.EventType]bool
}

func (n *lockCheckingNotifier) NotifyEvent(ctx context.Context, ev domain.Event) error {
	if ev.Listing == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	release, err := n.locks.Acquire(ctx, "listing:"+ev.Listing.String(), time.Second)
	if err == nil {
		release()
	}
	n.free[ev.Type] = err == nil
	return nil
}

func TestNotificationsRunAfterListingLockIsReleased(t *testing.T) {
	f := newFixture(t)
	n := &lockCheckingNotifier{locks: f.locks, free: make(map[domain.EventType]bool)}
	f.svc.WithNotifier(n)

	f.sell(100, nil)
	_, err := f.buy(buyerA, 100)
	require.NoError(t, err)

	assert.Equal(t, map[domain.EventType]bool{
		domain.EventListingCreated: true,
		domain.EventBidPlaced:      true,
	}, n.free)
}

func TestEngineRejectedBuyLeavesListingUntouched(t *testing.T) {
	f := newFixture(t)
	f.sell(100, nil)
	_, err := f.buy(buyerA, 100)
	require.NoError(t, err)

	_, err = f.buy(stranger, 5000)
	var engErr *domain.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, memory.CodeInsufficientFunds, engErr.Code)

	l, err := f.svc.Listing(f.ctx, f.listingAddress())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), l.HighestBid.Amount)
	assert.Equal(t, f.tradeState(buyerA, 100), l.HighestBid.BuyerTradeState)
	assert.False(t, f.engine.HasTradeState(f.tradeState(stranger, 5000)))
}

func TestEngineRejectedSellCreatesNoListing(t *testing.T) {
	f := newFixture(t)
	ah := f.house.Address

	req := f.sellRequest(100, nil)
	req.TokenSize = 2
	req.TradeStateNonce = f.nonce(f.scheme.TradeState(seller, ah, itemAccount, treasuryMint, itemMint, domain.AskPrice, 2))
	req.FreeTradeStateNonce = f.nonce(f.scheme.TradeState(seller, ah, itemAccount, treasuryMint, itemMint, domain.FreePrice, 2))

	_, err := f.svc.Sell(f.ctx, req)
	var engErr *domain.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, memory.CodeInsufficientTokens, engErr.Code)

	listing := f.addr(f.scheme.ListingConfig(seller, ah, itemAccount, treasuryMint, itemMint, 2))
	_, err = f.svc.Listing(f.ctx, listing)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}
