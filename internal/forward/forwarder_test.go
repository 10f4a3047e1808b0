package forward

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

type recordingEngine struct {
	calls []Instruction
	err   error
}

func (e *recordingEngine) Invoke(_ context.Context, ix Instruction) error {
	e.calls = append(e.calls, ix)
	return e.err
}

type countingObserver struct {
	ops  []string
	errs int
}

func (o *countingObserver) ObserveForward(op string, err error, _ time.Duration) {
	o.ops = append(o.ops, op)
	if err != nil {
		o.errs++
	}
}

func fill(b byte) domain.Address {
	var a domain.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withdrawAccounts(delegate domain.Address) WithdrawAccounts {
	return WithdrawAccounts{
		Wallet:         fill(1),
		ReceiptAccount: fill(1),
		Escrow:         fill(2),
		TreasuryMint:   fill(3),
		Authority:      fill(4),
		AuctionHouse:   fill(5),
		FeeAccount:     fill(6),
		Delegate:       delegate,
		EngineDelegate: fill(8),
	}
}

func delegation(scopes ...domain.Scope) domain.AuthorityDelegation {
	return domain.AuthorityDelegation{
		AuctionHouse: fill(5),
		Delegate:     fill(7),
		Nonce:        3,
		Scopes:       domain.NewScopeSet(scopes...),
	}
}

func TestSchemasCoverEveryOp(t *testing.T) {
	for _, op := range []Op{OpSell, OpBuy, OpDeposit, OpCancel, OpExecuteSale, OpWithdraw} {
		s, ok := SchemaFor(op)
		require.True(t, ok, op)
		assert.GreaterOrEqual(t, s.Index(RoleDelegate), 0, op)
		assert.GreaterOrEqual(t, s.Index(RoleEngineDelegate), 0, op)
		assert.GreaterOrEqual(t, s.Index(RoleAuctionHouse), 0, op)
	}
}

func TestTypedAccountsMatchSchemas(t *testing.T) {
	sets := []Accounts{
		SellAccounts{}, BuyAccounts{}, DepositAccounts{},
		CancelAccounts{}, ExecuteSaleAccounts{}, WithdrawAccounts{},
	}
	for _, a := range sets {
		s, ok := SchemaFor(a.Op())
		require.True(t, ok)
		refs := a.Refs()
		require.Len(t, refs, len(s.Roles), a.Op())
		for i, spec := range s.Roles {
			assert.Equal(t, spec.Role, refs[i].Role, "%s position %d", a.Op(), i)
		}
	}
}

func TestBuildFlags(t *testing.T) {
	delegate := fill(7)
	metas, err := Build(OpWithdraw, withdrawAccounts(delegate).Refs(), []domain.Address{fill(1)}, delegate)
	require.NoError(t, err)
	require.Len(t, metas, 9)

	assert.Equal(t, RoleWallet, metas[0].Role)
	assert.True(t, metas[0].Signer)
	assert.False(t, metas[0].Writable)

	assert.True(t, metas[1].Signer, "receipt shares the wallet identity")
	assert.True(t, metas[1].Writable)

	assert.False(t, metas[4].Signer, "authority did not sign")

	assert.Equal(t, RoleDelegate, metas[7].Role)
	assert.True(t, metas[7].Signer)
	assert.False(t, metas[8].Signer)
}

func TestBuildRejectsMalformed(t *testing.T) {
	delegate := fill(7)
	good := withdrawAccounts(delegate).Refs()

	missing := append([]RoleRef{}, good[:len(good)-1]...)

	extra := append(append([]RoleRef{}, good...), RoleRef{RoleMetadata, fill(9)})

	swapped := append([]RoleRef{}, good...)
	swapped[4], swapped[5] = swapped[5], swapped[4]

	unset := append([]RoleRef{}, good...)
	unset[2].Address = domain.ZeroAddress

	cases := map[string][]RoleRef{
		"missing": missing,
		"extra":   extra,
		"swapped": swapped,
		"unset":   unset,
		"empty":   nil,
	}
	for name, refs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build(OpWithdraw, refs, nil, delegate)
			assert.ErrorIs(t, err, domain.ErrMalformedForwardRequest)
		})
	}

	_, err := Build(Op("mint"), good, nil, delegate)
	assert.ErrorIs(t, err, domain.ErrMalformedForwardRequest)
}

func TestForwardSubmitsCapability(t *testing.T) {
	engine := &recordingEngine{}
	obs := &countingObserver{}
	f := New(engine, obs, discardLogger())

	d := delegation(domain.ScopeWithdraw)
	err := f.Forward(context.Background(), d, withdrawAccounts(d.Delegate), WithdrawArgs{EscrowNonce: 1, Amount: 10},
		domain.Caller{Address: fill(1), Signed: true})
	require.NoError(t, err)

	require.Len(t, engine.calls, 1)
	ix := engine.calls[0]
	assert.Equal(t, OpWithdraw, ix.Op)
	assert.Equal(t, CapabilityToken{AuctionHouse: fill(5), Delegate: fill(7), Nonce: 3, Scope: domain.ScopeWithdraw}, ix.Capability)

	m, ok := ix.Meta(RoleWallet)
	require.True(t, ok)
	assert.True(t, m.Signer)
	assert.Equal(t, []string{"withdraw"}, obs.ops)
}

func TestForwardUnsignedCallerIsNotSigner(t *testing.T) {
	engine := &recordingEngine{}
	f := New(engine, nil, discardLogger())
	d := delegation(domain.ScopeWithdraw)

	require.NoError(t, f.Forward(context.Background(), d, withdrawAccounts(d.Delegate), WithdrawArgs{},
		domain.Caller{Address: fill(1)}))

	m, _ := engine.calls[0].Meta(RoleWallet)
	assert.False(t, m.Signer)
}

func TestForwardRequiresScope(t *testing.T) {
	engine := &recordingEngine{}
	f := New(engine, nil, discardLogger())
	d := delegation(domain.ScopeDeposit)

	err := f.Forward(context.Background(), d, withdrawAccounts(d.Delegate), WithdrawArgs{}, domain.Caller{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, engine.calls)
}

func TestForwardRejectsMismatchedArgs(t *testing.T) {
	engine := &recordingEngine{}
	f := New(engine, nil, discardLogger())
	d := delegation(domain.AllScopes()...)

	err := f.Forward(context.Background(), d, withdrawAccounts(d.Delegate), DepositArgs{}, domain.Caller{})
	assert.ErrorIs(t, err, domain.ErrMalformedForwardRequest)
	assert.Empty(t, engine.calls)
}

func TestForwardRejectsForeignDelegate(t *testing.T) {
	engine := &recordingEngine{}
	f := New(engine, nil, discardLogger())
	d := delegation(domain.AllScopes()...)

	err := f.Forward(context.Background(), d, withdrawAccounts(fill(9)), WithdrawArgs{}, domain.Caller{})
	assert.ErrorIs(t, err, domain.ErrMalformedForwardRequest)
	assert.Empty(t, engine.calls)
}

func TestForwardPassesEngineErrorThrough(t *testing.T) {
	rejection := &domain.EngineError{Code: "InsufficientFunds", Message: "escrow balance too low"}
	engine := &recordingEngine{err: rejection}
	obs := &countingObserver{}
	f := New(engine, obs, discardLogger())
	d := delegation(domain.ScopeWithdraw)

	err := f.Forward(context.Background(), d, withdrawAccounts(d.Delegate), WithdrawArgs{Amount: 1}, domain.Caller{})
	require.Error(t, err)

	var got *domain.EngineError
	require.True(t, errors.As(err, &got))
	assert.Same(t, rejection, got)
	assert.Equal(t, 1, obs.errs)
}
