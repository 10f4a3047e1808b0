package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/derive"
	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/forward"
)

func fill(b byte) domain.Address {
	var a domain.Address
	for i := range a {
		a[i] = b
	}
	return a
}

type depositCase struct {
	engine   *Engine
	scheme   derive.Scheme
	house    domain.AuctionHouse
	delegate domain.Address
	nonce    uint8
	wallet   domain.Address
	escrow   domain.Address
	eNonce   uint8
}

func setupDeposit(t *testing.T, scopes ...domain.Scope) depositCase {
	t.Helper()
	scheme := derive.NewScheme(fill(0xA1), fill(0xE1))
	e := New(scheme)
	ah, err := e.CreateAuctionHouse(fill(1), fill(2), fill(3))
	require.NoError(t, err)

	delegate, nonce, err := scheme.Delegate(ah.Address)
	require.NoError(t, err)
	require.NoError(t, e.DelegateAuctioneer(ah.Address, delegate, scopes...))

	wallet := fill(4)
	e.Fund(wallet, 1_000)
	escrow, eNonce, err := scheme.Escrow(ah.Address, wallet)
	require.NoError(t, err)

	return depositCase{engine: e, scheme: scheme, house: ah, delegate: delegate, nonce: nonce, wallet: wallet, escrow: escrow, eNonce: eNonce}
}

func (c depositCase) instruction(t *testing.T, signers ...domain.Address) forward.Instruction {
	t.Helper()
	record, _, err := c.scheme.EngineDelegate(c.house.Address, c.delegate)
	require.NoError(t, err)
	accounts := forward.DepositAccounts{
		Wallet:            c.wallet,
		PaymentAccount:    c.wallet,
		TransferAuthority: c.wallet,
		Escrow:            c.escrow,
		TreasuryMint:      c.house.TreasuryMint,
		Authority:         c.house.Authority,
		AuctionHouse:      c.house.Address,
		FeeAccount:        c.house.FeeAccount,
		Delegate:          c.delegate,
		EngineDelegate:    record,
	}
	metas, err := forward.Build(forward.OpDeposit, accounts.Refs(), signers, c.delegate)
	require.NoError(t, err)
	return forward.Instruction{
		Op:       forward.OpDeposit,
		Accounts: metas,
		Args:     forward.DepositArgs{EscrowNonce: c.eNonce, Amount: 400},
		Capability: forward.CapabilityToken{
			AuctionHouse: c.house.Address,
			Delegate:     c.delegate,
			Nonce:        c.nonce,
			Scope:        domain.ScopeDeposit,
		},
	}
}

func engineCode(t *testing.T, err error) string {
	t.Helper()
	engErr, ok := domain.AsEngineError(err)
	require.True(t, ok, "want engine error, got %v", err)
	return engErr.Code
}

func TestInvokeDeposit(t *testing.T) {
	c := setupDeposit(t, domain.ScopeDeposit)
	require.NoError(t, c.engine.Invoke(context.Background(), c.instruction(t, c.wallet)))
	assert.Equal(t, uint64(400), c.engine.Balance(c.escrow))
	assert.Equal(t, uint64(600), c.engine.Balance(c.wallet))
}

func TestInvokeRequiresWalletSignature(t *testing.T) {
	c := setupDeposit(t, domain.ScopeDeposit)
	err := c.engine.Invoke(context.Background(), c.instruction(t))
	assert.Equal(t, CodeSignerRequired, engineCode(t, err))
	assert.Zero(t, c.engine.Balance(c.escrow))
}

func TestInvokeChecksEngineScope(t *testing.T) {
	c := setupDeposit(t, domain.ScopeBuy)
	err := c.engine.Invoke(context.Background(), c.instruction(t, c.wallet))
	assert.Equal(t, CodeMissingScope, engineCode(t, err))
}

func TestInvokeRederivesDelegate(t *testing.T) {
	c := setupDeposit(t, domain.ScopeDeposit)
	ix := c.instruction(t, c.wallet)
	ix.Capability.Nonce++
	err := c.engine.Invoke(context.Background(), ix)
	assert.Equal(t, CodeInvalidDelegate, engineCode(t, err))

	ix = c.instruction(t, c.wallet)
	ix.Capability.Scope = domain.ScopeWithdraw
	err = c.engine.Invoke(context.Background(), ix)
	assert.Equal(t, CodeMissingScope, engineCode(t, err))
}

func TestInvokeRejectsUnsignedDelegate(t *testing.T) {
	c := setupDeposit(t, domain.ScopeDeposit)
	ix := c.instruction(t, c.wallet)
	for i := range ix.Accounts {
		if ix.Accounts[i].Role == forward.RoleDelegate {
			ix.Accounts[i].Signer = false
		}
	}
	err := c.engine.Invoke(context.Background(), ix)
	assert.Equal(t, CodeSignerRequired, engineCode(t, err))
}

func TestInvokeRejectsMisorderedAccounts(t *testing.T) {
	c := setupDeposit(t, domain.ScopeDeposit)
	ix := c.instruction(t, c.wallet)
	ix.Accounts[0], ix.Accounts[1] = ix.Accounts[1], ix.Accounts[0]
	err := c.engine.Invoke(context.Background(), ix)
	assert.Equal(t, CodeConstraintSeeds, engineCode(t, err))
}

func TestCreateAuctionHouseOnce(t *testing.T) {
	e := New(derive.NewScheme(fill(0xA1), fill(0xE1)))
	_, err := e.CreateAuctionHouse(fill(1), fill(2), fill(3))
	require.NoError(t, err)
	_, err = e.CreateAuctionHouse(fill(1), fill(9), fill(3))
	assert.Equal(t, CodeAlreadyInitialized, engineCode(t, err))
}
