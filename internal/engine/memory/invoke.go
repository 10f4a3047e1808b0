package memory

import (
	"context"

	"github.com/alanyoungcy/auctioneer/internal/derive"
	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/forward"
)

// accountSet indexes an instruction's metas by role.
type accountSet map[forward.Role]forward.AccountMeta

func (a accountSet) addr(role forward.Role) domain.Address { return a[role].Address }

// Invoke applies a forwarded instruction atomically. Every check runs
// before any balance, token or trade state changes.
func (e *Engine) Invoke(_ context.Context, ix forward.Instruction) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	schema, ok := forward.SchemaFor(ix.Op)
	if !ok || len(ix.Accounts) != len(schema.Roles) {
		return reject(CodeConstraintSeeds, "instruction %q does not match any schema", ix.Op)
	}
	accts := make(accountSet, len(ix.Accounts))
	for i, m := range ix.Accounts {
		if m.Role != schema.Roles[i].Role {
			return reject(CodeConstraintSeeds, "account %d is %q, want %q", i, m.Role, schema.Roles[i].Role)
		}
		accts[m.Role] = m
	}

	ah, err := e.authorize(ix, schema, accts)
	if err != nil {
		return err
	}

	switch args := ix.Args.(type) {
	case forward.SellArgs:
		return e.sell(ah, accts, args)
	case forward.BuyArgs:
		return e.buy(ah, accts, args)
	case forward.DepositArgs:
		return e.deposit(ah, accts, args)
	case forward.CancelArgs:
		return e.cancel(ah, accts, args)
	case forward.ExecuteSaleArgs:
		return e.executeSale(ah, accts, args)
	case forward.WithdrawArgs:
		return e.withdraw(ah, accts, args)
	default:
		return reject(CodeConstraintSeeds, "unsupported args %T", ix.Args)
	}
}

// authorize re-derives the delegate from the capability token and checks
// the engine's own scope record.
func (e *Engine) authorize(ix forward.Instruction, schema forward.Schema, accts accountSet) (domain.AuctionHouse, error) {
	token := ix.Capability
	ah, ok := e.houses[token.AuctionHouse]
	if !ok {
		return ah, reject(CodeAccountNotInitialized, "auction house %s", token.AuctionHouse)
	}
	if accts.addr(forward.RoleAuctionHouse) != ah.Address {
		return ah, reject(CodeConstraintSeeds, "auction house account mismatch")
	}
	if accts.addr(forward.RoleAuthority) != ah.Authority {
		return ah, reject(CodeConstraintSeeds, "authority mismatch")
	}
	if accts.addr(forward.RoleFeeAccount) != ah.FeeAccount {
		return ah, reject(CodeConstraintSeeds, "fee account mismatch")
	}

	if err := e.scheme.Auctioneer.Verify(token.Delegate, token.Nonce, derive.DelegateSeeds(ah.Address)...); err != nil {
		return ah, reject(CodeInvalidDelegate, "delegate %s: %v", token.Delegate, err)
	}
	rec, ok := e.delegates[ah.Address]
	if !ok || rec.delegate != token.Delegate {
		return ah, reject(CodeInvalidDelegate, "delegate %s is not registered for %s", token.Delegate, ah.Address)
	}
	if accts.addr(forward.RoleEngineDelegate) != rec.address {
		return ah, reject(CodeConstraintSeeds, "delegate record mismatch")
	}
	delegateMeta := accts[forward.RoleDelegate]
	if delegateMeta.Address != token.Delegate || !delegateMeta.Signer {
		return ah, reject(CodeSignerRequired, "delegate must sign")
	}
	if token.Scope != schema.Scope || !rec.scopes.Has(token.Scope) {
		return ah, reject(CodeMissingScope, "delegate lacks %s", schema.Scope)
	}
	return ah, nil
}

func (e *Engine) verify(addr domain.Address, nonce uint8, seeds [][]byte, what string) error {
	if err := e.scheme.Engine.Verify(addr, nonce, seeds...); err != nil {
		return reject(CodeConstraintSeeds, "%s: %v", what, err)
	}
	return nil
}

func (e *Engine) programAsSigner(addr domain.Address, nonce uint8) error {
	return e.verify(addr, nonce, derive.ProgramAsSignerSeeds(), "program as signer")
}

func (e *Engine) sell(ah domain.AuctionHouse, a accountSet, args forward.SellArgs) error {
	wallet := a.addr(forward.RoleWallet)
	ta, ok := e.tokenAccounts[a.addr(forward.RoleTokenAccount)]
	if !ok {
		return reject(CodeAccountNotInitialized, "token account %s", a.addr(forward.RoleTokenAccount))
	}
	if ta.Owner != wallet {
		return reject(CodeOwnerMismatch, "token account %s is not owned by %s", ta.Address, wallet)
	}
	if args.TokenSize == 0 || ta.Amount < args.TokenSize {
		return reject(CodeInsufficientTokens, "token account holds %d, listing %d", ta.Amount, args.TokenSize)
	}
	if e.metadata[ta.Mint] != a.addr(forward.RoleMetadata) {
		return reject(CodeConstraintSeeds, "metadata mismatch")
	}

	sellerTS := a.addr(forward.RoleSellerTradeState)
	if err := e.verify(sellerTS, args.TradeStateNonce,
		derive.TradeStateSeeds(wallet, ah.Address, ta.Address, ah.TreasuryMint, ta.Mint, args.BuyerPrice, args.TokenSize),
		"seller trade state"); err != nil {
		return err
	}
	if err := e.verify(a.addr(forward.RoleFreeTradeState), args.FreeTradeStateNonce,
		derive.TradeStateSeeds(wallet, ah.Address, ta.Address, ah.TreasuryMint, ta.Mint, domain.FreePrice, args.TokenSize),
		"free trade state"); err != nil {
		return err
	}
	if err := e.programAsSigner(a.addr(forward.RoleProgramAsSigner), args.ProgramAsSignerNonce); err != nil {
		return err
	}
	if _, exists := e.tradeStates[sellerTS]; exists {
		return reject(CodeTradeStateExists, "trade state %s", sellerTS)
	}

	e.tradeStates[sellerTS] = tradeState{
		Wallet:       wallet,
		TokenAccount: ta.Address,
		TokenMint:    ta.Mint,
		Price:        args.BuyerPrice,
		Size:         args.TokenSize,
	}
	ta.Delegate = a.addr(forward.RoleProgramAsSigner)
	ta.DelegatedAmount = args.TokenSize
	e.tokenAccounts[ta.Address] = ta
	return nil
}

func (e *Engine) buy(ah domain.AuctionHouse, a accountSet, args forward.BuyArgs) error {
	walletMeta := a[forward.RoleWallet]
	if !walletMeta.Signer {
		return reject(CodeSignerRequired, "buyer wallet must sign")
	}
	wallet := walletMeta.Address
	if a.addr(forward.RoleTreasuryMint) != ah.TreasuryMint {
		return reject(CodeConstraintSeeds, "treasury mint mismatch")
	}
	ta, ok := e.tokenAccounts[a.addr(forward.RoleTokenAccount)]
	if !ok {
		return reject(CodeAccountNotInitialized, "token account %s", a.addr(forward.RoleTokenAccount))
	}
	if e.metadata[ta.Mint] != a.addr(forward.RoleMetadata) {
		return reject(CodeConstraintSeeds, "metadata mismatch")
	}
	escrow := a.addr(forward.RoleEscrow)
	if err := e.verify(escrow, args.EscrowNonce, derive.EscrowSeeds(ah.Address, wallet), "escrow"); err != nil {
		return err
	}
	buyerTS := a.addr(forward.RoleBuyerTradeState)
	if err := e.verify(buyerTS, args.TradeStateNonce,
		derive.TradeStateSeeds(wallet, ah.Address, ta.Address, ah.TreasuryMint, ta.Mint, args.BuyerPrice, args.TokenSize),
		"buyer trade state"); err != nil {
		return err
	}
	if _, exists := e.tradeStates[buyerTS]; exists {
		return reject(CodeTradeStateExists, "trade state %s", buyerTS)
	}

	payment := a.addr(forward.RolePaymentAccount)
	if held := e.balances[escrow]; held < args.BuyerPrice {
		diff := args.BuyerPrice - held
		if e.balances[payment] < diff {
			return reject(CodeInsufficientFunds, "payment account holds %d, needs %d", e.balances[payment], diff)
		}
		e.balances[payment] -= diff
		e.balances[escrow] += diff
	}

	e.tradeStates[buyerTS] = tradeState{
		Wallet:       wallet,
		TokenAccount: ta.Address,
		TokenMint:    ta.Mint,
		Price:        args.BuyerPrice,
		Size:         args.TokenSize,
	}
	return nil
}

func (e *Engine) deposit(ah domain.AuctionHouse, a accountSet, args forward.DepositArgs) error {
	walletMeta := a[forward.RoleWallet]
	if !walletMeta.Signer {
		return reject(CodeSignerRequired, "wallet must sign")
	}
	if a.addr(forward.RoleTreasuryMint) != ah.TreasuryMint {
		return reject(CodeConstraintSeeds, "treasury mint mismatch")
	}
	escrow := a.addr(forward.RoleEscrow)
	if err := e.verify(escrow, args.EscrowNonce, derive.EscrowSeeds(ah.Address, walletMeta.Address), "escrow"); err != nil {
		return err
	}
	payment := a.addr(forward.RolePaymentAccount)
	if e.balances[payment] < args.Amount {
		return reject(CodeInsufficientFunds, "payment account holds %d, deposit %d", e.balances[payment], args.Amount)
	}
	e.balances[payment] -= args.Amount
	e.balances[escrow] += args.Amount
	return nil
}

func (e *Engine) cancel(_ domain.AuctionHouse, a accountSet, args forward.CancelArgs) error {
	addr := a.addr(forward.RoleTradeState)
	ts, ok := e.tradeStates[addr]
	if !ok {
		return reject(CodeTradeStateNotFound, "trade state %s", addr)
	}
	if ts.Wallet != a.addr(forward.RoleWallet) || ts.TokenAccount != a.addr(forward.RoleTokenAccount) {
		return reject(CodeOwnerMismatch, "trade state %s belongs to %s", addr, ts.Wallet)
	}
	if ts.Price != args.BuyerPrice || ts.Size != args.TokenSize {
		return reject(CodeConstraintSeeds, "price or size mismatch")
	}

	delete(e.tradeStates, addr)
	if ta, ok := e.tokenAccounts[ts.TokenAccount]; ok && ta.Owner == ts.Wallet {
		ta.Delegate = domain.ZeroAddress
		ta.DelegatedAmount = 0
		e.tokenAccounts[ta.Address] = ta
	}
	return nil
}

func (e *Engine) executeSale(ah domain.AuctionHouse, a accountSet, args forward.ExecuteSaleArgs) error {
	buyer, seller := a.addr(forward.RoleBuyer), a.addr(forward.RoleSeller)
	buyerTSAddr, sellerTSAddr := a.addr(forward.RoleBuyerTradeState), a.addr(forward.RoleSellerTradeState)

	buyerTS, ok := e.tradeStates[buyerTSAddr]
	if !ok {
		return reject(CodeTradeStateNotFound, "buyer trade state %s", buyerTSAddr)
	}
	sellerTS, ok := e.tradeStates[sellerTSAddr]
	if !ok {
		return reject(CodeTradeStateNotFound, "seller trade state %s", sellerTSAddr)
	}
	if buyerTS.Wallet != buyer || sellerTS.Wallet != seller {
		return reject(CodeOwnerMismatch, "trade state owners do not match buyer and seller")
	}
	if buyerTS.Price != args.BuyerPrice || buyerTS.Size != args.TokenSize || sellerTS.Size != args.TokenSize {
		return reject(CodeConstraintSeeds, "price or size mismatch")
	}
	if buyerTS.TokenAccount != sellerTS.TokenAccount || a.addr(forward.RoleTokenAccount) != sellerTS.TokenAccount {
		return reject(CodeConstraintSeeds, "token account mismatch")
	}
	if a.addr(forward.RoleTreasury) != ah.Treasury || a.addr(forward.RoleTreasuryMint) != ah.TreasuryMint {
		return reject(CodeConstraintSeeds, "treasury mismatch")
	}

	escrow := a.addr(forward.RoleEscrow)
	if err := e.verify(escrow, args.EscrowNonce, derive.EscrowSeeds(ah.Address, buyer), "escrow"); err != nil {
		return err
	}
	if err := e.verify(a.addr(forward.RoleFreeTradeState), args.FreeTradeStateNonce,
		derive.TradeStateSeeds(seller, ah.Address, sellerTS.TokenAccount, ah.TreasuryMint, sellerTS.TokenMint, domain.FreePrice, args.TokenSize),
		"free trade state"); err != nil {
		return err
	}
	pas := a.addr(forward.RoleProgramAsSigner)
	if err := e.programAsSigner(pas, args.ProgramAsSignerNonce); err != nil {
		return err
	}

	ta := e.tokenAccounts[sellerTS.TokenAccount]
	if ta.Owner != seller || ta.Delegate != pas || ta.DelegatedAmount < args.TokenSize || ta.Amount < args.TokenSize {
		return reject(CodeInsufficientTokens, "seller token account is not delegated for %d", args.TokenSize)
	}
	if e.balances[escrow] < args.BuyerPrice {
		return reject(CodeInsufficientFunds, "escrow holds %d, price %d", e.balances[escrow], args.BuyerPrice)
	}

	receiptAddr := a.addr(forward.RoleBuyerReceiptToken)
	receipt, exists := e.tokenAccounts[receiptAddr]
	if exists && (receipt.Owner != buyer || receipt.Mint != ta.Mint) {
		return reject(CodeOwnerMismatch, "receipt account %s is not the buyer's %s holding", receiptAddr, ta.Mint)
	}
	if !exists {
		receipt = domain.TokenAccount{Address: receiptAddr, Owner: buyer, Mint: ta.Mint}
	}

	e.balances[escrow] -= args.BuyerPrice
	e.balances[a.addr(forward.RoleSellerReceipt)] += args.BuyerPrice
	ta.Amount -= args.TokenSize
	ta.Delegate = domain.ZeroAddress
	ta.DelegatedAmount = 0
	receipt.Amount += args.TokenSize
	e.tokenAccounts[ta.Address] = ta
	e.tokenAccounts[receipt.Address] = receipt
	delete(e.tradeStates, buyerTSAddr)
	delete(e.tradeStates, sellerTSAddr)
	return nil
}

func (e *Engine) withdraw(ah domain.AuctionHouse, a accountSet, args forward.WithdrawArgs) error {
	wallet := a.addr(forward.RoleWallet)
	if a.addr(forward.RoleTreasuryMint) != ah.TreasuryMint {
		return reject(CodeConstraintSeeds, "treasury mint mismatch")
	}
	escrow := a.addr(forward.RoleEscrow)
	if err := e.verify(escrow, args.EscrowNonce, derive.EscrowSeeds(ah.Address, wallet), "escrow"); err != nil {
		return err
	}
	if e.balances[escrow] < args.Amount {
		return reject(CodeInsufficientFunds, "escrow holds %d, withdraw %d", e.balances[escrow], args.Amount)
	}
	e.balances[escrow] -= args.Amount
	e.balances[a.addr(forward.RoleReceiptAccount)] += args.Amount
	return nil
}
