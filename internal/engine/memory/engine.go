// Package memory is an in-process base escrow engine. It keeps auction
// houses, token accounts, currency balances and trade states in maps and
// honors forwarded instructions only after re-deriving the delegate from
// the capability token and checking its own scope record.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/auctioneer/internal/derive"
	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/forward"
)

// Engine rejection codes.
const (
	CodeAccountNotInitialized = "AccountNotInitialized"
	CodeConstraintSeeds       = "ConstraintSeeds"
	CodeInvalidDelegate       = "InvalidDelegate"
	CodeMissingScope          = "MissingAuctioneerScope"
	CodeSignerRequired        = "SignerRequired"
	CodeInsufficientFunds     = "InsufficientFunds"
	CodeInsufficientTokens    = "InsufficientTokens"
	CodeTradeStateExists      = "TradeStateAlreadyExists"
	CodeTradeStateNotFound    = "TradeStateNotFound"
	CodeOwnerMismatch         = "OwnerMismatch"
	CodeAlreadyInitialized    = "AccountAlreadyInitialized"
)

func reject(code, format string, args ...any) error {
	return &domain.EngineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

type tradeState struct {
	Wallet       domain.Address
	TokenAccount domain.Address
	TokenMint    domain.Address
	Price        uint64
	Size         uint64
}

type delegateRecord struct {
	address  domain.Address
	delegate domain.Address
	scopes   domain.ScopeSet
}

// Engine is safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	scheme        derive.Scheme
	houses        map[domain.Address]domain.AuctionHouse
	delegates     map[domain.Address]delegateRecord
	mints         map[domain.Address]domain.Mint
	metadata      map[domain.Address]domain.Address
	tokenAccounts map[domain.Address]domain.TokenAccount
	balances      map[domain.Address]uint64
	tradeStates   map[domain.Address]tradeState
}

// New creates an empty engine that derives identities with scheme.
func New(scheme derive.Scheme) *Engine {
	return &Engine{
		scheme:        scheme,
		houses:        make(map[domain.Address]domain.AuctionHouse),
		delegates:     make(map[domain.Address]delegateRecord),
		mints:         make(map[domain.Address]domain.Mint),
		metadata:      make(map[domain.Address]domain.Address),
		tokenAccounts: make(map[domain.Address]domain.TokenAccount),
		balances:      make(map[domain.Address]uint64),
		tradeStates:   make(map[domain.Address]tradeState),
	}
}

// CreateAuctionHouse registers an instance for (creator, treasuryMint).
func (e *Engine) CreateAuctionHouse(creator, authority, treasuryMint domain.Address) (domain.AuctionHouse, error) {
	addr, nonce, err := e.scheme.AuctionHouse(creator, treasuryMint)
	if err != nil {
		return domain.AuctionHouse{}, err
	}
	fee, feeNonce, err := e.scheme.FeeAccount(addr)
	if err != nil {
		return domain.AuctionHouse{}, err
	}
	treasury, treasuryNonce, err := e.scheme.Treasury(addr)
	if err != nil {
		return domain.AuctionHouse{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.houses[addr]; ok {
		return domain.AuctionHouse{}, reject(CodeAlreadyInitialized, "auction house %s", addr)
	}
	ah := domain.AuctionHouse{
		Address:       addr,
		Creator:       creator,
		Authority:     authority,
		TreasuryMint:  treasuryMint,
		FeeAccount:    fee,
		Treasury:      treasury,
		Nonce:         nonce,
		FeeNonce:      feeNonce,
		TreasuryNonce: treasuryNonce,
	}
	e.houses[addr] = ah
	return ah, nil
}

// DelegateAuctioneer records delegate on the engine side with scopes.
func (e *Engine) DelegateAuctioneer(auctionHouse, delegate domain.Address, scopes ...domain.Scope) error {
	addr, _, err := e.scheme.EngineDelegate(auctionHouse, delegate)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	ah, ok := e.houses[auctionHouse]
	if !ok {
		return reject(CodeAccountNotInitialized, "auction house %s", auctionHouse)
	}
	ah.HasAuctioneer = true
	e.houses[auctionHouse] = ah
	e.delegates[auctionHouse] = delegateRecord{
		address:  addr,
		delegate: delegate,
		scopes:   domain.NewScopeSet(scopes...),
	}
	return nil
}

// AddMint registers a mint with its metadata descriptor.
func (e *Engine) AddMint(mint domain.Mint, metadata domain.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mints[mint.Address] = mint
	e.metadata[mint.Address] = metadata
}

// AddTokenAccount registers or replaces a token account.
func (e *Engine) AddTokenAccount(ta domain.TokenAccount) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tokenAccounts[ta.Address] = ta
}

// Fund credits addr with amount of settlement currency.
func (e *Engine) Fund(addr domain.Address, amount uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances[addr] += amount
}

// Balance returns the settlement currency held by addr.
func (e *Engine) Balance(addr domain.Address) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[addr]
}

// HasTradeState reports whether a trade state is live at addr.
func (e *Engine) HasTradeState(addr domain.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.tradeStates[addr]
	return ok
}

func (e *Engine) AuctionHouse(_ context.Context, addr domain.Address) (domain.AuctionHouse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ah, ok := e.houses[addr]
	if !ok {
		return domain.AuctionHouse{}, fmt.Errorf("memory engine: auction house %s: %w", addr, domain.ErrNotFound)
	}
	return ah, nil
}

func (e *Engine) TokenAccount(_ context.Context, addr domain.Address) (domain.TokenAccount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ta, ok := e.tokenAccounts[addr]
	if !ok {
		return domain.TokenAccount{}, fmt.Errorf("memory engine: token account %s: %w", addr, domain.ErrNotFound)
	}
	return ta, nil
}

func (e *Engine) Mint(_ context.Context, addr domain.Address) (domain.Mint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.mints[addr]
	if !ok {
		return domain.Mint{}, fmt.Errorf("memory engine: mint %s: %w", addr, domain.ErrNotFound)
	}
	return m, nil
}

func (e *Engine) Metadata(_ context.Context, mint domain.Address) (domain.Address, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	md, ok := e.metadata[mint]
	if !ok {
		return domain.ZeroAddress, fmt.Errorf("memory engine: metadata for %s: %w", mint, domain.ErrNotFound)
	}
	return md, nil
}

var (
	_ forward.Engine  = (*Engine)(nil)
	_ domain.Registry = (*Engine)(nil)
)
