package domain

import "context"

// AuctionHouse is the base engine's marketplace instance. The auctioneer
// reads it but never mutates it.
type AuctionHouse struct {
	Address       Address `json:"address"`
	Creator       Address `json:"creator"`
	Authority     Address `json:"authority"`
	TreasuryMint  Address `json:"treasury_mint"`
	FeeAccount    Address `json:"fee_account"`
	Treasury      Address `json:"treasury"`
	Nonce         uint8   `json:"nonce"`
	FeeNonce      uint8   `json:"fee_nonce"`
	TreasuryNonce uint8   `json:"treasury_nonce"`
	HasAuctioneer bool    `json:"has_auctioneer"`
}

// TokenAccount is a holding of a single mint by a single owner.
type TokenAccount struct {
	Address         Address `json:"address"`
	Owner           Address `json:"owner"`
	Mint            Address `json:"mint"`
	Amount          uint64  `json:"amount"`
	Delegate        Address `json:"delegate"`
	DelegatedAmount uint64  `json:"delegated_amount"`
}

// Mint describes a fungible or non-fungible asset class.
type Mint struct {
	Address  Address `json:"address"`
	Decimals uint8   `json:"decimals"`
}

// Registry is the read-only view of the base engine and the asset metadata
// registry consumed by the auctioneer.
type Registry interface {
	AuctionHouse(ctx context.Context, addr Address) (AuctionHouse, error)
	TokenAccount(ctx context.Context, addr Address) (TokenAccount, error)
	Mint(ctx context.Context, addr Address) (Mint, error)
	// Metadata returns the canonical descriptor address of mint.
	Metadata(ctx context.Context, mint Address) (Address, error)
}
