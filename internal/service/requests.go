package service

import "github.com/alanyoungcy/auctioneer/internal/domain"

// AuthorizeRequest registers the auctioneer as delegate of an instance.
// Scopes may be empty.
type AuthorizeRequest struct {
	AuctionHouse domain.Address  `json:"auction_house"`
	Scopes       domain.ScopeSet `json:"scopes"`
	Caller       domain.Caller   `json:"-"`
}

// SellRequest lists TokenSize units held in TokenAccount. The caller must
// own the token account.
type SellRequest struct {
	AuctionHouse         domain.Address           `json:"auction_house"`
	TokenAccount         domain.Address           `json:"token_account"`
	TradeStateNonce      uint8                    `json:"trade_state_nonce"`
	FreeTradeStateNonce  uint8                    `json:"free_trade_state_nonce"`
	ProgramAsSignerNonce uint8                    `json:"program_as_signer_nonce"`
	DelegateNonce        uint8                    `json:"delegate_nonce"`
	TokenSize            uint64                   `json:"token_size"`
	Timed                *domain.TimedAuctionArgs `json:"timed,omitempty"`
	MinBid               uint64                   `json:"min_bid"`
	Caller               domain.Caller            `json:"-"`
}

// BuyRequest bids Price for the listing of TokenSize units in TokenAccount.
// PaymentAccount and TransferAuthority default to the caller's wallet.
type BuyRequest struct {
	AuctionHouse      domain.Address `json:"auction_house"`
	TokenAccount      domain.Address `json:"token_account"`
	PaymentAccount    domain.Address `json:"payment_account"`
	TransferAuthority domain.Address `json:"transfer_authority"`
	TradeStateNonce   uint8          `json:"trade_state_nonce"`
	EscrowNonce       uint8          `json:"escrow_nonce"`
	DelegateNonce     uint8          `json:"delegate_nonce"`
	Price             uint64         `json:"price"`
	TokenSize         uint64         `json:"token_size"`
	Caller            domain.Caller  `json:"-"`
}

// DepositRequest moves Amount from the caller's payment account into escrow.
type DepositRequest struct {
	AuctionHouse      domain.Address `json:"auction_house"`
	PaymentAccount    domain.Address `json:"payment_account"`
	TransferAuthority domain.Address `json:"transfer_authority"`
	EscrowNonce       uint8          `json:"escrow_nonce"`
	DelegateNonce     uint8          `json:"delegate_nonce"`
	Amount            uint64         `json:"amount"`
	Caller            domain.Caller  `json:"-"`
}

// CancelRequest revokes the trade state Wallet holds at (Price, TokenSize).
// A seller cancels the ask with Price set to domain.AskPrice.
type CancelRequest struct {
	AuctionHouse  domain.Address `json:"auction_house"`
	Wallet        domain.Address `json:"wallet"`
	TokenAccount  domain.Address `json:"token_account"`
	DelegateNonce uint8          `json:"delegate_nonce"`
	Price         uint64         `json:"price"`
	TokenSize     uint64         `json:"token_size"`
	Caller        domain.Caller  `json:"-"`
}

// ExecuteSaleRequest settles the listing against Buyer's bid at Price.
// SellerReceipt defaults to the seller's wallet.
type ExecuteSaleRequest struct {
	AuctionHouse         domain.Address `json:"auction_house"`
	Buyer                domain.Address `json:"buyer"`
	TokenAccount         domain.Address `json:"token_account"`
	SellerReceipt        domain.Address `json:"seller_receipt"`
	BuyerReceiptToken    domain.Address `json:"buyer_receipt_token"`
	EscrowNonce          uint8          `json:"escrow_nonce"`
	FreeTradeStateNonce  uint8          `json:"free_trade_state_nonce"`
	ProgramAsSignerNonce uint8          `json:"program_as_signer_nonce"`
	DelegateNonce        uint8          `json:"delegate_nonce"`
	Price                uint64         `json:"price"`
	TokenSize            uint64         `json:"token_size"`
	Caller               domain.Caller  `json:"-"`
}

// WithdrawRequest returns Amount from Wallet's escrow to ReceiptAccount.
// Wallet defaults to the caller; the instance authority may withdraw on a
// wallet's behalf.
type WithdrawRequest struct {
	AuctionHouse   domain.Address `json:"auction_house"`
	Wallet         domain.Address `json:"wallet"`
	ReceiptAccount domain.Address `json:"receipt_account"`
	EscrowNonce    uint8          `json:"escrow_nonce"`
	DelegateNonce  uint8          `json:"delegate_nonce"`
	Amount         uint64         `json:"amount"`
	Caller         domain.Caller  `json:"-"`
}

func orDefault(a, def domain.Address) domain.Address {
	if a.IsZero() {
		return def
	}
	return a
}
