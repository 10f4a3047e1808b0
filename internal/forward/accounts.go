package forward

import "github.com/alanyoungcy/auctioneer/internal/domain"

// RoleRef binds an identity to a role.
type RoleRef struct {
	Role    Role
	Address domain.Address
}

// Accounts is a typed account set for one operation.
type Accounts interface {
	Op() Op
	Refs() []RoleRef
}

type SellAccounts struct {
	Wallet           domain.Address
	TokenAccount     domain.Address
	Metadata         domain.Address
	Authority        domain.Address
	AuctionHouse     domain.Address
	FeeAccount       domain.Address
	SellerTradeState domain.Address
	FreeTradeState   domain.Address
	Delegate         domain.Address
	EngineDelegate   domain.Address
	ProgramAsSigner  domain.Address
}

func (SellAccounts) Op() Op { return OpSell }

func (a SellAccounts) Refs() []RoleRef {
	return []RoleRef{
		{RoleWallet, a.Wallet},
		{RoleTokenAccount, a.TokenAccount},
		{RoleMetadata, a.Metadata},
		{RoleAuthority, a.Authority},
		{RoleAuctionHouse, a.AuctionHouse},
		{RoleFeeAccount, a.FeeAccount},
		{RoleSellerTradeState, a.SellerTradeState},
		{RoleFreeTradeState, a.FreeTradeState},
		{RoleDelegate, a.Delegate},
		{RoleEngineDelegate, a.EngineDelegate},
		{RoleProgramAsSigner, a.ProgramAsSigner},
	}
}

type BuyAccounts struct {
	Wallet            domain.Address
	PaymentAccount    domain.Address
	TransferAuthority domain.Address
	TreasuryMint      domain.Address
	TokenAccount      domain.Address
	Metadata          domain.Address
	Escrow            domain.Address
	Authority         domain.Address
	AuctionHouse      domain.Address
	FeeAccount        domain.Address
	BuyerTradeState   domain.Address
	Delegate          domain.Address
	EngineDelegate    domain.Address
}

func (BuyAccounts) Op() Op { return OpBuy }

func (a BuyAccounts) Refs() []RoleRef {
	return []RoleRef{
		{RoleWallet, a.Wallet},
		{RolePaymentAccount, a.PaymentAccount},
		{RoleTransferAuthority, a.TransferAuthority},
		{RoleTreasuryMint, a.TreasuryMint},
		{RoleTokenAccount, a.TokenAccount},
		{RoleMetadata, a.Metadata},
		{RoleEscrow, a.Escrow},
		{RoleAuthority, a.Authority},
		{RoleAuctionHouse, a.AuctionHouse},
		{RoleFeeAccount, a.FeeAccount},
		{RoleBuyerTradeState, a.BuyerTradeState},
		{RoleDelegate, a.Delegate},
		{RoleEngineDelegate, a.EngineDelegate},
	}
}

type DepositAccounts struct {
	Wallet            domain.Address
	PaymentAccount    domain.Address
	TransferAuthority domain.Address
	Escrow            domain.Address
	TreasuryMint      domain.Address
	Authority         domain.Address
	AuctionHouse      domain.Address
	FeeAccount        domain.Address
	Delegate          domain.Address
	EngineDelegate    domain.Address
}

func (DepositAccounts) Op() Op { return OpDeposit }

func (a DepositAccounts) Refs() []RoleRef {
	return []RoleRef{
		{RoleWallet, a.Wallet},
		{RolePaymentAccount, a.PaymentAccount},
		{RoleTransferAuthority, a.TransferAuthority},
		{RoleEscrow, a.Escrow},
		{RoleTreasuryMint, a.TreasuryMint},
		{RoleAuthority, a.Authority},
		{RoleAuctionHouse, a.AuctionHouse},
		{RoleFeeAccount, a.FeeAccount},
		{RoleDelegate, a.Delegate},
		{RoleEngineDelegate, a.EngineDelegate},
	}
}

type CancelAccounts struct {
	Wallet         domain.Address
	TokenAccount   domain.Address
	TokenMint      domain.Address
	Authority      domain.Address
	AuctionHouse   domain.Address
	FeeAccount     domain.Address
	TradeState     domain.Address
	Delegate       domain.Address
	EngineDelegate domain.Address
}

func (CancelAccounts) Op() Op { return OpCancel }

func (a CancelAccounts) Refs() []RoleRef {
	return []RoleRef{
		{RoleWallet, a.Wallet},
		{RoleTokenAccount, a.TokenAccount},
		{RoleTokenMint, a.TokenMint},
		{RoleAuthority, a.Authority},
		{RoleAuctionHouse, a.AuctionHouse},
		{RoleFeeAccount, a.FeeAccount},
		{RoleTradeState, a.TradeState},
		{RoleDelegate, a.Delegate},
		{RoleEngineDelegate, a.EngineDelegate},
	}
}

type ExecuteSaleAccounts struct {
	Buyer             domain.Address
	Seller            domain.Address
	TokenAccount      domain.Address
	TokenMint         domain.Address
	Metadata          domain.Address
	TreasuryMint      domain.Address
	Escrow            domain.Address
	SellerReceipt     domain.Address
	BuyerReceiptToken domain.Address
	Authority         domain.Address
	AuctionHouse      domain.Address
	FeeAccount        domain.Address
	Treasury          domain.Address
	BuyerTradeState   domain.Address
	SellerTradeState  domain.Address
	FreeTradeState    domain.Address
	Delegate          domain.Address
	EngineDelegate    domain.Address
	ProgramAsSigner   domain.Address
}

func (ExecuteSaleAccounts) Op() Op { return OpExecuteSale }

func (a ExecuteSaleAccounts) Refs() []RoleRef {
	return []RoleRef{
		{RoleBuyer, a.Buyer},
		{RoleSeller, a.Seller},
		{RoleTokenAccount, a.TokenAccount},
		{RoleTokenMint, a.TokenMint},
		{RoleMetadata, a.Metadata},
		{RoleTreasuryMint, a.TreasuryMint},
		{RoleEscrow, a.Escrow},
		{RoleSellerReceipt, a.SellerReceipt},
		{RoleBuyerReceiptToken, a.BuyerReceiptToken},
		{RoleAuthority, a.Authority},
		{RoleAuctionHouse, a.AuctionHouse},
		{RoleFeeAccount, a.FeeAccount},
		{RoleTreasury, a.Treasury},
		{RoleBuyerTradeState, a.BuyerTradeState},
		{RoleSellerTradeState, a.SellerTradeState},
		{RoleFreeTradeState, a.FreeTradeState},
		{RoleDelegate, a.Delegate},
		{RoleEngineDelegate, a.EngineDelegate},
		{RoleProgramAsSigner, a.ProgramAsSigner},
	}
}

type WithdrawAccounts struct {
	Wallet         domain.Address
	ReceiptAccount domain.Address
	Escrow         domain.Address
	TreasuryMint   domain.Address
	Authority      domain.Address
	AuctionHouse   domain.Address
	FeeAccount     domain.Address
	Delegate       domain.Address
	EngineDelegate domain.Address
}

func (WithdrawAccounts) Op() Op { return OpWithdraw }

func (a WithdrawAccounts) Refs() []RoleRef {
	return []RoleRef{
		{RoleWallet, a.Wallet},
		{RoleReceiptAccount, a.ReceiptAccount},
		{RoleEscrow, a.Escrow},
		{RoleTreasuryMint, a.TreasuryMint},
		{RoleAuthority, a.Authority},
		{RoleAuctionHouse, a.AuctionHouse},
		{RoleFeeAccount, a.FeeAccount},
		{RoleDelegate, a.Delegate},
		{RoleEngineDelegate, a.EngineDelegate},
	}
}
