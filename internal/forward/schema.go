package forward

import "github.com/alanyoungcy/auctioneer/internal/domain"

// Op names a base engine operation.
type Op string

const (
	OpSell        Op = "sell"
	OpBuy         Op = "buy"
	OpDeposit     Op = "deposit"
	OpCancel      Op = "cancel"
	OpExecuteSale Op = "execute_sale"
	OpWithdraw    Op = "withdraw"
)

// Role names an account position in a base engine operation.
type Role string

const (
	RoleWallet            Role = "wallet"
	RoleBuyer             Role = "buyer"
	RoleSeller            Role = "seller"
	RolePaymentAccount    Role = "payment_account"
	RoleTransferAuthority Role = "transfer_authority"
	RoleReceiptAccount    Role = "receipt_account"
	RoleTokenAccount      Role = "token_account"
	RoleTokenMint         Role = "token_mint"
	RoleMetadata          Role = "metadata"
	RoleTreasuryMint      Role = "treasury_mint"
	RoleEscrow            Role = "escrow_payment_account"
	RoleSellerReceipt     Role = "seller_payment_receipt_account"
	RoleBuyerReceiptToken Role = "buyer_receipt_token_account"
	RoleAuthority         Role = "authority"
	RoleAuctionHouse      Role = "auction_house"
	RoleFeeAccount        Role = "auction_house_fee_account"
	RoleTreasury          Role = "auction_house_treasury"
	RoleTradeState        Role = "trade_state"
	RoleBuyerTradeState   Role = "buyer_trade_state"
	RoleSellerTradeState  Role = "seller_trade_state"
	RoleFreeTradeState    Role = "free_trade_state"
	RoleDelegate          Role = "auctioneer_authority"
	RoleEngineDelegate    Role = "ah_auctioneer_pda"
	RoleProgramAsSigner   Role = "program_as_signer"
)

// RoleSpec is one position in a schema.
type RoleSpec struct {
	Role     Role
	Writable bool
}

// Schema is the ordered account layout the base engine expects for an
// operation, plus the scope a delegate needs to invoke it.
type Schema struct {
	Op    Op
	Scope domain.Scope
	Roles []RoleSpec
}

func r(role Role) RoleSpec { return RoleSpec{Role: role} }
func w(role Role) RoleSpec { return RoleSpec{Role: role, Writable: true} }

var schemas = map[Op]Schema{
	OpSell: {
		Op:    OpSell,
		Scope: domain.ScopeSell,
		Roles: []RoleSpec{
			w(RoleWallet),
			w(RoleTokenAccount),
			r(RoleMetadata),
			r(RoleAuthority),
			r(RoleAuctionHouse),
			w(RoleFeeAccount),
			w(RoleSellerTradeState),
			w(RoleFreeTradeState),
			r(RoleDelegate),
			r(RoleEngineDelegate),
			r(RoleProgramAsSigner),
		},
	},
	OpBuy: {
		Op:    OpBuy,
		Scope: domain.ScopeBuy,
		Roles: []RoleSpec{
			r(RoleWallet),
			w(RolePaymentAccount),
			r(RoleTransferAuthority),
			r(RoleTreasuryMint),
			r(RoleTokenAccount),
			r(RoleMetadata),
			w(RoleEscrow),
			r(RoleAuthority),
			r(RoleAuctionHouse),
			w(RoleFeeAccount),
			w(RoleBuyerTradeState),
			r(RoleDelegate),
			r(RoleEngineDelegate),
		},
	},
	OpDeposit: {
		Op:    OpDeposit,
		Scope: domain.ScopeDeposit,
		Roles: []RoleSpec{
			r(RoleWallet),
			w(RolePaymentAccount),
			r(RoleTransferAuthority),
			w(RoleEscrow),
			r(RoleTreasuryMint),
			r(RoleAuthority),
			r(RoleAuctionHouse),
			w(RoleFeeAccount),
			r(RoleDelegate),
			r(RoleEngineDelegate),
		},
	},
	OpCancel: {
		Op:    OpCancel,
		Scope: domain.ScopeCancel,
		Roles: []RoleSpec{
			w(RoleWallet),
			w(RoleTokenAccount),
			r(RoleTokenMint),
			r(RoleAuthority),
			r(RoleAuctionHouse),
			w(RoleFeeAccount),
			w(RoleTradeState),
			r(RoleDelegate),
			r(RoleEngineDelegate),
		},
	},
	OpExecuteSale: {
		Op:    OpExecuteSale,
		Scope: domain.ScopeExecuteSale,
		Roles: []RoleSpec{
			w(RoleBuyer),
			w(RoleSeller),
			w(RoleTokenAccount),
			r(RoleTokenMint),
			r(RoleMetadata),
			r(RoleTreasuryMint),
			w(RoleEscrow),
			w(RoleSellerReceipt),
			w(RoleBuyerReceiptToken),
			r(RoleAuthority),
			r(RoleAuctionHouse),
			w(RoleFeeAccount),
			w(RoleTreasury),
			w(RoleBuyerTradeState),
			w(RoleSellerTradeState),
			w(RoleFreeTradeState),
			r(RoleDelegate),
			r(RoleEngineDelegate),
			r(RoleProgramAsSigner),
		},
	},
	OpWithdraw: {
		Op:    OpWithdraw,
		Scope: domain.ScopeWithdraw,
		Roles: []RoleSpec{
			r(RoleWallet),
			w(RoleReceiptAccount),
			w(RoleEscrow),
			r(RoleTreasuryMint),
			r(RoleAuthority),
			r(RoleAuctionHouse),
			w(RoleFeeAccount),
			r(RoleDelegate),
			r(RoleEngineDelegate),
		},
	},
}

// SchemaFor returns the layout for op.
func SchemaFor(op Op) (Schema, bool) {
	s, ok := schemas[op]
	return s, ok
}

// Index returns the position of role in the schema, or -1.
func (s Schema) Index(role Role) int {
	for i, spec := range s.Roles {
		if spec.Role == role {
			return i
		}
	}
	return -1
}
