package forward

import (
	"encoding/json"
	"fmt"
)

// Args is the typed instruction payload for one operation.
type Args interface {
	Op() Op
}

type SellArgs struct {
	TradeStateNonce      uint8  `json:"trade_state_nonce"`
	FreeTradeStateNonce  uint8  `json:"free_trade_state_nonce"`
	ProgramAsSignerNonce uint8  `json:"program_as_signer_nonce"`
	BuyerPrice           uint64 `json:"buyer_price"`
	TokenSize            uint64 `json:"token_size"`
}

func (SellArgs) Op() Op { return OpSell }

type BuyArgs struct {
	TradeStateNonce uint8  `json:"trade_state_nonce"`
	EscrowNonce     uint8  `json:"escrow_nonce"`
	BuyerPrice      uint64 `json:"buyer_price"`
	TokenSize       uint64 `json:"token_size"`
}

func (BuyArgs) Op() Op { return OpBuy }

type DepositArgs struct {
	EscrowNonce uint8  `json:"escrow_nonce"`
	Amount      uint64 `json:"amount"`
}

func (DepositArgs) Op() Op { return OpDeposit }

type CancelArgs struct {
	BuyerPrice uint64 `json:"buyer_price"`
	TokenSize  uint64 `json:"token_size"`
}

func (CancelArgs) Op() Op { return OpCancel }

type ExecuteSaleArgs struct {
	EscrowNonce          uint8  `json:"escrow_nonce"`
	FreeTradeStateNonce  uint8  `json:"free_trade_state_nonce"`
	ProgramAsSignerNonce uint8  `json:"program_as_signer_nonce"`
	BuyerPrice           uint64 `json:"buyer_price"`
	TokenSize            uint64 `json:"token_size"`
}

func (ExecuteSaleArgs) Op() Op { return OpExecuteSale }

type WithdrawArgs struct {
	EscrowNonce uint8  `json:"escrow_nonce"`
	Amount      uint64 `json:"amount"`
}

func (WithdrawArgs) Op() Op { return OpWithdraw }

// decodeArgs picks the concrete argument type for op.
func decodeArgs(op Op, raw json.RawMessage) (Args, error) {
	var args Args
	switch op {
	case OpSell:
		args = &SellArgs{}
	case OpBuy:
		args = &BuyArgs{}
	case OpDeposit:
		args = &DepositArgs{}
	case OpCancel:
		args = &CancelArgs{}
	case OpExecuteSale:
		args = &ExecuteSaleArgs{}
	case OpWithdraw:
		args = &WithdrawArgs{}
	default:
		return nil, fmt.Errorf("forward: unknown op %q", op)
	}
	if err := json.Unmarshal(raw, args); err != nil {
		return nil, fmt.Errorf("forward: %s args: %w", op, err)
	}
	switch a := args.(type) {
	case *SellArgs:
		return *a, nil
	case *BuyArgs:
		return *a, nil
	case *DepositArgs:
		return *a, nil
	case *CancelArgs:
		return *a, nil
	case *ExecuteSaleArgs:
		return *a, nil
	default:
		return *args.(*WithdrawArgs), nil
	}
}
