package interfaces

import (
	"context"
	"encoding/json"
	"math/big"

	"llm-defi-agent/internal/types"
)

// Wallet is the single configured signer plus the ERC-20 reads it needs.
type Wallet interface {
	Address() string
	BalanceOf(ctx context.Context, token string) (*big.Int, error)
	Decimals(ctx context.Context, token string) (uint8, error)
	Allowance(ctx context.Context, token, spender string) (*big.Int, error)
	Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error)
	SignTypedData(ctx context.Context, typedData json.RawMessage) ([]byte, error)
	SendTransaction(ctx context.Context, tx types.TxRequest) (string, error)
	WaitForReceipt(ctx context.Context, txHash string) (*types.Receipt, error)
}
