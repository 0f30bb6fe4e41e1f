package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/logger"
	"llm-defi-agent/internal/types"
)

// SwapExecutor runs a permit2 swap through the aggregator for the configured wallet.
type SwapExecutor struct {
	wallet     interfaces.Wallet
	aggregator interfaces.SwapAggregator
	tokens     TokenPair
	permit2    string
}

// NewSwapExecutor swaps between the pair tokens through agg, approving permit2 as needed.
func NewSwapExecutor(w interfaces.Wallet, agg interfaces.SwapAggregator, tokens TokenPair, permit2 string) *SwapExecutor {
	return &SwapExecutor{
		wallet:     w,
		aggregator: agg,
		tokens:     tokens,
		permit2:    permit2,
	}
}

// ExecuteSwap sells sellAmount base units of the side's sell token and
// blocks until the swap transaction is confirmed.
func (s *SwapExecutor) ExecuteSwap(ctx context.Context, side string, sellAmount *big.Int) (*types.Receipt, error) {
	sellToken, buyToken, err := s.tokens.forSide(side)
	if err != nil {
		return nil, err
	}
	if sellAmount == nil || sellAmount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: nothing to sell", types.ErrInsufficientBalance)
	}

	balance, err := s.wallet.BalanceOf(ctx, sellToken)
	if err != nil {
		return nil, fmt.Errorf("read balance of %s: %w", sellToken, err)
	}
	if balance.Cmp(sellAmount) < 0 {
		return nil, fmt.Errorf("%w: have %s, need %s of %s", types.ErrInsufficientBalance, balance, sellAmount, sellToken)
	}

	if err := s.ensureAllowance(ctx, sellToken, sellAmount); err != nil {
		return nil, err
	}

	quote, err := s.aggregator.Quote(ctx, types.QuoteRequest{
		SellToken:  sellToken,
		BuyToken:   buyToken,
		SellAmount: sellAmount,
		Taker:      s.wallet.Address(),
	})
	if err != nil {
		return nil, fmt.Errorf("get swap quote: %w", err)
	}
	if !quote.LiquidityAvailable {
		return nil, types.ErrNoLiquidity
	}
	if len(quote.PermitTypedData) == 0 {
		return nil, errors.New("quote carries no permit2 payload")
	}

	sig, err := s.wallet.SignTypedData(ctx, quote.PermitTypedData)
	if err != nil {
		return nil, fmt.Errorf("sign permit2 payload: %w", err)
	}

	tx := quote.Transaction
	tx.Data = appendSignature(tx.Data, sig)

	hash, err := s.wallet.SendTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("send swap transaction: %w", err)
	}
	logger.Debug(ctx, "Swap transaction submitted", "tx_hash", hash, "side", side, "sell_amount", sellAmount.String())

	receipt, err := s.wallet.WaitForReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("wait for swap %s: %w", hash, err)
	}
	return receipt, nil
}

// ensureAllowance approves the permit2 contract for exactly amount when the
// current allowance does not cover it, waiting for the approval to confirm.
func (s *SwapExecutor) ensureAllowance(ctx context.Context, token string, amount *big.Int) error {
	current, err := s.wallet.Allowance(ctx, token, s.permit2)
	if err != nil {
		return fmt.Errorf("read allowance of %s: %w", token, err)
	}
	if current != nil && current.Cmp(amount) >= 0 {
		return nil
	}

	hash, err := s.wallet.Approve(ctx, token, s.permit2, amount)
	if err != nil {
		return fmt.Errorf("approve %s: %w", token, err)
	}
	if _, err := s.wallet.WaitForReceipt(ctx, hash); err != nil {
		return fmt.Errorf("wait for approval %s: %w", hash, err)
	}
	logger.Info(ctx, "Permit2 allowance approved", "token", token, "amount", amount.String(), "tx_hash", hash)
	return nil
}

// appendSignature appends the 32-byte big-endian signature length and the signature.
func appendSignature(data, sig []byte) []byte {
	out := make([]byte, 0, len(data)+32+len(sig))
	out = append(out, data...)
	out = append(out, common.LeftPadBytes(big.NewInt(int64(len(sig))).Bytes(), 32)...)
	return append(out, sig...)
}
