package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/logger"
	"llm-defi-agent/internal/types"
)

// backend is the subset of ethclient.Client the signer uses.
type backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

type Config struct {
	RPCURL         string
	ChainID        int64
	PrivateKey     string
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

// Client is the single configured signer on one EVM chain.
type Client struct {
	eth            backend
	closer         func()
	key            *ecdsa.PrivateKey
	from           common.Address
	chainID        *big.Int
	receiptTimeout time.Duration
	pollInterval   time.Duration

	// guards nonce lookup and submission
	sendMu sync.Mutex
}

var _ interfaces.Wallet = (*Client)(nil)

// Dial connects to cfg.RPCURL and loads the signer key.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	c, err := newClient(eth, cfg)
	if err != nil {
		eth.Close()
		return nil, err
	}
	c.closer = eth.Close
	return c, nil
}

func newClient(eth backend, cfg Config) (*Client, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	c := &Client{
		eth:            eth,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		chainID:        big.NewInt(cfg.ChainID),
		receiptTimeout: cfg.ReceiptTimeout,
		pollInterval:   cfg.PollInterval,
	}
	if c.receiptTimeout <= 0 {
		c.receiptTimeout = 2 * time.Minute
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 2 * time.Second
	}
	return c, nil
}

func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

func (c *Client) Address() string {
	return c.from.Hex()
}

func (c *Client) BalanceOf(ctx context.Context, token string) (*big.Int, error) {
	return c.BalanceOfAccount(ctx, token, c.from.Hex())
}

// BalanceOfAccount reads an ERC-20 balance for any holder.
func (c *Client) BalanceOfAccount(ctx context.Context, token, holder string) (*big.Int, error) {
	out, err := c.CallContract(ctx, token, ERC20, "balanceOf", common.HexToAddress(holder))
	if err != nil {
		return nil, err
	}
	return firstBigInt(out)
}

func (c *Client) Decimals(ctx context.Context, token string) (uint8, error) {
	out, err := c.CallContract(ctx, token, ERC20, "decimals")
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("decimals: unexpected output %v", out)
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected type %T", out[0])
	}
	return d, nil
}

func (c *Client) Allowance(ctx context.Context, token, spender string) (*big.Int, error) {
	out, err := c.CallContract(ctx, token, ERC20, "allowance", c.from, common.HexToAddress(spender))
	if err != nil {
		return nil, err
	}
	return firstBigInt(out)
}

// Approve submits an ERC-20 approve and returns its hash without waiting.
func (c *Client) Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	return c.WriteContract(ctx, token, ERC20, "approve", common.HexToAddress(spender), amount)
}

// CallContract runs a read-only call and unpacks its outputs.
func (c *Client) CallContract(ctx context.Context, to string, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	addr := common.HexToAddress(to)
	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{From: c.from, To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to, err)
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// WriteContract submits a state-changing call and returns the tx hash
// without waiting for it to be mined.
func (c *Client) WriteContract(ctx context.Context, to string, parsed abi.ABI, method string, args ...interface{}) (string, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("pack %s: %w", method, err)
	}
	return c.SendTransaction(ctx, types.TxRequest{To: to, Data: data})
}

// SignTypedData signs an EIP-712 document and returns the 65-byte
// signature with V in {27, 28}.
func (c *Client) SignTypedData(ctx context.Context, raw json.RawMessage) ([]byte, error) {
	var td apitypes.TypedData
	if err := json.Unmarshal(raw, &td); err != nil {
		return nil, fmt.Errorf("decode typed data: %w", err)
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	sig, err := crypto.Sign(hash, c.key)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SendTransaction signs req with the next pending nonce and broadcasts it.
// Gas and gas price are estimated when unset.
func (c *Client) SendTransaction(ctx context.Context, req types.TxRequest) (string, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	to := common.HexToAddress(req.To)
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("get nonce: %w", err)
	}
	gasPrice := req.GasPrice
	if gasPrice == nil || gasPrice.Sign() == 0 {
		if gasPrice, err = c.eth.SuggestGasPrice(ctx); err != nil {
			return "", fmt.Errorf("suggest gas price: %w", err)
		}
	}
	gas := req.Gas
	if gas == 0 {
		gas, err = c.eth.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &to, Value: value, Data: req.Data})
		if err != nil {
			return "", fmt.Errorf("estimate gas: %w", err)
		}
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     req.Data,
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	hash := signed.Hash().Hex()
	logger.Debug(ctx, "Transaction sent", "tx_hash", hash, "to", req.To, "nonce", nonce, "gas", gas)
	return hash, nil
}

// WaitForReceipt polls until the transaction is mined or the receipt
// timeout passes. A mined but reverted transaction returns ErrTxReverted.
func (c *Client) WaitForReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		r, err := c.eth.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			receipt := &types.Receipt{
				TxHash:  txHash,
				Status:  r.Status,
				GasUsed: r.GasUsed,
			}
			if r.BlockNumber != nil {
				receipt.BlockNumber = r.BlockNumber.Uint64()
			}
			if r.Status != gethtypes.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: %s", types.ErrTxReverted, txHash)
			}
			return receipt, nil
		case !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("get receipt %s: %w", txHash, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for receipt %s: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}

func firstBigInt(out []interface{}) (*big.Int, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected output %v", out)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", out[0])
	}
	return v, nil
}
