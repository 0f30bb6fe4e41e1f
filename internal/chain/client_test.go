package chain

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"llm-defi-agent/internal/types"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

type fakeBackend struct {
	callOut  map[string][]byte
	sent     []*gethtypes.Transaction
	receipts map[common.Hash]*gethtypes.Receipt
	polls    int
}

func (b *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	out, ok := b.callOut[string(msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

func (b *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return uint64(len(b.sent)), nil
}

func (b *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(50_000_000_000), nil
}

func (b *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 60_000, nil
}

func (b *fakeBackend) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	b.polls++
	r, ok := b.receipts[hash]
	if !ok || b.polls < 2 {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func newTestClient(t *testing.T, b *fakeBackend) *Client {
	t.Helper()
	c, err := newClient(b, Config{ChainID: 10143, PrivateKey: "0x" + testKey, PollInterval: time.Millisecond, ReceiptTimeout: time.Second})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return c
}

func selector(method string) string {
	return string(ERC20.Methods[method].ID)
}

func TestBalanceAndDecimals(t *testing.T) {
	bal, _ := ERC20.Methods["balanceOf"].Outputs.Pack(big.NewInt(123456))
	dec, _ := ERC20.Methods["decimals"].Outputs.Pack(uint8(6))
	c := newTestClient(t, &fakeBackend{callOut: map[string][]byte{
		selector("balanceOf"): bal,
		selector("decimals"):  dec,
	}})

	got, err := c.BalanceOf(context.Background(), "0x0000000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.Int64() != 123456 {
		t.Errorf("Expected balance 123456, got %s", got)
	}
	d, err := c.Decimals(context.Background(), "0x0000000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if d != 6 {
		t.Errorf("Expected 6 decimals, got %d", d)
	}
	if _, err := c.Allowance(context.Background(), "0x01", "0x02"); err == nil {
		t.Error("Expected error for reverted call")
	}
}

func TestSendTransactionSignsForChain(t *testing.T) {
	b := &fakeBackend{}
	c := newTestClient(t, b)

	hash, err := c.Approve(context.Background(), "0x0000000000000000000000000000000000000001", "0x000000000022D473030F116dDEE9F6B43aC78BA3", big.NewInt(10))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(b.sent) != 1 {
		t.Fatalf("Expected one transaction, got %d", len(b.sent))
	}
	tx := b.sent[0]
	if tx.Hash().Hex() != hash {
		t.Errorf("Expected hash %s, got %s", tx.Hash().Hex(), hash)
	}
	if tx.Gas() != 60_000 || tx.ChainId().Int64() != 10143 {
		t.Errorf("Unexpected gas %d or chain %s", tx.Gas(), tx.ChainId())
	}
	from, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(big.NewInt(10143)), tx)
	if err != nil {
		t.Fatalf("Expected recoverable sender, got %v", err)
	}
	if from.Hex() != c.Address() {
		t.Errorf("Expected sender %s, got %s", c.Address(), from.Hex())
	}
}

func TestWaitForReceipt(t *testing.T) {
	ok := common.HexToHash("0x01")
	bad := common.HexToHash("0x02")
	b := &fakeBackend{receipts: map[common.Hash]*gethtypes.Receipt{
		ok:  {Status: gethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(7), GasUsed: 21000},
		bad: {Status: gethtypes.ReceiptStatusFailed, BlockNumber: big.NewInt(8)},
	}}
	c := newTestClient(t, b)

	r, err := c.WaitForReceipt(context.Background(), ok.Hex())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if r.BlockNumber != 7 || r.GasUsed != 21000 {
		t.Errorf("Unexpected receipt %+v", r)
	}

	b.polls = 0
	if _, err := c.WaitForReceipt(context.Background(), bad.Hex()); !errors.Is(err, types.ErrTxReverted) {
		t.Errorf("Expected ErrTxReverted, got %v", err)
	}

	c.receiptTimeout = 20 * time.Millisecond
	if _, err := c.WaitForReceipt(context.Background(), common.HexToHash("0x03").Hex()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestSignTypedDataRecoversSigner(t *testing.T) {
	c := newTestClient(t, &fakeBackend{})
	raw := json.RawMessage(`{
		"types": {
			"EIP712Domain": [{"name":"name","type":"string"},{"name":"chainId","type":"uint256"}],
			"Permit": [{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}]
		},
		"primaryType": "Permit",
		"domain": {"name": "Permit2", "chainId": "10143"},
		"message": {"spender": "0x000000000022D473030F116dDEE9F6B43aC78BA3", "amount": "1000"}
	}`)

	sig, err := c.SignTypedData(context.Background(), raw)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(sig) != 65 || (sig[64] != 27 && sig[64] != 28) {
		t.Fatalf("Expected 65-byte signature with V 27/28, got %x", sig)
	}

	var td apitypes.TypedData
	if err := json.Unmarshal(raw, &td); err != nil {
		t.Fatalf("Expected valid typed data, got %v", err)
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		t.Fatalf("Expected hash, got %v", err)
	}
	rsv := append([]byte(nil), sig...)
	rsv[64] -= 27
	pub, err := crypto.SigToPub(hash, rsv)
	if err != nil {
		t.Fatalf("Expected recoverable key, got %v", err)
	}
	if crypto.PubkeyToAddress(*pub).Hex() != c.Address() {
		t.Errorf("Expected signer %s, got %s", c.Address(), crypto.PubkeyToAddress(*pub).Hex())
	}
}
