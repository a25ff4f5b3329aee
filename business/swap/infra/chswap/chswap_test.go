package chswap

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	chaindomain "github.com/fd1az/chswap-kiosk/business/chain/domain"
	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/apperror"
	"github.com/fd1az/chswap-kiosk/internal/asset"
	"github.com/fd1az/chswap-kiosk/internal/config"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var (
	exchangeAddr = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	ownerAddr    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	chp          = asset.NewToken(asset.ChainIDCelo, common.HexToAddress("0x00000000000000000000000000000000000000c1"), "CHP", "CHP Token", asset.DecimalsCHP)
	usdc         = asset.NewToken(asset.ChainIDCelo, asset.AddrUSDCCelo, "USDC", "USD Coin", asset.DecimalsUSDC)
)

func mustABI(t *testing.T, fn func() (abi.ABI, error)) abi.ABI {
	t.Helper()
	a, err := fn()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	return a
}

// methodFor resolves the called method from the selector.
func methodFor(t *testing.T, contract abi.ABI, data []byte) *abi.Method {
	t.Helper()
	m, err := contract.MethodById(data[:4])
	if err != nil {
		t.Fatalf("unknown selector %x", data[:4])
	}
	return m
}

type callRecord struct {
	to     common.Address
	method string
	args   []any
}

// fakeCaller answers contract calls with canned values keyed by method name.
type fakeCaller struct {
	t       *testing.T
	mu      sync.Mutex
	values  map[string]any
	err     error
	records []callRecord
}

func (c *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	contract := mustABI(c.t, erc20ABIInstance)
	if *msg.To == exchangeAddr {
		contract = mustABI(c.t, exchangeABIInstance)
	}
	m := methodFor(c.t, contract, msg.Data)
	args, err := m.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		c.t.Fatalf("unpack %s inputs: %v", m.Name, err)
	}
	c.records = append(c.records, callRecord{to: *msg.To, method: m.Name, args: args})

	if c.err != nil {
		return nil, c.err
	}
	return m.Outputs.Pack(c.values[m.Name])
}

func (c *fakeCaller) calls(method string) []callRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []callRecord
	for _, r := range c.records {
		if r.method == method {
			out = append(out, r)
		}
	}
	return out
}

func newTestReader(t *testing.T, caller *fakeCaller) *Reader {
	t.Helper()
	r, err := NewReader(caller, exchangeAddr, &mockLogger{})
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestReader_ReadRate(t *testing.T) {
	caller := &fakeCaller{t: t, values: map[string]any{
		methodBuyPrice:  big.NewInt(500_000),
		methodSellPrice: big.NewInt(450_000),
	}}
	r := newTestReader(t, caller)

	tests := []struct {
		direction domain.Direction
		want      int64
		method    string
	}{
		{domain.DirectionBuy, 500_000, methodBuyPrice},
		{domain.DirectionSell, 450_000, methodSellPrice},
	}

	for _, tt := range tests {
		t.Run(tt.direction.String(), func(t *testing.T) {
			got, err := r.ReadRate(context.Background(), tt.direction)
			if err != nil {
				t.Fatalf("read rate: %v", err)
			}
			if got.Int64() != tt.want {
				t.Errorf("expected %d, got %s", tt.want, got)
			}
			calls := caller.calls(tt.method)
			if len(calls) != 1 || calls[0].to != exchangeAddr {
				t.Errorf("expected one %s call on the exchange, got %+v", tt.method, calls)
			}
		})
	}
}

func TestReader_BalanceAndAllowance(t *testing.T) {
	caller := &fakeCaller{t: t, values: map[string]any{
		methodBalanceOf: big.NewInt(2_500_000),
		methodAllowance: big.NewInt(1_010),
	}}
	r := newTestReader(t, caller)
	ctx := context.Background()

	bal, err := r.ReadBalance(ctx, usdc, ownerAddr)
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	if bal.Int64() != 2_500_000 {
		t.Errorf("unexpected balance %s", bal)
	}

	allowance, err := r.ReadAllowance(ctx, chp, ownerAddr, exchangeAddr)
	if err != nil {
		t.Fatalf("read allowance: %v", err)
	}
	if allowance.Int64() != 1_010 {
		t.Errorf("unexpected allowance %s", allowance)
	}

	calls := caller.calls(methodAllowance)
	if len(calls) != 1 {
		t.Fatalf("expected one allowance call, got %d", len(calls))
	}
	if calls[0].to != chp.Address() {
		t.Errorf("allowance read from %s", calls[0].to.Hex())
	}
	if calls[0].args[0].(common.Address) != ownerAddr || calls[0].args[1].(common.Address) != exchangeAddr {
		t.Errorf("unexpected allowance args %v", calls[0].args)
	}
}

func TestReader_DecimalsCached(t *testing.T) {
	caller := &fakeCaller{t: t, values: map[string]any{methodDecimals: uint8(6)}}
	r := newTestReader(t, caller)

	for i := 0; i < 3; i++ {
		d, err := r.Decimals(context.Background(), usdc)
		if err != nil {
			t.Fatalf("decimals: %v", err)
		}
		if d != 6 {
			t.Errorf("expected 6, got %d", d)
		}
	}
	if n := len(caller.calls(methodDecimals)); n != 1 {
		t.Errorf("expected one decimals call, got %d", n)
	}
}

func TestReader_CallError(t *testing.T) {
	caller := &fakeCaller{t: t, err: errors.New("execution reverted")}
	r := newTestReader(t, caller)

	_, err := r.ReadRate(context.Background(), domain.DirectionBuy)
	if apperror.GetCode(err) != apperror.CodeContractCallFailed {
		t.Errorf("expected %s, got %v", apperror.CodeContractCallFailed, err)
	}
}

type fakeBackend struct {
	nonce   uint64
	sendErr error
	sent    []*types.Transaction
}

func (b *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	b.nonce++
	return nil
}

type fakeFees struct {
	estimated []ethereum.CallMsg
}

func (f *fakeFees) FeeCaps(ctx context.Context) (*chaindomain.FeeCaps, error) {
	return chaindomain.NewFeeCaps(big.NewInt(1e9), big.NewInt(5e9), nil), nil
}

func (f *fakeFees) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.estimated = append(f.estimated, msg)
	return 60_000, nil
}

func newTestSubmitter(t *testing.T, backend *fakeBackend, fees *fakeFees) (*Submitter, *Wallet) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	wallet := NewKeyWallet(key)
	s, err := NewSubmitter(SubmitterConfig{
		ChainID:  new(big.Int).SetUint64(asset.ChainIDCelo),
		Exchange: exchangeAddr,
	}, backend, fees, wallet, &mockLogger{})
	if err != nil {
		t.Fatalf("new submitter: %v", err)
	}
	return s, wallet
}

func TestSubmitter_SubmitAuthorize(t *testing.T) {
	backend := &fakeBackend{nonce: 7}
	fees := &fakeFees{}
	s, wallet := newTestSubmitter(t, backend, fees)

	hash, err := s.SubmitAuthorize(context.Background(), usdc, exchangeAddr, big.NewInt(2_500_000))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected one transaction, got %d", len(backend.sent))
	}
	tx := backend.sent[0]

	if tx.Hash() != hash {
		t.Error("returned hash does not match the broadcast transaction")
	}
	if tx.Type() != types.DynamicFeeTxType {
		t.Errorf("expected dynamic fee tx, got type %d", tx.Type())
	}
	if *tx.To() != usdc.Address() || tx.Nonce() != 7 || tx.Gas() != 60_000 {
		t.Errorf("unexpected tx to=%s nonce=%d gas=%d", tx.To().Hex(), tx.Nonce(), tx.Gas())
	}
	if tx.GasFeeCap().Int64() != 11e9 || tx.GasTipCap().Int64() != 1e9 {
		t.Errorf("unexpected fees cap=%s tip=%s", tx.GasFeeCap(), tx.GasTipCap())
	}

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if addr, _ := wallet.Address(); from != addr {
		t.Errorf("signed by %s, want %s", from.Hex(), addr.Hex())
	}

	erc20 := mustABI(t, erc20ABIInstance)
	m := methodFor(t, erc20, tx.Data())
	if m.Name != methodApprove {
		t.Fatalf("expected approve, got %s", m.Name)
	}
	args, err := m.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if args[0].(common.Address) != exchangeAddr || args[1].(*big.Int).Int64() != 2_500_000 {
		t.Errorf("unexpected approve args %v", args)
	}

	if len(fees.estimated) != 1 || !bytes.Equal(fees.estimated[0].Data, tx.Data()) {
		t.Error("expected gas to be estimated for the same call data")
	}
}

func TestSubmitter_SubmitExchange(t *testing.T) {
	tests := []struct {
		direction domain.Direction
		method    string
	}{
		{domain.DirectionBuy, methodBuy},
		{domain.DirectionSell, methodSell},
	}

	for _, tt := range tests {
		t.Run(tt.direction.String(), func(t *testing.T) {
			backend := &fakeBackend{}
			s, _ := newTestSubmitter(t, backend, &fakeFees{})

			if _, err := s.SubmitExchange(context.Background(), tt.direction, big.NewInt(1000)); err != nil {
				t.Fatalf("submit: %v", err)
			}
			tx := backend.sent[0]
			if *tx.To() != exchangeAddr {
				t.Errorf("sent to %s", tx.To().Hex())
			}
			m := methodFor(t, mustABI(t, exchangeABIInstance), tx.Data())
			if m.Name != tt.method {
				t.Errorf("expected %s, got %s", tt.method, m.Name)
			}
		})
	}
}

func TestSubmitter_SendRejected(t *testing.T) {
	backend := &fakeBackend{sendErr: errors.New("insufficient funds for gas")}
	s, _ := newTestSubmitter(t, backend, &fakeFees{})

	_, err := s.SubmitExchange(context.Background(), domain.DirectionBuy, big.NewInt(1))
	if apperror.GetCode(err) != apperror.CodeChainRPCError {
		t.Errorf("expected %s, got %v", apperror.CodeChainRPCError, err)
	}
}

func TestSubmitter_RequiresKey(t *testing.T) {
	_, err := NewSubmitter(SubmitterConfig{ChainID: big.NewInt(42220)}, &fakeBackend{}, &fakeFees{},
		NewWatchWallet(ownerAddr), &mockLogger{})
	if apperror.GetCode(err) != apperror.CodeSignerUnavailable {
		t.Errorf("expected %s, got %v", apperror.CodeSignerUnavailable, err)
	}

	var ro ReadOnlySubmitter
	if _, err := ro.SubmitAuthorize(context.Background(), usdc, exchangeAddr, big.NewInt(1)); apperror.GetCode(err) != apperror.CodeSignerUnavailable {
		t.Errorf("read-only approve: %v", err)
	}
	if _, err := ro.SubmitExchange(context.Background(), domain.DirectionSell, big.NewInt(1)); apperror.GetCode(err) != apperror.CodeSignerUnavailable {
		t.Errorf("read-only exchange: %v", err)
	}
}

// scriptedReceipts returns NotFound for the first pending lookups.
type scriptedReceipts struct {
	mu      sync.Mutex
	pending int
	status  uint64
	lookups int
}

func (r *scriptedReceipts) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if r.lookups <= r.pending {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: r.status, TxHash: hash, BlockNumber: big.NewInt(100)}, nil
}

func TestWatcher_AwaitConfirmation(t *testing.T) {
	tests := []struct {
		name   string
		status uint64
		want   domain.Outcome
	}{
		{"success", types.ReceiptStatusSuccessful, domain.OutcomeConfirmed},
		{"reverted", types.ReceiptStatusFailed, domain.OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipts := &scriptedReceipts{pending: 2, status: tt.status}
			w := NewWatcher(receipts, time.Millisecond, &mockLogger{})

			got, err := w.AwaitConfirmation(context.Background(), common.HexToHash("0x01"))
			if err != nil {
				t.Fatalf("await: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if receipts.lookups != 3 {
				t.Errorf("expected 3 lookups, got %d", receipts.lookups)
			}
		})
	}
}

func TestWatcher_ContextCancelled(t *testing.T) {
	receipts := &scriptedReceipts{pending: 1 << 30}
	w := NewWatcher(receipts, time.Millisecond, &mockLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got, err := w.AwaitConfirmation(ctx, common.HexToHash("0x02"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if got != domain.OutcomeFailed {
		t.Errorf("expected failed outcome, got %v", got)
	}
}

func TestNewWallet(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyHex := hex.EncodeToString(crypto.FromECDSA(key))

	tests := []struct {
		name      string
		cfg       config.WalletConfig
		want      common.Address
		connected bool
		canSign   bool
	}{
		{"key", config.WalletConfig{PrivateKey: "0x" + keyHex, Address: ownerAddr.Hex()}, crypto.PubkeyToAddress(key.PublicKey), true, true},
		{"watch only", config.WalletConfig{Address: ownerAddr.Hex()}, ownerAddr, true, false},
		{"none", config.WalletConfig{}, common.Address{}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWallet(tt.cfg)
			if err != nil {
				t.Fatalf("new wallet: %v", err)
			}
			addr, ok := w.Address()
			if addr != tt.want || ok != tt.connected || w.CanSign() != tt.canSign {
				t.Errorf("got addr=%s connected=%v sign=%v", addr.Hex(), ok, w.CanSign())
			}
		})
	}

	if _, err := NewWallet(config.WalletConfig{PrivateKey: "zz"}); err == nil {
		t.Error("expected an invalid key to be rejected")
	}
}
