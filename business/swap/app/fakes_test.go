package app

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/asset"
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
	chp      = asset.NewToken(asset.ChainIDCelo, common.HexToAddress("0x00000000000000000000000000000000000000c1"), "CHP", "CHP Token", asset.DecimalsCHP)
	usdc     = asset.NewToken(asset.ChainIDCelo, asset.AddrUSDCCelo, "USDC", "USD Coin", asset.DecimalsUSDC)
	pair     = domain.NewPair(chp, usdc)
	exchange = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

type fakeWallet struct {
	addr      common.Address
	connected bool
}

func (w fakeWallet) Address() (common.Address, bool) { return w.addr, w.connected }

var connectedWallet = fakeWallet{addr: owner, connected: true}

// fakeFeed serves a fixed snapshot. RefreshAllowances applies the queued
// allowance updates, mimicking a chain that has mined the approval.
type fakeFeed struct {
	mu        sync.Mutex
	snap      *domain.Snapshot
	onChain   map[asset.AssetID]*big.Int
	refreshes int
	onRefresh func()
}

func newFakeFeed(rates domain.Rates) *fakeFeed {
	b := domain.EmptySnapshot().Builder().
		Rate(domain.DirectionBuy, rates.Buy).
		Rate(domain.DirectionSell, rates.Sell).
		Balance(chp.ID(), big.NewInt(42)).
		Balance(usdc.ID(), big.NewInt(12_345_678_901))
	return &fakeFeed{snap: b.Build(time.Now()), onChain: map[asset.AssetID]*big.Int{}}
}

func (f *fakeFeed) Snapshot() *domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeFeed) setAllowance(a *asset.Asset, units int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = f.snap.Builder().Allowance(a.ID(), big.NewInt(units)).Build(time.Now())
}

// mine queues an allowance that becomes visible on the next forced refresh.
func (f *fakeFeed) mine(a *asset.Asset, units int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChain[a.ID()] = big.NewInt(units)
}

func (f *fakeFeed) RefreshAllowances(ctx context.Context) error {
	if f.onRefresh != nil {
		f.onRefresh()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	b := f.snap.Builder()
	for id, v := range f.onChain {
		b.Allowance(id, v)
	}
	f.snap = b.Build(time.Now())
	return nil
}

func (f *fakeFeed) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

type submission struct {
	kind      domain.Kind
	asset     *asset.Asset
	spender   common.Address
	direction domain.Direction
	amount    *big.Int
}

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []submission
	err   error
	seq   atomic.Int64
	// block, when set, holds submissions until released.
	block chan struct{}
}

func (s *fakeSubmitter) record(sub submission) (common.Hash, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.calls = append(s.calls, sub)
	s.mu.Unlock()
	if s.err != nil {
		return common.Hash{}, s.err
	}
	return common.BigToHash(big.NewInt(s.seq.Add(1))), nil
}

func (s *fakeSubmitter) SubmitAuthorize(ctx context.Context, a *asset.Asset, spender common.Address, amount *big.Int) (common.Hash, error) {
	return s.record(submission{kind: domain.KindAuthorize, asset: a, spender: spender, amount: new(big.Int).Set(amount)})
}

func (s *fakeSubmitter) SubmitExchange(ctx context.Context, d domain.Direction, amount *big.Int) (common.Hash, error) {
	return s.record(submission{kind: domain.KindExchange, direction: d, amount: new(big.Int).Set(amount)})
}

func (s *fakeSubmitter) submissions() []submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]submission(nil), s.calls...)
}

// fakeWatcher blocks until the test settles a transaction.
type fakeWatcher struct {
	outcomes chan result
}

type result struct {
	outcome domain.Outcome
	err     error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{outcomes: make(chan result, 4)}
}

func (w *fakeWatcher) AwaitConfirmation(ctx context.Context, hash common.Hash) (domain.Outcome, error) {
	select {
	case r := <-w.outcomes:
		return r.outcome, r.err
	case <-ctx.Done():
		return domain.OutcomeFailed, ctx.Err()
	}
}

func (w *fakeWatcher) settle(outcome domain.Outcome) {
	w.outcomes <- result{outcome: outcome}
}

func (w *fakeWatcher) fail(err error) {
	w.outcomes <- result{outcome: domain.OutcomeFailed, err: err}
}

type recordingReporter struct {
	nopReporter
	mu     sync.Mutex
	events []OperationEvent
	errs   []error
}

func (r *recordingReporter) ReportOperation(ev OperationEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingReporter) ReportError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recordingReporter) statuses() []domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Status, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Status
	}
	return out
}

var errUserDeclined = errors.New("user declined")
