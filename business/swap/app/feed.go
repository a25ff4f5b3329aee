package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/apm"
	"github.com/fd1az/chswap-kiosk/internal/asset"
	"github.com/fd1az/chswap-kiosk/internal/logger"
	"github.com/fd1az/chswap-kiosk/internal/ratelimit"
)

// FeedConfig configures the background refresher.
type FeedConfig struct {
	Pair     domain.Pair
	Exchange common.Address // spender of both assets
	Interval time.Duration
	// ReadsPerMinute budgets RPC reads. Zero is unlimited.
	ReadsPerMinute int
}

// Feed keeps an immutable snapshot of rates, balances and allowances fresh.
// Readers load the snapshot without blocking. Refreshes are serialized.
type Feed struct {
	cfg        FeedConfig
	rates      RateSource
	balances   BalanceSource
	allowances AllowanceSource
	wallet     Wallet
	limiter    *ratelimit.Limiter
	logger     logger.LoggerInterface
	tracer     apm.Tracer

	current atomic.Pointer[domain.Snapshot]
	mu      sync.Mutex
	kick    chan struct{}
	head    atomic.Uint64

	onUpdate func(*domain.Snapshot)
	now      func() time.Time
}

// NewFeed creates a feed with an empty snapshot.
func NewFeed(
	cfg FeedConfig,
	rates RateSource,
	balances BalanceSource,
	allowances AllowanceSource,
	wallet Wallet,
	log logger.LoggerInterface,
) *Feed {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}

	f := &Feed{
		cfg:        cfg,
		rates:      rates,
		balances:   balances,
		allowances: allowances,
		wallet:     wallet,
		limiter:    ratelimit.New(cfg.ReadsPerMinute),
		logger:     log,
		tracer:     apm.NewTracer("swap.feed"),
		kick:       make(chan struct{}, 1),
		now:        time.Now,
	}
	f.current.Store(domain.EmptySnapshot())
	return f
}

// OnUpdate registers fn to receive every published snapshot. It must be
// called before Run.
func (f *Feed) OnUpdate(fn func(*domain.Snapshot)) {
	f.onUpdate = fn
}

// Snapshot returns the latest published snapshot.
func (f *Feed) Snapshot() *domain.Snapshot {
	return f.current.Load()
}

// Run refreshes once, then on every tick and kick until ctx is done.
func (f *Feed) Run(ctx context.Context) {
	if err := f.Refresh(ctx); err != nil {
		f.logger.Warn(ctx, "initial feed refresh incomplete", "error", err)
	}

	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-f.kick:
		}

		if err := f.Refresh(ctx); err != nil && ctx.Err() == nil {
			f.logger.Warn(ctx, "feed refresh incomplete", "error", err)
		}
	}
}

// Kick asks Run to refresh for a new head. It never blocks.
func (f *Feed) Kick(block uint64) {
	for {
		prev := f.head.Load()
		if block <= prev || f.head.CompareAndSwap(prev, block) {
			break
		}
	}

	select {
	case f.kick <- struct{}{}:
	default:
	}
}

// Refresh reads everything and publishes a new snapshot. A failed read keeps
// the previous value.
func (f *Feed) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx, span := f.tracer.StartSpanFromContext(ctx, "feed.refresh")
	defer span.End()

	b := f.current.Load().Builder()
	var errs []error

	for _, d := range []domain.Direction{domain.DirectionBuy, domain.DirectionSell} {
		rate, err := f.read(ctx, func(ctx context.Context) (*big.Int, error) {
			return f.rates.ReadRate(ctx, d)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s rate: %w", d, err))
			continue
		}
		b.Rate(d, rate)
	}

	if owner, ok := f.wallet.Address(); ok {
		for _, a := range f.assets() {
			bal, err := f.read(ctx, func(ctx context.Context) (*big.Int, error) {
				return f.balances.ReadBalance(ctx, a, owner)
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("%s balance: %w", a.Symbol(), err))
				continue
			}
			b.Balance(a.ID(), bal)
		}
		errs = append(errs, f.readAllowances(ctx, b, owner)...)
	}

	f.publish(b, span, len(errs) == 0)

	err := errors.Join(errs...)
	span.NoticeError(err)
	if err == nil {
		span.Ok()
	}
	return err
}

// RefreshAllowances re-reads only the allowances. It is used after a
// confirmed transaction so the next decision sees post-transaction state.
func (f *Feed) RefreshAllowances(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx, span := f.tracer.StartSpanFromContext(ctx, "feed.refresh_allowances")
	defer span.End()

	owner, ok := f.wallet.Address()
	if !ok {
		return nil
	}

	b := f.current.Load().Builder()
	errs := f.readAllowances(ctx, b, owner)
	f.publish(b, span, false)

	err := errors.Join(errs...)
	span.NoticeError(err)
	return err
}

func (f *Feed) readAllowances(ctx context.Context, b *domain.SnapshotBuilder, owner common.Address) []error {
	var errs []error
	for _, a := range f.assets() {
		allowance, err := f.read(ctx, func(ctx context.Context) (*big.Int, error) {
			return f.allowances.ReadAllowance(ctx, a, owner, f.cfg.Exchange)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s allowance: %w", a.Symbol(), err))
			continue
		}
		b.Allowance(a.ID(), allowance)
	}
	return errs
}

func (f *Feed) assets() []*asset.Asset {
	return []*asset.Asset{f.cfg.Pair.Base, f.cfg.Pair.Quote}
}

func (f *Feed) read(ctx context.Context, fn func(context.Context) (*big.Int, error)) (*big.Int, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return fn(ctx)
}

// publish stores the built snapshot. Only a complete refresh advances the
// freshness stamp.
func (f *Feed) publish(b *domain.SnapshotBuilder, span apm.Span, complete bool) {
	at := f.current.Load().UpdatedAt()
	if complete {
		at = f.now()
	}
	s := b.Block(f.head.Load()).Build(at)
	f.current.Store(s)

	span.SetAttributes(attribute.Int64("block", int64(s.Block())))

	if f.onUpdate != nil {
		f.onUpdate(s)
	}
}

// HealthCheck fails when no snapshot was published within three intervals.
func (f *Feed) HealthCheck(_ context.Context) (bool, string) {
	at := f.current.Load().UpdatedAt()
	if at.IsZero() {
		return false, "no snapshot yet"
	}

	age := f.now().Sub(at)
	if age > 3*f.cfg.Interval {
		return false, fmt.Sprintf("snapshot %s old", age.Round(time.Second))
	}
	return true, fmt.Sprintf("snapshot at block %d, %s old", f.current.Load().Block(), age.Round(time.Second))
}
