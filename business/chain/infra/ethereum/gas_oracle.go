package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chswap-kiosk/business/chain/app"
	"github.com/fd1az/chswap-kiosk/business/chain/domain"
	"github.com/fd1az/chswap-kiosk/internal/apperror"
	"github.com/fd1az/chswap-kiosk/internal/cache"
	"github.com/fd1az/chswap-kiosk/internal/circuitbreaker"
	"github.com/fd1az/chswap-kiosk/internal/logger"
)

const (
	keyGasPrice = "gas_price"
	keyFeeCaps  = "fee_caps"
)

// FeeClient is the node API the gas oracle needs. *ethclient.Client satisfies it.
type FeeClient interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// GasOracleConfig holds configuration for the gas oracle.
type GasOracleConfig struct {
	CacheTTL time.Duration // How long fee data stays fresh
	MaxFee   *big.Int      // Upper bound for any fee in wei
}

// DefaultGasOracleConfig returns defaults with the given fee ceiling.
func DefaultGasOracleConfig(maxFeeGwei int64) GasOracleConfig {
	cfg := GasOracleConfig{CacheTTL: 5 * time.Second}
	if maxFeeGwei > 0 {
		cfg.MaxFee = domain.GweiToWei(maxFeeGwei)
	}
	return cfg
}

type gasOracleMetrics struct {
	feeFetches  metric.Int64Counter
	feeCapGwei  metric.Float64Gauge
	estimateGas metric.Int64Counter
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
}

// GasOracle serves fee data and gas estimates from the node.
type GasOracle struct {
	config GasOracleConfig
	logger logger.LoggerInterface
	client FeeClient

	priceCache *cache.Cache[string, *domain.GasPrice]
	capsCache  *cache.Cache[string, *domain.FeeCaps]

	weiCB    *circuitbreaker.CircuitBreaker[*big.Int]
	headerCB *circuitbreaker.CircuitBreaker[*types.Header]

	tracer  trace.Tracer
	metrics *gasOracleMetrics
}

// NewGasOracle creates a gas oracle on top of client.
func NewGasOracle(cfg GasOracleConfig, client FeeClient, log logger.LoggerInterface) (*GasOracle, error) {
	g := &GasOracle{
		config:     cfg,
		logger:     log,
		client:     client,
		priceCache: cache.New[string, *domain.GasPrice](time.Minute),
		capsCache:  cache.New[string, *domain.FeeCaps](time.Minute),
		tracer:     otel.Tracer(tracerName),
	}

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	onChange := func(name string, from, to circuitbreaker.State) {
		g.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	weiCfg := circuitbreaker.DefaultConfig("gas-oracle")
	weiCfg.OnStateChange = onChange
	g.weiCB = circuitbreaker.New[*big.Int](weiCfg)

	headerCfg := circuitbreaker.DefaultConfig("gas-oracle-header")
	headerCfg.OnStateChange = onChange
	g.headerCB = circuitbreaker.New[*types.Header](headerCfg)

	return g, nil
}

func (g *GasOracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gasOracleMetrics{}

	g.metrics.feeFetches, err = meter.Int64Counter(
		"gas_fee_fetches_total",
		metric.WithDescription("Total fee data fetches"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	g.metrics.feeCapGwei, err = meter.Float64Gauge(
		"gas_fee_cap_gwei",
		metric.WithDescription("Current EIP-1559 fee cap in gwei"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	g.metrics.estimateGas, err = meter.Int64Counter(
		"gas_estimate_total",
		metric.WithDescription("Total gas estimation calls"),
		metric.WithUnit("{estimate}"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheHits, err = meter.Int64Counter(
		"gas_cache_hits_total",
		metric.WithDescription("Fee cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheMisses, err = meter.Int64Counter(
		"gas_cache_misses_total",
		metric.WithDescription("Fee cache misses"),
		metric.WithUnit("{miss}"),
	)
	return err
}

// GasPrice returns the legacy gas price, clamped to the configured maximum.
func (g *GasOracle) GasPrice(ctx context.Context) (*domain.GasPrice, error) {
	ctx, span := g.tracer.Start(ctx, "gas.price")
	defer span.End()

	if price, ok := g.priceCache.Get(ctx, keyGasPrice); ok {
		g.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return price, nil
	}
	g.metrics.cacheMisses.Add(ctx, 1)
	g.metrics.feeFetches.Add(ctx, 1)

	wei, err := g.weiCB.Execute(func() (*big.Int, error) {
		return g.client.SuggestGasPrice(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, g.feeError(err, "suggest gas price")
	}

	wei = g.clamp(ctx, wei)
	price := domain.NewGasPrice(wei)
	g.priceCache.Set(ctx, keyGasPrice, price, g.config.CacheTTL)

	span.SetAttributes(attribute.Float64("gwei", price.Gwei()))
	span.SetStatus(codes.Ok, "fetched")
	return price, nil
}

// FeeCaps returns EIP-1559 fee caps derived from the latest base fee.
func (g *GasOracle) FeeCaps(ctx context.Context) (*domain.FeeCaps, error) {
	ctx, span := g.tracer.Start(ctx, "gas.fee_caps")
	defer span.End()

	if caps, ok := g.capsCache.Get(ctx, keyFeeCaps); ok {
		g.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return caps, nil
	}
	g.metrics.cacheMisses.Add(ctx, 1)
	g.metrics.feeFetches.Add(ctx, 1)

	tip, err := g.weiCB.Execute(func() (*big.Int, error) {
		return g.client.SuggestGasTipCap(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tip failed")
		return nil, g.feeError(err, "suggest gas tip cap")
	}

	header, err := g.headerCB.Execute(func() (*types.Header, error) {
		return g.client.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "header failed")
		return nil, g.feeError(err, "latest header")
	}

	caps := domain.NewFeeCaps(tip, header.BaseFee, g.config.MaxFee)
	g.capsCache.Set(ctx, keyFeeCaps, caps, g.config.CacheTTL)
	g.metrics.feeCapGwei.Record(ctx, domain.ToGwei(caps.FeeCap))

	span.SetAttributes(
		attribute.String("tip_cap", caps.TipCap.String()),
		attribute.String("fee_cap", caps.FeeCap.String()),
	)
	span.SetStatus(codes.Ok, "fetched")
	return caps, nil
}

// EstimateGas estimates msg and adds a 10% margin.
func (g *GasOracle) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	attrs := []attribute.KeyValue{attribute.Int("data_len", len(msg.Data))}
	if msg.To != nil {
		attrs = append(attrs, attribute.String("to", msg.To.Hex()))
	}
	ctx, span := g.tracer.Start(ctx, "gas.estimate", trace.WithAttributes(attrs...))
	defer span.End()

	g.metrics.estimateGas.Add(ctx, 1)

	gas, err := g.client.EstimateGas(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "estimate failed")
		return 0, apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext("estimate gas"))
	}

	gas += gas / 10

	span.SetAttributes(attribute.Int64("gas", int64(gas)))
	span.SetStatus(codes.Ok, "estimated")
	return gas, nil
}

func (g *GasOracle) clamp(ctx context.Context, wei *big.Int) *big.Int {
	if g.config.MaxFee == nil || wei.Cmp(g.config.MaxFee) <= 0 {
		return wei
	}
	g.logger.Warn(ctx, "gas price exceeds max", "wei", wei.String(), "max", g.config.MaxFee.String())
	return new(big.Int).Set(g.config.MaxFee)
}

func (g *GasOracle) feeError(err error, context string) error {
	if circuitbreaker.IsOpen(err) {
		return apperror.New(apperror.CodeCircuitOpen,
			apperror.WithCause(err),
			apperror.WithContext(context))
	}
	return apperror.New(apperror.CodeFeeUnavailable,
		apperror.WithCause(err),
		apperror.WithContext(context))
}

// Close releases the caches.
func (g *GasOracle) Close() error {
	g.priceCache.Close()
	g.capsCache.Close()
	return nil
}

var _ app.GasOracle = (*GasOracle)(nil)
