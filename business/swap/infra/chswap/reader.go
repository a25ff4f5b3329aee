package chswap

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chswap-kiosk/business/swap/app"
	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/apperror"
	"github.com/fd1az/chswap-kiosk/internal/asset"
	"github.com/fd1az/chswap-kiosk/internal/cache"
	"github.com/fd1az/chswap-kiosk/internal/circuitbreaker"
	"github.com/fd1az/chswap-kiosk/internal/logger"
)

const (
	tracerName = "github.com/fd1az/chswap-kiosk/business/swap/infra/chswap"
	meterName  = "github.com/fd1az/chswap-kiosk/business/swap/infra/chswap"
)

var (
	_ app.RateSource      = (*Reader)(nil)
	_ app.BalanceSource   = (*Reader)(nil)
	_ app.AllowanceSource = (*Reader)(nil)
)

type readerMetrics struct {
	calls   metric.Int64Counter
	errors  metric.Int64Counter
	latency metric.Float64Histogram
}

// Reader performs read-only contract calls against the exchange and the
// pair tokens.
type Reader struct {
	caller   ethereum.ContractCaller
	exchange common.Address

	exchangeABI abi.ABI
	erc20ABI    abi.ABI

	cb       *circuitbreaker.CircuitBreaker[[]byte]
	decimals *cache.Cache[asset.AssetID, uint8]

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *readerMetrics
}

// NewReader creates a Reader for the exchange at the given address.
func NewReader(caller ethereum.ContractCaller, exchange common.Address, log logger.LoggerInterface) (*Reader, error) {
	exABI, err := exchangeABIInstance()
	if err != nil {
		return nil, apperror.New(apperror.CodeABIError, apperror.WithCause(err), apperror.WithContext("exchange abi"))
	}
	tokenABI, err := erc20ABIInstance()
	if err != nil {
		return nil, apperror.New(apperror.CodeABIError, apperror.WithCause(err), apperror.WithContext("erc20 abi"))
	}

	r := &Reader{
		caller:      caller,
		exchange:    exchange,
		exchangeABI: exABI,
		erc20ABI:    tokenABI,
		decimals:    cache.New[asset.AssetID, uint8](0),
		logger:      log,
		tracer:      otel.Tracer(tracerName),
	}

	cbCfg := circuitbreaker.DefaultConfig("chswap-reader")
	cbCfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		log.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	r.cb = circuitbreaker.New[[]byte](cbCfg)

	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return r, nil
}

func (r *Reader) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &readerMetrics{}

	r.metrics.calls, err = meter.Int64Counter(
		"chswap_reads_total",
		metric.WithDescription("Total contract reads"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	r.metrics.errors, err = meter.Int64Counter(
		"chswap_read_errors_total",
		metric.WithDescription("Failed contract reads"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	r.metrics.latency, err = meter.Float64Histogram(
		"chswap_read_latency_ms",
		metric.WithDescription("Contract read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// ReadRate returns the exchange price for d in quote units per 1000 base
// units.
func (r *Reader) ReadRate(ctx context.Context, d domain.Direction) (*big.Int, error) {
	method := methodBuyPrice
	if d == domain.DirectionSell {
		method = methodSellPrice
	}
	return r.callUint(ctx, r.exchangeABI, r.exchange, method)
}

// ReadBalance returns owner's balance of a.
func (r *Reader) ReadBalance(ctx context.Context, a *asset.Asset, owner common.Address) (*big.Int, error) {
	return r.callUint(ctx, r.erc20ABI, a.Address(), methodBalanceOf, owner)
}

// ReadAllowance returns what owner lets spender move of a.
func (r *Reader) ReadAllowance(ctx context.Context, a *asset.Asset, owner, spender common.Address) (*big.Int, error) {
	return r.callUint(ctx, r.erc20ABI, a.Address(), methodAllowance, owner, spender)
}

// Decimals returns the token's on-chain decimals. Results are cached for the
// life of the Reader.
func (r *Reader) Decimals(ctx context.Context, a *asset.Asset) (uint8, error) {
	if d, ok := r.decimals.Get(ctx, a.ID()); ok {
		return d, nil
	}

	out, err := r.call(ctx, r.erc20ABI, a.Address(), methodDecimals)
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, apperror.New(apperror.CodeABIError,
			apperror.WithContext(fmt.Sprintf("decimals: unexpected type %T", out[0])))
	}

	r.decimals.Set(ctx, a.ID(), d, 0)
	return d, nil
}

// Close releases the decimals cache.
func (r *Reader) Close() error {
	r.decimals.Close()
	return nil
}

func (r *Reader) callUint(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) (*big.Int, error) {
	out, err := r.call(ctx, contract, to, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, apperror.New(apperror.CodeABIError,
			apperror.WithContext(fmt.Sprintf("%s: unexpected type %T", method, out[0])))
	}
	return v, nil
}

func (r *Reader) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	ctx, span := r.tracer.Start(ctx, "chswap.call",
		trace.WithAttributes(
			attribute.String("method", method),
			attribute.String("to", to.Hex()),
		),
	)
	defer span.End()

	start := time.Now()
	r.metrics.calls.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))

	data, err := contract.Pack(method, args...)
	if err != nil {
		span.SetStatus(codes.Error, "pack failed")
		return nil, apperror.New(apperror.CodeABIError,
			apperror.WithCause(err),
			apperror.WithContext("pack "+method))
	}

	raw, err := r.cb.Execute(func() ([]byte, error) {
		return r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	r.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("method", method)))
	if err != nil {
		r.metrics.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "call failed")

		code := apperror.CodeContractCallFailed
		if circuitbreaker.IsOpen(err) {
			code = apperror.CodeCircuitOpen
		}
		return nil, apperror.New(code,
			apperror.WithCause(err),
			apperror.WithContext(method+" on "+to.Hex()))
	}

	out, err := contract.Unpack(method, raw)
	if err != nil {
		span.SetStatus(codes.Error, "unpack failed")
		return nil, apperror.New(apperror.CodeABIError,
			apperror.WithCause(err),
			apperror.WithContext("unpack "+method))
	}
	if len(out) == 0 {
		span.SetStatus(codes.Error, "empty result")
		return nil, apperror.New(apperror.CodeABIError, apperror.WithContext(method+": empty result"))
	}

	span.SetStatus(codes.Ok, "read")
	return out, nil
}
