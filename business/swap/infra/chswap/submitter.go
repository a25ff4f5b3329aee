package chswap

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	chaindomain "github.com/fd1az/chswap-kiosk/business/chain/domain"
	"github.com/fd1az/chswap-kiosk/business/swap/app"
	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/apperror"
	"github.com/fd1az/chswap-kiosk/internal/asset"
	"github.com/fd1az/chswap-kiosk/internal/logger"
)

// TxBackend is the part of the node client used to broadcast.
type TxBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// FeeSource supplies EIP-1559 fees and gas limits.
type FeeSource interface {
	FeeCaps(ctx context.Context) (*chaindomain.FeeCaps, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// SubmitterConfig configures a Submitter.
type SubmitterConfig struct {
	ChainID  *big.Int
	Exchange common.Address
}

type submitterMetrics struct {
	submitted metric.Int64Counter
	rejected  metric.Int64Counter
}

// Submitter signs and broadcasts approvals and exchanges with the wallet key.
type Submitter struct {
	cfg     SubmitterConfig
	backend TxBackend
	fees    FeeSource
	wallet  *Wallet
	signer  types.Signer

	exchangeABI abi.ABI
	erc20ABI    abi.ABI

	// mu serializes nonce allocation and broadcast.
	mu sync.Mutex

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *submitterMetrics
}

// NewSubmitter creates a Submitter. The wallet must hold a key.
func NewSubmitter(cfg SubmitterConfig, backend TxBackend, fees FeeSource, wallet *Wallet, log logger.LoggerInterface) (*Submitter, error) {
	if wallet == nil || !wallet.CanSign() {
		return nil, apperror.New(apperror.CodeSignerUnavailable)
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("chain id"))
	}

	exABI, err := exchangeABIInstance()
	if err != nil {
		return nil, apperror.New(apperror.CodeABIError, apperror.WithCause(err), apperror.WithContext("exchange abi"))
	}
	tokenABI, err := erc20ABIInstance()
	if err != nil {
		return nil, apperror.New(apperror.CodeABIError, apperror.WithCause(err), apperror.WithContext("erc20 abi"))
	}

	s := &Submitter{
		cfg:         cfg,
		backend:     backend,
		fees:        fees,
		wallet:      wallet,
		signer:      types.LatestSignerForChainID(cfg.ChainID),
		exchangeABI: exABI,
		erc20ABI:    tokenABI,
		logger:      log,
		tracer:      otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return s, nil
}

func (s *Submitter) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &submitterMetrics{}

	s.metrics.submitted, err = meter.Int64Counter(
		"chswap_tx_submitted_total",
		metric.WithDescription("Transactions accepted by the node"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	s.metrics.rejected, err = meter.Int64Counter(
		"chswap_tx_rejected_total",
		metric.WithDescription("Transactions rejected before broadcast"),
		metric.WithUnit("{tx}"),
	)
	return err
}

// SubmitAuthorize approves spender to move amount of a.
func (s *Submitter) SubmitAuthorize(ctx context.Context, a *asset.Asset, spender common.Address, amount *big.Int) (common.Hash, error) {
	data, err := s.erc20ABI.Pack(methodApprove, spender, amount)
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeABIError, apperror.WithCause(err), apperror.WithContext("pack approve"))
	}
	return s.send(ctx, methodApprove, a.Address(), data)
}

// SubmitExchange calls buyCHP or sellCHP with amount in input units.
func (s *Submitter) SubmitExchange(ctx context.Context, d domain.Direction, amount *big.Int) (common.Hash, error) {
	method := methodBuy
	if d == domain.DirectionSell {
		method = methodSell
	}
	data, err := s.exchangeABI.Pack(method, amount)
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeABIError, apperror.WithCause(err), apperror.WithContext("pack "+method))
	}
	return s.send(ctx, method, s.cfg.Exchange, data)
}

func (s *Submitter) send(ctx context.Context, method string, to common.Address, data []byte) (common.Hash, error) {
	ctx, span := s.tracer.Start(ctx, "chswap.send",
		trace.WithAttributes(
			attribute.String("method", method),
			attribute.String("to", to.Hex()),
		),
	)
	defer span.End()

	fail := func(err error, status string) (common.Hash, error) {
		s.metrics.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		return common.Hash{}, err
	}

	from, _ := s.wallet.Address()

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return fail(apperror.New(apperror.CodeChainRPCError, apperror.WithCause(err), apperror.WithContext("pending nonce")), "nonce failed")
	}

	caps, err := s.fees.FeeCaps(ctx)
	if err != nil {
		return fail(err, "fees failed")
	}

	gas, err := s.fees.EstimateGas(ctx, ethereum.CallMsg{
		From:      from,
		To:        &to,
		GasFeeCap: caps.FeeCap,
		GasTipCap: caps.TipCap,
		Data:      data,
	})
	if err != nil {
		return fail(err, "estimate failed")
	}

	tx, err := types.SignNewTx(s.wallet.key, s.signer, &types.DynamicFeeTx{
		ChainID:   s.cfg.ChainID,
		Nonce:     nonce,
		GasTipCap: caps.TipCap,
		GasFeeCap: caps.FeeCap,
		Gas:       gas,
		To:        &to,
		Value:     new(big.Int),
		Data:      data,
	})
	if err != nil {
		return fail(apperror.New(apperror.CodeSignerUnavailable, apperror.WithCause(err)), "sign failed")
	}

	if err := s.backend.SendTransaction(ctx, tx); err != nil {
		return fail(apperror.New(apperror.CodeChainRPCError, apperror.WithCause(err), apperror.WithContext("send "+method)), "send failed")
	}

	s.metrics.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
	span.SetAttributes(
		attribute.String("tx_hash", tx.Hash().Hex()),
		attribute.Int64("nonce", int64(nonce)),
		attribute.Int64("gas", int64(gas)),
	)
	span.SetStatus(codes.Ok, "sent")
	s.logger.Debug(ctx, "transaction sent",
		"method", method,
		"tx", tx.Hash().Hex(),
		"nonce", nonce,
		"gas", gas,
		"fee_cap_gwei", chaindomain.ToGwei(caps.FeeCap))

	return tx.Hash(), nil
}

// ReadOnlySubmitter rejects every submission. It backs watch-only wallets.
type ReadOnlySubmitter struct{}

func (ReadOnlySubmitter) SubmitAuthorize(context.Context, *asset.Asset, common.Address, *big.Int) (common.Hash, error) {
	return common.Hash{}, apperror.New(apperror.CodeSignerUnavailable, apperror.WithContext("approve"))
}

func (ReadOnlySubmitter) SubmitExchange(_ context.Context, d domain.Direction, _ *big.Int) (common.Hash, error) {
	return common.Hash{}, apperror.New(apperror.CodeSignerUnavailable, apperror.WithContext(d.String()))
}

var (
	_ app.Submitter = (*Submitter)(nil)
	_ app.Submitter = ReadOnlySubmitter{}
)
