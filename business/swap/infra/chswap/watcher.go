package chswap

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chswap-kiosk/business/swap/app"
	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/logger"
)

// ReceiptSource looks up mined transactions.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Watcher polls for receipts until a transaction is mined. It only stops
// early when its context ends.
type Watcher struct {
	receipts ReceiptSource
	interval time.Duration
	logger   logger.LoggerInterface
	tracer   trace.Tracer
}

// NewWatcher creates a Watcher polling every interval.
func NewWatcher(receipts ReceiptSource, interval time.Duration, log logger.LoggerInterface) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		receipts: receipts,
		interval: interval,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
}

// AwaitConfirmation blocks until hash is mined. Any receipt status other than
// success is reported as OutcomeFailed.
func (w *Watcher) AwaitConfirmation(ctx context.Context, hash common.Hash) (domain.Outcome, error) {
	ctx, span := w.tracer.Start(ctx, "chswap.await_receipt",
		trace.WithAttributes(attribute.String("tx_hash", hash.Hex())),
	)
	defer span.End()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	polls := 0
	for {
		polls++
		receipt, err := w.receipts.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			span.SetAttributes(
				attribute.Int("polls", polls),
				attribute.Int64("gas_used", int64(receipt.GasUsed)),
			)
			if receipt.BlockNumber != nil {
				span.SetAttributes(attribute.Int64("block", receipt.BlockNumber.Int64()))
			}
			if receipt.Status == types.ReceiptStatusSuccessful {
				span.SetStatus(codes.Ok, "confirmed")
				return domain.OutcomeConfirmed, nil
			}
			span.SetStatus(codes.Error, "reverted")
			return domain.OutcomeFailed, nil
		case errors.Is(err, ethereum.NotFound):
		case ctx.Err() != nil:
		default:
			w.logger.Warn(ctx, "receipt lookup failed", "tx", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "aborted")
			return domain.OutcomeFailed, ctx.Err()
		case <-ticker.C:
		}
	}
}

var _ app.ConfirmationWatcher = (*Watcher)(nil)
