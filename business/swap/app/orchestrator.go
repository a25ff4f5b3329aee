package app

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/apm"
	"github.com/fd1az/chswap-kiosk/internal/apperror"
	"github.com/fd1az/chswap-kiosk/internal/asset"
	"github.com/fd1az/chswap-kiosk/internal/logger"
)

// SnapshotSource is the read side of the feed used by the orchestrator.
type SnapshotSource interface {
	Snapshot() *domain.Snapshot
	RefreshAllowances(ctx context.Context) error
}

// OrchestratorConfig configures the orchestrator.
type OrchestratorConfig struct {
	Pair          domain.Pair
	Exchange      common.Address
	ExplorerTxURL string
	// RefreshTimeout bounds the allowance re-read after a confirmation.
	RefreshTimeout time.Duration
}

// Session is the user-controlled state of one kiosk session.
type Session struct {
	Direction domain.Direction
	Input     string
}

// Orchestrator drives one user action at a time: it decides between
// authorizing and exchanging, submits, and tracks the transaction until it
// settles.
type Orchestrator struct {
	cfg       OrchestratorConfig
	feed      SnapshotSource
	submitter Submitter
	watcher   ConfirmationWatcher
	wallet    Wallet
	reporter  Reporter
	logger    logger.LoggerInterface
	tracer    apm.Tracer

	// mu guards the fields below. It is never held across I/O.
	mu      sync.Mutex
	session Session
	op      domain.PendingOperation
	lastTx  common.Hash
	lastErr error

	lifecycle context.Context
	wg        sync.WaitGroup
}

// NewOrchestrator creates an idle orchestrator in buy mode. A nil reporter
// discards events.
func NewOrchestrator(
	cfg OrchestratorConfig,
	feed SnapshotSource,
	submitter Submitter,
	watcher ConfirmationWatcher,
	wallet Wallet,
	reporter Reporter,
	log logger.LoggerInterface,
) *Orchestrator {
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 15 * time.Second
	}
	if reporter == nil {
		reporter = nopReporter{}
	}

	return &Orchestrator{
		cfg:       cfg,
		feed:      feed,
		submitter: submitter,
		watcher:   watcher,
		wallet:    wallet,
		reporter:  reporter,
		logger:    log,
		tracer:    apm.NewTracer("swap.orchestrator"),
		session:   Session{Direction: domain.DirectionBuy},
		op:        domain.Idle(),
		lifecycle: context.Background(),
	}
}

// Start binds confirmation waits to ctx. Cancelling ctx ends pending waits.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	o.lifecycle = ctx
	o.mu.Unlock()
}

// Wait blocks until every confirmation wait has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Session returns a copy of the session state.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Pending returns the current operation.
func (o *Orchestrator) Pending() domain.PendingOperation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.op
}

// SetDirection switches mode and clears the input. It is rejected until the
// pending operation is back to idle.
func (o *Orchestrator) SetDirection(ctx context.Context, d domain.Direction) error {
	if !d.Valid() {
		return apperror.New(apperror.CodeInvalidDirection, apperror.WithContext(string(d)))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.op.Busy() {
		return apperror.New(apperror.CodeOperationInFlight,
			apperror.WithContext("direction change while "+o.op.Status.String()))
	}

	if o.session.Direction != d {
		o.logger.Debug(ctx, "direction changed", "from", o.session.Direction, "to", d)
	}
	o.session.Direction = d
	o.session.Input = ""
	return nil
}

// SetInput stores the raw amount string. It never affects an operation in
// flight, whose amount was captured when it was triggered.
func (o *Orchestrator) SetInput(_ context.Context, s string) {
	o.mu.Lock()
	o.session.Input = s
	o.mu.Unlock()
}

// Trigger performs the next step for the current session. It is a no-op
// without a wallet, without an amount, or until the previous operation is
// back to idle.
func (o *Orchestrator) Trigger(ctx context.Context) error {
	ctx, span := o.tracer.StartSpanFromContext(ctx, "orchestrator.trigger")
	defer span.End()

	if _, ok := o.wallet.Address(); !ok {
		o.logger.Debug(ctx, "trigger ignored", "reason", "no wallet")
		return nil
	}

	o.mu.Lock()
	if o.op.Busy() {
		status := o.op.Status
		o.mu.Unlock()
		o.logger.Debug(ctx, "trigger ignored", "reason", "operation pending", "status", status)
		span.AddEvent("single_flight")
		return nil
	}

	d := o.session.Direction
	in := o.cfg.Pair.InputAsset(d)
	units := asset.ToUnits(o.session.Input, in.Decimals())
	if units.Sign() == 0 {
		o.mu.Unlock()
		o.logger.Debug(ctx, "trigger ignored", "reason", "no amount")
		return nil
	}

	// One snapshot for the whole decision.
	snap := o.feed.Snapshot()
	action := domain.PlanAction(d, units, snap.Allowance(in.ID()))

	next, err := o.op.Begin(d, action)
	if err != nil {
		o.mu.Unlock()
		span.NoticeError(err)
		return err
	}
	o.op = next
	o.lastTx = common.Hash{}
	o.lastErr = nil
	o.mu.Unlock()

	span.SetAttributes(
		attribute.String("direction", d.String()),
		attribute.String("kind", action.Kind.String()),
		attribute.String("amount", action.Amount.String()),
		attribute.Int64("snapshot_block", int64(snap.Block())),
	)
	o.logger.Info(ctx, "submitting",
		"kind", action.Kind,
		"direction", d,
		"amount", in.Format(action.Amount),
		"asset", in.Symbol())
	o.report(next, in, nil)

	hash, err := o.submit(ctx, d, in, action)
	if err != nil {
		appErr := apperror.New(apperror.CodeSubmissionRejected,
			apperror.WithCause(err),
			apperror.WithContext(action.Kind.String()))

		o.mu.Lock()
		if rejected, terr := o.op.Reject(); terr == nil {
			o.op = rejected
		}
		o.lastErr = appErr
		o.mu.Unlock()

		o.logger.Error(ctx, "submission rejected", appErr.LogArgs()...)
		span.NoticeError(appErr)
		o.report(withStatus(next, domain.StatusIdle), in, appErr)
		o.reporter.ReportError(appErr)
		return appErr
	}

	o.mu.Lock()
	awaiting, terr := o.op.Submitted(hash)
	if terr != nil {
		o.mu.Unlock()
		span.NoticeError(terr)
		return terr
	}
	o.op = awaiting
	o.lastTx = hash
	lifecycle := o.lifecycle
	o.wg.Add(1)
	o.mu.Unlock()

	span.SetAttributes(attribute.String("tx_hash", hash.Hex()))
	span.Ok()
	o.logger.Info(ctx, "transaction submitted", "kind", action.Kind, "tx", hash.Hex())
	o.report(awaiting, in, nil)

	go o.await(lifecycle, awaiting, in)
	return nil
}

func (o *Orchestrator) submit(ctx context.Context, d domain.Direction, in *asset.Asset, action domain.Action) (common.Hash, error) {
	switch action.Kind {
	case domain.KindAuthorize:
		return o.submitter.SubmitAuthorize(ctx, in, o.cfg.Exchange, action.Amount)
	case domain.KindExchange:
		return o.submitter.SubmitExchange(ctx, d, action.Amount)
	default:
		return common.Hash{}, errors.New("unknown action " + action.Kind.String())
	}
}

// await waits for op to settle on the lifecycle context and returns the
// session to idle.
func (o *Orchestrator) await(ctx context.Context, op domain.PendingOperation, in *asset.Asset) {
	defer o.wg.Done()

	ctx, span := o.tracer.StartSpanFromContext(ctx, "orchestrator.await")
	defer span.End()
	span.SetAttributes(
		attribute.String("tx_hash", op.TxHash.Hex()),
		attribute.String("kind", op.Kind.String()),
	)

	outcome, err := o.watcher.AwaitConfirmation(ctx, op.TxHash)
	if err != nil {
		outcome = domain.OutcomeFailed
	}

	o.mu.Lock()
	settled, terr := o.op.Settle(outcome)
	if terr != nil {
		o.mu.Unlock()
		o.logger.Error(ctx, "settle rejected", "error", terr, "tx", op.TxHash.Hex())
		return
	}
	o.op = settled
	o.mu.Unlock()
	o.report(settled, in, nil)

	if outcome == domain.OutcomeConfirmed {
		o.confirmed(ctx, settled, in)
		span.Ok()
		return
	}

	code := apperror.CodeTransactionReverted
	if err != nil && ctx.Err() != nil {
		code = apperror.CodeConfirmationAborted
	}
	opts := []apperror.Option{apperror.WithContext(op.TxHash.Hex())}
	if err != nil {
		opts = append(opts, apperror.WithCause(err))
	}
	failure := apperror.New(code, opts...)

	o.mu.Lock()
	if idle, rerr := o.op.Reset(); rerr == nil {
		o.op = idle
	}
	o.lastErr = failure
	o.mu.Unlock()

	o.logger.Warn(ctx, "transaction failed", failure.LogArgs()...)
	span.NoticeError(failure)
	o.report(withStatus(settled, domain.StatusIdle), in, failure)
	o.reporter.ReportError(failure)
}

// confirmed re-reads allowances before the session goes idle so the next
// trigger sees post-transaction state.
func (o *Orchestrator) confirmed(ctx context.Context, op domain.PendingOperation, in *asset.Asset) {
	rctx, cancel := context.WithTimeout(ctx, o.cfg.RefreshTimeout)
	if err := o.feed.RefreshAllowances(rctx); err != nil {
		o.logger.Warn(ctx, "allowance refresh after confirmation failed", "error", err)
	}
	cancel()

	o.mu.Lock()
	if idle, err := o.op.Reset(); err == nil {
		o.op = idle
	}
	o.session.Input = ""
	o.lastTx = common.Hash{}
	o.mu.Unlock()

	o.logger.Info(ctx, "transaction confirmed", "kind", op.Kind, "tx", op.TxHash.Hex())
	o.report(withStatus(op, domain.StatusIdle), in, nil)
}

func (o *Orchestrator) report(op domain.PendingOperation, in *asset.Asset, err error) {
	amount := op.Amount
	if amount != nil {
		amount = new(big.Int).Set(amount)
	}
	o.reporter.ReportOperation(OperationEvent{
		Kind:      op.Kind,
		Direction: op.Direction,
		Status:    op.Status,
		Amount:    amount,
		Asset:     in,
		TxHash:    op.TxHash,
		Err:       err,
		At:        time.Now(),
	})
}

// withStatus relabels op for reporting only.
func withStatus(op domain.PendingOperation, s domain.Status) domain.PendingOperation {
	op.Status = s
	return op
}

// ClearError drops the last surfaced error.
func (o *Orchestrator) ClearError() {
	o.mu.Lock()
	o.lastErr = nil
	o.mu.Unlock()
}

type nopReporter struct{}

func (nopReporter) Start(context.Context) error     { return nil }
func (nopReporter) ReportOperation(OperationEvent)  {}
func (nopReporter) ReportSnapshot(*domain.Snapshot) {}
func (nopReporter) ReportError(error)               {}
func (nopReporter) Stop() error                     { return nil }

var _ Controls = (*Orchestrator)(nil)
