package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fd1az/chswap-kiosk/business/swap/app"
	swapDI "github.com/fd1az/chswap-kiosk/business/swap/di"
	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/apperror"
)

const (
	swapPoll      = 250 * time.Millisecond
	ratesDeadline = 30 * time.Second
)

var (
	swapDirection     string
	swapAmount        string
	exchangeAfterAuth bool
)

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Run one authorize or exchange step and wait for it to settle",
	Long: `Run a single trigger with the given direction and amount. When the
allowance is short the step is an authorization; pass
--exchange-after-approval to follow it with the exchange.`,
	Example: `  kiosk swap --direction sell --amount 500 --exchange-after-approval`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return runSwap(ctx, cmd.OutOrStdout())
	},
}

func init() {
	swapCmd.Flags().StringVarP(&swapDirection, "direction", "d", "buy", "buy or sell")
	swapCmd.Flags().StringVarP(&swapAmount, "amount", "a", "", "amount to pay")
	swapCmd.Flags().BoolVar(&exchangeAfterAuth, "exchange-after-approval", false, "exchange once the approval confirms")
	_ = swapCmd.MarkFlagRequired("amount")
}

func runSwap(ctx context.Context, out io.Writer) error {
	d, err := domain.ParseDirection(swapDirection)
	if err != nil {
		return err
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	k, err := bootstrap(ctx, bootOptions{quiet: true})
	if err != nil {
		return err
	}
	defer k.close(ctx)

	if err := k.start(ctx); err != nil {
		return err
	}
	sr := k.mono.Services()
	orchestrator := swapDI.GetOrchestrator(sr)
	defer func() {
		stop()
		orchestrator.Wait()
	}()

	if err := waitForRates(ctx, swapDI.GetFeed(sr)); err != nil {
		return err
	}

	if err := orchestrator.SetDirection(ctx, d); err != nil {
		return err
	}
	orchestrator.SetInput(ctx, swapAmount)

	authorizing := orchestrator.View().NeedsAuthorization
	if err := step(ctx, orchestrator); err != nil {
		return err
	}
	if authorizing && exchangeAfterAuth {
		if err := step(ctx, orchestrator); err != nil {
			return err
		}
	}
	fmt.Fprintln(out, color.GreenString("done"))
	return nil
}

// step triggers once and blocks until the operation is idle again. The
// console reporter prints the progress.
func step(ctx context.Context, o *app.Orchestrator) error {
	v := o.View()
	if !v.CanTrigger {
		if v.Error != nil {
			return errors.New(v.Error.Message)
		}
		return fmt.Errorf("cannot %s: %s", v.ActionLabel, v.InputLabel)
	}

	if err := o.Trigger(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(swapPoll)
	defer ticker.Stop()
	for !o.Pending().IsIdle() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if e := o.View().Error; e != nil {
		return apperror.New(e.Code, apperror.WithMessage(e.Message), apperror.WithContext(e.Context))
	}
	return nil
}

func waitForRates(ctx context.Context, feed *app.Feed) error {
	ctx, cancel := context.WithTimeout(ctx, ratesDeadline)
	defer cancel()

	ticker := time.NewTicker(swapPoll)
	defer ticker.Stop()
	for !feed.Snapshot().Rates().Loaded() {
		select {
		case <-ctx.Done():
			return apperror.New(apperror.CodeRateUnavailable, apperror.WithCause(ctx.Err()))
		case <-ticker.C:
		}
	}
	return nil
}
