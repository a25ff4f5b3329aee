package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	swapDI "github.com/fd1az/chswap-kiosk/business/swap/di"
	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/internal/apperror"
	"github.com/fd1az/chswap-kiosk/internal/asset"
)

const readTimeout = 15 * time.Second

var (
	quoteDirection string
	quoteAmount    string
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price an amount at the current contract rate",
	Example: `  kiosk quote --direction buy --amount 25
  kiosk quote -d sell -a 1000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return runQuote(ctx, cmd.OutOrStdout())
	},
}

func init() {
	quoteCmd.Flags().StringVarP(&quoteDirection, "direction", "d", "buy", "buy or sell")
	quoteCmd.Flags().StringVarP(&quoteAmount, "amount", "a", "", "amount to pay")
	_ = quoteCmd.MarkFlagRequired("amount")
}

func runQuote(ctx context.Context, out io.Writer) error {
	d, err := domain.ParseDirection(quoteDirection)
	if err != nil {
		return err
	}
	if !asset.ValidAmount(quoteAmount) {
		return apperror.Validation(apperror.CodeInvalidAmount, quoteAmount)
	}

	k, err := bootstrap(ctx, bootOptions{quiet: true})
	if err != nil {
		return err
	}
	defer k.close(ctx)

	sr := k.mono.Services()
	pair := domain.NewPair(k.mono.BaseAsset(), k.mono.QuoteAsset())
	in, outAsset := pair.InputAsset(d), pair.OutputAsset(d)

	input := in.Units(quoteAmount)
	if input.Sign() <= 0 {
		return apperror.Validation(apperror.CodeInvalidAmount, quoteAmount)
	}

	ctx, cancelRead := context.WithTimeout(ctx, readTimeout)
	defer cancelRead()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = " Fetching rate..."
	s.Start()

	reader := swapDI.GetReader(sr)
	rate, err := reader.ReadRate(ctx, d)
	s.Stop()
	if err != nil {
		return err
	}

	rates := domain.Rates{}
	if d == domain.DirectionBuy {
		rates.Buy = rate
	} else {
		rates.Sell = rate
	}
	q, ok := domain.NewQuote(d, input, rates)
	if !ok {
		return apperror.New(apperror.CodeRateUnavailable)
	}

	fee := asset.NewAmount(feeAsset(pair, d), q.Fee)
	fmt.Fprintf(out, "%s %s\n", color.CyanString(d.String()), asset.NewAmount(in, q.Input))
	fmt.Fprintf(out, "  rate     %s per 1000 %s\n", asset.NewAmount(pair.Quote, rate), pair.Base.Symbol())
	fmt.Fprintf(out, "  receive  %s\n", color.GreenString(asset.NewAmount(outAsset, q.Output).String()))
	fmt.Fprintf(out, "  fee      %s\n", fee)

	owner, connected := swapDI.GetWallet(sr).Address()
	if !connected {
		return nil
	}
	granted, err := reader.ReadAllowance(ctx, in, owner, k.cfg.Contracts.ExchangeHex())
	if err != nil {
		return err
	}
	if domain.NeedsAuthorization(granted, q.RequiredAllowance()) {
		fmt.Fprintf(out, "  %s %s\n", color.YellowString("approval required:"), asset.NewAmount(in, q.RequiredAllowance()))
	} else {
		fmt.Fprintln(out, "  allowance covers this exchange")
	}
	return nil
}

// feeAsset is the asset the fee is denominated in: the output on buys and
// the input on sells.
func feeAsset(p domain.Pair, d domain.Direction) *asset.Asset {
	if d == domain.DirectionBuy {
		return p.OutputAsset(d)
	}
	return p.InputAsset(d)
}
