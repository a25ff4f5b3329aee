package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "A kiosk for swapping CHP and USDC on Celo through the CHSwap contract",
	Long: `kiosk reads CHSwap rates, balances and allowances and walks one swap at a
time through approval and exchange.

Examples:
  kiosk run                         # interactive dashboard
  kiosk run --cli                   # line-oriented console
  kiosk serve                       # HTTP and WebSocket API
  kiosk quote --direction buy --amount 25
  kiosk swap --direction sell --amount 100 --exchange-after-approval`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override app.log_level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd, serveCmd, quoteCmd, swapCmd, versionCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "chswap-kiosk %s (commit: %s, built: %s)\n", version, commit, buildDate)
	},
}
