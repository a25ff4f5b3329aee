package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	swapDI "github.com/fd1az/chswap-kiosk/business/swap/di"
	"github.com/fd1az/chswap-kiosk/business/swap/infra/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the kiosk controls over HTTP",
	Long: `Run the kiosk headless and expose its controls as a JSON API, with
view updates pushed over a WebSocket at /api/v1/ws.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	k, err := bootstrap(ctx, bootOptions{})
	if err != nil {
		return err
	}
	defer k.close(ctx)
	k.serveHealth(ctx)

	if err := k.start(ctx); err != nil {
		return err
	}
	orchestrator := swapDI.GetOrchestrator(k.mono.Services())
	defer func() {
		stop()
		orchestrator.Wait()
	}()

	srv := httpapi.NewServer(k.cfg.API, orchestrator, k.log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		k.log.Warn(ctx, "api server shutdown", "error", err)
	}
	return nil
}
