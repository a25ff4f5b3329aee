package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fd1az/chswap-kiosk/business/chain"
	"github.com/fd1az/chswap-kiosk/business/swap"
	"github.com/fd1az/chswap-kiosk/business/swap/app"
	"github.com/fd1az/chswap-kiosk/internal/apm"
	"github.com/fd1az/chswap-kiosk/internal/config"
	"github.com/fd1az/chswap-kiosk/internal/health"
	"github.com/fd1az/chswap-kiosk/internal/logger"
	"github.com/fd1az/chswap-kiosk/internal/metrics"
	"github.com/fd1az/chswap-kiosk/internal/monolith"
)

const shutdownTimeout = 5 * time.Second

// container is the monolith plus its lifecycle methods.
type container interface {
	monolith.Monolith
	RegisterModules(modules ...monolith.Module) error
	StartModules(ctx context.Context, modules ...monolith.Module) error
	Close() error
}

type bootOptions struct {
	tuiMode bool
	// reporter overrides the mode's default reporter.
	reporter app.Reporter
	// quiet discards logs unless a level is forced.
	quiet bool
}

// kiosk holds everything one command needs.
type kiosk struct {
	cfg     *config.Config
	log     *logger.Logger
	mono    container
	modules []monolith.Module

	healthServer  *health.Server
	traceProvider apm.TraceProvider
	meterProvider metrics.MetricProvider
}

// bootstrap loads configuration, sets up observability and registers the
// modules. Nothing touches the node until start.
func bootstrap(ctx context.Context, opts bootOptions) (*kiosk, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set TUI mode in config so modules know
	cfg.Kiosk.TUIMode = opts.tuiMode

	level := cfg.App.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	var out io.Writer = os.Stderr
	if opts.tuiMode || (opts.quiet && logLevel == "") {
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(level), cfg.App.Name, logger.SpanTraceID)

	k := &kiosk{cfg: cfg, log: log}

	if cfg.Telemetry.Enabled {
		k.setupTelemetry(ctx)
	}

	k.healthServer = health.NewServer(cfg.Health.Port, version, log)

	mono, err := monolith.New(ctx, cfg, log, k.healthServer)
	if err != nil {
		k.close(ctx)
		return nil, fmt.Errorf("failed to create monolith: %w", err)
	}
	k.mono = mono

	// Define modules in dependency order
	k.modules = []monolith.Module{
		&chain.Module{},
		&swap.Module{Reporter: opts.reporter},
	}

	if err := mono.RegisterModules(k.modules...); err != nil {
		k.close(ctx)
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}

	log.Info(ctx, "kiosk configured",
		"version", version,
		"environment", cfg.App.Environment,
		"chain_id", cfg.Chain.ChainID)
	return k, nil
}

func (k *kiosk) setupTelemetry(ctx context.Context) {
	tel := k.cfg.Telemetry

	provider := apm.Provider(tel.Provider)
	if provider == "" {
		provider = apm.ZipkinProvider
	}
	tp, err := apm.NewTraceProvider(
		apm.WithServiceName(tel.ServiceName),
		apm.WithProvider(provider, apm.Exporter{Endpoint: tel.OTLPEndpoint, Headers: tel.OTLPHeaders}, k.log),
	)
	if err != nil {
		k.log.Warn(ctx, "tracing disabled", "error", err)
	} else {
		k.traceProvider = tp
		k.log.Info(ctx, "tracing initialized", "provider", provider, "endpoint", tel.OTLPEndpoint)
	}

	mp, err := metrics.NewMetricProvider(
		metrics.WithServiceName(tel.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
	)
	if err != nil {
		k.log.Warn(ctx, "metrics disabled", "error", err)
		return
	}
	k.meterProvider = mp

	port := tel.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go metrics.ServePrometheusMetrics(ctx, k.log, metrics.WithPort(strconv.Itoa(port)))
	k.log.Info(ctx, "prometheus metrics server started", "port", port)
}

// serveHealth exposes the health endpoints for long-running commands.
func (k *kiosk) serveHealth(ctx context.Context) {
	if k.cfg.Health.Port <= 0 {
		return
	}
	if err := k.healthServer.Start(); err != nil {
		k.log.Warn(ctx, "failed to start health server", "error", err)
		return
	}
	k.log.Info(ctx, "health server started", "port", k.cfg.Health.Port)
}

// start starts every module.
func (k *kiosk) start(ctx context.Context) error {
	if err := k.mono.StartModules(ctx, k.modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	return nil
}

// close releases everything bootstrap and start acquired.
func (k *kiosk) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if k.healthServer != nil {
		_ = k.healthServer.Stop(ctx)
	}
	if k.mono != nil {
		_ = k.mono.Close()
	}
	if k.meterProvider != nil {
		_ = k.meterProvider.Shutdown(ctx)
	}
	if k.traceProvider != nil {
		_ = k.traceProvider.Stop()
	}
}
