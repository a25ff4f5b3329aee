// Package swap implements the swap bounded context: rates, balances and the
// authorize-then-exchange flow against the CHSwap contract.
package swap

import (
	"context"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	chainDI "github.com/fd1az/chswap-kiosk/business/chain/di"
	chaindomain "github.com/fd1az/chswap-kiosk/business/chain/domain"
	"github.com/fd1az/chswap-kiosk/business/swap/app"
	swapDI "github.com/fd1az/chswap-kiosk/business/swap/di"
	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/business/swap/infra/chswap"
	"github.com/fd1az/chswap-kiosk/business/swap/infra/reporter"
	"github.com/fd1az/chswap-kiosk/internal/asset"
	"github.com/fd1az/chswap-kiosk/internal/config"
	"github.com/fd1az/chswap-kiosk/internal/di"
	"github.com/fd1az/chswap-kiosk/internal/logger"
	"github.com/fd1az/chswap-kiosk/internal/monolith"
)

const (
	chainLabel      = "Celo"
	connectionPoll  = 2 * time.Second
	decimalsTimeout = 10 * time.Second
	refreshTimeout  = 15 * time.Second
)

// Module implements the swap bounded context.
type Module struct {
	// Reporter overrides the reporter chosen from the kiosk mode.
	Reporter app.Reporter
}

// RegisterServices registers all swap services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, swapDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		if m.Reporter != nil {
			return m.Reporter
		}
		cfg := sr.Get("config").(*config.Config)
		if cfg.Kiosk.TUIMode {
			return reporter.NewTUIReporter(nil)
		}
		return reporter.NewConsoleReporter(os.Stdout, pairOf(sr), cfg.Kiosk.ExplorerTxURL)
	})

	di.RegisterToken(c, swapDI.Reader, func(sr di.ServiceRegistry) *chswap.Reader {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		r, err := chswap.NewReader(client, cfg.Contracts.ExchangeHex(), log)
		if err != nil {
			panic("failed to create contract reader: " + err.Error())
		}
		return r
	})

	di.RegisterToken(c, swapDI.Wallet, func(sr di.ServiceRegistry) *chswap.Wallet {
		cfg := sr.Get("config").(*config.Config)

		w, err := chswap.NewWallet(cfg.Wallet)
		if err != nil {
			panic("failed to load wallet: " + err.Error())
		}
		return w
	})

	di.RegisterToken(c, swapDI.Submitter, func(sr di.ServiceRegistry) app.Submitter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)
		wallet := swapDI.GetWallet(sr)

		if !wallet.CanSign() {
			log.Warn(context.Background(), "no signing key configured, submissions are disabled")
			return chswap.ReadOnlySubmitter{}
		}

		s, err := chswap.NewSubmitter(
			chswap.SubmitterConfig{
				ChainID:  new(big.Int).SetUint64(cfg.Chain.ChainID),
				Exchange: cfg.Contracts.ExchangeHex(),
			},
			client,
			chainDI.GetChainService(sr),
			wallet,
			log,
		)
		if err != nil {
			panic("failed to create submitter: " + err.Error())
		}
		return s
	})

	di.RegisterToken(c, swapDI.Watcher, func(sr di.ServiceRegistry) app.ConfirmationWatcher {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		return chswap.NewWatcher(client, cfg.Kiosk.ConfirmationPollInterval, log)
	})

	di.RegisterToken(c, swapDI.Feed, func(sr di.ServiceRegistry) *app.Feed {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		r := swapDI.GetReader(sr)

		feed := app.NewFeed(
			app.FeedConfig{
				Pair:           pairOf(sr),
				Exchange:       cfg.Contracts.ExchangeHex(),
				Interval:       cfg.Kiosk.RefreshInterval,
				ReadsPerMinute: cfg.Kiosk.ReadsPerMinute,
			},
			r, r, r,
			swapDI.GetWallet(sr),
			log,
		)
		feed.OnUpdate(swapDI.GetReporter(sr).ReportSnapshot)
		return feed
	})

	di.RegisterToken(c, swapDI.Orchestrator, func(sr di.ServiceRegistry) *app.Orchestrator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewOrchestrator(
			app.OrchestratorConfig{
				Pair:           pairOf(sr),
				Exchange:       cfg.Contracts.ExchangeHex(),
				ExplorerTxURL:  cfg.Kiosk.ExplorerTxURL,
				RefreshTimeout: refreshTimeout,
			},
			swapDI.GetFeed(sr),
			swapDI.GetSubmitter(sr),
			swapDI.GetWatcher(sr),
			swapDI.GetWallet(sr),
			swapDI.GetReporter(sr),
			log,
		)
	})

	return nil
}

// Startup checks token decimals, starts the feed and forwards chain heads
// to it.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()

	rep := swapDI.GetReporter(sr)
	if err := rep.Start(ctx); err != nil {
		return err
	}

	checkDecimals(ctx, swapDI.GetReader(sr), log, mono.BaseAsset(), mono.QuoteAsset())

	feed := swapDI.GetFeed(sr)
	orchestrator := swapDI.GetOrchestrator(sr)
	orchestrator.Start(ctx)
	go feed.Run(ctx)

	chain := chainDI.GetChainService(sr)
	heads, err := chain.SubscribeHeads(ctx)
	if err != nil {
		// The feed still refreshes on its own interval.
		log.Error(ctx, "failed to subscribe to heads", "error", err)
	} else {
		go forwardHeads(ctx, heads, feed, rep)
	}
	if obs, ok := rep.(reporter.ChainObserver); ok {
		go watchConnection(ctx, chain.Status, obs)
	}

	if hc := mono.Health(); hc != nil {
		hc.RegisterCheck("feed", feed.HealthCheck)
	}

	_, connected := swapDI.GetWallet(sr).Address()
	log.Info(ctx, "swap module started",
		"pair", pairOf(sr).String(),
		"exchange", mono.Config().Contracts.Exchange,
		"wallet_connected", connected)
	return nil
}

// checkDecimals warns when the configured precision disagrees with the chain.
func checkDecimals(ctx context.Context, r *chswap.Reader, log logger.LoggerInterface, assets ...*asset.Asset) {
	ctx, cancel := context.WithTimeout(ctx, decimalsTimeout)
	defer cancel()

	for _, a := range assets {
		onChain, err := r.Decimals(ctx, a)
		if err != nil {
			log.Warn(ctx, "could not read token decimals", "symbol", a.Symbol(), "error", err)
			continue
		}
		if onChain != a.Decimals() {
			log.Warn(ctx, "configured decimals differ from the token contract",
				"symbol", a.Symbol(),
				"configured", a.Decimals(),
				"on_chain", onChain)
		}
	}
}

func forwardHeads(ctx context.Context, heads <-chan *chaindomain.Head, feed *app.Feed, rep app.Reporter) {
	obs, _ := rep.(reporter.ChainObserver)
	for {
		select {
		case <-ctx.Done():
			return
		case h, ok := <-heads:
			if !ok {
				return
			}
			feed.Kick(h.Number)
			if obs != nil {
				obs.ReportHead(h)
			}
		}
	}
}

// watchConnection reports node connection changes.
func watchConnection(ctx context.Context, status func() chaindomain.ConnectionStatus, obs reporter.ChainObserver) {
	ticker := time.NewTicker(connectionPoll)
	defer ticker.Stop()

	var last chaindomain.ConnectionState
	for {
		if s := status(); s.State != last {
			last = s.State
			obs.ReportConnection(chainLabel, s.State == chaindomain.StateConnected, 0)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func pairOf(sr di.ServiceRegistry) domain.Pair {
	return domain.NewPair(sr.Get("baseAsset").(*asset.Asset), sr.Get("quoteAsset").(*asset.Asset))
}
