// Package chain implements the chain bounded context: head tracking and fee data for Celo.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/chswap-kiosk/business/chain/app"
	chainDI "github.com/fd1az/chswap-kiosk/business/chain/di"
	"github.com/fd1az/chswap-kiosk/business/chain/infra/ethereum"
	"github.com/fd1az/chswap-kiosk/internal/config"
	"github.com/fd1az/chswap-kiosk/internal/di"
	"github.com/fd1az/chswap-kiosk/internal/logger"
	"github.com/fd1az/chswap-kiosk/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers all chain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, chainDI.HeadSubscriber, func(sr di.ServiceRegistry) app.HeadSubscriber {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		subCfg := ethereum.DefaultSubscriberConfig(cfg.Chain.WebSocketURL, cfg.Chain.HTTPURL)
		if cfg.Chain.PollInterval > 0 {
			subCfg.PollInterval = cfg.Chain.PollInterval
		}
		if cfg.Chain.InitialBackoff > 0 {
			subCfg.InitialBackoff = cfg.Chain.InitialBackoff
		}
		if cfg.Chain.MaxBackoff > 0 {
			subCfg.MaxBackoff = cfg.Chain.MaxBackoff
		}

		sub, err := ethereum.NewSubscriber(subCfg, log)
		if err != nil {
			panic("failed to create head subscriber: " + err.Error())
		}
		return sub
	})

	di.RegisterToken(c, chainDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		oracle, err := ethereum.NewGasOracle(ethereum.DefaultGasOracleConfig(cfg.Chain.MaxFeeGwei), client, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, chainDI.ChainService, func(sr di.ServiceRegistry) *app.ChainService {
		return app.NewChainService(chainDI.GetHeadSubscriber(sr), chainDI.GetGasOracle(sr))
	})

	return nil
}

// Startup connects the subscriber and registers the chain health check.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	sub := chainDI.GetHeadSubscriber(mono.Services())
	if connector, ok := sub.(interface{ Connect(context.Context) error }); ok {
		if err := connector.Connect(ctx); err != nil {
			// Subscribe retries the connection.
			log.Error(ctx, "failed to connect head subscriber", "error", err)
		}
	}

	svc := chainDI.GetChainService(mono.Services())
	if hc := mono.Health(); hc != nil {
		hc.RegisterCheck("chain", svc.HealthCheck)
	}

	log.Info(ctx, "chain module started", "chain_id", mono.Config().Chain.ChainID)
	return nil
}
