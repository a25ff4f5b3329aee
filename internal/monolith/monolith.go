// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/chswap-kiosk/internal/asset"
	"github.com/fd1az/chswap-kiosk/internal/config"
	"github.com/fd1az/chswap-kiosk/internal/di"
	"github.com/fd1az/chswap-kiosk/internal/health"
	"github.com/fd1az/chswap-kiosk/internal/httpclient"
	"github.com/fd1az/chswap-kiosk/internal/logger"
)

const rpcTimeout = 15 * time.Second

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	EthClient() *ethclient.Client
	AssetRegistry() *asset.Registry
	BaseAsset() *asset.Asset
	QuoteAsset() *asset.Asset
	Health() health.Registrar
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	ethClient     *ethclient.Client
	assetRegistry *asset.Registry
	base          *asset.Asset
	quote         *asset.Asset
	health        health.Registrar
	container     di.Container
}

// New creates a new Monolith instance. The RPC client is dialed lazily by go-ethereum,
// so an unreachable node surfaces on the first call, not here.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface, hc health.Registrar) (*app, error) {
	httpClient, err := httpclient.New(
		httpclient.WithProviderName("celo-rpc"),
		httpclient.WithRequestTimeout(rpcTimeout),
		httpclient.WithHeaders(map[string]string{"User-Agent": "chswap-kiosk"}),
	)
	if err != nil {
		return nil, fmt.Errorf("rpc http client: %w", err)
	}

	rpcClient, err := rpc.DialOptions(ctx, cfg.Chain.HTTPURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Chain.HTTPURL, err)
	}
	ethClient := ethclient.NewClient(rpcClient)

	base := tokenAsset(cfg.Chain.ChainID, cfg.Contracts.BaseToken)
	quote := tokenAsset(cfg.Chain.ChainID, cfg.Contracts.QuoteToken)

	assetRegistry, err := asset.NewPairRegistry(base, quote)
	if err != nil {
		ethClient.Close()
		return nil, err
	}

	container := di.NewContainer()

	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("ethClient", ethClient)
	container.Register("assetRegistry", assetRegistry)
	container.Register("baseAsset", base)
	container.Register("quoteAsset", quote)

	return &app{
		config:        cfg,
		logger:        log,
		ethClient:     ethClient,
		assetRegistry: assetRegistry,
		base:          base,
		quote:         quote,
		health:        hc,
		container:     container,
	}, nil
}

func tokenAsset(chainID uint64, t config.TokenConfig) *asset.Asset {
	return asset.NewToken(chainID, t.AddressHex(), t.Symbol, t.Name, t.Decimals)
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) EthClient() *ethclient.Client {
	return a.ethClient
}

func (a *app) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *app) BaseAsset() *asset.Asset {
	return a.base
}

func (a *app) QuoteAsset() *asset.Asset {
	return a.quote
}

func (a *app) Health() health.Registrar {
	return a.health
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	if a.ethClient != nil {
		a.ethClient.Close()
	}
	return nil
}
