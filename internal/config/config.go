// Package config provides configuration loading and validation.
package config

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Contracts ContractsConfig `mapstructure:"contracts"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Kiosk     KioskConfig     `mapstructure:"kiosk"`
	API       APIConfig       `mapstructure:"api"`
	Health    HealthConfig    `mapstructure:"health"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ChainConfig holds RPC endpoints of the Celo node.
type ChainConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	MaxFeeGwei     int64         `mapstructure:"max_fee_gwei"`
}

// TokenConfig describes one side of the pair.
type TokenConfig struct {
	Address  string `mapstructure:"address"`
	Symbol   string `mapstructure:"symbol"`
	Name     string `mapstructure:"name"`
	Decimals uint8  `mapstructure:"decimals"`
}

// AddressHex returns the token address as common.Address.
func (c *TokenConfig) AddressHex() common.Address {
	return common.HexToAddress(c.Address)
}

// ContractsConfig holds the exchange and pair token addresses.
type ContractsConfig struct {
	Exchange   string      `mapstructure:"exchange"`
	BaseToken  TokenConfig `mapstructure:"base_token"`
	QuoteToken TokenConfig `mapstructure:"quote_token"`
}

// ExchangeHex returns the exchange address as common.Address.
func (c *ContractsConfig) ExchangeHex() common.Address {
	return common.HexToAddress(c.Exchange)
}

// WalletConfig identifies the kiosk wallet. A private key enables signing;
// an address alone gives a watch-only wallet.
type WalletConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	Address    string `mapstructure:"address"`
}

// Key parses the private key. It returns nil when none is configured.
func (c *WalletConfig) Key() (*ecdsa.PrivateKey, error) {
	if c.PrivateKey == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid wallet.private_key: %w", err)
	}
	return key, nil
}

// KioskConfig tunes the swap feed and orchestrator.
type KioskConfig struct {
	RefreshInterval          time.Duration `mapstructure:"refresh_interval"`
	ReadsPerMinute           int           `mapstructure:"reads_per_minute"`
	ConfirmationPollInterval time.Duration `mapstructure:"confirmation_poll_interval"`
	ExplorerTxURL            string        `mapstructure:"explorer_tx_url"`
	TUIMode                  bool          `mapstructure:"-"` // Set at runtime, not from config file
}

// APIConfig configures the kiosk HTTP API.
type APIConfig struct {
	Addr              string        `mapstructure:"addr"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	PushInterval      time.Duration `mapstructure:"push_interval"`
}

// HealthConfig configures the health server.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Provider       string `mapstructure:"provider"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("CHSWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "CHSWAP_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "CHSWAP_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "CHSWAP_LOG_LEVEL", "LOG_LEVEL")

	// Chain
	v.BindEnv("chain.websocket_url", "CHSWAP_WS_URL", "CELO_WS_URL")
	v.BindEnv("chain.http_url", "CHSWAP_HTTP_URL", "CELO_RPC_URL")
	v.BindEnv("chain.chain_id", "CHSWAP_CHAIN_ID")

	// Contracts (names shared with the deployment script)
	v.BindEnv("contracts.exchange", "CHSWAP_EXCHANGE_ADDRESS", "CHSWAP_ADDRESS")
	v.BindEnv("contracts.base_token.address", "CHSWAP_CHP_ADDRESS", "CHP_ADDRESS")
	v.BindEnv("contracts.quote_token.address", "CHSWAP_USDC_ADDRESS", "USDC_ADDRESS")

	// Wallet
	v.BindEnv("wallet.private_key", "CHSWAP_PRIVATE_KEY", "PRIVATE_KEY")
	v.BindEnv("wallet.address", "CHSWAP_WALLET_ADDRESS")

	// API
	v.BindEnv("api.addr", "CHSWAP_API_ADDR")

	// Telemetry
	v.BindEnv("telemetry.enabled", "CHSWAP_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "CHSWAP_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "CHSWAP_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "CHSWAP_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "chswap-kiosk")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Celo mainnet defaults
	v.SetDefault("chain.websocket_url", "wss://forno.celo.org/ws")
	v.SetDefault("chain.http_url", "https://forno.celo.org")
	v.SetDefault("chain.chain_id", 42220)
	v.SetDefault("chain.poll_interval", "5s")
	v.SetDefault("chain.initial_backoff", "1s")
	v.SetDefault("chain.max_backoff", "30s")
	v.SetDefault("chain.max_fee_gwei", 500)

	// Pair defaults
	v.SetDefault("contracts.base_token.symbol", "CHP")
	v.SetDefault("contracts.base_token.name", "CHP Token")
	v.SetDefault("contracts.base_token.decimals", 0)
	v.SetDefault("contracts.quote_token.address", "0xcebA9300f2b948710d2653dD7B07f33A8B32118C")
	v.SetDefault("contracts.quote_token.symbol", "USDC")
	v.SetDefault("contracts.quote_token.name", "USD Coin")
	v.SetDefault("contracts.quote_token.decimals", 6)

	// Kiosk defaults
	v.SetDefault("kiosk.refresh_interval", "10s")
	v.SetDefault("kiosk.reads_per_minute", 240)
	v.SetDefault("kiosk.confirmation_poll_interval", "2s")
	v.SetDefault("kiosk.explorer_tx_url", "https://celoscan.io/tx/")

	// API defaults
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.allowed_origins", []string{"*"})
	v.SetDefault("api.requests_per_minute", 120)
	v.SetDefault("api.push_interval", "1s")

	v.SetDefault("health.port", 8081)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.provider", "zipkin")
	v.SetDefault("telemetry.service_name", "chswap-kiosk")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Chain.HTTPURL == "" {
		return fmt.Errorf("chain.http_url is required")
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("chain.chain_id is required")
	}
	if !isNonZeroAddress(c.Contracts.Exchange) {
		return fmt.Errorf("invalid contracts.exchange: %q", c.Contracts.Exchange)
	}
	if !isNonZeroAddress(c.Contracts.BaseToken.Address) {
		return fmt.Errorf("invalid contracts.base_token.address: %q", c.Contracts.BaseToken.Address)
	}
	if !isNonZeroAddress(c.Contracts.QuoteToken.Address) {
		return fmt.Errorf("invalid contracts.quote_token.address: %q", c.Contracts.QuoteToken.Address)
	}
	if strings.EqualFold(c.Contracts.BaseToken.Address, c.Contracts.QuoteToken.Address) {
		return fmt.Errorf("contracts.base_token and contracts.quote_token must differ")
	}
	if c.Contracts.BaseToken.Symbol == "" || c.Contracts.QuoteToken.Symbol == "" {
		return fmt.Errorf("token symbols are required")
	}
	if c.Wallet.Address != "" && !common.IsHexAddress(c.Wallet.Address) {
		return fmt.Errorf("invalid wallet.address: %q", c.Wallet.Address)
	}
	if _, err := c.Wallet.Key(); err != nil {
		return err
	}
	if c.Kiosk.RefreshInterval <= 0 {
		return fmt.Errorf("kiosk.refresh_interval must be positive")
	}
	if c.Kiosk.ConfirmationPollInterval <= 0 {
		return fmt.Errorf("kiosk.confirmation_poll_interval must be positive")
	}
	return nil
}

func isNonZeroAddress(s string) bool {
	return common.IsHexAddress(s) && common.HexToAddress(s) != (common.Address{})
}
