package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/routerun-hq/routerunner/pkg/logger"
	"github.com/routerun-hq/routerunner/pkg/models"
)

// Config holds the configuration for the routing engine service
type Config struct {
	// Providers lists the enabled routing providers in declaration order.
	// The order is significant: ranking ties are broken by it.
	Providers []models.Provider

	LiFi  ProviderConfig
	Squid ProviderConfig
	Rango ProviderConfig

	QuoteTimeout           time.Duration
	SlippageBps            int
	SettlementPollInterval time.Duration
	SettlementMaxAttempts  int

	PrivateKey  string
	Chains      map[int]ChainConfig
	MetricsPort string

	CircuitBreaker CircuitBreakerConfig
	LoggerConfig   LoggerConfig
}

// ProviderConfig holds the connection settings for one routing provider
type ProviderConfig struct {
	BaseURL string
	// APIKey doubles as the integrator identifier for providers that
	// require one instead of a key
	APIKey string
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// ChainConfig holds the configuration for a specific blockchain
type ChainConfig struct {
	ChainID int
	RPCURL  string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file. Absence is not an
	// error: container deployments set the environment directly.
	_ = godotenv.Load()

	providers, err := GetEnvProviders()
	if err != nil {
		return nil, err
	}

	quoteTimeout, err := GetEnvQuoteTimeout()
	if err != nil {
		return nil, err
	}

	slippageBps, err := GetEnvSlippageBps()
	if err != nil {
		return nil, err
	}

	pollInterval, err := GetEnvSettlementPollInterval()
	if err != nil {
		return nil, err
	}

	maxAttempts, err := GetEnvSettlementMaxAttempts()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	chainConfigs, err := GetEnvChainConfigs()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Providers:              providers,
		LiFi:                   ProviderConfig{BaseURL: getEnvDefault("LIFI_BASE_URL", DefaultLiFiBaseURL), APIKey: os.Getenv("LIFI_API_KEY")},
		Squid:                  ProviderConfig{BaseURL: getEnvDefault("SQUID_BASE_URL", DefaultSquidBaseURL), APIKey: os.Getenv("SQUID_INTEGRATOR_ID")},
		Rango:                  ProviderConfig{BaseURL: getEnvDefault("RANGO_BASE_URL", DefaultRangoBaseURL), APIKey: os.Getenv("RANGO_API_KEY")},
		QuoteTimeout:           quoteTimeout,
		SlippageBps:            slippageBps,
		SettlementPollInterval: pollInterval,
		SettlementMaxAttempts:  maxAttempts,
		PrivateKey:             os.Getenv("PRIVATE_KEY"),
		Chains:                 chainConfigs,
		MetricsPort:            metricsPort,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("at least one routing provider is required")
	}
	if len(cfg.Chains) == 0 {
		return fmt.Errorf("at least one chain configuration is required")
	}
	for chainID, chainConfig := range cfg.Chains {
		if chainConfig.RPCURL == "" {
			return fmt.Errorf("RPC URL for chain %d is required", chainID)
		}
	}
	return nil
}

// getEnvDefault returns the environment value or a fallback
func getEnvDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
