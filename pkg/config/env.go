package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/routerun-hq/routerunner/pkg/logger"
	"github.com/routerun-hq/routerunner/pkg/models"
)

const (
	// DefaultProviders defines the enabled providers and their declaration order
	DefaultProviders = "lifi,squid,rango"

	// DefaultQuoteTimeout defines the per-provider quote timeout in seconds
	DefaultQuoteTimeout = 30

	// DefaultSlippageBps defines the default slippage tolerance in basis points
	DefaultSlippageBps = 100

	// DefaultSettlementPollInterval defines the settlement polling interval in seconds
	DefaultSettlementPollInterval = 5

	// DefaultSettlementMaxAttempts defines the settlement polling retry budget
	DefaultSettlementMaxAttempts = 60

	// DefaultMetricsPort defines the default port for the HTTP server
	DefaultMetricsPort = "8080"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker in seconds
	DefaultCircuitBreakerWindow = 60

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker in seconds
	DefaultCircuitBreakerReset = 120

	// Provider API endpoints

	DefaultLiFiBaseURL  = "https://li.quest/v1"
	DefaultSquidBaseURL = "https://v2.api.squidrouter.com/v2"
	DefaultRangoBaseURL = "https://api.rango.exchange"

	// Default public RPC endpoints per supported chain

	DefaultEthereumRPCURL  = "https://eth.llamarpc.com"
	DefaultOptimismRPCURL  = "https://mainnet.optimism.io"
	DefaultPolygonRPCURL   = "https://polygon-rpc.com"
	DefaultArbitrumRPCURL  = "https://arb1.arbitrum.io/rpc"
	DefaultAvalancheRPCURL = "https://avalanche-c-chain-rpc.publicnode.com"
	DefaultBSCRPCURL       = "https://bsc-dataseed.bnbchain.org"
	DefaultBaseRPCURL      = "https://mainnet.base.org"
)

// defaultRPCURLs maps chain IDs and env variable stems to default endpoints
var defaultRPCURLs = []struct {
	ChainID int
	EnvName string
	URL     string
}{
	{1, "ETHEREUM", DefaultEthereumRPCURL},
	{10, "OPTIMISM", DefaultOptimismRPCURL},
	{137, "POLYGON", DefaultPolygonRPCURL},
	{42161, "ARBITRUM", DefaultArbitrumRPCURL},
	{43114, "AVALANCHE", DefaultAvalancheRPCURL},
	{56, "BSC", DefaultBSCRPCURL},
	{8453, "BASE", DefaultBaseRPCURL},
}

// GetEnvProviders returns the enabled providers, in declaration order,
// from environment variables
func GetEnvProviders() ([]models.Provider, error) {
	raw := os.Getenv("PROVIDERS")
	if raw == "" {
		raw = DefaultProviders
	}

	var providers []models.Provider
	seen := make(map[models.Provider]bool)
	for _, part := range strings.Split(raw, ",") {
		p := models.Provider(strings.ToLower(strings.TrimSpace(part)))
		if p == "" {
			continue
		}
		if !p.Valid() {
			return nil, fmt.Errorf("invalid PROVIDERS entry: %s, must be one of lifi, squid, rango", p)
		}
		if seen[p] {
			return nil, fmt.Errorf("duplicate PROVIDERS entry: %s", p)
		}
		seen[p] = true
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("PROVIDERS must list at least one provider")
	}
	return providers, nil
}

// GetEnvQuoteTimeout returns the per-provider quote timeout from environment variables
func GetEnvQuoteTimeout() (time.Duration, error) {
	quoteTimeout := os.Getenv("QUOTE_TIMEOUT")
	if quoteTimeout == "" {
		return time.Duration(DefaultQuoteTimeout) * time.Second, nil
	}

	timeout, err := strconv.Atoi(quoteTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid QUOTE_TIMEOUT value: %s, must be an integer", quoteTimeout)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("QUOTE_TIMEOUT must be greater than 0")
	}
	return time.Duration(timeout) * time.Second, nil
}

// GetEnvSlippageBps returns the slippage tolerance in basis points from environment variables
func GetEnvSlippageBps() (int, error) {
	slippage := os.Getenv("SLIPPAGE_BPS")
	if slippage == "" {
		return DefaultSlippageBps, nil
	}

	bps, err := strconv.Atoi(slippage)
	if err != nil {
		return 0, fmt.Errorf("invalid SLIPPAGE_BPS value: %s, must be an integer", slippage)
	}
	if bps <= 0 || bps > 5000 {
		return 0, fmt.Errorf("SLIPPAGE_BPS must be between 1 and 5000")
	}
	return bps, nil
}

// GetEnvSettlementPollInterval returns the settlement polling interval from environment variables
func GetEnvSettlementPollInterval() (time.Duration, error) {
	interval := os.Getenv("SETTLEMENT_POLL_INTERVAL")
	if interval == "" {
		return time.Duration(DefaultSettlementPollInterval) * time.Second, nil
	}

	seconds, err := strconv.Atoi(interval)
	if err != nil {
		return 0, fmt.Errorf("invalid SETTLEMENT_POLL_INTERVAL value: %s, must be an integer", interval)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("SETTLEMENT_POLL_INTERVAL must be greater than 0")
	}
	return time.Duration(seconds) * time.Second, nil
}

// GetEnvSettlementMaxAttempts returns the settlement polling retry budget from environment variables
func GetEnvSettlementMaxAttempts() (int, error) {
	attempts := os.Getenv("SETTLEMENT_MAX_ATTEMPTS")
	if attempts == "" {
		return DefaultSettlementMaxAttempts, nil
	}

	count, err := strconv.Atoi(attempts)
	if err != nil {
		return 0, fmt.Errorf("invalid SETTLEMENT_MAX_ATTEMPTS value: %s, must be an integer", attempts)
	}
	if count <= 0 {
		return 0, fmt.Errorf("SETTLEMENT_MAX_ATTEMPTS must be greater than 0")
	}
	return count, nil
}

// GetEnvMetricsPort returns the HTTP server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	// Validate duration format
	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	switch strings.ToLower(level) {
	case "":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "info":
		return logger.InfoLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be debug, info, notice or error", level)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	if coloring == "true" {
		return true, nil
	} else if coloring == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
}

// GetEnvChainConfigs returns the chain configurations for all supported
// chains based on environment variables, falling back to public endpoints
func GetEnvChainConfigs() (map[int]ChainConfig, error) {
	configs := make(map[int]ChainConfig)
	for _, entry := range defaultRPCURLs {
		rpc := os.Getenv(entry.EnvName + "_RPC_URL")
		if rpc == "" {
			rpc = entry.URL
		}
		if _, err := url.ParseRequestURI(rpc); err != nil {
			return nil, fmt.Errorf("invalid %s_RPC_URL value: %s, must be a valid URL", entry.EnvName, rpc)
		}
		configs[entry.ChainID] = ChainConfig{ChainID: entry.ChainID, RPCURL: rpc}
	}
	return configs, nil
}
