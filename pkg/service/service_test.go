package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routerun-hq/routerunner/pkg/config"
	"github.com/routerun-hq/routerunner/pkg/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Providers: []models.Provider{models.ProviderLiFi, models.ProviderRango},
		LiFi:      config.ProviderConfig{BaseURL: "https://li.quest/v1"},
		Squid:     config.ProviderConfig{BaseURL: "https://v2.api.squidrouter.com/v2"},
		Rango:     config.ProviderConfig{BaseURL: "https://api.rango.exchange"},

		QuoteTimeout:           30 * time.Second,
		SlippageBps:            100,
		SettlementPollInterval: 5 * time.Second,
		SettlementMaxAttempts:  60,

		Chains: map[int]config.ChainConfig{
			1: {ChainID: 1, RPCURL: "https://eth.llamarpc.com"},
		},
		MetricsPort: "0",

		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:        true,
			Threshold:      5,
			WindowDuration: time.Minute,
			ResetTimeout:   2 * time.Minute,
		},
	}
}

func TestNewServiceQuoteOnly(t *testing.T) {
	// Without a private key the service assembles without dialing any
	// RPC endpoint
	svc, err := NewService(context.Background(), testConfig())
	require.NoError(t, err)
	require.NotNil(t, svc)

	assert.Len(t, svc.breakers, 2)
	assert.Contains(t, svc.breakers, models.ProviderLiFi)
	assert.Contains(t, svc.breakers, models.ProviderRango)
	assert.NotContains(t, svc.breakers, models.ProviderSquid)
}

func TestBuildAdaptersPreservesOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Providers = []models.Provider{models.ProviderRango, models.ProviderSquid, models.ProviderLiFi}

	adapters, err := buildAdapters(cfg, nil)
	require.NoError(t, err)
	require.Len(t, adapters, 3)
	assert.Equal(t, models.ProviderRango, adapters[0].Provider())
	assert.Equal(t, models.ProviderSquid, adapters[1].Provider())
	assert.Equal(t, models.ProviderLiFi, adapters[2].Provider())
}

func TestBuildAdaptersUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Providers = []models.Provider{"uniswap"}

	_, err := buildAdapters(cfg, nil)
	assert.Error(t, err)
}
