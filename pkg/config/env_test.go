package config

import (
	"testing"
	"time"

	"github.com/routerun-hq/routerunner/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvProvidersDefault(t *testing.T) {
	t.Setenv("PROVIDERS", "")

	providers, err := GetEnvProviders()
	require.NoError(t, err)
	assert.Equal(t, []models.Provider{models.ProviderLiFi, models.ProviderSquid, models.ProviderRango}, providers)
}

func TestGetEnvProvidersCustomOrder(t *testing.T) {
	t.Setenv("PROVIDERS", "squid, lifi")

	providers, err := GetEnvProviders()
	require.NoError(t, err)
	assert.Equal(t, []models.Provider{models.ProviderSquid, models.ProviderLiFi}, providers)
}

func TestGetEnvProvidersRejectsUnknown(t *testing.T) {
	t.Setenv("PROVIDERS", "lifi,unknown")

	_, err := GetEnvProviders()
	assert.Error(t, err)
}

func TestGetEnvProvidersRejectsDuplicates(t *testing.T) {
	t.Setenv("PROVIDERS", "lifi,lifi")

	_, err := GetEnvProviders()
	assert.Error(t, err)
}

func TestGetEnvSettlementDefaults(t *testing.T) {
	t.Setenv("SETTLEMENT_POLL_INTERVAL", "")
	t.Setenv("SETTLEMENT_MAX_ATTEMPTS", "")

	interval, err := GetEnvSettlementPollInterval()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, interval)

	attempts, err := GetEnvSettlementMaxAttempts()
	require.NoError(t, err)
	assert.Equal(t, 60, attempts)
}

func TestGetEnvSettlementPollIntervalInvalid(t *testing.T) {
	t.Setenv("SETTLEMENT_POLL_INTERVAL", "zero")

	_, err := GetEnvSettlementPollInterval()
	assert.Error(t, err)
}

func TestGetEnvChainConfigsDefaults(t *testing.T) {
	configs, err := GetEnvChainConfigs()
	require.NoError(t, err)

	base, ok := configs[8453]
	require.True(t, ok)
	assert.Equal(t, DefaultBaseRPCURL, base.RPCURL)
}

func TestGetEnvChainConfigsOverride(t *testing.T) {
	t.Setenv("BASE_RPC_URL", "https://base.example.com/rpc")

	configs, err := GetEnvChainConfigs()
	require.NoError(t, err)
	assert.Equal(t, "https://base.example.com/rpc", configs[8453].RPCURL)
}
