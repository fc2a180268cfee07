// Package service wires the routing engine together from configuration:
// provider adapters, circuit breakers, the aggregator, the optional
// executor, and the HTTP server.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/routerun-hq/routerunner/pkg/aggregator"
	"github.com/routerun-hq/routerunner/pkg/chainclient"
	"github.com/routerun-hq/routerunner/pkg/circuitbreaker"
	"github.com/routerun-hq/routerunner/pkg/config"
	"github.com/routerun-hq/routerunner/pkg/executor"
	"github.com/routerun-hq/routerunner/pkg/logger"
	"github.com/routerun-hq/routerunner/pkg/models"
	"github.com/routerun-hq/routerunner/pkg/providers"
	"github.com/routerun-hq/routerunner/pkg/server"
)

// shutdownTimeout bounds how long Stop waits for in-flight requests
const shutdownTimeout = 10 * time.Second

// Service is the assembled routing engine
type Service struct {
	cfg      *config.Config
	logger   logger.Logger
	server   *server.Server
	breakers map[models.Provider]*circuitbreaker.CircuitBreaker
}

// NewService builds the engine from configuration. A signing key is
// optional: without one the service runs quote-only and the execution
// endpoints report unavailable.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	log := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	adapters, err := buildAdapters(cfg, log)
	if err != nil {
		return nil, err
	}

	breakers := make(map[models.Provider]*circuitbreaker.CircuitBreaker, len(adapters))
	for _, adapter := range adapters {
		provider := adapter.Provider()
		breakers[provider] = circuitbreaker.New(
			string(provider),
			cfg.CircuitBreaker.Enabled,
			cfg.CircuitBreaker.Threshold,
			cfg.CircuitBreaker.WindowDuration,
			cfg.CircuitBreaker.ResetTimeout,
			log,
		)
	}

	agg, err := aggregator.New(
		adapters,
		log,
		aggregator.WithQuoteTimeout(cfg.QuoteTimeout),
		aggregator.WithCircuitBreakers(breakers),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregator: %v", err)
	}

	// The typed nil must not leak into the interface value, so the
	// executor is only assigned when one exists
	var routeExecutor server.RouteExecutor
	if cfg.PrivateKey != "" {
		rpcURLs := make(map[int]string, len(cfg.Chains))
		for chainID, chain := range cfg.Chains {
			rpcURLs[chainID] = chain.RPCURL
		}

		wallet, err := chainclient.NewWallet(ctx, rpcURLs, cfg.PrivateKey, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create wallet: %v", err)
		}

		exec, err := executor.New(
			wallet,
			adapters,
			log,
			executor.WithSettlementPolicy(cfg.SettlementPollInterval, cfg.SettlementMaxAttempts),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create executor: %v", err)
		}
		routeExecutor = exec
		log.Info("Executor enabled for address %s across %d chain(s)", wallet.Address(), len(cfg.Chains))
	} else {
		log.Notice("No private key configured, running quote-only")
	}

	srv := server.NewServer(cfg.MetricsPort, agg, routeExecutor, breakers, log)

	return &Service{
		cfg:      cfg,
		logger:   log,
		server:   srv,
		breakers: breakers,
	}, nil
}

// buildAdapters constructs one adapter per enabled provider, preserving
// the configured order
func buildAdapters(cfg *config.Config, log logger.Logger) ([]providers.Adapter, error) {
	adapters := make([]providers.Adapter, 0, len(cfg.Providers))
	for _, provider := range cfg.Providers {
		switch provider {
		case models.ProviderLiFi:
			adapters = append(adapters, providers.NewLiFiAdapter(cfg.LiFi.BaseURL, cfg.LiFi.APIKey, cfg.QuoteTimeout, log))
		case models.ProviderSquid:
			adapters = append(adapters, providers.NewSquidAdapter(cfg.Squid.BaseURL, cfg.Squid.APIKey, cfg.QuoteTimeout, log))
		case models.ProviderRango:
			adapters = append(adapters, providers.NewRangoAdapter(cfg.Rango.BaseURL, cfg.Rango.APIKey, cfg.SlippageBps, cfg.QuoteTimeout, log))
		default:
			return nil, fmt.Errorf("no adapter for provider %s", provider)
		}
	}
	return adapters, nil
}

// Start runs the HTTP server until the context is cancelled, then drains
// it gracefully.
func (s *Service) Start(ctx context.Context) {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Error("Server stopped: %v", err)
		}
	case <-ctx.Done():
		s.logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Shutdown error: %v", err)
		}
	}
}
