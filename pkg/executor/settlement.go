package executor

import (
	"context"

	"github.com/routerun-hq/routerunner/pkg/metrics"
	"github.com/routerun-hq/routerunner/pkg/models"
	"github.com/routerun-hq/routerunner/pkg/providers"
)

// awaitSettlement polls the provider's status endpoint until the
// cross-chain transfer reaches a terminal state or the attempt budget is
// exhausted. A not-found response is normal right after submission and
// counts as a retry, not a failure. Transient status errors likewise
// consume an attempt and retry.
func (e *Executor) awaitSettlement(ctx context.Context, adapter providers.Adapter, route *models.UnifiedRoute, srcHash string) error {
	req := providers.StatusRequest{
		TxHash:      srcHash,
		RequestID:   requestID(route),
		FromChainID: route.FromChainID,
		ToChainID:   route.ToChainID,
		Tool:        bridgeTool(route),
	}
	providerLabel := string(route.Provider)

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		metrics.SettlementPolls.WithLabelValues(providerLabel).Inc()

		status, err := adapter.Status(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.ErrorWithProvider(providerLabel, "Settlement poll %d/%d failed: %v", attempt, e.maxAttempts, err)
		} else {
			switch status.State {
			case providers.SettlementSuccess:
				metrics.SettlementAttempts.WithLabelValues(providerLabel).Observe(float64(attempt))
				return nil
			case providers.SettlementFailed:
				metrics.SettlementAttempts.WithLabelValues(providerLabel).Observe(float64(attempt))
				return &SettlementFailedError{Provider: route.Provider, TxHash: srcHash, Message: status.Message}
			case providers.SettlementNotFound:
				e.logger.DebugWithProvider(providerLabel, "Settlement poll %d/%d: tx %s not indexed yet", attempt, e.maxAttempts, srcHash)
			default:
				e.logger.DebugWithProvider(providerLabel, "Settlement poll %d/%d: pending", attempt, e.maxAttempts)
			}
		}

		if attempt < e.maxAttempts {
			if err := e.sleep(ctx, e.pollInterval); err != nil {
				return err
			}
		}
	}

	return &SettlementTimeoutError{
		Provider: route.Provider,
		TxHash:   srcHash,
		Attempts: e.maxAttempts,
		Interval: e.pollInterval,
	}
}

// requestID extracts the provider request identifier needed for status
// lookups, when the provider issued one
func requestID(route *models.UnifiedRoute) string {
	switch {
	case route.Raw.Squid != nil:
		return route.Raw.Squid.RequestID
	case route.Raw.Rango != nil:
		return route.Raw.Rango.RequestID
	}
	return ""
}

// bridgeTool returns the tool name of the route's bridge step, when known
func bridgeTool(route *models.UnifiedRoute) string {
	for _, step := range route.Steps {
		if step.Kind == models.StepBridge && step.Tool != "" {
			return step.Tool
		}
	}
	return ""
}
