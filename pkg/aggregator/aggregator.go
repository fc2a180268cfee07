// Package aggregator fans a payment intent out to every enabled routing
// provider, collects the normalized routes, and ranks them into a route
// comparison. One slow or failing provider never hides the others:
// aggregation waits for all providers and discards individual failures.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/routerun-hq/routerunner/pkg/circuitbreaker"
	"github.com/routerun-hq/routerunner/pkg/logger"
	"github.com/routerun-hq/routerunner/pkg/metrics"
	"github.com/routerun-hq/routerunner/pkg/models"
	"github.com/routerun-hq/routerunner/pkg/providers"
)

// ErrNoRoutesFound is returned when every provider failed or returned
// nothing usable for an intent.
var ErrNoRoutesFound = errors.New("no routes found for intent")

// Aggregator coordinates concurrent quoting across providers
type Aggregator struct {
	// adapters in registration order; ranking ties are broken by this order
	adapters []providers.Adapter
	breakers map[models.Provider]*circuitbreaker.CircuitBreaker
	validate *validator.Validate
	timeout  time.Duration
	logger   logger.Logger
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithQuoteTimeout overrides the per-aggregation quote timeout
func WithQuoteTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		a.timeout = d
	}
}

// WithCircuitBreakers installs per-provider circuit breakers
func WithCircuitBreakers(breakers map[models.Provider]*circuitbreaker.CircuitBreaker) Option {
	return func(a *Aggregator) {
		a.breakers = breakers
	}
}

// New creates an aggregator over the given adapters. Adapter order is
// preserved and used as the deterministic tie-break during ranking.
func New(adapters []providers.Adapter, log logger.Logger, opts ...Option) (*Aggregator, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("at least one provider adapter is required")
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	a := &Aggregator{
		adapters: adapters,
		breakers: make(map[models.Provider]*circuitbreaker.CircuitBreaker),
		validate: validator.New(),
		timeout:  30 * time.Second,
		logger:   log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// quoteResult is one provider's outcome from the fan-out
type quoteResult struct {
	provider models.Provider
	route    *models.UnifiedRoute
	err      error
}

// FindBestRoutes quotes the intent across all providers concurrently and
// returns the ranked comparison. Provider failures are logged and
// discarded; only when no provider produces a valid route does the call
// fail, with ErrNoRoutesFound.
func (a *Aggregator) FindBestRoutes(ctx context.Context, intent models.PaymentIntent) (*models.RouteComparison, error) {
	if err := a.validate.Struct(intent); err != nil {
		return nil, fmt.Errorf("invalid intent: %v", err)
	}
	if intent.Sender.Amount == "" {
		return nil, fmt.Errorf("invalid intent: sender amount is required")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make(chan quoteResult, len(a.adapters))
	var wg sync.WaitGroup

	dispatched := 0
	for _, adapter := range a.adapters {
		provider := adapter.Provider()

		if breaker, ok := a.breakers[provider]; ok && breaker.IsOpen() {
			a.logger.NoticeWithProvider(string(provider), "Skipping provider: circuit breaker open")
			metrics.ProvidersSkipped.WithLabelValues(string(provider)).Inc()
			continue
		}

		dispatched++
		wg.Add(1)
		go func(adapter providers.Adapter) {
			defer wg.Done()

			start := time.Now()
			metrics.QuoteRequests.WithLabelValues(string(provider)).Inc()

			route, err := adapter.GetQuote(ctx, intent)
			metrics.QuoteDuration.WithLabelValues(string(provider)).Observe(time.Since(start).Seconds())

			results <- quoteResult{provider: provider, route: route, err: err}
		}(adapter)
	}

	if dispatched == 0 {
		return nil, ErrNoRoutesFound
	}

	// Wait for all dispatched providers; the per-call timeout bounds the
	// wall-clock cost of a straggler
	wg.Wait()
	close(results)

	routes := make([]*models.UnifiedRoute, 0, dispatched)
	for result := range results {
		if result.err != nil {
			a.recordFailure(result.provider, result.err)
			continue
		}
		routes = append(routes, result.route)
	}

	metrics.RoutesReturned.Observe(float64(len(routes)))
	if len(routes) == 0 {
		return nil, ErrNoRoutesFound
	}

	comparison := a.rank(routes)
	a.logger.Info("Aggregated %d route(s), recommending %s", len(routes), comparison.Recommended.Provider)
	return comparison, nil
}

// recordFailure classifies a provider failure for metrics and feeds the
// provider's circuit breaker
func (a *Aggregator) recordFailure(provider models.Provider, err error) {
	errType := "quote"
	var normErr *providers.NormalizationError
	if errors.As(err, &normErr) {
		errType = "normalization"
	}
	metrics.QuoteErrors.WithLabelValues(string(provider), errType).Inc()
	a.logger.ErrorWithProvider(string(provider), "Quote failed: %v", err)

	if breaker, ok := a.breakers[provider]; ok {
		breaker.RecordFailure()
	}
}

// rank orders routes and annotates the winners. Routes arrive in
// nondeterministic completion order, so they are first restored to
// registration order to make every tie-break deterministic.
func (a *Aggregator) rank(routes []*models.UnifiedRoute) *models.RouteComparison {
	ordered := make([]*models.UnifiedRoute, 0, len(routes))
	for _, adapter := range a.adapters {
		for _, route := range routes {
			if route.Provider == adapter.Provider() {
				ordered = append(ordered, route)
			}
		}
	}

	recommended := ordered[0]
	fastest := ordered[0]
	cheapest := ordered[0]
	for _, route := range ordered[1:] {
		if compareOutput(route, recommended) > 0 {
			recommended = route
		}
		if route.EstimatedTime < fastest.EstimatedTime {
			fastest = route
		}
		if compareCost(route, cheapest) < 0 {
			cheapest = route
		}
	}

	// Flags are set on the shared route objects so AllRoutes and the
	// named winners agree
	recommended.IsRecommended = true
	fastest.IsFastest = true
	cheapest.IsCheapest = true

	return &models.RouteComparison{
		Recommended: recommended,
		Fastest:     fastest,
		Cheapest:    cheapest,
		AllRoutes:   ordered,
		Summary:     summarize(ordered),
	}
}

// summarize computes the best-to-worst deltas across the route set
func summarize(routes []*models.UnifiedRoute) models.ComparisonSummary {
	bestOut := toAmount(routes[0])
	worstOut := toAmount(routes[0])
	minTime, maxTime := routes[0].EstimatedTime, routes[0].EstimatedTime
	minCost, maxCost := routes[0].TotalCostUSD(), routes[0].TotalCostUSD()

	for _, route := range routes[1:] {
		out := toAmount(route)
		if out.Cmp(bestOut) > 0 {
			bestOut = out
		}
		if out.Cmp(worstOut) < 0 {
			worstOut = out
		}
		if route.EstimatedTime < minTime {
			minTime = route.EstimatedTime
		}
		if route.EstimatedTime > maxTime {
			maxTime = route.EstimatedTime
		}
		if cost := route.TotalCostUSD(); cost < minCost {
			minCost = cost
		} else if cost > maxCost {
			maxCost = cost
		}
	}

	costDelta, _ := decimal.NewFromFloat(maxCost).Sub(decimal.NewFromFloat(minCost)).Float64()
	return models.ComparisonSummary{
		OutputDeltaRaw:   new(big.Int).Sub(bestOut, worstOut).String(),
		TimeDeltaSeconds: maxTime - minTime,
		CostDeltaUSD:     costDelta,
	}
}

// compareOutput orders routes by quoted output, descending preference.
// Returns >0 when candidate beats incumbent. An equal output keeps the
// incumbent, preserving registration order on ties.
func compareOutput(candidate, incumbent *models.UnifiedRoute) int {
	return toAmount(candidate).Cmp(toAmount(incumbent))
}

// compareCost orders routes by total USD cost, ascending preference.
// Returns <0 when candidate beats incumbent.
func compareCost(candidate, incumbent *models.UnifiedRoute) int {
	return decimal.NewFromFloat(candidate.TotalCostUSD()).Cmp(decimal.NewFromFloat(incumbent.TotalCostUSD()))
}

// toAmount parses a route's quoted output. Validated routes always parse.
func toAmount(route *models.UnifiedRoute) *big.Int {
	v, ok := new(big.Int).SetString(route.ToAmount, 10)
	if !ok {
		v = big.NewInt(0)
	}
	return v
}
