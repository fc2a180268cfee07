package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	QuoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_quote_requests_total",
		Help: "The total number of quote requests dispatched to providers",
	}, []string{"provider"})

	QuoteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_quote_errors_total",
		Help: "The total number of failed provider quote requests by type",
	}, []string{"provider", "error_type"})

	QuoteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "router_quote_duration_seconds",
		Help:    "Time taken for a provider to return a quote",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // Start at 100ms with 10 buckets doubling in size
	}, []string{"provider"})

	RoutesReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "router_routes_returned",
		Help:    "Number of routes returned per aggregation call",
		Buckets: prometheus.LinearBuckets(0, 1, 6),
	})

	ProvidersSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_providers_skipped_total",
		Help: "Providers skipped during fan-out because their circuit breaker was open",
	}, []string{"provider"})

	Executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_executions_total",
		Help: "The total number of route executions by provider and final status",
	}, []string{"provider", "status"})

	ExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "router_execution_duration_seconds",
		Help:    "Time taken to drive one route execution to a terminal state",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // Start at 1s with 12 buckets doubling in size
	}, []string{"provider"})

	ApprovalsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_approvals_submitted_total",
		Help: "Token approval transactions submitted by chain",
	}, []string{"chain_id"})

	ApprovalsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_approvals_skipped_total",
		Help: "Approval steps satisfied by an existing allowance",
	}, []string{"chain_id"})

	SettlementPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_settlement_polls_total",
		Help: "Settlement status polls issued by provider",
	}, []string{"provider"})

	SettlementAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "router_settlement_attempts",
		Help:    "Polling attempts needed before a settlement reached a terminal status",
		Buckets: prometheus.LinearBuckets(1, 5, 13),
	}, []string{"provider"})

	GasPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "router_gas_price_gwei",
		Help: "Current gas price in gwei",
	}, []string{"chain_id"})
)
