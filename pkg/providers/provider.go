// Package providers contains the routing provider adapters. Each adapter
// translates one external quoting/execution API into the canonical route
// model and answers settlement status lookups for routes it produced.
package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/routerun-hq/routerunner/pkg/models"
)

// SettlementState classifies a provider's settlement status response
type SettlementState int

const (
	// SettlementPending means the transfer is still in flight
	SettlementPending SettlementState = iota
	// SettlementNotFound means the provider does not know the transaction
	// yet. Normal immediately after submission; treated as a retry.
	SettlementNotFound
	// SettlementSuccess means the transfer completed on the destination chain
	SettlementSuccess
	// SettlementFailed means the provider explicitly reported failure
	SettlementFailed
)

// SettlementStatus is one settlement poll result
type SettlementStatus struct {
	State   SettlementState
	Message string
}

// Terminal reports whether the status ends the polling loop
func (s SettlementStatus) Terminal() bool {
	return s.State == SettlementSuccess || s.State == SettlementFailed
}

// StatusRequest identifies a submitted transaction to a provider's status
// endpoint. Which fields a provider requires varies: LiFi keys on the
// transaction hash and bridge tool, Squid additionally requires the
// request identifier captured at quote time, Rango keys on the request
// identifier alone.
type StatusRequest struct {
	TxHash      string
	RequestID   string
	FromChainID int
	ToChainID   int
	Tool        string
}

// BuiltTransaction is the result of a just-in-time transaction build for
// providers that do not embed calldata in their quotes.
type BuiltTransaction struct {
	Call models.ChainCall
	// Spender is the approval target the provider declared for this
	// transaction, when it declares one
	Spender string
}

// Adapter is one routing provider client. Implementations are stateless
// and safe for concurrent use; each quote call is independent.
type Adapter interface {
	// Provider returns the adapter's identifier from the closed provider set
	Provider() models.Provider

	// GetQuote requests a quote for the intent and normalizes it into the
	// canonical route model
	GetQuote(ctx context.Context, intent models.PaymentIntent) (*models.UnifiedRoute, error)

	// BuildTransaction materializes executable calldata for a route whose
	// quote did not embed it. Adapters whose quotes always embed calldata
	// return ErrBuildNotSupported.
	BuildTransaction(ctx context.Context, route *models.UnifiedRoute) (*BuiltTransaction, error)

	// Status queries the provider's settlement status endpoint
	Status(ctx context.Context, req StatusRequest) (SettlementStatus, error)
}

// newHTTPClient creates an HTTP client with timeouts for provider APIs
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
