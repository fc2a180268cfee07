package models

import (
	"fmt"
	"math/big"
)

// Provider identifies a routing provider. The set is closed: the executor
// dispatches over it exhaustively, so adding a provider is a compile-time
// change, not a runtime string comparison.
type Provider string

const (
	ProviderLiFi  Provider = "lifi"
	ProviderSquid Provider = "squid"
	ProviderRango Provider = "rango"
)

// Providers lists all known providers in declaration order
var Providers = []Provider{ProviderLiFi, ProviderSquid, ProviderRango}

// Valid reports whether p is a member of the closed provider set
func (p Provider) Valid() bool {
	switch p {
	case ProviderLiFi, ProviderSquid, ProviderRango:
		return true
	}
	return false
}

// StepKind classifies a logical route operation
type StepKind string

const (
	StepApproval StepKind = "approval"
	StepSwap     StepKind = "swap"
	StepBridge   StepKind = "bridge"
	StepTransfer StepKind = "transfer"
)

// RouteStep describes one logical operation a route will perform, in
// execution order.
type RouteStep struct {
	Kind        StepKind `json:"kind"`
	Description string   `json:"description,omitempty"`
	FromChainID int      `json:"from_chain_id"`
	ToChainID   int      `json:"to_chain_id"`
	// Tool is the provider's name for the DEX or bridge performing the step
	Tool string `json:"tool,omitempty"`
}

// ChainCall is one raw chain call needed to realize a route. Gas pricing
// carries either the legacy GasPrice or the fee-market pair, never both;
// chain clients reject transactions that set both forms.
type ChainCall struct {
	ChainID  int      `json:"chain_id"`
	To       string   `json:"to"`
	Data     string   `json:"data"`
	Value    *big.Int `json:"value,omitempty"`
	GasLimit uint64   `json:"gas_limit,omitempty"`

	GasPrice             *big.Int `json:"gas_price,omitempty"`
	MaxFeePerGas         *big.Int `json:"max_fee_per_gas,omitempty"`
	MaxPriorityFeePerGas *big.Int `json:"max_priority_fee_per_gas,omitempty"`
}

// UsesFeeMarket reports whether the call carries fee-market gas fields
func (c *ChainCall) UsesFeeMarket() bool {
	return c.MaxFeePerGas != nil
}

// LiFiRawData retains the LiFi-specific quote payload needed at execution time
type LiFiRawData struct {
	QuoteID         string     `json:"quote_id"`
	Tool            string     `json:"tool"`
	ApprovalAddress string     `json:"approval_address"`
	TxRequest       *ChainCall `json:"tx_request,omitempty"`
}

// SquidRawData retains the Squid-specific quote payload needed at execution
// time. RequestID is mandatory for status lookups on Squid's API.
type SquidRawData struct {
	RequestID string     `json:"request_id"`
	Target    string     `json:"target"`
	TxRequest *ChainCall `json:"tx_request,omitempty"`
}

// RangoRawData retains the Rango-specific quote payload. Rango does not
// embed calldata in quotes; the executor builds the transaction just in
// time, keyed by RequestID.
type RangoRawData struct {
	RequestID string `json:"request_id"`
	Spender   string `json:"spender,omitempty"`
	StepCount int    `json:"step_count"`
}

// RawData is a per-provider variant: exactly one field is non-nil,
// matching the route's Provider. The aggregator treats it as opaque; the
// executor's per-provider strategy destructures it.
type RawData struct {
	LiFi  *LiFiRawData  `json:"lifi,omitempty"`
	Squid *SquidRawData `json:"squid,omitempty"`
	Rango *RangoRawData `json:"rango,omitempty"`
}

// UnifiedRoute is the canonical, provider-agnostic quote. All amounts are
// non-negative integer strings in the token's smallest unit.
type UnifiedRoute struct {
	Provider Provider `json:"provider"`

	FromChainID  int    `json:"from_chain_id"`
	ToChainID    int    `json:"to_chain_id"`
	FromToken    string `json:"from_token"`
	ToToken      string `json:"to_token"`
	FromSymbol   string `json:"from_symbol,omitempty"`
	ToSymbol     string `json:"to_symbol,omitempty"`
	FromDecimals int    `json:"from_decimals"`
	ToDecimals   int    `json:"to_decimals"`

	FromAmount  string `json:"from_amount"`
	ToAmount    string `json:"to_amount"`
	ToAmountMin string `json:"to_amount_min"`

	// EstimatedTime is the provider's execution estimate in seconds
	EstimatedTime int     `json:"estimated_time"`
	TotalGasUSD   float64 `json:"total_gas_usd"`
	TotalFeeUSD   float64 `json:"total_fee_usd"`

	Steps        []RouteStep `json:"steps"`
	Transactions []ChainCall `json:"transactions,omitempty"`

	RequiresApproval bool `json:"requires_approval"`

	// Annotations applied by the aggregator, never by adapters
	IsRecommended bool `json:"is_recommended"`
	IsFastest     bool `json:"is_fastest"`
	IsCheapest    bool `json:"is_cheapest"`

	Raw RawData `json:"raw"`
}

// SameChain reports whether the route stays on a single chain
func (r *UnifiedRoute) SameChain() bool {
	return r.FromChainID == r.ToChainID
}

// TotalCostUSD is the quantity cost ranking orders by
func (r *UnifiedRoute) TotalCostUSD() float64 {
	return r.TotalGasUSD + r.TotalFeeUSD
}

// Validate checks the canonical route invariants
func (r *UnifiedRoute) Validate() error {
	if !r.Provider.Valid() {
		return fmt.Errorf("unknown provider: %s", r.Provider)
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("route has no steps")
	}
	from, ok := new(big.Int).SetString(r.FromAmount, 10)
	if !ok || from.Sign() < 0 {
		return fmt.Errorf("invalid from amount: %q", r.FromAmount)
	}
	to, ok := new(big.Int).SetString(r.ToAmount, 10)
	if !ok || to.Sign() < 0 {
		return fmt.Errorf("invalid to amount: %q", r.ToAmount)
	}
	toMin, ok := new(big.Int).SetString(r.ToAmountMin, 10)
	if !ok || toMin.Sign() < 0 {
		return fmt.Errorf("invalid minimum to amount: %q", r.ToAmountMin)
	}
	if toMin.Cmp(to) > 0 {
		return fmt.Errorf("minimum to amount %s exceeds to amount %s", r.ToAmountMin, r.ToAmount)
	}
	if r.TotalGasUSD < 0 || r.TotalFeeUSD < 0 {
		return fmt.Errorf("negative cost estimate")
	}
	return nil
}
