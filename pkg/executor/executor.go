// Package executor drives a chosen route through its on-chain lifecycle:
// token approval, transaction submission, and settlement polling for
// cross-chain transfers. Every execution produces an append-only
// CrossChainTransaction audit record, updated through each state.
package executor

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/routerun-hq/routerunner/pkg/logger"
	"github.com/routerun-hq/routerunner/pkg/metrics"
	"github.com/routerun-hq/routerunner/pkg/models"
	"github.com/routerun-hq/routerunner/pkg/providers"
)

// Signer is the signing and submission capability the executor consumes.
// chainclient.Wallet is the production implementation. Every call names
// its chain, so concurrent executions never steer each other's signing
// context.
type Signer interface {
	Address() common.Address
	SendTransaction(ctx context.Context, call models.ChainCall) (common.Hash, error)
	WaitForReceipt(ctx context.Context, chainID int, hash common.Hash) (*types.Receipt, error)
	Allowance(ctx context.Context, chainID int, token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, chainID int, token, spender common.Address, amount *big.Int) (common.Hash, error)
}

// Executor runs route executions against a signer and the provider
// adapters that produced the routes.
type Executor struct {
	signer   Signer
	adapters map[models.Provider]providers.Adapter

	pollInterval time.Duration
	maxAttempts  int

	logger logger.Logger

	// sleep is injected so settlement polling is testable without
	// real waiting
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor
type Option func(*Executor)

// WithSettlementPolicy overrides the settlement polling cadence
func WithSettlementPolicy(interval time.Duration, maxAttempts int) Option {
	return func(e *Executor) {
		e.pollInterval = interval
		e.maxAttempts = maxAttempts
	}
}

// New creates an executor over the given signer and adapters
func New(signer Signer, adapters []providers.Adapter, log logger.Logger, opts ...Option) (*Executor, error) {
	if signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("at least one provider adapter is required")
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	byProvider := make(map[models.Provider]providers.Adapter, len(adapters))
	for _, adapter := range adapters {
		byProvider[adapter.Provider()] = adapter
	}

	e := &Executor{
		signer:       signer,
		adapters:     byProvider,
		pollInterval: 5 * time.Second,
		maxAttempts:  60,
		logger:       log,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute drives the route to a terminal state. The returned record is
// always non-nil once execution has started; on failure it carries the
// failed status and error alongside the error return.
func (e *Executor) Execute(ctx context.Context, intent models.PaymentIntent, route *models.UnifiedRoute) (*models.CrossChainTransaction, error) {
	if route == nil {
		return nil, fmt.Errorf("route is required")
	}
	adapter, ok := e.adapters[route.Provider]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %s", route.Provider)
	}
	if err := route.Validate(); err != nil {
		return nil, fmt.Errorf("invalid route: %v", err)
	}

	tx := &models.CrossChainTransaction{
		ID:        uuid.NewString(),
		Intent:    intent,
		Route:     route,
		Status:    models.TxStatusPending,
		StartedAt: time.Now(),
	}

	start := time.Now()
	defer func() {
		metrics.Executions.WithLabelValues(string(route.Provider), string(tx.Status)).Inc()
		metrics.ExecutionDuration.WithLabelValues(string(route.Provider)).Observe(time.Since(start).Seconds())
	}()

	e.logger.InfoWithProvider(string(route.Provider), "Executing route %s: chain %d -> %d", tx.ID, route.FromChainID, route.ToChainID)

	// The just-in-time build result is shared between the approval and
	// submission phases so providers without embedded calldata are only
	// asked to build once
	var built *providers.BuiltTransaction

	if route.RequiresApproval {
		if err := tx.SetStatus(models.TxStatusApproving); err != nil {
			return tx, err
		}
		var err error
		built, err = e.approve(ctx, tx, adapter, route)
		if err != nil {
			step := lastStep(tx)
			return e.fail(tx, step, &ApprovalFailedError{Provider: route.Provider, Err: err})
		}
	}

	if err := tx.SetStatus(models.TxStatusExecuting); err != nil {
		return tx, err
	}
	srcHash, err := e.submit(ctx, tx, adapter, route, built)
	if err != nil {
		step := lastStep(tx)
		return e.fail(tx, step, &SubmissionFailedError{Provider: route.Provider, TxHash: srcHash, Err: err})
	}

	if route.SameChain() {
		if err := tx.SetStatus(models.TxStatusCompleted); err != nil {
			return tx, err
		}
		e.logger.InfoWithProvider(string(route.Provider), "Execution %s completed on chain %d", tx.ID, route.FromChainID)
		return tx, nil
	}

	if err := tx.SetStatus(models.TxStatusBridging); err != nil {
		return tx, err
	}
	step := tx.AddStep("settlement", route.ToChainID)
	if err := e.awaitSettlement(ctx, adapter, route, srcHash); err != nil {
		return e.fail(tx, step, err)
	}
	step.Complete(srcHash)

	if err := tx.SetStatus(models.TxStatusCompleted); err != nil {
		return tx, err
	}
	e.logger.InfoWithProvider(string(route.Provider), "Execution %s settled on chain %d", tx.ID, route.ToChainID)
	return tx, nil
}

// approve ensures the route's spender holds a sufficient allowance,
// submitting an approval transaction only when the existing allowance
// falls short. Returns the just-in-time build result when learning the
// spender required one.
func (e *Executor) approve(ctx context.Context, tx *models.CrossChainTransaction, adapter providers.Adapter, route *models.UnifiedRoute) (*providers.BuiltTransaction, error) {
	step := tx.AddStep("approval", route.FromChainID)
	chainLabel := strconv.Itoa(route.FromChainID)

	spender, built, err := e.resolveSpender(ctx, adapter, route)
	if err != nil {
		return nil, err
	}
	if spender == "" {
		return nil, fmt.Errorf("provider declared no approval spender")
	}

	amount, ok := new(big.Int).SetString(route.FromAmount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid from amount: %q", route.FromAmount)
	}

	token := common.HexToAddress(route.FromToken)
	owner := e.signer.Address()
	allowance, err := e.signer.Allowance(ctx, route.FromChainID, token, owner, common.HexToAddress(spender))
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance: %v", err)
	}

	// A sufficient allowance completes the step without an on-chain
	// transaction, so it carries no hash
	if allowance.Cmp(amount) >= 0 {
		e.logger.DebugWithProvider(string(route.Provider), "Allowance %s covers %s, skipping approval", allowance, amount)
		metrics.ApprovalsSkipped.WithLabelValues(chainLabel).Inc()
		step.Complete("")
		return built, nil
	}

	hash, err := e.signer.Approve(ctx, route.FromChainID, token, common.HexToAddress(spender), amount)
	if err != nil {
		return nil, fmt.Errorf("failed to submit approval: %v", err)
	}
	tx.AppendHash(hash.Hex())
	metrics.ApprovalsSubmitted.WithLabelValues(chainLabel).Inc()

	receipt, err := e.signer.WaitForReceipt(ctx, route.FromChainID, hash)
	if err != nil {
		return nil, fmt.Errorf("approval not confirmed: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("approval transaction %s reverted", hash.Hex())
	}

	step.Complete(hash.Hex())
	return built, nil
}

// resolveSpender finds the address to approve for the route's provider.
// Providers that declare it in the quote answer directly; providers that
// only reveal it at build time trigger the just-in-time build here.
func (e *Executor) resolveSpender(ctx context.Context, adapter providers.Adapter, route *models.UnifiedRoute) (string, *providers.BuiltTransaction, error) {
	switch route.Provider {
	case models.ProviderLiFi:
		if route.Raw.LiFi != nil {
			return route.Raw.LiFi.ApprovalAddress, nil, nil
		}
	case models.ProviderSquid:
		if route.Raw.Squid != nil {
			return route.Raw.Squid.Target, nil, nil
		}
	case models.ProviderRango:
		if route.Raw.Rango != nil && route.Raw.Rango.Spender != "" {
			return route.Raw.Rango.Spender, nil, nil
		}
		built, err := adapter.BuildTransaction(ctx, route)
		if err != nil {
			return "", nil, fmt.Errorf("failed to build transaction for spender: %v", err)
		}
		return built.Spender, built, nil
	}

	// Generic fallback: an embedded transaction's target is the spender
	if call := embeddedCall(route); call != nil {
		return call.To, nil, nil
	}
	return "", nil, fmt.Errorf("route carries no spender information")
}

// submit resolves the route's executable call, submits it on the source
// chain, and waits for confirmation. Returns the source transaction hash.
func (e *Executor) submit(ctx context.Context, tx *models.CrossChainTransaction, adapter providers.Adapter, route *models.UnifiedRoute, built *providers.BuiltTransaction) (string, error) {
	step := tx.AddStep("submit", route.FromChainID)

	call, err := e.resolveCall(ctx, adapter, route, built)
	if err != nil {
		return "", err
	}
	// Routes posted over the API may omit the call's chain id
	if call.ChainID == 0 {
		call.ChainID = route.FromChainID
	}

	hash, err := e.signer.SendTransaction(ctx, *call)
	if err != nil {
		return "", fmt.Errorf("failed to submit transaction: %v", err)
	}
	hashHex := hash.Hex()
	tx.AppendHash(hashHex)
	e.logger.InfoWithProvider(string(route.Provider), "Submitted %s on chain %d", hashHex, route.FromChainID)

	receipt, err := e.signer.WaitForReceipt(ctx, route.FromChainID, hash)
	if err != nil {
		return hashHex, fmt.Errorf("transaction not confirmed: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hashHex, fmt.Errorf("transaction %s reverted", hashHex)
	}

	step.Complete(hashHex)
	return hashHex, nil
}

// resolveCall finds the executable call for the route: an embedded
// transaction when the quote carried one, the provider's raw payload
// otherwise, and a just-in-time build as the last resort.
func (e *Executor) resolveCall(ctx context.Context, adapter providers.Adapter, route *models.UnifiedRoute, built *providers.BuiltTransaction) (*models.ChainCall, error) {
	if call := embeddedCall(route); call != nil {
		return call, nil
	}
	if built != nil {
		return &built.Call, nil
	}

	switch route.Provider {
	case models.ProviderLiFi, models.ProviderSquid:
		// Raw payloads were checked by embeddedCall; reaching here means
		// the quote genuinely carried no calldata
		return nil, fmt.Errorf("quote carried no executable transaction")
	case models.ProviderRango:
		fresh, err := adapter.BuildTransaction(ctx, route)
		if err != nil {
			return nil, fmt.Errorf("failed to build transaction: %v", err)
		}
		return &fresh.Call, nil
	}
	return nil, fmt.Errorf("no execution strategy for provider %s", route.Provider)
}

// embeddedCall returns the call embedded in the route, if any
func embeddedCall(route *models.UnifiedRoute) *models.ChainCall {
	if len(route.Transactions) > 0 {
		call := route.Transactions[0]
		return &call
	}
	switch route.Provider {
	case models.ProviderLiFi:
		if route.Raw.LiFi != nil && route.Raw.LiFi.TxRequest != nil {
			call := *route.Raw.LiFi.TxRequest
			return &call
		}
	case models.ProviderSquid:
		if route.Raw.Squid != nil && route.Raw.Squid.TxRequest != nil {
			call := *route.Raw.Squid.TxRequest
			return &call
		}
	}
	return nil
}

// fail marks the open step (when given) and the record as failed, and
// returns the record alongside the error
func (e *Executor) fail(tx *models.CrossChainTransaction, step *models.TransactionStep, err error) (*models.CrossChainTransaction, error) {
	if step != nil && step.Status == models.StepStatusInProgress {
		step.Fail(err)
	}
	tx.Error = err.Error()
	if setErr := tx.SetStatus(models.TxStatusFailed); setErr != nil {
		e.logger.Error("Failed to mark execution %s failed: %v", tx.ID, setErr)
	}
	e.logger.ErrorWithProvider(string(tx.Route.Provider), "Execution %s failed: %v", tx.ID, err)
	return tx, err
}

// lastStep returns the most recently added step, or nil
func lastStep(tx *models.CrossChainTransaction) *models.TransactionStep {
	if len(tx.Steps) == 0 {
		return nil
	}
	return tx.Steps[len(tx.Steps)-1]
}

// sleepContext sleeps for d or until the context is cancelled
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
