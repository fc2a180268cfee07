package executor

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routerun-hq/routerunner/pkg/models"
	"github.com/routerun-hq/routerunner/pkg/providers"
)

// mockSigner is a scriptable Signer. It is safe for concurrent use so
// tests can share one instance across parallel executions, the way the
// server shares one wallet.
type mockSigner struct {
	mu        sync.Mutex
	address   common.Address
	allowance *big.Int

	approveCalls int
	sendCalls    int

	// chain ids observed per call, in call order
	sendChains    []int
	receiptChains []int
	allowChains   []int
	approveChains []int

	approveErr error
	sendErr    error

	// revertHashes lists hashes whose receipts report a revert
	revertHashes map[common.Hash]bool

	nextHash byte
}

func newMockSigner() *mockSigner {
	return &mockSigner{
		address:      common.HexToAddress("0x1111111111111111111111111111111111111111"),
		allowance:    big.NewInt(0),
		revertHashes: make(map[common.Hash]bool),
	}
}

func (m *mockSigner) Address() common.Address {
	return m.address
}

func (m *mockSigner) SendTransaction(_ context.Context, call models.ChainCall) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendCalls++
	m.sendChains = append(m.sendChains, call.ChainID)
	if m.sendErr != nil {
		return common.Hash{}, m.sendErr
	}
	return m.newHash(), nil
}

func (m *mockSigner) WaitForReceipt(_ context.Context, chainID int, hash common.Hash) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiptChains = append(m.receiptChains, chainID)
	status := types.ReceiptStatusSuccessful
	if m.revertHashes[hash] {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{Status: status, TxHash: hash}, nil
}

func (m *mockSigner) Allowance(_ context.Context, chainID int, _, _, _ common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowChains = append(m.allowChains, chainID)
	return new(big.Int).Set(m.allowance), nil
}

func (m *mockSigner) Approve(_ context.Context, chainID int, _, _ common.Address, _ *big.Int) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approveCalls++
	m.approveChains = append(m.approveChains, chainID)
	if m.approveErr != nil {
		return common.Hash{}, m.approveErr
	}
	return m.newHash(), nil
}

func (m *mockSigner) newHash() common.Hash {
	m.nextHash++
	return common.Hash{m.nextHash}
}

// mockAdapter is a scriptable provider adapter
type mockAdapter struct {
	provider models.Provider

	built      *providers.BuiltTransaction
	buildErr   error
	buildCalls int

	// statuses are returned in order; the last repeats
	statuses    []providers.SettlementStatus
	statusErr   error
	statusCalls int
}

func (m *mockAdapter) Provider() models.Provider {
	return m.provider
}

func (m *mockAdapter) GetQuote(_ context.Context, _ models.PaymentIntent) (*models.UnifiedRoute, error) {
	return nil, fmt.Errorf("not used in executor tests")
}

func (m *mockAdapter) BuildTransaction(_ context.Context, _ *models.UnifiedRoute) (*providers.BuiltTransaction, error) {
	m.buildCalls++
	if m.buildErr != nil {
		return nil, m.buildErr
	}
	return m.built, nil
}

func (m *mockAdapter) Status(_ context.Context, _ providers.StatusRequest) (providers.SettlementStatus, error) {
	m.statusCalls++
	if m.statusErr != nil {
		return providers.SettlementStatus{}, m.statusErr
	}
	idx := m.statusCalls - 1
	if idx >= len(m.statuses) {
		idx = len(m.statuses) - 1
	}
	return m.statuses[idx], nil
}

func lifiRoute(sameChain bool) *models.UnifiedRoute {
	toChain := 42161
	if sameChain {
		toChain = 1
	}
	call := models.ChainCall{
		ChainID: 1,
		To:      "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE",
		Data:    "0xdeadbeef",
	}
	return &models.UnifiedRoute{
		Provider:         models.ProviderLiFi,
		FromChainID:      1,
		ToChainID:        toChain,
		FromToken:        "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		ToToken:          "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		FromAmount:       "100000000",
		ToAmount:         "99500000",
		ToAmountMin:      "99000000",
		EstimatedTime:    20,
		Steps:            []models.RouteStep{{Kind: models.StepBridge, FromChainID: 1, ToChainID: toChain, Tool: "stargate"}},
		Transactions:     []models.ChainCall{call},
		RequiresApproval: true,
		Raw: models.RawData{
			LiFi: &models.LiFiRawData{
				QuoteID:         "q-1",
				Tool:            "stargate",
				ApprovalAddress: "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE",
				TxRequest:       &call,
			},
		},
	}
}

func executorIntent() models.PaymentIntent {
	return models.PaymentIntent{
		Sender: models.Endpoint{
			Address: "0x1111111111111111111111111111111111111111",
			Token:   "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			ChainID: 1,
			Amount:  "100000000",
		},
		Recipient: models.Endpoint{
			Address: "0x2222222222222222222222222222222222222222",
			Token:   "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
			ChainID: 42161,
		},
	}
}

func newTestExecutor(t *testing.T, signer Signer, adapter providers.Adapter, opts ...Option) *Executor {
	t.Helper()
	exec, err := New(signer, []providers.Adapter{adapter}, nil, opts...)
	require.NoError(t, err)
	exec.sleep = func(_ context.Context, _ time.Duration) error { return nil }
	return exec
}

func TestExecuteCrossChainSuccess(t *testing.T) {
	signer := newMockSigner()
	adapter := &mockAdapter{
		provider: models.ProviderLiFi,
		statuses: []providers.SettlementStatus{
			{State: providers.SettlementNotFound},
			{State: providers.SettlementPending},
			{State: providers.SettlementSuccess},
		},
	}
	exec := newTestExecutor(t, signer, adapter)

	tx, err := exec.Execute(context.Background(), executorIntent(), lifiRoute(false))
	require.NoError(t, err)

	assert.Equal(t, models.TxStatusCompleted, tx.Status)
	assert.NotNil(t, tx.CompletedAt)
	assert.Equal(t, []int{1}, signer.sendChains)

	// approval + main transaction
	assert.Equal(t, 1, signer.approveCalls)
	assert.Equal(t, 1, signer.sendCalls)
	assert.Len(t, tx.TransactionHashes, 2)

	require.Len(t, tx.Steps, 3)
	assert.Equal(t, "approval", tx.Steps[0].Name)
	assert.Equal(t, "submit", tx.Steps[1].Name)
	assert.Equal(t, "settlement", tx.Steps[2].Name)
	for _, step := range tx.Steps {
		assert.Equal(t, models.StepStatusCompleted, step.Status)
	}

	// not-found and pending both retry
	assert.Equal(t, 3, adapter.statusCalls)
}

func TestExecuteSameChainSkipsBridging(t *testing.T) {
	signer := newMockSigner()
	signer.allowance = big.NewInt(1e18) // no approval needed either
	adapter := &mockAdapter{provider: models.ProviderLiFi}
	exec := newTestExecutor(t, signer, adapter)

	tx, err := exec.Execute(context.Background(), executorIntent(), lifiRoute(true))
	require.NoError(t, err)

	assert.Equal(t, models.TxStatusCompleted, tx.Status)
	assert.Zero(t, adapter.statusCalls)
	assert.Zero(t, signer.approveCalls)

	// The satisfied allowance completes the approval step without a hash
	require.Len(t, tx.Steps, 2)
	assert.Equal(t, "approval", tx.Steps[0].Name)
	assert.Equal(t, models.StepStatusCompleted, tx.Steps[0].Status)
	assert.Empty(t, tx.Steps[0].TransactionHash)
	assert.Len(t, tx.TransactionHashes, 1)
}

func TestExecuteNativeTokenSkipsApproval(t *testing.T) {
	signer := newMockSigner()
	adapter := &mockAdapter{provider: models.ProviderLiFi}
	route := lifiRoute(true)
	route.RequiresApproval = false

	exec := newTestExecutor(t, signer, adapter)
	tx, err := exec.Execute(context.Background(), executorIntent(), route)
	require.NoError(t, err)

	assert.Equal(t, models.TxStatusCompleted, tx.Status)
	require.Len(t, tx.Steps, 1)
	assert.Equal(t, "submit", tx.Steps[0].Name)
}

func TestExecuteApprovalRevert(t *testing.T) {
	signer := newMockSigner()
	// First submitted hash is the approval
	signer.revertHashes[common.Hash{1}] = true
	adapter := &mockAdapter{provider: models.ProviderLiFi}
	exec := newTestExecutor(t, signer, adapter)

	tx, err := exec.Execute(context.Background(), executorIntent(), lifiRoute(false))
	require.Error(t, err)

	var approvalErr *ApprovalFailedError
	assert.ErrorAs(t, err, &approvalErr)
	assert.Equal(t, models.TxStatusFailed, tx.Status)
	assert.NotEmpty(t, tx.Error)
	require.Len(t, tx.Steps, 1)
	assert.Equal(t, models.StepStatusFailed, tx.Steps[0].Status)
	assert.Zero(t, signer.sendCalls)
}

func TestExecuteSubmissionRevert(t *testing.T) {
	signer := newMockSigner()
	signer.allowance = big.NewInt(1e18)
	// With approval skipped the first hash is the main transaction
	signer.revertHashes[common.Hash{1}] = true
	adapter := &mockAdapter{provider: models.ProviderLiFi}
	exec := newTestExecutor(t, signer, adapter)

	tx, err := exec.Execute(context.Background(), executorIntent(), lifiRoute(false))
	require.Error(t, err)

	var submitErr *SubmissionFailedError
	assert.ErrorAs(t, err, &submitErr)
	assert.NotEmpty(t, submitErr.TxHash)
	assert.Equal(t, models.TxStatusFailed, tx.Status)
	// The reverted hash stays in the audit trail
	assert.Len(t, tx.TransactionHashes, 1)
	assert.Zero(t, adapter.statusCalls)
}

func TestExecuteSettlementFailure(t *testing.T) {
	signer := newMockSigner()
	signer.allowance = big.NewInt(1e18)
	adapter := &mockAdapter{
		provider: models.ProviderLiFi,
		statuses: []providers.SettlementStatus{
			{State: providers.SettlementPending},
			{State: providers.SettlementFailed, Message: "bridge refunded"},
		},
	}
	exec := newTestExecutor(t, signer, adapter)

	tx, err := exec.Execute(context.Background(), executorIntent(), lifiRoute(false))
	require.Error(t, err)

	var failedErr *SettlementFailedError
	assert.ErrorAs(t, err, &failedErr)
	assert.Equal(t, "bridge refunded", failedErr.Message)
	assert.Equal(t, models.TxStatusFailed, tx.Status)
	assert.Equal(t, 2, adapter.statusCalls)
}

func TestExecuteSettlementTimeout(t *testing.T) {
	signer := newMockSigner()
	signer.allowance = big.NewInt(1e18)
	adapter := &mockAdapter{
		provider: models.ProviderLiFi,
		statuses: []providers.SettlementStatus{{State: providers.SettlementPending}},
	}
	exec := newTestExecutor(t, signer, adapter, WithSettlementPolicy(5*time.Second, 7))

	sleeps := 0
	exec.sleep = func(_ context.Context, d time.Duration) error {
		assert.Equal(t, 5*time.Second, d)
		sleeps++
		return nil
	}

	tx, err := exec.Execute(context.Background(), executorIntent(), lifiRoute(false))
	require.Error(t, err)

	// Timeout is distinct from failure: the outcome is unknown
	var timeoutErr *SettlementTimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 7, timeoutErr.Attempts)

	var failedErr *SettlementFailedError
	assert.NotErrorAs(t, err, &failedErr)

	assert.Equal(t, models.TxStatusFailed, tx.Status)
	// Exactly maxAttempts polls with a sleep between each pair
	assert.Equal(t, 7, adapter.statusCalls)
	assert.Equal(t, 6, sleeps)
}

func TestExecuteRangoBuildsJustInTime(t *testing.T) {
	signer := newMockSigner()
	adapter := &mockAdapter{
		provider: models.ProviderRango,
		built: &providers.BuiltTransaction{
			Call: models.ChainCall{
				ChainID: 1,
				To:      "0x69460570c93f9DE5f2e36bdcBBC170D8A0406885",
				Data:    "0xfeedface",
			},
			Spender: "0x69460570c93f9DE5f2e36bdcBBC170D8A0406885",
		},
		statuses: []providers.SettlementStatus{{State: providers.SettlementSuccess}},
	}

	route := &models.UnifiedRoute{
		Provider:         models.ProviderRango,
		FromChainID:      1,
		ToChainID:        42161,
		FromToken:        "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		ToToken:          "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		FromAmount:       "100000000",
		ToAmount:         "99100000",
		ToAmountMin:      "98109000",
		EstimatedTime:    60,
		Steps:            []models.RouteStep{{Kind: models.StepBridge, FromChainID: 1, ToChainID: 42161, Tool: "AcrossBridge"}},
		RequiresApproval: true,
		Raw:              models.RawData{Rango: &models.RangoRawData{RequestID: "rango-req-42", StepCount: 1}},
	}

	exec := newTestExecutor(t, signer, adapter)
	tx, err := exec.Execute(context.Background(), executorIntent(), route)
	require.NoError(t, err)

	assert.Equal(t, models.TxStatusCompleted, tx.Status)
	// One build covers both the spender lookup and the submitted call
	assert.Equal(t, 1, adapter.buildCalls)
	assert.Equal(t, 1, signer.approveCalls)
	assert.Equal(t, 1, signer.sendCalls)
}

func TestExecuteConcurrentRoutesUseOwnChains(t *testing.T) {
	signer := newMockSigner()
	lifi := &mockAdapter{
		provider: models.ProviderLiFi,
		statuses: []providers.SettlementStatus{{State: providers.SettlementSuccess}},
	}
	squid := &mockAdapter{
		provider: models.ProviderSquid,
		statuses: []providers.SettlementStatus{{State: providers.SettlementSuccess}},
	}
	exec, err := New(signer, []providers.Adapter{lifi, squid}, nil)
	require.NoError(t, err)
	exec.sleep = func(_ context.Context, _ time.Duration) error { return nil }

	routeA := lifiRoute(false) // 1 -> 42161

	callB := models.ChainCall{
		ChainID: 137,
		To:      "0xce16F69375520ab01377ce7B88f5BA8C48F8D666",
		Data:    "0xabcdef",
	}
	routeB := &models.UnifiedRoute{
		Provider:         models.ProviderSquid,
		FromChainID:      137,
		ToChainID:        8453,
		FromToken:        "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
		ToToken:          "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		FromAmount:       "100000000",
		ToAmount:         "99700000",
		ToAmountMin:      "99500000",
		EstimatedTime:    45,
		Steps:            []models.RouteStep{{Kind: models.StepBridge, FromChainID: 137, ToChainID: 8453, Tool: "axelar"}},
		Transactions:     []models.ChainCall{callB},
		RequiresApproval: true,
		Raw: models.RawData{
			Squid: &models.SquidRawData{RequestID: "sq-1", Target: callB.To, TxRequest: &callB},
		},
	}

	var wg sync.WaitGroup
	wg.Add(2)
	var errA, errB error
	go func() {
		defer wg.Done()
		_, errA = exec.Execute(context.Background(), executorIntent(), routeA)
	}()
	go func() {
		defer wg.Done()
		_, errB = exec.Execute(context.Background(), executorIntent(), routeB)
	}()
	wg.Wait()
	require.NoError(t, errA)
	require.NoError(t, errB)

	// However the two executions interleaved, every signer call named
	// the chain of its own route
	assert.ElementsMatch(t, []int{1, 137}, signer.sendChains)
	assert.ElementsMatch(t, []int{1, 137}, signer.allowChains)
	assert.ElementsMatch(t, []int{1, 137}, signer.approveChains)
	// One approval receipt and one submission receipt per route
	assert.ElementsMatch(t, []int{1, 1, 137, 137}, signer.receiptChains)
}

func TestExecuteUnknownProvider(t *testing.T) {
	signer := newMockSigner()
	adapter := &mockAdapter{provider: models.ProviderLiFi}
	exec := newTestExecutor(t, signer, adapter)

	route := lifiRoute(false)
	route.Provider = models.ProviderSquid
	_, err := exec.Execute(context.Background(), executorIntent(), route)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no adapter registered")
}

func TestExecuteStatusErrorRetries(t *testing.T) {
	signer := newMockSigner()
	signer.allowance = big.NewInt(1e18)
	adapter := &mockAdapter{
		provider:  models.ProviderLiFi,
		statusErr: fmt.Errorf("gateway timeout"),
	}
	exec := newTestExecutor(t, signer, adapter, WithSettlementPolicy(time.Second, 3))

	_, err := exec.Execute(context.Background(), executorIntent(), lifiRoute(false))
	require.Error(t, err)

	var timeoutErr *SettlementTimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 3, adapter.statusCalls)
}
