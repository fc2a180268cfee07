package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routerun-hq/routerunner/pkg/aggregator"
	"github.com/routerun-hq/routerunner/pkg/circuitbreaker"
	"github.com/routerun-hq/routerunner/pkg/models"
)

type mockFinder struct {
	comparison *models.RouteComparison
	err        error
}

func (m *mockFinder) FindBestRoutes(_ context.Context, _ models.PaymentIntent) (*models.RouteComparison, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.comparison, nil
}

type mockExecutor struct {
	record *models.CrossChainTransaction
	err    error
	done   chan struct{}
}

func (m *mockExecutor) Execute(_ context.Context, intent models.PaymentIntent, route *models.UnifiedRoute) (*models.CrossChainTransaction, error) {
	defer close(m.done)
	if m.err != nil {
		return nil, m.err
	}
	record := m.record
	if record == nil {
		record = &models.CrossChainTransaction{
			Intent: intent,
			Route:  route,
			Status: models.TxStatusCompleted,
		}
	}
	return record, nil
}

func validRoute() *models.UnifiedRoute {
	return &models.UnifiedRoute{
		Provider:      models.ProviderLiFi,
		FromChainID:   1,
		ToChainID:     42161,
		FromAmount:    "100000000",
		ToAmount:      "99500000",
		ToAmountMin:   "99000000",
		EstimatedTime: 20,
		Steps:         []models.RouteStep{{Kind: models.StepBridge, FromChainID: 1, ToChainID: 42161}},
	}
}

func validIntent() models.PaymentIntent {
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

func TestHandleFindRoutes(t *testing.T) {
	route := validRoute()
	route.IsRecommended = true
	finder := &mockFinder{comparison: &models.RouteComparison{
		Recommended: route,
		Fastest:     route,
		Cheapest:    route,
		AllRoutes:   []*models.UnifiedRoute{route},
	}}
	srv := NewServer("0", finder, nil, nil, nil)

	body, _ := json.Marshal(validIntent())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/routes", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var comparison models.RouteComparison
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comparison))
	require.Len(t, comparison.AllRoutes, 1)
	assert.Equal(t, models.ProviderLiFi, comparison.Recommended.Provider)
	assert.True(t, comparison.Recommended.IsRecommended)
}

func TestHandleFindRoutesErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"no routes", aggregator.ErrNoRoutesFound, http.StatusNotFound},
		{"invalid intent", fmt.Errorf("invalid intent: missing sender"), http.StatusBadRequest},
		{"upstream", fmt.Errorf("connection refused"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer("0", &mockFinder{err: tt.err}, nil, nil, nil)
			body, _ := json.Marshal(validIntent())
			req := httptest.NewRequest(http.MethodPost, "/api/v1/routes", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			srv.router().ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestHandleFindRoutesBadBody(t *testing.T) {
	srv := NewServer("0", &mockFinder{}, nil, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/routes", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecutionLifecycle(t *testing.T) {
	exec := &mockExecutor{done: make(chan struct{})}
	srv := NewServer("0", &mockFinder{}, exec, nil, nil)
	router := srv.router()

	body, _ := json.Marshal(executionRequest{Intent: validIntent(), Route: validRoute()})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/executions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var created Execution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.TxStatusPending, created.Status)
	assert.Equal(t, models.ProviderLiFi, created.Provider)

	select {
	case <-exec.done:
	case <-time.After(time.Second):
		t.Fatal("execution never ran")
	}

	// Poll until the store observed the completion
	deadline := time.Now().Add(time.Second)
	var fetched Execution
	for {
		req = httptest.NewRequest(http.MethodGet, "/api/v1/executions/"+created.ID, nil)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
		if fetched.Status.Terminal() || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, models.TxStatusCompleted, fetched.Status)
	require.NotNil(t, fetched.Record)
	assert.Equal(t, created.ID, fetched.Record.ID)
}

// instantExecutor terminates synchronously, racing the accepted response
type instantExecutor struct{}

func (instantExecutor) Execute(_ context.Context, intent models.PaymentIntent, route *models.UnifiedRoute) (*models.CrossChainTransaction, error) {
	return &models.CrossChainTransaction{
		Intent: intent,
		Route:  route,
		Status: models.TxStatusCompleted,
	}, nil
}

func TestHandleCreateExecutionResponseIsPendingSnapshot(t *testing.T) {
	srv := NewServer("0", &mockFinder{}, instantExecutor{}, nil, nil)
	router := srv.router()
	body, _ := json.Marshal(executionRequest{Intent: validIntent(), Route: validRoute()})

	// The accepted response is a snapshot taken before the background
	// goroutine runs, so it reports pending with no record no matter
	// how fast the execution terminates
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/executions", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusAccepted, rec.Code)

		var created Execution
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, models.TxStatusPending, created.Status)
		assert.Nil(t, created.Record)
	}
}

func TestHandleCreateExecutionValidation(t *testing.T) {
	exec := &mockExecutor{done: make(chan struct{})}
	srv := NewServer("0", &mockFinder{}, exec, nil, nil)
	router := srv.router()

	// Missing route
	body, _ := json.Marshal(executionRequest{Intent: validIntent()})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/executions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Invalid route
	bad := validRoute()
	bad.ToAmount = "not-a-number"
	body, _ = json.Marshal(executionRequest{Intent: validIntent(), Route: bad})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/executions", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetExecutionNotFound(t *testing.T) {
	srv := NewServer("0", &mockFinder{}, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/executions/nope", nil)
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCreateExecutionDisabled(t *testing.T) {
	srv := NewServer("0", &mockFinder{}, nil, nil, nil)
	body, _ := json.Marshal(executionRequest{Intent: validIntent(), Route: validRoute()})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/executions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndStatus(t *testing.T) {
	breakers := map[models.Provider]*circuitbreaker.CircuitBreaker{
		models.ProviderLiFi: circuitbreaker.New("lifi", true, 1, time.Minute, time.Hour, nil),
	}
	breakers[models.ProviderLiFi].RecordFailure()

	srv := NewServer("0", &mockFinder{}, nil, breakers, nil)
	router := srv.router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "open", status["lifi"]["circuit"])
}

func TestCircuitReset(t *testing.T) {
	breaker := circuitbreaker.New("lifi", true, 1, time.Minute, time.Hour, nil)
	breaker.RecordFailure()
	require.True(t, breaker.IsOpen())

	srv := NewServer("0", &mockFinder{}, nil, map[models.Provider]*circuitbreaker.CircuitBreaker{
		models.ProviderLiFi: breaker,
	}, nil)
	router := srv.router()

	req := httptest.NewRequest(http.MethodPost, "/circuit/reset?provider=lifi", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, breaker.IsOpen())

	req = httptest.NewRequest(http.MethodPost, "/circuit/reset?provider=unknown", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsAuth(t *testing.T) {
	srv := NewServer("0", &mockFinder{}, nil, nil, nil)
	srv.metricsAPIKey = "secret"
	router := srv.router()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
