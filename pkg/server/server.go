// Package server exposes the routing engine over HTTP: route discovery,
// execution submission and inspection, plus the health, status and
// metrics endpoints operators point their tooling at.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/routerun-hq/routerunner/pkg/aggregator"
	"github.com/routerun-hq/routerunner/pkg/circuitbreaker"
	"github.com/routerun-hq/routerunner/pkg/logger"
	"github.com/routerun-hq/routerunner/pkg/models"
)

// RouteFinder aggregates quotes for an intent
type RouteFinder interface {
	FindBestRoutes(ctx context.Context, intent models.PaymentIntent) (*models.RouteComparison, error)
}

// RouteExecutor drives a chosen route to a terminal state
type RouteExecutor interface {
	Execute(ctx context.Context, intent models.PaymentIntent, route *models.UnifiedRoute) (*models.CrossChainTransaction, error)
}

// Server is the HTTP front of the routing engine
type Server struct {
	port     string
	finder   RouteFinder
	executor RouteExecutor
	store    *ExecutionStore
	breakers map[models.Provider]*circuitbreaker.CircuitBreaker

	metricsAPIKey string
	logger        logger.Logger

	httpServer *http.Server
}

// NewServer creates the HTTP server. The executor may be nil for
// quote-only deployments; execution endpoints then return 503.
func NewServer(port string, finder RouteFinder, executor RouteExecutor, breakers map[models.Provider]*circuitbreaker.CircuitBreaker, log logger.Logger) *Server {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	s := &Server{
		port:          port,
		finder:        finder,
		executor:      executor,
		store:         NewExecutionStore(),
		breakers:      breakers,
		metricsAPIKey: os.Getenv("METRICS_API_KEY"),
		logger:        log,
	}
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/routes", s.handleFindRoutes)
		r.Post("/executions", s.handleCreateExecution)
		r.Get("/executions/{id}", s.handleGetExecution)
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/status", s.handleStatus)
	r.Post("/circuit/reset", s.handleCircuitReset)

	// Prometheus metrics with API key authentication
	r.Method(http.MethodGet, "/metrics", s.metricsAuthMiddleware(promhttp.Handler()))

	return r
}

// handleFindRoutes aggregates quotes for the posted intent
func (s *Server) handleFindRoutes(w http.ResponseWriter, r *http.Request) {
	var intent models.PaymentIntent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	comparison, err := s.finder.FindBestRoutes(r.Context(), intent)
	if err != nil {
		switch {
		case errors.Is(err, aggregator.ErrNoRoutesFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case strings.Contains(err.Error(), "invalid intent"):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("Route aggregation failed: %v", err)
			s.writeError(w, http.StatusBadGateway, "route aggregation failed")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, comparison)
}

// executionRequest is the POST /executions request body
type executionRequest struct {
	Intent models.PaymentIntent `json:"intent"`
	Route  *models.UnifiedRoute `json:"route"`
}

// handleCreateExecution starts executing the posted route in the
// background and answers immediately with the execution id
func (s *Server) handleCreateExecution(w http.ResponseWriter, r *http.Request) {
	if s.executor == nil {
		s.writeError(w, http.StatusServiceUnavailable, "execution is not enabled on this deployment")
		return
	}

	var req executionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Route == nil {
		s.writeError(w, http.StatusBadRequest, "route is required")
		return
	}
	if err := req.Route.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid route: %v", err))
		return
	}

	id := uuid.NewString()
	exec := s.store.Create(id, req.Route.Provider)

	// Executions outlive the submitting request, so they run against a
	// background context
	go func() {
		record, err := s.executor.Execute(context.Background(), req.Intent, req.Route)
		if record != nil {
			record.ID = id
		}
		s.store.Complete(id, record, err)
	}()

	s.writeJSON(w, http.StatusAccepted, exec)
}

// handleGetExecution returns the current state of one execution
func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exec, ok := s.store.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("no execution with id %s", id))
		return
	}
	s.writeJSON(w, http.StatusOK, exec)
}

// handleStatus reports the circuit state of each provider
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := make(map[string]interface{})
	for provider, breaker := range s.breakers {
		circuit := "closed"
		if breaker.IsOpen() {
			circuit = "open"
		}
		failures, _ := breaker.State()
		status[string(provider)] = map[string]interface{}{
			"circuit":  circuit,
			"failures": failures,
			"enabled":  breaker.IsEnabled(),
		}
	}
	s.writeJSON(w, http.StatusOK, status)
}

// handleCircuitReset manually closes one provider's circuit breaker
func (s *Server) handleCircuitReset(w http.ResponseWriter, r *http.Request) {
	provider := models.Provider(r.URL.Query().Get("provider"))
	if provider == "" {
		s.writeError(w, http.StatusBadRequest, "missing provider parameter")
		return
	}

	breaker, ok := s.breakers[provider]
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("no circuit breaker for provider %s", provider))
		return
	}

	breaker.Reset()
	s.logger.Notice("Circuit breaker for %s reset via admin endpoint", provider)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(fmt.Sprintf("Circuit breaker for %s reset", provider)))
}

// metricsAuthMiddleware checks for a valid API key on the metrics
// endpoint. Auth is skipped when no key is configured.
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}
		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server on port %s", s.port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %v", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
