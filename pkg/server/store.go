package server

import (
	"sync"
	"time"

	"github.com/routerun-hq/routerunner/pkg/models"
)

// Execution is the externally visible state of one execution request.
// Record is attached only once the execution reached a terminal status,
// so readers never observe a half-updated audit trail.
type Execution struct {
	ID          string                        `json:"id"`
	Status      models.TxStatus               `json:"status"`
	Provider    models.Provider               `json:"provider"`
	Error       string                        `json:"error,omitempty"`
	SubmittedAt time.Time                     `json:"submitted_at"`
	Record      *models.CrossChainTransaction `json:"record,omitempty"`
}

// ExecutionStore is an in-memory registry of executions. Records are
// never deleted: failed executions stay visible for inspection.
type ExecutionStore struct {
	mu         sync.RWMutex
	executions map[string]*Execution
}

// NewExecutionStore creates an empty store
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{
		executions: make(map[string]*Execution),
	}
}

// Create registers a new pending execution and returns a snapshot of it.
// The stored entry is mutated by Complete from another goroutine, so the
// caller only ever sees copies, same as Get.
func (s *ExecutionStore) Create(id string, provider models.Provider) Execution {
	exec := &Execution{
		ID:          id,
		Status:      models.TxStatusPending,
		Provider:    provider,
		SubmittedAt: time.Now(),
	}

	s.mu.Lock()
	s.executions[id] = exec
	s.mu.Unlock()
	return *exec
}

// Complete attaches the terminal record to an execution
func (s *ExecutionStore) Complete(id string, record *models.CrossChainTransaction, execErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[id]
	if !ok {
		return
	}
	if record != nil {
		exec.Status = record.Status
		exec.Record = record
	} else {
		exec.Status = models.TxStatusFailed
	}
	if execErr != nil {
		exec.Error = execErr.Error()
	}
}

// Get returns a snapshot of the execution with the given id
func (s *ExecutionStore) Get(id string) (Execution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exec, ok := s.executions[id]
	if !ok {
		return Execution{}, false
	}
	return *exec, true
}

// Len returns the number of stored executions
func (s *ExecutionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.executions)
}
