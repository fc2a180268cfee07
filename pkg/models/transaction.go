package models

import (
	"fmt"
	"time"
)

// TxStatus is the state of an execution. Transitions are driven only by
// the executor; completed and failed are terminal.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusApproving TxStatus = "approving"
	TxStatusExecuting TxStatus = "executing"
	TxStatusBridging  TxStatus = "bridging"
	TxStatusCompleted TxStatus = "completed"
	TxStatusFailed    TxStatus = "failed"
)

// Terminal reports whether the status admits no further transitions
func (s TxStatus) Terminal() bool {
	return s == TxStatusCompleted || s == TxStatusFailed
}

// StepStatus is the state of one atomic on-chain action
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
)

// TransactionStep records one atomic on-chain action. Steps are appended
// in execution order and never removed or reordered after the fact.
type TransactionStep struct {
	Name            string     `json:"name"`
	Status          StepStatus `json:"status"`
	TransactionHash string     `json:"transaction_hash,omitempty"`
	ChainID         int        `json:"chain_id"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// CrossChainTransaction is the durable audit trail for one chosen route.
// It is created when execution begins, mutated only by the executor, and
// never deleted regardless of outcome.
type CrossChainTransaction struct {
	ID                string             `json:"id"`
	Intent            PaymentIntent      `json:"intent"`
	Route             *UnifiedRoute      `json:"route"`
	Status            TxStatus           `json:"status"`
	Steps             []*TransactionStep `json:"steps"`
	TransactionHashes []string           `json:"transaction_hashes"`
	Error             string             `json:"error,omitempty"`
	StartedAt         time.Time          `json:"started_at"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
}

// SetStatus transitions the record to a new status. Transitions out of a
// terminal status are illegal and rejected.
func (t *CrossChainTransaction) SetStatus(status TxStatus) error {
	if t.Status.Terminal() {
		return fmt.Errorf("illegal status transition: %s -> %s", t.Status, status)
	}
	t.Status = status
	if status.Terminal() {
		now := time.Now()
		t.CompletedAt = &now
	}
	return nil
}

// AddStep appends a new in-progress step and returns it
func (t *CrossChainTransaction) AddStep(name string, chainID int) *TransactionStep {
	step := &TransactionStep{
		Name:      name,
		Status:    StepStatusInProgress,
		ChainID:   chainID,
		StartedAt: time.Now(),
	}
	t.Steps = append(t.Steps, step)
	return step
}

// AppendHash records a submitted transaction hash. Hashes are append-only.
func (t *CrossChainTransaction) AppendHash(hash string) {
	t.TransactionHashes = append(t.TransactionHashes, hash)
}

// Complete marks a step successful
func (s *TransactionStep) Complete(txHash string) {
	s.Status = StepStatusCompleted
	s.TransactionHash = txHash
	now := time.Now()
	s.CompletedAt = &now
}

// Fail marks a step failed with the given error
func (s *TransactionStep) Fail(err error) {
	s.Status = StepStatusFailed
	s.Error = err.Error()
	now := time.Now()
	s.CompletedAt = &now
}
