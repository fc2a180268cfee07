package executor

import (
	"fmt"
	"time"

	"github.com/routerun-hq/routerunner/pkg/models"
)

// ApprovalFailedError means the ERC-20 approval transaction could not be
// submitted or reverted on chain.
type ApprovalFailedError struct {
	Provider models.Provider
	Err      error
}

func (e *ApprovalFailedError) Error() string {
	return fmt.Sprintf("%s: approval failed: %v", e.Provider, e.Err)
}

func (e *ApprovalFailedError) Unwrap() error {
	return e.Err
}

// SubmissionFailedError means the main route transaction could not be
// submitted or reverted on the source chain.
type SubmissionFailedError struct {
	Provider models.Provider
	TxHash   string
	Err      error
}

func (e *SubmissionFailedError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("%s: submission failed (tx %s): %v", e.Provider, e.TxHash, e.Err)
	}
	return fmt.Sprintf("%s: submission failed: %v", e.Provider, e.Err)
}

func (e *SubmissionFailedError) Unwrap() error {
	return e.Err
}

// SettlementFailedError means the provider explicitly reported the
// cross-chain transfer as failed. Distinct from a timeout: the outcome
// is known.
type SettlementFailedError struct {
	Provider models.Provider
	TxHash   string
	Message  string
}

func (e *SettlementFailedError) Error() string {
	return fmt.Sprintf("%s: settlement failed for tx %s: %s", e.Provider, e.TxHash, e.Message)
}

// SettlementTimeoutError means polling exhausted its attempt budget
// without reaching a terminal settlement status. The transfer may still
// complete later; the outcome is unknown, not failed.
type SettlementTimeoutError struct {
	Provider models.Provider
	TxHash   string
	Attempts int
	Interval time.Duration
}

func (e *SettlementTimeoutError) Error() string {
	return fmt.Sprintf("%s: settlement status unknown for tx %s after %d polls at %s intervals",
		e.Provider, e.TxHash, e.Attempts, e.Interval)
}
