package providers

import (
	"errors"
	"fmt"

	"github.com/routerun-hq/routerunner/pkg/models"
)

// ErrBuildNotSupported is returned by adapters whose quotes always embed
// executable calldata, so there is nothing to build just in time.
var ErrBuildNotSupported = errors.New("provider does not support transaction building")

// QuoteError wraps a failure to obtain a quote from one provider. It is
// recovered at the aggregation boundary: logged and excluded, never
// escalated on its own.
type QuoteError struct {
	Provider models.Provider
	Err      error
}

func (e *QuoteError) Error() string {
	return fmt.Sprintf("%s quote failed: %v", e.Provider, e.Err)
}

func (e *QuoteError) Unwrap() error {
	return e.Err
}

// NormalizationError wraps a provider response that could not be mapped
// to the canonical route model. Treated like QuoteError at the
// aggregation boundary.
type NormalizationError struct {
	Provider models.Provider
	Field    string
	Err      error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("%s response not normalizable (%s): %v", e.Provider, e.Field, e.Err)
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}
