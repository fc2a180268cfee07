package providers

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/routerun-hq/routerunner/pkg/models"
)

// toSmallestUnits converts a provider amount to an integer string in the
// token's smallest unit. Providers that already return integer base
// units pass through; providers that return human-readable decimals are
// rescaled using the token's declared decimals.
func toSmallestUnits(amount string, decimals int) (string, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return "", fmt.Errorf("empty amount")
	}

	// Fast path: already an integer string
	if !strings.ContainsAny(amount, ".eE") {
		v, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return "", fmt.Errorf("unparseable amount: %q", amount)
		}
		if v.Sign() < 0 {
			return "", fmt.Errorf("negative amount: %q", amount)
		}
		return v.String(), nil
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("unparseable amount: %q", amount)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("negative amount: %q", amount)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		// Sub-unit precision cannot exist on chain; truncate
		scaled = scaled.Truncate(0)
	}
	return scaled.BigInt().String(), nil
}

// toHumanUnits converts an integer smallest-unit amount into the
// human-readable decimal string some provider APIs expect as input.
func toHumanUnits(amount string, decimals int) (string, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10)
	if !ok {
		return "", fmt.Errorf("unparseable amount: %q", amount)
	}
	if v.Sign() < 0 {
		return "", fmt.Errorf("negative amount: %q", amount)
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String(), nil
}

// applySlippage reduces an integer smallest-unit amount by a basis-point
// tolerance, truncating toward zero.
func applySlippage(amount string, bps int) (string, error) {
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return "", fmt.Errorf("unparseable amount: %q", amount)
	}
	if bps <= 0 {
		return v.String(), nil
	}
	factor := big.NewInt(int64(10000 - bps))
	v.Mul(v, factor)
	v.Quo(v, big.NewInt(10000))
	return v.String(), nil
}

// sumUSD sums a list of provider USD cost strings. Absent or unparseable
// values count as zero so cost comparisons remain total-orderable.
func sumUSD(amounts []string) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		if a == "" {
			continue
		}
		d, err := decimal.NewFromString(a)
		if err != nil || d.IsNegative() {
			continue
		}
		total = total.Add(d)
	}
	f, _ := total.Float64()
	return f
}

// classifyStep maps a provider step type onto the canonical step kinds.
// Unknown types default to swap when same-chain and bridge when
// cross-chain; this is a deliberate lossy simplification shared by all
// adapters.
func classifyStep(kind string, sameChain bool) models.StepKind {
	switch strings.ToLower(kind) {
	case "swap":
		return models.StepSwap
	case "cross", "bridge":
		return models.StepBridge
	case "transfer", "send":
		return models.StepTransfer
	case "approval", "approve":
		return models.StepApproval
	}
	if sameChain {
		return models.StepSwap
	}
	return models.StepBridge
}

// parseQuantity parses a chain quantity that may be hex ("0x...") or
// decimal encoded. Returns nil for empty input.
func parseQuantity(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, fmt.Errorf("unparseable hex quantity: %q", s)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("unparseable quantity: %q", s)
	}
	return v, nil
}
