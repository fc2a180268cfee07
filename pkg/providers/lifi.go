package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/routerun-hq/routerunner/pkg/chains"
	"github.com/routerun-hq/routerunner/pkg/logger"
	"github.com/routerun-hq/routerunner/pkg/models"
)

// LiFi quotes embed executable calldata directly, so no follow-up build
// call is needed. The native asset is represented by the zero address.
// Step classification: LiFi "swap" and "cross" map directly; anything
// else (wrappers, protocol steps) falls back to the shared same-chain ->
// swap / cross-chain -> bridge default.

// LiFiAdapter is the client for the LI.FI quoting API
type LiFiAdapter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
}

// NewLiFiAdapter creates a new LI.FI adapter
func NewLiFiAdapter(baseURL, apiKey string, timeout time.Duration, log logger.Logger) *LiFiAdapter {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &LiFiAdapter{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: newHTTPClient(timeout),
		logger:     log,
	}
}

// Provider returns the adapter's identifier
func (a *LiFiAdapter) Provider() models.Provider {
	return models.ProviderLiFi
}

// lifiToken is a token description in LI.FI responses
type lifiToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// lifiCost is one fee or gas cost entry
type lifiCost struct {
	AmountUSD string `json:"amountUSD"`
}

// lifiTxRequest is the executable call data embedded in a quote.
// Quantity fields are hex encoded.
type lifiTxRequest struct {
	To                   string `json:"to"`
	Data                 string `json:"data"`
	Value                string `json:"value"`
	ChainID              int    `json:"chainId"`
	GasLimit             string `json:"gasLimit"`
	GasPrice             string `json:"gasPrice"`
	MaxFeePerGas         string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
}

// lifiQuote is the LI.FI quote response
type lifiQuote struct {
	ID     string `json:"id"`
	Tool   string `json:"tool"`
	Action struct {
		FromChainID int       `json:"fromChainId"`
		ToChainID   int       `json:"toChainId"`
		FromToken   lifiToken `json:"fromToken"`
		ToToken     lifiToken `json:"toToken"`
		FromAmount  string    `json:"fromAmount"`
	} `json:"action"`
	Estimate struct {
		ToAmount          string     `json:"toAmount"`
		ToAmountMin       string     `json:"toAmountMin"`
		ApprovalAddress   string     `json:"approvalAddress"`
		ExecutionDuration float64    `json:"executionDuration"`
		FeeCosts          []lifiCost `json:"feeCosts"`
		GasCosts          []lifiCost `json:"gasCosts"`
	} `json:"estimate"`
	IncludedSteps []struct {
		Type   string `json:"type"`
		Tool   string `json:"tool"`
		Action struct {
			FromChainID int `json:"fromChainId"`
			ToChainID   int `json:"toChainId"`
		} `json:"action"`
	} `json:"includedSteps"`
	TransactionRequest *lifiTxRequest `json:"transactionRequest"`
}

// GetQuote requests a quote and normalizes it
func (a *LiFiAdapter) GetQuote(ctx context.Context, intent models.PaymentIntent) (*models.UnifiedRoute, error) {
	params := url.Values{}
	params.Set("fromChain", strconv.Itoa(intent.Sender.ChainID))
	params.Set("toChain", strconv.Itoa(intent.Recipient.ChainID))
	params.Set("fromToken", intent.Sender.Token)
	params.Set("toToken", intent.Recipient.Token)
	params.Set("fromAmount", intent.Sender.Amount)
	params.Set("fromAddress", intent.Sender.Address)
	params.Set("toAddress", intent.Recipient.Address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, &QuoteError{Provider: a.Provider(), Err: err}
	}
	if a.apiKey != "" {
		req.Header.Set("x-lifi-api-key", a.apiKey)
	}

	body, err := a.do(req)
	if err != nil {
		return nil, &QuoteError{Provider: a.Provider(), Err: err}
	}

	var quote lifiQuote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, &QuoteError{Provider: a.Provider(), Err: fmt.Errorf("failed to decode quote: %v", err)}
	}

	return a.normalize(&quote, intent)
}

// normalize maps a LI.FI quote into the canonical route model
func (a *LiFiAdapter) normalize(quote *lifiQuote, intent models.PaymentIntent) (*models.UnifiedRoute, error) {
	if quote.Estimate.ToAmount == "" {
		return nil, &NormalizationError{Provider: a.Provider(), Field: "estimate.toAmount", Err: fmt.Errorf("missing required field")}
	}

	fromAmount, err := toSmallestUnits(quote.Action.FromAmount, quote.Action.FromToken.Decimals)
	if err != nil {
		return nil, &NormalizationError{Provider: a.Provider(), Field: "action.fromAmount", Err: err}
	}
	toAmount, err := toSmallestUnits(quote.Estimate.ToAmount, quote.Action.ToToken.Decimals)
	if err != nil {
		return nil, &NormalizationError{Provider: a.Provider(), Field: "estimate.toAmount", Err: err}
	}
	toAmountMin := toAmount
	if quote.Estimate.ToAmountMin != "" {
		toAmountMin, err = toSmallestUnits(quote.Estimate.ToAmountMin, quote.Action.ToToken.Decimals)
		if err != nil {
			return nil, &NormalizationError{Provider: a.Provider(), Field: "estimate.toAmountMin", Err: err}
		}
	}

	sameChain := quote.Action.FromChainID == quote.Action.ToChainID
	var steps []models.RouteStep
	for _, s := range quote.IncludedSteps {
		steps = append(steps, models.RouteStep{
			Kind:        classifyStep(s.Type, s.Action.FromChainID == s.Action.ToChainID),
			FromChainID: s.Action.FromChainID,
			ToChainID:   s.Action.ToChainID,
			Tool:        s.Tool,
		})
	}
	if len(steps) == 0 {
		kind := models.StepSwap
		if !sameChain {
			kind = models.StepBridge
		}
		steps = []models.RouteStep{{
			Kind:        kind,
			FromChainID: quote.Action.FromChainID,
			ToChainID:   quote.Action.ToChainID,
			Tool:        quote.Tool,
		}}
	}

	var txRequest *models.ChainCall
	var transactions []models.ChainCall
	if quote.TransactionRequest != nil {
		call, err := a.convertTxRequest(quote.TransactionRequest, quote.Action.FromChainID)
		if err != nil {
			return nil, &NormalizationError{Provider: a.Provider(), Field: "transactionRequest", Err: err}
		}
		txRequest = call
		transactions = []models.ChainCall{*call}
	}

	route := &models.UnifiedRoute{
		Provider:         models.ProviderLiFi,
		FromChainID:      quote.Action.FromChainID,
		ToChainID:        quote.Action.ToChainID,
		FromToken:        quote.Action.FromToken.Address,
		ToToken:          quote.Action.ToToken.Address,
		FromSymbol:       quote.Action.FromToken.Symbol,
		ToSymbol:         quote.Action.ToToken.Symbol,
		FromDecimals:     quote.Action.FromToken.Decimals,
		ToDecimals:       quote.Action.ToToken.Decimals,
		FromAmount:       fromAmount,
		ToAmount:         toAmount,
		ToAmountMin:      toAmountMin,
		EstimatedTime:    int(quote.Estimate.ExecutionDuration),
		TotalGasUSD:      sumUSD(costAmounts(quote.Estimate.GasCosts)),
		TotalFeeUSD:      sumUSD(costAmounts(quote.Estimate.FeeCosts)),
		Steps:            steps,
		Transactions:     transactions,
		RequiresApproval: !chains.IsNativeToken(quote.Action.FromToken.Address),
		Raw: models.RawData{
			LiFi: &models.LiFiRawData{
				QuoteID:         quote.ID,
				Tool:            quote.Tool,
				ApprovalAddress: quote.Estimate.ApprovalAddress,
				TxRequest:       txRequest,
			},
		},
	}

	if err := route.Validate(); err != nil {
		return nil, &NormalizationError{Provider: a.Provider(), Field: "route", Err: err}
	}
	return route, nil
}

// convertTxRequest decodes the hex quantity fields of an embedded call.
// When the provider supplies fee-market fields the legacy gas price is
// dropped: the two forms must never be combined on one transaction.
func (a *LiFiAdapter) convertTxRequest(tx *lifiTxRequest, chainID int) (*models.ChainCall, error) {
	value, err := parseQuantity(tx.Value)
	if err != nil {
		return nil, err
	}
	gasLimit, err := parseQuantity(tx.GasLimit)
	if err != nil {
		return nil, err
	}
	maxFee, err := parseQuantity(tx.MaxFeePerGas)
	if err != nil {
		return nil, err
	}
	maxPriority, err := parseQuantity(tx.MaxPriorityFeePerGas)
	if err != nil {
		return nil, err
	}
	gasPrice, err := parseQuantity(tx.GasPrice)
	if err != nil {
		return nil, err
	}

	call := &models.ChainCall{
		ChainID: chainID,
		To:      tx.To,
		Data:    tx.Data,
		Value:   value,
	}
	if tx.ChainID != 0 {
		call.ChainID = tx.ChainID
	}
	if gasLimit != nil {
		call.GasLimit = gasLimit.Uint64()
	}
	if maxFee != nil {
		call.MaxFeePerGas = maxFee
		call.MaxPriorityFeePerGas = maxPriority
	} else {
		call.GasPrice = gasPrice
	}
	return call, nil
}

// BuildTransaction is unsupported: LI.FI quotes embed calldata
func (a *LiFiAdapter) BuildTransaction(_ context.Context, _ *models.UnifiedRoute) (*BuiltTransaction, error) {
	return nil, ErrBuildNotSupported
}

// lifiStatusResponse is the LI.FI status endpoint response
type lifiStatusResponse struct {
	Status    string `json:"status"`
	Substatus string `json:"substatus"`
}

// Status queries settlement status by transaction hash and bridge tool
func (a *LiFiAdapter) Status(ctx context.Context, req StatusRequest) (SettlementStatus, error) {
	params := url.Values{}
	params.Set("txHash", req.TxHash)
	params.Set("fromChain", strconv.Itoa(req.FromChainID))
	params.Set("toChain", strconv.Itoa(req.ToChainID))
	if req.Tool != "" {
		params.Set("bridge", req.Tool)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/status?"+params.Encode(), nil)
	if err != nil {
		return SettlementStatus{}, err
	}
	if a.apiKey != "" {
		httpReq.Header.Set("x-lifi-api-key", a.apiKey)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return SettlementStatus{}, fmt.Errorf("status request failed: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			a.logger.Error("Failed to close response body: %v", closeErr)
		}
	}()

	// A 404 right after submission means the indexer has not seen the
	// transaction yet; callers retry
	if resp.StatusCode == http.StatusNotFound {
		return SettlementStatus{State: SettlementNotFound}, nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return SettlementStatus{}, fmt.Errorf("failed to read status response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return SettlementStatus{}, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var status lifiStatusResponse
	if err := json.Unmarshal(bodyBytes, &status); err != nil {
		return SettlementStatus{}, fmt.Errorf("failed to decode status response: %v", err)
	}

	switch status.Status {
	case "DONE":
		return SettlementStatus{State: SettlementSuccess, Message: status.Substatus}, nil
	case "FAILED", "INVALID":
		return SettlementStatus{State: SettlementFailed, Message: status.Substatus}, nil
	case "NOT_FOUND":
		return SettlementStatus{State: SettlementNotFound}, nil
	default:
		return SettlementStatus{State: SettlementPending, Message: status.Substatus}, nil
	}
}

// do executes a request and returns the body on 2xx
func (a *LiFiAdapter) do(req *http.Request) ([]byte, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			a.logger.Error("Failed to close response body: %v", closeErr)
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}
	return bodyBytes, nil
}

// costAmounts extracts the USD amounts from a cost list
func costAmounts(costs []lifiCost) []string {
	amounts := make([]string, 0, len(costs))
	for _, c := range costs {
		amounts = append(amounts, c.AmountUSD)
	}
	return amounts
}
