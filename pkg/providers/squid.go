package providers

import (
	"bytes"
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

// Squid returns a route with embedded fee-market calldata. The native
// asset uses the 0xEeee... sentinel address. Status lookups require the
// x-request-id header value returned with the original route response,
// so it is captured at quote time and carried in the raw payload.

// SquidAdapter is the client for the Squid routing API
type SquidAdapter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
}

// NewSquidAdapter creates a new Squid adapter
func NewSquidAdapter(baseURL, apiKey string, timeout time.Duration, log logger.Logger) *SquidAdapter {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &SquidAdapter{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: newHTTPClient(timeout),
		logger:     log,
	}
}

// Provider returns the adapter's identifier
func (a *SquidAdapter) Provider() models.Provider {
	return models.ProviderSquid
}

// squidRouteRequest is the POST /route request body
type squidRouteRequest struct {
	FromChain   string `json:"fromChain"`
	ToChain     string `json:"toChain"`
	FromToken   string `json:"fromToken"`
	ToToken     string `json:"toToken"`
	FromAmount  string `json:"fromAmount"`
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	SlippageBps int    `json:"slippage,omitempty"`
}

// squidToken is a token description in Squid responses
type squidToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// squidTxRequest is the executable call embedded in a route response
type squidTxRequest struct {
	Target               string `json:"target"`
	Data                 string `json:"data"`
	Value                string `json:"value"`
	GasLimit             string `json:"gasLimit"`
	MaxFeePerGas         string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
}

// squidRouteResponse is the POST /route response body
type squidRouteResponse struct {
	Route struct {
		Estimate struct {
			FromAmount             string     `json:"fromAmount"`
			ToAmount               string     `json:"toAmount"`
			ToAmountMin            string     `json:"toAmountMin"`
			FromToken              squidToken `json:"fromToken"`
			ToToken                squidToken `json:"toToken"`
			EstimatedRouteDuration int        `json:"estimatedRouteDuration"`
			GasCosts               []struct {
				AmountUSD string `json:"amountUsd"`
			} `json:"gasCosts"`
			FeeCosts []struct {
				AmountUSD string `json:"amountUsd"`
			} `json:"feeCosts"`
			Actions []struct {
				Type        string `json:"type"`
				Description string `json:"description"`
				FromChain   string `json:"fromChain"`
				ToChain     string `json:"toChain"`
				Provider    string `json:"provider"`
			} `json:"actions"`
		} `json:"estimate"`
		TransactionRequest squidTxRequest `json:"transactionRequest"`
	} `json:"route"`
}

// GetQuote requests a route and normalizes it
func (a *SquidAdapter) GetQuote(ctx context.Context, intent models.PaymentIntent) (*models.UnifiedRoute, error) {
	reqBody := squidRouteRequest{
		FromChain:   strconv.Itoa(intent.Sender.ChainID),
		ToChain:     strconv.Itoa(intent.Recipient.ChainID),
		FromToken:   squidTokenAddress(intent.Sender.Token),
		ToToken:     squidTokenAddress(intent.Recipient.Token),
		FromAmount:  intent.Sender.Amount,
		FromAddress: intent.Sender.Address,
		ToAddress:   intent.Recipient.Address,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &QuoteError{Provider: a.Provider(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/route", bytes.NewReader(payload))
	if err != nil {
		return nil, &QuoteError{Provider: a.Provider(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("x-integrator-id", a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &QuoteError{Provider: a.Provider(), Err: fmt.Errorf("request failed: %v", err)}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			a.logger.Error("Failed to close response body: %v", closeErr)
		}
	}()

	// The request id arrives as a response header and is the only key
	// accepted by the status endpoint
	requestID := resp.Header.Get("x-request-id")

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &QuoteError{Provider: a.Provider(), Err: fmt.Errorf("failed to read response body: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &QuoteError{Provider: a.Provider(), Err: fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))}
	}

	var route squidRouteResponse
	if err := json.Unmarshal(bodyBytes, &route); err != nil {
		return nil, &QuoteError{Provider: a.Provider(), Err: fmt.Errorf("failed to decode route: %v", err)}
	}

	return a.normalize(&route, requestID, intent)
}

// normalize maps a Squid route into the canonical route model
func (a *SquidAdapter) normalize(resp *squidRouteResponse, requestID string, intent models.PaymentIntent) (*models.UnifiedRoute, error) {
	est := &resp.Route.Estimate
	if est.ToAmount == "" {
		return nil, &NormalizationError{Provider: a.Provider(), Field: "route.estimate.toAmount", Err: fmt.Errorf("missing required field")}
	}

	fromAmount, err := toSmallestUnits(est.FromAmount, est.FromToken.Decimals)
	if err != nil {
		return nil, &NormalizationError{Provider: a.Provider(), Field: "route.estimate.fromAmount", Err: err}
	}
	toAmount, err := toSmallestUnits(est.ToAmount, est.ToToken.Decimals)
	if err != nil {
		return nil, &NormalizationError{Provider: a.Provider(), Field: "route.estimate.toAmount", Err: err}
	}
	toAmountMin := toAmount
	if est.ToAmountMin != "" {
		toAmountMin, err = toSmallestUnits(est.ToAmountMin, est.ToToken.Decimals)
		if err != nil {
			return nil, &NormalizationError{Provider: a.Provider(), Field: "route.estimate.toAmountMin", Err: err}
		}
	}

	sameChain := intent.SameChain()
	var steps []models.RouteStep
	for _, action := range est.Actions {
		fromChain, _ := strconv.Atoi(action.FromChain)
		toChain, _ := strconv.Atoi(action.ToChain)
		steps = append(steps, models.RouteStep{
			Kind:        classifyStep(action.Type, fromChain == toChain),
			Description: action.Description,
			FromChainID: fromChain,
			ToChainID:   toChain,
			Tool:        action.Provider,
		})
	}
	if len(steps) == 0 {
		kind := models.StepSwap
		if !sameChain {
			kind = models.StepBridge
		}
		steps = []models.RouteStep{{
			Kind:        kind,
			FromChainID: intent.Sender.ChainID,
			ToChainID:   intent.Recipient.ChainID,
		}}
	}

	txReq := resp.Route.TransactionRequest
	call, err := a.convertTxRequest(&txReq, intent.Sender.ChainID)
	if err != nil {
		return nil, &NormalizationError{Provider: a.Provider(), Field: "route.transactionRequest", Err: err}
	}
	var transactions []models.ChainCall
	if call != nil {
		transactions = []models.ChainCall{*call}
	}

	gasAmounts := make([]string, 0, len(est.GasCosts))
	for _, c := range est.GasCosts {
		gasAmounts = append(gasAmounts, c.AmountUSD)
	}
	feeAmounts := make([]string, 0, len(est.FeeCosts))
	for _, c := range est.FeeCosts {
		feeAmounts = append(feeAmounts, c.AmountUSD)
	}

	route := &models.UnifiedRoute{
		Provider:         models.ProviderSquid,
		FromChainID:      intent.Sender.ChainID,
		ToChainID:        intent.Recipient.ChainID,
		FromToken:        est.FromToken.Address,
		ToToken:          est.ToToken.Address,
		FromSymbol:       est.FromToken.Symbol,
		ToSymbol:         est.ToToken.Symbol,
		FromDecimals:     est.FromToken.Decimals,
		ToDecimals:       est.ToToken.Decimals,
		FromAmount:       fromAmount,
		ToAmount:         toAmount,
		ToAmountMin:      toAmountMin,
		EstimatedTime:    est.EstimatedRouteDuration,
		TotalGasUSD:      sumUSD(gasAmounts),
		TotalFeeUSD:      sumUSD(feeAmounts),
		Steps:            steps,
		Transactions:     transactions,
		RequiresApproval: !chains.IsNativeToken(est.FromToken.Address),
		Raw: models.RawData{
			Squid: &models.SquidRawData{
				RequestID: requestID,
				Target:    txReq.Target,
				TxRequest: call,
			},
		},
	}

	if err := route.Validate(); err != nil {
		return nil, &NormalizationError{Provider: a.Provider(), Field: "route", Err: err}
	}
	return route, nil
}

// convertTxRequest decodes the call embedded in a route response.
// Squid always quotes fee-market gas, so no legacy gas price is set.
func (a *SquidAdapter) convertTxRequest(tx *squidTxRequest, chainID int) (*models.ChainCall, error) {
	if tx.Target == "" {
		return nil, nil
	}
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

	call := &models.ChainCall{
		ChainID:              chainID,
		To:                   tx.Target,
		Data:                 tx.Data,
		Value:                value,
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: maxPriority,
	}
	if gasLimit != nil {
		call.GasLimit = gasLimit.Uint64()
	}
	return call, nil
}

// BuildTransaction is unsupported: Squid routes embed calldata
func (a *SquidAdapter) BuildTransaction(_ context.Context, _ *models.UnifiedRoute) (*BuiltTransaction, error) {
	return nil, ErrBuildNotSupported
}

// squidStatusResponse is the GET /status response body
type squidStatusResponse struct {
	Status      string `json:"status"`
	SquidStatus string `json:"squidTransactionStatus"`
	Error       string `json:"error"`
}

// Status queries settlement status. The request id captured at quote
// time is mandatory; without it the lookup cannot succeed.
func (a *SquidAdapter) Status(ctx context.Context, req StatusRequest) (SettlementStatus, error) {
	if req.RequestID == "" {
		return SettlementStatus{}, fmt.Errorf("squid status lookup requires the request id captured at quote time")
	}

	params := url.Values{}
	params.Set("transactionId", req.TxHash)
	params.Set("requestId", req.RequestID)
	params.Set("fromChainId", strconv.Itoa(req.FromChainID))
	params.Set("toChainId", strconv.Itoa(req.ToChainID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/status?"+params.Encode(), nil)
	if err != nil {
		return SettlementStatus{}, err
	}
	if a.apiKey != "" {
		httpReq.Header.Set("x-integrator-id", a.apiKey)
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

	var status squidStatusResponse
	if err := json.Unmarshal(bodyBytes, &status); err != nil {
		return SettlementStatus{}, fmt.Errorf("failed to decode status response: %v", err)
	}

	switch status.SquidStatus {
	case "success", "partial_success":
		return SettlementStatus{State: SettlementSuccess, Message: status.SquidStatus}, nil
	case "needs_gas":
		return SettlementStatus{State: SettlementFailed, Message: "destination execution stalled: needs gas"}, nil
	case "not_found":
		return SettlementStatus{State: SettlementNotFound}, nil
	case "ongoing", "":
		return SettlementStatus{State: SettlementPending, Message: status.Status}, nil
	default:
		return SettlementStatus{State: SettlementPending, Message: status.SquidStatus}, nil
	}
}

// squidTokenAddress maps empty token addresses to the native sentinel
func squidTokenAddress(address string) string {
	if chains.IsNativeToken(address) {
		return chains.EeeSentinel
	}
	return address
}
