package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/routerun-hq/routerunner/pkg/chains"
	"github.com/routerun-hq/routerunner/pkg/logger"
	"github.com/routerun-hq/routerunner/pkg/models"
)

// Rango quotes carry no executable calldata. The transaction is built
// just in time against the request id returned with the quote, and the
// approval spender comes from the build response rather than the quote.
// Amounts on the wire are human-readable decimals and are rescaled to
// smallest units using each token's declared decimals.

// rangoBlockchains maps chain ids onto Rango blockchain identifiers
var rangoBlockchains = map[int]string{
	1:     "ETH",
	10:    "OPTIMISM",
	56:    "BSC",
	137:   "POLYGON",
	8453:  "BASE",
	42161: "ARBITRUM",
	43114: "AVAX_CCHAIN",
}

// RangoAdapter is the client for the Rango routing API
type RangoAdapter struct {
	baseURL     string
	apiKey      string
	slippageBps int
	httpClient  *http.Client
	logger      logger.Logger
}

// NewRangoAdapter creates a new Rango adapter
func NewRangoAdapter(baseURL, apiKey string, slippageBps int, timeout time.Duration, log logger.Logger) *RangoAdapter {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &RangoAdapter{
		baseURL:     baseURL,
		apiKey:      apiKey,
		slippageBps: slippageBps,
		httpClient:  newHTTPClient(timeout),
		logger:      log,
	}
}

// Provider returns the adapter's identifier
func (a *RangoAdapter) Provider() models.Provider {
	return models.ProviderRango
}

// rangoAsset identifies a token on a Rango blockchain
type rangoAsset struct {
	Blockchain string `json:"blockchain"`
	Symbol     string `json:"symbol,omitempty"`
	Address    string `json:"address,omitempty"`
}

// rangoRouteRequest is the POST /routing/best request body
type rangoRouteRequest struct {
	From              rangoAsset        `json:"from"`
	To                rangoAsset        `json:"to"`
	Amount            string            `json:"amount"`
	Slippage          string            `json:"slippage"`
	SelectedWallets   map[string]string `json:"selectedWallets"`
	CheckPrerequisite bool              `json:"checkPrerequisites"`
}

// rangoToken is a token description in Rango responses
type rangoToken struct {
	Blockchain string `json:"blockchain"`
	Symbol     string `json:"symbol"`
	Address    string `json:"address"`
	Decimals   int    `json:"decimals"`
}

// rangoRouteResponse is the POST /routing/best response body
type rangoRouteResponse struct {
	RequestID string `json:"requestId"`
	Result    *struct {
		OutputAmount string `json:"outputAmount"`
		Swaps        []struct {
			SwapperID              string     `json:"swapperId"`
			SwapperType            string     `json:"swapperType"`
			From                   rangoToken `json:"from"`
			To                     rangoToken `json:"to"`
			ToAmount               string     `json:"toAmount"`
			EstimatedTimeInSeconds int        `json:"estimatedTimeInSeconds"`
			Fee                    []struct {
				Amount      string     `json:"amount"`
				Token       rangoToken `json:"token"`
				UsdPrice    float64    `json:"price"`
				ExpenseType string     `json:"expenseType"`
			} `json:"fee"`
		} `json:"swaps"`
	} `json:"result"`
	Error string `json:"error"`
}

// GetQuote requests the best route and normalizes it
func (a *RangoAdapter) GetQuote(ctx context.Context, intent models.PaymentIntent) (*models.UnifiedRoute, error) {
	fromChain, ok := rangoBlockchains[intent.Sender.ChainID]
	if !ok {
		return nil, &QuoteError{Provider: a.Provider(), Err: fmt.Errorf("unsupported source chain: %d", intent.Sender.ChainID)}
	}
	toChain, ok := rangoBlockchains[intent.Recipient.ChainID]
	if !ok {
		return nil, &QuoteError{Provider: a.Provider(), Err: fmt.Errorf("unsupported destination chain: %d", intent.Recipient.ChainID)}
	}

	fromDecimals := chains.GetTokenDecimals(intent.Sender.ChainID, intent.Sender.Token)
	amount, err := toHumanUnits(intent.Sender.Amount, fromDecimals)
	if err != nil {
		return nil, &QuoteError{Provider: a.Provider(), Err: err}
	}

	reqBody := rangoRouteRequest{
		From:     rangoAsset{Blockchain: fromChain, Address: rangoTokenAddress(intent.Sender.Token)},
		To:       rangoAsset{Blockchain: toChain, Address: rangoTokenAddress(intent.Recipient.Token)},
		Amount:   amount,
		Slippage: formatSlippage(a.slippageBps),
		SelectedWallets: map[string]string{
			fromChain: intent.Sender.Address,
			toChain:   intent.Recipient.Address,
		},
	}

	var routeResp rangoRouteResponse
	if err := a.post(ctx, "/routing/best", reqBody, &routeResp); err != nil {
		return nil, &QuoteError{Provider: a.Provider(), Err: err}
	}
	if routeResp.Error != "" {
		return nil, &QuoteError{Provider: a.Provider(), Err: fmt.Errorf("provider error: %s", routeResp.Error)}
	}

	return a.normalize(&routeResp, intent)
}

// normalize maps a Rango route into the canonical route model
func (a *RangoAdapter) normalize(resp *rangoRouteResponse, intent models.PaymentIntent) (*models.UnifiedRoute, error) {
	if resp.Result == nil || len(resp.Result.Swaps) == 0 {
		return nil, &NormalizationError{Provider: a.Provider(), Field: "result.swaps", Err: fmt.Errorf("no route in response")}
	}
	if resp.RequestID == "" {
		return nil, &NormalizationError{Provider: a.Provider(), Field: "requestId", Err: fmt.Errorf("missing required field")}
	}

	first := resp.Result.Swaps[0]
	last := resp.Result.Swaps[len(resp.Result.Swaps)-1]

	toAmount, err := toSmallestUnits(resp.Result.OutputAmount, last.To.Decimals)
	if err != nil {
		return nil, &NormalizationError{Provider: a.Provider(), Field: "result.outputAmount", Err: err}
	}

	// Rango reports no distinct guaranteed minimum, so the configured
	// slippage tolerance is applied to the quoted output
	toAmountMin, err := applySlippage(toAmount, a.slippageBps)
	if err != nil {
		return nil, &NormalizationError{Provider: a.Provider(), Field: "result.outputAmount", Err: err}
	}

	totalTime := 0
	totalFeeUSD := 0.0
	var steps []models.RouteStep
	for _, swap := range resp.Result.Swaps {
		fromChainID := rangoChainID(swap.From.Blockchain)
		toChainID := rangoChainID(swap.To.Blockchain)
		steps = append(steps, models.RouteStep{
			Kind:        classifyStep(swap.SwapperType, fromChainID == toChainID),
			FromChainID: fromChainID,
			ToChainID:   toChainID,
			Tool:        swap.SwapperID,
		})
		totalTime += swap.EstimatedTimeInSeconds
		for _, fee := range swap.Fee {
			if amt, err := strconv.ParseFloat(fee.Amount, 64); err == nil && fee.UsdPrice > 0 {
				totalFeeUSD += amt * fee.UsdPrice
			}
		}
	}

	route := &models.UnifiedRoute{
		Provider:         models.ProviderRango,
		FromChainID:      intent.Sender.ChainID,
		ToChainID:        intent.Recipient.ChainID,
		FromToken:        intent.Sender.Token,
		ToToken:          intent.Recipient.Token,
		FromSymbol:       first.From.Symbol,
		ToSymbol:         last.To.Symbol,
		FromDecimals:     first.From.Decimals,
		ToDecimals:       last.To.Decimals,
		FromAmount:       intent.Sender.Amount,
		ToAmount:         toAmount,
		ToAmountMin:      toAmountMin,
		EstimatedTime:    totalTime,
		TotalFeeUSD:      totalFeeUSD,
		Steps:            steps,
		RequiresApproval: !chains.IsNativeToken(intent.Sender.Token),
		Raw: models.RawData{
			Rango: &models.RangoRawData{
				RequestID: resp.RequestID,
				StepCount: len(resp.Result.Swaps),
			},
		},
	}

	if err := route.Validate(); err != nil {
		return nil, &NormalizationError{Provider: a.Provider(), Field: "route", Err: err}
	}
	return route, nil
}

// rangoCreateRequest is the POST /tx/create request body
type rangoCreateRequest struct {
	RequestID   string `json:"requestId"`
	Step        int    `json:"step"`
	UserSetting struct {
		Slippage string `json:"slippage"`
	} `json:"userSettings"`
	Validations struct {
		Balance bool `json:"balance"`
		Fee     bool `json:"fee"`
	} `json:"validations"`
}

// rangoCreateResponse is the POST /tx/create response body
type rangoCreateResponse struct {
	OK          bool   `json:"ok"`
	Error       string `json:"error"`
	Transaction *struct {
		TxTo      string `json:"txTo"`
		TxData    string `json:"txData"`
		Value     string `json:"value"`
		GasLimit  string `json:"gasLimit"`
		GasPrice  string `json:"gasPrice"`
		ApproveTo string `json:"approveTo"`
	} `json:"transaction"`
}

// BuildTransaction creates the executable call for a previously quoted
// route. The call cannot be fetched at quote time: Rango materializes
// calldata only against the request id.
func (a *RangoAdapter) BuildTransaction(ctx context.Context, route *models.UnifiedRoute) (*BuiltTransaction, error) {
	if route.Raw.Rango == nil || route.Raw.Rango.RequestID == "" {
		return nil, fmt.Errorf("route has no rango request id")
	}

	reqBody := rangoCreateRequest{
		RequestID: route.Raw.Rango.RequestID,
		Step:      1,
	}
	reqBody.UserSetting.Slippage = formatSlippage(a.slippageBps)

	var createResp rangoCreateResponse
	if err := a.post(ctx, "/tx/create", reqBody, &createResp); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %v", err)
	}
	if !createResp.OK || createResp.Transaction == nil {
		return nil, fmt.Errorf("transaction creation rejected: %s", createResp.Error)
	}

	tx := createResp.Transaction
	value, err := parseQuantity(tx.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction value: %v", err)
	}
	gasLimit, err := parseQuantity(tx.GasLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid gas limit: %v", err)
	}
	gasPrice, err := parseQuantity(tx.GasPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid gas price: %v", err)
	}

	call := models.ChainCall{
		ChainID:  route.FromChainID,
		To:       tx.TxTo,
		Data:     tx.TxData,
		Value:    value,
		GasPrice: gasPrice,
	}
	if gasLimit != nil {
		call.GasLimit = gasLimit.Uint64()
	}

	// Remember the declared spender so later approval checks do not
	// need another build call
	route.Raw.Rango.Spender = tx.ApproveTo

	return &BuiltTransaction{Call: call, Spender: tx.ApproveTo}, nil
}

// rangoStatusResponse is the POST /tx/check-status response body
type rangoStatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Extra  struct {
		SrcTx  string `json:"srcTx"`
		DestTx string `json:"destTx"`
	} `json:"extraMessage"`
}

// Status queries settlement status keyed by request id and tx hash
func (a *RangoAdapter) Status(ctx context.Context, req StatusRequest) (SettlementStatus, error) {
	if req.RequestID == "" {
		return SettlementStatus{}, fmt.Errorf("rango status lookup requires the request id captured at quote time")
	}

	reqBody := map[string]interface{}{
		"requestId": req.RequestID,
		"txId":      req.TxHash,
		"step":      1,
	}

	var status rangoStatusResponse
	if err := a.post(ctx, "/tx/check-status", reqBody, &status); err != nil {
		return SettlementStatus{}, err
	}

	switch status.Status {
	case "success":
		return SettlementStatus{State: SettlementSuccess}, nil
	case "failed":
		msg := status.Error
		if msg == "" {
			msg = "provider reported failure"
		}
		return SettlementStatus{State: SettlementFailed, Message: msg}, nil
	case "running", "":
		return SettlementStatus{State: SettlementPending}, nil
	default:
		return SettlementStatus{State: SettlementPending, Message: status.Status}, nil
	}
}

// post sends a JSON request and decodes a JSON response
func (a *RangoAdapter) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := a.baseURL + path
	if a.apiKey != "" {
		url += "?apiKey=" + a.apiKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			a.logger.Error("Failed to close response body: %v", closeErr)
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}
	return json.Unmarshal(bodyBytes, out)
}

// rangoTokenAddress maps native sentinels to the empty address Rango
// expects for native assets
func rangoTokenAddress(address string) string {
	if chains.IsNativeToken(address) {
		return ""
	}
	return address
}

// rangoChainID resolves a Rango blockchain identifier back to a chain id
func rangoChainID(blockchain string) int {
	for id, name := range rangoBlockchains {
		if name == blockchain {
			return id
		}
	}
	return 0
}

// formatSlippage renders basis points as the percent string Rango expects
func formatSlippage(bps int) string {
	return strconv.FormatFloat(float64(bps)/100.0, 'f', -1, 64)
}
