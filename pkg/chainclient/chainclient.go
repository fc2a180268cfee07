package chainclient

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/routerun-hq/routerunner/pkg/logger"
	"github.com/routerun-hq/routerunner/pkg/metrics"
)

// Client contains client and config information for a specific blockchain
type Client struct {
	ChainID       int
	RPCURL        string
	Client        *ethclient.Client
	Auth          *bind.TransactOpts
	GasMultiplier float64
	logger        logger.Logger
}

// New creates a new client and verifies the endpoint serves the expected chain
func New(ctx context.Context, chainID int, rpcURL string, auth *bind.TransactOpts, log logger.Logger) (*Client, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain %d: %v", chainID, err)
	}

	remoteID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain ID from %s: %v", rpcURL, err)
	}
	if remoteID.Int64() != int64(chainID) {
		return nil, fmt.Errorf("RPC endpoint %s serves chain %d, expected %d", rpcURL, remoteID.Int64(), chainID)
	}

	// Get gas multiplier from environment, default to 1.1 (10% buffer)
	gasMultiplier := 1.1
	if val := os.Getenv(fmt.Sprintf("CHAIN_%d_GAS_MULTIPLIER", chainID)); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err == nil && parsed > 0 {
			gasMultiplier = parsed
		}
	}

	return &Client{
		ChainID:       chainID,
		RPCURL:        rpcURL,
		Client:        client,
		Auth:          auth,
		GasMultiplier: gasMultiplier,
		logger:        log,
	}, nil
}

// SuggestGasPrice returns the network gas price with the buffer multiplier applied
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	gasPrice, err := c.Client.SuggestGasPrice(timeoutCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price for chain %d: %v", c.ChainID, err)
	}

	multiplied := new(big.Float).Mul(
		new(big.Float).SetInt(gasPrice),
		big.NewFloat(c.GasMultiplier),
	)
	final := new(big.Int)
	multiplied.Int(final)

	recordGasPrice(c.ChainID, final)
	return final, nil
}

// recordGasPrice publishes the buffered gas price for a chain in gwei
func recordGasPrice(chainID int, wei *big.Int) {
	gwei, _ := new(big.Float).Quo(
		new(big.Float).SetInt(wei),
		big.NewFloat(1e9),
	).Float64()
	metrics.GasPrice.WithLabelValues(strconv.Itoa(chainID)).Set(gwei)
}
