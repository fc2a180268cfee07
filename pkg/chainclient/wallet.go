package chainclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/routerun-hq/routerunner/pkg/logger"
	"github.com/routerun-hq/routerunner/pkg/models"
)

// receiptPollInterval is how often WaitForReceipt re-queries the node
const receiptPollInterval = 2 * time.Second

// Wallet is the signing and submission capability the executor consumes.
// It holds one client per configured chain and a single signing key.
// Every call names its target chain explicitly, so concurrent executions
// on different chains share one Wallet without coordination.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	clients map[int]*Client
	nonces  *NonceManager
	logger  logger.Logger
}

// NewWallet connects to every configured chain and prepares a keyed
// transactor for each.
func NewWallet(ctx context.Context, rpcURLs map[int]string, privateKeyHex string, log logger.Logger) (*Wallet, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %v", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey)

	clients := make(map[int]*Client)
	for chainID, rpcURL := range rpcURLs {
		auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(int64(chainID)))
		if err != nil {
			return nil, fmt.Errorf("failed to create transactor for chain %d: %v", chainID, err)
		}
		client, err := New(ctx, chainID, rpcURL, auth, log)
		if err != nil {
			return nil, err
		}
		clients[chainID] = client
	}

	return &Wallet{
		key:     key,
		address: address,
		clients: clients,
		nonces:  NewNonceManager(),
		logger:  log,
	}, nil
}

// Address returns the signing address
func (w *Wallet) Address() common.Address {
	return w.address
}

// clientFor returns the client serving the given chain
func (w *Wallet) clientFor(chainID int) (*Client, error) {
	client, ok := w.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %d is not configured", chainID)
	}
	return client, nil
}

// SendTransaction signs and submits one raw chain call on the chain the
// call names. Fee-market fields are used when the call carries them;
// otherwise a legacy gas price is used, either the call's own or the
// node's suggestion. The two gas pricing forms are never combined: nodes
// reject transactions that set both.
func (w *Wallet) SendTransaction(ctx context.Context, call models.ChainCall) (common.Hash, error) {
	client, err := w.clientFor(call.ChainID)
	if err != nil {
		return common.Hash{}, err
	}

	to := common.HexToAddress(call.To)
	data := common.FromHex(call.Data)
	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gasLimit := call.GasLimit
	if gasLimit == 0 {
		estimated, err := client.Client.EstimateGas(ctx, ethereum.CallMsg{
			From:  w.address,
			To:    &to,
			Value: value,
			Data:  data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to estimate gas on chain %d: %v", client.ChainID, err)
		}
		gasLimit = estimated
	}

	nonce, err := w.nonces.Next(ctx, client.ChainID, client.Client, w.address)
	if err != nil {
		return common.Hash{}, err
	}

	chainID := big.NewInt(int64(client.ChainID))
	var tx *types.Transaction
	if call.UsesFeeMarket() {
		tip := call.MaxPriorityFeePerGas
		if tip == nil {
			tip, err = client.Client.SuggestGasTipCap(ctx)
			if err != nil {
				w.nonces.Release(client.ChainID, nonce)
				return common.Hash{}, fmt.Errorf("failed to get gas tip cap on chain %d: %v", client.ChainID, err)
			}
		}
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: call.MaxFeePerGas,
			Gas:       gasLimit,
			To:        &to,
			Value:     value,
			Data:      data,
		})
	} else {
		gasPrice := call.GasPrice
		if gasPrice == nil {
			gasPrice, err = client.SuggestGasPrice(ctx)
			if err != nil {
				w.nonces.Release(client.ChainID, nonce)
				return common.Hash{}, err
			}
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       &to,
			Value:    value,
			Data:     data,
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		w.nonces.Release(client.ChainID, nonce)
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %v", err)
	}

	if err := client.Client.SendTransaction(ctx, signed); err != nil {
		w.nonces.Release(client.ChainID, nonce)
		return common.Hash{}, fmt.Errorf("failed to send transaction on chain %d: %v", client.ChainID, err)
	}

	w.logger.Debug("Submitted transaction %s on chain %d (nonce: %d)", signed.Hash().Hex(), client.ChainID, nonce)
	return signed.Hash(), nil
}

// WaitForReceipt blocks until the transaction is mined on the given
// chain or the context is cancelled. Confirmation timeouts are left to
// the caller's context.
func (w *Wallet) WaitForReceipt(ctx context.Context, chainID int, hash common.Hash) (*types.Receipt, error) {
	client, err := w.clientFor(chainID)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.Client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if err != ethereum.NotFound {
			return nil, fmt.Errorf("failed to get receipt for %s: %v", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Allowance reads the current ERC-20 allowance on the given chain.
// Always read fresh: allowances change out of band.
func (w *Wallet) Allowance(ctx context.Context, chainID int, token, owner, spender common.Address) (*big.Int, error) {
	client, err := w.clientFor(chainID)
	if err != nil {
		return nil, err
	}

	parsed, err := erc20ABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %v", err)
	}

	contract := bind.NewBoundContract(token, parsed, client.Client, client.Client, client.Client)

	var out []interface{}
	callOpts := &bind.CallOpts{Context: ctx}
	if err := contract.Call(callOpts, &out, "allowance", owner, spender); err != nil {
		return nil, fmt.Errorf("failed to check allowance: %v", err)
	}
	if len(out) == 0 || out[0] == nil {
		return nil, fmt.Errorf("empty result from allowance call")
	}

	allowance, ok := out[0].(*big.Int)
	if !ok || allowance == nil {
		return nil, fmt.Errorf("invalid allowance result type")
	}
	return allowance, nil
}

// Approve submits an ERC-20 approval on the given chain and returns the
// transaction hash without waiting for confirmation.
func (w *Wallet) Approve(ctx context.Context, chainID int, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	client, err := w.clientFor(chainID)
	if err != nil {
		return common.Hash{}, err
	}
	if client.Auth == nil {
		return common.Hash{}, fmt.Errorf("no signing key configured for chain %d", client.ChainID)
	}

	parsed, err := erc20ABI()
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to parse ERC20 ABI: %v", err)
	}

	contract := bind.NewBoundContract(token, parsed, client.Client, client.Client, client.Client)

	nonce, err := w.nonces.Next(ctx, client.ChainID, client.Client, w.address)
	if err != nil {
		return common.Hash{}, err
	}

	txOpts := *client.Auth
	txOpts.Context = ctx
	txOpts.Nonce = big.NewInt(int64(nonce))

	tx, err := contract.Transact(&txOpts, "approve", spender, amount)
	if err != nil {
		w.nonces.Release(client.ChainID, nonce)
		return common.Hash{}, fmt.Errorf("failed to submit approval: %v", err)
	}

	w.logger.Debug("Submitted approval %s for token %s (spender: %s)", tx.Hash().Hex(), token.Hex(), spender.Hex())
	return tx.Hash(), nil
}
