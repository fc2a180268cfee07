package chainclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// NonceManager coordinates nonce assignment for one signing address
// across concurrently running executions. Each execution is sequential,
// but two executions on the same chain share the signer.
type NonceManager struct {
	mu   sync.Mutex
	next map[int]uint64
}

// NewNonceManager creates a new nonce manager
func NewNonceManager() *NonceManager {
	return &NonceManager{
		next: make(map[int]uint64),
	}
}

// Next reserves the next nonce for the address on the given chain. The
// pending nonce from the node wins when it is ahead of local state, so a
// restart or an externally submitted transaction cannot cause reuse.
func (m *NonceManager) Next(ctx context.Context, chainID int, client *ethclient.Client, from common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending nonce for chain %d: %v", chainID, err)
	}

	nonce := pending
	if cached, ok := m.next[chainID]; ok && cached > nonce {
		nonce = cached
	}
	m.next[chainID] = nonce + 1
	return nonce, nil
}

// Release returns a reserved nonce after a failed submission so the next
// transaction can reuse it.
func (m *NonceManager) Release(chainID int, nonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.next[chainID]; ok && cached == nonce+1 {
		m.next[chainID] = nonce
	}
}
