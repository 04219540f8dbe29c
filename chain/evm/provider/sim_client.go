package provider

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

// SimClient is a wrapper struct around a simulated backend which implements OnchainClient but
// also exposes backend methods.
type SimClient struct {
	mu sync.Mutex

	// Embed the simulated.Client to provide access to its methods and adhere to the OnchainClient interface.
	simulated.Client
	// sim is the underlying simulated backend that this client wraps.
	sim    *simulated.Backend
	closed bool
}

// NewSimClient creates a new SimClient from a simulated backend.
func NewSimClient(sim *simulated.Backend) (*SimClient, error) {
	if sim == nil {
		return nil, errors.New("simulated backend must not be nil")
	}

	return &SimClient{
		sim:    sim,
		Client: sim.Client(),
	}, nil
}

// Commit seals the pending transactions into a new block. It is a no-op once closed.
func (b *SimClient) Commit() common.Hash {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return common.Hash{}
	}

	return b.sim.Commit()
}

// Close shuts the simulated backend down.
func (b *SimClient) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	return b.sim.Close()
}
