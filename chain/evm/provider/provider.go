package provider

import (
	"context"

	"github.com/smartcontractkit/lottery-deployments/chain/evm"
)

// Provider initializes the EVM chain of a network.
type Provider interface {
	Initialize(ctx context.Context) (evm.Chain, error)
	Name() string
	// Close releases the resources held by the chain. It is safe to call before Initialize.
	Close() error
}
