package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	chainsel "github.com/smartcontractkit/chain-selectors"

	"github.com/smartcontractkit/lottery-deployments/chain/evm"
	"github.com/smartcontractkit/lottery-deployments/pkg/logger"
)

// RPCChainProviderConfig holds the configuration to initialize the RPCChainProvider.
//
// WARNING: This data type contains sensitive fields and should not be logged.
type RPCChainProviderConfig struct {
	// Required: DeployerKey is the hex private key which signs the deployments.
	DeployerKey string
	// Required: At least one RPC must be provided. The first healthy one is used first.
	RPCs []evm.RPC
	// Optional: ChainID is the chain ID the node is expected to report. Zero skips the check.
	ChainID uint64
	// Optional: ConfirmTimeout bounds the wait for a receipt. Defaults to DefaultConfirmTimeout.
	ConfirmTimeout time.Duration
	// Optional: PollInterval is the receipt polling interval. Defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Optional: ClientOpts are additional options to configure the MultiClient.
	ClientOpts []func(client *evm.MultiClient)
	// Optional: Logger is the logger to use. If not provided, a default logger will be used.
	Logger logger.Logger
}

func (c RPCChainProviderConfig) validate() error {
	if c.DeployerKey == "" {
		return errors.New("deployer key is required")
	}
	if len(c.RPCs) == 0 {
		return errors.New("at least one RPC is required")
	}

	return nil
}

var _ Provider = (*RPCChainProvider)(nil)

// RPCChainProvider connects to a live network, or a development node with a host, over
// JSON-RPC.
type RPCChainProvider struct {
	network string
	config  RPCChainProviderConfig

	chain  *evm.Chain
	client *evm.MultiClient
}

// NewRPCChainProvider creates a new RPCChainProvider for the named network.
func NewRPCChainProvider(network string, config RPCChainProviderConfig) *RPCChainProvider {
	return &RPCChainProvider{
		network: network,
		config:  config,
	}
}

// Initialize dials the RPCs, checks the chain ID reported by the node and loads the
// deployer account.
func (p *RPCChainProvider) Initialize(ctx context.Context) (evm.Chain, error) {
	if p.chain != nil {
		return *p.chain, nil
	}

	if err := p.config.validate(); err != nil {
		return evm.Chain{}, fmt.Errorf("failed to validate provider config: %w", err)
	}

	lggr := p.config.Logger
	if lggr == nil {
		var err error
		if lggr, err = logger.New(); err != nil {
			return evm.Chain{}, fmt.Errorf("failed to create default logger: %w", err)
		}
	}

	client, err := evm.NewMultiClient(lggr, p.network, p.config.RPCs, p.config.ClientOpts...)
	if err != nil {
		return evm.Chain{}, fmt.Errorf("failed to create multi-client: %w", err)
	}

	c, err := p.connect(ctx, lggr, client)
	if err != nil {
		client.Close()
		return evm.Chain{}, err
	}

	p.client = client
	p.chain = &c

	return c, nil
}

func (p *RPCChainProvider) connect(ctx context.Context, lggr logger.Logger, client *evm.MultiClient) (evm.Chain, error) {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return evm.Chain{}, fmt.Errorf("failed to get chain ID of network %s: %w", p.network, err)
	}
	if want := p.config.ChainID; want != 0 && chainID.Cmp(new(big.Int).SetUint64(want)) != 0 {
		return evm.Chain{}, fmt.Errorf("network %s reports chain ID %s, expected %d", p.network, chainID, want)
	}

	if name, nerr := chainsel.NameFromChainId(chainID.Uint64()); nerr == nil {
		lggr.Infow("Connected to network", "network", p.network, "chain", name, "chainID", chainID)
	} else {
		lggr.Warnw("Connected to a chain unknown to chain-selectors", "network", p.network, "chainID", chainID)
	}

	deployer, err := KeyedTransactor(p.config.DeployerKey, chainID)
	if err != nil {
		return evm.Chain{}, fmt.Errorf("failed to load deployer of network %s: %w", p.network, err)
	}

	confirmer := newConfirmer(p.network, chainID, client, p.config.ConfirmTimeout, p.config.PollInterval)

	return evm.Chain{
		Network:     p.network,
		ChainID:     chainID,
		Client:      client,
		DeployerKey: deployer,
		Confirm:     confirmer.Confirm,
	}, nil
}

// Name returns the name of the RPCChainProvider.
func (*RPCChainProvider) Name() string {
	return "EVM RPC Chain Provider"
}

// Close closes the RPC connections.
func (p *RPCChainProvider) Close() error {
	if p.client != nil {
		p.client.Close()
		p.client = nil
		p.chain = nil
	}

	return nil
}
