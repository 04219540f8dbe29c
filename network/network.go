// Package network selects and connects the active network of a deployment run.
package network

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartcontractkit/lottery-deployments/chain/evm"
	"github.com/smartcontractkit/lottery-deployments/chain/evm/provider"
	"github.com/smartcontractkit/lottery-deployments/config"
	"github.com/smartcontractkit/lottery-deployments/pkg/logger"
)

// DefaultConfirmTimeout bounds the wait for a live network receipt.
const DefaultConfirmTimeout = 5 * time.Minute

// ErrNoDeployerKey is returned when a live network is selected without a wallet key.
var ErrNoDeployerKey = errors.New("no deployer key configured: set wallets.from_key or PRIVATE_KEY")

// Network is the connected active network.
type Network struct {
	name     string
	dev      bool
	settings config.NetworkConfig
	chain    evm.Chain
	provider provider.Provider
}

type connectOptions struct {
	simConfig      provider.SimChainProviderConfig
	confirmTimeout time.Duration
	clientOpts     []func(*evm.MultiClient)
}

// ConnectOption customizes Connect.
type ConnectOption func(*connectOptions)

// WithSimConfig overrides the simulated chain settings of development networks.
func WithSimConfig(c provider.SimChainProviderConfig) ConnectOption {
	return func(o *connectOptions) {
		o.simConfig = c
	}
}

// WithConfirmTimeout overrides DefaultConfirmTimeout for RPC networks.
func WithConfirmTimeout(d time.Duration) ConnectOption {
	return func(o *connectOptions) {
		o.confirmTimeout = d
	}
}

// WithClientOpts passes options to the RPC MultiClient.
func WithClientOpts(opts ...func(*evm.MultiClient)) ConnectOption {
	return func(o *connectOptions) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// Connect connects to the named network. An empty name selects the config's default network.
//
// Development networks without a host run on an in-memory simulated chain with
// provider.DefaultSimAccounts funded accounts. Every other network is reached over RPC
// using its host, backup hosts and chain ID, signing with the configured wallet key.
func Connect(ctx context.Context, lggr logger.Logger, cfg *config.Config, name string, opts ...ConnectOption) (*Network, error) {
	o := connectOptions{
		simConfig:      provider.SimChainProviderConfig{NumAdditionalAccounts: provider.DefaultSimAccounts - 1},
		confirmTimeout: DefaultConfirmTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if name == "" {
		name = cfg.DefaultNetwork()
	}
	dev := cfg.IsDevNetwork(name)

	settings, err := cfg.Network(name)
	if err != nil && !(dev && errors.Is(err, config.ErrNetworkNotFound)) {
		return nil, err
	}

	var p provider.Provider
	if dev && settings.Host == "" {
		p = provider.NewSimChainProvider(name, o.simConfig)
	} else {
		p, err = newRPCProvider(lggr, cfg, name, settings, o)
		if err != nil {
			return nil, err
		}
	}

	lggr.Infow("Connecting to network", "network", name, "development", dev, "provider", p.Name())

	c, err := p.Initialize(ctx)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to connect to network %s: %w", name, err)
	}

	return &Network{
		name:     name,
		dev:      dev,
		settings: settings,
		chain:    c,
		provider: p,
	}, nil
}

func newRPCProvider(
	lggr logger.Logger, cfg *config.Config, name string, settings config.NetworkConfig, o connectOptions,
) (provider.Provider, error) {
	if settings.Host == "" {
		return nil, fmt.Errorf("network %s has no host configured", name)
	}

	key := cfg.DeployerKey()
	if key == "" {
		return nil, ErrNoDeployerKey
	}

	rpcs := []evm.RPC{{Name: name, URL: settings.Host}}
	for i, h := range settings.BackupHosts {
		rpcs = append(rpcs, evm.RPC{Name: fmt.Sprintf("%s-backup-%d", name, i), URL: h})
	}

	return provider.NewRPCChainProvider(name, provider.RPCChainProviderConfig{
		DeployerKey:    key,
		RPCs:           rpcs,
		ChainID:        settings.ChainID,
		ConfirmTimeout: o.confirmTimeout,
		ClientOpts:     o.clientOpts,
		Logger:         lggr,
	}), nil
}

// Name returns the network name, the equivalent of the active network of the run.
func (n *Network) Name() string { return n.name }

// IsDevelopment reports whether the network is listed in the development networks.
func (n *Network) IsDevelopment() bool { return n.dev }

// Chain returns the connected chain.
func (n *Network) Chain() evm.Chain { return n.chain }

// Settings returns the network section of the config. It is empty for development networks
// without a section.
func (n *Network) Settings() config.NetworkConfig { return n.settings }

// Close releases the chain connection.
func (n *Network) Close() error {
	return n.provider.Close()
}
