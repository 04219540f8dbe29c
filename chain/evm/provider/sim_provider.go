package provider

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"

	"github.com/smartcontractkit/lottery-deployments/chain/evm"
)

var (
	// simChainID is the chain ID for the simulated EVM chain. This is always set to 1337 across
	// all instances of EVM Simulated Chains.
	simChainID = params.AllDevChainProtocolChanges.ChainID
	// prefundAmountWei is the amount every simulated account starts with: 1,000,000 Ether.
	prefundAmountWei = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(params.Ether))
)

const (
	// DefaultSimAccounts is the number of accounts, deployer included, of a development network.
	DefaultSimAccounts = 10

	simBlockGasLimit = 50_000_000
	simPollInterval  = 10 * time.Millisecond
)

// SimChainProviderConfig holds the configuration to initialize the SimChainProvider.
type SimChainProviderConfig struct {
	// Optional: NumAdditionalAccounts is the number of accounts to generate after the deployer.
	NumAdditionalAccounts uint
	// Optional: BlockTime configures the time between blocks being committed. By default, this is
	// set to 0s, meaning that blocks are only mined when a transaction is confirmed.
	BlockTime time.Duration
	// Optional: ConfirmTimeout bounds the wait for a receipt. Defaults to DefaultConfirmTimeout.
	ConfirmTimeout time.Duration
}

var _ Provider = (*SimChainProvider)(nil)

// SimChainProvider manages a development network backed by go-ethereum's in memory simulated
// backend.
type SimChainProvider struct {
	network string
	config  SimChainProviderConfig

	mu         sync.Mutex
	chain      *evm.Chain
	client     *SimClient
	stopMining context.CancelFunc
}

// NewSimChainProvider creates a new SimChainProvider for the named development network.
func NewSimChainProvider(network string, config SimChainProviderConfig) *SimChainProvider {
	return &SimChainProvider{
		network: network,
		config:  config,
	}
}

// Initialize starts the simulated chain. The deployer and the additional accounts are
// funded in genesis with 1,000,000 Ether each.
func (p *SimChainProvider) Initialize(ctx context.Context) (evm.Chain, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.chain != nil {
		return *p.chain, nil
	}

	accounts := make([]*bind.TransactOpts, 0, 1+p.config.NumAdditionalAccounts)
	genesis := make(types.GenesisAlloc, 1+p.config.NumAdditionalAccounts)
	for range 1 + p.config.NumAdditionalAccounts {
		acc, err := newDevAccount(simChainID)
		if err != nil {
			return evm.Chain{}, err
		}

		accounts = append(accounts, acc)
		genesis[acc.From] = types.Account{Balance: prefundAmountWei}
	}

	backend := simulated.NewBackend(genesis, simulated.WithBlockGasLimit(simBlockGasLimit))
	backend.Commit()

	client, err := NewSimClient(backend)
	if err != nil {
		return evm.Chain{}, err
	}
	p.client = client

	if p.config.BlockTime > 0 {
		mineCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		p.stopMining = cancel
		startAutoMine(mineCtx, client, p.config.BlockTime)
	}

	c := newConfirmer(p.network, simChainID, client, p.config.ConfirmTimeout, simPollInterval)
	c.seal = func() { client.Commit() }

	p.chain = &evm.Chain{
		Network:     p.network,
		ChainID:     new(big.Int).Set(simChainID),
		Client:      client,
		DeployerKey: accounts[0],
		Users:       accounts[1:],
		Confirm:     c.Confirm,
	}

	return *p.chain, nil
}

// Name returns the name of the SimChainProvider.
func (*SimChainProvider) Name() string {
	return "Simulated EVM Chain Provider"
}

// Client returns the simulated client, or nil before Initialize.
func (p *SimChainProvider) Client() *SimClient {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.client
}

// Close stops block production and shuts the simulated backend down.
func (p *SimChainProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopMining != nil {
		p.stopMining()
		p.stopMining = nil
	}
	if p.client == nil {
		return nil
	}

	err := p.client.Close()
	p.client = nil
	p.chain = nil

	return err
}

// startAutoMine commits a new block every blockTime until ctx is done.
func startAutoMine(ctx context.Context, client *SimClient, blockTime time.Duration) {
	ticker := time.NewTicker(blockTime)
	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				client.Commit()
			case <-ctx.Done():
				return
			}
		}
	}()
}
