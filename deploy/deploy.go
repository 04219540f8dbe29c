// Package deploy deploys the lottery and its price feed to the active network.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/lottery-deployments/account"
	"github.com/smartcontractkit/lottery-deployments/chain/evm"
	"github.com/smartcontractkit/lottery-deployments/config"
	"github.com/smartcontractkit/lottery-deployments/contracts"
	"github.com/smartcontractkit/lottery-deployments/deploy/verify"
	"github.com/smartcontractkit/lottery-deployments/deployment"
	"github.com/smartcontractkit/lottery-deployments/internal/pointer"
	"github.com/smartcontractkit/lottery-deployments/operations"
	"github.com/smartcontractkit/lottery-deployments/pkg/logger"
)

const (
	DefaultDecimals       uint8 = 8
	DefaultUSDEntranceFee int64 = 50
	// DefaultAddressBookPath is where live network deployments are recorded.
	DefaultAddressBookPath = "build/deployments/map.json"
)

// DefaultInitialAnswer is the mock's initial answer, 2000 USD with DefaultDecimals.
const DefaultInitialAnswer int64 = 200_000_000_000

// DefaultInitialValue returns DefaultInitialAnswer as a new big.Int.
func DefaultInitialValue() *big.Int { return big.NewInt(DefaultInitialAnswer) }

var (
	ErrNoPriceFeed = errors.New("no price feed address configured")
	ErrNoExplorer  = errors.New("no block explorer configured")
)

// LotteryInput holds the optional lottery deployment arguments. Unset fields are resolved from
// the config of the active network.
type LotteryInput struct {
	PriceFeedAddress *string
	USDEntranceFee   *int64
	IsPublishSource  *bool
}

// Deployer deploys contracts to a single network and keeps track of them in an address book.
type Deployer struct {
	lggr            logger.Logger
	cfg             *config.Config
	chain           evm.Chain
	artifact        *contracts.Artifact
	addressBook     *deployment.AddressBookMap
	addressBookPath string
	reporter        operations.Reporter
	retryPolicy     operations.RetryPolicy
	verifier        *verify.Client
	verifyOpts      []verify.Option
}

// Option customizes a Deployer.
type Option func(*Deployer)

// WithAddressBook starts the deployer from an existing address book.
func WithAddressBook(ab *deployment.AddressBookMap) Option {
	return func(d *Deployer) {
		d.addressBook = ab
	}
}

// WithAddressBookPath persists live network deployments to path after every change.
func WithAddressBookPath(path string) Option {
	return func(d *Deployer) {
		d.addressBookPath = path
	}
}

// WithReporter records operation reports into r.
func WithReporter(r operations.Reporter) Option {
	return func(d *Deployer) {
		d.reporter = r
	}
}

// WithRetryPolicy overrides the retry policy of the deployment operations.
func WithRetryPolicy(p operations.RetryPolicy) Option {
	return func(d *Deployer) {
		d.retryPolicy = p
	}
}

// WithVerifier publishes sources through c instead of the network's configured explorer.
func WithVerifier(c *verify.Client) Option {
	return func(d *Deployer) {
		d.verifier = c
	}
}

// WithVerifyOptions passes options to the explorer client built from the network config.
func WithVerifyOptions(opts ...verify.Option) Option {
	return func(d *Deployer) {
		d.verifyOpts = append(d.verifyOpts, opts...)
	}
}

// New creates a deployer for chain. artifact is the compiled lottery and is only needed by
// DeployLottery.
func New(lggr logger.Logger, cfg *config.Config, chain evm.Chain, artifact *contracts.Artifact, opts ...Option) *Deployer {
	d := &Deployer{
		lggr:        lggr.Named("deploy"),
		cfg:         cfg,
		chain:       chain,
		artifact:    artifact,
		addressBook: deployment.NewMemoryAddressBook(),
		reporter:    operations.NewMemoryReporter(),
		retryPolicy: operations.RetryPolicy{MaxAttempts: 3, Delay: time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Network returns the name of the network the deployer deploys to.
func (d *Deployer) Network() string { return d.chain.Network }

// AddressBook returns the deployed contracts.
func (d *Deployer) AddressBook() *deployment.AddressBookMap { return d.addressBook }

// Reporter returns the reports of every executed operation.
func (d *Deployer) Reporter() operations.Reporter { return d.reporter }

// DeployPriceFeedMock deploys a MockV3Aggregator answering initValue with decimals. A nil
// initValue deploys DefaultInitialValue.
func (d *Deployer) DeployPriceFeedMock(
	ctx context.Context, acc account.Account, decimals uint8, initValue *big.Int,
) (*contracts.PriceFeed, error) {
	if initValue == nil {
		initValue = DefaultInitialValue()
	} else {
		initValue = new(big.Int).Set(initValue)
	}

	d.lggr.Infow("[Deploy] Deploy MockV3Aggregator",
		"decimals", decimals, "initValue", initValue.String())

	report, err := operations.ExecuteOperation(d.bundle(ctx), DeployPriceFeedMockOp,
		ContractDeps{Chain: d.chain, Auth: acc.TransactOpts()},
		PriceFeedMockInput{Decimals: decimals, InitialValue: initValue},
		operations.WithRetryConfig(operations.RetryConfig[PriceFeedMockInput, ContractDeps]{
			Enabled: true,
			Policy:  d.retryPolicy,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy %s on %s: %w", contracts.PriceFeedContract, d.chain.Network, err)
	}

	addr := report.Output.Address
	if err := d.record(addr, contracts.PriceFeedMockTypeAndVersion); err != nil {
		return nil, err
	}

	feed, err := contracts.NewPriceFeed(addr, d.chain.Client)
	if err != nil {
		return nil, err
	}

	d.lggr.Infow("[Deploy] Finish MockV3Aggregator deploy", "address", addr.Hex())

	return feed, nil
}

// DeployLottery deploys the lottery from acc.
//
// Unset inputs fall back to the config of the active network: the publish flag, the price
// feed address and the USD entrance fee (DefaultUSDEntranceFee when not configured). Without a
// price feed a development network gets a freshly deployed mock with the default decimals and
// initial value, while any other network fails with ErrNoPriceFeed.
func (d *Deployer) DeployLottery(ctx context.Context, acc account.Account, in LotteryInput) (*contracts.Lottery, error) {
	activeNetwork := d.chain.Network
	_, isDev := d.cfg.DevNetworks()[activeNetwork]

	isPublishSource := pointer.ValueOr(in.IsPublishSource, d.cfg.IsPublishSource(activeNetwork))

	var priceFeedAddress string
	if in.PriceFeedAddress != nil {
		priceFeedAddress = *in.PriceFeedAddress
	} else {
		addr, err := d.cfg.PriceFeedAddress(activeNetwork)
		if err != nil && !(isDev && errors.Is(err, config.ErrKeyNotFound)) {
			return nil, fmt.Errorf("failed to resolve price feed address: %w", err)
		}
		priceFeedAddress = addr
	}

	usdEntranceFee := pointer.ValueOr(in.USDEntranceFee, d.cfg.USDEntranceFee(DefaultUSDEntranceFee))

	d.lggr.Infow("[Deploy] Start Lottery contract deploy",
		"account", acc.String(),
		"priceFeedAddress", priceFeedAddress,
		"usdEntranceFee", usdEntranceFee,
		"activeNetwork", activeNetwork,
		"isPublishSource", isPublishSource,
	)

	if usdEntranceFee < 0 {
		return nil, fmt.Errorf("usd entrance fee must not be negative, got %d", usdEntranceFee)
	}

	if priceFeedAddress == "" {
		if !isDev {
			return nil, fmt.Errorf("%w for network %s", ErrNoPriceFeed, activeNetwork)
		}

		d.lggr.Warnw("[Deploy] No price feed address on development network: deploy price feed contract!",
			"activeNetwork", activeNetwork)

		feed, err := d.DeployPriceFeedMock(ctx, acc, DefaultDecimals, DefaultInitialValue())
		if err != nil {
			return nil, err
		}
		priceFeedAddress = feed.Address().Hex()
	}

	if !common.IsHexAddress(priceFeedAddress) {
		return nil, fmt.Errorf("invalid price feed address %q", priceFeedAddress)
	}

	input := LotteryDeployInput{
		PriceFeed:      common.HexToAddress(priceFeedAddress),
		USDEntranceFee: big.NewInt(usdEntranceFee),
	}
	report, err := operations.ExecuteOperation(d.bundle(ctx), DeployLotteryOp,
		ContractDeps{Chain: d.chain, Auth: acc.TransactOpts(), Artifact: d.artifact},
		input,
		operations.WithRetryConfig(operations.RetryConfig[LotteryDeployInput, ContractDeps]{
			Enabled: true,
			Policy:  d.retryPolicy,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy %s on %s: %w", contracts.LotteryContract, activeNetwork, err)
	}

	addr := report.Output.Address
	if err := d.record(addr, contracts.LotteryTypeAndVersion); err != nil {
		return nil, err
	}

	lottery, err := contracts.NewLottery(addr, d.artifact, d.chain.Client)
	if err != nil {
		return nil, err
	}

	if isPublishSource {
		if err := d.publishSource(ctx, addr, input); err != nil {
			return nil, fmt.Errorf("lottery deployed at %s but publishing its source failed: %w", addr.Hex(), err)
		}
	}

	d.lggr.Infow("[Deploy] Finish Lottery deploy", "address", addr.Hex())

	return lottery, nil
}

// RemoveLottery drops a deployed lottery from the address book.
func (d *Deployer) RemoveLottery(addr common.Address) error {
	if err := d.addressBook.Remove(d.chain.Network, addr.Hex()); err != nil {
		return fmt.Errorf("failed to remove %s %s: %w", contracts.LotteryContract, addr.Hex(), err)
	}

	return d.persist()
}

func (d *Deployer) publishSource(ctx context.Context, addr common.Address, in LotteryDeployInput) error {
	verifier, err := d.explorer()
	if err != nil {
		return err
	}

	req, err := verify.NewRequest(d.artifact, addr, in.PriceFeed, in.USDEntranceFee)
	if err != nil {
		return err
	}

	_, err = operations.ExecuteOperation(d.bundle(ctx), PublishSourceOp,
		PublishSourceDeps{Verifier: verifier, Request: req},
		PublishSourceInput{Address: addr, ContractName: req.ContractName, ConstructorArgs: req.ConstructorArgs},
		operations.WithRetryConfig(operations.RetryConfig[PublishSourceInput, PublishSourceDeps]{
			Enabled: true,
			Policy:  d.retryPolicy,
		}),
	)

	return err
}

func (d *Deployer) explorer() (*verify.Client, error) {
	if d.verifier != nil {
		return d.verifier, nil
	}

	settings, err := d.cfg.Network(d.chain.Network)
	if err != nil {
		return nil, fmt.Errorf("%w for network %s: %w", ErrNoExplorer, d.chain.Network, err)
	}
	if settings.Explorer.URL == "" {
		return nil, fmt.Errorf("%w for network %s", ErrNoExplorer, d.chain.Network)
	}

	c, err := verify.NewClient(d.lggr, settings.Explorer.URL, settings.Explorer.APIKey, d.verifyOpts...)
	if err != nil {
		return nil, err
	}
	d.verifier = c

	return c, nil
}

func (d *Deployer) record(addr common.Address, tv deployment.TypeAndVersion) error {
	if err := d.addressBook.Save(d.chain.Network, addr.Hex(), tv); err != nil {
		return fmt.Errorf("failed to record %s: %w", tv, err)
	}

	return d.persist()
}

// persist writes the address book without development networks, whose chains do not outlive
// the run.
func (d *Deployer) persist() error {
	if d.addressBookPath == "" || d.cfg.IsDevNetwork(d.chain.Network) {
		return nil
	}

	return d.addressBook.WriteFile(d.addressBookPath, func(network string) bool {
		return !d.cfg.IsDevNetwork(network)
	})
}

func (d *Deployer) bundle(ctx context.Context) operations.Bundle {
	return operations.NewBundle(func() context.Context { return ctx }, d.lggr, d.reporter)
}
