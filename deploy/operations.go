package deploy

import (
	"errors"
	"math/big"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/smartcontractkit/lottery-deployments/chain/evm"
	"github.com/smartcontractkit/lottery-deployments/contracts"
	"github.com/smartcontractkit/lottery-deployments/deploy/verify"
	"github.com/smartcontractkit/lottery-deployments/deployment"
	"github.com/smartcontractkit/lottery-deployments/operations"
)

// ContractDeps are the dependencies of a contract deployment operation.
type ContractDeps struct {
	Chain    evm.Chain
	Auth     *bind.TransactOpts
	Artifact *contracts.Artifact
}

// PriceFeedMockInput configures the aggregator mock.
type PriceFeedMockInput struct {
	Decimals     uint8    `json:"decimals"`
	InitialValue *big.Int `json:"initialValue"`
}

// LotteryDeployInput holds the resolved lottery constructor arguments.
type LotteryDeployInput struct {
	PriceFeed      common.Address `json:"priceFeed"`
	USDEntranceFee *big.Int       `json:"usdEntranceFee"`
}

// ContractOutput locates a confirmed deployment.
type ContractOutput struct {
	Address common.Address `json:"address"`
	TxHash  common.Hash    `json:"txHash"`
	Block   uint64         `json:"block"`
}

// PublishSourceInput describes the deployed contract whose source is published.
type PublishSourceInput struct {
	Address         common.Address `json:"address"`
	ContractName    string         `json:"contractName"`
	ConstructorArgs hexutil.Bytes  `json:"constructorArgs"`
}

// PublishSourceDeps are the dependencies of the source publishing operation.
type PublishSourceDeps struct {
	Verifier *verify.Client
	Request  verify.Request
}

var (
	DeployPriceFeedMockOp = operations.NewOperation(
		"deploy-price-feed-mock",
		semver.MustParse("1.0.0"),
		"Deploys the MockV3Aggregator price feed",
		func(_ operations.Bundle, deps ContractDeps, input PriceFeedMockInput) (ContractOutput, error) {
			addr, tx, _, err := contracts.DeployPriceFeedMock(deps.Auth, deps.Chain.Client, input.Decimals, input.InitialValue)
			if err != nil {
				return ContractOutput{}, err
			}

			return confirmDeployment(deps.Chain, contracts.PriceFeedContract, addr, tx)
		},
	)

	DeployLotteryOp = operations.NewOperation(
		"deploy-lottery",
		semver.MustParse("1.0.0"),
		"Deploys the Lottery contract from its build artifact",
		func(_ operations.Bundle, deps ContractDeps, input LotteryDeployInput) (ContractOutput, error) {
			if deps.Artifact == nil {
				return ContractOutput{}, operations.NewUnrecoverableError(errors.New("no lottery artifact loaded"))
			}

			addr, tx, _, err := contracts.DeployLottery(deps.Auth, deps.Chain.Client, deps.Artifact, input.PriceFeed, input.USDEntranceFee)
			if err != nil {
				return ContractOutput{}, err
			}

			return confirmDeployment(deps.Chain, contracts.LotteryContract, addr, tx)
		},
	)

	PublishSourceOp = operations.NewOperation(
		"publish-source",
		semver.MustParse("1.0.0"),
		"Publishes a contract source to the network's block explorer",
		func(b operations.Bundle, deps PublishSourceDeps, input PublishSourceInput) (operations.EmptyInput, error) {
			if deps.Verifier == nil {
				return operations.EmptyInput{}, operations.NewUnrecoverableError(ErrNoExplorer)
			}

			if err := deps.Verifier.Verify(b.GetContext(), deps.Request); err != nil {
				if errors.Is(err, verify.ErrVerificationFailed) {
					return operations.EmptyInput{}, operations.NewUnrecoverableError(err)
				}

				return operations.EmptyInput{}, err
			}

			return operations.EmptyInput{}, nil
		},
	)
)

// confirmDeployment waits for the creation transaction. A failed confirmation is not retried
// since the transaction may already be mined.
func confirmDeployment(
	c evm.Chain, typ deployment.ContractType, addr common.Address, tx *types.Transaction,
) (ContractOutput, error) {
	block, err := c.SendAndConfirm("deploy "+typ.String(), tx, nil)
	if err != nil {
		return ContractOutput{}, operations.NewUnrecoverableError(err)
	}

	return ContractOutput{Address: addr, TxHash: tx.Hash(), Block: block}, nil
}
