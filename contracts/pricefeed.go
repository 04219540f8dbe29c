package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/smartcontractkit/chainlink-evm/gethwrappers/generated/mock_v3_aggregator_contract"
)

var priceFeedABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(mock_v3_aggregator_contract.MockV3AggregatorContractABI))
})

// PriceFeed is a MockV3Aggregator price feed.
type PriceFeed struct {
	address common.Address
	backend bind.ContractBackend
	mock    *mock_v3_aggregator_contract.MockV3AggregatorContract
}

// DeployPriceFeedMock sends the creation transaction of a MockV3Aggregator reporting
// initialAnswer with the given decimals. The transaction still needs to be confirmed.
func DeployPriceFeedMock(
	opts *bind.TransactOpts, backend bind.ContractBackend, decimals uint8, initialAnswer *big.Int,
) (common.Address, *types.Transaction, *PriceFeed, error) {
	address, tx, mock, err := mock_v3_aggregator_contract.DeployMockV3AggregatorContract(opts, backend, decimals, initialAnswer)
	if err != nil {
		return common.Address{}, nil, nil, fmt.Errorf("failed to deploy %s: %w", PriceFeedContract, err)
	}

	return address, tx, &PriceFeed{address: address, backend: backend, mock: mock}, nil
}

// NewPriceFeed binds a deployed aggregator.
func NewPriceFeed(address common.Address, backend bind.ContractBackend) (*PriceFeed, error) {
	mock, err := mock_v3_aggregator_contract.NewMockV3AggregatorContract(address, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s at %s: %w", PriceFeedContract, address, err)
	}

	return &PriceFeed{address: address, backend: backend, mock: mock}, nil
}

// Address returns the contract address.
func (p *PriceFeed) Address() common.Address { return p.address }

// Decimals returns the number of decimals of the answer.
func (p *PriceFeed) Decimals(ctx context.Context) (uint8, error) {
	return p.mock.Decimals(&bind.CallOpts{Context: ctx})
}

// LatestAnswer returns the latest reported price.
func (p *PriceFeed) LatestAnswer(ctx context.Context) (*big.Int, error) {
	return p.mock.LatestAnswer(&bind.CallOpts{Context: ctx})
}

// UpdateAnswer reports a new price, starting a new round.
func (p *PriceFeed) UpdateAnswer(opts *bind.TransactOpts, answer *big.Int) (*types.Transaction, error) {
	parsed, err := priceFeedABI()
	if err != nil {
		return nil, err
	}

	input, err := parsed.Pack("updateAnswer", answer)
	if err != nil {
		return nil, err
	}

	opts, err = withGasHeadroom(opts, p.backend, p.address, input)
	if err != nil {
		return nil, fmt.Errorf("failed to update answer of %s: %w", p.address, err)
	}

	return p.mock.UpdateAnswer(opts, answer)
}
