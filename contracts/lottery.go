package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LotteryState is the state code reported by the lottery contract.
type LotteryState uint8

const (
	LotteryStarted LotteryState = iota
	LotteryClosed
	LotteryCalculating
)

func (s LotteryState) String() string {
	switch s {
	case LotteryStarted:
		return "START"
	case LotteryClosed:
		return "CLOSED"
	case LotteryCalculating:
		return "CALCULATING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// Lottery is a binding to a deployed lottery contract, built from its artifact ABI.
type Lottery struct {
	address  common.Address
	abi      abi.ABI
	backend  bind.ContractBackend
	contract *bind.BoundContract
}

// DeployLottery sends the creation transaction of the lottery with its constructor arguments.
// The transaction still needs to be confirmed.
func DeployLottery(
	opts *bind.TransactOpts,
	backend bind.ContractBackend,
	artifact *Artifact,
	priceFeed common.Address,
	usdEntranceFee *big.Int,
) (common.Address, *types.Transaction, *Lottery, error) {
	parsed, err := artifact.ParsedABI()
	if err != nil {
		return common.Address{}, nil, nil, err
	}

	code, err := artifact.Code()
	if err != nil {
		return common.Address{}, nil, nil, err
	}

	address, tx, contract, err := bind.DeployContract(opts, parsed, code, backend, priceFeed, usdEntranceFee)
	if err != nil {
		return common.Address{}, nil, nil, fmt.Errorf("failed to deploy %s: %w", artifact.ContractName, err)
	}

	return address, tx, &Lottery{address: address, abi: parsed, backend: backend, contract: contract}, nil
}

// NewLottery binds an already deployed lottery.
func NewLottery(address common.Address, artifact *Artifact, backend bind.ContractBackend) (*Lottery, error) {
	parsed, err := artifact.ParsedABI()
	if err != nil {
		return nil, err
	}

	return &Lottery{
		address:  address,
		abi:      parsed,
		backend:  backend,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// Address returns the contract address.
func (l *Lottery) Address() common.Address { return l.address }

// ABI returns the parsed contract ABI.
func (l *Lottery) ABI() abi.ABI { return l.abi }

// Enter admits opts.From as a player. opts.Value carries the payment.
func (l *Lottery) Enter(opts *bind.TransactOpts) (*types.Transaction, error) {
	return l.transact(opts, "enter")
}

// StartLottery opens the lottery for entries.
func (l *Lottery) StartLottery(opts *bind.TransactOpts) (*types.Transaction, error) {
	return l.transact(opts, "startLottery")
}

// EndLottery closes entries and starts winner calculation.
func (l *Lottery) EndLottery(opts *bind.TransactOpts) (*types.Transaction, error) {
	return l.transact(opts, "endLottery")
}

// State returns the current state code.
func (l *Lottery) State(ctx context.Context) (LotteryState, error) {
	out, err := l.call(ctx, "state")
	if err != nil {
		return 0, err
	}

	return LotteryState(*abi.ConvertType(out[0], new(uint8)).(*uint8)), nil
}

// GetEntranceFee returns the entrance fee in wei.
func (l *Lottery) GetEntranceFee(ctx context.Context) (*big.Int, error) {
	out, err := l.call(ctx, "getEntranceFee")
	if err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Players returns the player at index i.
func (l *Lottery) Players(ctx context.Context, i *big.Int) (common.Address, error) {
	out, err := l.call(ctx, "players", i)
	if err != nil {
		return common.Address{}, err
	}

	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (l *Lottery) transact(opts *bind.TransactOpts, method string, params ...any) (*types.Transaction, error) {
	input, err := l.abi.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	opts, err = withGasHeadroom(opts, l.backend, l.address, input)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", method, err)
	}

	return l.contract.Transact(opts, method, params...)
}

func (l *Lottery) call(ctx context.Context, method string, params ...any) ([]any, error) {
	var out []any
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}

	return out, nil
}
