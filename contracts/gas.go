package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// GasHeadroomPercent is added to the node's gas estimate when the transactor leaves the gas
// limit unset. Estimates run against the pending block, so writes of block.timestamp can be
// priced as no-ops and the mined transaction run out of gas.
const GasHeadroomPercent = 30

// withGasHeadroom returns a copy of opts carrying the estimated gas of calling to with input
// plus GasHeadroomPercent. opts is returned as is when it already sets a gas limit.
func withGasHeadroom(
	opts *bind.TransactOpts, backend bind.ContractTransactor, to common.Address, input []byte,
) (*bind.TransactOpts, error) {
	if opts.GasLimit != 0 {
		return opts, nil
	}

	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	gas, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  opts.From,
		To:    &to,
		Value: opts.Value,
		Data:  input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	withGas := *opts
	withGas.GasLimit = gas + gas*GasHeadroomPercent/100

	return &withGas, nil
}
