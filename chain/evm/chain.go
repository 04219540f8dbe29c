package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ConfirmFunc is a function that takes a transaction, waits for the transaction to be confirmed,
// and returns the block number and an error.
type ConfirmFunc func(tx *types.Transaction) (uint64, error)

// OnchainClient is an EVM chain client.
// For EVM specifically we can use existing geth interface to abstract chain clients.
type OnchainClient interface {
	bind.ContractBackend
	bind.DeployBackend

	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

// Chain represents the EVM chain of the active network.
type Chain struct {
	// Network is the name of the network in the project config.
	Network string
	ChainID *big.Int

	Client OnchainClient
	// DeployerKey is account 0 of the network and signs every deployment by default.
	DeployerKey *bind.TransactOpts
	Confirm     ConfirmFunc
	// Users are the keys after the deployer, in account index order.
	Users []*bind.TransactOpts
}

// String returns "<network> (<chain id>)".
func (c Chain) String() string {
	if c.ChainID == nil {
		return c.Network
	}

	return fmt.Sprintf("%s (%s)", c.Network, c.ChainID)
}

// Transactors returns the deployer followed by the user keys.
func (c Chain) Transactors() []*bind.TransactOpts {
	out := make([]*bind.TransactOpts, 0, 1+len(c.Users))
	if c.DeployerKey != nil {
		out = append(out, c.DeployerKey)
	}

	return append(out, c.Users...)
}

// SendAndConfirm confirms tx, wrapping any failure with the action being performed.
func (c Chain) SendAndConfirm(action string, tx *types.Transaction, sendErr error) (uint64, error) {
	if sendErr != nil {
		return 0, fmt.Errorf("failed to %s on %s: %w", action, c, sendErr)
	}
	if c.Confirm == nil {
		return 0, errors.New("chain has no confirm function")
	}

	block, err := c.Confirm(tx)
	if err != nil {
		return 0, fmt.Errorf("failed to confirm %s on %s: %w", action, c, err)
	}

	return block, nil
}
