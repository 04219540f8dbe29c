// Package account exposes the funded accounts of the active network by index.
package account

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/lottery-deployments/chain/evm"
)

// ErrAccountNotFound is returned when an account index is out of range.
var ErrAccountNotFound = errors.New("account not found")

const (
	mainIndex      = 0
	secondaryIndex = 1
)

// Account is a signing account of the network.
type Account struct {
	opts *bind.TransactOpts
}

// Address returns the account address.
func (a Account) Address() common.Address { return a.opts.From }

// String returns the EIP55 address.
func (a Account) String() string { return a.opts.From.Hex() }

// TransactOpts returns a copy of the signing options, so callers can set Value or Context
// without touching the shared transactor.
func (a Account) TransactOpts() *bind.TransactOpts {
	cpy := *a.opts

	return &cpy
}

// Accounts is the ordered list of accounts of a chain: the deployer first, then the users.
type Accounts struct {
	list []Account
}

// FromChain lists the accounts of c.
func FromChain(c evm.Chain) Accounts {
	txs := c.Transactors()
	list := make([]Account, 0, len(txs))
	for _, tx := range txs {
		list = append(list, Account{opts: tx})
	}

	return Accounts{list: list}
}

// Len returns the number of accounts.
func (a Accounts) Len() int { return len(a.list) }

// At returns the account at index i.
func (a Accounts) At(i int) (Account, error) {
	if i < 0 || i >= len(a.list) {
		return Account{}, fmt.Errorf("index %d of %d accounts: %w", i, len(a.list), ErrAccountNotFound)
	}

	return a.list[i], nil
}

// MainAccount returns account 0 of c, the deployer.
func MainAccount(c evm.Chain) (Account, error) {
	return FromChain(c).At(mainIndex)
}

// SecondaryAccount returns account 1 of c.
func SecondaryAccount(c evm.Chain) (Account, error) {
	return FromChain(c).At(secondaryIndex)
}
