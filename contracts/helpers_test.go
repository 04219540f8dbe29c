package contracts_test

import (
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/smartcontractkit/lottery-deployments/chain/evm"
)

func confirm(fn evm.ConfirmFunc, tx *types.Transaction, err error) error {
	if err != nil {
		return err
	}
	_, err = fn(tx)

	return err
}
