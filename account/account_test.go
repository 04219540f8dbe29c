package account

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/lottery-deployments/chain/evm"
)

func testChain(users int) evm.Chain {
	c := evm.Chain{
		Network:     "development",
		DeployerKey: &bind.TransactOpts{From: common.HexToAddress("0x0a")},
	}
	for i := range users {
		c.Users = append(c.Users, &bind.TransactOpts{From: common.BigToAddress(big.NewInt(int64(0x10 + i)))})
	}

	return c
}

func TestMainAndSecondaryAccount(t *testing.T) {
	t.Parallel()

	c := testChain(2)

	mainAcc, err := MainAccount(c)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x0a"), mainAcc.Address())

	secondary, err := SecondaryAccount(c)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x10"), secondary.Address())
	assert.Equal(t, common.HexToAddress("0x10").Hex(), secondary.String())
}

func TestSecondaryAccount_Missing(t *testing.T) {
	t.Parallel()

	_, err := SecondaryAccount(testChain(0))
	require.ErrorIs(t, err, ErrAccountNotFound)

	_, err = MainAccount(evm.Chain{})
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccounts_At(t *testing.T) {
	t.Parallel()

	accs := FromChain(testChain(3))
	require.Equal(t, 4, accs.Len())

	tests := []struct {
		name    string
		index   int
		want    common.Address
		wantErr bool
	}{
		{name: "deployer", index: 0, want: common.HexToAddress("0x0a")},
		{name: "last user", index: 3, want: common.HexToAddress("0x12")},
		{name: "negative", index: -1, wantErr: true},
		{name: "out of range", index: 4, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := accs.At(tt.index)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrAccountNotFound)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Address())
		})
	}
}

func TestAccount_TransactOptsIsACopy(t *testing.T) {
	t.Parallel()

	c := testChain(0)
	mainAcc, err := MainAccount(c)
	require.NoError(t, err)

	opts := mainAcc.TransactOpts()
	opts.Value = big.NewInt(1)

	assert.Nil(t, c.DeployerKey.Value)
	assert.Nil(t, mainAcc.TransactOpts().Value)
}
