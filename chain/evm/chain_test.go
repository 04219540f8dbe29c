package evm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "development", Chain{Network: "development"}.String())
	assert.Equal(t, "sepolia (11155111)", Chain{Network: "sepolia", ChainID: big.NewInt(11155111)}.String())
}

func TestChain_Transactors(t *testing.T) {
	t.Parallel()

	deployer := &bind.TransactOpts{From: common.HexToAddress("0x01")}
	user := &bind.TransactOpts{From: common.HexToAddress("0x02")}

	c := Chain{DeployerKey: deployer, Users: []*bind.TransactOpts{user}}
	assert.Equal(t, []*bind.TransactOpts{deployer, user}, c.Transactors())
	assert.Empty(t, Chain{}.Transactors())
}

func TestChain_SendAndConfirm(t *testing.T) {
	t.Parallel()

	tx := types.NewTx(&types.LegacyTx{Nonce: 1})

	tests := []struct {
		name      string
		confirm   ConfirmFunc
		sendErr   error
		wantBlock uint64
		wantErr   string
	}{
		{
			name:      "confirmed",
			confirm:   func(*types.Transaction) (uint64, error) { return 7, nil },
			wantBlock: 7,
		},
		{
			name:    "send failure",
			confirm: func(*types.Transaction) (uint64, error) { return 7, nil },
			sendErr: errors.New("boom"),
			wantErr: "failed to enter lottery on development: boom",
		},
		{
			name:    "confirm failure",
			confirm: func(*types.Transaction) (uint64, error) { return 0, errors.New("reverted") },
			wantErr: "failed to confirm enter lottery on development: reverted",
		},
		{
			name:    "no confirm func",
			wantErr: "chain has no confirm function",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := Chain{Network: "development", Confirm: tt.confirm}
			block, err := c.SendAndConfirm("enter lottery", tx, tt.sendErr)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantBlock, block)
		})
	}
}
