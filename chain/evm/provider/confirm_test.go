package provider

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/lottery-deployments/chain/evm"
)

// revertingContract returns the creation code of a contract whose every call reverts with
// Error(reason).
func revertingContract(reason string) []byte {
	payload := revertPayload(reason)
	n := byte(len(payload))

	// CODECOPY the payload behind this 12 byte prefix into memory and REVERT with it
	runtime := append([]byte{0x60, n, 0x60, 0x0c, 0x60, 0x00, 0x39, 0x60, n, 0x60, 0x00, 0xfd}, payload...)
	m := byte(len(runtime))

	// CODECOPY the runtime behind this 12 byte prefix into memory and RETURN it
	return append([]byte{0x60, m, 0x60, 0x0c, 0x60, 0x00, 0x39, 0x60, m, 0x60, 0x00, 0xf3}, runtime...)
}

func deployReverting(t *testing.T, c evm.Chain, reason string) common.Address {
	t.Helper()

	tx := sendTx(t, c, c.DeployerKey, nil, nil, revertingContract(reason), 200_000)
	_, err := c.Confirm(tx)
	require.NoError(t, err)

	return crypto.CreateAddress(c.DeployerKey.From, tx.Nonce())
}

func Test_confirmer_Confirm(t *testing.T) {
	t.Parallel()

	p := NewSimChainProvider("development", SimChainProviderConfig{NumAdditionalAccounts: 1})
	t.Cleanup(func() { _ = p.Close() })

	c, err := p.Initialize(t.Context())
	require.NoError(t, err)

	reverting := deployReverting(t, c, "Not enough ETH!")

	tests := []struct {
		name    string
		send    func(t *testing.T) *types.Transaction
		wantErr string
	}{
		{
			name: "value transfer",
			send: func(t *testing.T) *types.Transaction {
				return sendValue(t, c, c.DeployerKey, c.Users[0].From, big.NewInt(params.GWei))
			},
		},
		{
			name:    "revert reason decoded",
			send:    func(t *testing.T) *types.Transaction { return sendTx(t, c, c.Users[0], &reverting, nil, nil, 100_000) },
			wantErr: "reverted on development: Not enough ETH!",
		},
		{
			name:    "out of gas",
			send:    func(t *testing.T) *types.Transaction { return sendTx(t, c, c.Users[0], &reverting, nil, nil, 21_010) },
			wantErr: "reverted on development: ",
		},
	}

	// subtests share the chain and its nonces, so they run in order
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := c.Confirm(tt.send(t))
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				assert.NotContains(t, err.Error(), "%!")
				assert.Zero(t, block)

				return
			}

			require.NoError(t, err)
			assert.Positive(t, block)
		})
	}
}

func Test_confirmer_AutoMinedChain(t *testing.T) {
	t.Parallel()

	p := NewSimChainProvider("development", SimChainProviderConfig{
		NumAdditionalAccounts: 1,
		BlockTime:             10 * time.Millisecond,
	})
	t.Cleanup(func() { _ = p.Close() })

	c, err := p.Initialize(t.Context())
	require.NoError(t, err)

	// a confirmer without seal relies on the auto miner, as on a live network
	confirm := newConfirmer(c.Network, c.ChainID, c.Client, 5*time.Second, 10*time.Millisecond)

	block, err := confirm.Confirm(sendValue(t, c, c.DeployerKey, c.Users[0].From, big.NewInt(params.GWei)))
	require.NoError(t, err)
	assert.Positive(t, block)
}

func Test_confirmer_Timeout(t *testing.T) {
	t.Parallel()

	p := NewSimChainProvider("development", SimChainProviderConfig{NumAdditionalAccounts: 1})
	t.Cleanup(func() { _ = p.Close() })

	c, err := p.Initialize(t.Context())
	require.NoError(t, err)

	// no block is ever committed so the receipt never shows up
	confirm := newConfirmer(c.Network, c.ChainID, c.Client, 50*time.Millisecond, 10*time.Millisecond)

	_, err = confirm.Confirm(sendValue(t, c, c.DeployerKey, c.Users[0].From, big.NewInt(params.GWei)))
	require.ErrorContains(t, err, "not confirmed on development")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func Test_newConfirmer_Defaults(t *testing.T) {
	t.Parallel()

	c := newConfirmer("sepolia", big.NewInt(11155111), nil, 0, 0)
	assert.Equal(t, DefaultConfirmTimeout, c.timeout)
	assert.Equal(t, DefaultPollInterval, c.poll)
	assert.Nil(t, c.seal)

	_, err := c.Confirm(nil)
	require.EqualError(t, err, "no transaction to confirm on sepolia")
}
