package deploy_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/lottery-deployments/account"
	"github.com/smartcontractkit/lottery-deployments/config"
	"github.com/smartcontractkit/lottery-deployments/contracts"
	"github.com/smartcontractkit/lottery-deployments/deploy"
	"github.com/smartcontractkit/lottery-deployments/internal/pointer"
	"github.com/smartcontractkit/lottery-deployments/internal/testutils"
	"github.com/smartcontractkit/lottery-deployments/pkg/logger"
)

const usdEntranceFee int64 = 50

// revertSubstring is how a reverted call surfaces from gas estimation.
const revertSubstring = "execution reverted"

type lotteryEnv struct {
	fixture
	lottery *contracts.Lottery
}

// priceFeedAddress deploys the mock on development networks and reads the configured feed
// everywhere else.
func priceFeedAddress(t *testing.T, f fixture) string {
	t.Helper()

	if f.cfg.IsDevNetwork(f.chain.Network) {
		feed, err := f.deployer.DeployPriceFeedMock(t.Context(), f.main, decimals, big.NewInt(initialValue))
		require.NoError(t, err)

		return feed.Address().Hex()
	}

	addr, err := f.cfg.PriceFeedAddress(f.chain.Network)
	require.NoError(t, err)

	return addr
}

// newLotteryEnv deploys the compiled lottery and removes it from the address book once the
// test ends.
func newLotteryEnv(t *testing.T) lotteryEnv {
	t.Helper()

	artifact := testutils.CompiledLotteryArtifact(t)

	c := testutils.NewSimChain(t)
	cfg, err := config.LoadBytes([]byte(devConfig()))
	require.NoError(t, err)
	mainAcc, err := account.MainAccount(c)
	require.NoError(t, err)

	f := fixture{
		chain:    c,
		main:     mainAcc,
		cfg:      cfg,
		deployer: deploy.New(logger.Test(t), cfg, c, artifact),
	}

	lottery, err := f.deployer.DeployLottery(t.Context(), f.main, deploy.LotteryInput{
		PriceFeedAddress: pointer.To(priceFeedAddress(t, f)),
		USDEntranceFee:   pointer.To(usdEntranceFee),
		IsPublishSource:  pointer.To(false),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, f.deployer.RemoveLottery(lottery.Address()))
	})

	return lotteryEnv{fixture: f, lottery: lottery}
}

func toWei(ether float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(ether), big.NewFloat(params.Ether)).Int(nil)

	return wei
}

func (e lotteryEnv) state(t *testing.T) contracts.LotteryState {
	t.Helper()

	s, err := e.lottery.State(t.Context())
	require.NoError(t, err)

	return s
}

func (e lotteryEnv) entranceFee(t *testing.T) *big.Int {
	t.Helper()

	fee, err := e.lottery.GetEntranceFee(t.Context())
	require.NoError(t, err)

	return fee
}

func TestLottery_GetEntranceFee(t *testing.T) {
	t.Parallel()

	env := newLotteryEnv(t)

	fee := env.entranceFee(t)
	assert.Equal(t, 1, fee.Cmp(toWei(0.01923)), "entrance fee %s too low", fee)
	assert.Equal(t, -1, fee.Cmp(toWei(0.01925)), "entrance fee %s too high", fee)
}

func TestLottery_StateTransitions(t *testing.T) {
	t.Parallel()

	env := newLotteryEnv(t)
	owner := env.main.TransactOpts()
	player, err := account.SecondaryAccount(env.chain)
	require.NoError(t, err)

	fee := env.entranceFee(t)
	withValue := func(opts *bind.TransactOpts, v *big.Int) *bind.TransactOpts {
		opts.Value = v
		return opts
	}

	assert.Equal(t, contracts.LotteryClosed, env.state(t))

	_, err = env.lottery.Enter(withValue(player.TransactOpts(), fee))
	require.ErrorContains(t, err, revertSubstring, "enter before start")

	_, err = env.lottery.StartLottery(player.TransactOpts())
	require.ErrorContains(t, err, revertSubstring, "start by non owner")

	tx, err := env.lottery.StartLottery(owner)
	_, err = env.chain.SendAndConfirm("start lottery", tx, err)
	require.NoError(t, err)
	assert.Equal(t, contracts.LotteryStarted, env.state(t))

	_, err = env.lottery.Enter(withValue(player.TransactOpts(), new(big.Int).Div(fee, big.NewInt(2))))
	require.ErrorContains(t, err, revertSubstring, "enter below fee")

	tx, err = env.lottery.Enter(withValue(player.TransactOpts(), fee))
	_, err = env.chain.SendAndConfirm("enter lottery", tx, err)
	require.NoError(t, err)

	first, err := env.lottery.Players(t.Context(), big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, player.Address(), first)

	_, err = env.lottery.EndLottery(player.TransactOpts())
	require.ErrorContains(t, err, revertSubstring, "end by non owner")

	tx, err = env.lottery.EndLottery(owner)
	_, err = env.chain.SendAndConfirm("end lottery", tx, err)
	require.NoError(t, err)
	assert.Equal(t, contracts.LotteryCalculating, env.state(t))
}
