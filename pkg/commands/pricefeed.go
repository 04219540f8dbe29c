package commands

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/smartcontractkit/lottery-deployments/deploy"
)

var (
	deployPriceFeedShort = "Deploy a MockV3Aggregator price feed"

	deployPriceFeedExample = examples(`
		# Deploy a feed reporting 2598.29 USD with 8 decimals
		lottery deploy-price-feed --decimals 8 --initial-value 259829000000
	`)
)

const (
	flagDecimals     = "decimals"
	flagInitialValue = "initial-value"
)

type priceFeedSummary struct {
	Network   string `yaml:"network"`
	PriceFeed string `yaml:"price_feed"`
	Decimals  uint8  `yaml:"decimals"`
	Answer    string `yaml:"answer"`
}

func newDeployPriceFeedCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deploy-price-feed",
		Short:   deployPriceFeedShort,
		Example: deployPriceFeedExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDeployPriceFeed(cmd, cfg)
		},
	}

	cmd.Flags().Uint8(flagDecimals, deploy.DefaultDecimals, "Decimals of the feed answer")
	cmd.Flags().String(flagInitialValue, strconv.FormatInt(deploy.DefaultInitialAnswer, 10), "Initial answer of the feed")
	addDeploymentFlags(cmd, deploy.DefaultAddressBookPath)

	return cmd
}

func runDeployPriceFeed(cmd *cobra.Command, cfg Config) error {
	decimals, err := cmd.Flags().GetUint8(flagDecimals)
	if err != nil {
		return err
	}

	raw := mustString(cmd.Flags().GetString(flagInitialValue))
	initValue, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return fmt.Errorf("invalid --%s %q: not a base 10 integer", flagInitialValue, raw)
	}

	s, err := openSession(cmd, cfg)
	if err != nil {
		return err
	}
	defer s.close(cfg.Logger)

	d, err := newDeployer(cmd, cfg, s, nil)
	if err != nil {
		return err
	}

	acc, err := s.mainAccount()
	if err != nil {
		return err
	}

	feed, deployErr := d.DeployPriceFeedMock(cmd.Context(), acc, decimals, initValue)
	if err := writeReports(cmd, d.Reporter()); err != nil {
		return errors.Join(deployErr, err)
	}
	if deployErr != nil {
		return deployErr
	}

	answer, err := feed.LatestAnswer(cmd.Context())
	if err != nil {
		return err
	}

	return printYAML(cmd, priceFeedSummary{
		Network:   s.net.Name(),
		PriceFeed: feed.Address().Hex(),
		Decimals:  decimals,
		Answer:    answer.String(),
	})
}
