package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smartcontractkit/lottery-deployments/contracts"
	"github.com/smartcontractkit/lottery-deployments/deploy"
	"github.com/smartcontractkit/lottery-deployments/deployment"
	"github.com/smartcontractkit/lottery-deployments/internal/pointer"
)

var (
	deployShort = "Deploy the Lottery contract"

	deployLong = longDesc(`
		Deploys the Lottery contract from its build artifact with the main account.

		Flags which are not set fall back to the config of the network. A development network
		without a price feed gets a freshly deployed MockV3Aggregator.
	`)

	deployExample = examples(`
		# Deploy to the default network of the config
		lottery deploy

		# Deploy to sepolia with an explicit fee and publish the source
		lottery deploy --network sepolia --usd-entrance-fee 25 --publish-source
	`)
)

const (
	flagPriceFeed      = "price-feed"
	flagUSDEntranceFee = "usd-entrance-fee"
	flagPublishSource  = "publish-source"
)

// deploySummary is printed after a successful deployment.
type deploySummary struct {
	Network   string `yaml:"network"`
	Lottery   string `yaml:"lottery"`
	PriceFeed string `yaml:"price_feed,omitempty"`
}

func newDeployCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deploy",
		Short:   deployShort,
		Long:    deployLong,
		Example: deployExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDeploy(cmd, cfg)
		},
	}

	cmd.Flags().String(flagBuildDir, contracts.DefaultBuildDir, "Directory of the contract build artifacts")
	cmd.Flags().String(flagPriceFeed, "", "Price feed address (default: from the network config)")
	cmd.Flags().Int64(flagUSDEntranceFee, deploy.DefaultUSDEntranceFee, "Entrance fee in USD (default: from the config)")
	cmd.Flags().Bool(flagPublishSource, false, "Publish the source to the block explorer (default: from the network config)")
	addDeploymentFlags(cmd, deploy.DefaultAddressBookPath)

	return cmd
}

// lotteryInput only sets the fields whose flags were given.
func lotteryInput(cmd *cobra.Command) (deploy.LotteryInput, error) {
	var in deploy.LotteryInput
	flags := cmd.Flags()

	if flags.Changed(flagPriceFeed) {
		in.PriceFeedAddress = pointer.To(mustString(flags.GetString(flagPriceFeed)))
	}
	if flags.Changed(flagUSDEntranceFee) {
		fee, err := flags.GetInt64(flagUSDEntranceFee)
		if err != nil {
			return deploy.LotteryInput{}, err
		}
		in.USDEntranceFee = pointer.To(fee)
	}
	if flags.Changed(flagPublishSource) {
		in.IsPublishSource = pointer.To(mustBool(flags.GetBool(flagPublishSource)))
	}

	return in, nil
}

func runDeploy(cmd *cobra.Command, cfg Config) error {
	in, err := lotteryInput(cmd)
	if err != nil {
		return err
	}

	artifact, err := cfg.deps().ArtifactLoader(mustString(cmd.Flags().GetString(flagBuildDir)), string(contracts.LotteryContract))
	if err != nil {
		return err
	}

	s, err := openSession(cmd, cfg)
	if err != nil {
		return err
	}
	defer s.close(cfg.Logger)

	d, err := newDeployer(cmd, cfg, s, artifact)
	if err != nil {
		return err
	}

	acc, err := s.mainAccount()
	if err != nil {
		return err
	}

	lottery, deployErr := d.DeployLottery(cmd.Context(), acc, in)
	if err := writeReports(cmd, d.Reporter()); err != nil {
		return errors.Join(deployErr, err)
	}
	if deployErr != nil {
		return deployErr
	}

	summary := deploySummary{Network: s.net.Name(), Lottery: lottery.Address().Hex()}
	if feed, err := d.AddressBook().Latest(s.net.Name(), contracts.PriceFeedContract); err == nil {
		summary.PriceFeed = feed
	}

	return printYAML(cmd, summary)
}

func newDeployer(cmd *cobra.Command, cfg Config, s *session, artifact *contracts.Artifact) (*deploy.Deployer, error) {
	path := mustString(cmd.Flags().GetString(flagAddressBook))

	ab, err := deployment.LoadAddressBook(path)
	if err != nil {
		return nil, err
	}

	return deploy.New(cfg.Logger, s.cfg, s.net.Chain(), artifact,
		deploy.WithAddressBook(ab),
		deploy.WithAddressBookPath(path),
	), nil
}

func printYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to print result: %w", err)
	}

	return enc.Close()
}
