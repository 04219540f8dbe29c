// Package commands provides the CLI of the lottery deployments.
//
//	rootCmd, err := commands.NewCommand(commands.Config{Logger: lggr})
//	if err != nil {
//	    return err
//	}
//	return rootCmd.ExecuteContext(ctx)
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smartcontractkit/lottery-deployments/account"
	"github.com/smartcontractkit/lottery-deployments/config"
	"github.com/smartcontractkit/lottery-deployments/network"
	"github.com/smartcontractkit/lottery-deployments/operations"
	"github.com/smartcontractkit/lottery-deployments/pkg/logger"
)

var (
	rootShort = "Deploy and operate the lottery contracts"

	rootLong = longDesc(`
		Deploys the Lottery contract and its price feed to the networks of the project config.

		Development networks without a host run on an in-memory chain which lives as long as
		the command. Live networks are reached over RPC and sign with the configured wallet key.
	`)
)

// Config holds the configuration for the commands.
type Config struct {
	// Logger is the logger to use for command output. Required.
	Logger logger.Logger

	// Deps holds optional dependencies that can be overridden.
	// If fields are nil, production defaults are used.
	Deps Deps
}

// Validate checks that all required configuration fields are set.
func (c Config) Validate() error {
	if c.Logger == nil {
		return errors.New("commands.Config: missing required fields: Logger")
	}

	return nil
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

// NewCommand creates the root lottery command with all subcommands.
func NewCommand(cfg Config) (*cobra.Command, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.deps()

	cmd := &cobra.Command{
		Use:           "lottery",
		Short:         rootShort,
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addNetworkFlags(cmd)

	cmd.AddCommand(newDeployCmd(cfg))
	cmd.AddCommand(newDeployPriceFeedCmd(cfg))
	cmd.AddCommand(newAccountsCmd(cfg))

	return cmd, nil
}

// session is a loaded config with its connected network.
type session struct {
	cfg *config.Config
	net *network.Network
}

// openSession loads the config and connects to the network selected by the flags.
func openSession(cmd *cobra.Command, cfg Config) (*session, error) {
	deps := cfg.deps()

	c, err := deps.ConfigLoader(mustString(cmd.Flags().GetString(flagConfig)))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	net, err := deps.NetworkConnector(cmd.Context(), cfg.Logger, c, mustString(cmd.Flags().GetString(flagNetwork)))
	if err != nil {
		return nil, err
	}

	return &session{cfg: c, net: net}, nil
}

func (s *session) close(lggr logger.Logger) {
	if err := s.net.Close(); err != nil {
		lggr.Warnw("Failed to close network", "network", s.net.Name(), "error", err)
	}
}

func (s *session) mainAccount() (account.Account, error) {
	return account.MainAccount(s.net.Chain())
}

// writeReports dumps the operation reports when --report-file is set.
func writeReports(cmd *cobra.Command, reporter operations.Reporter) error {
	path := mustString(cmd.Flags().GetString(flagReportFile))
	if path == "" {
		return nil
	}

	return operations.WriteReports(reporter, path)
}
