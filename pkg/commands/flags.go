package commands

import (
	"github.com/spf13/cobra"
)

const (
	defaultConfigPath = "lottery-config.yaml"

	flagConfig      = "config"
	flagNetwork     = "network"
	flagBuildDir    = "build-dir"
	flagAddressBook = "address-book"
	flagReportFile  = "report-file"
)

// mustString returns the string value, ignoring the error.
// Safe to use with registered flags where GetString cannot fail.
func mustString(s string, _ error) string { return s }

// mustBool returns the bool value, ignoring the error.
func mustBool(b bool, _ error) bool { return b }

// addNetworkFlags adds the flags every command connecting to a network needs. They are
// persistent on the root command.
func addNetworkFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP(flagConfig, "c", defaultConfigPath, "Project config file")
	cmd.PersistentFlags().StringP(flagNetwork, "n", "", "Network to use (default: networks.default of the config)")
}

// addDeploymentFlags adds the flags of the commands that record deployments.
func addDeploymentFlags(cmd *cobra.Command, addressBookDefault string) {
	cmd.Flags().String(flagAddressBook, addressBookDefault, "Address book of live network deployments")
	cmd.Flags().String(flagReportFile, "", "Write the operation reports to this JSON file")
}
