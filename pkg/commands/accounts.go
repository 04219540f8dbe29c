package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smartcontractkit/lottery-deployments/account"
)

func newAccountsCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the accounts of the network",
		Long: longDesc(`
			Lists the accounts of the network by index. Account 0 is the main account which
			deploys the contracts.
		`),
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, cfg)
			if err != nil {
				return err
			}
			defer s.close(cfg.Logger)

			accs := account.FromChain(s.net.Chain())
			for i := range accs.Len() {
				acc, err := accs.At(i)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, acc)
			}

			return nil
		},
	}
}
