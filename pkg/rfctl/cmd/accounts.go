package cmd

import (
	"github.com/spf13/cobra"

	"github.com/renderfleet/renderfleet/pkg/rfctl/output"
)

func NewAccountsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect configured accounts",
	}
	cmd.AddCommand(newAccountsListCommand())
	return cmd
}

func newAccountsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the gateway's accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			accounts, err := apiClient.Accounts().List(cmd.Context())
			if err != nil {
				return err
			}
			format := output.Format(rt.OutputFormat())
			if format == output.FormatTable || format == output.FormatWide {
				output.WriteAccountTable(rt.Writer(), accounts)
				return nil
			}
			return output.WriteObject(rt.Writer(), format, accounts)
		},
	}
}
