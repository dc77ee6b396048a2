package cmd

import (
	"github.com/spf13/cobra"

	"github.com/renderfleet/renderfleet/pkg/rfctl/client"
	"github.com/renderfleet/renderfleet/pkg/rfctl/output"
)

func NewDeployCommand() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "deploy SERVICE_ID",
		Short: "Trigger a deploy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			deploy, err := apiClient.Services().Deploy(cmd.Context(), account, args[0])
			if err != nil {
				return err
			}
			format := output.Format(rt.OutputFormat())
			if format == output.FormatTable || format == output.FormatWide {
				output.WriteDeployTable(rt.Writer(), []client.Deploy{*deploy})
				return nil
			}
			return output.WriteObject(rt.Writer(), format, deploy)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account ID or name owning the service")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
