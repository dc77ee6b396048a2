package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/renderfleet/renderfleet/pkg/rfctl/output"
)

func NewEventsCommand() *cobra.Command {
	var (
		account  string
		page     int
		pageSize int
		allPages bool
	)

	cmd := &cobra.Command{
		Use:   "events SERVICE_ID",
		Short: "List service events, newest first",
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
			events, err := apiClient.Events().List(cmd.Context(), account, args[0])
			if err != nil {
				return err
			}
			cfgPageSize := pageSize
			if cfgPageSize == 0 && rt.cfg != nil {
				cfgPageSize = rt.cfg.Settings.PageSize
			}
			paged, info := paginate(events, page, cfgPageSize, allPages)
			format := output.Format(rt.OutputFormat())
			switch format {
			case output.FormatJSON, output.FormatYAML:
				return output.WriteObject(rt.Writer(), format, paged)
			case output.FormatTable, output.FormatWide:
				output.WriteEventTable(rt.Writer(), paged)
				if info != "" && !allPages {
					_, _ = fmt.Fprintln(rt.Writer(), info)
				}
				return nil
			default:
				return fmt.Errorf("unknown output format: %s", format)
			}
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account ID or name owning the service")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Items per page")
	cmd.Flags().BoolVar(&allPages, "all", false, "Disable pagination")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
