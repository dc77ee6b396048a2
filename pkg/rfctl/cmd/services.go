package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/renderfleet/renderfleet/pkg/rfctl/client"
	"github.com/renderfleet/renderfleet/pkg/rfctl/output"
)

func NewServicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "services",
		Short: "Inspect hosted services",
	}
	cmd.AddCommand(newServicesListCommand())
	return cmd
}

func newServicesListCommand() *cobra.Command {
	var (
		account     string
		serviceType string
		page        int
		pageSize    int
		allPages    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List services across all accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			services, err := apiClient.Services().List(cmd.Context())
			if err != nil {
				return err
			}
			services = filterServices(services, account, serviceType)

			cfgPageSize := pageSize
			if cfgPageSize == 0 && rt.cfg != nil {
				cfgPageSize = rt.cfg.Settings.PageSize
			}
			paged, info := paginate(services, page, cfgPageSize, allPages)
			format := output.Format(rt.OutputFormat())
			switch format {
			case output.FormatJSON, output.FormatYAML:
				return output.WriteObject(rt.Writer(), format, paged)
			case output.FormatTable:
				output.WriteServiceTable(rt.Writer(), paged)
				if info != "" && !allPages {
					_, _ = fmt.Fprintln(rt.Writer(), info)
				}
				return nil
			case output.FormatWide:
				output.WriteServiceTableWide(rt.Writer(), paged)
				if info != "" && !allPages {
					_, _ = fmt.Fprintln(rt.Writer(), info)
				}
				return nil
			default:
				return fmt.Errorf("unknown output format: %s", format)
			}
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Filter by account ID or name")
	cmd.Flags().StringVar(&serviceType, "type", "", "Filter by service type")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Items per page")
	cmd.Flags().BoolVar(&allPages, "all", false, "Disable pagination")
	return cmd
}

// filterServices narrows the gateway's full listing client-side. The gateway
// always returns every account's services in one response.
func filterServices(services []client.ServiceSummary, account, serviceType string) []client.ServiceSummary {
	if account == "" && serviceType == "" {
		return services
	}
	filtered := make([]client.ServiceSummary, 0, len(services))
	for _, s := range services {
		if account != "" && s.AccountID != account && s.AccountName != account {
			continue
		}
		if serviceType != "" && s.Type != serviceType {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}
