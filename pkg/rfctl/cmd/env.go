package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/renderfleet/renderfleet/pkg/rfctl/client"
	"github.com/renderfleet/renderfleet/pkg/rfctl/output"
)

func NewEnvCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage service environment variables",
	}
	cmd.AddCommand(
		newEnvListCommand(),
		newEnvSetCommand(),
		newEnvUnsetCommand(),
		newEnvReplaceCommand(),
	)
	return cmd
}

func envTargetFlags(cmd *cobra.Command, account, service *string) {
	cmd.Flags().StringVar(account, "account", "", "Account ID or name owning the service")
	cmd.Flags().StringVar(service, "service", "", "Service ID")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("service")
}

func newEnvListCommand() *cobra.Command {
	var account, service string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List environment variables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			vars, err := apiClient.EnvVars().List(cmd.Context(), account, service)
			if err != nil {
				return err
			}
			format := output.Format(rt.OutputFormat())
			if format == output.FormatTable || format == output.FormatWide {
				output.WriteEnvVarTable(rt.Writer(), vars)
				return nil
			}
			return output.WriteObject(rt.Writer(), format, vars)
		},
	}
	envTargetFlags(cmd, &account, &service)
	return cmd
}

func newEnvSetCommand() *cobra.Command {
	var account, service string

	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set one environment variable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			envVar, err := apiClient.EnvVars().Set(cmd.Context(), account, service, args[0], args[1])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Set %s\n", envVar.Key)
			return nil
		},
	}
	envTargetFlags(cmd, &account, &service)
	return cmd
}

func newEnvUnsetCommand() *cobra.Command {
	var account, service string

	cmd := &cobra.Command{
		Use:   "unset KEY",
		Short: "Remove one environment variable",
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
			if err := apiClient.EnvVars().Unset(cmd.Context(), account, service, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Unset %s\n", args[0])
			return nil
		},
	}
	envTargetFlags(cmd, &account, &service)
	return cmd
}

func newEnvReplaceCommand() *cobra.Command {
	var account, service string

	cmd := &cobra.Command{
		Use:   "replace [KEY=VALUE...]",
		Short: "Replace the whole variable set",
		Long: `Replace swaps the service's entire environment for the given KEY=VALUE
pairs. Variables not listed are removed; with no arguments every variable
is removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			vars, err := parseEnvPairs(args)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			replaced, err := apiClient.EnvVars().Replace(cmd.Context(), account, service, vars)
			if err != nil {
				return err
			}
			format := output.Format(rt.OutputFormat())
			if format == output.FormatTable || format == output.FormatWide {
				output.WriteEnvVarTable(rt.Writer(), replaced)
				return nil
			}
			return output.WriteObject(rt.Writer(), format, replaced)
		},
	}
	envTargetFlags(cmd, &account, &service)
	return cmd
}

func parseEnvPairs(args []string) ([]client.EnvVar, error) {
	vars := make([]client.EnvVar, 0, len(args))
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid variable %q, expected KEY=VALUE", arg)
		}
		vars = append(vars, client.EnvVar{Key: key, Value: value})
	}
	return vars, nil
}
