package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderfleet/renderfleet/pkg/rfctl/auth"
	"github.com/renderfleet/renderfleet/pkg/rfctl/client"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with the gateway",
	}
	cmd.AddCommand(
		newAuthLoginCommand(),
		newAuthStatusCommand(),
		newAuthLogoutCommand(),
	)
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with operator credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			ctxCfg, err := rt.ResolveContext()
			if err != nil {
				return err
			}
			server := rt.resolveServer(ctxCfg)
			if server == "" {
				return errors.New("server is required")
			}

			if username == "" {
				username = ctxCfg.Username
			}
			if username == "" {
				if rt.nonInteractive {
					return errors.New("username is required (use --username or set it on the context)")
				}
				username, err = auth.ReadLine(os.Stdin, rt.Writer(), "Username: ")
				if err != nil {
					return err
				}
			}
			if username == "" {
				return errors.New("username is required")
			}

			password := os.Getenv("RFCTL_PASSWORD")
			if password == "" {
				if rt.nonInteractive {
					return errors.New("password is required (set RFCTL_PASSWORD)")
				}
				password, err = auth.ReadPassword(os.Stdin, rt.Writer(), "Password: ")
				if err != nil {
					return err
				}
			}

			options := []client.Option{
				client.WithServer(server),
				client.WithUserAgent("rfctl"),
			}
			options = append(options, timeoutOption(rt)...)
			options = append(options, client.WithTLSConfig(ctxCfg.CAFile, ctxCfg.InsecureSkipTLSVerify))
			options = append(options, verboseOption(rt)...)
			loginClient, err := client.New(options...)
			if err != nil {
				return err
			}

			result, err := loginClient.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			manager, err := tokenManager(rt)
			if err != nil {
				return err
			}
			stored := auth.StoredToken{
				Token:     result.Token,
				Username:  result.Username,
				Server:    server,
				CreatedAt: time.Now().UTC(),
			}
			if err := manager.SaveToken(rt.ResolveContextName(), stored); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Logged in as %s\n", result.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Operator username (defaults to the context's username)")
	return cmd
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			manager, err := tokenManager(rt)
			if err != nil {
				return err
			}
			stored, ok, err := manager.GetToken(rt.ResolveContextName())
			if err != nil {
				return err
			}
			if !ok {
				_, _ = fmt.Fprintln(rt.Writer(), "Not authenticated")
				return nil
			}

			// The token is opaque, so the only way to know it is still good
			// is to use it.
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			accounts, err := apiClient.Accounts().List(cmd.Context())
			if err != nil {
				if client.IsUnauthorized(err) {
					_, _ = fmt.Fprintln(rt.Writer(), "Session expired. Run 'rfctl auth login'.")
					return nil
				}
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Logged in as %s on %s (%d accounts)\n", stored.Username, stored.Server, len(accounts))
			return nil
		},
	}
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove the stored token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			// Best effort: revoke the session server-side, then always drop
			// the local token.
			if apiClient, err := buildClient(rt); err == nil {
				_ = apiClient.Logout(cmd.Context())
			}
			manager, err := tokenManager(rt)
			if err != nil {
				return err
			}
			if err := manager.DeleteToken(rt.ResolveContextName()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Logged out")
			return nil
		},
	}
}
