package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/renderfleet/renderfleet/pkg/rfctl/auth"
	"github.com/renderfleet/renderfleet/pkg/rfctl/client"
	"github.com/renderfleet/renderfleet/pkg/rfctl/config"
)

func buildClient(rt *runtimeState) (*client.Client, error) {
	// With both server and token given, skip config and context resolution
	// entirely.
	if rt.serverOverride != "" && rt.tokenOverride != "" {
		options := []client.Option{
			client.WithServer(rt.serverOverride),
			client.WithToken(rt.tokenOverride),
			client.WithUserAgent("rfctl"),
		}
		options = append(options, timeoutOption(rt)...)
		options = append(options, client.WithTLSConfig("", false))
		options = append(options, verboseOption(rt)...)
		return client.New(options...)
	}

	if err := rt.EnsureConfigLoaded(); err != nil {
		return nil, err
	}
	ctxCfg, err := rt.ResolveContext()
	if err != nil {
		return nil, err
	}
	server := rt.resolveServer(ctxCfg)
	if server == "" {
		return nil, errors.New("server is required")
	}

	token := rt.resolveToken()
	if token == "" {
		token, err = resolveTokenFromStore(rt)
		if err != nil {
			return nil, err
		}
	}
	options := []client.Option{
		client.WithServer(server),
		client.WithToken(token),
		client.WithUserAgent("rfctl"),
	}
	options = append(options, timeoutOption(rt)...)
	// TLS comes after the timeout so the rebuilt http client keeps it.
	options = append(options, client.WithTLSConfig(ctxCfg.CAFile, ctxCfg.InsecureSkipTLSVerify))
	options = append(options, verboseOption(rt)...)
	return client.New(options...)
}

func timeoutOption(rt *runtimeState) []client.Option {
	if rt.cfg == nil || rt.cfg.Settings.Timeout == "" {
		return nil
	}
	timeout, err := time.ParseDuration(rt.cfg.Settings.Timeout)
	if err != nil {
		return nil
	}
	return []client.Option{client.WithTimeout(timeout)}
}

// verboseOption logs to stderr so JSON and YAML on stdout stay parseable.
func verboseOption(rt *runtimeState) []client.Option {
	if !rt.verbose {
		return nil
	}
	return []client.Option{client.WithVerbose(func(format string, args ...any) {
		_, _ = fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	})}
}

func tokenManager(rt *runtimeState) (auth.TokenManager, error) {
	return auth.NewTokenManager(rt.TokenStorage(), config.DefaultTokenPath())
}

func resolveTokenFromStore(rt *runtimeState) (string, error) {
	manager, err := tokenManager(rt)
	if err != nil {
		return "", err
	}
	stored, ok, err := manager.GetToken(rt.ResolveContextName())
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("not authenticated; run 'rfctl auth login'")
	}
	return stored.Token, nil
}
