package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/renderfleet/renderfleet/pkg/rfctl/config"
)

func TestRuntimeStateResolveContextName(t *testing.T) {
	rt := &runtimeState{contextOverride: "override"}
	require.Equal(t, "override", rt.ResolveContextName())

	rt = &runtimeState{cfg: &config.Config{CurrentContext: "ctx"}}
	require.Equal(t, "ctx", rt.ResolveContextName())

	rt = &runtimeState{}
	require.Equal(t, "", rt.ResolveContextName())
}

func TestRuntimeStateOutputFormat(t *testing.T) {
	rt := &runtimeState{outputFormat: "json"}
	require.Equal(t, "json", rt.OutputFormat())

	rt = &runtimeState{cfg: &config.Config{Settings: config.Settings{OutputFormat: "yaml"}}}
	require.Equal(t, "yaml", rt.OutputFormat())

	rt = &runtimeState{}
	require.Equal(t, "table", rt.OutputFormat())
}

func TestRuntimeStateTokenStorage(t *testing.T) {
	rt := &runtimeState{tokenStorageOverride: "file"}
	require.Equal(t, "file", rt.TokenStorage())

	rt = &runtimeState{cfg: &config.Config{Settings: config.Settings{TokenStorage: "keyring"}}}
	require.Equal(t, "keyring", rt.TokenStorage())

	rt = &runtimeState{}
	require.Equal(t, "", rt.TokenStorage())
}

func TestRuntimeStateWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	rt := &runtimeState{writer: buf}
	require.Equal(t, buf, rt.Writer())

	rt = &runtimeState{}
	require.Equal(t, os.Stdout, rt.Writer())
}

func TestEnsureConfigLoaded(t *testing.T) {
	path := configPathForTest(t)
	cfg := config.DefaultConfig()
	cfg.Contexts = []config.Context{{Name: "ctx", Server: "https://fleet.example.com"}}
	require.NoError(t, config.Save(path, &cfg))

	rt := &runtimeState{configPath: path}
	require.NoError(t, rt.EnsureConfigLoaded())
	require.NotNil(t, rt.cfg)
}

func TestResolveContextErrors(t *testing.T) {
	rt := &runtimeState{}
	_, err := rt.ResolveContext()
	require.Error(t, err)

	rt = &runtimeState{cfg: &config.Config{}}
	_, err = rt.ResolveContext()
	require.Error(t, err)
}
