package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestManagerGetAppliesNetworkOverride(t *testing.T) {
	dir := t.TempDir()
	masterPath := writeFile(t, dir, "config.yaml", "rpc:\n  endpoint: http://mainnet.local\n  chain_id: 1\n")
	networksPath := writeFile(t, dir, "networks.yaml", `
networks:
  polygon:
    rpc:
      endpoint: http://polygon.local
      chain_id: 137
`)

	mgr, err := NewManager(masterPath, networksPath)
	require.NoError(t, err)

	mainnet := mgr.Get("mainnet")
	require.Equal(t, "http://mainnet.local", mainnet.RPC.Endpoint)

	polygon := mgr.Get("polygon")
	require.Equal(t, "http://polygon.local", polygon.RPC.Endpoint)
	require.Equal(t, uint64(137), polygon.RPC.ChainID)

	require.Contains(t, mgr.Networks(), "polygon")
}

func TestManagerWithoutNetworksFileFallsBackToGlobal(t *testing.T) {
	dir := t.TempDir()
	masterPath := writeFile(t, dir, "config.yaml", "rpc:\n  endpoint: http://mainnet.local\n")

	mgr, err := NewManager(masterPath, filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	cfg := mgr.Get("anything")
	require.Equal(t, "http://mainnet.local", cfg.RPC.Endpoint)
	require.Empty(t, mgr.Networks())
}
