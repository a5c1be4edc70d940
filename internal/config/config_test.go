package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoaderDecodesPairs(t *testing.T) {
	path := writeTestConfig(t, `
engine_version: "1.2.0"
pairs:
  - pair: BTC-USD
    tick_size: "0.01"
    lot_size: "0.0001"
    price_scale: 2
    qty_scale: 4
`)
	loader, err := NewLoader(path)
	require.NoError(t, err)

	cfg, err := loader.Current()
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", cfg.EngineVersion)
	require.Len(t, cfg.Pairs, 1)
	assert.Equal(t, "BTC-USD", cfg.Pairs[0].Pair)
}

func TestLoaderAppliesDefaults(t *testing.T) {
	path := writeTestConfig(t, `engine_version: "1.0.0"`)
	loader, err := NewLoader(path)
	require.NoError(t, err)

	cfg, err := loader.Current()
	require.NoError(t, err)
	assert.Equal(t, "strict", cfg.Journal.SyncMode)
	assert.Equal(t, 4096, cfg.Router.QueueDepth)
}
