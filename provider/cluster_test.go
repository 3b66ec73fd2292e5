package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClusterConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cluster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cluster_name: demo
provider:
  type: local
  head_ip: 10.0.0.1
  worker_ips: [10.0.0.2, 10.0.0.3]
`), 0o644))

	cluster, err := LoadClusterConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cluster.ClusterName())

	cfg, err := cluster.Provider()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Type())
	assert.Equal(t, LocalDirect, SelectLocalVariant(cfg))
	assert.Equal(t, []any{"10.0.0.2", "10.0.0.3"}, cfg["worker_ips"])
}

func TestLoadClusterConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadClusterConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = LoadClusterConfig(empty)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("provider: [oops"), 0o644))
	_, err = LoadClusterConfig(invalid)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestClusterConfigProvider(t *testing.T) {
	_, err := ClusterConfig{}.Provider()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ClusterConfig{"provider": "aws"}.Provider()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg, err := ClusterConfig{"provider": Config{"type": "gcp"}}.Provider()
	require.NoError(t, err)
	assert.Equal(t, "gcp", cfg.Type())
}

func TestMergeDefaults(t *testing.T) {
	defaults := ClusterConfig{
		"cluster_name": "default",
		"max_workers":  2,
		"provider":     map[string]any{"type": "aws", "region": "us-west-2", "cache_stopped_nodes": true},
	}
	cfg := ClusterConfig{
		"cluster_name": "mine",
		"provider":     map[string]any{"type": "aws", "region": "eu-west-1"},
	}

	merged := MergeDefaults(defaults, cfg)

	assert.Equal(t, "mine", merged.ClusterName())
	assert.Equal(t, 2, merged["max_workers"])
	assert.Equal(t, map[string]any{"type": "aws", "region": "eu-west-1"}, merged["provider"], "top-level sections are replaced whole")
	assert.Equal(t, map[string]any{}, merged["auth"])

	merged["provider"].(map[string]any)["region"] = "changed"
	assert.Equal(t, "eu-west-1", cfg["provider"].(map[string]any)["region"])
	assert.Equal(t, "us-west-2", defaults["provider"].(map[string]any)["region"])
}
