package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 16382, cfg.Engine.MaxDimension)
	assert.Equal(t, BackendVips, cfg.Engine.Backend)
	assert.Zero(t, cfg.Slicer.SpillThresholdBytes)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad(t *testing.T) {
	scratch := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
engine:
  max_dimension: 4096
  backend: native
slicer:
  workers: 2
  spill_threshold_bytes: 1048576
  scratch_dir: ` + scratch + `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.Engine.MaxDimension)
	assert.Equal(t, BackendNative, cfg.Engine.Backend)
	assert.Equal(t, 2, cfg.Slicer.Workers)
	assert.Equal(t, int64(1048576), cfg.Slicer.SpillThresholdBytes)
	assert.Equal(t, scratch, cfg.Slicer.ScratchDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Positive(t, cfg.Engine.MaxConcurrency, "Unset keys should keep defaults")
	assert.Equal(t, 500, cfg.Vips.MaxCacheSize)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("engine: [not, a, map]"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero max dimension", mutate: func(c *Config) { c.Engine.MaxDimension = 0 }},
		{name: "zero concurrency", mutate: func(c *Config) { c.Engine.MaxConcurrency = 0 }},
		{name: "unknown backend", mutate: func(c *Config) { c.Engine.Backend = "imagemagick" }},
		{name: "zero workers", mutate: func(c *Config) { c.Slicer.Workers = 0 }},
		{name: "negative spill threshold", mutate: func(c *Config) { c.Slicer.SpillThresholdBytes = -1 }},
		{name: "missing scratch dir", mutate: func(c *Config) { c.Slicer.ScratchDir = filepath.Join(file, "nope") }},
		{name: "scratch dir is a file", mutate: func(c *Config) { c.Slicer.ScratchDir = file }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
