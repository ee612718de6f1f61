package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/bodgit/morgul/correct"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultSkip, cfg.Skip)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, "wrap", cfg.Overflow)
	assert.Equal(t, "raw", cfg.Output.Format)
	assert.Equal(t, Expanded, cfg.Output.Geometry)
	assert.Equal(t, correct.DefaultThreshold, cfg.Mask.Threshold)
	assert.False(t, cfg.IsCompact())
	assert.Nil(t, cfg.Validate())
}

func TestLoadMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Nil(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadPartial(t *testing.T) {
	file := filepath.Join(t.TempDir(), "morgul.yaml")
	require.Nil(t, os.WriteFile(file, []byte("energy: 12.4\noutput:\n  format: fits\n  geometry: compact\n"), 0666))

	cfg, err := LoadConfig(file)
	require.Nil(t, err)
	assert.Equal(t, 12.4, cfg.Energy)
	assert.Equal(t, "fits", cfg.Output.Format)
	assert.True(t, cfg.IsCompact())

	// Untouched settings keep their defaults
	assert.Equal(t, DefaultPrefix, cfg.Output.Prefix)
	assert.Equal(t, DefaultSkip, cfg.Skip)
	assert.Nil(t, cfg.Validate())
}

func TestLoadInvalid(t *testing.T) {
	file := filepath.Join(t.TempDir(), "morgul.yaml")
	require.Nil(t, os.WriteFile(file, []byte("energy: [1, 2"), 0666))

	_, err := LoadConfig(file)
	assert.NotNil(t, err)
}

func TestSaveConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "conf", "morgul.yaml")

	cfg := DefaultConfig()
	cfg.Energy = 8.0
	cfg.Gains = "gains.bin"
	require.Nil(t, SaveConfig(cfg, file))

	got, err := LoadConfig(file)
	require.Nil(t, err)
	assert.Equal(t, cfg, got)
}

func TestValidate(t *testing.T) {
	tables := []struct {
		name   string
		modify func(*Config)
	}{
		{"energy", func(c *Config) { c.Energy = -1 }},
		{"overflow", func(c *Config) { c.Overflow = "clip" }},
		{"format", func(c *Config) { c.Output.Format = "hdf5" }},
		{"preview", func(c *Config) { c.Preview.Format = "gif" }},
		{"geometry", func(c *Config) { c.Output.Geometry = "round" }},
	}

	for _, table := range tables {
		cfg := DefaultConfig()
		table.modify(cfg)
		assert.NotNil(t, cfg.Validate(), table.name)
	}
}
