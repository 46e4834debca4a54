package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigOverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
[renderer]
ring_depth = 4
wait_timeout_ms = 500

[culling]
enabled = false

[blur]
sigma = 1.5
`))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Renderer.RingDepth)
	assert.Equal(t, 500, cfg.Renderer.WaitTimeoutMS)
	assert.False(t, cfg.Culling.Enabled)
	assert.Equal(t, float32(1.5), cfg.Blur.Sigma)

	// untouched keys keep their defaults
	def := DefaultConfig()
	assert.Equal(t, def.Renderer.Width, cfg.Renderer.Width)
	assert.Equal(t, def.Culling.Workers, cfg.Culling.Workers)
	assert.Equal(t, def.Instancing, cfg.Instancing)
}

func TestParseConfigEmptyIsDefault(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	_, err := ParseConfig([]byte("[renderer]\nring_dept = 3\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataFormat)
	assert.True(t, IsRecoverable(err))
}

func TestParseConfigRejectsSyntaxErrors(t *testing.T) {
	_, err := ParseConfig([]byte("[renderer\nring_depth = 3\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataFormat)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero ring depth", func(c *Config) { c.Renderer.RingDepth = 0 }},
		{"no back buffers", func(c *Config) { c.Renderer.BackBufferCount = 0 }},
		{"zero width", func(c *Config) { c.Renderer.Width = 0 }},
		{"negative timeout", func(c *Config) { c.Renderer.WaitTimeoutMS = -1 }},
		{"no culling workers", func(c *Config) { c.Culling.Workers = 0 }},
		{"zero sigma", func(c *Config) { c.Blur.Sigma = 0 }},
		{"negative blur count", func(c *Config) { c.Blur.Count = -2 }},
		{"empty grid", func(c *Config) { c.Instancing.Grid = 0 }},
		{"flat grid", func(c *Config) { c.Instancing.Depth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Equal(t, ErrorClassFatal, Classify(err))
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Renderer.RingDepth = 2
	cfg.Compute.Seed = 42
	data, err := MarshalConfig(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Renderer.WaitTimeoutMS = 1500
	cfg.Renderer.GPULatencyMS = 3
	assert.Equal(t, "1.5s", cfg.WaitTimeout().String())
	assert.Equal(t, "3ms", cfg.GPULatency().String())
}
