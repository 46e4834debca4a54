package core

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type LogSettings struct {
	Level string `toml:"level"`
}

type RendererSettings struct {
	// Number of frame resource slots. Bounds the frames in flight to RingDepth-1.
	RingDepth       int `toml:"ring_depth"`
	BackBufferCount int `toml:"back_buffer_count"`
	Width           int `toml:"width"`
	Height          int `toml:"height"`
	// Upper bound for a single fence wait. 0 waits until the context is done.
	WaitTimeoutMS int `toml:"wait_timeout_ms"`
	// Artificial per command list latency of the headless queue.
	GPULatencyMS int `toml:"gpu_latency_ms"`
}

type CullingSettings struct {
	Enabled bool `toml:"enabled"`
	Workers int  `toml:"workers"`
}

type BlurSettings struct {
	Enabled bool    `toml:"enabled"`
	Sigma   float32 `toml:"sigma"`
	Count   int     `toml:"count"`
}

type InstancingSettings struct {
	Grid   int     `toml:"grid"`
	Width  float32 `toml:"width"`
	Height float32 `toml:"height"`
	Depth  float32 `toml:"depth"`
}

type ComputeSettings struct {
	Enabled     bool   `toml:"enabled"`
	ResultsPath string `toml:"results_path"`
	Seed        uint64 `toml:"seed"`
}

// Config is the full configuration surface of the engine, read from TOML.
type Config struct {
	Log        LogSettings        `toml:"log"`
	Renderer   RendererSettings   `toml:"renderer"`
	Culling    CullingSettings    `toml:"culling"`
	Blur       BlurSettings       `toml:"blur"`
	Instancing InstancingSettings `toml:"instancing"`
	Compute    ComputeSettings    `toml:"compute"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogSettings{Level: "info"},
		Renderer: RendererSettings{
			RingDepth:       3,
			BackBufferCount: 2,
			Width:           800,
			Height:          600,
			WaitTimeoutMS:   2000,
			GPULatencyMS:    2,
		},
		Culling: CullingSettings{Enabled: true, Workers: 4},
		Blur:    BlurSettings{Enabled: false, Sigma: 2.5, Count: 4},
		Instancing: InstancingSettings{
			Grid:   5,
			Width:  200,
			Height: 200,
			Depth:  200,
		},
		Compute: ComputeSettings{Enabled: true, ResultsPath: "results.txt", Seed: 1},
	}
}

// WaitTimeout returns the fence wait bound as a duration.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.Renderer.WaitTimeoutMS) * time.Millisecond
}

func (c *Config) GPULatency() time.Duration {
	return time.Duration(c.Renderer.GPULatencyMS) * time.Millisecond
}

// Validate checks every value the renderer relies on.
func (c *Config) Validate() error {
	switch {
	case c.Renderer.RingDepth < 1:
		return fmt.Errorf("%w: renderer.ring_depth must be >= 1, got %d", ErrInvalidConfig, c.Renderer.RingDepth)
	case c.Renderer.BackBufferCount < 1:
		return fmt.Errorf("%w: renderer.back_buffer_count must be >= 1, got %d", ErrInvalidConfig, c.Renderer.BackBufferCount)
	case c.Renderer.Width < 1 || c.Renderer.Height < 1:
		return fmt.Errorf("%w: renderer size must be positive, got %dx%d", ErrInvalidConfig, c.Renderer.Width, c.Renderer.Height)
	case c.Renderer.WaitTimeoutMS < 0 || c.Renderer.GPULatencyMS < 0:
		return fmt.Errorf("%w: renderer timings must not be negative", ErrInvalidConfig)
	case c.Culling.Workers < 1:
		return fmt.Errorf("%w: culling.workers must be >= 1, got %d", ErrInvalidConfig, c.Culling.Workers)
	case c.Blur.Sigma <= 0:
		return fmt.Errorf("%w: blur.sigma must be positive, got %g", ErrInvalidConfig, c.Blur.Sigma)
	case c.Blur.Count < 0:
		return fmt.Errorf("%w: blur.count must not be negative, got %d", ErrInvalidConfig, c.Blur.Count)
	case c.Instancing.Grid < 1:
		return fmt.Errorf("%w: instancing.grid must be >= 1, got %d", ErrInvalidConfig, c.Instancing.Grid)
	case c.Instancing.Width <= 0 || c.Instancing.Height <= 0 || c.Instancing.Depth <= 0:
		return fmt.Errorf("%w: instancing extents must be positive", ErrInvalidConfig)
	}
	return nil
}

// ParseConfig decodes TOML on top of the defaults. Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	d := toml.NewDecoder(bytes.NewReader(data))
	d.DisallowUnknownFields()
	if err := d.Decode(cfg); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, fmt.Errorf("%w: config line %d column %d: %s", ErrDataFormat, row, col, decodeErr.Error())
		}
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return nil, fmt.Errorf("%w: %s", ErrDataFormat, strictErr.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrDataFormat, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads and parses the file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		LogError("failed to load config %s: %s", path, err.Error())
		return nil, err
	}
	return cfg, nil
}

// MarshalConfig renders cfg back to TOML.
func MarshalConfig(cfg *Config) ([]byte, error) {
	return toml.Marshal(cfg)
}
