// Package config loads the transcoder configuration from YAML.
package config

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-transcode/logger"
)

// Backend names a codec implementation.
type Backend string

const (
	// BackendVips encodes with libvips.
	BackendVips Backend = "vips"
	// BackendNative encodes with pure-Go codecs (no AVIF encoder).
	BackendNative Backend = "native"
)

// DefaultMaxDimension is the largest width or height encoded in a single
// call; anything larger is sliced.
const DefaultMaxDimension = 16382

// Config represents the transcoder configuration.
type Config struct {
	Engine EngineConfig  `yaml:"engine"`
	Slicer SlicerConfig  `yaml:"slicer"`
	Vips   VipsConfig    `yaml:"vips"`
	Log    logger.Config `yaml:"log"`
}

// EngineConfig controls request orchestration.
type EngineConfig struct {
	// MaxDimension is the slicing threshold in pixels.
	MaxDimension int `yaml:"max_dimension"`
	// MaxConcurrency bounds concurrent transcodes.
	MaxConcurrency int `yaml:"max_concurrency"`
	// Backend selects the codec.
	Backend Backend `yaml:"backend"`
}

// SlicerConfig controls piecewise encoding of oversized images.
type SlicerConfig struct {
	// Workers bounds concurrent slice encodes across all requests.
	Workers int `yaml:"workers"`
	// SpillThresholdBytes is the in-memory budget per request for encoded
	// slices; beyond it slices spill to disk. Zero never spills.
	SpillThresholdBytes int64 `yaml:"spill_threshold_bytes"`
	// ScratchDir is the parent of per-request spill directories; empty uses
	// the OS temporary directory.
	ScratchDir string `yaml:"scratch_dir"`
}

// VipsConfig is passed to libvips at startup.
type VipsConfig struct {
	ConcurrencyLevel int `yaml:"concurrency_level"`
	MaxCacheMem      int `yaml:"max_cache_mem"`
	MaxCacheSize     int `yaml:"max_cache_size"`
}

// Default returns a production-ready configuration.
//
// Returns:
//   - *Config: The default configuration.
//
// @example
// cfg := Default()
// cfg.Engine.Backend = BackendNative
func Default() *Config {
	cpus := runtime.NumCPU()
	return &Config{
		Engine: EngineConfig{
			MaxDimension:   DefaultMaxDimension,
			MaxConcurrency: cpus,
			Backend:        BackendVips,
		},
		Slicer: SlicerConfig{
			Workers: cpus,
		},
		Vips: VipsConfig{
			ConcurrencyLevel: 1,
			MaxCacheMem:      100 * 1024 * 1024,
			MaxCacheSize:     500,
		},
		Log: logger.DefaultConfig(),
	}
}

// Load reads and parses the configuration file. Keys missing from the file
// keep their Default values.
//
// Arguments:
//   - path: Path to the YAML file.
//
// Returns:
//   - *Config: The validated configuration.
//   - error: If the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// Validate checks that every field is usable.
func (c *Config) Validate() error {
	if c.Engine.MaxDimension <= 0 {
		return errors.Errorf("engine.max_dimension must be positive, got %d", c.Engine.MaxDimension)
	}
	if c.Engine.MaxConcurrency <= 0 {
		return errors.Errorf("engine.max_concurrency must be positive, got %d", c.Engine.MaxConcurrency)
	}
	switch c.Engine.Backend {
	case BackendVips, BackendNative:
	default:
		return errors.Errorf("engine.backend must be %q or %q, got %q", BackendVips, BackendNative, c.Engine.Backend)
	}
	if c.Slicer.Workers <= 0 {
		return errors.Errorf("slicer.workers must be positive, got %d", c.Slicer.Workers)
	}
	if c.Slicer.SpillThresholdBytes < 0 {
		return errors.Errorf("slicer.spill_threshold_bytes must not be negative, got %d", c.Slicer.SpillThresholdBytes)
	}
	if c.Slicer.ScratchDir != "" {
		info, err := os.Stat(c.Slicer.ScratchDir)
		if err != nil {
			return errors.Wrap(err, "slicer.scratch_dir")
		}
		if !info.IsDir() {
			return errors.Errorf("slicer.scratch_dir %q is not a directory", c.Slicer.ScratchDir)
		}
	}
	return nil
}
