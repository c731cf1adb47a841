// Package config holds the rmeshtool configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gekko3d/realtimemesh/rt/core"
)

type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Render  RenderConfig  `toml:"render"`
	GPU     GPUConfig     `toml:"gpu"`
	Output  OutputConfig  `toml:"output"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`  // "debug" or "info"
	Format string `toml:"format"` // "console" or "json"
}

type RenderConfig struct {
	QueueSize    int           `toml:"queue_size"`
	FlushTimeout time.Duration `toml:"flush_timeout"`
}

type GPUConfig struct {
	Backend string `toml:"backend"` // "null" or "wgpu"
}

type OutputConfig struct {
	// Version is the archive version written by build. Older versions drop
	// the data they cannot represent.
	Version int32 `toml:"version"`
	// MaxLODs rejects descriptions with more LODs than this.
	MaxLODs int `toml:"max_lods"`
}

// Load reads path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config { return defaults() }

func defaults() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Render: RenderConfig{
			QueueSize:    256,
			FlushTimeout: 10 * time.Second,
		},
		GPU: GPUConfig{
			Backend: "null",
		},
		Output: OutputConfig{
			Version: core.VersionLatest,
			MaxLODs: core.MaxLODs,
		},
	}
}

func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info":
	default:
		return fmt.Errorf("logging.level %q: want debug or info", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q: want console or json", c.Logging.Format)
	}
	if c.Render.QueueSize <= 0 {
		return fmt.Errorf("render.queue_size must be positive, got %d", c.Render.QueueSize)
	}
	if c.Render.FlushTimeout <= 0 {
		return fmt.Errorf("render.flush_timeout must be positive, got %s", c.Render.FlushTimeout)
	}
	switch c.GPU.Backend {
	case "null", "wgpu":
	default:
		return fmt.Errorf("gpu.backend %q: want null or wgpu", c.GPU.Backend)
	}
	if c.Output.Version < core.VersionInitial || c.Output.Version > core.VersionLatest {
		return fmt.Errorf("output.version %d: want %d..%d", c.Output.Version, core.VersionInitial, core.VersionLatest)
	}
	if c.Output.MaxLODs < 1 || c.Output.MaxLODs > core.MaxLODs {
		return fmt.Errorf("output.max_lods %d: want 1..%d", c.Output.MaxLODs, core.MaxLODs)
	}
	return nil
}

func (c *Config) Debug() bool { return c.Logging.Level == "debug" }
