package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable consulted when no path is given.
const EnvConfig = "SEAMCRAFT_CONFIG"

// Config is the root of the engine configuration file.
type Config struct {
	WorldID    string           `yaml:"world_id"`
	Grid       GridConfig       `yaml:"grid"`
	Generation GenerationConfig `yaml:"generation"`
	Meshing    MeshingConfig    `yaml:"meshing"`
	Storage    StorageConfig    `yaml:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

type GridConfig struct {
	// Dim is the number of sectors per side; always odd so one sector sits
	// in the centre.
	Dim     int `yaml:"dim"`
	OriginX int `yaml:"origin_x"`
	OriginZ int `yaml:"origin_z"`
}

type MeshingConfig struct {
	Workers         int `yaml:"workers"`
	DispatchPerTick int `yaml:"dispatch_per_tick"`
}

type StorageConfig struct {
	// Dir enables persistence when set.
	Dir        string `yaml:"dir"`
	FlushEvery int    `yaml:"flush_every_seconds"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration that runs without any file.
func Default() *Config {
	workers := max(runtime.NumCPU()/2, 1)
	return &Config{
		Grid: GridConfig{Dim: 9},
		Generation: GenerationConfig{
			Kind:          GeneratorNoise,
			Seed:          1,
			FlatHeight:    64,
			SeaLevel:      58,
			Workers:       workers,
			RequestBudget: 8,
		},
		Meshing: MeshingConfig{Workers: workers, DispatchPerTick: 4},
		Storage: StorageConfig{FlushEvery: 5},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. An empty path falls back to
// $SEAMCRAFT_CONFIG and then to the defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize clamps every field to a usable value and fills the world id.
func (c *Config) Normalize() error {
	c.SetDim(c.Grid.Dim)
	c.Meshing.Workers = clamp(c.Meshing.Workers, 1, 64)
	c.Meshing.DispatchPerTick = clamp(c.Meshing.DispatchPerTick, 1, 256)
	if c.Storage.FlushEvery < 1 {
		c.Storage.FlushEvery = 1
	}
	if err := c.Generation.normalize(); err != nil {
		return err
	}
	if c.WorldID == "" {
		c.WorldID = uuid.NewString()
	} else if _, err := uuid.Parse(c.WorldID); err != nil {
		return fmt.Errorf("world_id %q: %w", c.WorldID, err)
	}
	return nil
}

// SetDim sets the grid dimension, clamped to [3, 63] and rounded up to odd.
func (c *Config) SetDim(dim int) {
	dim = clamp(dim, 3, 63)
	if dim%2 == 0 {
		dim++
	}
	c.Grid.Dim = dim
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
