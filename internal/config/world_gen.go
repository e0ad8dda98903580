package config

import (
	"fmt"
	"strings"
)

// Generator kinds.
const (
	GeneratorFlat  = "flat"
	GeneratorNoise = "noise"
)

// GenerationConfig holds world generation configuration.
type GenerationConfig struct {
	Kind       string `yaml:"kind"`
	Seed       int64  `yaml:"seed"`
	FlatHeight int    `yaml:"flat_height"`
	SeaLevel   int    `yaml:"sea_level"`
	Workers    int    `yaml:"workers"`
	MaxPending int    `yaml:"max_pending"`
	// RequestBudget caps new generation requests per tick.
	RequestBudget int `yaml:"request_budget"`
}

func (g *GenerationConfig) normalize() error {
	g.Kind = strings.ToLower(strings.TrimSpace(g.Kind))
	switch g.Kind {
	case "":
		g.Kind = GeneratorNoise
	case GeneratorFlat, GeneratorNoise:
	default:
		return fmt.Errorf("generation.kind %q: want %q or %q", g.Kind, GeneratorFlat, GeneratorNoise)
	}
	g.FlatHeight = clamp(g.FlatHeight, 1, 255)
	g.SeaLevel = clamp(g.SeaLevel, 0, 255)
	g.Workers = clamp(g.Workers, 1, 64)
	if g.MaxPending < 0 {
		g.MaxPending = 0
	}
	g.RequestBudget = clamp(g.RequestBudget, 1, 1024)
	return nil
}
