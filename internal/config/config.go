package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"motido/internal/score"
)

type Config struct {
	Server  Server  `yaml:"server" json:"server"`
	Storage Storage `yaml:"storage" json:"storage"`
	Scoring Scoring `yaml:"scoring" json:"scoring"`
	Logging Logging `yaml:"logging" json:"logging"`
}

type Server struct {
	Addr string `yaml:"addr" json:"addr"`
}

type Storage struct {
	// Backend is one of "memory", "file", "sqlite".
	Backend    string `yaml:"backend" json:"backend"`
	DataDir    string `yaml:"data_dir" json:"data_dir"`
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
}

type Scoring struct {
	// Weight tables are one value per ordinal level, lowest first.
	// Empty means the built-in defaults.
	PriorityWeights   []float64 `yaml:"priority_weights" json:"priority_weights"`
	DifficultyWeights []float64 `yaml:"difficulty_weights" json:"difficulty_weights"`
	DurationWeights   []float64 `yaml:"duration_weights" json:"duration_weights"`
}

type Logging struct {
	Level string `yaml:"level" json:"level"`
}

func Default() *Config {
	return &Config{
		Server:  Server{Addr: ":8080"},
		Storage: Storage{Backend: "file", DataDir: "data", SQLitePath: "data/motido.db"},
		Logging: Logging{Level: "info"},
	}
}

// Load reads a yaml config file. A missing file yields the defaults; a
// malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "file", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	for name, weights := range map[string][]float64{
		"priority_weights":   c.Scoring.PriorityWeights,
		"difficulty_weights": c.Scoring.DifficultyWeights,
		"duration_weights":   c.Scoring.DurationWeights,
	} {
		if len(weights) != 0 && len(weights) != 5 {
			return fmt.Errorf("%s must have exactly 5 entries", name)
		}
	}
	return nil
}

// Weights resolves the scoring weight tables against the defaults.
func (c *Config) Weights() score.Weights {
	w := score.DefaultWeights()
	copyWeights(&w.Priority, c.Scoring.PriorityWeights)
	copyWeights(&w.Difficulty, c.Scoring.DifficultyWeights)
	copyWeights(&w.Duration, c.Scoring.DurationWeights)
	return w
}

func copyWeights(dst *[5]float64, src []float64) {
	if len(src) == 5 {
		copy(dst[:], src)
	}
}
