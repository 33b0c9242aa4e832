// Package config loads the application configuration from a YAML or JSON
// file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/pdptw/core/experiment"
	"github.com/kilianp07/pdptw/core/metrics"
	"github.com/kilianp07/pdptw/core/scenario"
	"github.com/kilianp07/pdptw/infra/logger"
	"github.com/kilianp07/pdptw/infra/mqtt"
)

type Config struct {
	Simulation SimulationConfig         `json:"simulation"`
	Solver     SolverConfig             `json:"solver"`
	Experiment experiment.Config        `json:"experiment"`
	Generator  scenario.GeneratorConfig `json:"generator"`
	Metrics    metrics.Config           `json:"metrics"`
	Logging    logger.Config            `json:"logging"`
	Sentry     SentryConfig             `json:"sentry"`
	MQTT       mqtt.Config              `json:"mqtt"`
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Solver.SetDefaults()
	c.Experiment.SetDefaults()
	c.Generator.SetDefaults()
	c.Logging.SetDefaults()
	if c.MQTT.Enabled {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	return errors.Join(
		c.Simulation.Validate(),
		c.Solver.Validate(),
		c.Experiment.Validate(),
		c.Generator.Validate(),
		c.Logging.Validate(),
		c.Sentry.Validate(),
		c.MQTT.Validate(),
	)
}

// Load reads path, applies K_ prefixed environment overrides, defaults and
// validation. An empty path only uses the environment. Nested keys are
// separated by a double underscore, e.g. K_EXPERIMENT__WORKERS=4.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
