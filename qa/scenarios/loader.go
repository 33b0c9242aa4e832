// Package scenarios holds regression cases: small scenarios with the
// outcome a solver configuration must reach on them.
package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/pdptw/core/scenario"
)

// SimulationDef mirrors the simulation settings of a case.
type SimulationDef struct {
	DelayedRouteChanges bool `yaml:"delayed_route_changes"`
	IdleReplanning      bool `yaml:"idle_replanning"`
}

// Expected is the outcome checked after the run. Outcome is one of
// finished, unfinished or failed.
type Expected struct {
	Outcome      string `yaml:"outcome"`
	Delivered    int    `yaml:"delivered"`
	Replans      int    `yaml:"replans,omitempty"`
	MaxTardiness *int64 `yaml:"max_tardiness,omitempty"`
	MinTardiness int64  `yaml:"min_tardiness,omitempty"`
}

type Case struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Solver      map[string]any    `yaml:"solver"`
	Simulation  SimulationDef     `yaml:"simulation"`
	Scenario    scenario.Scenario `yaml:"scenario"`
	Expected    Expected          `yaml:"expected"`
}

func Load(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Case
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Scenario.ID == "" {
		c.Scenario.ID = c.Name
	}
	c.Scenario.SetDefaults()
	return &c, nil
}
