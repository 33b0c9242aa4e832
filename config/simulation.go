package config

import (
	"errors"

	"github.com/kilianp07/pdptw/core/factory"
	"github.com/kilianp07/pdptw/infra/diag"
)

// SimulationConfig tunes the simulations. Zero values keep the scenario
// settings.
type SimulationConfig struct {
	DelayedRouteChanges bool `json:"delayed_route_changes"`
	// IdleReplanning is forced on for single vehicle solvers.
	IdleReplanning bool `json:"idle_replanning"`
	// TickLength overrides the tick length of every scenario.
	TickLength     int64 `json:"tick_length"`
	AllowDiversion *bool `json:"allow_diversion"`
}

func (c SimulationConfig) Validate() error {
	if c.TickLength < 0 {
		return errors.New("simulation tick_length must not be negative")
	}
	return nil
}

// SolverConfig selects a registered solver. Conf is decoded by the solver
// factory, e.g. time_unit and multi_vehicle.
type SolverConfig struct {
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
	// Record keeps the solver inputs and outputs of every simulation.
	Record bool `json:"record"`
	// Echo writes the records to a rotating file when Echo.Path is set.
	Echo diag.Config `json:"echo"`
}

func (c *SolverConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "sequential"
	}
	if c.Echo.Path != "" {
		c.Echo.SetDefaults()
	}
}

func (c SolverConfig) Validate() error {
	if c.Type == "" {
		return errors.New("solver type is required")
	}
	if c.Echo.Path != "" {
		return c.Echo.Validate()
	}
	return nil
}

// Module returns the registry configuration of the solver.
func (c SolverConfig) Module() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Type, Conf: c.Conf}
}

// MultiVehicle reports whether the solver plans the whole fleet.
func (c SolverConfig) MultiVehicle() bool {
	v, _ := c.Conf["multi_vehicle"].(bool)
	if s, ok := c.Conf["multi_vehicle"].(string); ok {
		v = s == "true"
	}
	return v
}
