// Package experiment runs batches of independent simulations on a fixed
// size worker pool and aggregates their outcome. Every instance owns its
// simulation, solver and executors; only the immutable per-instance results
// are shared.
package experiment

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/kilianp07/pdptw/core/central"
	"github.com/kilianp07/pdptw/core/scenario"
)

// Config sizes an experiment.
type Config struct {
	Workers     int    `json:"workers"`
	Repetitions int    `json:"repetitions"`
	BaseSeed    uint64 `json:"base_seed"`
}

// SetDefaults uses one worker per CPU and a single repetition.
func (c *Config) SetDefaults() {
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Repetitions == 0 {
		c.Repetitions = 1
	}
}

func (c Config) Validate() error {
	if c.Workers < 1 {
		return errors.New("workers must be positive")
	}
	if c.Repetitions < 1 {
		return errors.New("repetitions must be positive")
	}
	return nil
}

// Instance is one simulation of an experiment.
type Instance struct {
	Scenario   scenario.Scenario
	Repetition int
	Seed       uint64
}

// Instances repeats every scenario reps times. The seed of a repetition is
// baseSeed plus its number.
func Instances(scenarios []scenario.Scenario, reps int, baseSeed uint64) []Instance {
	out := make([]Instance, 0, len(scenarios)*reps)
	for _, s := range scenarios {
		for r := range reps {
			out = append(out, Instance{Scenario: s, Repetition: r, Seed: baseSeed + uint64(r)})
		}
	}
	return out
}

// GeneratedInstances draws one scenario per repetition from gen, seeded
// with gen.Seed plus the repetition number.
func GeneratedInstances(gen scenario.GeneratorConfig, reps int) ([]Instance, error) {
	out := make([]Instance, 0, reps)
	for r := range reps {
		c := gen
		c.Seed = gen.Seed + uint64(r)
		s, err := scenario.Generate(c)
		if err != nil {
			return nil, fmt.Errorf("generate repetition %d: %w", r, err)
		}
		out = append(out, Instance{Scenario: s, Repetition: r, Seed: c.Seed})
	}
	return out, nil
}

// InstanceResult is the outcome of one instance. Err is set when the
// instance could not run to its end; Result then holds the partial state.
type InstanceResult struct {
	ScenarioID string         `json:"scenario_id"`
	Repetition int            `json:"repetition"`
	Seed       uint64         `json:"seed"`
	Result     central.Result `json:"result"`
	Objective  float64        `json:"objective"`
	Duration   time.Duration  `json:"duration"`
	Err        error          `json:"-"`
	Error      string         `json:"error,omitempty"`
}

// Valid reports whether the instance ran and served every request.
func (r InstanceResult) Valid() bool { return r.Err == nil && r.Result.Finished }

// Tardiness is the summed pickup and delivery tardiness.
func (r InstanceResult) Tardiness() int64 {
	return r.Result.Service.PickupTardiness + r.Result.Service.DeliveryTardiness
}

// Objective is the cost of a simulation: total travel time plus tardiness
// plus overtime, all in the scenario time unit.
func Objective(r central.Result) float64 {
	return r.TravelTime + float64(r.Service.PickupTardiness+r.Service.DeliveryTardiness) + float64(r.Overtime)
}

// Progress is published after every finished instance.
type Progress struct {
	RunID  string
	Done   int
	Total  int
	Result InstanceResult
}

// Report is the outcome of Runner.Run. Results are in instance order.
type Report struct {
	RunID   string           `json:"run_id"`
	Results []InstanceResult `json:"results"`
	Summary Summary          `json:"summary"`
}
