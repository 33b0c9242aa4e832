package scenarios

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pdptw/core/central"
	"github.com/kilianp07/pdptw/core/experiment"
	"github.com/kilianp07/pdptw/core/factory"
	"github.com/kilianp07/pdptw/core/solver"
	"github.com/kilianp07/pdptw/infra/logger"
	"github.com/kilianp07/pdptw/infra/metrics"
)

const solverName = "sequential"

// RunCase simulates the case with the sequential solver and checks the
// expected outcome and the instance counter.
func RunCase(t *testing.T, c *Case) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	solvers := solver.NewRegistry(logger.NopLogger{})
	runner, err := experiment.NewRunner(experiment.Config{Workers: 1},
		func(experiment.Instance) (solver.Solver, error) {
			return solvers.Create(moduleConfig(c))
		},
		experiment.WithSimulation(central.Config{
			DelayedRouteChanges: c.Simulation.DelayedRouteChanges,
			IdleReplanning:      c.Simulation.IdleReplanning,
		}),
		experiment.WithSink(sink),
		experiment.WithSolverName(solverName),
	)
	require.NoError(t, err)

	rep, err := runner.Run(context.Background(), []experiment.Instance{{Scenario: c.Scenario}})
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	res := rep.Results[0]

	exp := c.Expected
	assert.Equal(t, exp.Outcome, outcome(res), "outcome of %s: %s", c.Name, res.Error)
	assert.Equal(t, exp.Delivered, res.Result.Service.Delivered)
	if exp.Replans > 0 {
		assert.Equal(t, exp.Replans, res.Result.Planning.Replans)
	}
	if exp.MaxTardiness != nil {
		assert.LessOrEqual(t, res.Tardiness(), *exp.MaxTardiness)
	}
	assert.GreaterOrEqual(t, res.Tardiness(), exp.MinTardiness)

	want := fmt.Sprintf(`# HELP pdptw_instances_total Simulated instances by outcome
# TYPE pdptw_instances_total counter
pdptw_instances_total{outcome=%q,scenario=%q,solver=%q} 1
`, exp.Outcome, c.Scenario.ID, solverName)
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "pdptw_instances_total"))
}

func moduleConfig(c *Case) factory.ModuleConfig {
	return factory.ModuleConfig{Type: solverName, Conf: c.Solver}
}

func outcome(r experiment.InstanceResult) string {
	switch {
	case r.Err != nil:
		return "failed"
	case !r.Result.Finished:
		return "unfinished"
	}
	return "finished"
}
