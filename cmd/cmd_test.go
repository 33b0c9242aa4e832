package cmd

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pdptw/core/experiment"
	"github.com/kilianp07/pdptw/core/scenario"
	"github.com/kilianp07/pdptw/pkg/export"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	runScenario, expScenarios, expReps, expSeed, expOut = "", nil, 0, 0, ""
	genOut, genSeed, genVehicles, genParcels = "", 0, 0, 0
	cfgPath = "config.yaml"
	// Flags keep their Changed state between executions.
	for _, c := range append(rootCmd.Commands(), rootCmd) {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
		c.PersistentFlags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestGenerateRunAndExperiment(t *testing.T) {
	dir := t.TempDir()
	scn := filepath.Join(dir, "day.yaml")

	out, err := execute(t, "generate", "--out", scn, "--seed", "3", "--vehicles", "1", "--parcels", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "1 vehicles, 3 requests")
	s, err := scenario.Load(scn)
	require.NoError(t, err)
	assert.Len(t, s.Parcels, 3)

	out, err = execute(t, "run", "--scenario", scn)
	require.NoError(t, err)
	var res experiment.InstanceResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "generated-3", res.ScenarioID)
	assert.Equal(t, 3, res.Result.Service.Announced)

	report := filepath.Join(dir, "report.csv")
	_, err = execute(t, "experiment", "--scenario", scn, "--reps", "2", "--out", report)
	require.NoError(t, err)
	f, err := os.Open(report)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, export.Header, rows[0])
}

func TestRunRequiresScenario(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}

func TestExplicitConfigMustExist(t *testing.T) {
	_, err := execute(t, "generate", "--out", filepath.Join(t.TempDir(), "x.json"), "--config", "missing.yaml")
	assert.Error(t, err)
}
