package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/pdptw/app"
	"github.com/kilianp07/pdptw/core/experiment"
	"github.com/kilianp07/pdptw/core/scenario"
	"github.com/kilianp07/pdptw/pkg/export"
)

var (
	expScenarios []string
	expReps      int
	expSeed      uint64
	expOut       string
)

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Run repeated simulations and summarise them",
	Long: `Runs every scenario the configured number of repetitions on a worker
pool. Without --scenario, instances are drawn from the generator settings.`,
	RunE: runExperiment,
}

func init() {
	f := experimentCmd.Flags()
	f.StringSliceVarP(&expScenarios, "scenario", "s", nil, "scenario files (yaml or json)")
	f.IntVarP(&expReps, "reps", "r", 0, "repetitions per scenario (default from config)")
	f.Uint64Var(&expSeed, "seed", 0, "base seed (default from config)")
	f.StringVarP(&expOut, "out", "o", "", "report file (.json or .csv), stdout when empty")
	rootCmd.AddCommand(experimentCmd)
}

func runExperiment(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("reps") {
		cfg.Experiment.Repetitions = expReps
	}
	if cmd.Flags().Changed("seed") {
		cfg.Experiment.BaseSeed = expSeed
		cfg.Generator.Seed = expSeed
	}
	if err := cfg.Experiment.Validate(); err != nil {
		return err
	}

	instances, err := buildInstances(cfg.Experiment, cfg.Generator)
	if err != nil {
		return err
	}
	return withService(cmd, cfg, func(ctx context.Context, svc *app.Service) error {
		rep, runErr := svc.RunExperiment(ctx, instances)
		if rep.RunID == "" {
			return runErr
		}
		var writeErr error
		if expOut == "" {
			writeErr = export.WriteJSON(cmd.OutOrStdout(), rep)
		} else {
			writeErr = export.WriteFile(expOut, rep)
		}
		return errors.Join(writeErr, runErr)
	})
}

func buildInstances(cfg experiment.Config, gen scenario.GeneratorConfig) ([]experiment.Instance, error) {
	if len(expScenarios) == 0 {
		return experiment.GeneratedInstances(gen, cfg.Repetitions)
	}
	scenarios := make([]scenario.Scenario, 0, len(expScenarios))
	for _, path := range expScenarios {
		s, err := scenario.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load scenario: %w", err)
		}
		scenarios = append(scenarios, s)
	}
	return experiment.Instances(scenarios, cfg.Repetitions, cfg.BaseSeed), nil
}
