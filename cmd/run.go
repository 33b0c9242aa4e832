package cmd

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/kilianp07/pdptw/app"
	"github.com/kilianp07/pdptw/core/scenario"
)

var runScenario string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate one scenario and print its result",
	RunE:  runOne,
}

func init() {
	runCmd.Flags().StringVarP(&runScenario, "scenario", "s", "", "scenario file (yaml or json)")
	_ = runCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(runCmd)
}

func runOne(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	scn, err := scenario.Load(runScenario)
	if err != nil {
		return err
	}
	return withService(cmd, cfg, func(ctx context.Context, svc *app.Service) error {
		res, err := svc.RunScenario(ctx, scn)
		if res.ScenarioID == "" {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return errors.Join(enc.Encode(res), err)
	})
}
