package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/pdptw/core/scenario"
)

var (
	genOut      string
	genSeed     uint64
	genVehicles int
	genParcels  int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a random scenario",
	RunE:  generate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&genOut, "out", "o", "", "scenario file (.yaml or .json)")
	f.Uint64Var(&genSeed, "seed", 0, "random seed (default from config)")
	f.IntVar(&genVehicles, "vehicles", 0, "fleet size (default from config)")
	f.IntVar(&genParcels, "parcels", 0, "number of requests (default from config)")
	_ = generateCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(generateCmd)
}

func generate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	gen := cfg.Generator
	if cmd.Flags().Changed("seed") {
		gen.Seed = genSeed
	}
	if genVehicles > 0 {
		gen.Vehicles = genVehicles
	}
	if genParcels > 0 {
		gen.Parcels = genParcels
	}
	s, err := scenario.Generate(gen)
	if err != nil {
		return err
	}
	if err := scenario.Save(genOut, s); err != nil {
		return err
	}
	cmd.Printf("wrote %s: %d vehicles, %d requests\n", genOut, len(s.Vehicles), len(s.Parcels))
	return nil
}
