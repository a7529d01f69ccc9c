package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"imu-jointcenter/internal/sim"
	"imu-jointcenter/internal/trial"
)

func doSimulate(cmd *cobra.Command, args []string) error {
	_, done, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer done()

	scenarioPath, err := cmd.Flags().GetString("scenario")
	if err != nil {
		return err
	}
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}

	script, err := sim.LoadScenarioScript(scenarioPath)
	if err != nil {
		return fmt.Errorf("scenario load failed: %w", err)
	}
	sc, err := sim.NewScenario(script)
	if err != nil {
		return fmt.Errorf("scenario invalid: %w", err)
	}

	tr := sc.Generate()
	if err := trial.WriteFile(outPath, tr); err != nil {
		return err
	}

	truth := sc.Truth()
	log.Printf("simulate: wrote %d samples to %s", tr.Len(), outPath)
	fmt.Fprintf(cmd.OutOrStdout(), "samples: %d\n", tr.Len())
	fmt.Fprintf(cmd.OutOrStdout(), "duration: %s\n", sc.Duration())
	fmt.Fprintf(cmd.OutOrStdout(), "gravity: %g\n", sc.Gravity())
	fmt.Fprintf(cmd.OutOrStdout(), "proximal_offset: [%g %g %g]\n", truth.Proximal.X, truth.Proximal.Y, truth.Proximal.Z)
	fmt.Fprintf(cmd.OutOrStdout(), "distal_offset: [%g %g %g]\n", truth.Distal.X, truth.Distal.Y, truth.Distal.Z)
	return nil
}
