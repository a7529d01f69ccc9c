package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"imu-jointcenter/internal/joint"
	"imu-jointcenter/internal/report"
	"imu-jointcenter/internal/trial"
)

type dynStats struct {
	Mean, Std, Max float64
}

type trialSummary struct {
	Samples   int
	Duration  float64
	Rotations bool
	Gravity   float64
	Proximal  dynStats
	Distal    dynStats
	Ladder    []joint.LadderStep
}

func statsOf(dyn []float64) dynStats {
	abs := make([]float64, len(dyn))
	for i, v := range dyn {
		abs[i] = math.Abs(v)
	}
	if len(abs) == 0 {
		return dynStats{}
	}
	mean, std := stat.MeanStdDev(abs, nil)
	return dynStats{Mean: mean, Std: std, Max: floats.Max(abs)}
}

// summarizeTrial reports how much dynamic acceleration a trial carries at
// gravity g and how many samples each mask threshold keeps.
func summarizeTrial(tr *trial.Trial, g float64, mask joint.MaskSettings) trialSummary {
	s := trialSummary{
		Samples:   tr.Len(),
		Rotations: tr.HasRotations(),
		Gravity:   tr.Gravity,
	}
	if s.Samples == 0 {
		return s
	}
	s.Duration = tr.Times[len(tr.Times)-1] - tr.Times[0]
	prox := joint.DynamicMagnitude(tr.Pair.Proximal.Acc, g)
	dist := joint.DynamicMagnitude(tr.Pair.Distal.Acc, g)
	s.Proximal = statsOf(prox)
	s.Distal = statsOf(dist)
	s.Ladder = joint.LadderCounts(prox, dist, mask)
	return s
}

func printTrialSummary(w io.Writer, path string, s trialSummary, minSamples int) {
	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "samples: %d\n", s.Samples)
	fmt.Fprintf(w, "duration: %.3fs\n", s.Duration)
	fmt.Fprintf(w, "rotations: %t\n", s.Rotations)
	if s.Gravity > 0 {
		fmt.Fprintf(w, "recorded_gravity: %g\n", s.Gravity)
	}
	fmt.Fprintf(w, "proximal_dynamic: mean=%.3f std=%.3f max=%.3f\n", s.Proximal.Mean, s.Proximal.Std, s.Proximal.Max)
	fmt.Fprintf(w, "distal_dynamic: mean=%.3f std=%.3f max=%.3f\n", s.Distal.Mean, s.Distal.Std, s.Distal.Max)
	fmt.Fprintf(w, "mask_ladder (min_samples=%d):\n", minSamples)
	report.WriteLadder(w, s.Ladder, minSamples)
}

func doSummary(cmd *cobra.Command, args []string) error {
	cfg, done, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer done()

	jc := cfg.Estimator.Joint()
	out := cmd.OutOrStdout()
	for i, path := range args {
		path = strings.TrimSpace(path)
		if path == "" {
			return fmt.Errorf("path is empty")
		}
		tr, err := trial.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		printTrialSummary(out, path, summarizeTrial(&tr, jc.Gravity, jc.Mask), jc.MinSamples)
	}
	return nil
}
