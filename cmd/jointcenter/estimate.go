package main

import (
	"fmt"
	"log"
	"math"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"imu-jointcenter/internal/joint"
	"imu-jointcenter/internal/report"
	"imu-jointcenter/internal/trial"
)

func doEstimate(cmd *cobra.Command, args []string) error {
	cfg, done, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer done()

	if m, _ := cmd.Flags().GetString("method"); m != "" {
		cfg.Estimator.Method = m
	}
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		cfg.Output.Format = f
	}
	if d, _ := cmd.Flags().GetString("plot-dir"); d != "" {
		cfg.Output.PlotDir = d
	}
	if cfg.Output.Format != "table" && cfg.Output.Format != "json" {
		return fmt.Errorf("--format must be table or json (got %q)", cfg.Output.Format)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	if jobs <= 0 {
		jobs = 1
	}

	jc := cfg.Estimator.Joint()
	method, err := joint.ParseMethod(cfg.Estimator.Method)
	if err != nil {
		return err
	}
	jc.Method = method
	est, err := joint.NewEstimator(jc)
	if err != nil {
		return err
	}

	log.Printf("estimate: method=%s trials=%d jobs=%d mask_input=%t min_samples=%d",
		jc.Method, len(args), jobs, jc.MaskInput, jc.MinSamples)

	results := make([]report.Result, len(args))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(jobs)
	for i, path := range args {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = estimateTrial(est, path, cfg.Output.PlotDir)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.Output.Format == "json" {
		if err := report.WriteJSON(out, results); err != nil {
			return err
		}
	} else {
		report.WriteTable(out, results)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d trials failed", failed, len(results))
	}
	return nil
}

// estimateTrial runs one trial file through est. Failures are recorded in
// the result so the remaining trials still run.
func estimateTrial(est *joint.Estimator, path, plotDir string) report.Result {
	res := report.Result{Trial: path}
	tr, err := trial.ReadFile(path)
	if err != nil {
		res.Err = err
		log.Printf("estimate: %s: %v", path, err)
		return res
	}

	g := est.Config().Gravity
	if tr.Gravity > 0 && math.Abs(tr.Gravity-g) > 1e-3 {
		log.Printf("estimate: %s: trial recorded with g=%g, estimating with g=%g", path, tr.Gravity, g)
	}

	res.Estimate, res.Err = est.Compute(&tr.Pair)
	if res.Err != nil {
		log.Printf("estimate: %s: %v", path, res.Err)
	} else {
		log.Printf("estimate: %s: samples=%d threshold=%.2f residual=%.4g",
			path, res.Estimate.Samples, res.Estimate.Threshold, res.Estimate.Residual)
	}

	if plotDir != "" {
		if err := plotTrial(est, &tr, path, plotDir); err != nil {
			log.Printf("estimate: %s: plot: %v", path, err)
		}
	}
	return res
}

func plotTrial(est *joint.Estimator, tr *trial.Trial, path, plotDir string) error {
	mask, err := est.Mask(&tr.Pair)
	if err != nil {
		return err
	}
	g := est.Config().Gravity
	prox := joint.DynamicMagnitude(tr.Pair.Proximal.Acc, g)
	dist := joint.DynamicMagnitude(tr.Pair.Distal.Acc, g)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return report.PlotMask(filepath.Join(plotDir, name+".png"), name, tr.Times, prox, dist, mask)
}
