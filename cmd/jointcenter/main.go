package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"imu-jointcenter/internal/config"
	"imu-jointcenter/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func NewCmd() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "jointcenter [command] [flags] [args]",
		Short:         "jointcenter estimates joint centers from paired IMU recordings",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "`<path>` to YAML config (defaults when empty)")

	estimateCmd := &cobra.Command{
		Use:   "estimate [flags] <trial>...",
		Short: "Estimate sensor-to-joint offsets for one or more trials",
		Args:  cobra.MinimumNArgs(1),
		RunE:  doEstimate,
	}
	estimateCmd.Flags().StringP("method", "m", "", "`<method>` SAC or SSFC, overrides estimator.method")
	estimateCmd.Flags().IntP("jobs", "j", 4, "number of trials processed concurrently")
	estimateCmd.Flags().StringP("format", "f", "", "`<format>` table or json, overrides output.format")
	estimateCmd.Flags().String("plot-dir", "", "`<dir>` for mask diagnostic plots, overrides output.plot_dir")

	simulateCmd := &cobra.Command{
		Use:   "simulate [flags]",
		Short: "Generate a synthetic trial from a scenario script",
		Args:  cobra.NoArgs,
		RunE:  doSimulate,
	}
	simulateCmd.Flags().StringP("scenario", "s", "", "`<path>` to scenario YAML")
	simulateCmd.Flags().StringP("out", "o", "", "`<path>` of the trial file to write")
	simulateCmd.MarkFlagRequired("scenario")
	simulateCmd.MarkFlagRequired("out")

	summaryCmd := &cobra.Command{
		Use:   "summary [flags] <trial>...",
		Short: "Print sample statistics and mask ladder counts for trials",
		Args:  cobra.MinimumNArgs(1),
		RunE:  doSummary,
	}

	rootCmd.AddCommand(
		estimateCmd,
		simulateCmd,
		summaryCmd,
	)
	return rootCmd
}

// loadConfig reads --config and points the standard logger at the
// configured destination. The returned func releases the log file.
func loadConfig(cmd *cobra.Command) (config.Config, func(), error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config load failed: %w", err)
	}
	closer := logging.Configure(cfg.Log, false)
	return cfg, func() {
		if err := closer.Close(); err != nil {
			log.Printf("log close: %v", err)
		}
	}, nil
}
