package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/freyjabench/pkg/config"
	"github.com/ssargent/freyjabench/pkg/metrics"
	"github.com/ssargent/freyjabench/pkg/storage"
	"github.com/ssargent/freyjabench/pkg/workload"
)

// loadCmd represents the load command
var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Insert the initial workload records",
	Long: `Insert workload.record_count records into workload.table using
workload.threads workers.

Example:
  freyjabench load --records 100000 --threads 8`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhase(cmd, workload.PhaseLoad)
	},
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the transaction phase of the workload",
	Long: `Issue workload.operation_count operations chosen by the configured
read/update/insert/delete/scan proportions. With --metrics-addr, Prometheus
metrics are served while the run is in progress.

Example:
  freyjabench run --operations 100000 --metrics-addr :9100`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhase(cmd, workload.PhaseRun)
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(runCmd)

	for _, c := range []*cobra.Command{loadCmd, runCmd} {
		c.Flags().Int("records", 0, "Override workload.record_count")
		c.Flags().Int("threads", 0, "Override workload.threads")
		c.Flags().String("table", "", "Override workload.table")
		c.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	}
	runCmd.Flags().Int("operations", 0, "Override workload.operation_count")
}

func runPhase(cmd *cobra.Command, phase string) error {
	s, err := sessionFrom(cmd)
	if err != nil {
		return err
	}

	cfg := workloadConfig(cmd, s.cfg.Workload)
	metricsAddr := s.cfg.Metrics.Addr
	if cmd.Flags().Changed("metrics-addr") {
		metricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	}

	runner, err := workload.New(s.client, cfg,
		workload.WithLogger(s.log),
		workload.WithLoadRecorder(container.GetMetrics()))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	if metricsAddr != "" {
		handler := metrics.Handler(container.GetRegistry())
		g.Go(func() error {
			return metrics.Serve(ctx, metricsAddr, handler, s.log)
		})
	}

	var summary *workload.Summary
	g.Go(func() error {
		defer cancel()

		var err error
		if phase == workload.PhaseLoad {
			summary, err = runner.Load(ctx)
		} else {
			summary, err = runner.Run(ctx)
		}
		return err
	})

	err = g.Wait()
	if summary != nil {
		if stats, ok := s.client.Engine().(storage.StatsProvider); ok {
			st := stats.Stats()
			container.GetMetrics().UpdateStoreStats(st.Keys, st.DataSize)
		}
		if writeErr := summary.Write(cmd.OutOrStdout()); writeErr != nil && err == nil {
			err = writeErr
		}
	}
	if err != nil {
		return fmt.Errorf("%s phase failed: %w", phase, err)
	}
	return nil
}

func workloadConfig(cmd *cobra.Command, cfg config.Workload) config.Workload {
	if cmd.Flags().Changed("records") {
		cfg.RecordCount, _ = cmd.Flags().GetInt("records")
	}
	if cmd.Flags().Changed("threads") {
		cfg.Threads, _ = cmd.Flags().GetInt("threads")
	}
	if cmd.Flags().Changed("table") {
		cfg.Table, _ = cmd.Flags().GetString("table")
	}
	if cmd.Flags().Lookup("operations") != nil && cmd.Flags().Changed("operations") {
		cfg.OperationCount, _ = cmd.Flags().GetInt("operations")
	}
	return cfg
}
