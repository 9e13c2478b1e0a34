package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/tender-ingest/internal/config"
	"github.com/jonathan/tender-ingest/internal/db"
	"github.com/jonathan/tender-ingest/internal/pipeline"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Drain the download queue on a schedule",
	Long: `Run the download stage for every task kind on a cron schedule until interrupted.
One cycle runs immediately. A cycle is skipped while the previous one is still
running.

With --metrics-addr an HTTP endpoint serves /metrics, /healthz, /status and /runs.`,
	RunE: runSchedule,
}

var (
	scheduleSpec        string
	scheduleKinds       []string
	scheduleWithParse   bool
	scheduleMetricsAddr string
)

func init() {
	scheduleCmd.Flags().StringVar(&scheduleSpec, "schedule", "", "Cron spec (defaults to schedule from config or "+config.DefaultSchedule+")")
	scheduleCmd.Flags().StringSliceVar(&scheduleKinds, "kinds", taskKinds, "Task kinds drained by each cycle")
	scheduleCmd.Flags().BoolVar(&scheduleWithParse, "with-parse", false, "Parse snapshots before downloading in each cycle")
	scheduleCmd.Flags().StringVar(&scheduleMetricsAddr, "metrics-addr", "", "Address for the metrics and status endpoint, e.g. :9090")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("schedule") {
		cfg.Schedule = scheduleSpec
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = scheduleMetricsAddr
	}
	kinds := make([]string, 0, len(scheduleKinds))
	for _, k := range scheduleKinds {
		kind, err := parseKind(k)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}
	pc, err := projectContext(cfg)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	startOpsServer(ctx, cfg.MetricsAddr, store, logger)

	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	c := cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.SkipIfStillRunning(cronLogger)))
	job := cron.FuncJob(func() { runCycle(ctx, store, pc, cfg, kinds, logger) })
	id, err := c.AddJob(cfg.Schedule, job)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}

	c.Start()
	logger.Info("Scheduler started", zap.String("schedule", cfg.Schedule), zap.Strings("kinds", kinds))

	// One cycle right away so the queue drains without waiting for the first tick.
	go c.Entry(id).WrappedJob.Run()

	<-ctx.Done()
	logger.Info("Stopping scheduler")
	<-c.Stop().Done()
	return nil
}

// runCycle runs one scheduled pass. Errors are logged; the next tick retries.
func runCycle(ctx context.Context, store *db.DB, pc *config.ProcessingContext, cfg config.Config, kinds []string, logger *zap.Logger) {
	if scheduleWithParse {
		if _, err := pipeline.Parse(ctx, store, pc, pipeline.ParseOptions{Workers: cfg.ParseWorkers, BaseURL: cfg.BaseURL}, logger); err != nil {
			logger.Warn("Scheduled parse failed", zap.Error(err))
		}
	}
	for _, kind := range kinds {
		if ctx.Err() != nil {
			return
		}
		if _, err := runDownloadStage(ctx, store, pc, cfg, kind, false, false, logger); err != nil {
			logger.Error("Scheduled download failed", zap.String("kind", kind), zap.Error(err))
		}
	}
}
