package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/tender-ingest/internal/config"
	"github.com/jonathan/tender-ingest/internal/db"
	"github.com/jonathan/tender-ingest/internal/fetch"
	"github.com/jonathan/tender-ingest/internal/observability"
	"github.com/jonathan/tender-ingest/internal/pipeline"
	"github.com/jonathan/tender-ingest/internal/queue"
	"github.com/jonathan/tender-ingest/internal/types"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download pending files of one kind",
	Long: `Select a batch of tenders with pending download tasks of one kind, fetch their
files into the project's download directory and export the manifest of all
downloaded files of that kind.

The selected tender ids are saved so the same batch can be retried with
--use-last-batch.`,
	RunE: runDownload,
}

var (
	downloadKind          string
	downloadBatchSize     int
	downloadUseLastBatch  bool
	downloadRequeueFailed bool
	downloadRPS           float64
	downloadNoManifest    bool
)

func init() {
	downloadCmd.Flags().StringVar(&downloadKind, "kind", types.TaskKindTenderDoc, "Task kind (tender_doc, agency_doc, contract_doc)")
	downloadCmd.Flags().IntVar(&downloadBatchSize, "batch-size", 0, "Maximum number of tenders in the batch (0 for all)")
	downloadCmd.Flags().BoolVar(&downloadUseLastBatch, "use-last-batch", false, "Reuse the tender ids of the previous batch")
	downloadCmd.Flags().BoolVar(&downloadRequeueFailed, "requeue-failed", false, "Requeue failed tasks of this kind before selecting the batch")
	downloadCmd.Flags().Float64Var(&downloadRPS, "rps", 0, "Maximum fetches started per second (0 for no limit)")
	downloadCmd.Flags().BoolVar(&downloadNoManifest, "no-manifest", false, "Skip the manifest export")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	kind, err := parseKind(downloadKind)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.BatchSize = downloadBatchSize
	}
	if cmd.Flags().Changed("rps") {
		cfg.RequestsPerSecond = downloadRPS
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

	if downloadRequeueFailed {
		n, err := store.RequeueFailed(ctx, kind)
		if err != nil {
			return err
		}
		logger.Info("Requeued failed tasks", zap.String("kind", kind), zap.Int("count", n))
	}

	stats, err := runDownloadStage(ctx, store, pc, cfg, kind, downloadUseLastBatch, downloadNoManifest, logger)
	if stats != nil {
		report(cmd, stats, func(p *observability.Printer) { p.PrintDownloadStats(kind, stats) })
	}
	return err
}

// runDownloadStage runs one download batch with the configured throughput.
func runDownloadStage(ctx context.Context, store *db.DB, pc *config.ProcessingContext, cfg config.Config,
	kind string, useLastBatch, skipManifest bool, logger *zap.Logger) (*pipeline.DownloadStats, error) {
	fetcher := fetch.NewHTTPFetcher(&fetch.Options{
		Timeout:   cfg.TaskTimeout(),
		UserAgent: fetch.DefaultUserAgent,
	})
	return pipeline.Download(ctx, store, fetcher, pc, pipeline.DownloadOptions{
		Kind:         kind,
		BatchSize:    cfg.BatchSize,
		UseLastBatch: useLastBatch,
		SkipManifest: skipManifest,
		Runner: queue.Options{
			Workers:           cfg.Workers,
			TaskTimeout:       cfg.TaskTimeout(),
			RequestsPerSecond: cfg.RequestsPerSecond,
		},
	}, logger)
}
