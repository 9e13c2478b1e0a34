package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/tender-ingest/internal/config"
	"github.com/jonathan/tender-ingest/internal/db"
	"github.com/jonathan/tender-ingest/internal/queue"
)

// DownloadOptions configures the download stage.
type DownloadOptions struct {
	Kind         string
	BatchSize    int
	UseLastBatch bool
	Runner       queue.Options
	// SkipManifest disables the manifest export after the batch.
	SkipManifest bool
}

// DownloadStats summarizes a download stage run.
type DownloadStats struct {
	Owners       int          `json:"owners"`
	Tasks        int          `json:"tasks"`
	Result       queue.Result `json:"result"`
	ManifestRows int          `json:"manifest_rows"`
	ManifestPath string       `json:"manifest_path,omitempty"`
}

// DownloadStore is the persistence used by the download stage.
type DownloadStore interface {
	queue.Store
	Store
}

// Download selects a batch of owners with pending tasks of one kind, fetches
// their files and exports the manifest of downloaded files.
func Download(ctx context.Context, store DownloadStore, fetcher queue.Fetcher, pc *config.ProcessingContext, opts DownloadOptions, logger *zap.Logger) (*DownloadStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("cpv", pc.CPVCode), zap.String("stage", db.StageDownload), zap.String("kind", opts.Kind))

	batch, err := queue.SelectBatch(ctx, store, queue.Selection{
		Kind:         opts.Kind,
		BatchSize:    opts.BatchSize,
		UseLastBatch: opts.UseLastBatch,
		ProjectDir:   pc.Paths.Base,
	})
	if err != nil {
		return nil, err
	}
	stats := &DownloadStats{Owners: len(batch.Owners), Tasks: len(batch.Tasks)}
	if len(batch.Tasks) == 0 {
		logger.Info("No pending files to download", zap.Int("owners", len(batch.Owners)))
		return stats, nil
	}

	runID := startRun(ctx, store, db.StageDownload, pc.CPVCode, logger)

	ropts := opts.Runner
	ropts.Dir = pc.Paths.DownloadDir(opts.Kind)
	ropts.CPVCode = pc.CPVCode
	result, runErr := queue.NewRunner(store, fetcher, ropts, logger).Run(ctx, batch.Tasks)
	stats.Result = result

	finishRun(store, runID, db.RunStats{
		Processed: result.Downloaded,
		Skipped:   result.Pending,
		Failed:    result.Failed,
	}, runErr, logger)

	// Already committed transitions stand even when the batch was cut short,
	// so the manifest is exported either way.
	if !opts.SkipManifest {
		path := pc.Paths.ManifestPath(opts.Kind)
		n, err := queue.ExportManifest(context.WithoutCancel(ctx), store, opts.Kind, path)
		if err != nil {
			logger.Error("Failed to export manifest", zap.Error(err))
		} else if n > 0 {
			stats.ManifestRows = n
			stats.ManifestPath = path
		}
	}

	if runErr != nil {
		return stats, fmt.Errorf("download stage aborted: %w", runErr)
	}
	logger.Info("Download stage finished",
		zap.Int("owners", stats.Owners),
		zap.Int("downloaded", result.Downloaded),
		zap.Int("failed", result.Failed),
		zap.Int("pending", result.Pending))
	return stats, nil
}
