package pipeline

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jonathan/tender-ingest/internal/assemble"
	"github.com/jonathan/tender-ingest/internal/config"
	"github.com/jonathan/tender-ingest/internal/db"
	"github.com/jonathan/tender-ingest/internal/extract"
	"github.com/jonathan/tender-ingest/internal/metrics"
	"github.com/jonathan/tender-ingest/internal/reconcile"
	"github.com/jonathan/tender-ingest/internal/types"
)

// Capturer saves the tabs of one tender as snapshot files.
type Capturer interface {
	Capture(ctx context.Context, s types.TenderSummary) ([]string, error)
}

// CaptureStats summarizes a capture stage run.
type CaptureStats struct {
	Pages     int             `json:"pages"`
	Listed    int             `json:"listed"`
	Reconcile reconcile.Stats `json:"reconcile"`
	Captured  int             `json:"captured"`
	Failed    int             `json:"failed"`
	Files     int             `json:"files"`
}

// LoadSearchResults reads saved search result pages and returns their
// summaries in page order.
func LoadSearchResults(pages []string, baseURL string, logger *zap.Logger) ([]types.TenderSummary, error) {
	asm, err := assemble.New(logger, &assemble.Options{BaseURL: baseURL})
	if err != nil {
		return nil, err
	}
	var all []types.TenderSummary
	for _, path := range pages {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open search page %s: %w", path, err)
		}
		doc, err := extract.Parse(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse search page %s: %w", path, err)
		}
		listing := asm.SearchResults(doc)
		all = append(all, listing.Summaries...)
	}
	return all, nil
}

// Capture reconciles search results against stored summaries and renders the
// tabs of every new or changed tender into the project's HTML directory. A
// summary is stored only after its tabs were captured, so a failed capture
// is retried by the next run.
func Capture(ctx context.Context, store Store, capturer Capturer, pc *config.ProcessingContext, summaries []types.TenderSummary, logger *zap.Logger) (*CaptureStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("cpv", pc.CPVCode), zap.String("stage", db.StageCapture))

	stats := &CaptureStats{Listed: len(summaries)}
	toProcess, rstats, err := reconcile.New(store, logger).Filter(ctx, summaries, pc.Force)
	if err != nil {
		if isFatal(err) {
			return nil, fmt.Errorf("capture stage aborted: %w", err)
		}
		return nil, err
	}
	stats.Reconcile = rstats
	metrics.SummariesReconciled.WithLabelValues(string(reconcile.ReasonNew)).Add(float64(rstats.New))
	metrics.SummariesReconciled.WithLabelValues(string(reconcile.ReasonChanged)).Add(float64(rstats.Changed))
	metrics.SummariesReconciled.WithLabelValues(string(reconcile.ReasonForced)).Add(float64(rstats.Forced))
	metrics.SummariesReconciled.WithLabelValues(string(reconcile.ReasonUnchanged)).Add(float64(rstats.Skipped))

	runID := startRun(ctx, store, db.StageCapture, pc.CPVCode, logger)

	var runErr error
	for _, s := range toProcess {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		paths, err := capturer.Capture(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			stats.Failed++
			logger.Warn("Failed to capture tender", zap.Int64("application_id", s.ApplicationID), zap.Error(err))
			continue
		}
		if err := store.SaveTenderSummaries(ctx, pc.CPVCode, []types.TenderSummary{s}); err != nil {
			if isFatal(err) {
				runErr = err
				break
			}
			stats.Failed++
			logger.Error("Failed to save tender summary", zap.Int64("application_id", s.ApplicationID), zap.Error(err))
			continue
		}
		stats.Captured++
		stats.Files += len(paths)
	}

	finishRun(store, runID, db.RunStats{
		Processed: stats.Captured,
		Skipped:   rstats.Skipped,
		Failed:    stats.Failed,
	}, runErr, logger)

	if runErr != nil {
		return stats, fmt.Errorf("capture stage aborted: %w", runErr)
	}
	logger.Info("Capture stage finished",
		zap.Int("listed", stats.Listed),
		zap.Int("captured", stats.Captured),
		zap.Int("skipped", rstats.Skipped),
		zap.Int("failed", stats.Failed))
	return stats, nil
}
