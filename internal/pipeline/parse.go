package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/tender-ingest/internal/assemble"
	"github.com/jonathan/tender-ingest/internal/config"
	"github.com/jonathan/tender-ingest/internal/db"
	"github.com/jonathan/tender-ingest/internal/metrics"
	"github.com/jonathan/tender-ingest/internal/snapshot"
	"github.com/jonathan/tender-ingest/internal/types"
)

// ParseOptions configures the parse stage.
type ParseOptions struct {
	Workers int
	// Tabs restricts the stage to some tabs; empty means all.
	Tabs    []snapshot.Tab
	BaseURL string
}

// ParseStats summarizes a parse stage run.
type ParseStats struct {
	Files        int            `json:"files"`
	Saved        int            `json:"saved"`
	Skipped      int            `json:"skipped"`
	Failed       int            `json:"failed"`
	Unrecognized int            `json:"unrecognized"`
	Enqueued     int            `json:"enqueued"`
	ByTab        map[string]int `json:"by_tab"`
}

// Parse assembles every snapshot in the project's HTML directory and stores
// the records, one transaction per file. Files with an unknown layout are
// skipped and failures of single files are logged; the stage aborts only
// when the directory holds no snapshots or the store becomes unreachable.
func Parse(ctx context.Context, store Store, pc *config.ProcessingContext, opts ParseOptions, logger *zap.Logger) (*ParseStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("cpv", pc.CPVCode), zap.String("stage", db.StageParse))

	listing, err := snapshot.List(pc.Paths.HTMLDir, opts.Tabs...)
	if err != nil {
		return nil, err
	}
	if len(listing.Snapshots) == 0 {
		return nil, fmt.Errorf("%w: no snapshot in %s matches the requested tabs", snapshot.ErrNoSnapshots, pc.Paths.HTMLDir)
	}
	for _, path := range listing.Unrecognized {
		logger.Warn("Ignoring file outside the naming convention", zap.String("file", path))
	}

	asm, err := assemble.New(logger, &assemble.Options{BaseURL: opts.BaseURL, CPVCode: pc.CPVCode})
	if err != nil {
		return nil, err
	}

	runID := startRun(ctx, store, db.StageParse, pc.CPVCode, logger)
	if runID != uuid.Nil {
		pc.RunID = runID
		logger = logger.With(zap.String("run_id", runID.String()))
	}

	stats := &ParseStats{
		Files:        len(listing.Snapshots),
		Unrecognized: len(listing.Unrecognized),
		ByTab:        make(map[string]int),
	}
	var mu sync.Mutex

	workers := opts.Workers
	if workers <= 0 {
		workers = config.DefaultParseWorkers
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, s := range listing.Snapshots {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			enqueued, err := parseFile(gCtx, store, asm, s, pc.CPVCode)
			outcome := "saved"

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				stats.Saved++
				stats.Enqueued += enqueued
				stats.ByTab[string(s.Tab)]++
			case errors.Is(err, assemble.ErrUnrecognizedShape):
				outcome = "skipped"
				stats.Skipped++
				logger.Warn("Skipping snapshot", zap.String("file", s.Name()), zap.Error(err))
			case isFatal(err):
				return err
			case gCtx.Err() != nil:
				return gCtx.Err()
			default:
				outcome = "failed"
				stats.Failed++
				logger.Error("Failed to parse snapshot", zap.String("file", s.Name()), zap.Error(err))
			}
			metrics.FilesParsed.WithLabelValues(string(s.Tab), outcome).Inc()
			return nil
		})
	}
	err = g.Wait()

	finishRun(store, runID, db.RunStats{
		Processed: stats.Saved,
		Skipped:   stats.Skipped,
		Failed:    stats.Failed,
		Enqueued:  stats.Enqueued,
	}, err, logger)

	if err != nil {
		return stats, fmt.Errorf("parse stage aborted: %w", err)
	}
	logger.Info("Parse stage finished",
		zap.Int("files", stats.Files),
		zap.Int("saved", stats.Saved),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("enqueued", stats.Enqueued))
	return stats, nil
}

// parseFile assembles and stores one snapshot and enqueues its files. It
// returns the number of new download tasks.
func parseFile(ctx context.Context, store Store, asm *assemble.Assembler, s snapshot.Snapshot, cpv string) (int, error) {
	out, err := asm.AssembleFile(s)
	if err != nil {
		return 0, err
	}

	var docs []types.Document
	switch {
	case out.Tender != nil:
		err = store.SaveTender(ctx, out.Tender)
		metrics.RecordsSaved.WithLabelValues("tender").Inc()
	case out.Documents != nil:
		_, err = store.SaveDocumentIndex(ctx, out.Documents)
		docs = out.Documents.Documents
		metrics.RecordsSaved.WithLabelValues("document").Add(float64(len(docs)))
	case out.Bids != nil:
		err = store.SaveBids(ctx, out.Bids)
		metrics.RecordsSaved.WithLabelValues("bid").Add(float64(len(out.Bids.Bids)))
	case out.Agency != nil:
		_, err = store.SaveAgencyDocs(ctx, out.Agency)
		docs = out.Agency.Documents
		metrics.RecordsSaved.WithLabelValues("document").Add(float64(len(docs)))
	case out.Contract != nil:
		_, err = store.SaveContractBundle(ctx, out.Contract)
		docs = out.Contract.Documents
		metrics.RecordsSaved.WithLabelValues("contract").Inc()
	}
	if err != nil {
		return 0, err
	}

	tasks := make([]types.DownloadTask, 0, len(docs))
	for _, d := range docs {
		if d.Link == "" {
			continue
		}
		tasks = append(tasks, types.NewDownloadTask(d, cpv))
	}
	if len(tasks) == 0 {
		return 0, nil
	}
	n, err := store.EnqueueDownloadTasks(ctx, tasks)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue downloads for %s: %w", s.Name(), err)
	}
	return n, nil
}
