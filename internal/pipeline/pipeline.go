// Package pipeline runs the ingest stages: capture renders tender tabs for
// new or changed search results, parse turns snapshot files into stored
// records and download tasks, and download drains the task queue.
package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/tender-ingest/internal/db"
	"github.com/jonathan/tender-ingest/internal/types"
)

// Store is the persistence used by the stages.
type Store interface {
	SaveTender(ctx context.Context, t *types.Tender) error
	SaveDocumentIndex(ctx context.Context, idx *types.DocumentIndex) (int, error)
	SaveBids(ctx context.Context, table *types.BidTable) error
	SaveAgencyDocs(ctx context.Context, agency *types.AgencyDocs) (int, error)
	SaveContractBundle(ctx context.Context, b *types.ContractBundle) (int, error)
	EnqueueDownloadTasks(ctx context.Context, tasks []types.DownloadTask) (int, error)

	TenderSummaries(ctx context.Context, applicationIDs []int64) (map[int64]types.TenderSummary, error)
	SaveTenderSummaries(ctx context.Context, cpvCode string, summaries []types.TenderSummary) error

	CreateRun(ctx context.Context, stage, cpvCode string) (uuid.UUID, error)
	CompleteRun(ctx context.Context, runID uuid.UUID, status string, stats db.RunStats) error
}

// isFatal reports whether err must abort the whole stage.
func isFatal(err error) bool {
	return errors.Is(err, db.ErrStoreUnavailable)
}

// startRun records the start of a stage. Failing to record it is logged and
// the stage continues without an audit row.
func startRun(ctx context.Context, store Store, stage, cpv string, logger *zap.Logger) uuid.UUID {
	runID, err := store.CreateRun(ctx, stage, cpv)
	if err != nil {
		logger.Warn("Failed to create run record", zap.String("stage", stage), zap.Error(err))
		return uuid.Nil
	}
	return runID
}

// finishRun records the outcome of a stage started with startRun.
func finishRun(store Store, runID uuid.UUID, stats db.RunStats, runErr error, logger *zap.Logger) {
	if runID == uuid.Nil {
		return
	}
	status := db.RunStatusCompleted
	if runErr != nil {
		status = db.RunStatusFailed
	}
	// The stage context may already be cancelled; the audit row is still written.
	if err := store.CompleteRun(context.Background(), runID, status, stats); err != nil {
		logger.Warn("Failed to complete run record", zap.String("run_id", runID.String()), zap.Error(err))
	}
}
