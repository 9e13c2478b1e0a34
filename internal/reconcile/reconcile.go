// Package reconcile decides whether a tender seen on a search page needs to be
// captured and parsed again.
package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/tender-ingest/internal/types"
)

// Reason explains a Decision.
type Reason string

// Decision reasons
const (
	ReasonForced    Reason = "forced"
	ReasonNew       Reason = "new"
	ReasonChanged   Reason = "changed"
	ReasonUnchanged Reason = "unchanged"
)

// Decision is the outcome of comparing a fresh summary with the stored one.
type Decision struct {
	Process bool
	Reason  Reason
	// Changed lists the compared fields that differ. Empty unless Reason is
	// ReasonChanged.
	Changed []string
}

// ShouldProcess compares tender number, start date, end date and status.
// Nothing else is considered: a tender whose other attributes changed while
// these four stayed the same is skipped.
func ShouldProcess(fresh types.TenderSummary, existing *types.TenderSummary, force bool) Decision {
	if force {
		return Decision{Process: true, Reason: ReasonForced}
	}
	if existing == nil {
		return Decision{Process: true, Reason: ReasonNew}
	}

	var changed []string
	if fresh.TenderNumber != existing.TenderNumber {
		changed = append(changed, "tender_number")
	}
	if fresh.StartDate != existing.StartDate {
		changed = append(changed, "start_date")
	}
	if fresh.EndDate != existing.EndDate {
		changed = append(changed, "end_date")
	}
	if fresh.Status != existing.Status {
		changed = append(changed, "status")
	}
	if len(changed) == 0 {
		return Decision{Reason: ReasonUnchanged}
	}
	return Decision{Process: true, Reason: ReasonChanged, Changed: changed}
}

// SummaryStore reads previously stored summaries keyed by application id.
type SummaryStore interface {
	TenderSummaries(ctx context.Context, applicationIDs []int64) (map[int64]types.TenderSummary, error)
}

// Stats counts decisions made by one Filter call.
type Stats struct {
	Processed int
	Skipped   int
	New       int
	Changed   int
	Forced    int
}

// Reconciler filters search results against stored summaries.
type Reconciler struct {
	store  SummaryStore
	logger *zap.Logger
}

// New creates a Reconciler. A nil logger discards output.
func New(store SummaryStore, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, logger: logger}
}

// Filter returns the summaries that need processing, in input order. Stored
// summaries are read once for the whole batch. Duplicate application ids keep
// their first occurrence.
func (r *Reconciler) Filter(ctx context.Context, fresh []types.TenderSummary, force bool) ([]types.TenderSummary, Stats, error) {
	var stats Stats
	if len(fresh) == 0 {
		return nil, stats, nil
	}

	var existing map[int64]types.TenderSummary
	if !force {
		ids := make([]int64, 0, len(fresh))
		for _, s := range fresh {
			ids = append(ids, s.ApplicationID)
		}
		var err error
		existing, err = r.store.TenderSummaries(ctx, ids)
		if err != nil {
			return nil, stats, fmt.Errorf("failed to load stored summaries: %w", err)
		}
	}

	seen := make(map[int64]bool, len(fresh))
	var out []types.TenderSummary
	for _, s := range fresh {
		if seen[s.ApplicationID] {
			continue
		}
		seen[s.ApplicationID] = true

		var prev *types.TenderSummary
		if e, ok := existing[s.ApplicationID]; ok {
			prev = &e
		}
		d := ShouldProcess(s, prev, force)
		switch d.Reason {
		case ReasonForced:
			stats.Forced++
		case ReasonNew:
			stats.New++
		case ReasonChanged:
			stats.Changed++
			r.logger.Debug("tender changed",
				zap.Int64("application_id", s.ApplicationID),
				zap.Strings("fields", d.Changed))
		}
		if !d.Process {
			stats.Skipped++
			continue
		}
		stats.Processed++
		out = append(out, s)
	}

	r.logger.Info("reconciled search results",
		zap.Int("processed", stats.Processed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("new", stats.New),
		zap.Int("changed", stats.Changed),
		zap.Int("forced", stats.Forced))
	return out, stats, nil
}
