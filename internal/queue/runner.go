package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jonathan/tender-ingest/internal/db"
	"github.com/jonathan/tender-ingest/internal/metrics"
	"github.com/jonathan/tender-ingest/internal/types"
)

// Default runner settings
const (
	DefaultWorkers     = 4
	DefaultTaskTimeout = 60 * time.Second
)

// Fetcher transfers the bytes at sourceURL into dst and reports the response
// content type.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string, dst io.Writer) (contentType string, err error)
}

// Options configures a Runner.
type Options struct {
	Workers     int
	TaskTimeout time.Duration
	// RequestsPerSecond paces fetch starts across all workers; 0 disables pacing.
	RequestsPerSecond float64
	// Dir receives the downloaded files.
	Dir string
	// CPVCode is embedded in local file names.
	CPVCode string
}

// Result counts the outcome of one Run.
type Result struct {
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`
	// Pending counts tasks left untouched because the run was cancelled or
	// another writer moved them first.
	Pending int `json:"pending"`
}

// Runner downloads tasks with a bounded pool of workers. Each worker owns one
// task from fetch to committed state change.
type Runner struct {
	store   Store
	fetcher Fetcher
	opts    Options
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRunner creates a Runner. Zero options take the defaults.
func NewRunner(store Store, fetcher Fetcher, opts Options, logger *zap.Logger) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Runner{store: store, fetcher: fetcher, opts: opts, limiter: limiter, logger: logger}
}

// Run processes tasks until all are done or ctx is cancelled. Fetch and file
// errors fail the task and the run continues. A store error other than a lost
// race stops the run and is returned; tasks not yet committed stay pending.
func (r *Runner) Run(ctx context.Context, tasks []types.DownloadTask) (Result, error) {
	if err := os.MkdirAll(r.opts.Dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create download directory: %w", err)
	}

	var downloaded, failed atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for _, task := range tasks {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			state, err := r.process(gCtx, task)
			switch state {
			case types.TaskStateDownloaded:
				downloaded.Add(1)
			case types.TaskStateFailed:
				failed.Add(1)
			}
			return err
		})
	}
	err := g.Wait()

	res := Result{Downloaded: int(downloaded.Load()), Failed: int(failed.Load())}
	res.Pending = len(tasks) - res.Downloaded - res.Failed
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return res, err
}

// process runs one task and returns the state it committed, or pending when
// nothing was committed.
func (r *Runner) process(ctx context.Context, task types.DownloadTask) (types.TaskState, error) {
	log := r.logger.With(zap.Int64("task_id", task.ID), zap.Int64("owner_id", task.OwnerID))

	if err := checkTransition(task, types.TaskStateDownloaded); err != nil {
		log.Warn("Skipping task", zap.Error(err))
		return types.TaskStatePending, nil
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return types.TaskStatePending, nil
		}
	}
	if ctx.Err() != nil {
		return types.TaskStatePending, nil
	}

	localPath, taskErr := r.download(ctx, task)
	if ctx.Err() != nil {
		// Cancelled mid-flight: discard the file and leave the task pending.
		if localPath != "" {
			_ = os.Remove(localPath)
		}
		return types.TaskStatePending, nil
	}

	if taskErr != nil {
		log.Warn("Download failed", zap.String("url", task.SourceURL), zap.Error(taskErr))
		return r.commit(ctx, task, types.TaskStateFailed, r.store.MarkFailed(ctx, task.ID, taskErr.Error()))
	}

	err := r.store.MarkDownloaded(ctx, task.ID, localPath)
	if err != nil {
		_ = os.Remove(localPath)
	} else {
		log.Debug("Downloaded", zap.String("path", localPath))
	}
	return r.commit(ctx, task, types.TaskStateDownloaded, err)
}

// commit interprets the result of a state change.
func (r *Runner) commit(ctx context.Context, task types.DownloadTask, to types.TaskState, err error) (types.TaskState, error) {
	if err == nil {
		metrics.DownloadTasks.WithLabelValues(task.Kind, string(to)).Inc()
		return to, nil
	}
	if ctx.Err() != nil {
		return types.TaskStatePending, nil
	}
	if errors.Is(err, db.ErrTaskNotPending) {
		r.logger.Warn("Task already left pending", zap.Int64("task_id", task.ID))
		return types.TaskStatePending, nil
	}
	return types.TaskStatePending, fmt.Errorf("failed to record task %d as %s: %w", task.ID, to, err)
}

// download fetches the task into a temp file under the download directory and
// renames it to {taskID}_{cpv}_{owner}{ext}. It returns the final path, or the
// temp path when the fetch was interrupted by cancellation.
func (r *Runner) download(ctx context.Context, task types.DownloadTask) (string, error) {
	tmp, err := os.CreateTemp(r.opts.Dir, fmt.Sprintf("temp_%d_*", task.ID))
	if err != nil {
		return "", &TaskError{TaskID: task.ID, Message: "failed to create temp file", Cause: err}
	}
	tmpPath := tmp.Name()

	taskCtx, cancel := context.WithTimeout(ctx, r.opts.TaskTimeout)
	start := time.Now()
	contentType, fetchErr := r.fetcher.Fetch(taskCtx, task.SourceURL, tmp)
	cancel()
	metrics.ObserveFetch(task.Kind, start)
	closeErr := tmp.Close()

	if ctx.Err() != nil {
		return tmpPath, nil
	}
	if fetchErr != nil {
		_ = os.Remove(tmpPath)
		if errors.Is(fetchErr, context.DeadlineExceeded) {
			return "", &TaskError{TaskID: task.ID, Message: fmt.Sprintf("fetch timed out after %s", r.opts.TaskTimeout), Cause: fetchErr}
		}
		return "", &TaskError{TaskID: task.ID, Message: "fetch failed", Cause: fetchErr}
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return "", &TaskError{TaskID: task.ID, Message: "failed to write file", Cause: closeErr}
	}

	ext := ResolveExtension(contentType, task.SourceURL, task.OriginalName, tmpPath)
	cpv := task.CPVCode
	if cpv == "" {
		cpv = r.opts.CPVCode
	}
	finalPath := filepath.Join(r.opts.Dir, fmt.Sprintf("%d_%s_%d%s", task.ID, cpv, task.OwnerID, ext))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", &TaskError{TaskID: task.ID, Message: "failed to rename file", Cause: err}
	}
	return finalPath, nil
}
