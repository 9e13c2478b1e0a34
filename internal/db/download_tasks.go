package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/tender-ingest/internal/types"
)

// ErrTaskNotPending is returned when a state change targets a task that has
// already left the pending state.
var ErrTaskNotPending = errors.New("download task is not pending")

const taskColumns = `id, owner_id, kind, source_url, COALESCE(original_name, ''), COALESCE(cpv_code, ''),
	state, COALESCE(local_path, ''), COALESCE(error_message, ''), created_at, completed_at`

func scanTask(row pgx.Row) (types.DownloadTask, error) {
	var t types.DownloadTask
	var state string
	err := row.Scan(&t.ID, &t.OwnerID, &t.Kind, &t.SourceURL, &t.OriginalName, &t.CPVCode,
		&state, &t.LocalPath, &t.ErrorMessage, &t.CreatedAt, &t.CompletedAt)
	t.State = types.TaskState(state)
	return t, err
}

func collectTasks(rows pgx.Rows) ([]types.DownloadTask, error) {
	defer rows.Close()
	var tasks []types.DownloadTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read download tasks: %w", err)
	}
	return tasks, nil
}

// EnqueueDownloadTasks inserts pending tasks, ignoring source URLs that are
// already queued in any state. Returns the number of new tasks.
func (db *DB) EnqueueDownloadTasks(ctx context.Context, tasks []types.DownloadTask) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}
	inserted := 0
	err := db.inTx(ctx, groupDownloads, func(tx pgx.Tx) error {
		for _, t := range tasks {
			if t.SourceURL == "" {
				continue
			}
			tag, err := tx.Exec(ctx,
				`INSERT INTO download_tasks (owner_id, kind, source_url, original_name, cpv_code, state)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (source_url) DO NOTHING`,
				t.OwnerID, t.Kind, t.SourceURL, nullString(t.OriginalName), nullString(t.CPVCode),
				string(types.TaskStatePending),
			)
			if err != nil {
				return fmt.Errorf("failed to enqueue %s: %w", t.SourceURL, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// PendingOwners returns the distinct owner ids with at least one pending task
// of the given kind (any kind when empty), lowest first. A limit of 0 means
// no cap.
func (db *DB) PendingOwners(ctx context.Context, kind string, limit int) ([]int64, error) {
	query := `SELECT DISTINCT owner_id FROM download_tasks WHERE state = 'pending'`
	args := []any{}
	argNum := 1
	if kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argNum)
		args = append(args, kind)
		argNum++
	}
	query += " ORDER BY owner_id"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending owners: %w", err)
	}
	defer rows.Close()

	var owners []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan owner id: %w", err)
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

// PendingTasks returns the pending tasks of the given owners.
func (db *DB) PendingTasks(ctx context.Context, kind string, owners []int64) ([]types.DownloadTask, error) {
	if len(owners) == 0 {
		return nil, nil
	}
	query := `SELECT ` + taskColumns + ` FROM download_tasks
		WHERE state = 'pending' AND owner_id = ANY($1)`
	args := []any{owners}
	if kind != "" {
		query += " AND kind = $2"
		args = append(args, kind)
	}
	query += " ORDER BY owner_id, id"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending tasks: %w", err)
	}
	return collectTasks(rows)
}

// GetTask retrieves one task by id.
func (db *DB) GetTask(ctx context.Context, id int64) (*types.DownloadTask, error) {
	t, err := scanTask(db.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM download_tasks WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get download task: %w", err)
	}
	return &t, nil
}

// MarkDownloaded moves a pending task to downloaded with its local path.
func (db *DB) MarkDownloaded(ctx context.Context, id int64, localPath string) error {
	if localPath == "" {
		return fmt.Errorf("failed to mark task %d downloaded: empty local path", id)
	}
	return db.transition(ctx, id,
		`UPDATE download_tasks
		 SET state = 'downloaded', local_path = $2, error_message = NULL, completed_at = NOW()
		 WHERE id = $1 AND state = 'pending'`,
		localPath)
}

// MarkFailed moves a pending task to failed. The local path is left untouched.
func (db *DB) MarkFailed(ctx context.Context, id int64, message string) error {
	return db.transition(ctx, id,
		`UPDATE download_tasks
		 SET state = 'failed', error_message = $2, completed_at = NOW()
		 WHERE id = $1 AND state = 'pending'`,
		message)
}

// transition runs a guarded single-row update under the download group lock.
func (db *DB) transition(ctx context.Context, id int64, query string, arg string) error {
	l := db.groupLock(groupDownloads)
	l.Lock()
	tag, err := db.pool.Exec(ctx, query, id, arg)
	l.Unlock()
	if err != nil {
		return fmt.Errorf("failed to update download task %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: task %d", ErrTaskNotPending, id)
	}
	return nil
}

// DownloadedTasks returns every downloaded task of the given kind (any kind
// when empty), ordered by id.
func (db *DB) DownloadedTasks(ctx context.Context, kind string) ([]types.DownloadTask, error) {
	query := `SELECT ` + taskColumns + ` FROM download_tasks WHERE state = 'downloaded'`
	args := []any{}
	if kind != "" {
		query += " AND kind = $1"
		args = append(args, kind)
	}
	query += " ORDER BY id"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloaded tasks: %w", err)
	}
	return collectTasks(rows)
}

// RequeueFailed replaces failed tasks with fresh pending tasks for the same
// source URLs. The failed rows are removed rather than reset, so a task id
// never leaves a terminal state. Returns the number of requeued tasks.
func (db *DB) RequeueFailed(ctx context.Context, kind string) (int, error) {
	var requeued int
	err := db.inTx(ctx, groupDownloads, func(tx pgx.Tx) error {
		query := `DELETE FROM download_tasks WHERE state = 'failed'`
		args := []any{}
		if kind != "" {
			query += " AND kind = $1"
			args = append(args, kind)
		}
		query += ` RETURNING owner_id, kind, source_url, original_name, cpv_code`

		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to remove failed tasks: %w", err)
		}
		type removed struct {
			ownerID           int64
			kind, url         string
			originalName, cpv *string
		}
		var batch []removed
		for rows.Next() {
			var r removed
			if err := rows.Scan(&r.ownerID, &r.kind, &r.url, &r.originalName, &r.cpv); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan failed task: %w", err)
			}
			batch = append(batch, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to read failed tasks: %w", err)
		}

		for _, r := range batch {
			_, err := tx.Exec(ctx,
				`INSERT INTO download_tasks (owner_id, kind, source_url, original_name, cpv_code, state)
				 VALUES ($1, $2, $3, $4, $5, 'pending')`,
				r.ownerID, r.kind, r.url, r.originalName, r.cpv,
			)
			if err != nil {
				return fmt.Errorf("failed to requeue %s: %w", r.url, err)
			}
		}
		requeued = len(batch)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return requeued, nil
}

// TaskCounts returns the number of tasks per state.
func (db *DB) TaskCounts(ctx context.Context, kind string) (map[types.TaskState]int, error) {
	query := `SELECT state, COUNT(*) FROM download_tasks`
	args := []any{}
	if kind != "" {
		query += " WHERE kind = $1"
		args = append(args, kind)
	}
	query += " GROUP BY state"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count download tasks: %w", err)
	}
	defer rows.Close()

	counts := map[types.TaskState]int{
		types.TaskStatePending:    0,
		types.TaskStateDownloaded: 0,
		types.TaskStateFailed:     0,
	}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}
		counts[types.TaskState(state)] = n
	}
	return counts, rows.Err()
}
