// Package db provides PostgreSQL storage for assembled tender records and the
// download task queue.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable marks errors caused by losing the database connection.
// Callers abort the batch when they see it.
var ErrStoreUnavailable = errors.New("database unavailable")

// Table groups. Write transactions within one group are serialized.
const (
	groupTenders   = "tenders"
	groupDocuments = "documents"
	groupBids      = "bids"
	groupAgency    = "agency"
	groupContracts = "contracts"
	groupDownloads = "download_tasks"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", ErrStoreUnavailable, err)
	}

	return &DB{pool: pool, locks: make(map[string]*sync.Mutex)}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (db *DB) groupLock(group string) *sync.Mutex {
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.locks[group]
	if !ok {
		l = &sync.Mutex{}
		db.locks[group] = l
	}
	return l
}

// inTx runs fn in one transaction while holding the group's write lock. The
// transaction is rolled back unless fn succeeds and the commit goes through.
func (db *DB) inTx(ctx context.Context, group string, fn func(tx pgx.Tx) error) error {
	l := db.groupLock(group)
	l.Lock()
	defer l.Unlock()

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		return fmt.Errorf("%w: failed to begin transaction: %w", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateRun creates a new ingest run record and returns its ID
func (db *DB) CreateRun(ctx context.Context, stage, cpvCode string) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO ingest_runs (stage, cpv_code, status)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		stage, cpvCode, RunStatusRunning,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun marks an ingest run as finished and stores its counters
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status string, stats RunStats) error {
	jsonBytes, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal run stats: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`UPDATE ingest_runs SET status = $1, stats = $2, completed_at = NOW() WHERE id = $3`,
		status, jsonBytes, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun retrieves an ingest run by ID
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	var stats []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, stage, cpv_code, status, stats, created_at, completed_at
		 FROM ingest_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.Stage, &run.CPVCode, &run.Status, &stats, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &run.Stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run stats: %w", err)
		}
	}
	return &run, nil
}

// ListRuns retrieves recent ingest runs, optionally for one stage
func (db *DB) ListRuns(ctx context.Context, stage string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, stage, cpv_code, status, stats, created_at, completed_at FROM ingest_runs`
	args := []any{}
	if stage != "" {
		query += " WHERE stage = $1"
		args = append(args, stage)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var stats []byte
		if err := rows.Scan(&run.ID, &run.Stage, &run.CPVCode, &run.Status, &stats, &run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if len(stats) > 0 {
			if err := json.Unmarshal(stats, &run.Stats); err != nil {
				return nil, fmt.Errorf("failed to unmarshal run stats: %w", err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// nullTime converts a normalized "YYYY-MM-DD[ HH:MM:SS]" string to a nullable
// timestamp. Empty or unparseable input is NULL.
func nullTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{datetimeLayout, dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// nullString maps "" to NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullAmount maps the unknown amount 0 to NULL.
func nullAmount(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func nullInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
