package queue

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonathan/tender-ingest/internal/types"
)

// LastBatchFile is the name of the file, under the project root, holding the
// owner ids of the most recent fresh selection.
const LastBatchFile = ".last_batch_ids.txt"

// ErrNoLastBatch is returned when a last-batch selection is requested but no
// prior selection was recorded.
var ErrNoLastBatch = errors.New("no last batch recorded")

// Store is the persistence the queue needs.
type Store interface {
	PendingOwners(ctx context.Context, kind string, limit int) ([]int64, error)
	PendingTasks(ctx context.Context, kind string, owners []int64) ([]types.DownloadTask, error)
	MarkDownloaded(ctx context.Context, id int64, localPath string) error
	MarkFailed(ctx context.Context, id int64, message string) error
	DownloadedTasks(ctx context.Context, kind string) ([]types.DownloadTask, error)
}

// Selection controls which owners a batch covers.
type Selection struct {
	// Kind restricts the batch to one task kind; empty means all kinds.
	Kind string
	// BatchSize caps the number of owners; 0 means no cap.
	BatchSize int
	// UseLastBatch reuses the owner ids recorded by the previous fresh selection.
	UseLastBatch bool
	// ProjectDir holds the last-batch file.
	ProjectDir string
}

// Batch is a set of owners and their pending tasks.
type Batch struct {
	Owners []int64
	Tasks  []types.DownloadTask
}

// SelectBatch picks the owners to process and loads their pending tasks. A
// fresh selection overwrites the last-batch file; a last-batch selection
// reads it and leaves it unchanged.
func SelectBatch(ctx context.Context, store Store, sel Selection) (*Batch, error) {
	var owners []int64
	if sel.UseLastBatch {
		ids, err := ReadLastBatch(sel.ProjectDir)
		if err != nil {
			return nil, err
		}
		owners = ids
	} else {
		ids, err := store.PendingOwners(ctx, sel.Kind, sel.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to select pending owners: %w", err)
		}
		owners = ids
		if sel.ProjectDir != "" {
			if err := WriteLastBatch(sel.ProjectDir, owners); err != nil {
				return nil, err
			}
		}
	}

	batch := &Batch{Owners: owners}
	if len(owners) == 0 {
		return batch, nil
	}
	tasks, err := store.PendingTasks(ctx, sel.Kind, owners)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending tasks: %w", err)
	}
	batch.Tasks = tasks
	return batch, nil
}

// WriteLastBatch records owner ids, one per line.
func WriteLastBatch(projectDir string, owners []int64) error {
	var b strings.Builder
	for _, id := range owners {
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteByte('\n')
	}
	path := filepath.Join(projectDir, LastBatchFile)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write last batch file %s: %w", path, err)
	}
	return nil
}

// ReadLastBatch loads the owner ids of the last fresh selection. Blank lines
// are ignored; a non-numeric line is an error.
func ReadLastBatch(projectDir string) ([]int64, error) {
	path := filepath.Join(projectDir, LastBatchFile)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found, run a selection without --use-last-batch first", ErrNoLastBatch, path)
		}
		return nil, fmt.Errorf("failed to open last batch file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var ids []int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q in %s: %w", line, path, err)
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read last batch file: %w", err)
	}
	return ids, nil
}
