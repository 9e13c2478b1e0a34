package queue

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// ManifestHeader is the first row of every manifest.
var ManifestHeader = []string{"task_id", "owner_id", "local_path"}

// ExportManifest writes one row per downloaded task of the given kind to
// path and returns the row count. When nothing is downloaded no file is
// written.
func ExportManifest(ctx context.Context, store Store, kind, path string) (int, error) {
	tasks, err := store.DownloadedTasks(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("failed to load downloaded tasks: %w", err)
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create manifest %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(ManifestHeader); err != nil {
		return 0, fmt.Errorf("failed to write manifest header: %w", err)
	}
	for _, t := range tasks {
		row := []string{strconv.FormatInt(t.ID, 10), strconv.FormatInt(t.OwnerID, 10), t.LocalPath}
		if err := w.Write(row); err != nil {
			return 0, fmt.Errorf("failed to write manifest row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to close manifest: %w", err)
	}
	return len(tasks), nil
}
