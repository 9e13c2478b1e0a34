package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/tender-ingest/internal/db"
	"github.com/jonathan/tender-ingest/internal/observability"
	"github.com/jonathan/tender-ingest/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show download queue counters and recent runs",
	RunE:  runStatus,
}

var statusRuns int

func init() {
	statusCmd.Flags().IntVar(&statusRuns, "runs", 10, "Number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Tasks map[string]map[types.TaskState]int `json:"tasks"`
	Runs  []db.Run                           `json:"runs"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rep := statusReport{Tasks: make(map[string]map[types.TaskState]int, len(taskKinds))}
	for _, kind := range taskKinds {
		counts, err := store.TaskCounts(ctx, kind)
		if err != nil {
			return err
		}
		rep.Tasks[kind] = counts
	}
	rep.Runs, err = store.ListRuns(ctx, "", statusRuns)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(cmd, rep)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintQueueStatus(rep.Tasks)
	for _, run := range rep.Runs {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s %-9s processed=%d failed=%d  %s\n",
			run.CreatedAt.Format("2006-01-02 15:04"), run.Stage, run.Status,
			run.Stats.Processed, run.Stats.Failed, run.ID)
	}
	return nil
}
