package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/tender-ingest/internal/queue"
	"github.com/jonathan/tender-ingest/internal/types"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Export the manifest of downloaded files",
	Long:  `Write task_id,owner_id,local_path for every downloaded file of one kind to the project's manifest CSV.`,
	RunE:  runManifest,
}

var manifestKind string

func init() {
	manifestCmd.Flags().StringVar(&manifestKind, "kind", types.TaskKindTenderDoc, "Task kind (tender_doc, agency_doc, contract_doc)")
	rootCmd.AddCommand(manifestCmd)
}

func runManifest(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	kind, err := parseKind(manifestKind)
	if err != nil {
		return err
	}
	pc, err := projectContext(cfg)
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

	path := pc.Paths.ManifestPath(kind)
	n, err := queue.ExportManifest(ctx, store, kind, path)
	if err != nil {
		return err
	}
	if n == 0 {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No downloaded %s files; manifest not written\n", kind)
		return nil
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", n, path)
	return nil
}
