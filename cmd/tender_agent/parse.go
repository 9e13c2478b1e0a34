package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/tender-ingest/internal/observability"
	"github.com/jonathan/tender-ingest/internal/pipeline"
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse saved snapshots into the database",
	Long: `Parse every pg_{tender}_{application}_{tab}.html snapshot in the project's HTML
directory, store the assembled records and enqueue the files they reference.`,
	RunE: runParse,
}

var (
	parseTabsFlag []string
	parseBaseURL  string
)

func init() {
	parseCmd.Flags().StringSliceVar(&parseTabsFlag, "tabs", nil, "Only parse these tabs (app_main, app_docs, app_bids, agency_docs, agr_docs)")
	parseCmd.Flags().StringVar(&parseBaseURL, "base-url", "", "Portal URL that relative document links resolve against")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("base-url") {
		cfg.BaseURL = parseBaseURL
	}
	tabs, err := parseTabs(parseTabsFlag)
	if err != nil {
		return err
	}
	pc, err := projectContext(cfg)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := pipeline.Parse(ctx, store, pc, pipeline.ParseOptions{
		Workers: cfg.ParseWorkers,
		Tabs:    tabs,
		BaseURL: cfg.BaseURL,
	}, logger)
	if stats != nil {
		report(cmd, stats, func(p *observability.Printer) { p.PrintParseStats(stats) })
	}
	return err
}
