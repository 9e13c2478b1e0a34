package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/tender-ingest/internal/fetch"
	"github.com/jonathan/tender-ingest/internal/observability"
	"github.com/jonathan/tender-ingest/internal/pipeline"
)

var captureCmd = &cobra.Command{
	Use:   "capture <search-page.html>...",
	Short: "Capture the tabs of new or changed tenders",
	Long: `Read saved search result pages, compare every listed tender with its stored
summary and render the tabs of new or changed tenders with a headless browser
into the project's HTML directory. Requires Chrome.

With --parse the captured snapshots are parsed right away.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCapture,
}

var (
	captureTabsFlag   []string
	captureSettle     time.Duration
	captureTabTimeout time.Duration
	captureParse      bool
)

func init() {
	captureCmd.Flags().StringSliceVar(&captureTabsFlag, "tabs", nil, "Only capture these tabs (defaults to all)")
	captureCmd.Flags().DurationVar(&captureSettle, "settle", time.Second, "Wait after the page body is ready")
	captureCmd.Flags().DurationVar(&captureTabTimeout, "tab-timeout", fetch.DefaultTimeout, "Timeout for rendering one tab")
	captureCmd.Flags().BoolVar(&captureParse, "parse", false, "Parse the snapshots after capturing")
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	tabs, err := parseTabs(captureTabsFlag)
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

	summaries, err := pipeline.LoadSearchResults(args, cfg.BaseURL, logger)
	if err != nil {
		return err
	}
	logger.Info("Loaded search results", zap.Int("pages", len(args)), zap.Int("tenders", len(summaries)))

	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	capturer := fetch.NewTabCapturer(fetch.CaptureOptions{
		ControllerURL: cfg.ControllerURL,
		OutputDir:     pc.Paths.HTMLDir,
		TabTimeout:    captureTabTimeout,
		Settle:        captureSettle,
		Tabs:          tabs,
	}, nil, logger)

	stats, err := pipeline.Capture(ctx, store, capturer, pc, summaries, logger)
	if stats != nil {
		stats.Pages = len(args)
		report(cmd, stats, func(p *observability.Printer) { p.PrintCaptureStats(stats) })
	}
	if err != nil || !captureParse || stats.Captured == 0 {
		return err
	}

	parseStats, err := pipeline.Parse(ctx, store, pc, pipeline.ParseOptions{
		Workers: cfg.ParseWorkers,
		Tabs:    tabs,
		BaseURL: cfg.BaseURL,
	}, logger)
	if parseStats != nil {
		report(cmd, parseStats, func(p *observability.Printer) { p.PrintParseStats(parseStats) })
	}
	return err
}
