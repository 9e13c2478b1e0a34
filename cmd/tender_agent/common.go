package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/tender-ingest/internal/config"
	"github.com/jonathan/tender-ingest/internal/db"
	"github.com/jonathan/tender-ingest/internal/logging"
	"github.com/jonathan/tender-ingest/internal/observability"
	"github.com/jonathan/tender-ingest/internal/server"
	"github.com/jonathan/tender-ingest/internal/snapshot"
	"github.com/jonathan/tender-ingest/internal/types"
)

var (
	configPath  string
	flagCPV     string
	flagRoot    string
	flagDBURL   string
	flagWorkers int
	flagVerbose bool
	flagForce   bool
	flagJSON    bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	pf.StringVar(&flagCPV, "cpv", "", "Eight-digit CPV code of the project (defaults to TENDER_CPV_CODE env var)")
	pf.StringVar(&flagRoot, "root", "", "Directory holding the per-CPV project folders (defaults to TENDER_ROOT_DIR env var)")
	pf.StringVar(&flagDBURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
	pf.IntVar(&flagWorkers, "workers", 0, "Number of concurrent download workers")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Print detailed debug information")
	pf.BoolVar(&flagForce, "force", false, "Process every tender regardless of its stored state")
	pf.BoolVar(&flagJSON, "json", false, "Print stage results as JSON")
}

// resolveConfig loads the config file, applies explicitly set flags and fills
// the remaining fields from the environment and built-in defaults.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("cpv") {
		cfg.CPVCode = flagCPV
	}
	if flags.Changed("root") {
		cfg.RootDir = flagRoot
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = flagDBURL
	}
	if flags.Changed("workers") {
		cfg.Workers = flagWorkers
	}
	if flags.Changed("verbose") {
		cfg.Verbose = flagVerbose
	}
	if flags.Changed("force") {
		cfg.Force = flagForce
	}

	cfg = cfg.MergeWithDefaults(config.Defaults())
	if cfg.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// projectContext builds the processing context of the configured CPV code.
func projectContext(cfg config.Config) (*config.ProcessingContext, error) {
	if cfg.CPVCode == "" {
		return nil, fmt.Errorf("a CPV code is required (set --cpv, cpv_code or %s)", config.EnvCPVCode)
	}
	if cfg.RootDir == "" {
		return nil, fmt.Errorf("a root directory is required (set --root, root_dir or %s)", config.EnvRootDir)
	}
	return config.NewProcessingContext(cfg.CPVCode, cfg.RootDir, cfg.Force)
}

func openStore(ctx context.Context, cfg config.Config) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("a database URL is required (set --db-url, database_url or %s)", config.EnvDatabaseURL)
	}
	return db.Connect(ctx, cfg.DatabaseURL)
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// startOpsServer serves metrics and queue status on addr until ctx ends. An
// empty addr disables it.
func startOpsServer(ctx context.Context, addr string, store server.StatusStore, logger *zap.Logger) {
	if addr == "" {
		return
	}
	srv := server.New(server.Config{Addr: addr}, store, logger)
	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error("Ops server stopped", zap.Error(err))
		}
	}()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// report prints stage results as JSON with --json and as a text box otherwise.
func report(cmd *cobra.Command, v any, text func(p *observability.Printer)) {
	if flagJSON {
		_ = printJSON(cmd, v)
		return
	}
	text(observability.NewPrinter(cmd.OutOrStdout()))
}

func parseTabs(names []string) ([]snapshot.Tab, error) {
	tabs := make([]snapshot.Tab, 0, len(names))
	for _, name := range names {
		tab, err := snapshot.ParseTab(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		tabs = append(tabs, tab)
	}
	return tabs, nil
}

var taskKinds = []string{types.TaskKindTenderDoc, types.TaskKindAgencyDoc, types.TaskKindContract}

func parseKind(kind string) (string, error) {
	for _, k := range taskKinds {
		if k == kind {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown task kind %q (expected one of %s)", kind, strings.Join(taskKinds, ", "))
}
