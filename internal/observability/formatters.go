// Package observability provides formatted stage summaries for the CLI.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/tender-ingest/internal/pipeline"
	"github.com/jonathan/tender-ingest/internal/types"
)

// boxWidth is the default width for formatted output boxes
const boxWidth = 60

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most width runes.
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// PrintParseStats outputs the counters of a parse stage run.
func (p *Printer) PrintParseStats(stats *pipeline.ParseStats) {
	if stats == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Snapshots:     %d\n", stats.Files))
	sb.WriteString(fmt.Sprintf("Saved:         %d\n", stats.Saved))
	sb.WriteString(fmt.Sprintf("Skipped:       %d\n", stats.Skipped))
	sb.WriteString(fmt.Sprintf("Failed:        %d\n", stats.Failed))
	if stats.Unrecognized > 0 {
		sb.WriteString(fmt.Sprintf("Unrecognized:  %d\n", stats.Unrecognized))
	}
	sb.WriteString(fmt.Sprintf("New downloads: %d\n", stats.Enqueued))

	if len(stats.ByTab) > 0 {
		tabs := make([]string, 0, len(stats.ByTab))
		for tab := range stats.ByTab {
			tabs = append(tabs, tab)
		}
		sort.Strings(tabs)
		sb.WriteString("\nSaved per tab:\n")
		for _, tab := range tabs {
			sb.WriteString(fmt.Sprintf("  • %-12s %d\n", tab, stats.ByTab[tab]))
		}
	}

	p.printBox("PARSE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCaptureStats outputs the reconcile decisions and capture results.
func (p *Printer) PrintCaptureStats(stats *pipeline.CaptureStats) {
	if stats == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Search pages: %d\n", stats.Pages))
	sb.WriteString(fmt.Sprintf("Listed:       %d\n", stats.Listed))
	sb.WriteString(fmt.Sprintf("  new:        %d\n", stats.Reconcile.New))
	sb.WriteString(fmt.Sprintf("  changed:    %d\n", stats.Reconcile.Changed))
	if stats.Reconcile.Forced > 0 {
		sb.WriteString(fmt.Sprintf("  forced:     %d\n", stats.Reconcile.Forced))
	}
	sb.WriteString(fmt.Sprintf("  unchanged:  %d\n", stats.Reconcile.Skipped))
	sb.WriteString(fmt.Sprintf("Captured:     %d (%d files)\n", stats.Captured, stats.Files))
	sb.WriteString(fmt.Sprintf("Failed:       %d", stats.Failed))

	p.printBox("CAPTURE", sb.String())
}

// PrintDownloadStats outputs the result of a download batch.
func (p *Printer) PrintDownloadStats(kind string, stats *pipeline.DownloadStats) {
	if stats == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Tenders:    %d\n", stats.Owners))
	sb.WriteString(fmt.Sprintf("Tasks:      %d\n", stats.Tasks))
	sb.WriteString(fmt.Sprintf("Downloaded: %d\n", stats.Result.Downloaded))
	sb.WriteString(fmt.Sprintf("Failed:     %d\n", stats.Result.Failed))
	sb.WriteString(fmt.Sprintf("Pending:    %d", stats.Result.Pending))
	if stats.ManifestPath != "" {
		sb.WriteString(fmt.Sprintf("\n\nManifest (%d rows):\n%s", stats.ManifestRows, stats.ManifestPath))
	}

	p.printBox("DOWNLOAD "+kind, sb.String())
}

// PrintQueueStatus outputs task counts per kind.
func (p *Printer) PrintQueueStatus(counts map[string]map[types.TaskState]int) {
	if len(counts) == 0 {
		return
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-14s %8s %10s %7s\n", "kind", "pending", "downloaded", "failed"))
	for _, kind := range kinds {
		c := counts[kind]
		sb.WriteString(fmt.Sprintf("%-14s %8d %10d %7d\n", kind,
			c[types.TaskStatePending], c[types.TaskStateDownloaded], c[types.TaskStateFailed]))
	}

	p.printBox("DOWNLOAD QUEUE", strings.TrimSuffix(sb.String(), "\n"))
}
