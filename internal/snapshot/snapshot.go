// Package snapshot knows the on-disk naming convention of captured tender
// pages and loads them for the assemblers.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jonathan/tender-ingest/internal/extract"
)

// Tab identifies which page of a tender a snapshot captures.
type Tab string

// Tab constants, named after the portal's controller actions.
const (
	TabMain       Tab = "app_main"
	TabDocs       Tab = "app_docs"
	TabBids       Tab = "app_bids"
	TabAgencyDocs Tab = "agency_docs"
	TabContract   Tab = "agr_docs"
)

// AllTabs lists every tab in capture order.
var AllTabs = []Tab{TabMain, TabDocs, TabBids, TabAgencyDocs, TabContract}

// ParseTab validates a tab name.
func ParseTab(s string) (Tab, error) {
	for _, t := range AllTabs {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tab %q (expected one of %s)", s, strings.Join(tabNames(), ", "))
}

func tabNames() []string {
	names := make([]string, len(AllTabs))
	for i, t := range AllTabs {
		names[i] = string(t)
	}
	return names
}

var (
	// ErrUnrecognizedFilename is returned for files outside the naming convention.
	ErrUnrecognizedFilename = errors.New("unrecognized snapshot filename")
	// ErrNoSnapshots is returned when a snapshot directory is missing or empty.
	ErrNoSnapshots = errors.New("no snapshots found")
)

var filenamePattern = regexp.MustCompile(`^pg_([A-Z]+)(\d+)_(\d+)_([a-z_]+)\.html$`)

// Snapshot is one captured page identified by its filename.
type Snapshot struct {
	Path          string
	TenderCode    string
	CodePrefix    string
	Sequence      string
	ApplicationID int64
	Tab           Tab
}

// Name returns the file's base name.
func (s Snapshot) Name() string {
	return filepath.Base(s.Path)
}

// ParseFilename decodes pg_{prefix}{sequence}_{applicationId}_{tab}.html.
func ParseFilename(path string) (Snapshot, error) {
	name := filepath.Base(path)
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnrecognizedFilename, name)
	}
	tab, err := ParseTab(m[4])
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %s: %w", ErrUnrecognizedFilename, name, err)
	}
	appID, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %s: %w", ErrUnrecognizedFilename, name, err)
	}
	return Snapshot{
		Path:          path,
		TenderCode:    m[1] + m[2],
		CodePrefix:    m[1],
		Sequence:      m[2],
		ApplicationID: appID,
		Tab:           tab,
	}, nil
}

// FileName builds the snapshot name for a tender code, application and tab.
func FileName(tenderCode string, applicationID int64, tab Tab) string {
	return fmt.Sprintf("pg_%s_%d_%s.html", tenderCode, applicationID, tab)
}

// Listing is the result of scanning a snapshot directory.
type Listing struct {
	Snapshots    []Snapshot
	Unrecognized []string
}

// List scans dir for snapshots, optionally restricted to the given tabs.
// Files outside the naming convention are reported, not returned.
func List(dir string, tabs ...Tab) (*Listing, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: directory %s does not exist", ErrNoSnapshots, dir)
		}
		return nil, fmt.Errorf("failed to read snapshot directory %s: %w", dir, err)
	}

	want := make(map[Tab]bool, len(tabs))
	for _, t := range tabs {
		want[t] = true
	}

	listing := &Listing{}
	htmlFiles := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".html") {
			continue
		}
		htmlFiles++
		path := filepath.Join(dir, e.Name())
		s, err := ParseFilename(path)
		if err != nil {
			listing.Unrecognized = append(listing.Unrecognized, path)
			continue
		}
		if len(want) > 0 && !want[s.Tab] {
			continue
		}
		listing.Snapshots = append(listing.Snapshots, s)
	}

	if htmlFiles == 0 {
		return nil, fmt.Errorf("%w: no .html files in %s", ErrNoSnapshots, dir)
	}

	sort.Slice(listing.Snapshots, func(i, j int) bool {
		return listing.Snapshots[i].Path < listing.Snapshots[j].Path
	})
	return listing, nil
}

// Load parses the snapshot's HTML.
func (s Snapshot) Load() (*extract.Document, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", s.Name(), err)
	}
	defer func() { _ = f.Close() }()
	return extract.Parse(f)
}
