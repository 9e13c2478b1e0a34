package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"

	"github.com/jonathan/tender-ingest/internal/types"
)

var cpvPattern = regexp.MustCompile(`^\d{8}$`)

// Paths is the directory layout of one CPV code's project.
type Paths struct {
	Root           string
	Base           string
	HTMLDir        string
	DocFilesDir    string
	AgrFilesDir    string
	AgencyFilesDir string
	ResultsDir     string
}

// DownloadDir returns the directory receiving files of a task kind.
func (p Paths) DownloadDir(kind string) string {
	switch kind {
	case types.TaskKindContract:
		return p.AgrFilesDir
	case types.TaskKindAgencyDoc:
		return p.AgencyFilesDir
	default:
		return p.DocFilesDir
	}
}

// ManifestPath returns the manifest file of a task kind under the project base.
func (p Paths) ManifestPath(kind string) string {
	switch kind {
	case types.TaskKindContract:
		return filepath.Join(p.Base, "manifest_agr_doc.csv")
	case types.TaskKindAgencyDoc:
		return filepath.Join(p.Base, "manifest_agency_doc.csv")
	case types.TaskKindTenderDoc:
		return filepath.Join(p.Base, "manifest_app_doc.csv")
	default:
		return filepath.Join(p.Base, "manifest.csv")
	}
}

// ProjectPaths computes the layout root/T_{cpv}/... without touching disk.
func ProjectPaths(cpv, root string) (Paths, error) {
	if !cpvPattern.MatchString(cpv) {
		return Paths{}, fmt.Errorf("invalid CPV code %q: expected 8 digits", cpv)
	}
	if root == "" {
		return Paths{}, fmt.Errorf("root directory is required (flag --root or %s)", EnvRootDir)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	base := filepath.Join(abs, "T_"+cpv)
	return Paths{
		Root:           abs,
		Base:           base,
		HTMLDir:        filepath.Join(base, "html_tabs"),
		DocFilesDir:    filepath.Join(base, "DOWN_doc_files"),
		AgrFilesDir:    filepath.Join(base, "DOWN_agr_files"),
		AgencyFilesDir: filepath.Join(base, "DOWN_agency_files"),
		ResultsDir:     filepath.Join(base, "Results"),
	}, nil
}

// Provision creates every directory of the layout.
func (p Paths) Provision() error {
	for _, dir := range []string{p.Base, p.HTMLDir, p.DocFilesDir, p.AgrFilesDir, p.AgencyFilesDir, p.ResultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// ProcessingContext carries the scope of one stage run. It is passed
// explicitly to every stage.
type ProcessingContext struct {
	CPVCode string
	Paths   Paths
	Force   bool
	RunID   uuid.UUID
}

// NewProcessingContext resolves and provisions the project layout for cpv.
func NewProcessingContext(cpv, root string, force bool) (*ProcessingContext, error) {
	paths, err := ProjectPaths(cpv, root)
	if err != nil {
		return nil, err
	}
	if err := paths.Provision(); err != nil {
		return nil, err
	}
	return &ProcessingContext{CPVCode: cpv, Paths: paths, Force: force}, nil
}
