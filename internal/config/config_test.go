package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/tender-ingest/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))
	return tmpFile
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"cpv_code": "33600000",
		"root_dir": "/data/tenders",
		"workers": 6,
		"task_timeout_seconds": 45,
		"requests_per_second": 2,
		"verbose": true,
		"log": {"level": "debug", "format": "console"}
	}`

	cfg, err := LoadConfig(writeConfig(t, content))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "33600000", cfg.CPVCode)
	assert.Equal(t, "/data/tenders", cfg.RootDir)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, 45*time.Second, cfg.TaskTimeout())
	assert.InDelta(t, 2.0, cfg.RequestsPerSecond, 0.0001)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{ invalid json }`))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_SchemaViolation(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{"cpv_code": "33600000", "max_bullets": 20}`))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "does not match schema")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"empty", Config{}, ""},
		{"valid", Config{CPVCode: "33600000", Workers: 4, BaseURL: "https://tenders.procurement.gov.ge/public/"}, ""},
		{"short cpv", Config{CPVCode: "3360"}, "CPVCode"},
		{"letters in cpv", Config{CPVCode: "3360000A"}, "CPVCode"},
		{"negative workers", Config{Workers: -1}, "Workers"},
		{"too many workers", Config{Workers: 100}, "Workers"},
		{"bad base url", Config{BaseURL: "not a url"}, "BaseURL"},
		{"root is a file", Config{RootDir: file}, "not a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := &Config{CPVCode: "33600000", Workers: 2}
	defaults := Config{
		CPVCode:            "71200000",
		RootDir:            "/data",
		Workers:            4,
		ParseWorkers:       8,
		TaskTimeoutSeconds: 60,
		Schedule:           "@every 1h",
	}
	defaults.Log.Level = "info"

	merged := cfg.MergeWithDefaults(defaults)
	assert.Equal(t, "33600000", merged.CPVCode)
	assert.Equal(t, "/data", merged.RootDir)
	assert.Equal(t, 2, merged.Workers)
	assert.Equal(t, 8, merged.ParseWorkers)
	assert.Equal(t, 60, merged.TaskTimeoutSeconds)
	assert.Equal(t, "@every 1h", merged.Schedule)
	assert.Equal(t, "info", merged.Log.Level)

	// original untouched
	assert.Empty(t, cfg.RootDir)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "postgres://u:p@localhost/db")
	t.Setenv(EnvRootDir, "/srv/tenders")
	t.Setenv(EnvWorkers, "12")
	t.Setenv(EnvLogLevel, "warn")

	cfg := FromEnv()
	assert.Equal(t, "postgres://u:p@localhost/db", cfg.DatabaseURL)
	assert.Equal(t, "/srv/tenders", cfg.RootDir)
	assert.Equal(t, 12, cfg.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)

	t.Setenv(EnvWorkers, "many")
	assert.Zero(t, FromEnv().Workers)
}

func TestDefaults(t *testing.T) {
	t.Setenv(EnvWorkers, "")
	t.Setenv(EnvLogLevel, "")
	d := Defaults()
	assert.Equal(t, DefaultWorkers, d.Workers)
	assert.Equal(t, DefaultParseWorkers, d.ParseWorkers)
	assert.Equal(t, DefaultTaskTimeout, d.TaskTimeout())
	assert.Equal(t, DefaultSchedule, d.Schedule)
	assert.Equal(t, "info", d.Log.Level)
}

func TestProjectPaths(t *testing.T) {
	root := t.TempDir()
	p, err := ProjectPaths("33600000", root)
	require.NoError(t, err)

	base := filepath.Join(root, "T_33600000")
	assert.Equal(t, base, p.Base)
	assert.Equal(t, filepath.Join(base, "html_tabs"), p.HTMLDir)
	assert.Equal(t, filepath.Join(base, "DOWN_doc_files"), p.DownloadDir(types.TaskKindTenderDoc))
	assert.Equal(t, filepath.Join(base, "DOWN_agr_files"), p.DownloadDir(types.TaskKindContract))
	assert.Equal(t, filepath.Join(base, "DOWN_agency_files"), p.DownloadDir(types.TaskKindAgencyDoc))
	assert.Equal(t, filepath.Join(base, "manifest_agr_doc.csv"), p.ManifestPath(types.TaskKindContract))

	_, err = os.Stat(base)
	assert.True(t, os.IsNotExist(err), "ProjectPaths must not create directories")
}

func TestProjectPaths_Invalid(t *testing.T) {
	_, err := ProjectPaths("", "/data")
	assert.ErrorContains(t, err, "invalid CPV code")

	_, err = ProjectPaths("33600000", "")
	assert.ErrorContains(t, err, EnvRootDir)
}

func TestNewProcessingContext(t *testing.T) {
	root := t.TempDir()
	pc, err := NewProcessingContext("33600000", root, true)
	require.NoError(t, err)
	assert.True(t, pc.Force)
	assert.Equal(t, "33600000", pc.CPVCode)

	for _, dir := range []string{pc.Paths.HTMLDir, pc.Paths.DocFilesDir, pc.Paths.AgrFilesDir, pc.Paths.AgencyFilesDir, pc.Paths.ResultsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}
