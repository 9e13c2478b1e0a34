package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilename(t *testing.T) {
	s, err := ParseFilename("/data/html/pg_NAT240000262_553925_agr_docs.html")
	require.NoError(t, err)
	assert.Equal(t, "NAT240000262", s.TenderCode)
	assert.Equal(t, "NAT", s.CodePrefix)
	assert.Equal(t, "240000262", s.Sequence)
	assert.Equal(t, int64(553925), s.ApplicationID)
	assert.Equal(t, TabContract, s.Tab)
	assert.Equal(t, "pg_NAT240000262_553925_agr_docs.html", s.Name())
}

func TestParseFilename_Unrecognized(t *testing.T) {
	for _, name := range []string{
		"pg_NAT240000262_553925_unknown_tab.html",
		"NAT240000262_553925_app_main.html",
		"pg_NAT240000262_app_main.html",
		"pg_NAT240000262_553925_app_main.htm",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFilename(name)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnrecognizedFilename)
		})
	}
}

func TestFileName_RoundTrips(t *testing.T) {
	name := FileName("SPA230001234", 42, TabBids)
	assert.Equal(t, "pg_SPA230001234_42_app_bids.html", name)

	s, err := ParseFilename(name)
	require.NoError(t, err)
	assert.Equal(t, TabBids, s.Tab)
	assert.Equal(t, int64(42), s.ApplicationID)
}

func TestParseTab(t *testing.T) {
	tab, err := ParseTab("agency_docs")
	require.NoError(t, err)
	assert.Equal(t, TabAgencyDocs, tab)

	_, err = ParseTab("search")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"pg_NAT1_10_app_main.html",
		"pg_NAT1_10_app_bids.html",
		"pg_NAT2_20_app_main.html",
		"notes.html",
		"readme.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("<html></html>"), 0644))
	}

	listing, err := List(dir)
	require.NoError(t, err)
	assert.Len(t, listing.Snapshots, 3)
	assert.Equal(t, []string{filepath.Join(dir, "notes.html")}, listing.Unrecognized)

	listing, err = List(dir, TabMain)
	require.NoError(t, err)
	require.Len(t, listing.Snapshots, 2)
	assert.Equal(t, int64(10), listing.Snapshots[0].ApplicationID)
	assert.Equal(t, int64(20), listing.Snapshots[1].ApplicationID)
}

func TestList_EmptyOrMissingDirectory(t *testing.T) {
	_, err := List(t.TempDir())
	assert.ErrorIs(t, err, ErrNoSnapshots)

	_, err = List(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrNoSnapshots)
}

func TestSnapshot_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pg_NAT1_10_app_main.html")
	require.NoError(t, os.WriteFile(path, []byte(`<html><body><p id="x">hello</p></body></html>`), 0644))

	s, err := ParseFilename(path)
	require.NoError(t, err)

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.Find("#x").Text())
}
