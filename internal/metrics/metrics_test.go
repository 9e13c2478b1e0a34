package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRouter_Metrics(t *testing.T) {
	FilesParsed.WithLabelValues("app_main", "saved").Inc()
	DownloadTasks.WithLabelValues("tender_doc", "failed").Inc()
	ObserveFetch("tender_doc", time.Now().Add(-time.Second))

	srv := httptest.NewServer(Router())
	defer srv.Close()

	body := scrape(t, srv)
	assert.Contains(t, body, `tender_files_parsed_total{outcome="saved",tab="app_main"}`)
	assert.Contains(t, body, `tender_download_tasks_total{kind="tender_doc",state="failed"}`)
	assert.Contains(t, body, "tender_fetch_duration_seconds_bucket")
}

func TestRouter_Healthz(t *testing.T) {
	srv := httptest.NewServer(Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
