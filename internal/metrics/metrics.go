// Package metrics holds the Prometheus collectors of the ingest stages and the
// HTTP handler that exposes them.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Parse stage
	FilesParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_files_parsed_total",
			Help: "Snapshot files processed by the parse stage",
		},
		[]string{"tab", "outcome"},
	)

	RecordsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_records_saved_total",
			Help: "Records written to the store per entity",
		},
		[]string{"entity"},
	)

	// Capture stage
	SummariesReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_summaries_reconciled_total",
			Help: "Search listing rows by reconciliation decision",
		},
		[]string{"reason"},
	)

	// Download stage
	DownloadTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tender_download_tasks_total",
			Help: "Download tasks by final state",
		},
		[]string{"kind", "state"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tender_fetch_duration_seconds",
			Help:    "Time taken to fetch one file",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)
)

// ObserveFetch records the duration of a fetch started at start.
func ObserveFetch(kind string, start time.Time) {
	FetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// Router returns a chi router serving /metrics and /healthz.
func Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
