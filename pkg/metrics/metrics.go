// Package metrics exposes Prometheus counters for pipeline activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "energiemix_"

var (
	// FilesParsed counts parsed source files by format and result.
	FilesParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "files_parsed_total",
			Help: "Source files parsed by format and result",
		},
		[]string{"format", "result"},
	)

	// PVGISRequests counts remote PVGIS calls by design and result.
	PVGISRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "pvgis_requests_total",
			Help: "PVGIS requests by estimator design and result",
		},
		[]string{"design", "result"},
	)

	// PVGISRetries counts retried PVGIS calls.
	PVGISRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "pvgis_retries_total",
		Help: "PVGIS requests retried after a server error",
	})

	// Exports counts generated workbooks by layout.
	Exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "exports_total",
			Help: "Workbooks exported by layout",
		},
		[]string{"layout"},
	)

	// MergedRows observes the size of merged tables.
	MergedRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    prefix + "merged_rows",
		Help:    "Rows in the merged table per process run",
		Buckets: prometheus.ExponentialBuckets(96, 4, 8),
	})
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)
