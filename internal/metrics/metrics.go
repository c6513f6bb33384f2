// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Probes counts stream probes by outcome (ok, failed).
	Probes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiodex_probes_total",
		Help: "Stream probes issued, by outcome.",
	}, []string{"outcome"})

	// StationsIngested counts stations added to the catalog by ingestion runs.
	StationsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radiodex_stations_ingested_total",
		Help: "Stations added to the catalog by ingestion runs.",
	})

	// SearchesServed counts genre search requests served.
	SearchesServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radiodex_searches_total",
		Help: "Genre search requests served.",
	})

	// PlayReports counts play-time reports by outcome (counted, throttled).
	PlayReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiodex_play_reports_total",
		Help: "Play-time reports received, by outcome.",
	}, []string{"outcome"})

	// RevalidationsRun counts completed revalidation passes.
	RevalidationsRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radiodex_revalidations_total",
		Help: "Completed catalog revalidation passes.",
	})

	// StationsOnline tracks the online station count from the latest
	// revalidation snapshot.
	StationsOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radiodex_stations_online",
		Help: "Online stations as of the latest revalidation.",
	})

	// StationsTotal tracks the full catalog size, duplicates included.
	StationsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "radiodex_stations_total",
		Help: "Total cataloged stations.",
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
