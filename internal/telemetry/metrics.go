// Package telemetry provides Prometheus instrumentation for the bridge.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bridge's Prometheus instruments
type Metrics struct {
	registry *prometheus.Registry

	deviceActions *prometheus.CounterVec
	syncResults   *prometheus.CounterVec
}

// NewMetrics creates a metrics instance backed by its own registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	deviceActions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "punchbridge_device_actions_total",
		Help: "Device actions by outcome (ok, busy, cooldown, error)",
	}, []string{"outcome"})

	syncResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "punchbridge_sync_results_total",
		Help: "Cloud sync attempts by outcome (success, failed, error, skipped)",
	}, []string{"outcome"})

	registry.MustRegister(deviceActions, syncResults)

	return &Metrics{
		registry:      registry,
		deviceActions: deviceActions,
		syncResults:   syncResults,
	}
}

// RecordDeviceAction counts one device action by outcome
func (m *Metrics) RecordDeviceAction(outcome string) {
	if m == nil {
		return
	}
	m.deviceActions.WithLabelValues(outcome).Inc()
}

// RecordSyncResult counts one sync attempt by outcome
func (m *Metrics) RecordSyncResult(outcome string) {
	if m == nil {
		return
	}
	m.syncResults.WithLabelValues(outcome).Inc()
}

// Handler returns the scrape endpoint handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
