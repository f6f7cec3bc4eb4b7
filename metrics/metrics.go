// Package metrics records action run metrics. Actions are one-shot
// processes, so instead of serving a scrape endpoint the gathered registry
// is written in Prometheus text format to a file the node_exporter textfile
// collector picks up.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/quellsec/quell/types"
)

// Metrics holds the per-process registry and instruments.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	stepsTotal  *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

// New creates a registry with the action instruments registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quell_action_runs_total",
			Help: "Action runs by kind and terminal status.",
		}, []string{"action", "status"}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quell_action_steps_total",
			Help: "Action steps by kind and outcome.",
		}, []string{"action", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quell_action_duration_seconds",
			Help:    "Wall-clock duration of action runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"action"}),
	}

	m.registry.MustRegister(m.runsTotal, m.stepsTotal, m.runDuration)
	return m
}

// ObserveRun records one finished action run.
func (m *Metrics) ObserveRun(result *types.ActionResult) {
	action := string(result.Kind)
	m.runsTotal.WithLabelValues(action, string(result.Status())).Inc()
	m.runDuration.WithLabelValues(action).Observe(result.Duration.Seconds())
	for _, step := range result.Steps {
		m.stepsTotal.WithLabelValues(action, string(step.Outcome)).Inc()
	}
}

// WriteTextfile gathers the registry and writes it atomically in Prometheus
// text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".metrics-*")
	if err != nil {
		return fmt.Errorf("failed to create metrics temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(tmp, mf); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close metrics temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to publish metrics file: %w", err)
	}
	return nil
}
