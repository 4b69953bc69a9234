// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the pipeline labels (job, phase, status, kind) onto Prometheus
//     labels.
//   - Pushing collected metrics to a Prometheus Pushgateway instance instead
//     of exposing an HTTP scrape endpoint, since a pipeline run is a batch
//     job that is gone before any scraper would find it.
//
// The package intentionally contains all Prometheus-specific dependencies so
// that the rest of the project remains decoupled from Prometheus and can swap
// to alternative backends without changes to the core pipeline.
package prompush

import (
	"fmt"

	"tradeflow/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	// Phase-level metrics
	phaseCounter  *prometheus.CounterVec // "tradeflow_phase_total"
	phaseDuration *prometheus.SummaryVec // "tradeflow_phase_duration_seconds"

	// Row- and chunk-level metrics
	rowCounter   *prometheus.CounterVec // "tradeflow_rows_total"
	chunkCounter *prometheus.CounterVec // "tradeflow_chunks_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often same as the run's job field).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "tradeflow"
	}

	reg := prometheus.NewRegistry()

	// job is the Pushgateway grouping key; phase, status, kind are dynamic
	// labels on the collectors themselves.
	phaseCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeflow_phase_total",
			Help: "Total number of pipeline phase executions, partitioned by phase and status.",
		},
		[]string{"phase", "status"},
	)
	phaseDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "tradeflow_phase_duration_seconds",
			Help:       "Duration of pipeline phases in seconds, partitioned by phase and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"phase", "status"},
	)

	// ROW metrics: kind (in, rejected, sampled_out, out, unmatched_*).
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeflow_rows_total",
			Help: "Row-level counts per kind (in, rejected, sampled_out, out, unmatched_*).",
		},
		[]string{"kind"},
	)

	// CHUNK metrics: status (ok, failed). The failed series is the one the
	// threshold abort is about.
	chunkCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeflow_chunks_total",
			Help: "Total number of processed chunks, partitioned by outcome.",
		},
		[]string{"status"},
	)

	if err := reg.Register(phaseCounter); err != nil {
		return nil, fmt.Errorf("prompush: register phase counter: %w", err)
	}
	if err := reg.Register(phaseDuration); err != nil {
		return nil, fmt.Errorf("prompush: register phase summary: %w", err)
	}
	if err := reg.Register(rowCounter); err != nil {
		return nil, fmt.Errorf("prompush: register row counter: %w", err)
	}
	if err := reg.Register(chunkCounter); err != nil {
		return nil, fmt.Errorf("prompush: register chunk counter: %w", err)
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		phaseCounter:  phaseCounter,
		phaseDuration: phaseDuration,
		rowCounter:    rowCounter,
		chunkCounter:  chunkCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "tradeflow_phase_total":
		if b.phaseCounter == nil {
			return
		}
		phase := labels["phase"]
		status := labels["status"]
		b.phaseCounter.WithLabelValues(phase, status).Add(delta)

	case "tradeflow_rows_total":
		if b.rowCounter == nil {
			return
		}
		kind := labels["kind"]
		b.rowCounter.WithLabelValues(kind).Add(delta)

	case "tradeflow_chunks_total":
		if b.chunkCounter == nil {
			return
		}
		status := labels["status"]
		b.chunkCounter.WithLabelValues(status).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "tradeflow_phase_duration_seconds" || b.phaseDuration == nil {
		return
	}
	phase := labels["phase"]
	status := labels["status"]
	b.phaseDuration.WithLabelValues(phase, status).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
