// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the trade-flow pipeline.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - It mirrors the sink registry pattern used by the output package: the
//     rest of the codebase depends only on this interface while concrete
//     metric systems stay isolated in subpackages.
//
// The primary use case is instrumentation of the pipeline phases (analyze,
// process, write, finalize) and of row/chunk flow without coupling the core
// logic to a specific metrics system such as Prometheus.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
// It is intentionally generic so we can plug in Prometheus, StatsD, etc.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordPhase is a convenience for the common pattern:
// measure latency + success/failure per pipeline phase.
func RecordPhase(job, phase string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"phase":  phase,
		"status": status,
	}

	backend.IncCounter("tradeflow_phase_total", 1, lbls)
	backend.ObserveHistogram("tradeflow_phase_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given job and kind.
//
// Typical kinds mirror the run summary fields, e.g.:
//   - "in"
//   - "rejected"
//   - "sampled_out"
//   - "out"
//   - "unmatched_exporter"
//   - "unmatched_importer"
//   - "unmatched_product"
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("tradeflow_rows_total", float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordChunks increments the chunk counter for the given job and outcome.
// Status is "ok" or "failed"; the failed series is what alerting watches,
// since crossing the failure threshold aborts the run.
func RecordChunks(job, status string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("tradeflow_chunks_total", float64(delta), Labels{
		"job":    job,
		"status": status,
	})
}
