// This file adds a lightweight linter/validator for Run values. It performs
// static checks over a decoded Run and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Run.
//
// Path is a dotted path into the config (e.g. "output.kind",
// "sample.fraction"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue carries SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateRun performs static validation / linting of a Run.
//
// It does not mutate the run. Callers may decide whether to treat warnings
// as fatal or not.
func ValidateRun(r Run) []Issue {
	var issues []Issue

	if strings.TrimSpace(r.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateInputs(r.Inputs)...)
	issues = append(issues, validateOutput(r.Output)...)
	issues = append(issues, validateSample(r.Sample)...)
	issues = append(issues, validateRuntime(r.Runtime)...)

	return issues
}

func validateInputs(in Inputs) []Issue {
	var issues []Issue

	for path, v := range map[string]string{
		"inputs.trades":    in.Trades,
		"inputs.countries": in.Countries,
		"inputs.products":  in.Products,
	} {
		if strings.TrimSpace(v) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  "path must not be empty",
			})
		}
	}
	return issues
}

func validateOutput(o Output) []Issue {
	var issues []Issue

	if strings.TrimSpace(o.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.kind",
			Message:  "output.kind must not be empty",
		})
		return issues
	}

	// Known sink kinds. Unknown kinds are warnings (for forward compatibility
	// with externally registered sinks).
	known := map[string]struct{}{
		"csv":      {},
		"parquet":  {},
		"feather":  {},
		"sqlite":   {},
		"postgres": {},
	}
	if _, ok := known[o.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "output.kind",
			Message:  fmt.Sprintf("unknown output kind %q; ensure a matching sink is registered", o.Kind),
		})
	}

	switch o.Kind {
	case "postgres":
		if strings.TrimSpace(o.Options.String("dsn", "")) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "output.options.dsn",
				Message:  "postgres output requires a non-empty dsn",
			})
		}
		if strings.TrimSpace(o.Options.String("table", "")) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "output.options.table",
				Message:  "postgres output requires a non-empty table",
			})
		}
	default:
		if strings.TrimSpace(o.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "output.path",
				Message:  "file outputs require a non-empty path",
			})
		}
	}

	return issues
}

func validateSample(s Sample) []Issue {
	var issues []Issue

	if !s.Enabled {
		return issues
	}
	if s.Fraction < 0 || s.Fraction > 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sample.fraction",
			Message:  fmt.Sprintf("fraction=%g; must be in (0, 1]", s.Fraction),
		})
	}
	if s.Fraction == 1 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "sample.fraction",
			Message:  "fraction=1 retains every row; sampling is a no-op",
		})
	}
	return issues
}

func validateRuntime(r Runtime) []Issue {
	var issues []Issue

	if r.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		})
	}
	if r.ChunkSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.chunk_size",
			Message:  "chunk_size must not be negative",
		})
	}
	if r.ChunkSize > 0 && r.ChunkSize < 1000 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.chunk_size",
			Message:  fmt.Sprintf("chunk_size=%d; very small chunks hurt throughput", r.ChunkSize),
		})
	}
	if r.QueueDepth < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.queue_depth",
			Message:  "queue_depth must not be negative",
		})
	}
	if r.FailureThreshold < 0 || r.FailureThreshold > 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.failure_threshold",
			Message:  fmt.Sprintf("failure_threshold=%g; must be in [0, 1]", r.FailureThreshold),
		})
	}
	return issues
}
