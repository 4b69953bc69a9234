package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

// validRun returns a run that passes validation cleanly; tests mutate one
// field at a time.
func validRun() Run {
	return Run{
		Job: "test-job",
		Inputs: Inputs{
			Trades:    "trades.csv",
			Countries: "countries.csv",
			Products:  "products.csv",
		},
		Output: Output{Kind: "csv", Path: "out.csv", Options: Options{}},
		Sample: Sample{Enabled: true, Fraction: 0.01, Seed: 1},
		Runtime: Runtime{
			Workers:          2,
			ChunkSize:        100000,
			FailureThreshold: 0.5,
		},
	}
}

/*
TestValidateRun_ValidMinimal verifies that a well-formed run produces no
issues (errors or warnings).
*/
func TestValidateRun_ValidMinimal(t *testing.T) {
	t.Parallel()

	issues := ValidateRun(validRun())
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got: %+v", issues)
	}
}

/*
TestValidateRun_MissingJob verifies that a missing or empty Job field produces
a SeverityError with path "job".
*/
func TestValidateRun_MissingJob(t *testing.T) {
	t.Parallel()

	r := validRun()
	r.Job = ""

	issues := ValidateRun(r)
	if !hasIssue(t, issues, SeverityError, "job", "job must not be empty") {
		t.Fatalf("expected SeverityError for job; got issues: %+v", issues)
	}
}

func TestValidateRun_MissingInputPaths(t *testing.T) {
	t.Parallel()

	r := validRun()
	r.Inputs.Countries = "  "

	issues := ValidateRun(r)
	if !hasIssue(t, issues, SeverityError, "inputs.countries", "must not be empty") {
		t.Fatalf("expected SeverityError for inputs.countries; got: %+v", issues)
	}
}

/*
TestValidateRun_Output exercises the sink-specific checks: file sinks need a
path, postgres needs dsn and table, and unknown kinds only warn so externally
registered sinks keep working.
*/
func TestValidateRun_Output(t *testing.T) {
	t.Parallel()

	r := validRun()
	r.Output = Output{Kind: "parquet", Options: Options{}}
	if issues := ValidateRun(r); !hasIssue(t, issues, SeverityError, "output.path", "non-empty path") {
		t.Fatalf("expected path error for file sink; got: %+v", issues)
	}

	r.Output = Output{Kind: "postgres", Options: Options{"dsn": "postgres://h/db"}}
	issues := ValidateRun(r)
	if !hasIssue(t, issues, SeverityError, "output.options.table", "non-empty table") {
		t.Fatalf("expected table error for postgres sink; got: %+v", issues)
	}
	if hasIssue(t, issues, SeverityError, "output.options.dsn", "") {
		t.Fatalf("dsn was provided; got spurious issue: %+v", issues)
	}

	r.Output = Output{Kind: "orc", Path: "out.orc", Options: Options{}}
	if issues := ValidateRun(r); !hasIssue(t, issues, SeverityWarning, "output.kind", "unknown output kind") {
		t.Fatalf("expected warning for unknown kind; got: %+v", issues)
	}
}

func TestValidateRun_SampleFraction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fraction float64
		sev      IssueSeverity
		substr   string
	}{
		{"negative", -0.1, SeverityError, "must be in (0, 1]"},
		{"above one", 1.5, SeverityError, "must be in (0, 1]"},
		{"exactly one", 1, SeverityWarning, "no-op"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRun()
			r.Sample.Fraction = tt.fraction
			issues := ValidateRun(r)
			if !hasIssue(t, issues, tt.sev, "sample.fraction", tt.substr) {
				t.Fatalf("fraction=%g: expected %s issue; got: %+v", tt.fraction, tt.sev, issues)
			}
		})
	}

	// Disabled sampling skips fraction checks entirely.
	r := validRun()
	r.Sample = Sample{Enabled: false, Fraction: -5}
	if issues := ValidateRun(r); len(issues) != 0 {
		t.Fatalf("disabled sampler should not be validated; got: %+v", issues)
	}
}

func TestValidateRun_Runtime(t *testing.T) {
	t.Parallel()

	r := validRun()
	r.Runtime.Workers = -1
	if issues := ValidateRun(r); !hasIssue(t, issues, SeverityError, "runtime.workers", "negative") {
		t.Fatalf("expected workers error; got: %+v", issues)
	}

	r = validRun()
	r.Runtime.ChunkSize = 10
	if issues := ValidateRun(r); !hasIssue(t, issues, SeverityWarning, "runtime.chunk_size", "small chunks") {
		t.Fatalf("expected chunk_size warning; got: %+v", issues)
	}

	r = validRun()
	r.Runtime.FailureThreshold = 1.5
	if issues := ValidateRun(r); !hasIssue(t, issues, SeverityError, "runtime.failure_threshold", "must be in [0, 1]") {
		t.Fatalf("expected failure_threshold error; got: %+v", issues)
	}
}

func TestHasErrors(t *testing.T) {
	t.Parallel()

	warn := []Issue{{Severity: SeverityWarning, Path: "x", Message: "m"}}
	if HasErrors(warn) {
		t.Fatal("warnings alone should not count as errors")
	}
	if !HasErrors(append(warn, Issue{Severity: SeverityError, Path: "y", Message: "m"})) {
		t.Fatal("expected HasErrors=true when an error is present")
	}
}
