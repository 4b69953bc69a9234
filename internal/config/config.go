// Package config defines the canonical, JSON-serializable run configuration
// for the trade-flow processor. It is intentionally small, explicit, and
// dependency-free so that runs can be loaded from disk (or built in code) and
// passed through the program without additional glue.
//
// Example (trimmed):
//
//	{
//	  "job": "baci-2023",
//	  "inputs": {
//	    "trades":    "data/BACI_HS17_Y2023.csv",
//	    "countries": "data/country_codes.csv",
//	    "products":  "data/product_codes.csv"
//	  },
//	  "output":  { "kind": "parquet", "path": "out/baci_2023.parquet" },
//	  "sample":  { "enabled": true, "fraction": 0.01, "seed": 42 },
//	  "runtime": { "workers": 8, "chunk_size": 100000 }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Defaults applied by ApplyDefaults. Workers additionally falls back to the
// CPU count, which only the caller knows how to cap.
const (
	DefaultChunkSize        = 100000
	DefaultFraction         = 0.01
	DefaultFailureThreshold = 0.5
	DefaultMaxErrors        = 10
)

// Run describes one full processing run. It is the top-level object decoded
// from a run file.
type Run struct {
	// Job names the run for logs, metrics labels, and metadata.
	Job string `json:"job"`

	// Inputs locates the trade file and the two reference tables.
	Inputs Inputs `json:"inputs"`

	// Output selects the dataset artifact format and destination.
	Output Output `json:"output"`

	// Sample configures optional stratified downsampling.
	Sample Sample `json:"sample"`

	// Runtime controls concurrency, chunking, and failure tolerance.
	Runtime Runtime `json:"runtime"`
}

// Inputs holds the three input file paths. Any of them may be compressed
// (.gz, .bz2, .zst); decompression is transparent.
type Inputs struct {
	Trades    string `json:"trades"`
	Countries string `json:"countries"`
	Products  string `json:"products"`
}

// Output selects the sink used to persist the enriched dataset.
type Output struct {
	// Kind selects the sink implementation: "csv", "parquet", "feather",
	// "sqlite", or "postgres".
	Kind string `json:"kind"`

	// Path is the artifact destination. File sinks treat it as the final
	// file path; the postgres sink ignores it.
	Path string `json:"path"`

	// Options is a free-form map interpreted by the sink implementation.
	// For postgres, keys include: dsn (string), table (string).
	// For csv, comma (string) overrides the delimiter.
	Options Options `json:"options"`
}

// Sample configures the stratified sampler. Fraction is the per-stratum
// retention target in (0, 1]; Seed makes retained rows reproducible.
type Sample struct {
	Enabled  bool    `json:"enabled"`
	Fraction float64 `json:"fraction"`
	Seed     int64   `json:"seed"`
}

// Runtime controls concurrency, batching, and failure tolerance.
type Runtime struct {
	// Workers is the parallel chunk-processor count. Zero means "use the
	// CPU count".
	Workers int `json:"workers"`

	// ChunkSize is the maximum rows per chunk.
	ChunkSize int `json:"chunk_size"`

	// QueueDepth bounds the pending-chunk backlog between the reader and
	// the workers. Zero means 2x workers.
	QueueDepth int `json:"queue_depth"`

	// FailureThreshold is the fraction of failed chunks above which the
	// whole run is aborted. Zero means the default (0.5). A run with no
	// successful chunks always fails regardless of this value.
	FailureThreshold float64 `json:"failure_threshold"`

	// MaxErrors caps how many row-level error examples are retained for
	// the final report.
	MaxErrors int `json:"max_errors"`

	Verbose bool `json:"verbose"`
}

// Load reads and decodes a run file.
func Load(path string) (Run, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var r Run
	if err := json.Unmarshal(b, &r); err != nil {
		return Run{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return r, nil
}

// ApplyDefaults fills zero-valued tunables in place. Workers is left alone;
// the caller resolves it against the CPU count.
func (r *Run) ApplyDefaults() {
	if r.Runtime.ChunkSize == 0 {
		r.Runtime.ChunkSize = DefaultChunkSize
	}
	if r.Runtime.FailureThreshold == 0 {
		r.Runtime.FailureThreshold = DefaultFailureThreshold
	}
	if r.Runtime.MaxErrors == 0 {
		r.Runtime.MaxErrors = DefaultMaxErrors
	}
	if r.Sample.Enabled && r.Sample.Fraction == 0 {
		r.Sample.Fraction = DefaultFraction
	}
}

// Options holds sink-specific settings whose shape varies by output kind.
// Typed getters perform minimal coercion and fall back to the provided
// default when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. This is useful for single-character settings such as a
// CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null
// "options" object in JSON decodes to a non-nil, empty Options map. This
// simplifies call sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
