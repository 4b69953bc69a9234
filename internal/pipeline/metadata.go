package pipeline

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"tradeflow/internal/config"
	"tradeflow/internal/output"
	"tradeflow/internal/stats"
)

// InputFile identifies one input as it was at run time.
type InputFile struct {
	Role      string `json:"role"` // trades, countries, products
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	XXH3      string `json:"xxh3,omitempty"` // raw-byte hash; empty for remote inputs
}

// RowError is one retained example of a rejected input row.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// FailedChunk records one isolated chunk failure.
type FailedChunk struct {
	Index     int    `json:"index"`
	FirstLine int    `json:"first_line,omitempty"`
	Cause     string `json:"cause"`
}

// Artifacts lists what the run produced. Dataset is a file path for file
// sinks and the target table name for the database sink.
type Artifacts struct {
	Dataset  string `json:"dataset,omitempty"`
	Summary  string `json:"summary"`
	Metadata string `json:"metadata"`
}

// RunMetadata is the provenance record written alongside the dataset: which
// inputs went in, under which configuration, and what came out.
type RunMetadata struct {
	RunID      string    `json:"run_id"`
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Config echoes the configuration the run actually used, with defaults
	// and the worker count resolved.
	Config config.Run `json:"config"`

	Inputs []InputFile `json:"inputs"`

	RowsIn     int64 `json:"rows_in"`
	RowsOut    int64 `json:"rows_out"`
	Rejected   int64 `json:"rejected_rows"`
	SampledOut int64 `json:"sampled_out"`

	UnmatchedExporter int64 `json:"unmatched_exporter"`
	UnmatchedImporter int64 `json:"unmatched_importer"`
	UnmatchedProduct  int64 `json:"unmatched_product"`

	Chunks       int  `json:"chunks"`
	ChunksFailed int  `json:"chunks_failed"`
	Degraded     bool `json:"degraded"`

	FailedChunks     []FailedChunk `json:"failed_chunks,omitempty"`
	RejectedExamples []RowError    `json:"rejected_examples,omitempty"`

	Artifacts Artifacts `json:"artifacts"`
}

// artifactBase derives the shared prefix for the summary and metadata
// sidecars. File sinks drop the dataset extension; the database sink has no
// dataset path, so the job name anchors the sidecars in the working
// directory.
func artifactBase(cfg config.Run) string {
	if p := cfg.Output.Path; p != "" {
		return strings.TrimSuffix(p, filepath.Ext(p))
	}
	if cfg.Job != "" {
		return cfg.Job
	}
	return "tradeflow"
}

// writeSummary persists the statistics table, staged and renamed like any
// other artifact.
func writeSummary(path string, sum stats.Summary) error {
	pf, err := output.CreateTemp(path)
	if err != nil {
		return err
	}
	if err := sum.WriteCSV(pf.F); err != nil {
		pf.Abort()
		return &output.WriteError{Path: path, Err: err}
	}
	return pf.Commit()
}

// writeMetadata persists the run record as indented JSON.
func writeMetadata(path string, meta RunMetadata) error {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return &output.WriteError{Path: path, Err: err}
	}
	b = append(b, '\n')

	pf, err := output.CreateTemp(path)
	if err != nil {
		return err
	}
	if _, err := pf.F.Write(b); err != nil {
		pf.Abort()
		return &output.WriteError{Path: path, Err: err}
	}
	return pf.Commit()
}
