package pipeline

import (
	"errors"
	"fmt"
)

// FileAccessError marks an input path that could not be read. It is fatal
// and raised before any artifact is staged.
type FileAccessError struct {
	Path string
	Err  error
}

func (e *FileAccessError) Error() string { return fmt.Sprintf("input %s: %v", e.Path, e.Err) }
func (e *FileAccessError) Unwrap() error { return e.Err }

// Escalation sentinels for runs whose chunk failures exceed what the
// configuration tolerates. Both are wrapped with counts at the call site.
var (
	// ErrTooManyFailures marks a run where the failed-chunk fraction
	// crossed Runtime.FailureThreshold.
	ErrTooManyFailures = errors.New("failed chunks exceed threshold")

	// ErrAllChunksFailed marks a run where chunks were read but none
	// processed successfully, which is fatal regardless of threshold.
	ErrAllChunksFailed = errors.New("no chunks succeeded")
)
