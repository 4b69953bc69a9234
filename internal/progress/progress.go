// Package progress defines the run-progress events the pipeline publishes
// for an external presentation layer. The pipeline computes nothing for
// display itself; it hands a stream of snapshots to whatever Sink the caller
// wires in (a terminal renderer, a log line emitter, a test recorder).
package progress

// Phase labels the stage a run is currently in.
type Phase string

const (
	// PhaseAnalyze covers opening inputs and loading reference tables.
	PhaseAnalyze Phase = "analyze"
	// PhaseProcess covers chunk reading, sampling, enrichment, aggregation.
	PhaseProcess Phase = "process"
	// PhaseWrite covers flushing sinks and renaming artifacts into place.
	PhaseWrite Phase = "write"
	// PhaseFinalize covers the summary and metadata artifacts.
	PhaseFinalize Phase = "finalize"
)

// Event is one progress snapshot. TotalChunks is zero until the reader hits
// end of input, because the chunk count of a stream is unknown up front;
// consumers should render an indeterminate indicator until it appears.
type Event struct {
	Phase       Phase
	ChunksDone  int   // chunks fully processed, failed ones included
	ChunksFail  int   // chunks that failed processing
	TotalChunks int   // exact only once reading finished, else 0
	RowsOut     int64 // rows retained so far (post-sampling)
}

// Sink receives progress events. Publish must be cheap and must not block:
// it is called from the pipeline's hot loop. Implementations that render
// slowly should drop or coalesce events themselves.
type Sink interface {
	Publish(Event)
}

// Nop discards every event. It is the default when no presentation layer is
// attached.
type Nop struct{}

func (Nop) Publish(Event) {}

var _ Sink = Nop{}

// Func adapts a plain function to the Sink interface.
type Func func(Event)

func (f Func) Publish(e Event) { f(e) }
