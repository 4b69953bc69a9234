// Package featherout writes enriched trade flow rows as an Arrow IPC file,
// readable as feather v2. Each chunk becomes one record batch, so the batch
// layout of the artifact mirrors the chunking of the run.
package featherout

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"tradeflow/internal/output"
	"tradeflow/internal/output/arrowrec"
	"tradeflow/internal/trade"
)

func init() {
	output.Register("feather", func(_ context.Context, cfg output.Config) (output.Sink, error) {
		return NewWriter(cfg.Path)
	})
}

// Writer stages an Arrow IPC file next to the target path and renames it into
// place on Close.
type Writer struct {
	pending *output.PendingFile
	fw      *ipc.FileWriter
	builder *array.RecordBuilder
	path    string
}

var _ output.Sink = (*Writer)(nil)

// NewWriter stages path and prepares an IPC encoder for the trade flow schema.
func NewWriter(path string) (*Writer, error) {
	pending, err := output.CreateTemp(path)
	if err != nil {
		return nil, err
	}
	fw, err := ipc.NewFileWriter(pending.F,
		ipc.WithSchema(arrowrec.Schema),
		ipc.WithAllocator(memory.DefaultAllocator),
	)
	if err != nil {
		pending.Abort()
		return nil, &output.WriteError{Path: path, Err: err}
	}
	return &Writer{
		pending: pending,
		fw:      fw,
		builder: arrowrec.NewBuilder(memory.DefaultAllocator),
		path:    path,
	}, nil
}

// WriteChunk appends rows as a single record batch.
func (w *Writer) WriteChunk(ctx context.Context, rows []trade.Enriched) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if len(rows) == 0 {
		return nil
	}
	arrowrec.Append(w.builder, rows)
	rec := w.builder.NewRecord()
	defer rec.Release()
	if err := w.fw.Write(rec); err != nil {
		return &output.WriteError{Path: w.path, Err: err}
	}
	return nil
}

// Close finalizes the IPC footer and publishes the file.
func (w *Writer) Close(_ context.Context) error {
	w.releaseBuilder()
	if err := w.fw.Close(); err != nil {
		w.pending.Abort()
		return &output.WriteError{Path: w.path, Err: err}
	}
	return w.pending.Commit()
}

// Abort drops the staged file without finalizing it.
func (w *Writer) Abort() {
	w.releaseBuilder()
	w.pending.Abort()
}

func (w *Writer) releaseBuilder() {
	if w.builder != nil {
		w.builder.Release()
		w.builder = nil
	}
}
