// Package parquetout writes enriched trade flow rows as a zstd-compressed
// parquet file with dictionary encoding enabled.
package parquetout

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"tradeflow/internal/output"
	"tradeflow/internal/output/arrowrec"
	"tradeflow/internal/trade"
)

func init() {
	output.Register("parquet", func(_ context.Context, cfg output.Config) (output.Sink, error) {
		return NewWriter(cfg.Path)
	})
}

// Writer stages a parquet file next to the target path and renames it into
// place on Close. Chunks are encoded in arrival order, so identical chunk
// sequences produce identical files.
type Writer struct {
	pending *output.PendingFile
	fw      *pqarrow.FileWriter
	builder *array.RecordBuilder
	path    string
}

var _ output.Sink = (*Writer)(nil)

// NewWriter stages path and prepares a parquet encoder for the trade flow
// schema.
func NewWriter(path string) (*Writer, error) {
	pending, err := output.CreateTemp(path)
	if err != nil {
		return nil, err
	}
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(true),
	)
	fw, err := pqarrow.NewFileWriter(arrowrec.Schema, pending.F, props, pqarrow.DefaultWriterProps())
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

// WriteChunk appends rows to the staged file.
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

// Close finalizes the parquet footer and publishes the file.
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
