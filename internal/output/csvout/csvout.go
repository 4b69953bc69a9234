// Package csvout implements the delimited-text sink. It registers itself
// with the output factory under kind "csv".
//
// Null numerics and unmatched reference names are written as empty cells,
// never as a literal "null": downstream spreadsheet and pandas consumers
// treat the empty cell as missing, while the word would silently become a
// string column.
package csvout

import (
	"context"
	"encoding/csv"
	"strconv"

	"tradeflow/internal/output"
	"tradeflow/internal/trade"
)

func init() {
	output.Register("csv", func(_ context.Context, cfg output.Config) (output.Sink, error) {
		return NewWriter(cfg.Path, cfg.Options.Rune("comma", ','))
	})
}

// Writer streams enriched rows into a CSV artifact staged next to its
// target. The header row is written up front so even an empty dataset
// produces a well-formed file.
type Writer struct {
	pending *output.PendingFile
	w       *csv.Writer
	path    string
	record  []string // reused per row
}

var _ output.Sink = (*Writer)(nil)

// NewWriter stages the artifact and writes the header row. comma is the
// field delimiter, ',' for standard CSV.
func NewWriter(path string, comma rune) (*Writer, error) {
	pending, err := output.CreateTemp(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(pending.F)
	w.Comma = comma
	if err := w.Write(trade.Columns); err != nil {
		pending.Abort()
		return nil, &output.WriteError{Path: path, Err: err}
	}
	return &Writer{
		pending: pending,
		w:       w,
		path:    path,
		record:  make([]string, len(trade.Columns)),
	}, nil
}

// WriteChunk appends rows in the order given.
func (wr *Writer) WriteChunk(ctx context.Context, rows []trade.Enriched) error {
	for _, r := range rows {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec := wr.record
		rec[0] = strconv.Itoa(r.Year)
		rec[1] = strconv.Itoa(r.Exporter)
		rec[2] = strconv.Itoa(r.Importer)
		rec[3] = r.Product
		rec[4] = formatFloat(r.Value)
		rec[5] = formatFloat(r.Quantity)
		rec[6] = derefStr(r.ExporterName)
		rec[7] = derefStr(r.ImporterName)
		rec[8] = derefStr(r.ProductName)
		if err := wr.w.Write(rec); err != nil {
			return &output.WriteError{Path: wr.path, Err: err}
		}
	}
	return nil
}

// Close flushes buffered rows and renames the artifact into place.
func (wr *Writer) Close(context.Context) error {
	wr.w.Flush()
	if err := wr.w.Error(); err != nil {
		wr.pending.Abort()
		return &output.WriteError{Path: wr.path, Err: err}
	}
	return wr.pending.Commit()
}

// Abort discards the staged artifact.
func (wr *Writer) Abort() { wr.pending.Abort() }

// formatFloat renders a nullable amount with the fewest digits that parse
// back to the same value, in plain decimal notation.
func formatFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
