// Package reader streams a trade-flow CSV into bounded chunks of typed rows.
// Chunks are the unit of parallelism downstream: each is independent and
// carries its position so results can be re-sequenced after parallel work.
package reader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"

	"tradeflow/internal/schema"
	"tradeflow/internal/trade"
)

// Chunk is a bounded run of consecutive parsed rows. Index is 0-based and
// dense; FirstLine/LastLine are 1-based source lines for diagnostics.
type Chunk struct {
	Index     int
	Rows      []trade.Record
	FirstLine int
	LastLine  int
}

// StreamChunks reads CSV from src, validates the trade header, and emits
// chunks of at most chunkSize rows on out in file order. It reuses csv.Reader
// buffers (ReuseRecord=true) and copies cells into typed records.
//
// Error handling:
//   - A bad or missing header returns a *schema.HeaderError immediately.
//   - Malformed rows (wrong field count, unparseable structural fields) are
//     soft-dropped through onErr(line, err) and never abort the stream.
//   - Null value/quantity spellings coerce to nil on the record; they are not
//     row errors.
//
// The caller owns src and out: src is closed here on all paths, out is not
// closed so the caller can layer fan-in if needed.
func StreamChunks(
	ctx context.Context,
	src io.ReadCloser,
	chunkSize int,
	out chan<- Chunk,
	onErr func(line int, err error),
) error {
	defer src.Close()

	if chunkSize <= 0 {
		return fmt.Errorf("reader: chunk size must be positive, got %d", chunkSize)
	}

	cr := csv.NewReader(src)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = len(schema.Trade.Columns)

	line := 0
	read := func() ([]string, error) { line++; return cr.Read() }

	hdr, err := read()
	if err != nil {
		// Covers empty files (io.EOF) and unreadable first lines alike:
		// without a valid header nothing downstream is trustworthy.
		return fmt.Errorf("reader: read header: %w", &schema.HeaderError{Contract: schema.Trade.Name, Got: hdr})
	}
	if _, err := schema.Trade.Match(hdr); err != nil {
		return fmt.Errorf("reader: %w", err)
	}

	// Progress heartbeat
	const logEveryN = 500_000
	rowsSeen := 0

	index := 0
	rows := make([]trade.Record, 0, chunkSize)
	first := 0

	emit := func() error {
		if len(rows) == 0 {
			return nil
		}
		c := Chunk{Index: index, Rows: rows, FirstLine: first, LastLine: rows[len(rows)-1].Line}
		select {
		case out <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
		index++
		rows = make([]trade.Record, 0, chunkSize)
		return nil
	}

	for {
		// cooperative cancel
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := read()
		if err == io.EOF {
			return emit()
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("csv read: %w", err))
			}
			continue
		}

		r, err := trade.ParseRow(rec, line)
		if err != nil {
			if onErr != nil {
				onErr(line, err)
			}
			continue
		}
		if len(rows) == 0 {
			first = line
		}
		rows = append(rows, r)
		rowsSeen++
		if rowsSeen%logEveryN == 0 {
			log.Printf("reader: line=%d rows=%d chunks=%d", line, rowsSeen, index)
		}

		if len(rows) == chunkSize {
			if err := emit(); err != nil {
				return err
			}
		}
	}
}
