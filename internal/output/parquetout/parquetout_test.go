package parquetout

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"tradeflow/internal/output"
	"tradeflow/internal/trade"
)

func fp(v float64) *float64 { return &v }
func sp(s string) *string   { return &s }

// readTable loads a finished artifact back into memory for assertions.
func readTable(t *testing.T, path string) arrow.Table {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	pr, err := pqfile.NewParquetReader(f)
	if err != nil {
		t.Fatalf("parquet reader: %v", err)
	}
	t.Cleanup(func() { _ = pr.Close() })
	fr, err := pqarrow.NewFileReader(pr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("arrow reader: %v", err)
	}
	tbl, err := fr.ReadTable(context.Background())
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	t.Cleanup(tbl.Release)
	return tbl
}

// chunkAt resolves a table-level row index to the chunk holding it, since
// round-tripped columns may arrive split across several chunks.
func chunkAt(t *testing.T, tbl arrow.Table, col, row int) (arrow.Array, int) {
	t.Helper()
	for _, chunk := range tbl.Column(col).Data().Chunks() {
		if row < chunk.Len() {
			return chunk, row
		}
		row -= chunk.Len()
	}
	t.Fatalf("row %d out of range for column %d", row, col)
	return nil, 0
}

func TestWriterRoundTrip(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "flows.parquet")
	wr, err := NewWriter(target)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	rows := []trade.Enriched{
		{
			Record:       trade.Record{Year: 2019, Exporter: 4, Importer: 842, Product: "010121", Value: fp(1234.5), Quantity: fp(10)},
			ExporterName: sp("Afghanistan"), ImporterName: sp("USA"), ProductName: sp("Horses, live"),
		},
		{
			Record:       trade.Record{Year: 2019, Exporter: 4, Importer: 251, Product: "010121", Value: fp(88), Quantity: fp(2)},
			ExporterName: sp("Afghanistan"), ImporterName: sp("France"), ProductName: sp("Horses, live"),
		},
		{
			Record:       trade.Record{Year: 2020, Exporter: 842, Importer: 4, Product: "020110", Value: fp(9.25), Quantity: fp(1)},
			ExporterName: sp("USA"), ImporterName: sp("Afghanistan"), ProductName: sp("Beef, fresh"),
		},
		{
			// Null amounts and an entirely unmatched row tail.
			Record:       trade.Record{Year: 2021, Exporter: 842, Importer: 999, Product: "999999"},
			ExporterName: sp("USA"),
		},
	}

	if err := wr.WriteChunk(context.Background(), rows[:3]); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if err := wr.WriteChunk(context.Background(), rows[3:]); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if err := wr.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	tbl := readTable(t, target)
	if got, want := tbl.NumRows(), int64(4); got != want {
		t.Fatalf("NumRows = %d, want %d", got, want)
	}
	if got, want := int(tbl.NumCols()), len(trade.Columns); got != want {
		t.Fatalf("NumCols = %d, want %d", got, want)
	}
	for i, name := range trade.Columns {
		if got := tbl.Schema().Field(i).Name; got != name {
			t.Fatalf("column %d = %q, want %q", i, got, name)
		}
	}

	wantYears := []int32{2019, 2019, 2020, 2021}
	for row, want := range wantYears {
		a, i := chunkAt(t, tbl, 0, row)
		if got := a.(*array.Int32).Value(i); got != want {
			t.Fatalf("t[%d] = %d, want %d", row, got, want)
		}
	}

	a, i := chunkAt(t, tbl, 4, 0)
	if got, want := a.(*array.Float64).Value(i), 1234.5; got != want {
		t.Fatalf("v[0] = %v, want %v", got, want)
	}
	a, i = chunkAt(t, tbl, 4, 3)
	if !a.IsNull(i) {
		t.Fatalf("v[3] not null")
	}

	a, i = chunkAt(t, tbl, 8, 0)
	if got, want := a.(*array.String).Value(i), "Horses, live"; got != want {
		t.Fatalf("product_name[0] = %q, want %q", got, want)
	}
	a, i = chunkAt(t, tbl, 8, 3)
	if !a.IsNull(i) {
		t.Fatalf("product_name[3] not null")
	}
}

func TestWriterEmptyDatasetIsReadable(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "empty.parquet")
	wr, err := NewWriter(target)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := wr.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	tbl := readTable(t, target)
	if got := tbl.NumRows(); got != 0 {
		t.Fatalf("NumRows = %d, want 0", got)
	}
	if got, want := int(tbl.NumCols()), len(trade.Columns); got != want {
		t.Fatalf("NumCols = %d, want %d", got, want)
	}
}

func TestWriterAbortLeavesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	wr, err := NewWriter(filepath.Join(dir, "flows.parquet"))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	_ = wr.WriteChunk(context.Background(), []trade.Enriched{
		{Record: trade.Record{Year: 2020, Exporter: 8, Importer: 250, Product: "020110"}},
	})
	wr.Abort()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("directory not empty after abort: %v", entries)
	}
}

func TestFactoryRegistration(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "via-factory.parquet")
	s, err := output.New(context.Background(), output.Config{Kind: "parquet", Path: target})
	if err != nil {
		t.Fatalf("output.New: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
}
