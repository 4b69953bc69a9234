package sqliteout

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"tradeflow/internal/config"
	"tradeflow/internal/output"
	"tradeflow/internal/trade"
)

func fp(v float64) *float64 { return &v }
func sp(s string) *string   { return &s }

func openArtifact(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestWriterRoundTrip(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "flows.db")
	wr, err := NewWriter(context.Background(), target, "trade_flows")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	first := []trade.Enriched{
		{
			Record:       trade.Record{Year: 2019, Exporter: 4, Importer: 842, Product: "010121", Value: fp(1234.5), Quantity: fp(10)},
			ExporterName: sp("Afghanistan"), ImporterName: sp("USA"), ProductName: sp("Horses, live"),
		},
		{
			Record:       trade.Record{Year: 2019, Exporter: 4, Importer: 251, Product: "010121", Value: fp(88), Quantity: fp(2)},
			ExporterName: sp("Afghanistan"), ImporterName: sp("France"), ProductName: sp("Horses, live"),
		},
	}
	second := []trade.Enriched{
		{
			// Null amounts and names must land as SQL NULL, not empty text.
			Record:       trade.Record{Year: 2021, Exporter: 842, Importer: 999, Product: "999999"},
			ExporterName: sp("USA"),
		},
	}

	if err := wr.WriteChunk(context.Background(), first); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if err := wr.WriteChunk(context.Background(), second); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if err := wr.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db := openArtifact(t, target)

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM trade_flows").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("row count = %d, want 3", n)
	}

	var (
		year, exp, imp int
		product        string
		value, qty     sql.NullFloat64
		en, in, pn     sql.NullString
	)
	row := db.QueryRow("SELECT t, i, j, k, v, q, exporter_name, importer_name, product_name FROM trade_flows ORDER BY rowid LIMIT 1")
	if err := row.Scan(&year, &exp, &imp, &product, &value, &qty, &en, &in, &pn); err != nil {
		t.Fatalf("scan first row: %v", err)
	}
	if year != 2019 || exp != 4 || imp != 842 || product != "010121" {
		t.Fatalf("first row keys = (%d,%d,%d,%q)", year, exp, imp, product)
	}
	if !value.Valid || value.Float64 != 1234.5 {
		t.Fatalf("first row v = %+v, want 1234.5", value)
	}
	if !pn.Valid || pn.String != "Horses, live" {
		t.Fatalf("first row product_name = %+v", pn)
	}

	row = db.QueryRow("SELECT v, q, importer_name FROM trade_flows WHERE t = 2021")
	if err := row.Scan(&value, &qty, &in); err != nil {
		t.Fatalf("scan null row: %v", err)
	}
	if value.Valid || qty.Valid || in.Valid {
		t.Fatalf("null fields not NULL: v=%+v q=%+v importer_name=%+v", value, qty, in)
	}
}

func TestWriterEmptyDatasetHasEmptyTable(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "empty.db")
	wr, err := NewWriter(context.Background(), target, "trade_flows")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := wr.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db := openArtifact(t, target)
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM trade_flows").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("row count = %d, want 0", n)
	}
}

func TestWriterAbortLeavesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	wr, err := NewWriter(context.Background(), filepath.Join(dir, "flows.db"), "trade_flows")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	_ = wr.WriteChunk(context.Background(), []trade.Enriched{
		{Record: trade.Record{Year: 2020, Exporter: 8, Importer: 250, Product: "020110"}},
	})
	wr.Abort()
	wr.Abort() // repeat must be harmless

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("directory not empty after abort: %v", entries)
	}
}

func TestFactoryHonorsTableOption(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "via-factory.db")
	s, err := output.New(context.Background(), output.Config{
		Kind:    "sqlite",
		Path:    target,
		Options: config.Options{"table": "flows"},
	})
	if err != nil {
		t.Fatalf("output.New: %v", err)
	}
	if err := s.WriteChunk(context.Background(), []trade.Enriched{
		{Record: trade.Record{Year: 2020, Exporter: 8, Importer: 250, Product: "020110", Value: fp(5)}},
	}); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db := openArtifact(t, target)
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM flows").Scan(&n); err != nil {
		t.Fatalf("count from custom table: %v", err)
	}
	if n != 1 {
		t.Fatalf("row count = %d, want 1", n)
	}
}
