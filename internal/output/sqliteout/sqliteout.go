// Package sqliteout writes enriched trade flow rows into a single-file SQLite
// dataset using database/sql. Inserts are batched inside one transaction per
// chunk; SQLite has no bulk-load API like Postgres COPY, but transactions keep
// load times acceptable.
//
// The database is built at a staging path and renamed over the target on
// Close, so readers never observe a half-written artifact.
package sqliteout

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite" // alternative: github.com/mattn/go-sqlite3

	"tradeflow/internal/output"
	"tradeflow/internal/trade"
)

func init() {
	output.Register("sqlite", func(ctx context.Context, cfg output.Config) (output.Sink, error) {
		return NewWriter(ctx, cfg.Path, cfg.Options.String("table", "trade_flows"))
	})
}

const createTableSQL = `CREATE TABLE %s (
	t INTEGER NOT NULL,
	i INTEGER NOT NULL,
	j INTEGER NOT NULL,
	k TEXT NOT NULL,
	v REAL,
	q REAL,
	exporter_name TEXT,
	importer_name TEXT,
	product_name TEXT
)`

// Writer stages a SQLite database next to the target path and renames it into
// place on Close. Unlike the file sinks it hands the staged path, not an open
// handle, to the driver.
type Writer struct {
	db    *sql.DB
	path  string
	tmp   string
	table string
	done  bool
}

var _ output.Sink = (*Writer)(nil)

// NewWriter creates the staged database and the flow table inside it.
func NewWriter(ctx context.Context, path, table string) (*Writer, error) {
	tmp := output.TempPath(path)
	_ = os.Remove(tmp)

	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return nil, &output.WriteError{Path: path, Err: fmt.Errorf("open: %w", err)}
	}

	// Fail fast on an unwritable staging path.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		_ = os.Remove(tmp)
		return nil, &output.WriteError{Path: path, Err: fmt.Errorf("ping: %w", err)}
	}

	// The staging file is throwaway until the final rename, so journaling and
	// fsync buy nothing here. Ignore errors if the driver rejects a pragma.
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = OFF;")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = OFF;")

	if _, err := db.ExecContext(ctx, fmt.Sprintf(createTableSQL, table)); err != nil {
		db.Close()
		_ = os.Remove(tmp)
		return nil, &output.WriteError{Path: path, Err: fmt.Errorf("create table: %w", err)}
	}

	return &Writer{db: db, path: path, tmp: tmp, table: table}, nil
}

// WriteChunk inserts rows inside a single transaction using a prepared
// statement. Nil value, quantity, and name fields land as SQL NULL.
func (w *Writer) WriteChunk(ctx context.Context, rows []trade.Enriched) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return &output.WriteError{Path: w.path, Err: fmt.Errorf("begin tx: %w", err)}
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (t, i, j, k, v, q, exporter_name, importer_name, product_name) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		w.table,
	))
	if err != nil {
		_ = tx.Rollback()
		return &output.WriteError{Path: w.path, Err: fmt.Errorf("prepare insert: %w", err)}
	}
	defer stmt.Close()

	for _, row := range rows {
		// database/sql dereferences non-nil pointers and maps nil ones to NULL.
		_, err := stmt.ExecContext(ctx,
			row.Year, row.Exporter, row.Importer, row.Product,
			row.Value, row.Quantity,
			row.ExporterName, row.ImporterName, row.ProductName,
		)
		if err != nil {
			_ = tx.Rollback()
			return &output.WriteError{Path: w.path, Err: fmt.Errorf("insert: %w", err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &output.WriteError{Path: w.path, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

// Close flushes the database and renames it over the target path.
func (w *Writer) Close(_ context.Context) error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.db.Close(); err != nil {
		_ = os.Remove(w.tmp)
		return &output.WriteError{Path: w.path, Err: err}
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		_ = os.Remove(w.tmp)
		return &output.WriteError{Path: w.path, Err: err}
	}
	return nil
}

// Abort discards the staged database. Safe to call repeatedly and after
// Close, where it does nothing.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	_ = w.db.Close()
	_ = os.Remove(w.tmp)
}
