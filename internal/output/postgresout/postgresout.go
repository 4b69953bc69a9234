// Package postgresout loads enriched trade flow rows into Postgres using pgx
// v5. Rows are COPYed into a session-scoped temporary staging table; Close
// publishes them into the target table with a single INSERT ... SELECT, so
// readers of the target never observe a partial load. Abort ends the session
// and the staging table vanishes with it.
//
// The target table must already exist with the nine flow columns; the staging
// table is cloned from it, which also validates the target schema before the
// first chunk arrives.
package postgresout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradeflow/internal/output"
	"tradeflow/internal/trade"
)

func init() {
	output.Register("postgres", func(ctx context.Context, cfg output.Config) (output.Sink, error) {
		dsn := cfg.Options.String("dsn", "")
		if dsn == "" {
			return nil, fmt.Errorf("postgres: dsn option required")
		}
		return NewWriter(ctx, dsn, cfg.Options.String("table", "trade_flows"))
	})
}

// session is the slice of a pooled pgx connection the writer needs. The
// staging table is session-scoped, so all statements must run on one
// connection.
type session interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var _ session = (*pgxpool.Conn)(nil)

// dial is a test hook that points to dialPool by default. Tests may replace
// this variable to avoid real DB connections.
var dial = dialPool

func dialPool(ctx context.Context, dsn string) (session, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("acquire: %w", err)
	}
	cleanup := func() {
		conn.Release()
		pool.Close()
	}
	return conn, cleanup, nil
}

// Writer accumulates rows in a temporary staging table and publishes them
// atomically on Close.
type Writer struct {
	sess    session
	cleanup func()
	table   string // target, possibly schema-qualified
	tmp     string // staging temp table, single segment
	staged  int64
	done    bool
}

var _ output.Sink = (*Writer)(nil)

// NewWriter connects, pins one session, and creates the staging table as an
// empty clone of the target.
func NewWriter(ctx context.Context, dsn, table string) (*Writer, error) {
	sess, cleanup, err := dial(ctx, dsn)
	if err != nil {
		return nil, &output.WriteError{Path: table, Err: err}
	}

	w := &Writer{
		sess:    sess,
		cleanup: cleanup,
		table:   table,
		tmp:     "tmp_" + strings.ReplaceAll(table, ".", "_"),
	}
	create := fmt.Sprintf(
		"CREATE TEMP TABLE %s AS SELECT %s FROM %s WHERE false",
		pgIdent(w.tmp), strings.Join(mapIdent(trade.Columns), ","), pgFQN(table),
	)
	if _, err := sess.Exec(ctx, create); err != nil {
		cleanup()
		return nil, &output.WriteError{Path: table, Err: fmt.Errorf("create staging table: %w", err)}
	}
	return w, nil
}

// WriteChunk COPYs rows into the staging table. Nil value, quantity, and name
// pointers land as SQL NULL.
func (w *Writer) WriteChunk(ctx context.Context, rows []trade.Enriched) error {
	if len(rows) == 0 {
		return nil
	}

	data := make([][]any, len(rows))
	for i, row := range rows {
		data[i] = []any{
			row.Year, row.Exporter, row.Importer, row.Product,
			row.Value, row.Quantity,
			row.ExporterName, row.ImporterName, row.ProductName,
		}
	}

	copied, err := w.sess.CopyFrom(ctx, pgx.Identifier{w.tmp}, trade.Columns, pgx.CopyFromRows(data))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return &output.WriteError{Path: w.table, Err: fmt.Errorf("copy into staging: %s (%s)", pgErr.Detail, pgErr.SQLState())}
		}
		return &output.WriteError{Path: w.table, Err: fmt.Errorf("copy into staging: %w", err)}
	}
	if copied != int64(len(rows)) {
		return &output.WriteError{Path: w.table, Err: fmt.Errorf("copy into staging: copied %d of %d rows", copied, len(rows))}
	}
	w.staged += copied
	return nil
}

// Close publishes the staged rows into the target table. The single
// INSERT ... SELECT runs in its own transaction, so the target gains either
// every staged row or none.
func (w *Writer) Close(ctx context.Context) error {
	if w.done {
		return nil
	}
	w.done = true
	defer w.cleanup()

	cols := strings.Join(mapIdent(trade.Columns), ",")
	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s",
		pgFQN(w.table), cols, cols, pgIdent(w.tmp),
	)
	if _, err := w.sess.Exec(ctx, insert); err != nil {
		return &output.WriteError{Path: w.table, Err: fmt.Errorf("publish: %w", err)}
	}
	_, _ = w.sess.Exec(ctx, "DROP TABLE IF EXISTS "+pgIdent(w.tmp))
	log.Printf("postgres: published rows=%d target=%s", w.staged, w.table)
	return nil
}

// Abort ends the session without publishing; the staging table is dropped
// with it. Safe to call repeatedly and after Close, where it does nothing.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.cleanup()
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.trade_flows" to
// `"public"."trade_flows"`.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
