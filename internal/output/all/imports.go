// Package all wires all built-in output sinks into the output factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete sink to run, which in
// turn register their factories with the output package.
//
// In other words, importing this package makes the following output kinds
// available at runtime:
//
//   - "csv"      (tradeflow/internal/output/csvout)
//   - "parquet"  (tradeflow/internal/output/parquetout)
//   - "feather"  (tradeflow/internal/output/featherout)
//   - "sqlite"   (tradeflow/internal/output/sqliteout)
//   - "postgres" (tradeflow/internal/output/postgresout)
//
// Typical usage (in cmd/tradeflow/main.go or a similar wiring layer):
//
//	package main
//
//	import (
//	    "context"
//
//	    _ "tradeflow/internal/output/all" // enable all built-in sinks
//
//	    "tradeflow/internal/output"
//	)
//
//	func main() {
//	    ctx := context.Background()
//	    sink, err := output.New(ctx, output.Config{Kind: "parquet", Path: "flows.parquet"})
//	    if err != nil {
//	        // handle error
//	    }
//	    // ... stream chunks through sink.WriteChunk, then sink.Close ...
//	}
//
// This pattern keeps format-specific wiring in a single, small package and
// allows the rest of the application to depend only on the output abstraction
// rather than individual formats.
//
// Note: a binary that supports only a subset of formats can define its own
// wiring package that imports just the sinks it needs instead of this one.
package all

import (
	_ "tradeflow/internal/output/csvout"
	_ "tradeflow/internal/output/featherout"
	_ "tradeflow/internal/output/parquetout"
	_ "tradeflow/internal/output/postgresout"
	_ "tradeflow/internal/output/sqliteout"
)
