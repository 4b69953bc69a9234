// Package output contains the artifact-sink abstraction and its registry.
//
// A Sink consumes enriched rows chunk by chunk and persists them as one
// artifact. Concrete sinks (CSV, Parquet, Feather, SQLite, Postgres) live in
// subpackages and register themselves with this package's factory at init
// time, so callers select a sink by kind string without importing any backend
// directly. Importing output/all as a blank import enables every built-in
// kind.
//
// File-backed sinks never leave a corrupt artifact behind: they stage the
// file at a temporary sibling path and rename it over the target only after
// a clean Close. The Postgres sink gets the same guarantee from a staging
// table committed in one transaction.
package output

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tradeflow/internal/config"
	"tradeflow/internal/trade"
)

// Config selects and parameterizes a sink.
type Config struct {
	Kind    string         // registered sink kind, e.g. "csv", "parquet"
	Path    string         // target artifact path for file-backed kinds
	Options config.Options // sink-specific settings (dsn, table, ...)
}

// Sink persists enriched rows as a single artifact.
//
// WriteChunk may be called many times; rows arrive in chunk order. Close
// finalizes the artifact and makes it visible at its target location; after
// Close the sink must not be used. Abort discards all staged state and is
// safe to call repeatedly, including after a failed Close.
type Sink interface {
	WriteChunk(ctx context.Context, rows []trade.Enriched) error
	Close(ctx context.Context) error
	Abort()
}

// Factory constructs a Sink from its configuration.
type Factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for a sink kind. It is
// typically called from sink packages' init() functions.
func Register(kind string, fn Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = fn
}

// New constructs the sink registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Sink, error) {
	regMu.RLock()
	fn, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("output: no sink registered for kind=%q (have %v)", cfg.Kind, ListKinds())
	}
	return fn(ctx, cfg)
}

// ListKinds returns the registered sink kinds in sorted order.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// WriteError reports that an artifact could not be persisted. Path is the
// target the caller asked for, never the temporary staging location.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
