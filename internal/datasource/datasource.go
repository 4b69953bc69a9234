// Package datasource abstracts where input bytes come from. Implementations
// exist for local files and HTTP(S) URLs; both hand back plain readers, with
// compressed payloads unwrapped transparently by Decompress.
package datasource

import (
	"context"
	"io"
)

// Source is anything that can be opened for reading. Open must honor ctx
// cancellation; the returned ReadCloser is single-use.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
