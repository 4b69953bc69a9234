package datasource

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Decompress wraps rc in a decompressing reader chosen by the extension of
// name (.gz, .bz2, .xz, .zst). Unrecognized extensions pass through
// unchanged. Closing the returned ReadCloser closes rc as well.
func Decompress(name string, rc io.ReadCloser) (io.ReadCloser, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".gz":
		zr, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("gzip %s: %w", name, err)
		}
		return &wrapped{r: zr, closers: []io.Closer{zr, rc}}, nil
	case ".bz2":
		return &wrapped{r: bzip2.NewReader(rc), closers: []io.Closer{rc}}, nil
	case ".xz":
		xr, err := xz.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("xz %s: %w", name, err)
		}
		return &wrapped{r: xr, closers: []io.Closer{rc}}, nil
	case ".zst":
		zr, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("zstd %s: %w", name, err)
		}
		return &wrapped{r: zr, closers: []io.Closer{closerFunc(func() error { zr.Close(); return nil }), rc}}, nil
	default:
		return rc, nil
	}
}

// wrapped is a reader plus the stack of closers behind it, closed in order.
type wrapped struct {
	r       io.Reader
	closers []io.Closer
}

func (w *wrapped) Read(p []byte) (int, error) { return w.r.Read(p) }

func (w *wrapped) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
