package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"

	"tradeflow/internal/config"
	"tradeflow/internal/datasource"
	"tradeflow/internal/datasource/file"
	"tradeflow/internal/datasource/httpds"
)

// sourceFor picks the right datasource for a configured input: URLs stream
// through the retrying HTTP client, everything else is a local file.
func sourceFor(client *httpds.Client, path string) datasource.Source {
	if httpds.IsURL(path) {
		return httpds.NewRemote(client, path)
	}
	return file.NewLocal(path)
}

// identifyInputs stats each input and fingerprints the small reference
// files. The trades checksum is filled in later from the streaming tee so
// the big file is read exactly once. Remote inputs are identified by URL
// alone, but get a small ranged probe so an unreachable endpoint fails here
// rather than mid-stream.
func identifyInputs(ctx context.Context, client *httpds.Client, in config.Inputs) ([]InputFile, error) {
	specs := []struct{ role, path string }{
		{"trades", in.Trades},
		{"countries", in.Countries},
		{"products", in.Products},
	}
	out := make([]InputFile, 0, len(specs))
	for _, s := range specs {
		f := InputFile{Role: s.role, Path: s.path}
		if s.path == "" {
			return nil, &FileAccessError{Path: s.role, Err: errors.New("path not configured")}
		}
		if httpds.IsURL(s.path) {
			if _, err := client.FetchFirstBytes(ctx, s.path, 512); err != nil {
				return nil, &FileAccessError{Path: s.path, Err: err}
			}
			out = append(out, f)
			continue
		}
		fi, err := os.Stat(s.path)
		if err != nil {
			return nil, &FileAccessError{Path: s.path, Err: err}
		}
		f.SizeBytes = fi.Size()
		if s.role != "trades" {
			sum, err := checksumFile(s.path)
			if err != nil {
				return nil, &FileAccessError{Path: s.path, Err: err}
			}
			f.XXH3 = sum
		}
		out = append(out, f)
	}
	return out, nil
}

// openTrades opens the trade input for streaming. Local files read through
// an xxh3 tee so the raw-byte checksum is a side effect of the single pass;
// the returned hasher is nil for remote inputs.
func openTrades(ctx context.Context, path string, client *httpds.Client) (io.ReadCloser, *xxh3.Hasher, error) {
	if httpds.IsURL(path) {
		rc, err := httpds.NewRemote(client, path).Open(ctx)
		if err != nil {
			return nil, nil, &FileAccessError{Path: path, Err: err}
		}
		return rc, nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &FileAccessError{Path: path, Err: err}
	}
	h := xxh3.New()
	rc, err := datasource.Decompress(path, &hashReader{f: f, h: h})
	if err != nil {
		return nil, nil, &FileAccessError{Path: path, Err: err}
	}
	return rc, h, nil
}

// hashReader feeds every byte read from the underlying file into the hasher.
// It wraps the raw file, before decompression, so the checksum identifies
// the file on disk.
type hashReader struct {
	f *os.File
	h *xxh3.Hasher
}

func (r *hashReader) Read(p []byte) (int, error) {
	n, err := r.f.Read(p)
	if n > 0 {
		_, _ = r.h.Write(p[:n])
	}
	return n, err
}

func (r *hashReader) Close() error { return r.f.Close() }

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hexSum(h), nil
}

func hexSum(h *xxh3.Hasher) string {
	sum := h.Sum128()
	return fmt.Sprintf("%016x%016x", sum.Hi, sum.Lo)
}
