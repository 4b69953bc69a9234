package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"tradeflow/internal/datasource"
)

// Remote is a datasource.Source that streams a URL through the retrying
// client. Compressed payloads are unwrapped by the extension of the URL path,
// the same way local files are.
type Remote struct {
	client *Client
	url    string
}

var _ datasource.Source = (*Remote)(nil)

// NewRemote binds a Remote source to url using client. A nil client gets the
// package defaults.
func NewRemote(client *Client, rawURL string) *Remote {
	if client == nil {
		client = NewClient(Config{})
	}
	return &Remote{client: client, url: rawURL}
}

// Open issues a GET and returns the (possibly decompressed) response body.
// Non-200 statuses that survive the retry policy are reported as errors.
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := r.client.Get(ctx, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpds: get %s: %w", r.url, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("httpds: get %s: unexpected status %d", r.url, resp.StatusCode)
	}

	name := r.url
	if u, err := url.Parse(r.url); err == nil && u.Path != "" {
		name = u.Path
	}
	return datasource.Decompress(name, resp.Body)
}

// IsURL reports whether the given input path should be treated as a remote
// source rather than a local file.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}
