package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// FetchFirstBytes retrieves up to n bytes from the given URL. The pipeline
// uses it to probe remote inputs before committing to a full streaming pass.
//
// A Range header ("bytes=0-(n-1)") asks the server to send only the prefix;
// a client-side limit caps the read even when the server ignores Range and
// answers with the whole object. Any status other than 200 or 206 is an
// error: a reachable server that cannot serve the object must fail the probe.
func (c *Client) FetchFirstBytes(ctx context.Context, url string, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("httpds: n must be > 0")
	}

	h := make(http.Header)
	h.Set("Range", fmt.Sprintf("bytes=0-%d", n-1))

	resp, err := c.Do(ctx, http.MethodGet, url, h)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("httpds: peek %s: unexpected status %d", url, resp.StatusCode)
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, int64(n)))
	if err != nil {
		return nil, fmt.Errorf("httpds: peek %s: %w", url, err)
	}
	return buf, nil
}
