// Package netx holds small HTTP helpers.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Probe issues a HEAD request to url and returns the response status code.
// A transport failure is returned as an error; any HTTP status, including
// 4xx/5xx, is reported through the code.
func Probe(ctx context.Context, client *http.Client, url string) (int, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", req.URL.Redacted(), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
