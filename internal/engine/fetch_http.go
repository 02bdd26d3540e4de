package engine

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// FetchRetry controls backoff for plain GET fetches.
type FetchRetry struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxTries        uint
	MaxElapsed      time.Duration
}

// DefaultFetchRetry is used for caption track downloads.
var DefaultFetchRetry = FetchRetry{
	InitialInterval: 1 * time.Second,
	MaxInterval:     10 * time.Second,
	MaxTries:        3,
	MaxElapsed:      30 * time.Second,
}

// StatusError reports a non-200 response that was not worth retrying (or ran out of tries).
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// FetchWithRetry performs an HTTP GET with retry logic using exponential backoff
// and returns the (decompressed) body, capped at maxBytes.
func FetchWithRetry(ctx context.Context, client *http.Client, rc FetchRetry, fetchURL string, headers map[string]string, maxBytes int64) ([]byte, error) {
	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		req.Header.Set("Accept-Encoding", "gzip")

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		defer resp.Body.Close()

		if isTransientStatus(resp.StatusCode) {
			return nil, &StatusError{URL: fetchURL, StatusCode: resp.StatusCode}
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(&StatusError{URL: fetchURL, StatusCode: resp.StatusCode})
		}
		return readResponseBody(resp, maxBytes)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = rc.InitialInterval
	bo.MaxInterval = rc.MaxInterval

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(rc.MaxTries),
		backoff.WithMaxElapsedTime(rc.MaxElapsed),
	)
}

// readResponseBody reads the response body, handling gzip decompression if needed.
// Go's transport only decompresses transparently when it set Accept-Encoding itself.
func readResponseBody(resp *http.Response, maxBytes int64) ([]byte, error) {
	var r io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(io.LimitReader(r, maxBytes))
}
