package engine

import (
	"context"
	"net/http"

	stealth "github.com/anatolykoptev/go-stealth"
)

// Outbound YouTube traffic goes through go-stealth: status-aware retries,
// rotated desktop user agents and an optional TLS-fingerprinted client.

// BrowserClient fetches pages with a Chrome TLS fingerprint. A nil
// Config.BrowserClient means plain net/http.
type BrowserClient = stealth.BrowserClient

// PlayerRetry is the retry policy for watch page and /player requests.
var PlayerRetry = stealth.DefaultRetryConfig

// DoWithRetry sends the request built by newReq through client, retrying
// transport errors and transient statuses under PlayerRetry.
// newReq runs once per attempt.
func DoWithRetry(ctx context.Context, client *http.Client, newReq func() (*http.Request, error)) (*http.Response, error) {
	return stealth.RetryHTTP(ctx, PlayerRetry, func() (*http.Response, error) {
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		return client.Do(req)
	})
}

// BrowserHeaders returns the headers desktop Chrome sends on a page load.
func BrowserHeaders() map[string]string { return stealth.ChromeHeaders() }

// DesktopUserAgent returns a rotated desktop browser User-Agent.
func DesktopUserAgent() string { return stealth.RandomUserAgent() }

func isTransientStatus(code int) bool { return stealth.IsRetryableStatus(code) }
