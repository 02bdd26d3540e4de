package engine

import (
	"net/http"
	"time"
)

// DefaultLanguages is the ordered caption language preference list.
var DefaultLanguages = []string{"en", "en-US", "en-GB"}

// Config holds all engine configuration, built in main and passed to constructors.
type Config struct {
	Languages             []string      // ordered preference; Languages[0] is the primary language
	ReportMatchedLanguage bool          // report the caption track actually matched instead of Languages[0]
	FetchTimeout          time.Duration // bound on a single collaborator call
	CallbackTimeout       time.Duration // bound on a single callback POST
	YouTubeRPS            float64       // outbound YouTube requests per second, 0 = unlimited
	YouTubeBurst          int
	HTTPClient            *http.Client
	BrowserClient         *BrowserClient // nil = watch page fetched with HTTPClient
}

// PrimaryLanguage returns the first language preference.
func (c Config) PrimaryLanguage() string {
	if len(c.Languages) == 0 {
		return DefaultLanguages[0]
	}
	return c.Languages[0]
}

// WithDefaults fills zero values with the defaults used by main.
func (c Config) WithDefaults() Config {
	if len(c.Languages) == 0 {
		c.Languages = append([]string(nil), DefaultLanguages...)
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.CallbackTimeout <= 0 {
		c.CallbackTimeout = 30 * time.Second
	}
	if c.YouTubeBurst <= 0 {
		c.YouTubeBurst = 1
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return c
}
