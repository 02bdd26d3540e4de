package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/bssilva06/yourtranscript/internal/engine"
)

// YouTube transcript fetching.
// Primary:  scrape watch page ytInitialPlayerResponse → caption track
// Fallback: ANDROID Innertube /player → captionTracks (when the page fails or is login-gated)

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// maxTimedTextBytes caps a single caption track download.
const maxTimedTextBytes = 2 * 1024 * 1024

// YouTube fetches caption tracks from YouTube. Safe for concurrent use.
type YouTube struct {
	client    *http.Client
	browser   *engine.BrowserClient
	limiter   *rate.Limiter
	retry     engine.FetchRetry
	watchURL  string
	playerURL string
}

// Option customizes a YouTube client.
type Option func(*YouTube)

// WithEndpoints overrides the watch page prefix and the Innertube /player URL.
func WithEndpoints(watchURL, playerURL string) Option {
	return func(yt *YouTube) {
		yt.watchURL = watchURL
		yt.playerURL = playerURL
	}
}

// WithFetchRetry overrides the backoff used for caption track downloads.
func WithFetchRetry(rc engine.FetchRetry) Option {
	return func(yt *YouTube) { yt.retry = rc }
}

// NewYouTube builds a client from the engine configuration.
func NewYouTube(c engine.Config, opts ...Option) *YouTube {
	c = c.WithDefaults()
	yt := &YouTube{
		client:    c.HTTPClient,
		browser:   c.BrowserClient,
		retry:     engine.DefaultFetchRetry,
		watchURL:  ytWatchURL,
		playerURL: ytInnertubeURL,
	}
	if c.YouTubeRPS > 0 {
		yt.limiter = rate.NewLimiter(rate.Limit(c.YouTubeRPS), c.YouTubeBurst)
	}
	for _, o := range opts {
		o(yt)
	}
	return yt
}

func (yt *YouTube) wait(ctx context.Context) error {
	if yt.limiter == nil {
		return nil
	}
	return yt.limiter.Wait(ctx)
}

// FetchTranscript returns the ordered caption segments of videoID in the first
// available language of langs. Known outcomes wrap engine.ErrTranscriptsDisabled,
// engine.ErrNoTranscriptFound or engine.ErrVideoUnavailable.
func (yt *YouTube) FetchTranscript(ctx context.Context, videoID string, langs []string) (engine.Transcript, error) {
	engine.IncrYouTubeTranscript()

	player, err := yt.playerFromWatchPage(ctx, videoID)
	if err != nil || player.loginRequired() {
		slog.Warn("youtube: watch page unusable, trying android player",
			slog.String("id", videoID), slog.Any("err", err))
		alt, altErr := yt.playerFromAndroid(ctx, videoID)
		switch {
		case altErr == nil:
			player, err = alt, nil
		case err != nil:
			return engine.Transcript{}, fmt.Errorf("watch page: %v; android player: %w", err, altErr)
		}
	}

	if err := classifyPlayer(player); err != nil {
		return engine.Transcript{}, err
	}

	track, err := pickTrack(player.tracks(), langs)
	if err != nil {
		return engine.Transcript{}, err
	}

	segments, err := yt.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return engine.Transcript{}, err
	}
	return engine.Transcript{Segments: segments, Language: track.LanguageCode}, nil
}

func (yt *YouTube) playerFromWatchPage(ctx context.Context, videoID string) (playerResp, error) {
	body, err := yt.getWatchPage(ctx, videoID)
	if err != nil {
		return playerResp{}, err
	}
	return parseWatchPage(body)
}

func (yt *YouTube) playerFromAndroid(ctx context.Context, videoID string) (playerResp, error) {
	data, err := yt.postInnertubeAndroid(ctx, videoID)
	if err != nil {
		return playerResp{}, err
	}
	var p playerResp
	if err := json.Unmarshal(data, &p); err != nil {
		return playerResp{}, fmt.Errorf("decode player: %w", err)
	}
	return p, nil
}

// parseWatchPage finds the inline script carrying ytInitialPlayerResponse and decodes it.
func parseWatchPage(body []byte) (playerResp, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return playerResp{}, fmt.Errorf("parse watch page: %w", err)
	}

	var raw []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, ytInitialPlayerResponseMarker)
		if idx < 0 {
			return true
		}
		raw = extractJSON([]byte(text[idx+len(ytInitialPlayerResponseMarker):]))
		return raw == nil
	})
	if raw == nil {
		return playerResp{}, errors.New("ytInitialPlayerResponse not found in watch page")
	}

	var p playerResp
	if err := json.Unmarshal(raw, &p); err != nil {
		return playerResp{}, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return p, nil
}

// extractJSON returns the balanced JSON object at the start of b, or nil.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

func (p playerResp) loginRequired() bool {
	status, _ := p.status()
	return status == "LOGIN_REQUIRED"
}

// classifyPlayer maps playability and caption presence to collaborator outcomes.
func classifyPlayer(p playerResp) error {
	status, reason := p.status()
	switch status {
	case "", "OK":
	case "ERROR", "UNPLAYABLE":
		if reason == "" {
			return engine.ErrVideoUnavailable
		}
		return fmt.Errorf("%w: %s", engine.ErrVideoUnavailable, reason)
	case "LOGIN_REQUIRED":
		if strings.Contains(strings.ToLower(reason), "private") {
			return fmt.Errorf("%w: %s", engine.ErrVideoUnavailable, reason)
		}
		return fmt.Errorf("youtube requires sign-in: %s", reason)
	default:
		return fmt.Errorf("youtube playability %s: %s", status, reason)
	}

	if len(p.tracks()) == 0 {
		return engine.ErrTranscriptsDisabled
	}
	return nil
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickTrack selects the caption track for the given language preferences.
// Manual tracks win over auto-generated ones; within each kind, preference order wins.
func pickTrack(tracks []captionTrack, langs []string) (captionTrack, error) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, errors.New("all caption tracks require PoToken")
	}

	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, nil
			}
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, nil
			}
		}
	}

	available := make([]string, 0, len(usable))
	for _, t := range usable {
		available = append(available, t.LanguageCode)
	}
	return captionTrack{}, fmt.Errorf("%w (requested %s, available %s)",
		engine.ErrNoTranscriptFound, strings.Join(langs, ","), strings.Join(available, ","))
}

// fetchTimedText downloads a caption track and parses it into ordered segments.
func (yt *YouTube) fetchTimedText(ctx context.Context, baseURL string) ([]engine.Segment, error) {
	if err := yt.wait(ctx); err != nil {
		return nil, err
	}
	body, err := engine.FetchWithRetry(ctx, yt.client, yt.retry, baseURL, map[string]string{
		"User-Agent":      engine.UserAgentChrome,
		"Accept-Language": "en-US,en;q=0.9",
	}, maxTimedTextBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}

	segments, err := parseTimedText(body)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, errors.New("caption track is empty")
	}
	return segments, nil
}

// parseTimedText decodes timedtext XML (format 1 or srv3) into segments, skipping empty lines.
func parseTimedText(body []byte) ([]engine.Segment, error) {
	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	segments := make([]engine.Segment, 0, len(tt.Lines)+len(tt.Paragraphs))
	for _, line := range tt.Lines {
		text := engine.CleanCaption(line.Text)
		if text == "" {
			continue
		}
		segments = append(segments, engine.Segment{
			Text:     text,
			Start:    parseSeconds(line.Start),
			Duration: parseSeconds(line.Dur),
		})
	}
	for _, p := range tt.Paragraphs {
		raw := p.Text
		if len(p.Words) > 0 {
			var sb strings.Builder
			for _, w := range p.Words {
				sb.WriteString(w.Text)
			}
			raw = sb.String()
		}
		text := engine.CleanCaption(raw)
		if text == "" {
			continue
		}
		segments = append(segments, engine.Segment{
			Text:     text,
			Start:    parseMillis(p.T),
			Duration: parseMillis(p.D),
		})
	}
	return segments, nil
}

func parseSeconds(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseMillis(s string) float64 {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || ms < 0 {
		return 0
	}
	return float64(ms) / 1000
}
