package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bssilva06/yourtranscript/internal/engine"
)

const sampleTimedText = `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="0" dur="1.5">hello</text>
<text start="1.5" dur="2.25">it&amp;#39;s   a &lt;font color=&quot;#fff&quot;&gt;test&lt;/font&gt;</text>
<text start="3.75" dur="1"></text>
<text start="4.75" dur="0.5">bye</text>
</transcript>`

const sampleSrv3 = `<?xml version="1.0" encoding="utf-8" ?><timedtext format="3"><body>
<p t="0" d="1200">plain line</p>
<p t="1200" d="800"><s>word</s><s> by</s><s> word</s></p>
<p t="2000" d="500">   </p>
</body></timedtext>`

func TestParseTimedText(t *testing.T) {
	segs, err := parseTimedText([]byte(sampleTimedText))
	require.NoError(t, err)
	require.Len(t, segs, 3)

	assert.Equal(t, engine.Segment{Text: "hello", Start: 0, Duration: 1.5}, segs[0])
	assert.Equal(t, "it's a test", segs[1].Text)
	assert.Equal(t, 1.5, segs[1].Start)
	assert.Equal(t, 2.25, segs[1].Duration)
	assert.Equal(t, "bye", segs[2].Text)
}

func TestParseTimedTextSrv3(t *testing.T) {
	segs, err := parseTimedText([]byte(sampleSrv3))
	require.NoError(t, err)
	require.Len(t, segs, 2)

	assert.Equal(t, engine.Segment{Text: "plain line", Start: 0, Duration: 1.2}, segs[0])
	assert.Equal(t, "word by word", segs[1].Text)
	assert.InDelta(t, 1.2, segs[1].Start, 1e-9)
	assert.InDelta(t, 0.8, segs[1].Duration, 1e-9)
}

func TestParseTimedTextNonFiniteTimesEncode(t *testing.T) {
	segs, err := parseTimedText([]byte(`<transcript><text start="NaN" dur="+Inf">odd</text></transcript>`))
	require.NoError(t, err)
	require.Len(t, segs, 1)

	_, err = json.Marshal(segs)
	assert.NoError(t, err)
	assert.Equal(t, engine.Segment{Text: "odd"}, segs[0])
}

func TestParseTimedTextInvalid(t *testing.T) {
	_, err := parseTimedText([]byte("<transcript><text"))
	assert.Error(t, err)
}

func TestParseSecondsRejectsInvalid(t *testing.T) {
	assert.Equal(t, 0.0, parseSeconds("-1"))
	assert.Equal(t, 0.0, parseSeconds("abc"))
	assert.Equal(t, 0.0, parseSeconds("NaN"))
	assert.Equal(t, 0.0, parseSeconds("Inf"))
	assert.Equal(t, 0.0, parseSeconds("-Infinity"))
	assert.Equal(t, 2.5, parseSeconds(" 2.5 "))
	assert.Equal(t, 0.0, parseMillis("-20"))
	assert.Equal(t, 1.5, parseMillis("1500"))
}

func TestPickTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "u-de", LanguageCode: "de"},
		{BaseURL: "u-en-asr", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "u-en-gb", LanguageCode: "en-GB"},
		{BaseURL: "u-en-po&exp=xpe", LanguageCode: "en"},
	}
	langs := []string{"en", "en-US", "en-GB"}

	tests := []struct {
		name    string
		tracks  []captionTrack
		want    string
		wantErr error
	}{
		{"manual beats preferred generated", tracks, "u-en-gb", nil},
		{"generated when no manual match", tracks[:2], "u-en-asr", nil},
		{"no matching language", tracks[:1], "", engine.ErrNoTranscriptFound},
		{"potoken only", tracks[3:], "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickTrack(tt.tracks, langs)
			if tt.want == "" {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.NotErrorIs(t, err, engine.ErrNoTranscriptFound)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.BaseURL)
		})
	}
}

func playerJSON(status, reason string, tracks ...captionTrack) string {
	var sb strings.Builder
	for i, t := range tracks {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, `{"baseUrl":%q,"languageCode":%q,"kind":%q}`, t.BaseURL, t.LanguageCode, t.Kind)
	}
	captions := ""
	if len(tracks) > 0 {
		captions = fmt.Sprintf(`,"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[%s]}}`, sb.String())
	}
	return fmt.Sprintf(`{"playabilityStatus":{"status":%q,"reason":%q}%s}`, status, reason, captions)
}

func TestClassifyPlayer(t *testing.T) {
	withTrack := captionTrack{BaseURL: "u", LanguageCode: "en"}
	tests := []struct {
		name   string
		status string
		reason string
		tracks []captionTrack
		want   error // nil = ok; errInternal = some other error
	}{
		{"ok with captions", "OK", "", []captionTrack{withTrack}, nil},
		{"ok no captions", "OK", "", nil, engine.ErrTranscriptsDisabled},
		{"error", "ERROR", "This video is unavailable", nil, engine.ErrVideoUnavailable},
		{"unplayable", "UNPLAYABLE", "", nil, engine.ErrVideoUnavailable},
		{"private", "LOGIN_REQUIRED", "This video is private", nil, engine.ErrVideoUnavailable},
		{"bot check", "LOGIN_REQUIRED", "Sign in to confirm you're not a bot", nil, errInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parseWatchPage([]byte(watchPageHTML(playerJSON(tt.status, tt.reason, tt.tracks...))))
			require.NoError(t, err)

			got := classifyPlayer(p)
			switch tt.want {
			case nil:
				assert.NoError(t, got)
			case errInternal:
				require.Error(t, got)
				for _, known := range []error{engine.ErrTranscriptsDisabled, engine.ErrNoTranscriptFound, engine.ErrVideoUnavailable} {
					assert.NotErrorIs(t, got, known)
				}
			default:
				assert.ErrorIs(t, got, tt.want)
			}
		})
	}
}

var errInternal = errors.New("internal")

func watchPageHTML(player string) string {
	return `<!DOCTYPE html><html><head><title>video</title></head><body>
<script>var ytcfg = {"a":1};</script>
<script nonce="x">var ytInitialPlayerResponse = ` + player + `;var meta = {"x":"}"};</script>
</body></html>`
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1};rest`, `{"a":1}`},
		{`{"a":"}"}tail`, `{"a":"}"}`},
		{`{"a":"\\"}x`, `{"a":"\\"}`},
		{`{"a":"\"}"}x`, `{"a":"\"}"}`},
		{`{"a":{"b":{}}} `, `{"a":{"b":{}}}`},
		{`[1]`, ``},
		{`{"open":`, ``},
	}
	for _, tt := range tests {
		got := string(extractJSON([]byte(tt.in)))
		if got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseWatchPageMissingMarker(t *testing.T) {
	_, err := parseWatchPage([]byte(`<html><script>var x = 1;</script></html>`))
	assert.Error(t, err)
}

// fakeYouTube serves a watch page, an ANDROID /player endpoint and caption tracks.
type fakeYouTube struct {
	srv         *httptest.Server
	watchBody   func(base string) string
	playerBody  func(base string) string
	timedText   string
	playerCalls atomic.Int32
}

func newFakeYouTube(t *testing.T) *fakeYouTube {
	t.Helper()
	fy := &fakeYouTube{timedText: sampleTimedText}
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if fy.watchBody == nil {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, fy.watchBody(fy.srv.URL))
	})
	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		fy.playerCalls.Add(1)
		if fy.playerBody == nil {
			http.Error(w, "no", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, fy.playerBody(fy.srv.URL))
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, fy.timedText)
	})
	fy.srv = httptest.NewServer(mux)
	t.Cleanup(fy.srv.Close)
	return fy
}

func (fy *fakeYouTube) client() *YouTube {
	return NewYouTube(engine.Config{HTTPClient: fy.srv.Client(), Languages: []string{"en"}},
		WithEndpoints(fy.srv.URL+"/watch?v=", fy.srv.URL+"/player"),
		WithFetchRetry(engine.FetchRetry{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxTries: 1, MaxElapsed: time.Second}),
	)
}

func TestFetchTranscriptFromWatchPage(t *testing.T) {
	fy := newFakeYouTube(t)
	fy.watchBody = func(base string) string {
		return watchPageHTML(playerJSON("OK", "",
			captionTrack{BaseURL: base + "/timedtext?lang=en-GB", LanguageCode: "en-GB"},
			captionTrack{BaseURL: base + "/timedtext?lang=en", LanguageCode: "en", Kind: "asr"},
		))
	}

	tr, err := fy.client().FetchTranscript(context.Background(), "dQw4w9WgXcQ", []string{"en", "en-GB"})

	require.NoError(t, err)
	assert.Equal(t, "en-GB", tr.Language, "manual track wins over generated")
	require.Len(t, tr.Segments, 3)
	assert.Equal(t, "hello", tr.Segments[0].Text)
	assert.Zero(t, fy.playerCalls.Load())
}

func TestFetchTranscriptFallsBackToAndroidPlayer(t *testing.T) {
	fy := newFakeYouTube(t)
	fy.playerBody = func(base string) string {
		return playerJSON("OK", "", captionTrack{BaseURL: base + "/timedtext", LanguageCode: "en"})
	}

	tr, err := fy.client().FetchTranscript(context.Background(), "dQw4w9WgXcQ", []string{"en"})

	require.NoError(t, err)
	assert.Len(t, tr.Segments, 3)
	assert.EqualValues(t, 1, fy.playerCalls.Load())
}

func TestFetchTranscriptOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		player string
		want   error
	}{
		{"disabled", playerJSON("OK", ""), engine.ErrTranscriptsDisabled},
		{"unavailable", playerJSON("ERROR", "Video unavailable"), engine.ErrVideoUnavailable},
		{"no language", playerJSON("OK", "", captionTrack{BaseURL: "http://x/t", LanguageCode: "fr"}), engine.ErrNoTranscriptFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fy := newFakeYouTube(t)
			player := tt.player
			fy.watchBody = func(string) string { return watchPageHTML(player) }

			_, err := fy.client().FetchTranscript(context.Background(), "dQw4w9WgXcQ", []string{"en"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetchTranscriptEmptyTrack(t *testing.T) {
	fy := newFakeYouTube(t)
	fy.timedText = `<transcript></transcript>`
	fy.watchBody = func(base string) string {
		return watchPageHTML(playerJSON("OK", "", captionTrack{BaseURL: base + "/timedtext", LanguageCode: "en"}))
	}

	_, err := fy.client().FetchTranscript(context.Background(), "dQw4w9WgXcQ", []string{"en"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}
