package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bssilva06/yourtranscript/internal/engine"
)

// TranscriptFetcher is the external collaborator that retrieves caption data.
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID string, langs []string) (engine.Transcript, error)
}

// ErrorCategory classifies a failed extraction.
type ErrorCategory string

const (
	CategoryTranscriptsDisabled ErrorCategory = "transcripts_disabled"
	CategoryNoTranscriptFound   ErrorCategory = "no_transcript_found"
	CategoryVideoUnavailable    ErrorCategory = "video_unavailable"
	CategoryInternal            ErrorCategory = "internal"
)

// ExtractionError is the failure arm of Result.
type ExtractionError struct {
	Category ErrorCategory
	Message  string
}

func (e *ExtractionError) Error() string { return e.Message }

// Known reports whether the category is one of the classified, terminal outcomes.
func (e *ExtractionError) Known() bool { return e.Category != CategoryInternal }

// Result is either a transcript (Failure == nil) or a classified failure.
type Result struct {
	Segments []engine.Segment
	Language string
	Failure  *ExtractionError
}

// OK reports whether extraction succeeded.
func (r Result) OK() bool { return r.Failure == nil }

// Extractor turns collaborator outcomes into Results.
type Extractor struct {
	fetcher       TranscriptFetcher
	languages     []string
	primary       string
	reportMatched bool
	timeout       time.Duration
}

// NewExtractor wires the collaborator with the language preferences from c.
func NewExtractor(f TranscriptFetcher, c engine.Config) *Extractor {
	c = c.WithDefaults()
	return &Extractor{
		fetcher:       f,
		languages:     c.Languages,
		primary:       c.PrimaryLanguage(),
		reportMatched: c.ReportMatchedLanguage,
		timeout:       c.FetchTimeout,
	}
}

// Extract performs the single collaborator call for a validated id.
func (x *Extractor) Extract(ctx context.Context, videoID string) Result {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	var tr engine.Transcript
	err := engine.TrackOperation(ctx, "fetch_transcript", func(ctx context.Context) error {
		var err error
		tr, err = x.fetch(ctx, videoID)
		return err
	})
	if err != nil {
		f := classify(err)
		countFailure(f.Category)
		slog.Warn("extract failed",
			slog.String("video_id", videoID),
			slog.String("category", string(f.Category)),
			slog.Any("error", err))
		return Result{Failure: f}
	}

	engine.IncrExtractSuccesses()
	lang := x.primary
	if x.reportMatched && tr.Language != "" {
		lang = tr.Language
	}
	segments := tr.Segments
	if segments == nil {
		segments = []engine.Segment{}
	}
	return Result{Segments: segments, Language: lang}
}

// fetch calls the collaborator, turning a panic into an ordinary error.
func (x *Extractor) fetch(ctx context.Context, videoID string) (tr engine.Transcript, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transcript fetcher panicked: %v", r)
		}
	}()
	return x.fetcher.FetchTranscript(ctx, videoID, x.languages)
}

func classify(err error) *ExtractionError {
	switch {
	case errors.Is(err, engine.ErrTranscriptsDisabled):
		return &ExtractionError{Category: CategoryTranscriptsDisabled, Message: capitalize(err.Error())}
	case errors.Is(err, engine.ErrNoTranscriptFound):
		return &ExtractionError{Category: CategoryNoTranscriptFound, Message: capitalize(err.Error())}
	case errors.Is(err, engine.ErrVideoUnavailable):
		return &ExtractionError{Category: CategoryVideoUnavailable, Message: capitalize(err.Error())}
	default:
		return &ExtractionError{Category: CategoryInternal, Message: "Failed to extract transcript: " + err.Error()}
	}
}

func countFailure(c ErrorCategory) {
	switch c {
	case CategoryTranscriptsDisabled:
		engine.IncrExtractDisabled()
	case CategoryNoTranscriptFound:
		engine.IncrExtractNotFound()
	case CategoryVideoUnavailable:
		engine.IncrExtractUnavailable()
	default:
		engine.IncrExtractInternal()
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
