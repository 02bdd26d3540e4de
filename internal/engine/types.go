package engine

import "errors"

// Segment is one caption line: text shown from Start for Duration seconds.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Transcript is the ordered caption sequence of a video as returned by a collaborator.
type Transcript struct {
	Segments []Segment
	Language string // language code of the caption track actually used
}

// Collaborator outcomes. Fetchers wrap these so callers can classify with errors.Is.
var (
	ErrTranscriptsDisabled = errors.New("transcripts are disabled for this video")
	ErrNoTranscriptFound   = errors.New("no transcript found for the requested languages")
	ErrVideoUnavailable    = errors.New("video is unavailable")
)
