package jobs

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// VideoIDLength is the fixed length of a YouTube video identifier.
const VideoIDLength = 11

// ValidationKind enumerates request validation failures.
type ValidationKind string

const (
	EmptyID         ValidationKind = "empty_id"
	InvalidFormat   ValidationKind = "invalid_format"
	InvalidCallback ValidationKind = "invalid_callback"
)

// ValidationError rejects a request before any extraction work happens.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validate trims rawID and checks it has the shape of a video identifier.
// Only the length is checked; the character set is left to the platform.
func Validate(rawID string) (string, *ValidationError) {
	id := strings.TrimSpace(rawID)
	if id == "" {
		return "", &ValidationError{Kind: EmptyID, Message: "video_id is required"}
	}
	if n := utf8.RuneCountInString(id); n != VideoIDLength {
		return "", &ValidationError{
			Kind:    InvalidFormat,
			Message: fmt.Sprintf("invalid video_id: expected %d characters, got %d", VideoIDLength, n),
		}
	}
	return id, nil
}

// ValidateCallbackURL trims raw and requires an absolute http(s) URL.
// The trimmed URL is the one callbacks are delivered to.
func ValidateCallbackURL(raw string) (string, *ValidationError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ValidationError{Kind: InvalidCallback, Message: "callback_url is required"}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &ValidationError{Kind: InvalidCallback, Message: "invalid callback_url: must be an absolute http(s) URL"}
	}
	return raw, nil
}
