package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bssilva06/yourtranscript/internal/engine"
)

// CallbackSuccess is POSTed to the callback URL when extraction succeeded.
type CallbackSuccess struct {
	JobID    string           `json:"job_id"`
	VideoID  string           `json:"video_id"`
	UserID   string           `json:"user_id"`
	Segments []engine.Segment `json:"segments"`
	Language string           `json:"language"`
}

// CallbackFailure is POSTed to the callback URL when extraction failed.
// It never carries segments; the presence of Error discriminates the case.
type CallbackFailure struct {
	JobID   string `json:"job_id"`
	VideoID string `json:"video_id"`
	UserID  string `json:"user_id"`
	Error   string `json:"error"`
}

// NewCallbackPayload builds the payload for job from an extraction result.
// The result is either a CallbackSuccess or a CallbackFailure.
func NewCallbackPayload(job AsyncJobRequest, videoID string, r Result) any {
	if !r.OK() {
		return CallbackFailure{
			JobID:   job.JobID,
			VideoID: videoID,
			UserID:  job.UserID,
			Error:   r.Failure.Message,
		}
	}
	return CallbackSuccess{
		JobID:    job.JobID,
		VideoID:  videoID,
		UserID:   job.UserID,
		Segments: r.Segments,
		Language: r.Language,
	}
}

// DeliveryError reports a transport-level failure of a callback POST.
type DeliveryError struct {
	URL string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("callback delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Deliverer POSTs callback payloads. It makes exactly one attempt per call.
type Deliverer struct {
	client *http.Client
}

// NewDeliverer returns a Deliverer whose requests are bounded by timeout.
func NewDeliverer(timeout time.Duration) *Deliverer {
	return &Deliverer{client: &http.Client{Timeout: timeout}}
}

// Deliver sends payload as JSON to callbackURL. Only transport failures are errors;
// the receiver's status code is logged but not checked.
func (d *Deliverer) Deliver(ctx context.Context, callbackURL string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryError{URL: callbackURL, Err: fmt.Errorf("encode payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{URL: callbackURL, Err: err}
	}
	deliveryID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", engine.UserAgentBot)
	req.Header.Set("X-Delivery-ID", deliveryID)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		engine.IncrCallbackFailures()
		return &DeliveryError{URL: callbackURL, Err: err}
	}
	defer resp.Body.Close()
	engine.IncrCallbackDeliveries()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Warn("callback: receiver returned non-success status",
			slog.String("delivery_id", deliveryID),
			slog.Int("status", resp.StatusCode),
			slog.String("body", engine.TruncateRunes(string(snippet), 200, "...")))
	} else {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	}

	slog.Info("callback delivered",
		slog.String("delivery_id", deliveryID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}
