package jobs

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/bssilva06/yourtranscript/internal/engine"
)

// SyncRequest is the body of POST /extract.
type SyncRequest struct {
	VideoID string `json:"video_id" jsonschema:"YouTube video ID (11 characters)"`
}

// AsyncJobRequest is the body of POST /extract-async. JobID and UserID are opaque
// and echoed back verbatim in the callback payload.
type AsyncJobRequest struct {
	VideoID     string `json:"video_id" jsonschema:"YouTube video ID (11 characters)"`
	JobID       string `json:"job_id" jsonschema:"Caller-assigned job identifier, echoed back"`
	CallbackURL string `json:"callback_url" jsonschema:"URL that receives the result as a JSON POST"`
	UserID      string `json:"user_id" jsonschema:"Caller-assigned user identifier, echoed back"`
}

// ExtractResponse is the success body of POST /extract.
type ExtractResponse struct {
	VideoID  string           `json:"video_id"`
	Segments []engine.Segment `json:"segments"`
	Language string           `json:"language"`
}

// StatusResponse is the acknowledgement returned to the trigger of an async job.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse carries a human-readable error description.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Response is a transport-neutral outcome: an HTTP status plus a JSON-encodable body.
type Response struct {
	Status int
	Body   any
}

// Dispatcher composes validation, extraction and callback delivery.
type Dispatcher struct {
	extractor *Extractor
	deliverer *Deliverer
}

// NewDispatcher returns a Dispatcher using x for extraction and d for callbacks.
func NewDispatcher(x *Extractor, d *Deliverer) *Dispatcher {
	return &Dispatcher{extractor: x, deliverer: d}
}

// HandleSync validates, extracts and renders the result directly.
func (d *Dispatcher) HandleSync(ctx context.Context, req SyncRequest) Response {
	engine.IncrExtractRequests()

	id, verr := Validate(req.VideoID)
	if verr != nil {
		return validationResponse(verr)
	}

	r := d.extractor.Extract(ctx, id)
	if !r.OK() {
		return failureResponse(r.Failure)
	}
	return Response{Status: http.StatusOK, Body: ExtractResponse{
		VideoID:  id,
		Segments: r.Segments,
		Language: r.Language,
	}}
}

// HandleAsync validates and extracts, then makes exactly one callback delivery
// attempt carrying either the transcript or the extraction error.
func (d *Dispatcher) HandleAsync(ctx context.Context, job AsyncJobRequest) Response {
	engine.IncrExtractAsyncRequests()

	id, verr := Validate(job.VideoID)
	var callbackURL string
	if verr == nil {
		callbackURL, verr = ValidateCallbackURL(job.CallbackURL)
	}
	if verr != nil {
		return validationResponse(verr)
	}

	r := d.extractor.Extract(ctx, id)
	payload := NewCallbackPayload(job, id, r)

	if err := d.deliverer.Deliver(ctx, callbackURL, payload); err != nil {
		slog.Error("extract-async: callback delivery failed",
			slog.String("job_id", job.JobID),
			slog.String("video_id", id),
			slog.Any("error", err))
		return Response{Status: http.StatusInternalServerError, Body: ErrorResponse{Detail: err.Error()}}
	}

	slog.Info("extract-async: job delivered",
		slog.String("job_id", job.JobID),
		slog.String("video_id", id),
		slog.Bool("extracted", r.OK()))
	return Response{Status: http.StatusOK, Body: StatusResponse{Status: "delivered"}}
}

func validationResponse(e *ValidationError) Response {
	engine.IncrValidationFailures()
	return Response{Status: http.StatusBadRequest, Body: ErrorResponse{Detail: e.Message}}
}

func failureResponse(f *ExtractionError) Response {
	status := http.StatusNotFound
	if !f.Known() {
		status = http.StatusInternalServerError
	}
	return Response{Status: status, Body: ErrorResponse{Detail: f.Message}}
}
