package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the worker.
var metrics struct {
	ExtractRequests           atomic.Int64
	ExtractAsyncRequests      atomic.Int64
	ValidationFailures        atomic.Int64
	ExtractSuccesses          atomic.Int64
	ExtractDisabled           atomic.Int64
	ExtractNotFound           atomic.Int64
	ExtractUnavailable        atomic.Int64
	ExtractInternalErrors     atomic.Int64
	CallbackDeliveries        atomic.Int64
	CallbackFailures          atomic.Int64
	YouTubeTranscriptRequests atomic.Int64
	QueueMessages             atomic.Int64
}

var metricKeys = []string{
	"extract_requests", "extract_async_requests", "validation_failures",
	"extract_successes", "extract_disabled", "extract_not_found",
	"extract_unavailable", "extract_internal_errors",
	"callback_deliveries", "callback_failures",
	"youtube_transcript_requests", "queue_messages",
}

// GetMetrics returns a snapshot of all metrics.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"extract_requests":            metrics.ExtractRequests.Load(),
		"extract_async_requests":      metrics.ExtractAsyncRequests.Load(),
		"validation_failures":         metrics.ValidationFailures.Load(),
		"extract_successes":           metrics.ExtractSuccesses.Load(),
		"extract_disabled":            metrics.ExtractDisabled.Load(),
		"extract_not_found":           metrics.ExtractNotFound.Load(),
		"extract_unavailable":         metrics.ExtractUnavailable.Load(),
		"extract_internal_errors":     metrics.ExtractInternalErrors.Load(),
		"callback_deliveries":         metrics.CallbackDeliveries.Load(),
		"callback_failures":           metrics.CallbackFailures.Load(),
		"youtube_transcript_requests": metrics.YouTubeTranscriptRequests.Load(),
		"queue_messages":              metrics.QueueMessages.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the jobs/ sub-package.
func IncrExtractRequests()      { metrics.ExtractRequests.Add(1) }
func IncrExtractAsyncRequests() { metrics.ExtractAsyncRequests.Add(1) }
func IncrValidationFailures()   { metrics.ValidationFailures.Add(1) }
func IncrExtractSuccesses()     { metrics.ExtractSuccesses.Add(1) }
func IncrExtractDisabled()      { metrics.ExtractDisabled.Add(1) }
func IncrExtractNotFound()      { metrics.ExtractNotFound.Add(1) }
func IncrExtractUnavailable()   { metrics.ExtractUnavailable.Add(1) }
func IncrExtractInternal()      { metrics.ExtractInternalErrors.Add(1) }
func IncrCallbackDeliveries()   { metrics.CallbackDeliveries.Add(1) }
func IncrCallbackFailures()     { metrics.CallbackFailures.Add(1) }

// Incrementors for sources/ and queue/.
func IncrYouTubeTranscript() { metrics.YouTubeTranscriptRequests.Add(1) }
func IncrQueueMessages()     { metrics.QueueMessages.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
