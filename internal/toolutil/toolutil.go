// Package toolutil provides shared helpers for the worker's HTTP, MCP and queue surfaces.
package toolutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// MaxBodyBytes caps request and message bodies.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes a single JSON value of type T from r, reading at most MaxBodyBytes.
func DecodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(io.LimitReader(r, MaxBodyBytes))
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return out, errors.New("empty body")
		}
		return out, fmt.Errorf("decode json: %w", err)
	}
	return out, nil
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", slog.Any("error", err))
	}
}
