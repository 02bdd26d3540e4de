// Package api serves the worker's JSON endpoints through go-mcpserver,
// alongside the MCP tools on the same port.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-mcpserver"

	"github.com/bssilva06/yourtranscript/internal/engine"
	"github.com/bssilva06/yourtranscript/internal/engine/jobs"
	"github.com/bssilva06/yourtranscript/internal/toolutil"
)

// ServiceName identifies the worker in logs.
const ServiceName = "yourtranscript"

// NewConfig returns the server configuration for the HTTP API.
// The built-in /health is replaced by the plain {"status":"ok"} one, CORS allows
// every origin, and write and shutdown windows cover a whole async job:
// one collaborator call plus one callback POST.
func NewConfig(d *jobs.Dispatcher, c engine.Config, version, port string) mcpserver.Config {
	c = c.WithDefaults()
	job := c.FetchTimeout + c.CallbackTimeout
	return mcpserver.Config{
		Name:             ServiceName,
		Version:          version,
		Port:             port,
		WriteTimeout:     job + 10*time.Second,
		ShutdownTimeout:  job + 5*time.Second,
		Metrics:          engine.FormatMetrics,
		Routes:           Routes(d),
		CORSOrigins:      []string{"*"},
		CORSAllowHeaders: []string{"*"},
		DisableHealth:    true,
	}
}

// Routes registers /health, /extract and /extract-async.
func Routes(d *jobs.Dispatcher) func(*http.ServeMux) {
	return func(mux *http.ServeMux) {
		mux.HandleFunc("GET /health", handleHealth)
		mux.HandleFunc("POST /extract", extractHandler(d))
		mux.HandleFunc("POST /extract-async", extractAsyncHandler(d))
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	toolutil.WriteJSON(w, http.StatusOK, jobs.StatusResponse{Status: "ok"})
}

func extractHandler(d *jobs.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := toolutil.DecodeJSON[jobs.SyncRequest](r.Body)
		if err != nil {
			badBody(w, err)
			return
		}
		resp := d.HandleSync(r.Context(), req)
		toolutil.WriteJSON(w, resp.Status, resp.Body)
	}
}

func extractAsyncHandler(d *jobs.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := toolutil.DecodeJSON[jobs.AsyncJobRequest](r.Body)
		if err != nil {
			badBody(w, err)
			return
		}
		// An accepted job runs to completion even if the trigger disconnects.
		resp := d.HandleAsync(context.WithoutCancel(r.Context()), job)
		toolutil.WriteJSON(w, resp.Status, resp.Body)
	}
}

func badBody(w http.ResponseWriter, err error) {
	slog.Debug("rejecting request body", slog.Any("error", err))
	toolutil.WriteJSON(w, http.StatusBadRequest, jobs.ErrorResponse{Detail: "invalid JSON body"})
}
