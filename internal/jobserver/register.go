package jobserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bssilva06/yourtranscript/internal/engine/jobs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterTools registers the transcript tools on the given MCP server:
// transcript_extract, transcript_extract_async.
func RegisterTools(server *mcp.Server, d *jobs.Dispatcher) {
	registerExtract(server, d)
	registerExtractAsync(server, d)
}

func registerExtract(server *mcp.Server, d *jobs.Dispatcher) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcript_extract",
		Description: "Fetch the caption transcript of a YouTube video. Returns ordered segments (text, start, duration in seconds) and the transcript language.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input jobs.SyncRequest) (*mcp.CallToolResult, jobs.ExtractResponse, error) {
		resp := d.HandleSync(ctx, input)
		if err := responseError(resp); err != nil {
			return nil, jobs.ExtractResponse{}, err
		}
		out, _ := resp.Body.(jobs.ExtractResponse)
		slog.Info("transcript_extract: done",
			slog.String("video_id", out.VideoID),
			slog.Int("segments", len(out.Segments)))
		return nil, out, nil
	})
}

func registerExtractAsync(server *mcp.Server, d *jobs.Dispatcher) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcript_extract_async",
		Description: "Fetch a YouTube transcript and POST the result (or the extraction error) as JSON to callback_url. Returns status=delivered once the callback was sent.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input jobs.AsyncJobRequest) (*mcp.CallToolResult, jobs.StatusResponse, error) {
		resp := d.HandleAsync(context.WithoutCancel(ctx), input)
		if err := responseError(resp); err != nil {
			return nil, jobs.StatusResponse{}, err
		}
		out, _ := resp.Body.(jobs.StatusResponse)
		return nil, out, nil
	})
}

// responseError turns a non-200 dispatcher response into a tool error carrying its detail.
func responseError(resp jobs.Response) error {
	if resp.Status == http.StatusOK {
		return nil
	}
	if e, ok := resp.Body.(jobs.ErrorResponse); ok {
		return errors.New(e.Detail)
	}
	return errors.New(http.StatusText(resp.Status))
}
