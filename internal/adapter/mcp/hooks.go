package mcp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/guillermoBallester/cleansweep/internal/core/port"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// toolCall tracks one in-flight tools/call request.
type toolCall struct {
	name  string
	start time.Time
	span  trace.Span
}

// ToolCallHooks logs every tool call and records a span and a duration
// metric for it. tracer and inst may be nil.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	hooks := &server.Hooks{}
	var calls sync.Map // request id -> *toolCall

	finish := func(ctx context.Context, id any, fallbackName string, err error) {
		call := &toolCall{name: fallbackName}
		if v, ok := calls.LoadAndDelete(id); ok {
			call = v.(*toolCall)
		}
		if call.name == "" {
			return
		}
		duration := time.Since(call.start)
		if call.start.IsZero() {
			duration = 0
		}

		attrs := []slog.Attr{
			slog.String("rpc.method", "tools/call"),
			slog.String("mcp.tool", call.name),
			slog.Duration("duration", duration),
			slog.Bool("error", err != nil),
		}
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelError
			attrs = append(attrs, slog.String("error.message", err.Error()))
		}
		logger.LogAttrs(ctx, level, "tool call", attrs...)

		if inst != nil {
			inst.RecordToolDuration(ctx, float64(duration.Milliseconds()))
		}
		if call.span != nil {
			if err != nil {
				call.span.RecordError(err)
				call.span.SetStatus(codes.Error, err.Error())
			}
			call.span.End()
		}
	}

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		call := &toolCall{name: req.Params.Name, start: time.Now()}
		if tracer != nil {
			_, call.span = tracer.Start(ctx, "mcp.tool.call",
				trace.WithAttributes(attribute.String("mcp.tool", req.Params.Name)),
			)
		}
		calls.Store(id, call)
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		var err error
		if r, ok := result.(*mcp.CallToolResult); ok && r.IsError {
			err = errors.New(toolErrorText(r))
		}
		finish(ctx, id, req.Params.Name, err)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		name := ""
		if req, ok := message.(*mcp.CallToolRequest); ok {
			name = req.Params.Name
		}
		finish(ctx, id, name, err)
	})

	return hooks
}

func toolErrorText(r *mcp.CallToolResult) string {
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok && tc.Text != "" {
			return tc.Text
		}
	}
	return "tool returned error"
}
