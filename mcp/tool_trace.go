package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pkt.systems/afmcp/internal/correlation"
)

var toolTracer = otel.Tracer("pkt.systems/afmcp/mcp")

// withToolSpan decorates a tool handler with an OpenTelemetry span. Without
// a configured trace provider the spans are no-ops.
func withToolSpan[In, Out any](name string, h mcpsdk.ToolHandlerFor[In, Out]) mcpsdk.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, Out, error) {
		begin := time.Now()
		ctx, span := toolTracer.Start(ctx, "afmcp.tool."+name, trace.WithSpanKind(trace.SpanKindInternal))
		defer span.End()
		span.SetAttributes(attribute.String("afmcp.tool", name))
		if cid := correlation.ID(ctx); cid != "" {
			span.SetAttributes(attribute.String("afmcp.correlation_id", cid))
		}
		span.AddEvent("afmcp.tool.begin")

		res, out, err := h(ctx, req, input)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "tool_error")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.AddEvent("afmcp.tool.end", trace.WithAttributes(
			attribute.Int64("afmcp.tool.duration_ms", time.Since(begin).Milliseconds()),
		))
		return res, out, err
	}
}
