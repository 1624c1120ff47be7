package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/afmcp/artifactory"
	"pkt.systems/afmcp/internal/bridge"
	"pkt.systems/afmcp/internal/correlation"
)

// toolErrorEnvelope is the uniform failure payload callers see instead of
// raw Go errors: a stable code plus a human-readable message.
type toolErrorEnvelope struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"http_status,omitempty"`
}

// withStructuredToolErrors wraps a tool handler so every failure leaves the
// process as a structured envelope. It also ensures a correlation id on the
// context so upstream client logs join up with the tool-failure log line,
// and runs the handler under a per-call span.
func withStructuredToolErrors[In, Out any](s *server, name string, h mcpsdk.ToolHandlerFor[In, Out]) mcpsdk.ToolHandlerFor[In, Out] {
	traced := withToolSpan(name, h)
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, Out, error) {
		ctx = correlation.Ensure(ctx)
		if correlation.ID(ctx) == "" {
			ctx = correlation.Set(ctx, correlation.Generate())
		}
		res, out, err := traced(ctx, req, input)
		if err == nil {
			return res, out, nil
		}
		envelope := classifyToolError(name, err)
		s.bridgeLog.Warn("mcp.tool.failed",
			"tool", name,
			"code", envelope.Code,
			"cid", correlation.ID(ctx),
			"error", err,
		)
		var zero Out
		return nil, zero, toolError{Envelope: envelope}
	}
}

type toolError struct {
	Envelope toolErrorEnvelope
}

func (e toolError) Error() string {
	envelope := map[string]any{"error": e.Envelope}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return `{"error":{"code":"internal","message":"failed to encode error envelope"}}`
	}
	return string(encoded)
}

// classifyToolError maps a handler failure to its envelope. Typed bridge
// errors carry their kind directly; Artifactory API errors map by status
// and gain contextual hints for two well-known failure signatures; context
// expiry maps to timeout/cancelled; everything else is internal.
func classifyToolError(action string, err error) toolErrorEnvelope {
	var bridgeErr *bridge.Error
	if errors.As(err, &bridgeErr) {
		return toolErrorEnvelope{Code: string(bridgeErr.Kind), Message: strings.TrimSpace(err.Error())}
	}

	var apiErr *artifactory.APIError
	if errors.As(err, &apiErr) {
		env := toolErrorEnvelope{
			Code:       "upstream",
			Message:    "Artifactory error during " + action + ": " + strings.TrimSpace(err.Error()),
			HTTPStatus: apiErr.StatusCode,
		}
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			env.Code = "not_found"
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			env.Code = "permission_denied"
		case apiErr.StatusCode == http.StatusConflict:
			env.Code = "already_exists"
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= 500:
			env.Code = "unavailable"
		}
		if apiErr.StatusCode == http.StatusNotFound && strings.Contains(err.Error(), "/api/") {
			env.Message += " Hint: use a base URL that includes '/artifactory', e.g. https://host/artifactory."
		}
		if strings.Contains(err.Error(), "Props Authentication Token not found") {
			env.Message += " Hint: verify ARTIFACTORY_TOKEN is a valid full access token for this Artifactory instance."
		}
		return env
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return toolErrorEnvelope{Code: "timeout", Message: strings.TrimSpace(err.Error())}
	}
	if errors.Is(err, context.Canceled) {
		return toolErrorEnvelope{Code: "cancelled", Message: strings.TrimSpace(err.Error())}
	}

	return toolErrorEnvelope{Code: "internal", Message: "Unexpected error during " + action + ": " + strings.TrimSpace(err.Error())}
}
