package mcp

import (
	"context"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/afmcp/internal/bridge"
	"pkt.systems/afmcp/internal/correlation"
)

type listCapabilitiesInput struct{}

func (s *server) handleListCapabilitiesTool(_ context.Context, _ *mcpsdk.CallToolRequest, _ listCapabilitiesInput) (*mcpsdk.CallToolResult, bridge.Capabilities, error) {
	return nil, bridge.ListCapabilities(), nil
}

type invokeRootMethodInput struct {
	Method         string         `json:"method" jsonschema:"Public method name on the instance client, e.g. Repositories or AQL"`
	PositionalArgs []any          `json:"positional_args,omitempty" jsonschema:"Positional arguments in declaration order"`
	KeywordArgs    map[string]any `json:"keyword_args,omitempty" jsonschema:"Named arguments filling a trailing options struct"`
	BaseURL        string         `json:"base_url,omitempty" jsonschema:"Artifactory base URL override for this call"`
	MaxItems       *int           `json:"max_items,omitempty" jsonschema:"Per-call collection truncation cap, 1-10000"`
}

func (s *server) handleInvokeRootMethodTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input invokeRootMethodInput) (*mcpsdk.CallToolResult, bridge.Result, error) {
	// Per-call clients stay open: invocation results may keep the client
	// reachable through handles.
	cli, _, err := s.clientFor(input.BaseURL)
	if err != nil {
		return nil, bridge.Result{}, err
	}
	res, err := s.engine.Invoke(ctx, bridge.Invocation{
		Target:      cli,
		TargetLabel: "root:" + cli.BaseURL(),
		Method:      input.Method,
		Args:        input.PositionalArgs,
		Kwargs:      input.KeywordArgs,
		MaxItems:    input.MaxItems,
	})
	if err != nil {
		return nil, bridge.Result{}, err
	}
	s.logInvoke(ctx, res)
	return nil, res, nil
}

type invokePathMethodInput struct {
	Repository     string         `json:"repository" jsonschema:"Repository name"`
	Method         string         `json:"method" jsonschema:"Public method name on the repository path type, e.g. Stat or SetProperties"`
	Path           string         `json:"path,omitempty" jsonschema:"Path inside the repository (empty targets the repository root)"`
	PositionalArgs []any          `json:"positional_args,omitempty" jsonschema:"Positional arguments in declaration order"`
	KeywordArgs    map[string]any `json:"keyword_args,omitempty" jsonschema:"Named arguments filling a trailing options struct"`
	BaseURL        string         `json:"base_url,omitempty" jsonschema:"Artifactory base URL override for this call"`
	MaxItems       *int           `json:"max_items,omitempty" jsonschema:"Per-call collection truncation cap, 1-10000"`
}

func (s *server) handleInvokePathMethodTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input invokePathMethodInput) (*mcpsdk.CallToolResult, bridge.Result, error) {
	cli, _, err := s.clientFor(input.BaseURL)
	if err != nil {
		return nil, bridge.Result{}, err
	}
	target, err := cli.Path(input.Repository, input.Path)
	if err != nil {
		return nil, bridge.Result{}, bridge.Errorf(bridge.KindValidation, "%v", err)
	}
	res, err := s.engine.Invoke(ctx, bridge.Invocation{
		Target:      target,
		TargetLabel: "path:" + target.String(),
		Method:      input.Method,
		Args:        input.PositionalArgs,
		Kwargs:      input.KeywordArgs,
		MaxItems:    input.MaxItems,
	})
	if err != nil {
		return nil, bridge.Result{}, err
	}
	s.logInvoke(ctx, res)
	return nil, res, nil
}

type invokeHandleMethodInput struct {
	HandleID       string         `json:"handle_id" jsonschema:"Identifier returned by a previous invocation result"`
	Method         string         `json:"method" jsonschema:"Public method name on the stored object"`
	PositionalArgs []any          `json:"positional_args,omitempty" jsonschema:"Positional arguments in declaration order"`
	KeywordArgs    map[string]any `json:"keyword_args,omitempty" jsonschema:"Named arguments filling a trailing options struct"`
	MaxItems       *int           `json:"max_items,omitempty" jsonschema:"Per-call collection truncation cap, 1-10000"`
}

func (s *server) handleInvokeHandleMethodTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input invokeHandleMethodInput) (*mcpsdk.CallToolResult, bridge.Result, error) {
	id := strings.TrimSpace(input.HandleID)
	if id == "" {
		return nil, bridge.Result{}, bridge.Errorf(bridge.KindValidation, "handle_id cannot be empty.")
	}
	obj, err := s.handles.Get(id)
	if err != nil {
		return nil, bridge.Result{}, err
	}
	res, err := s.engine.Invoke(ctx, bridge.Invocation{
		Target:      obj,
		TargetLabel: "handle:" + id + ":" + bridge.TypeLabel(obj),
		Method:      input.Method,
		Args:        input.PositionalArgs,
		Kwargs:      input.KeywordArgs,
		MaxItems:    input.MaxItems,
	})
	if err != nil {
		return nil, bridge.Result{}, err
	}
	s.logInvoke(ctx, res)
	return nil, res, nil
}

func (s *server) logInvoke(ctx context.Context, res bridge.Result) {
	s.bridgeLog.Debug("mcp.invoke.ok",
		"target", res.Target,
		"method", res.Method,
		"result_type", res.ResultType,
		"cid", correlation.ID(ctx),
	)
}
