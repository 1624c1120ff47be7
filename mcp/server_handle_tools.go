package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/afmcp/internal/bridge"
)

type listHandlesInput struct{}

type listHandlesOutput struct {
	Count   int                 `json:"count"`
	Handles []bridge.HandleInfo `json:"handles"`
}

func (s *server) handleListHandlesTool(_ context.Context, _ *mcpsdk.CallToolRequest, _ listHandlesInput) (*mcpsdk.CallToolResult, listHandlesOutput, error) {
	handles := s.handles.List()
	return nil, listHandlesOutput{Count: len(handles), Handles: handles}, nil
}

type dropHandleInput struct {
	HandleID string `json:"handle_id" jsonschema:"Identifier of the handle to release"`
}

func (s *server) handleDropHandleTool(_ context.Context, _ *mcpsdk.CallToolRequest, input dropHandleInput) (*mcpsdk.CallToolResult, bridge.DropResult, error) {
	res, err := s.handles.DropHandle(input.HandleID)
	if err != nil {
		return nil, bridge.DropResult{}, err
	}
	return nil, res, nil
}
