// Package mcp provides the afmcp MCP facade server.
//
// The package exposes a standalone MCP runtime that fronts a JFrog
// Artifactory instance through the Go client in pkt.systems/afmcp/artifactory.
// It is intended for agent workflows that browse, inspect, read, and deploy
// artifacts, and that need ad-hoc access to the rest of the client surface
// without a bespoke tool per method.
//
// # What this package does
//
//   - Serves MCP over stdio (default) or streamable HTTP (default path /mcp)
//   - Registers four fixed-shape artifact tools: list_artifacts,
//     get_artifact_details, read_artifact_text, write_artifact_text
//   - Registers a generic invocation bridge: list_artifactory_capabilities,
//     invoke_artifactory_root_method, invoke_artifactory_path_method,
//     invoke_artifactory_handle_method, list_artifactory_handles,
//     drop_artifactory_handle
//   - Encodes invocation results to JSON with per-level collection
//     truncation, and parks anything without a JSON form in an in-process
//     handle store for later chained calls
//
// The facade holds no artifact state of its own; every operation is
// delegated to the upstream Artifactory REST API. Handles are the only
// in-process state and live for the process lifetime unless dropped.
//
// # Error surface
//
// Tool failures are returned as MCP tool errors whose text is a JSON
// envelope {"error": {"code", "message", "http_status"}}. Codes follow the
// upstream outcome: validation, not_found, conflict, unsupported,
// permission_denied, already_exists, unavailable, timeout, cancelled,
// upstream, internal. Messages keep the exact wording agents are expected
// to surface, including remediation hints for the common base-URL and
// token misconfigurations.
//
// # Constructor and lifecycle
//
// Use NewServer with NewServerRequest, then call Run with a cancellable
// context. Run blocks until context cancellation or terminal serve error.
//
// Example:
//
//	ctx := context.Background()
//
//	srv, err := mcp.NewServer(mcp.NewServerRequest{
//		Config: afmcp.Config{
//			BaseURL:   "https://artifactory.example.com/artifactory",
//			Token:     os.Getenv("ARTIFACTORY_TOKEN"),
//			Transport: afmcp.TransportStdio,
//		},
//		Logger: logger,
//	})
//	if err != nil {
//		return err
//	}
//
//	if err := srv.Run(ctx); err != nil {
//		return err
//	}
//
// BaseURL may be left empty; tools then require base_url per call and fail
// with a configuration hint otherwise.
//
// # Transports
//
// Stdio is the default and suits agent-host launches; logs go to stderr
// only. The streamable HTTP transport binds Host:Port, honors
// StatelessHTTP and JSONResponse, serves TLS when a certificate pair is
// configured, and adopts inbound X-Correlation-Id headers for request
// correlation.
package mcp
