// Package afmcp exposes the configuration and operational plumbing behind
// afmcp, an MCP (Model Context Protocol) server that puts a JFrog
// Artifactory instance at an agent's fingertips: convenience tools for the
// everyday list/stat/read/write cycle, plus a generic invocation bridge
// that reaches every public method of the bundled Artifactory client.
//
// Copyright (C) 2026 pkt.systems <https://pkt.systems>
//
// # Running the facade
//
// The MCP server itself lives in pkt.systems/afmcp/mcp. This package holds
// the shared Config (environment surface, defaults, validation) and the
// telemetry bundle the serve command starts around it.
//
//	cfg := afmcp.Config{
//	    BaseURL:   "https://artifactory.example.com",
//	    Token:     os.Getenv("ARTIFACTORY_TOKEN"),
//	    Transport: afmcp.TransportStdio,
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := mcp.NewServer(mcp.NewServerRequest{Config: cfg})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Validate normalizes the base URL (a bare host gains the /artifactory
// suffix self-hosted instances serve their REST API under), enforces that
// at most one authentication method is configured (token, API key, or
// username/password), and fills defaults for everything else. The same
// Config drives both transports: stdio for agent-host launches and
// streamable HTTP for shared deployments, with optional TLS, stateless
// mode and plain-JSON responses.
//
// # Tool surface
//
// Four convenience tools cover the common artifact workflow: list_artifacts,
// get_artifact_details, read_artifact_text and write_artifact_text. The
// rest of the client's surface is reachable through the bridge tools:
// invoke_artifactory_root_method and invoke_artifactory_path_method call
// any public method by name, and results without a JSON shape come back as
// opaque handles that invoke_artifactory_handle_method can keep working
// with. list_artifactory_capabilities enumerates the method surface and
// the special argument encodings (handle, byte and path references);
// list_artifactory_handles and drop_artifactory_handle manage handle
// lifetimes.
//
// # Telemetry
//
// StartTelemetry starts the optional observability runtime: an OTLP trace
// exporter (grpc or http, resolved from a single endpoint string), a
// Prometheus /metrics listener with optional Go runtime metrics, and a
// pprof listener. Everything is off by default so the stdio transport
// stays silent on stdout and opens no ports.
//
// Consult README.md for the full environment variable reference and
// deployment notes.
package afmcp
