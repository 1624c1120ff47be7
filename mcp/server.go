package mcp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pkt.systems/afmcp"
	"pkt.systems/afmcp/artifactory"
	"pkt.systems/afmcp/internal/bridge"
	"pkt.systems/afmcp/internal/correlation"
	"pkt.systems/afmcp/internal/svcfields"
	"pkt.systems/afmcp/internal/version"
	"pkt.systems/pslog"
)

// Server is the MCP facade service contract.
type Server interface {
	Run(context.Context) error
}

// NewServerRequest wraps constructor inputs.
type NewServerRequest struct {
	Config afmcp.Config
	Logger pslog.Logger
}

type server struct {
	cfg          afmcp.Config
	logger       pslog.Logger
	lifecycleLog pslog.Logger
	transportLog pslog.Logger
	bridgeLog    pslog.Logger
	handles      *bridge.Store
	codec        *bridge.Codec
	engine       *bridge.Engine
	defaultCli   *artifactory.Client
}

// NewServer constructs the Artifactory MCP facade service. The config is
// validated and defaulted in place; when no base URL is configured, tools
// require base_url per call.
func NewServer(req NewServerRequest) (Server, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := req.Logger
	if logger == nil {
		logger = pslog.NewStructured(context.Background(), os.Stderr).With("app", "afmcp")
	}

	s := newBridgeServer(cfg, logger)
	if cfg.BaseURL != "" {
		cli, err := newArtifactoryClient(cfg, cfg.BaseURL, logger)
		if err != nil {
			return nil, err
		}
		s.defaultCli = cli
	}
	return s, nil
}

// newBridgeServer wires the handle store, codec, and invocation engine. The
// default upstream client is attached separately so surfaces that never
// talk to Artifactory (tools/list snapshots, schema tests) skip it.
func newBridgeServer(cfg afmcp.Config, logger pslog.Logger) *server {
	s := &server{
		cfg:          cfg,
		logger:       logger,
		lifecycleLog: svcfields.WithSubsystem(logger, "mcp.lifecycle"),
		transportLog: svcfields.WithSubsystem(logger, "mcp.transport.http"),
		bridgeLog:    svcfields.WithSubsystem(logger, "mcp.bridge"),
	}
	s.handles = bridge.NewStore()
	s.codec = bridge.NewCodec(s.handles, s.resolvePath)
	s.engine = bridge.NewEngine(s.codec, cfg.DefaultMaxItems)
	return s
}

func (s *server) Run(ctx context.Context) error {
	defer func() {
		if s.defaultCli != nil {
			_ = s.defaultCli.Close()
		}
	}()
	if s.cfg.Transport == afmcp.TransportStreamableHTTP {
		return s.runStreamableHTTP(ctx)
	}
	return s.runStdio(ctx)
}

func (s *server) runStdio(ctx context.Context) error {
	s.lifecycleLog.Info("starting afmcp facade",
		"transport", afmcp.TransportStdio,
		"base_url", s.cfg.BaseURL,
		"auth", s.cfg.AuthMethod(),
	)
	return s.buildServer().Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *server) runStreamableHTTP(ctx context.Context) error {
	s.lifecycleLog.Info("starting afmcp facade",
		"transport", afmcp.TransportStreamableHTTP,
		"listen", s.cfg.HTTPListen(),
		"path", s.cfg.StreamableHTTPPath,
		"tls", s.cfg.TLSEnabled(),
		"stateless", s.cfg.StatelessHTTP,
		"json_response", s.cfg.JSONResponse,
		"base_url", s.cfg.BaseURL,
		"auth", s.cfg.AuthMethod(),
	)

	mcpSrv := s.buildServer()
	streamable := mcpsdk.NewStreamableHTTPHandler(func(_ *http.Request) *mcpsdk.Server {
		return mcpSrv
	}, &mcpsdk.StreamableHTTPOptions{
		Stateless:    s.cfg.StatelessHTTP,
		JSONResponse: s.cfg.JSONResponse,
	})

	var handler http.Handler = s.withCorrelation(streamable)
	if strings.TrimSpace(s.cfg.OTLPEndpoint) != "" {
		handler = otelhttp.NewHandler(handler, "mcp")
	}

	mux := http.NewServeMux()
	mux.Handle(s.cfg.StreamableHTTPPath, handler)
	httpServer := &http.Server{
		Addr:    s.cfg.HTTPListen(),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if !s.cfg.TLSEnabled() {
			errCh <- httpServer.ListenAndServe()
			return
		}
		cert, err := tls.LoadX509KeyPair(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		if err != nil {
			errCh <- fmt.Errorf("load TLS key pair: %w", err)
			return
		}
		tlsConfig := &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		ln, err := net.Listen("tcp", httpServer.Addr)
		if err != nil {
			errCh <- fmt.Errorf("listen %s: %w", httpServer.Addr, err)
			return
		}
		errCh <- httpServer.Serve(tls.NewListener(ln, tlsConfig))
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// withCorrelation adopts an inbound X-Correlation-Id header, when present,
// as the request's correlation id.
func (s *server) withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := correlation.Ensure(r.Context())
		if id := r.Header.Get("X-Correlation-Id"); id != "" {
			ctx = correlation.Set(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) buildServer() *mcpsdk.Server {
	srv := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "afmcp",
		Version: version.Current(),
	}, &mcpsdk.ServerOptions{
		Instructions:       serverInstructions(s.cfg),
		InitializedHandler: s.handleInitialized,
	})
	s.registerTools(srv)
	return srv
}

func (s *server) handleInitialized(_ context.Context, req *mcpsdk.InitializedRequest) {
	if req == nil || req.Session == nil {
		return
	}
	s.lifecycleLog.Debug("mcp.session.initialized", "session_id", req.Session.ID())
}

func serverInstructions(cfg afmcp.Config) string {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = "unset (pass base_url per call)"
	}
	return strings.TrimSpace(fmt.Sprintf(`
afmcp operating manual:
- Configured Artifactory base URL: %s
- Start with list_artifactory_capabilities to discover the invocable client method surface and the handle/path/bytes argument encodings.
- Prefer the fixed-shape tools (list_artifacts, get_artifact_details, read_artifact_text, write_artifact_text) for everyday artifact work.
- Use invoke_artifactory_root_method for instance-level operations (AQL, Repositories, Users, Ping, Version) and invoke_artifactory_path_method for artifact-level operations beyond the fixed tools.
- Results without a JSON shape come back as handles; chain calls with invoke_artifactory_handle_method and embed {"__handle_id__": "<id>"} to pass them as arguments.
- Collection results truncate at max_items (default %d); raise max_items per call instead of re-draining iterators.
- Drop handles with drop_artifactory_handle when a chain is complete; they otherwise live for the process lifetime.
`, base, cfg.DefaultMaxItems))
}

func (s *server) registerTools(srv *mcpsdk.Server) {
	descriptions := buildToolDescriptions(s.cfg)
	desc := func(name string) string {
		description, ok := descriptions[name]
		if !ok {
			panic(fmt.Sprintf("missing MCP tool description for %q", name))
		}
		return description
	}

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolListArtifacts,
		Description: desc(toolListArtifacts),
	}, withStructuredToolErrors(s, toolListArtifacts, s.handleListArtifactsTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolArtifactDetails,
		Description: desc(toolArtifactDetails),
	}, withStructuredToolErrors(s, toolArtifactDetails, s.handleArtifactDetailsTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolReadArtifactText,
		Description: desc(toolReadArtifactText),
	}, withStructuredToolErrors(s, toolReadArtifactText, s.handleReadArtifactTextTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolWriteArtifactText,
		Description: desc(toolWriteArtifactText),
	}, withStructuredToolErrors(s, toolWriteArtifactText, s.handleWriteArtifactTextTool))

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolListCapabilities,
		Description: desc(toolListCapabilities),
	}, withStructuredToolErrors(s, toolListCapabilities, s.handleListCapabilitiesTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolInvokeRootMethod,
		Description: desc(toolInvokeRootMethod),
	}, withStructuredToolErrors(s, toolInvokeRootMethod, s.handleInvokeRootMethodTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolInvokePathMethod,
		Description: desc(toolInvokePathMethod),
	}, withStructuredToolErrors(s, toolInvokePathMethod, s.handleInvokePathMethodTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolInvokeHandleMethod,
		Description: desc(toolInvokeHandleMethod),
	}, withStructuredToolErrors(s, toolInvokeHandleMethod, s.handleInvokeHandleMethodTool))

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolListHandles,
		Description: desc(toolListHandles),
	}, withStructuredToolErrors(s, toolListHandles, s.handleListHandlesTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolDropHandle,
		Description: desc(toolDropHandle),
	}, withStructuredToolErrors(s, toolDropHandle, s.handleDropHandleTool))
}

// clientFor resolves the upstream client for a per-call base_url override:
// the shared default client when the override is empty or matches the
// configured base URL, a fresh client otherwise. The release func closes
// per-call clients and is a no-op for the shared one.
func (s *server) clientFor(baseURL string) (*artifactory.Client, func(), error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		if s.defaultCli == nil {
			return nil, nil, bridge.Errorf(bridge.KindValidation, "Missing Artifactory base URL. Set ARTIFACTORY_BASE_URL or pass base_url in the tool call.")
		}
		return s.defaultCli, func() {}, nil
	}
	normalized, err := artifactory.NormalizeBaseURL(trimmed)
	if err != nil {
		return nil, nil, bridge.Errorf(bridge.KindValidation, "%v", err)
	}
	if s.defaultCli != nil && normalized == s.defaultCli.BaseURL() {
		return s.defaultCli, func() {}, nil
	}
	cli, err := newArtifactoryClient(s.cfg, normalized, s.logger)
	if err != nil {
		return nil, nil, err
	}
	return cli, func() { _ = cli.Close() }, nil
}

// resolvePath backs the codec's __path__ argument references. Resolved
// paths may outlive the call through handles, so per-call clients are left
// open here.
func (s *server) resolvePath(baseURL, repository, relative string) (*artifactory.Path, error) {
	cli, _, err := s.clientFor(baseURL)
	if err != nil {
		return nil, err
	}
	p, err := cli.Path(repository, relative)
	if err != nil {
		return nil, bridge.Errorf(bridge.KindValidation, "%v", err)
	}
	return p, nil
}

func newArtifactoryClient(cfg afmcp.Config, baseURL string, logger pslog.Logger) (*artifactory.Client, error) {
	opts := []artifactory.Option{
		artifactory.WithTimeout(cfg.Timeout),
		artifactory.WithInsecureTLS(cfg.InsecureSkipVerify),
		artifactory.WithSaaSLayout(cfg.UseSaaSLayout),
		artifactory.WithLogger(logger),
	}
	switch {
	case cfg.Token != "":
		opts = append(opts, artifactory.WithToken(cfg.Token))
	case cfg.APIKey != "":
		opts = append(opts, artifactory.WithAPIKey(cfg.APIKey))
	case cfg.Username != "":
		opts = append(opts, artifactory.WithBasicAuth(cfg.Username, cfg.Password))
	}
	return artifactory.New(baseURL, opts...)
}
