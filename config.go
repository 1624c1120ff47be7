package afmcp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"pkt.systems/afmcp/artifactory"
)

// Supported MCP transports.
const (
	// TransportStdio serves MCP over stdin/stdout for agent-host launches.
	TransportStdio = "stdio"
	// TransportStreamableHTTP serves MCP over the streamable HTTP transport.
	TransportStreamableHTTP = "streamable-http"
)

const (
	// DefaultTransport keeps the facade on stdio unless configured otherwise.
	DefaultTransport = TransportStdio
	// DefaultHost binds the streamable HTTP listener to loopback.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the streamable HTTP listener port.
	DefaultPort = 8000
	// DefaultStreamableHTTPPath mounts the MCP handler on the HTTP listener.
	DefaultStreamableHTTPPath = "/mcp"
	// DefaultLogLevel is the facade log level on the DEBUG..CRITICAL scale.
	DefaultLogLevel = "INFO"
	// DefaultTimeout bounds each upstream Artifactory HTTP request.
	DefaultTimeout = 30 * time.Second
	// DefaultDefaultMaxItems caps encoded collections when a tool call does
	// not carry its own max_items.
	DefaultDefaultMaxItems = 200
	// DefaultReadMaxBytes bounds read_artifact_text downloads when the call
	// does not raise max_bytes itself.
	DefaultReadMaxBytes = 200_000
	// MaxReadBytes is the hard ceiling for read_artifact_text max_bytes.
	MaxReadBytes = 5_000_000
	// MaxWriteBytes is the hard ceiling for write_artifact_text payloads.
	MaxWriteBytes = 5_000_000
	// DefaultMetricsListen is the Prometheus scrape endpoint (empty disables).
	DefaultMetricsListen = ""
	// DefaultPprofListen is the pprof debug listener (empty disables).
	DefaultPprofListen = ""
	// DefaultConfigFileName is the config file searched for when --config is omitted.
	DefaultConfigFileName = "config.yaml"
)

var logLevels = map[string]struct{}{
	"DEBUG":    {},
	"INFO":     {},
	"WARNING":  {},
	"ERROR":    {},
	"CRITICAL": {},
}

// Config carries every runtime setting of the facade: the upstream
// Artifactory connection and credentials, MCP transport selection, encode
// caps, and the operational listeners used by serve. The zero value is
// usable; Validate fills defaults and rejects invalid combinations.
type Config struct {
	// BaseURL is the Artifactory instance root, e.g. https://host/artifactory.
	// A bare host URL gains the /artifactory suffix. Empty is allowed; tools
	// then require base_url per call.
	BaseURL string
	// Username and Password enable basic auth. Set both or neither.
	Username string
	// Password pairs with Username.
	Password string
	// APIKey authenticates via the X-JFrog-Art-Api header.
	APIKey string
	// Token authenticates via a bearer access token.
	Token string
	// InsecureSkipVerify disables upstream TLS certificate verification.
	InsecureSkipVerify bool
	// Timeout bounds each upstream HTTP request. 1s..600s.
	Timeout time.Duration
	// UseSaaSLayout targets JFrog SaaS instances, which route the REST API
	// under a different path layout than self-hosted installs.
	UseSaaSLayout bool

	// Transport selects TransportStdio or TransportStreamableHTTP.
	Transport string
	// Host is the streamable HTTP bind address.
	Host string
	// Port is the streamable HTTP bind port.
	Port int
	// StreamableHTTPPath mounts the MCP handler; must start with '/'.
	StreamableHTTPPath string
	// StatelessHTTP disables per-session state in the streamable transport.
	StatelessHTTP bool
	// JSONResponse answers streamable HTTP calls with plain JSON bodies
	// instead of SSE streams.
	JSONResponse bool
	// LogLevel is one of DEBUG, INFO, WARNING, ERROR, CRITICAL.
	LogLevel string
	// DefaultMaxItems caps encoded collections when a tool call does not
	// carry its own max_items. 10..5000.
	DefaultMaxItems int

	// ReadMaxBytes is the default read_artifact_text byte cap; calls may
	// raise it up to MaxReadBytes.
	ReadMaxBytes int64
	// WriteMaxBytes caps write_artifact_text payloads; never above
	// MaxWriteBytes.
	WriteMaxBytes int64

	// TLSCertFile and TLSKeyFile serve the streamable HTTP listener over TLS
	// when both are set.
	TLSCertFile string
	// TLSKeyFile pairs with TLSCertFile.
	TLSKeyFile string

	// OTLPEndpoint enables OTLP trace export to the given collector endpoint.
	OTLPEndpoint string
	// MetricsListen is the metrics bind address; empty disables metrics.
	MetricsListen string
	// PprofListen is the pprof bind address; empty disables pprof.
	PprofListen string
	// EnableProfilingMetrics adds Go runtime metrics to the metrics registry.
	EnableProfilingMetrics bool
}

// Validate applies defaults to zero fields, normalizes the base URL and
// transport, and rejects invalid settings. It mutates the receiver.
func (c *Config) Validate() error {
	if base := strings.TrimSpace(c.BaseURL); base != "" {
		normalized, err := artifactory.NormalizeBaseURL(base)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		c.BaseURL = normalized
	} else {
		c.BaseURL = ""
	}

	if (strings.TrimSpace(c.Username) != "") != (strings.TrimSpace(c.Password) != "") {
		return fmt.Errorf("config: set both username and password, or neither")
	}
	methods := 0
	if strings.TrimSpace(c.Token) != "" {
		methods++
	}
	if strings.TrimSpace(c.APIKey) != "" {
		methods++
	}
	if strings.TrimSpace(c.Username) != "" {
		methods++
	}
	if methods > 1 {
		return fmt.Errorf("config: configure only one authentication method: token, api key, or username/password")
	}
	if strings.TrimSpace(c.Token) != "" {
		if err := artifactory.ValidateToken(c.Token); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Timeout < time.Second || c.Timeout > 600*time.Second {
		return fmt.Errorf("config: timeout must be between 1s and 600s")
	}

	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	if c.Transport == "" {
		c.Transport = DefaultTransport
	}
	switch c.Transport {
	case TransportStdio, TransportStreamableHTTP:
	default:
		return fmt.Errorf("config: invalid transport %q (supported: %s, %s)", c.Transport, TransportStdio, TransportStreamableHTTP)
	}

	if strings.TrimSpace(c.Host) == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port must be between 1 and 65535")
	}

	c.StreamableHTTPPath = strings.TrimSpace(c.StreamableHTTPPath)
	if c.StreamableHTTPPath == "" {
		c.StreamableHTTPPath = DefaultStreamableHTTPPath
	}
	if !strings.HasPrefix(c.StreamableHTTPPath, "/") {
		return fmt.Errorf("config: streamable HTTP path must start with '/'")
	}

	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if _, ok := logLevels[c.LogLevel]; !ok {
		return fmt.Errorf("config: invalid log level %q (use DEBUG, INFO, WARNING, ERROR or CRITICAL)", c.LogLevel)
	}

	if c.DefaultMaxItems == 0 {
		c.DefaultMaxItems = DefaultDefaultMaxItems
	}
	if c.DefaultMaxItems < 10 || c.DefaultMaxItems > 5000 {
		return fmt.Errorf("config: default max items must be between 10 and 5000")
	}

	if c.ReadMaxBytes == 0 {
		c.ReadMaxBytes = DefaultReadMaxBytes
	}
	if c.ReadMaxBytes < 1 || c.ReadMaxBytes > MaxReadBytes {
		return fmt.Errorf("config: read max bytes must be between 1 and %s", humanize.Bytes(MaxReadBytes))
	}
	if c.WriteMaxBytes == 0 {
		c.WriteMaxBytes = MaxWriteBytes
	}
	if c.WriteMaxBytes < 1 || c.WriteMaxBytes > MaxWriteBytes {
		return fmt.Errorf("config: write max bytes must be between 1 and %s", humanize.Bytes(MaxWriteBytes))
	}

	if (strings.TrimSpace(c.TLSCertFile) != "") != (strings.TrimSpace(c.TLSKeyFile) != "") {
		return fmt.Errorf("config: set both tls cert and tls key, or neither")
	}
	if c.EnableProfilingMetrics && strings.TrimSpace(c.MetricsListen) == "" {
		return fmt.Errorf("config: profiling metrics require metrics-listen")
	}
	return nil
}

// HTTPListen renders the streamable HTTP bind address.
func (c Config) HTTPListen() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TLSEnabled reports whether the streamable HTTP listener serves TLS.
func (c Config) TLSEnabled() bool {
	return strings.TrimSpace(c.TLSCertFile) != "" && strings.TrimSpace(c.TLSKeyFile) != ""
}

// AuthMethod names the configured upstream authentication method for
// logging and config output: "token", "api_key", "basic" or "anonymous".
func (c Config) AuthMethod() string {
	switch {
	case strings.TrimSpace(c.Token) != "":
		return "token"
	case strings.TrimSpace(c.APIKey) != "":
		return "api_key"
	case strings.TrimSpace(c.Username) != "":
		return "basic"
	default:
		return "anonymous"
	}
}

// DefaultConfigDir returns the default configuration directory ($HOME/.afmcp).
func DefaultConfigDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("AFMCP_CONFIG_DIR")); override != "" {
		if filepath.IsAbs(override) {
			return override, nil
		}
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", err
		}
		return abs, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".afmcp"), nil
}
