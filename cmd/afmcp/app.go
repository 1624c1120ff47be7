package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"pkt.systems/afmcp"
	"pkt.systems/afmcp/internal/pathutil"
	"pkt.systems/afmcp/internal/svcfields"
	"pkt.systems/pslog"
)

// Viper keys for the afmcp configuration surface. Each key is bound to a
// flag and to the legacy environment name the deployed service already uses.
const (
	configKey  = "config"
	envFileKey = "env-file"

	afBaseURLKey   = "artifactory.base_url"
	afUsernameKey  = "artifactory.username"
	afPasswordKey  = "artifactory.password"
	afAPIKeyKey    = "artifactory.api_key"
	afTokenKey     = "artifactory.token"
	afVerifySSLKey = "artifactory.verify_ssl"
	afTimeoutKey   = "artifactory.timeout_seconds"
	afSaaSPathKey  = "artifactory.use_saas_path"

	mcpTransportKey    = "mcp.transport"
	mcpHostKey         = "mcp.host"
	mcpPortKey         = "mcp.port"
	mcpHTTPPathKey     = "mcp.streamable_http_path"
	mcpStatelessKey    = "mcp.stateless_http"
	mcpJSONResponseKey = "mcp.json_response"
	mcpLogLevelKey     = "mcp.log_level"
	mcpMaxItemsKey     = "mcp.default_max_items"

	serveReadMaxKey   = "serve.read_max_bytes"
	serveWriteMaxKey  = "serve.write_max_bytes"
	serveTLSCertKey   = "serve.tls_cert"
	serveTLSKeyKey    = "serve.tls_key"
	serveOTLPKey      = "serve.otlp_endpoint"
	serveMetricsKey   = "serve.metrics_listen"
	servePprofKey     = "serve.pprof_listen"
	serveProfilingKey = "serve.profiling_metrics"
)

func submain(ctx context.Context) int {
	baseLogger := pslog.LoggerFromEnv(context.Background(),
		pslog.WithEnvPrefix("AFMCP_LOG_"),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", "afmcp")
	cmd := newRootCommand(baseLogger)
	rootInvocation := invocationTargetsRootCommand(cmd, os.Args[1:])
	ctx = withSignalCancel(ctx)
	if _, err := cmd.ExecuteContextC(ctx); err != nil {
		if err != context.Canceled {
			if rootInvocation {
				svcfields.WithSubsystem(baseLogger, "cli.root").Error("command failed", "error", err)
			} else {
				fmt.Fprintf(os.Stderr, "%s\n", err)
			}
		}
		return 1
	}
	return 0
}

func newRootCommand(baseLogger pslog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "afmcp",
		Short:         "afmcp is an MCP server that puts a JFrog Artifactory instance at an agent's fingertips",
		SilenceErrors: true,
		Example: `
  # stdio transport for an agent host, token auth
  ARTIFACTORY_BASE_URL=https://artifactory.example.com ARTIFACTORY_TOKEN=... afmcp

  # streamable HTTP on a shared host
  afmcp --transport streamable-http --host 0.0.0.0 --port 8000 --base-url https://artifactory.example.com

  # no configured instance; tools then require base_url per call
  afmcp

  # print the effective configuration (secrets redacted)
  afmcp config
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, baseLogger)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "path to YAML config file (defaults to $HOME/.afmcp/"+afmcp.DefaultConfigFileName+")")
	flags.String("env-file", "", "path to a dotenv file loaded before configuration (defaults to ./.env when present)")

	flags.String("base-url", "", "Artifactory base URL (bare hosts gain the /artifactory suffix)")
	flags.String("username", "", "Artifactory username for basic auth (pairs with --password)")
	flags.String("password", "", "Artifactory password for basic auth")
	flags.String("api-key", "", "Artifactory API key (X-JFrog-Art-Api header)")
	flags.String("token", "", "Artifactory bearer access token")
	flags.Bool("verify-ssl", true, "verify upstream TLS certificates")
	flags.Int("timeout-seconds", int(afmcp.DefaultTimeout/time.Second), "upstream Artifactory request timeout in seconds (1..600)")
	flags.Bool("use-saas-path", false, "target a JFrog SaaS instance path layout")

	flags.String("transport", afmcp.DefaultTransport, fmt.Sprintf("MCP transport (%s|%s)", afmcp.TransportStdio, afmcp.TransportStreamableHTTP))
	flags.String("host", afmcp.DefaultHost, "streamable HTTP bind address")
	flags.Int("port", afmcp.DefaultPort, "streamable HTTP bind port")
	flags.String("streamable-http-path", afmcp.DefaultStreamableHTTPPath, "HTTP path for the MCP streamable endpoint")
	flags.Bool("stateless-http", false, "serve streamable HTTP without per-session state")
	flags.Bool("json-response", false, "answer streamable HTTP calls with plain JSON instead of SSE")
	flags.String("log-level", afmcp.DefaultLogLevel, "log level (DEBUG|INFO|WARNING|ERROR|CRITICAL)")
	flags.Int("default-max-items", afmcp.DefaultDefaultMaxItems, "default collection truncation cap for encoded results (10..5000)")

	flags.String("read-max-bytes", humanizeBytes(afmcp.DefaultReadMaxBytes), "default read_artifact_text byte cap (human sizes accepted)")
	flags.String("write-max-bytes", humanizeBytes(afmcp.MaxWriteBytes), "write_artifact_text payload cap (human sizes accepted)")
	flags.String("tls-cert", "", "TLS certificate file for the streamable HTTP listener")
	flags.String("tls-key", "", "TLS key file for the streamable HTTP listener")

	flags.String("otlp-endpoint", "", "OTLP collector endpoint (e.g. grpc://localhost:4317)")
	flags.String("metrics-listen", afmcp.DefaultMetricsListen, "metrics listen address (Prometheus scrape endpoint; empty disables)")
	flags.String("pprof-listen", afmcp.DefaultPprofListen, "pprof listen address (debug/pprof endpoints; empty disables)")
	flags.Bool("enable-profiling-metrics", false, "enable Go runtime profiling metrics on the Prometheus endpoint")

	mustBindFlag(configKey, "AFMCP_CONFIG", flags.Lookup("config"))
	mustBindFlag(envFileKey, "AFMCP_ENV_FILE", flags.Lookup("env-file"))

	mustBindFlag(afBaseURLKey, "ARTIFACTORY_BASE_URL", flags.Lookup("base-url"))
	mustBindFlag(afUsernameKey, "ARTIFACTORY_USERNAME", flags.Lookup("username"))
	mustBindFlag(afPasswordKey, "ARTIFACTORY_PASSWORD", flags.Lookup("password"))
	mustBindFlag(afAPIKeyKey, "ARTIFACTORY_API_KEY", flags.Lookup("api-key"))
	mustBindFlag(afTokenKey, "ARTIFACTORY_TOKEN", flags.Lookup("token"))
	mustBindFlag(afVerifySSLKey, "ARTIFACTORY_VERIFY_SSL", flags.Lookup("verify-ssl"))
	mustBindFlag(afTimeoutKey, "ARTIFACTORY_TIMEOUT_SECONDS", flags.Lookup("timeout-seconds"))
	mustBindFlag(afSaaSPathKey, "ARTIFACTORY_USE_SAAS_PATH", flags.Lookup("use-saas-path"))

	mustBindFlag(mcpTransportKey, "MCP_TRANSPORT", flags.Lookup("transport"))
	mustBindFlag(mcpHostKey, "MCP_HOST", flags.Lookup("host"))
	mustBindFlag(mcpPortKey, "MCP_PORT", flags.Lookup("port"))
	mustBindFlag(mcpHTTPPathKey, "MCP_STREAMABLE_HTTP_PATH", flags.Lookup("streamable-http-path"))
	mustBindFlag(mcpStatelessKey, "MCP_STATELESS_HTTP", flags.Lookup("stateless-http"))
	mustBindFlag(mcpJSONResponseKey, "MCP_JSON_RESPONSE", flags.Lookup("json-response"))
	mustBindFlag(mcpLogLevelKey, "MCP_LOG_LEVEL", flags.Lookup("log-level"))
	mustBindFlag(mcpMaxItemsKey, "MCP_DEFAULT_MAX_ITEMS", flags.Lookup("default-max-items"))

	mustBindFlag(serveReadMaxKey, "AFMCP_READ_MAX_BYTES", flags.Lookup("read-max-bytes"))
	mustBindFlag(serveWriteMaxKey, "AFMCP_WRITE_MAX_BYTES", flags.Lookup("write-max-bytes"))
	mustBindFlag(serveTLSCertKey, "AFMCP_TLS_CERT", flags.Lookup("tls-cert"))
	mustBindFlag(serveTLSKeyKey, "AFMCP_TLS_KEY", flags.Lookup("tls-key"))
	mustBindFlag(serveOTLPKey, "AFMCP_OTLP_ENDPOINT", flags.Lookup("otlp-endpoint"))
	mustBindFlag(serveMetricsKey, "AFMCP_METRICS_LISTEN", flags.Lookup("metrics-listen"))
	mustBindFlag(servePprofKey, "AFMCP_PPROF_LISTEN", flags.Lookup("pprof-listen"))
	mustBindFlag(serveProfilingKey, "AFMCP_PROFILING_METRICS", flags.Lookup("enable-profiling-metrics"))

	cmd.AddCommand(newServeCommand(baseLogger))
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newToolsCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func mustBindFlag(key, env string, flag *pflag.Flag) {
	if flag == nil {
		panic(fmt.Sprintf("flag for key %s not found", key))
	}
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
	if env != "" {
		if err := viper.BindEnv(key, env); err != nil {
			panic(err)
		}
	}
}

// configFromViper assembles the afmcp Config from the bound flag/env/file
// values. Defaults for unset fields are left to Config.Validate.
func configFromViper() (afmcp.Config, error) {
	cfg := afmcp.Config{
		BaseURL:  strings.TrimSpace(viper.GetString(afBaseURLKey)),
		Username: strings.TrimSpace(viper.GetString(afUsernameKey)),
		Password: viper.GetString(afPasswordKey),
		APIKey:   strings.TrimSpace(viper.GetString(afAPIKeyKey)),
		Token:    strings.TrimSpace(viper.GetString(afTokenKey)),

		Transport:          viper.GetString(mcpTransportKey),
		Host:               viper.GetString(mcpHostKey),
		Port:               viper.GetInt(mcpPortKey),
		StreamableHTTPPath: viper.GetString(mcpHTTPPathKey),
		LogLevel:           viper.GetString(mcpLogLevelKey),
		DefaultMaxItems:    viper.GetInt(mcpMaxItemsKey),

		OTLPEndpoint:  strings.TrimSpace(viper.GetString(serveOTLPKey)),
		MetricsListen: strings.TrimSpace(viper.GetString(serveMetricsKey)),
		PprofListen:   strings.TrimSpace(viper.GetString(servePprofKey)),
	}

	verifySSL, err := boolValue(afVerifySSLKey)
	if err != nil {
		return afmcp.Config{}, err
	}
	cfg.InsecureSkipVerify = !verifySSL
	if cfg.UseSaaSLayout, err = boolValue(afSaaSPathKey); err != nil {
		return afmcp.Config{}, err
	}
	if cfg.StatelessHTTP, err = boolValue(mcpStatelessKey); err != nil {
		return afmcp.Config{}, err
	}
	if cfg.JSONResponse, err = boolValue(mcpJSONResponseKey); err != nil {
		return afmcp.Config{}, err
	}
	if cfg.EnableProfilingMetrics, err = boolValue(serveProfilingKey); err != nil {
		return afmcp.Config{}, err
	}

	cfg.Timeout = time.Duration(viper.GetInt(afTimeoutKey)) * time.Second

	if raw := strings.TrimSpace(viper.GetString(serveReadMaxKey)); raw != "" {
		size, err := humanize.ParseBytes(raw)
		if err != nil {
			return afmcp.Config{}, fmt.Errorf("parse read-max-bytes: %w", err)
		}
		cfg.ReadMaxBytes = int64(size)
	}
	if raw := strings.TrimSpace(viper.GetString(serveWriteMaxKey)); raw != "" {
		size, err := humanize.ParseBytes(raw)
		if err != nil {
			return afmcp.Config{}, fmt.Errorf("parse write-max-bytes: %w", err)
		}
		cfg.WriteMaxBytes = int64(size)
	}

	if cfg.TLSCertFile, err = expandPath(viper.GetString(serveTLSCertKey)); err != nil {
		return afmcp.Config{}, fmt.Errorf("expand tls-cert: %w", err)
	}
	if cfg.TLSKeyFile, err = expandPath(viper.GetString(serveTLSKeyKey)); err != nil {
		return afmcp.Config{}, fmt.Errorf("expand tls-key: %w", err)
	}
	return cfg, nil
}

// boolValue reads a bound boolean accepting the forms the deployed env
// surface already uses (1/0, true/false, yes/no, on/off).
func boolValue(key string) (bool, error) {
	raw := strings.ToLower(strings.TrimSpace(viper.GetString(key)))
	switch raw {
	case "", "1", "t", "true", "y", "yes", "on":
		return raw != "", nil
	case "0", "f", "false", "n", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("parse %s: invalid boolean %q", key, raw)
}

func pslogLevelName(configLevel string) string {
	switch strings.ToUpper(strings.TrimSpace(configLevel)) {
	case "DEBUG":
		return "debug"
	case "WARNING":
		return "warn"
	case "ERROR", "CRITICAL":
		return "error"
	default:
		return "info"
	}
}

func humanizeBytes(n int64) string {
	return strings.ReplaceAll(humanize.Bytes(uint64(n)), " ", "")
}

// loadDotEnv loads a dotenv file into the process environment before viper
// resolves bound keys. A missing default ./.env is not an error; a missing
// explicitly named file is.
func loadDotEnv() (string, error) {
	envFile := strings.TrimSpace(viper.GetString(envFileKey))
	explicit := envFile != ""
	if envFile == "" {
		envFile = ".env"
	}
	expanded, err := expandPath(envFile)
	if err != nil {
		return "", fmt.Errorf("expand env file %q: %w", envFile, err)
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("env file %q: %w", expanded, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("env file %q is a directory", expanded)
	}
	if err := godotenv.Load(expanded); err != nil {
		return "", fmt.Errorf("load env file %q: %w", expanded, err)
	}
	return expanded, nil
}

func loadConfigFile() (string, error) {
	cfgPath := strings.TrimSpace(viper.GetString(configKey))
	explicit := cfgPath != ""

	if cfgPath == "" {
		if dir, err := afmcp.DefaultConfigDir(); err == nil {
			candidate := filepath.Join(dir, afmcp.DefaultConfigFileName)
			if _, err := os.Stat(candidate); err == nil {
				cfgPath = candidate
			}
		}
	}

	if cfgPath == "" {
		return "", nil
	}

	expanded, err := expandPath(cfgPath)
	if err != nil {
		return "", fmt.Errorf("expand config path %q: %w", cfgPath, err)
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("config file %q: %w", expanded, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("config file %q is a directory", expanded)
	}

	viper.SetConfigFile(expanded)
	if err := viper.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read config file %q: %w", expanded, err)
	}
	return expanded, nil
}

func expandPath(p string) (string, error) {
	expanded, err := pathutil.ExpandUserAndEnv(p)
	if err != nil || expanded == "" {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	return abs, nil
}

func invocationTargetsRootCommand(root *cobra.Command, args []string) bool {
	if len(args) == 0 {
		return true
	}
	lookupLong := func(name string) *pflag.Flag {
		flag := root.Flags().Lookup(name)
		if flag == nil {
			flag = root.PersistentFlags().Lookup(name)
		}
		return flag
	}
	lookupShort := func(shorthand string) *pflag.Flag {
		flag := root.Flags().ShorthandLookup(shorthand)
		if flag == nil {
			flag = root.PersistentFlags().ShorthandLookup(shorthand)
		}
		return flag
	}
	remainingHasSubcommand := func(rest []string) bool {
		for _, tok := range rest {
			if !isSubcommandToken(root, tok) {
				continue
			}
			return true
		}
		return false
	}
	for i := 0; i < len(args); {
		arg := args[i]
		if arg == "--" {
			return true
		}
		if strings.HasPrefix(arg, "--") && arg != "--" {
			if eq := strings.IndexByte(arg, '='); eq >= 0 {
				i++
				continue
			}
			name := strings.TrimPrefix(arg, "--")
			flag := lookupLong(name)
			if flag == nil {
				return !remainingHasSubcommand(args[i+1:])
			}
			i++
			if flag.NoOptDefVal == "" && i < len(args) {
				i++
			}
			continue
		}
		if strings.HasPrefix(arg, "-") && arg != "-" {
			sh := strings.TrimPrefix(arg, "-")
			consumeNext := false
			for idx, ch := range sh {
				flag := lookupShort(string(ch))
				if flag == nil {
					return !remainingHasSubcommand(args[i+1:])
				}
				if flag.NoOptDefVal == "" {
					if idx == len(sh)-1 {
						consumeNext = true
					}
					break
				}
			}
			i++
			if consumeNext && i < len(args) {
				i++
			}
			continue
		}
		return !isSubcommandToken(root, arg)
	}
	return true
}

func isSubcommandToken(root *cobra.Command, token string) bool {
	for _, sub := range root.Commands() {
		if token == sub.Name() {
			return true
		}
		for _, alias := range sub.Aliases {
			if token == alias {
				return true
			}
		}
	}
	return false
}

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}
