package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkt.systems/afmcp"
)

const redactedValue = "REDACTED"

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective afmcp configuration as YAML (secrets redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if _, err := loadDotEnv(); err != nil {
				return err
			}
			if _, err := loadConfigFile(); err != nil {
				return err
			}
			cfg, err := configFromViper()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			snapshot := snapshotFromConfig(cfg)
			snapshot.redactSecrets()
			out, err := yaml.Marshal(&snapshot)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.AddCommand(newConfigGenCommand())
	return cmd
}

func newConfigGenCommand() *cobra.Command {
	var outPath string
	var force bool
	var stdout bool
	defaultOutput := "$HOME/.afmcp/" + afmcp.DefaultConfigFileName
	if dir, err := afmcp.DefaultConfigDir(); err == nil {
		defaultOutput = filepath.Join(dir, afmcp.DefaultConfigFileName)
	}

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a default afmcp configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if stdout && outPath != "" {
				return fmt.Errorf("--stdout and --out are mutually exclusive")
			}
			if outPath == "" {
				dir, err := afmcp.DefaultConfigDir()
				if err != nil {
					return fmt.Errorf("resolve config dir: %w", err)
				}
				outPath = filepath.Join(dir, afmcp.DefaultConfigFileName)
			}

			data, err := defaultConfigYAML()
			if err != nil {
				return err
			}

			if stdout {
				fmt.Fprint(cmd.OutOrStdout(), string(data))
				return nil
			}

			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}
			if !force {
				if _, err := os.Stat(outPath); err == nil {
					return fmt.Errorf("config file %s already exists (use --force to overwrite)", outPath)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("stat config file: %w", err)
				}
			}
			if err := os.WriteFile(outPath, data, 0o600); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote default config to %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", fmt.Sprintf("output path for generated config (defaults to %s)", defaultOutput))
	cmd.Flags().BoolVar(&force, "force", false, "overwrite the target file if it already exists")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the config to stdout instead of writing a file")
	return cmd
}

// configSnapshot is the YAML form of the effective configuration. Its tags
// are the viper keys, so a generated file round-trips through loadConfigFile.
type configSnapshot struct {
	BaseURL            string `yaml:"artifactory.base_url"`
	Username           string `yaml:"artifactory.username"`
	Password           string `yaml:"artifactory.password"`
	APIKey             string `yaml:"artifactory.api_key"`
	Token              string `yaml:"artifactory.token"`
	VerifySSL          bool   `yaml:"artifactory.verify_ssl"`
	TimeoutSeconds     int    `yaml:"artifactory.timeout_seconds"`
	UseSaaSPath        bool   `yaml:"artifactory.use_saas_path"`
	Transport          string `yaml:"mcp.transport"`
	Host               string `yaml:"mcp.host"`
	Port               int    `yaml:"mcp.port"`
	StreamableHTTPPath string `yaml:"mcp.streamable_http_path"`
	StatelessHTTP      bool   `yaml:"mcp.stateless_http"`
	JSONResponse       bool   `yaml:"mcp.json_response"`
	LogLevel           string `yaml:"mcp.log_level"`
	DefaultMaxItems    int    `yaml:"mcp.default_max_items"`
	ReadMaxBytes       string `yaml:"serve.read_max_bytes"`
	WriteMaxBytes      string `yaml:"serve.write_max_bytes"`
	TLSCert            string `yaml:"serve.tls_cert"`
	TLSKey             string `yaml:"serve.tls_key"`
	OTLPEndpoint       string `yaml:"serve.otlp_endpoint"`
	MetricsListen      string `yaml:"serve.metrics_listen"`
	PprofListen        string `yaml:"serve.pprof_listen"`
	ProfilingMetrics   bool   `yaml:"serve.profiling_metrics"`
}

func snapshotFromConfig(cfg afmcp.Config) configSnapshot {
	return configSnapshot{
		BaseURL:            cfg.BaseURL,
		Username:           cfg.Username,
		Password:           cfg.Password,
		APIKey:             cfg.APIKey,
		Token:              cfg.Token,
		VerifySSL:          !cfg.InsecureSkipVerify,
		TimeoutSeconds:     int(cfg.Timeout / time.Second),
		UseSaaSPath:        cfg.UseSaaSLayout,
		Transport:          cfg.Transport,
		Host:               cfg.Host,
		Port:               cfg.Port,
		StreamableHTTPPath: cfg.StreamableHTTPPath,
		StatelessHTTP:      cfg.StatelessHTTP,
		JSONResponse:       cfg.JSONResponse,
		LogLevel:           cfg.LogLevel,
		DefaultMaxItems:    cfg.DefaultMaxItems,
		ReadMaxBytes:       humanizeBytes(cfg.ReadMaxBytes),
		WriteMaxBytes:      humanizeBytes(cfg.WriteMaxBytes),
		TLSCert:            cfg.TLSCertFile,
		TLSKey:             cfg.TLSKeyFile,
		OTLPEndpoint:       cfg.OTLPEndpoint,
		MetricsListen:      cfg.MetricsListen,
		PprofListen:        cfg.PprofListen,
		ProfilingMetrics:   cfg.EnableProfilingMetrics,
	}
}

func (s *configSnapshot) redactSecrets() {
	if s.Password != "" {
		s.Password = redactedValue
	}
	if s.APIKey != "" {
		s.APIKey = redactedValue
	}
	if s.Token != "" {
		s.Token = redactedValue
	}
}

func defaultConfigYAML(overrides ...func(*configSnapshot)) ([]byte, error) {
	defaults := configSnapshot{
		VerifySSL:          true,
		TimeoutSeconds:     int(afmcp.DefaultTimeout / time.Second),
		Transport:          afmcp.DefaultTransport,
		Host:               afmcp.DefaultHost,
		Port:               afmcp.DefaultPort,
		StreamableHTTPPath: afmcp.DefaultStreamableHTTPPath,
		LogLevel:           afmcp.DefaultLogLevel,
		DefaultMaxItems:    afmcp.DefaultDefaultMaxItems,
		ReadMaxBytes:       humanizeBytes(afmcp.DefaultReadMaxBytes),
		WriteMaxBytes:      humanizeBytes(afmcp.MaxWriteBytes),
	}
	for _, fn := range overrides {
		if fn != nil {
			fn(&defaults)
		}
	}

	out, err := yaml.Marshal(&defaults)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
