package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/afmcp"
	"pkt.systems/afmcp/internal/svcfields"
	"pkt.systems/afmcp/internal/version"
	"pkt.systems/afmcp/mcp"
	"pkt.systems/pslog"
)

func newServeCommand(baseLogger pslog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the Artifactory MCP server (same as invoking afmcp with no subcommand)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, baseLogger)
		},
	}
}

func runServe(cmd *cobra.Command, baseLogger pslog.Logger) error {
	logger := baseLogger
	cliLogger := svcfields.WithSubsystem(logger, "cli.root")
	ctx := cmd.Context()
	cmd.SilenceUsage = true
	svcfields.WithSubsystem(logger, "server.lifecycle.init").WithLogLevel().Info(
		"welcome to afmcp",
		"app", "afmcp",
		"version", version.Current(),
		"pid", os.Getpid(),
		"uid", os.Getuid(),
		"gid", os.Getgid(),
	)

	envFile, err := loadDotEnv()
	if err != nil {
		return err
	}
	if envFile != "" {
		cliLogger.Info("loaded env file", "path", envFile)
	}

	configFile, err := loadConfigFile()
	if err != nil {
		return err
	}
	if configFile != "" {
		cliLogger.Info("loaded config file", "path", configFile)
	}

	cfg, err := configFromViper()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if level, ok := pslog.ParseLevel(pslogLevelName(cfg.LogLevel)); ok {
		logger = logger.LogLevel(level)
		cliLogger = svcfields.WithSubsystem(logger, "cli.root")
	}

	telemetry, err := afmcp.StartTelemetry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if telemetry != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := telemetry.Shutdown(shutdownCtx); err != nil {
				cliLogger.Warn("telemetry shutdown failed", "error", err)
			}
		}()
	}

	server, err := mcp.NewServer(mcp.NewServerRequest{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
