package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func TestConfigGenStdout(t *testing.T) {
	t.Setenv("AFMCP_CONFIG", "")

	stdout, stderr, err := executeRootCommand(t, "config", "gen", "--stdout")
	if err != nil {
		t.Fatalf("config gen --stdout failed: %v", err)
	}
	if stderr != "" {
		t.Fatalf("expected empty stderr, got %q", stderr)
	}

	var snapshot map[string]any
	if err := yaml.Unmarshal([]byte(stdout), &snapshot); err != nil {
		t.Fatalf("unmarshal generated config: %v", err)
	}
	if got := snapshot["mcp.transport"]; got != "stdio" {
		t.Fatalf("mcp.transport=%v", got)
	}
	if got := snapshot["artifactory.verify_ssl"]; got != true {
		t.Fatalf("artifactory.verify_ssl=%v", got)
	}
	if got := snapshot["artifactory.timeout_seconds"]; got != 30 {
		t.Fatalf("artifactory.timeout_seconds=%v", got)
	}
	if got := snapshot["mcp.port"]; got != 8000 {
		t.Fatalf("mcp.port=%v", got)
	}
	if got := snapshot["mcp.default_max_items"]; got != 200 {
		t.Fatalf("mcp.default_max_items=%v", got)
	}
	if got := snapshot["serve.read_max_bytes"]; got != "200kB" {
		t.Fatalf("serve.read_max_bytes=%v", got)
	}
	if got := snapshot["serve.write_max_bytes"]; got != "5.0MB" {
		t.Fatalf("serve.write_max_bytes=%v", got)
	}
}

func TestConfigGenWritesAndRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "config.yaml")

	stdout, _, err := executeRootCommand(t, "config", "gen", "--out", outPath)
	if err != nil {
		t.Fatalf("config gen --out failed: %v", err)
	}
	if !strings.Contains(stdout, "wrote default config to "+outPath) {
		t.Fatalf("unexpected stdout %q", stdout)
	}
	info, err := os.Stat(outPath)
	if err != nil {
		t.Fatalf("stat generated config: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Fatalf("generated config mode=%v want 0600", got)
	}

	if _, _, err := executeRootCommand(t, "config", "gen", "--out", outPath); err == nil {
		t.Fatalf("expected overwrite refusal without --force")
	} else if !strings.Contains(err.Error(), "use --force to overwrite") {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := executeRootCommand(t, "config", "gen", "--out", outPath, "--force"); err != nil {
		t.Fatalf("config gen --force failed: %v", err)
	}
}

func TestConfigGenStdoutAndOutAreExclusive(t *testing.T) {
	_, _, err := executeRootCommand(t, "config", "gen", "--stdout", "--out", "/tmp/afmcp-config.yaml")
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("expected mutual exclusion error, got %v", err)
	}
}

func TestConfigCommandRedactsSecrets(t *testing.T) {
	t.Setenv("AFMCP_CONFIG", "")
	t.Setenv("AFMCP_CONFIG_DIR", t.TempDir())
	t.Setenv("ARTIFACTORY_BASE_URL", "https://af.example.com")
	t.Setenv("ARTIFACTORY_TOKEN", "super-secret-token")

	stdout, stderr, err := executeRootCommand(t, "config")
	if err != nil {
		t.Fatalf("config command failed: %v", err)
	}
	if stderr != "" {
		t.Fatalf("expected empty stderr, got %q", stderr)
	}
	if strings.Contains(stdout, "super-secret-token") {
		t.Fatalf("secret leaked into config output:\n%s", stdout)
	}
	if !strings.Contains(stdout, "artifactory.token: REDACTED") {
		t.Fatalf("expected redacted token in output:\n%s", stdout)
	}
	if !strings.Contains(stdout, "artifactory.base_url: https://af.example.com/artifactory") {
		t.Fatalf("expected normalized base URL in output:\n%s", stdout)
	}
}

func TestConfigCommandRejectsConflictingAuth(t *testing.T) {
	t.Setenv("AFMCP_CONFIG", "")
	t.Setenv("AFMCP_CONFIG_DIR", t.TempDir())
	t.Setenv("ARTIFACTORY_TOKEN", "tok-123")
	t.Setenv("ARTIFACTORY_API_KEY", "key-456")

	_, _, err := executeRootCommand(t, "config")
	if err == nil || !strings.Contains(err.Error(), "only one authentication method") {
		t.Fatalf("expected auth exclusivity error, got %v", err)
	}
}

func TestConfigFileFlowsIntoEffectiveConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("AFMCP_CONFIG_DIR", t.TempDir())

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "afmcp.yaml")
	content := "artifactory.base_url: https://files.example.com/artifactory\nmcp.default_max_items: 500\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	stdout, _, err := executeRootCommand(t, "--config", cfgPath, "config")
	if err != nil {
		t.Fatalf("config command failed: %v", err)
	}
	if !strings.Contains(stdout, "artifactory.base_url: https://files.example.com/artifactory") {
		t.Fatalf("expected base URL from config file in output:\n%s", stdout)
	}
	if !strings.Contains(stdout, "mcp.default_max_items: 500") {
		t.Fatalf("expected max items from config file in output:\n%s", stdout)
	}
}
