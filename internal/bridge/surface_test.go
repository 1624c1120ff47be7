package bridge_test

import (
	"sort"
	"strings"
	"testing"

	"pkt.systems/afmcp/internal/bridge"
)

func TestPathMethodDescriptors(t *testing.T) {
	t.Parallel()
	methods := bridge.PathMethodDescriptors()
	if len(methods) < 10 {
		t.Fatalf("expected a rich method surface, got %d entries", len(methods))
	}

	names := make([]string, len(methods))
	byName := make(map[string]string, len(methods))
	for i, m := range methods {
		names[i] = m.Name
		byName[m.Name] = m.Signature
	}
	if !sort.StringsAreSorted(names) {
		t.Fatalf("expected methods sorted by name, got %v", names)
	}

	for _, want := range []string{"Exists", "IsDir", "Stat", "Iterdir", "Glob", "ReadText", "WriteText", "Properties", "DownloadStats"} {
		if _, ok := byName[want]; !ok {
			t.Fatalf("expected method %q in surface, got %v", want, names)
		}
	}

	sig := byName["ReadText"]
	if !strings.Contains(sig, "context.Context") || !strings.Contains(sig, "(string, error)") {
		t.Fatalf("unexpected signature for ReadText: %q", sig)
	}
	for _, name := range names {
		if name != strings.TrimSpace(name) || name == "" {
			t.Fatalf("malformed method name %q", name)
		}
		if r := name[0]; r >= 'a' && r <= 'z' {
			t.Fatalf("unexported method %q leaked into the surface", name)
		}
	}
}

func TestListCapabilities(t *testing.T) {
	t.Parallel()
	caps := bridge.ListCapabilities()
	if caps.Package != "pkt.systems/afmcp/artifactory" {
		t.Fatalf("unexpected package %q", caps.Package)
	}
	if caps.PackageVersion == "" {
		t.Fatal("expected a package version string")
	}
	if caps.PathMethodCount != len(caps.PathMethods) {
		t.Fatalf("method count %d does not match %d entries", caps.PathMethodCount, len(caps.PathMethods))
	}
	if len(caps.HandleWorkflow) == 0 {
		t.Fatal("expected handle workflow guidance")
	}
	for _, key := range []string{"handle_ref", "path_ref", "bytes"} {
		if _, ok := caps.ArgumentEncodings[key]; !ok {
			t.Fatalf("missing argument encoding %q", key)
		}
	}
}
