package correlation

import (
	"context"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	if got, ok := Normalize("abc-123"); !ok || got != "abc-123" {
		t.Fatalf("expected abc-123 to normalize, got %q ok=%v", got, ok)
	}
	if got, ok := Normalize("  xyz  "); !ok || got != "xyz" {
		t.Fatalf("expected trimmed normalize to xyz, got %q ok=%v", got, ok)
	}
	if _, ok := Normalize(""); ok {
		t.Fatal("empty id should be invalid")
	}
	if _, ok := Normalize(strings.Repeat("a", MaxIDLength+1)); ok {
		t.Fatal("overlong id should be invalid")
	}
	if _, ok := Normalize("bad\x01suffix"); ok {
		t.Fatal("non-printable should be invalid")
	}
}

func TestSetAndID(t *testing.T) {
	ctx := context.Background()
	if id := ID(ctx); id != "" {
		t.Fatalf("expected empty context to have no correlation id, got %q", id)
	}
	ctx = Set(ctx, "")
	if id := ID(ctx); id != "" {
		t.Fatalf("expected invalid set to be ignored, got %q", id)
	}
	ctx = Set(ctx, "foo")
	if got := ID(ctx); got != "foo" {
		t.Fatalf("expected foo, got %q", got)
	}
	if got := ID(Ensure(context.Background())); got != "" {
		t.Fatalf("ensure should not set an id, got %q", got)
	}
}

func TestGenerate(t *testing.T) {
	a, b := Generate(), Generate()
	if a == "" || b == "" {
		t.Fatal("expected generated ids")
	}
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
	if _, ok := Normalize(a); !ok {
		t.Fatalf("generated id should be valid, got %q", a)
	}
}
