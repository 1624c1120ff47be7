// Package correlation carries request correlation identifiers on contexts so
// log lines emitted across package boundaries can be joined per tool call.
package correlation

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MaxIDLength caps accepted external correlation identifiers.
const MaxIDLength = 128

type contextKey struct{}

type state struct {
	mu sync.RWMutex
	id string
}

// Ensure attaches correlation state to ctx when not already present.
func Ensure(ctx context.Context) context.Context {
	if ctx == nil {
		return context.WithValue(context.Background(), contextKey{}, &state{})
	}
	if _, ok := ctx.Value(contextKey{}).(*state); ok {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, &state{})
}

// Set records id on ctx and returns the context carrying the state. Invalid
// identifiers are ignored and ctx is returned unchanged.
func Set(ctx context.Context, id string) context.Context {
	normalized, ok := Normalize(id)
	if !ok {
		return ctx
	}
	ctx = Ensure(ctx)
	st, _ := ctx.Value(contextKey{}).(*state)
	st.mu.Lock()
	st.id = normalized
	st.mu.Unlock()
	return ctx
}

// ID retrieves the correlation ID stored on ctx, if any.
func ID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	st, ok := ctx.Value(contextKey{}).(*state)
	if !ok || st == nil {
		return ""
	}
	st.mu.RLock()
	id := st.id
	st.mu.RUnlock()
	return id
}

// Normalize validates and canonicalizes an externally supplied identifier.
func Normalize(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > MaxIDLength {
		return "", false
	}
	for _, r := range id {
		if r < 0x20 || r > 0x7e {
			return "", false
		}
	}
	return id, true
}

// Generate produces a new time-ordered correlation identifier.
func Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
