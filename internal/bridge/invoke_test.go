package bridge_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"pkt.systems/afmcp/internal/bridge"
)

// repoCatalog is the invocation target used across engine tests. Its method
// set exercises context injection, argument conversion, variadic calls,
// options structs, error returns, and unsupported result kinds.
type repoCatalog struct {
	Label   string
	sawCtx  bool
	entries []string
}

type searchOptions struct {
	Limit int
	Deep  bool
}

func (c *repoCatalog) GetRepositories() []string {
	return append([]string(nil), c.entries...)
}

func (c *repoCatalog) Describe(name string) string {
	return "repository " + name
}

func (c *repoCatalog) Fetch(ctx context.Context, name string) (string, error) {
	c.sawCtx = ctx != nil
	if name == "missing" {
		return "", errors.New("repository missing: not found")
	}
	return "fetched " + name, nil
}

func (c *repoCatalog) Sum(values ...float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func (c *repoCatalog) Search(query string, opts searchOptions) string {
	if opts.Deep {
		return query + ":deep:" + strconv.Itoa(opts.Limit)
	}
	return query + ":" + strconv.Itoa(opts.Limit)
}

func (c *repoCatalog) Clone() *repoCatalog {
	return &repoCatalog{entries: append([]string(nil), c.entries...)}
}

func (c *repoCatalog) Pair() (string, int) {
	return "a", 1
}

func (c *repoCatalog) Watch() chan int {
	return make(chan int)
}

func (c *repoCatalog) Measure(data []byte) int {
	return len(data)
}

func (c *repoCatalog) TakeCount(n int) int {
	return n * 2
}

func (c *repoCatalog) Panics() string {
	panic("kaboom")
}

func newTestEngine(t *testing.T) (*bridge.Engine, *bridge.Store) {
	t.Helper()
	store := bridge.NewStore()
	codec := bridge.NewCodec(store, nil)
	return bridge.NewEngine(codec, 200), store
}

func invokeOn(t *testing.T, engine *bridge.Engine, target any, method string, args []any, kwargs map[string]any) (bridge.Result, error) {
	t.Helper()
	return engine.Invoke(context.Background(), bridge.Invocation{
		Target:      target,
		TargetLabel: "test:catalog",
		Method:      method,
		Args:        args,
		Kwargs:      kwargs,
	})
}

func TestInvokeRejectsPrivateAndEmptyNames(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t)
	target := &repoCatalog{}

	if _, err := invokeOn(t, engine, target, "   ", nil, nil); err == nil || !strings.Contains(err.Error(), "method cannot be empty") {
		t.Fatalf("expected empty-name rejection, got %v", err)
	}

	// The private gate fires before existence checks, for names that exist
	// and names that do not.
	for _, name := range []string{"_Internal", "describe", "fetch", "_GetRepositories"} {
		_, err := invokeOn(t, engine, target, name, nil, nil)
		if err == nil || !strings.Contains(err.Error(), "private/special") {
			t.Fatalf("expected private/special error for %q, got %v", name, err)
		}
	}
}

func TestInvokeValidatesMaxItems(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t)
	target := &repoCatalog{entries: []string{"a"}}

	for _, bad := range []int{0, -5, 10001} {
		_, err := engine.Invoke(context.Background(), bridge.Invocation{
			Target:      target,
			TargetLabel: "test:catalog",
			Method:      "GetRepositories",
			MaxItems:    &bad,
		})
		if err == nil || !strings.Contains(err.Error(), "between 1 and 10000") {
			t.Fatalf("expected max_items rejection for %d, got %v", bad, err)
		}
	}
}

func TestInvokeSuggestsCloseNames(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t)
	target := &repoCatalog{}

	_, err := invokeOn(t, engine, target, "GetRepos", nil, nil)
	if err == nil {
		t.Fatal("expected unknown method to fail")
	}
	if !strings.Contains(err.Error(), "not found on target type repoCatalog") {
		t.Fatalf("expected not-found message, got %v", err)
	}
	if !strings.Contains(err.Error(), "Did you mean 'GetRepositories'?") {
		t.Fatalf("expected suggestion, got %v", err)
	}

	_, err = invokeOn(t, engine, target, "Zzzzz", nil, nil)
	if err == nil || strings.Contains(err.Error(), "Did you mean") {
		t.Fatalf("expected no suggestion for unrelated name, got %v", err)
	}
}

func TestInvokeRejectsNonCallableAttribute(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t)
	target := &repoCatalog{Label: "main"}

	_, err := invokeOn(t, engine, target, "Label", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "not callable") {
		t.Fatalf("expected non-callable rejection, got %v", err)
	}
}

func TestInvokeSimpleCall(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t)
	target := &repoCatalog{entries: []string{"libs-release-local", "generic-remote"}}

	result, err := invokeOn(t, engine, target, "GetRepositories", nil, nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Target != "test:catalog" || result.Method != "GetRepositories" {
		t.Fatalf("unexpected envelope %+v", result)
	}
	if result.ResultType != "[]string" {
		t.Fatalf("unexpected result type %q", result.ResultType)
	}
	items, ok := result.Result.([]any)
	if !ok || len(items) != 2 || items[0] != "libs-release-local" {
		t.Fatalf("unexpected result %v", result.Result)
	}
}

func TestInvokeConvertsArguments(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t)
	target := &repoCatalog{}

	result, err := invokeOn(t, engine, target, "Describe", []any{"libs"}, nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Result != "repository libs" {
		t.Fatalf("unexpected result %v", result.Result)
	}

	// JSON numbers arrive as float64 and convert to int parameters when whole.
	result, err = invokeOn(t, engine, target, "TakeCount", []any{float64(21)}, nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Result != 42 {
		t.Fatalf("unexpected result %v", result.Result)
	}

	_, err = invokeOn(t, engine, target, "TakeCount", []any{float64(3.5)}, nil)
	if err == nil || !strings.Contains(err.Error(), "Invalid argument 1") {
		t.Fatalf("expected fractional value rejection, got %v", err)
	}

	_, err = invokeOn(t, engine, target, "Describe", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "expects 1 argument(s), got 0") {
		t.Fatalf("expected arity error, got %v", err)
	}
}

func TestInvokeInjectsContext(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t)
	target := &repoCatalog{}

	result, err := invokeOn(t, engine, target, "Fetch", []any{"libs"}, nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !target.sawCtx {
		t.Fatal("expected context to be injected as the first argument")
	}
	if result.Result != "fetched libs" {
		t.Fatalf("unexpected result %v", result.Result)
	}
}

func TestInvokePropagatesReturnedErrors(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t)
	target := &repoCatalog{}

	_, err := invokeOn(t, engine, target, "Fetch", []any{"missing"}, nil)
	if err == nil || !strings.Contains(err.Error(), "repository missing") {
		t.Fatalf("expected method error to propagate, got %v", err)
	}
}

func TestInvokeVariadic(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t)
	target := &repoCatalog{}

	result, err := invokeOn(t, engine, target, "Sum", []any{float64(1), float64(2), float64(3.5)}, nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Result != 6.5 {
		t.Fatalf("unexpected sum %v", result.Result)
	}

	result, err = invokeOn(t, engine, target, "Sum", nil, nil)
	if err != nil {
		t.Fatalf("invoke with no variadic args: %v", err)
	}
	if result.Result != 0.0 {
		t.Fatalf("unexpected empty sum %v", result.Result)
	}
}

func TestInvokeKeywordArguments(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t)
	target := &repoCatalog{}

	result, err := invokeOn(t, engine, target, "Search", []any{"query"}, map[string]any{"limit": float64(5), "deep": true})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Result != "query:deep:5" {
		t.Fatalf("unexpected result %v", result.Result)
	}

	_, err = invokeOn(t, engine, target, "Search", []any{"query"}, map[string]any{"nope": true})
	if err == nil || !strings.Contains(err.Error(), `Unknown keyword argument "nope"`) {
		t.Fatalf("expected unknown keyword rejection, got %v", err)
	}

	_, err = invokeOn(t, engine, target, "Describe", []any{"x"}, map[string]any{"limit": float64(1)})
	if err == nil || !strings.Contains(err.Error(), "does not accept keyword arguments") {
		t.Fatalf("expected keyword rejection for plain method, got %v", err)
	}
}

func TestInvokeRejectsDeferredResults(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t)
	target := &repoCatalog{}

	_, err := invokeOn(t, engine, target, "Watch", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "returned a channel, which is not supported") {
		t.Fatalf("expected channel result rejection, got %v", err)
	}
}

func TestInvokeMultipleResults(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t)
	target := &repoCatalog{}

	result, err := invokeOn(t, engine, target, "Pair", nil, nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	items, ok := result.Result.([]any)
	if !ok || len(items) != 2 || items[0] != "a" || items[1] != 1 {
		t.Fatalf("unexpected combined results %v", result.Result)
	}
}

func TestInvokeDecodesSpecialArguments(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t)
	target := &repoCatalog{}

	result, err := invokeOn(t, engine, target, "Measure", []any{map[string]any{"__bytes_base64__": "aGVsbG8="}}, nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Result != 5 {
		t.Fatalf("expected decoded byte length 5, got %v", result.Result)
	}
}

func TestInvokeHandleChain(t *testing.T) {
	t.Parallel()
	engine, store := newTestEngine(t)
	target := &repoCatalog{entries: []string{"libs-release-local"}}

	// An opaque result becomes a handle as a side effect of encoding.
	result, err := invokeOn(t, engine, target, "Clone", nil, nil)
	if err != nil {
		t.Fatalf("invoke clone: %v", err)
	}
	wrapper, ok := result.Result.(map[string]any)
	if !ok || wrapper["type"] != "handle" {
		t.Fatalf("expected handle result, got %v", result.Result)
	}
	if result.ResultType != "repoCatalog" {
		t.Fatalf("unexpected result type %q", result.ResultType)
	}
	if store.Count() != 1 {
		t.Fatalf("expected handle registered, count=%d", store.Count())
	}

	// The handle id selects the stored object as the target of a later call.
	id, ok := wrapper["handle_id"].(string)
	if !ok || id == "" {
		t.Fatalf("missing handle_id in %v", wrapper)
	}
	resolved, err := store.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	chained, err := engine.Invoke(context.Background(), bridge.Invocation{
		Target:      resolved,
		TargetLabel: "handle:" + id + ":repoCatalog",
		Method:      "GetRepositories",
	})
	if err != nil {
		t.Fatalf("invoke on handle: %v", err)
	}
	items, ok := chained.Result.([]any)
	if !ok || len(items) != 1 || items[0] != "libs-release-local" {
		t.Fatalf("unexpected chained result %v", chained.Result)
	}
}

func TestInvokeRecoversPanics(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t)
	target := &repoCatalog{}

	_, err := invokeOn(t, engine, target, "Panics", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "panicked: kaboom") {
		t.Fatalf("expected panic to surface as error, got %v", err)
	}
}
