package mcp

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"pkt.systems/pslog"

	"pkt.systems/afmcp"
)

// fakeArtifactory is an in-memory Artifactory backend for tool tests. It
// serves the storage metadata API, deep listings, properties, download
// stats, content up/downloads, move/copy, AQL, repositories, and ping
// under the /artifactory context the normalized base URL targets.
type fakeArtifactory struct {
	mu          sync.Mutex
	files       map[string]string
	dirs        map[string]struct{}
	props       map[string]map[string][]string
	downloads   map[string]map[string]any
	failStorage map[string]apiFailure
	repos       []map[string]any
	aqlResults  []map[string]any
	mkdirCalls  int
}

type apiFailure struct {
	status  int
	message string
}

func newFakeArtifactory() *fakeArtifactory {
	return &fakeArtifactory{
		files:       map[string]string{},
		dirs:        map[string]struct{}{},
		props:       map[string]map[string][]string{},
		downloads:   map[string]map[string]any{},
		failStorage: map[string]apiFailure{},
	}
}

func (f *fakeArtifactory) addRepo(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[name] = struct{}{}
	f.repos = append(f.repos, map[string]any{"key": name, "type": "LOCAL", "packageType": "generic"})
}

func (f *fakeArtifactory) addDir(repo, rel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addDirLocked(strings.Trim(repo+"/"+rel, "/"))
}

func (f *fakeArtifactory) addFile(repo, rel, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addFileLocked(strings.Trim(repo+"/"+rel, "/"), content)
}

func (f *fakeArtifactory) setProperties(repo, rel string, props map[string][]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.props[strings.Trim(repo+"/"+rel, "/")] = props
}

func (f *fakeArtifactory) setDownloads(repo, rel string, stats map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads[strings.Trim(repo+"/"+rel, "/")] = stats
}

func (f *fakeArtifactory) failStorageWith(repo, rel string, status int) {
	f.failStorageWithMessage(repo, rel, status, http.StatusText(status))
}

func (f *fakeArtifactory) failStorageWithMessage(repo, rel string, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStorage[strings.Trim(repo+"/"+rel, "/")] = apiFailure{status: status, message: message}
}

func (f *fakeArtifactory) fileContent(repo, rel string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[strings.Trim(repo+"/"+rel, "/")]
	return content, ok
}

func (f *fakeArtifactory) mkdirCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mkdirCalls
}

func (f *fakeArtifactory) addDirLocked(key string) {
	for key != "" {
		f.dirs[key] = struct{}{}
		idx := strings.LastIndex(key, "/")
		if idx < 0 {
			break
		}
		key = key[:idx]
	}
}

func (f *fakeArtifactory) addFileLocked(key, content string) {
	f.files[key] = content
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		f.addDirLocked(key[:idx])
	}
}

func (f *fakeArtifactory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := strings.TrimPrefix(r.URL.Path, "/artifactory")
	switch {
	case p == "/api/system/ping":
		io.WriteString(w, "OK")
	case p == "/api/system/version":
		json.NewEncoder(w).Encode(map[string]any{"version": "7.90.1", "revision": "79001", "addons": []string{}})
	case p == "/api/repositories":
		repos := f.repos
		if repos == nil {
			repos = []map[string]any{}
		}
		json.NewEncoder(w).Encode(repos)
	case p == "/api/search/aql":
		results := f.aqlResults
		if results == nil {
			results = []map[string]any{}
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results, "range": map[string]any{"total": len(results)}})
	case strings.HasPrefix(p, "/api/move/"):
		f.handleMoveCopy(w, r, strings.TrimPrefix(p, "/api/move/"), true)
	case strings.HasPrefix(p, "/api/copy/"):
		f.handleMoveCopy(w, r, strings.TrimPrefix(p, "/api/copy/"), false)
	case strings.HasPrefix(p, "/api/storage/"):
		f.handleStorage(w, r, strings.Trim(strings.TrimPrefix(p, "/api/storage/"), "/"))
	default:
		f.handleContent(w, r, p)
	}
}

func (f *fakeArtifactory) handleStorage(w http.ResponseWriter, r *http.Request, key string) {
	if failure, ok := f.failStorage[key]; ok {
		writeAPIError(w, failure.status, failure.message)
		return
	}
	q := r.URL.RawQuery
	switch {
	case q == "properties":
		props, ok := f.props[key]
		if !ok || len(props) == 0 {
			writeAPIError(w, http.StatusNotFound, "No properties could be found.")
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"properties": props})
	case strings.HasPrefix(q, "properties=") && r.Method == http.MethodPut:
		raw, _ := url.QueryUnescape(strings.TrimPrefix(strings.SplitN(q, "&", 2)[0], "properties="))
		props := f.props[key]
		if props == nil {
			props = map[string][]string{}
			f.props[key] = props
		}
		for _, pair := range strings.Split(raw, ";") {
			if name, value, ok := strings.Cut(pair, "="); ok {
				props[name] = []string{value}
			}
		}
		w.WriteHeader(http.StatusNoContent)
	case strings.HasPrefix(q, "properties=") && r.Method == http.MethodDelete:
		raw, _ := url.QueryUnescape(strings.TrimPrefix(strings.SplitN(q, "&", 2)[0], "properties="))
		for _, name := range strings.Split(raw, ",") {
			delete(f.props[key], name)
		}
		w.WriteHeader(http.StatusNoContent)
	case q == "stats":
		stats, ok := f.downloads[key]
		if !ok {
			stats = map[string]any{"downloadCount": 0}
		}
		json.NewEncoder(w).Encode(stats)
	case strings.Contains(q, "deep=1"):
		f.writeDeepListing(w, key)
	default:
		f.writeStorageInfo(w, key)
	}
}

func (f *fakeArtifactory) writeStorageInfo(w http.ResponseWriter, key string) {
	repo, rel, _ := strings.Cut(key, "/")
	if content, ok := f.files[key]; ok {
		sum1 := sha1.Sum([]byte(content))
		sum256 := sha256.Sum256([]byte(content))
		sumMD5 := md5.Sum([]byte(content))
		json.NewEncoder(w).Encode(map[string]any{
			"repo":         repo,
			"path":         "/" + rel,
			"created":      "2024-03-01T10:00:00.000Z",
			"createdBy":    "deployer",
			"lastModified": "2024-03-02T11:30:00.000Z",
			"modifiedBy":   "deployer",
			"lastUpdated":  "2024-03-02T11:30:00.000Z",
			"downloadUri":  "http://fake/artifactory/" + key,
			"mimeType":     "text/plain",
			"size":         fmt.Sprint(len(content)),
			"checksums": map[string]string{
				"sha1":   hex.EncodeToString(sum1[:]),
				"sha256": hex.EncodeToString(sum256[:]),
				"md5":    hex.EncodeToString(sumMD5[:]),
			},
		})
		return
	}
	if _, ok := f.dirs[key]; ok {
		json.NewEncoder(w).Encode(map[string]any{
			"repo":     repo,
			"path":     "/" + rel,
			"created":  "2024-03-01T10:00:00.000Z",
			"children": f.childrenOf(key),
		})
		return
	}
	writeAPIError(w, http.StatusNotFound, "Unable to find item")
}

func (f *fakeArtifactory) childrenOf(key string) []map[string]any {
	prefix := key + "/"
	seen := map[string]bool{}
	out := []map[string]any{}
	add := func(rest string, folder bool) {
		name, _, nested := strings.Cut(rest, "/")
		if nested {
			folder = true
		}
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, map[string]any{"uri": "/" + name, "folder": folder})
	}
	for fk := range f.files {
		if strings.HasPrefix(fk, prefix) {
			add(strings.TrimPrefix(fk, prefix), false)
		}
	}
	for dk := range f.dirs {
		if strings.HasPrefix(dk, prefix) {
			add(strings.TrimPrefix(dk, prefix), true)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i]["uri"].(string) < out[j]["uri"].(string) })
	return out
}

func (f *fakeArtifactory) writeDeepListing(w http.ResponseWriter, key string) {
	prefix := key + "/"
	entries := []map[string]any{}
	for fk := range f.files {
		if strings.HasPrefix(fk, prefix) {
			entries = append(entries, map[string]any{"uri": "/" + strings.TrimPrefix(fk, prefix), "folder": false})
		}
	}
	for dk := range f.dirs {
		if strings.HasPrefix(dk, prefix) {
			entries = append(entries, map[string]any{"uri": "/" + strings.TrimPrefix(dk, prefix), "folder": true})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i]["uri"].(string) < entries[j]["uri"].(string) })
	json.NewEncoder(w).Encode(map[string]any{"uri": "http://fake/artifactory/api/storage/" + key, "files": entries})
}

func (f *fakeArtifactory) handleMoveCopy(w http.ResponseWriter, r *http.Request, source string, move bool) {
	target := strings.Trim(r.URL.Query().Get("to"), "/")
	source = strings.Trim(source, "/")
	content, ok := f.files[source]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "Unable to find item")
		return
	}
	f.addFileLocked(target, content)
	if move {
		delete(f.files, source)
	}
	json.NewEncoder(w).Encode(map[string]any{"messages": []map[string]any{{"level": "INFO", "message": "ok"}}})
}

func (f *fakeArtifactory) handleContent(w http.ResponseWriter, r *http.Request, p string) {
	key := strings.Trim(p, "/")
	switch r.Method {
	case http.MethodGet:
		content, ok := f.files[key]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "Unable to find item")
			return
		}
		io.WriteString(w, content)
	case http.MethodPut:
		if strings.HasSuffix(p, "/") {
			f.mkdirCalls++
			f.addDirLocked(key)
			w.WriteHeader(http.StatusCreated)
			return
		}
		data, _ := io.ReadAll(r.Body)
		f.addFileLocked(key, string(data))
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, "{}")
	case http.MethodDelete:
		delete(f.files, key)
		delete(f.dirs, key)
		for fk := range f.files {
			if strings.HasPrefix(fk, key+"/") {
				delete(f.files, fk)
			}
		}
		for dk := range f.dirs {
			if strings.HasPrefix(dk, key+"/") {
				delete(f.dirs, dk)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]any{{"status": status, "message": message}},
	})
}

// newToolTestServer wires a facade server against a fresh fake backend.
func newToolTestServer(t *testing.T) (*server, *fakeArtifactory) {
	t.Helper()

	fake := newFakeArtifactory()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	cfg := afmcp.Config{BaseURL: ts.URL}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	logger := pslog.NewStructured(context.Background(), io.Discard)
	s := newBridgeServer(cfg, logger)
	cli, err := newArtifactoryClient(cfg, cfg.BaseURL, logger)
	if err != nil {
		t.Fatalf("new artifactory client: %v", err)
	}
	t.Cleanup(func() { _ = cli.Close() })
	s.defaultCli = cli
	return s, fake
}

// newUnconfiguredToolTestServer returns a facade without a default upstream
// client, as when ARTIFACTORY_BASE_URL is unset.
func newUnconfiguredToolTestServer(t *testing.T) *server {
	t.Helper()

	cfg := afmcp.Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	return newBridgeServer(cfg, pslog.NewStructured(context.Background(), io.Discard))
}

func connectMCPClientSession(t *testing.T, s *server) (*mcpsdk.ClientSession, func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	mcpSrv := s.buildServer()
	t1, t2 := mcpsdk.NewInMemoryTransports()
	ss, err := mcpSrv.Connect(ctx, t1, nil)
	if err != nil {
		cancel()
		t.Fatalf("server connect: %v", err)
	}
	cs, err := client.Connect(ctx, t2, nil)
	if err != nil {
		_ = ss.Close()
		cancel()
		t.Fatalf("client connect: %v", err)
	}
	return cs, func() {
		_ = cs.Close()
		_ = ss.Close()
		cancel()
	}
}

// callToolStructured invokes a tool and returns its structured result,
// failing the test on transport or tool errors.
func callToolStructured(t *testing.T, cs *mcpsdk.ClientSession, name string, args map[string]any) map[string]any {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if res.IsError {
		t.Fatalf("%s returned tool error: %s", name, toolResultText(res))
	}
	body, ok := res.StructuredContent.(map[string]any)
	if !ok {
		t.Fatalf("expected structured content object from %s, got %T", name, res.StructuredContent)
	}
	return body
}

// callToolExpectError invokes a tool that must fail and returns the decoded
// error envelope object.
func callToolExpectError(t *testing.T, cs *mcpsdk.ClientSession, name string, args map[string]any) map[string]any {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if !res.IsError {
		t.Fatalf("expected %s to fail, got %v", name, res.StructuredContent)
	}
	return extractToolErrorObject(t, res)
}

func toolResultText(res *mcpsdk.CallToolResult) string {
	if res == nil || len(res.Content) == 0 {
		return ""
	}
	if text, ok := res.Content[0].(*mcpsdk.TextContent); ok {
		return text.Text
	}
	return ""
}

func extractToolErrorObject(t *testing.T, res *mcpsdk.CallToolResult) map[string]any {
	t.Helper()
	if res == nil {
		t.Fatalf("expected call tool result")
	}
	if len(res.Content) == 0 {
		t.Fatalf("expected error content entry")
	}
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	var content map[string]any
	if err := json.Unmarshal([]byte(text.Text), &content); err != nil {
		t.Fatalf("expected json error envelope text, got %q: %v", text.Text, err)
	}
	errRaw, ok := content["error"]
	if !ok {
		t.Fatalf("expected error object in content text, got %#v", content)
	}
	errObj, ok := errRaw.(map[string]any)
	if !ok {
		t.Fatalf("expected structured error object, got %T", errRaw)
	}
	return errObj
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func asList(t *testing.T, v any) []any {
	t.Helper()
	list, ok := v.([]any)
	if !ok {
		t.Fatalf("expected list, got %T", v)
	}
	return list
}

func asObject(t *testing.T, v any) map[string]any {
	t.Helper()
	obj, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %T", v)
	}
	return obj
}

func asInt(t *testing.T, v any) int {
	t.Helper()
	f, ok := v.(float64)
	if !ok {
		t.Fatalf("expected number, got %T", v)
	}
	return int(f)
}
