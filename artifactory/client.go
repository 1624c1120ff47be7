package artifactory

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"pkt.systems/afmcp/internal/correlation"
	"pkt.systems/afmcp/internal/svcfields"
	"pkt.systems/pslog"
)

const (
	// DefaultHTTPTimeout bounds each REST request when no timeout option is given.
	DefaultHTTPTimeout = 30 * time.Second

	headerCorrelationID = "X-Correlation-Id"
	headerAPIKey        = "X-JFrog-Art-Api"
)

// Client is a typed HTTP client for the Artifactory REST API. Construct it
// with New; the zero value is not usable.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	httpTimeout time.Duration
	token       string
	apiKey      string
	username    string
	password    string
	insecureTLS bool
	saasLayout  bool
	logger      pslog.Base

	closeOnce sync.Once
}

// Option customises client construction.
type Option func(*Client)

// WithToken authenticates requests with a bearer access token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithAPIKey authenticates requests with a legacy Artifactory API key.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithBasicAuth authenticates requests with username and password.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithTimeout bounds each REST request. Zero or negative disables the
// per-request deadline (context cancellation still applies).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpTimeout = d
	}
}

// WithInsecureTLS disables server certificate verification. Intended for
// instances behind self-signed certificates in trusted networks.
func WithInsecureTLS(insecure bool) Option {
	return func(c *Client) {
		c.insecureTLS = insecure
	}
}

// WithSaaSLayout resolves API routes against the platform context (the first
// path segment of the base URL) rather than the full configured base path.
// Required for JFrog-hosted tenants whose base URL nests additional segments.
func WithSaaSLayout(enabled bool) Option {
	return func(c *Client) {
		c.saasLayout = enabled
	}
}

// WithLogger supplies a logger for client diagnostics.
// Passing nil falls back to pslog.NoopLogger().
func WithLogger(logger pslog.Base) Option {
	return func(c *Client) {
		if logger == nil {
			c.logger = pslog.NoopLogger()
			return
		}
		if full, ok := logger.(pslog.Logger); ok {
			c.logger = svcfields.WithSubsystem(full, "artifactory.client")
			return
		}
		c.logger = logger
	}
}

// WithHTTPClient supplies a custom HTTP client/transport stack. Use this for
// custom TLS roots, proxies, or connection pooling behavior not covered by
// the defaults. It overrides WithInsecureTLS.
func WithHTTPClient(cli *http.Client) Option {
	return func(c *Client) {
		if cli != nil {
			c.httpClient = cli
		}
	}
}

// New constructs an Artifactory client for baseURL. The URL must be absolute
// HTTP/HTTPS; a bare host gains the "/artifactory" context path. At most one
// authentication method may be configured.
func New(baseURL string, opts ...Option) (*Client, error) {
	normalized, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:     normalized,
		httpTimeout: DefaultHTTPTimeout,
		logger:      pslog.NoopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if (c.username == "") != (c.password == "") {
		return nil, fmt.Errorf("set both username and password, or neither")
	}
	methods := 0
	if c.token != "" {
		methods++
	}
	if c.apiKey != "" {
		methods++
	}
	if c.username != "" && c.password != "" {
		methods++
	}
	if methods > 1 {
		return nil, fmt.Errorf("configure only one authentication method: token, api key, or username/password")
	}
	if c.token != "" {
		if err := ValidateToken(c.token); err != nil {
			return nil, err
		}
	}
	if c.httpClient == nil {
		transport := http.DefaultTransport
		if c.insecureTLS {
			cloned := http.DefaultTransport.(*http.Transport).Clone()
			cloned.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			transport = cloned
		}
		c.httpClient = &http.Client{Transport: transport}
	}
	return c, nil
}

// BaseURL returns the normalized base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Path returns a path-scoped value inside repository. The relative path is
// cleaned per CleanRelativePath; empty, "." and "/" address the repository
// root.
func (c *Client) Path(repository, relative string) (*Path, error) {
	repo, err := ValidateRepository(repository)
	if err != nil {
		return nil, err
	}
	rel, err := CleanRelativePath(relative)
	if err != nil {
		return nil, err
	}
	return &Path{client: c, repository: repo, relative: rel}, nil
}

// Ping checks instance health via the system ping endpoint.
func (c *Client) Ping(ctx context.Context) (string, error) {
	data, err := c.getRaw(ctx, c.apiURL("system", "ping"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// VersionInfo describes the Artifactory release serving the API.
type VersionInfo struct {
	Version  string   `json:"version"`
	Revision string   `json:"revision"`
	Addons   []string `json:"addons,omitempty"`
	License  string   `json:"license,omitempty"`
}

// Version reports the Artifactory release serving the API.
func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	var info VersionInfo
	if err := c.getJSON(ctx, c.apiURL("system", "version"), &info); err != nil {
		return VersionInfo{}, err
	}
	return info, nil
}

// RepositoryInfo summarizes one repository as returned by the repositories
// listing endpoint.
type RepositoryInfo struct {
	Key         string `json:"key"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	PackageType string `json:"packageType,omitempty"`
}

// Repositories lists the repositories visible to the configured credentials.
func (c *Client) Repositories(ctx context.Context) ([]RepositoryInfo, error) {
	var repos []RepositoryInfo
	if err := c.getJSON(ctx, c.apiURL("repositories"), &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// RepositoryConfig returns the full configuration document of one repository.
// The document shape varies by repository type, so it is surfaced as a map.
func (c *Client) RepositoryConfig(ctx context.Context, repository string) (map[string]any, error) {
	repo, err := ValidateRepository(repository)
	if err != nil {
		return nil, err
	}
	var config map[string]any
	if err := c.getJSON(ctx, c.apiURL("repositories", repo), &config); err != nil {
		return nil, err
	}
	return config, nil
}

// UserInfo summarizes one user account from the security API.
type UserInfo struct {
	Name  string `json:"name"`
	URI   string `json:"uri,omitempty"`
	Realm string `json:"realm,omitempty"`
}

// Users lists user accounts. Requires admin credentials.
func (c *Client) Users(ctx context.Context) ([]UserInfo, error) {
	var users []UserInfo
	if err := c.getJSON(ctx, c.apiURL("security", "users"), &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GroupInfo summarizes one group from the security API.
type GroupInfo struct {
	Name string `json:"name"`
	URI  string `json:"uri,omitempty"`
}

// Groups lists security groups. Requires admin credentials.
func (c *Client) Groups(ctx context.Context) ([]GroupInfo, error) {
	var groups []GroupInfo
	if err := c.getJSON(ctx, c.apiURL("security", "groups"), &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// AQL runs an Artifactory Query Language statement and returns the result
// rows. The query text is sent verbatim.
func (c *Client) AQL(ctx context.Context, query string) ([]map[string]any, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("aql query cannot be empty")
	}
	resp, err := c.do(ctx, http.MethodPost, c.apiURL("search", "aql"), strings.NewReader(query), "text/plain")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode aql response: %w", err)
	}
	return out.Results, nil
}

// Close releases idle connections held by the underlying transport.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.httpClient.CloseIdleConnections()
	})
	return nil
}

// apiRoot returns the URL prefix REST API routes hang off. The SaaS layout
// pins it to the platform context segment regardless of deeper base paths.
func (c *Client) apiRoot() string {
	if !c.saasLayout {
		return c.baseURL
	}
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL
	}
	segments := splitSegments(parsed.Path)
	if len(segments) == 0 {
		return c.baseURL
	}
	parsed.Path = "/" + segments[0]
	return parsed.String()
}

func (c *Client) apiURL(parts ...string) string {
	var b strings.Builder
	b.WriteString(c.apiRoot())
	b.WriteString("/api")
	for _, part := range parts {
		for _, segment := range splitSegments(part) {
			b.WriteString("/")
			b.WriteString(url.PathEscape(segment))
		}
	}
	return b.String()
}

func (c *Client) contentURL(repository, relative string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString("/")
	b.WriteString(url.PathEscape(repository))
	for _, segment := range splitSegments(relative) {
		b.WriteString("/")
		b.WriteString(url.PathEscape(segment))
	}
	return b.String()
}

func splitSegments(p string) []string {
	var segments []string
	for _, segment := range strings.Split(p, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

func (c *Client) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if c.httpTimeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, c.httpTimeout)
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.apiKey != "":
		req.Header.Set(headerAPIKey, c.apiKey)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}
	if id := correlation.ID(ctx); id != "" {
		req.Header.Set(headerCorrelationID, id)
	}
	return req, nil
}

// do performs a request and returns the response on 2xx. Non-2xx responses
// decode into an *APIError with the body consumed. The caller owns the
// response body on success.
func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string) (*http.Response, error) {
	reqCtx, cancel := c.requestContext(ctx)
	req, err := c.newRequest(reqCtx, method, rawURL, body)
	if err != nil {
		cancel()
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	endpoint := req.URL.Path
	c.logTraceCtx(ctx, "artifactory.http.start", "method", method, "endpoint", endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		c.logErrorCtx(ctx, "artifactory.http.transport_error", "method", method, "endpoint", endpoint, "error", err)
		return nil, err
	}
	if resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp, endpoint)
		resp.Body.Close()
		cancel()
		c.logWarnCtx(ctx, "artifactory.http.error", "method", method, "endpoint", endpoint, "status", resp.StatusCode)
		return nil, apiErr
	}
	c.logTraceCtx(ctx, "artifactory.http.success", "method", method, "endpoint", endpoint, "status", resp.StatusCode)
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelReadCloser releases the request context when the body is closed so the
// per-request deadline does not fire mid-read for streamed payloads.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, rawURL, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", resp.Request.URL.Path, err)
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", resp.Request.URL.Path, err)
	}
	return data, nil
}

func (c *Client) logTraceCtx(ctx context.Context, msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Trace(msg, c.enrichKeyvals(ctx, keyvals)...)
}

func (c *Client) logWarnCtx(ctx context.Context, msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, c.enrichKeyvals(ctx, keyvals)...)
}

func (c *Client) logErrorCtx(ctx context.Context, msg string, keyvals ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Error(msg, c.enrichKeyvals(ctx, keyvals)...)
}

func (c *Client) enrichKeyvals(ctx context.Context, keyvals []any) []any {
	cid := correlation.ID(ctx)
	if cid == "" {
		return keyvals
	}
	enriched := append([]any(nil), keyvals...)
	return append(enriched, "cid", cid)
}
