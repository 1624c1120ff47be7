package artifactory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
)

// Path addresses a location inside a repository: the repository name plus a
// cleaned relative path. The repository root has an empty relative path.
// Path values are immutable; navigation methods return new values bound to
// the same client.
type Path struct {
	client     *Client
	repository string
	relative   string
}

// Repository returns the repository name the path is scoped to.
func (p *Path) Repository() string {
	return p.repository
}

// RelativePath returns the cleaned path inside the repository. Empty means
// the repository root.
func (p *Path) RelativePath() string {
	return p.relative
}

// Name returns the final path segment, or the repository name at the root.
func (p *Path) Name() string {
	if p.relative == "" {
		return p.repository
	}
	return path.Base(p.relative)
}

// URI returns the full content URL of the path.
func (p *Path) URI() string {
	return p.client.contentURL(p.repository, p.relative)
}

func (p *Path) String() string {
	return p.URI()
}

// Parent returns the containing directory; the repository root is its own
// parent.
func (p *Path) Parent() *Path {
	if p.relative == "" {
		return p
	}
	parent := path.Dir(p.relative)
	if parent == "." {
		parent = ""
	}
	return &Path{client: p.client, repository: p.repository, relative: parent}
}

// Joinpath returns the path extended with the given segments. Segments are
// cleaned with the same rules as construction; traversal is rejected.
func (p *Path) Joinpath(segments ...string) (*Path, error) {
	joined := p.relative
	for _, segment := range segments {
		cleaned, err := CleanRelativePath(segment)
		if err != nil {
			return nil, err
		}
		if cleaned == "" {
			continue
		}
		if joined == "" {
			joined = cleaned
		} else {
			joined = joined + "/" + cleaned
		}
	}
	return &Path{client: p.client, repository: p.repository, relative: joined}, nil
}

func (p *Path) storageURL(query string) string {
	u := p.client.apiURL("storage", p.repository)
	if p.relative != "" {
		for _, segment := range splitSegments(p.relative) {
			u += "/" + url.PathEscape(segment)
		}
	}
	if query != "" {
		u += "?" + query
	}
	return u
}

// Exists reports whether the path addresses an existing artifact or folder.
func (p *Path) Exists(ctx context.Context) (bool, error) {
	_, err := p.Stat(ctx)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.IsNotFound() {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsDir reports whether the path addresses a folder. Missing paths produce
// an error; check Exists first when absence is expected.
func (p *Path) IsDir(ctx context.Context) (bool, error) {
	info, err := p.Stat(ctx)
	if err != nil {
		return false, err
	}
	return info.IsDir, nil
}

// Stat fetches storage metadata for the path.
func (p *Path) Stat(ctx context.Context) (Stat, error) {
	var info storageInfo
	if err := p.client.getJSON(ctx, p.storageURL(""), &info); err != nil {
		return Stat{}, err
	}
	return info.toStat()
}

// Iterdir lists the direct children of a folder, lazily yielded as *Path
// values. Calling it on a file is an error.
func (p *Path) Iterdir(ctx context.Context) (*PathIterator, error) {
	info, err := p.Stat(ctx)
	if err != nil {
		return nil, err
	}
	if !info.IsDir {
		return nil, fmt.Errorf("%s is not a directory", p.URI())
	}
	items := make([]*Path, 0, len(info.Children))
	for _, name := range info.Children {
		child, err := p.Joinpath(name)
		if err != nil {
			return nil, err
		}
		items = append(items, child)
	}
	return &PathIterator{items: items}, nil
}

// Glob matches descendants against pattern and yields them as *Path values.
// Patterns use shell wildcards per path segment; "**" matches any number of
// segments. Matching is evaluated against paths relative to the receiver.
func (p *Path) Glob(ctx context.Context, pattern string) (*PathIterator, error) {
	pattern = strings.TrimSpace(strings.ReplaceAll(pattern, "\\", "/"))
	if pattern == "" {
		return nil, fmt.Errorf("glob pattern cannot be empty")
	}
	var listing deepListing
	if err := p.client.getJSON(ctx, p.storageURL("list&deep=1&listFolders=1"), &listing); err != nil {
		return nil, err
	}
	relatives := make([]string, 0, len(listing.Files))
	for _, entry := range listing.Files {
		rel := strings.Trim(entry.URI, "/")
		if rel == "" {
			continue
		}
		ok, err := matchGlob(pattern, rel)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q", pattern)
		}
		if ok {
			relatives = append(relatives, rel)
		}
	}
	sort.Strings(relatives)
	items := make([]*Path, 0, len(relatives))
	for _, rel := range relatives {
		child, err := p.Joinpath(rel)
		if err != nil {
			return nil, err
		}
		items = append(items, child)
	}
	return &PathIterator{items: items}, nil
}

// ReadBytes downloads the artifact content.
func (p *Path) ReadBytes(ctx context.Context) ([]byte, error) {
	if p.relative == "" {
		return nil, fmt.Errorf("cannot read the repository root")
	}
	return p.client.getRaw(ctx, p.URI())
}

// ReadText downloads the artifact content as text.
func (p *Path) ReadText(ctx context.Context) (string, error) {
	data, err := p.ReadBytes(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteBytes deploys data as the artifact content and returns the number of
// bytes written.
func (p *Path) WriteBytes(ctx context.Context, data []byte) (int, error) {
	if p.relative == "" {
		return 0, fmt.Errorf("cannot write to the repository root")
	}
	resp, err := p.client.do(ctx, http.MethodPut, p.URI(), strings.NewReader(string(data)), "application/octet-stream")
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return len(data), nil
}

// WriteText deploys content as the artifact text and returns the number of
// bytes written.
func (p *Path) WriteText(ctx context.Context, content string) (int, error) {
	return p.WriteBytes(ctx, []byte(content))
}

// Mkdir creates the path as a folder. Parent folders are created implicitly
// by the server.
func (p *Path) Mkdir(ctx context.Context) error {
	if p.relative == "" {
		return nil
	}
	resp, err := p.client.do(ctx, http.MethodPut, p.URI()+"/", nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Delete removes the artifact or folder (folders recursively).
func (p *Path) Delete(ctx context.Context) error {
	resp, err := p.client.do(ctx, http.MethodDelete, p.URI(), nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Move relocates the artifact or folder to dest within the same instance.
func (p *Path) Move(ctx context.Context, dest *Path) error {
	return p.moveOrCopy(ctx, "move", dest)
}

// Copy duplicates the artifact or folder to dest within the same instance.
func (p *Path) Copy(ctx context.Context, dest *Path) error {
	return p.moveOrCopy(ctx, "copy", dest)
}

func (p *Path) moveOrCopy(ctx context.Context, op string, dest *Path) error {
	if dest == nil {
		return fmt.Errorf("%s destination is required", op)
	}
	target := "/" + dest.repository
	if dest.relative != "" {
		target += "/" + dest.relative
	}
	u := p.client.apiURL(op, p.repository)
	for _, segment := range splitSegments(p.relative) {
		u += "/" + url.PathEscape(segment)
	}
	u += "?to=" + url.QueryEscape(target)
	resp, err := p.client.do(ctx, http.MethodPost, u, nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Properties fetches the property map of the path. Paths without properties
// yield an empty map.
func (p *Path) Properties(ctx context.Context) (map[string][]string, error) {
	var out struct {
		Properties map[string][]string `json:"properties"`
	}
	if err := p.client.getJSON(ctx, p.storageURL("properties"), &out); err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.IsNotFound() {
			return map[string][]string{}, nil
		}
		return nil, err
	}
	if out.Properties == nil {
		out.Properties = map[string][]string{}
	}
	return out.Properties, nil
}

// SetProperties attaches the given properties to the path.
func (p *Path) SetProperties(ctx context.Context, properties map[string]string) error {
	if len(properties) == 0 {
		return fmt.Errorf("properties cannot be empty")
	}
	keys := make([]string, 0, len(properties))
	for key := range properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+properties[key])
	}
	query := "properties=" + url.QueryEscape(strings.Join(pairs, ";")) + "&recursive=0"
	resp, err := p.client.do(ctx, http.MethodPut, p.storageURL(query), nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// DeleteProperties removes the named properties from the path.
func (p *Path) DeleteProperties(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("property keys cannot be empty")
	}
	query := "properties=" + url.QueryEscape(strings.Join(keys, ",")) + "&recursive=0"
	resp, err := p.client.do(ctx, http.MethodDelete, p.storageURL(query), nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// DownloadStats fetches download statistics for an artifact. The server
// response is surfaced as-is.
func (p *Path) DownloadStats(ctx context.Context) (map[string]any, error) {
	var stats map[string]any
	if err := p.client.getJSON(ctx, p.storageURL("stats"), &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// PathIterator lazily yields *Path values. It implements the generic
// iterator shape consumed by the value codec: draining is destructive and a
// partially consumed iterator resumes where it stopped.
type PathIterator struct {
	items []*Path
	next  int
}

// Next returns the next path and true, or nil and false when exhausted.
func (it *PathIterator) Next() (any, bool) {
	if it.next >= len(it.items) {
		return nil, false
	}
	item := it.items[it.next]
	it.next++
	return item, true
}

// deepListing is the wire shape of the recursive file list endpoint.
type deepListing struct {
	URI   string `json:"uri"`
	Files []struct {
		URI    string `json:"uri"`
		Folder bool   `json:"folder"`
	} `json:"files"`
}

// matchGlob reports whether rel matches pattern. Both are slash-separated;
// wildcard semantics are per-segment shell matching with "**" spanning any
// number of segments.
func matchGlob(pattern, rel string) (bool, error) {
	return matchSegments(splitSegments(pattern), splitSegments(rel))
}

func matchSegments(pat, segs []string) (bool, error) {
	for len(pat) > 0 {
		if pat[0] == "**" {
			for skip := 0; skip <= len(segs); skip++ {
				ok, err := matchSegments(pat[1:], segs[skip:])
				if err != nil || ok {
					return ok, err
				}
			}
			return false, nil
		}
		if len(segs) == 0 {
			return false, nil
		}
		ok, err := path.Match(pat[0], segs[0])
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		pat = pat[1:]
		segs = segs[1:]
	}
	return len(segs) == 0, nil
}
