package mcp

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/afmcp"
	"pkt.systems/afmcp/artifactory"
	"pkt.systems/afmcp/internal/bridge"
)

// maxListItems is the hard ceiling for list_artifacts page sizes.
const maxListItems = 1000

type listArtifactsInput struct {
	Repository         string `json:"repository" jsonschema:"Repository name, e.g. libs-release-local"`
	Path               string `json:"path,omitempty" jsonschema:"Folder path inside the repository (empty lists the repository root)"`
	Recursive          bool   `json:"recursive,omitempty" jsonschema:"Walk subfolders instead of listing direct children only"`
	Pattern            string `json:"pattern,omitempty" jsonschema:"Shell wildcard filter on entry names, default *; with recursive=true it matches folder-relative paths and supports **"`
	IncludeDirectories *bool  `json:"include_directories,omitempty" jsonschema:"Include folders in the result (default true)"`
	IncludeStats       bool   `json:"include_stats,omitempty" jsonschema:"Attach size and last_modified per entry; costs one metadata request per entry"`
	MaxItems           int    `json:"max_items,omitempty" jsonschema:"Cap on returned entries, 1-1000 (default 200)"`
	BaseURL            string `json:"base_url,omitempty" jsonschema:"Artifactory base URL override for this call"`
}

type artifactEntry struct {
	URI          string  `json:"uri"`
	Name         string  `json:"name"`
	Path         string  `json:"path"`
	IsDir        bool    `json:"is_dir"`
	Size         *int64  `json:"size,omitempty"`
	LastModified *string `json:"last_modified,omitempty"`
}

type listArtifactsOutput struct {
	BaseURL    string          `json:"base_url"`
	Repository string          `json:"repository"`
	Path       string          `json:"path"`
	Count      int             `json:"count"`
	Truncated  bool            `json:"truncated"`
	Items      []artifactEntry `json:"items"`
}

func (s *server) handleListArtifactsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input listArtifactsInput) (*mcpsdk.CallToolResult, listArtifactsOutput, error) {
	var zero listArtifactsOutput

	maxItems := input.MaxItems
	if maxItems == 0 {
		maxItems = s.cfg.DefaultMaxItems
		if maxItems > maxListItems {
			maxItems = maxListItems
		}
	}
	if maxItems < 1 || maxItems > maxListItems {
		return nil, zero, bridge.Errorf(bridge.KindValidation, "max_items must be between 1 and %d.", maxListItems)
	}
	pattern := input.Pattern
	if pattern == "" {
		pattern = "*"
	}
	if strings.TrimSpace(pattern) == "" {
		return nil, zero, bridge.Errorf(bridge.KindValidation, "pattern cannot be empty.")
	}
	if _, err := path.Match(pattern, "probe"); err != nil {
		return nil, zero, bridge.Errorf(bridge.KindValidation, "invalid pattern %q.", pattern)
	}

	cli, release, err := s.clientFor(input.BaseURL)
	if err != nil {
		return nil, zero, err
	}
	defer release()

	root, err := cli.Path(input.Repository, input.Path)
	if err != nil {
		return nil, zero, bridge.Errorf(bridge.KindValidation, "%v", err)
	}
	rootStat, err := root.Stat(ctx)
	if err != nil {
		var apiErr *artifactory.APIError
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return nil, zero, bridge.Errorf(bridge.KindNotFound, "Path does not exist: %s", root)
		}
		return nil, zero, err
	}
	if !rootStat.IsDir {
		return nil, zero, bridge.Errorf(bridge.KindValidation, "Path is not a directory: %s", root)
	}

	var it *artifactory.PathIterator
	if input.Recursive {
		recursivePattern := pattern
		if recursivePattern == "*" {
			recursivePattern = "**/*"
		}
		it, err = root.Glob(ctx, recursivePattern)
	} else {
		it, err = root.Iterdir(ctx)
	}
	if err != nil {
		return nil, zero, err
	}

	includeDirectories := true
	if input.IncludeDirectories != nil {
		includeDirectories = *input.IncludeDirectories
	}

	rootRel := root.RelativePath()
	items := []artifactEntry{}
	truncated := false
	for {
		next, ok := it.Next()
		if !ok {
			break
		}
		child, ok := next.(*artifactory.Path)
		if !ok {
			continue
		}
		if !input.Recursive && pattern != "*" {
			if matched, _ := path.Match(pattern, child.Name()); !matched {
				continue
			}
		}
		if len(items) >= maxItems {
			truncated = true
			break
		}
		childStat, err := child.Stat(ctx)
		if err != nil {
			return nil, zero, err
		}
		if childStat.IsDir && !includeDirectories {
			continue
		}
		entry := artifactEntry{
			URI:   child.URI(),
			Name:  child.Name(),
			Path:  relativeTo(rootRel, child.RelativePath()),
			IsDir: childStat.IsDir,
		}
		if input.IncludeStats {
			if !childStat.IsDir {
				size := childStat.Size
				entry.Size = &size
			}
			entry.LastModified = formatStatTime(childStat.LastModified)
		}
		items = append(items, entry)
	}

	return nil, listArtifactsOutput{
		BaseURL:    cli.BaseURL(),
		Repository: root.Repository(),
		Path:       root.RelativePath(),
		Count:      len(items),
		Truncated:  truncated,
		Items:      items,
	}, nil
}

type artifactDetailsInput struct {
	Repository           string `json:"repository" jsonschema:"Repository name"`
	Path                 string `json:"path" jsonschema:"Artifact or folder path inside the repository"`
	IncludeProperties    *bool  `json:"include_properties,omitempty" jsonschema:"Attach the property map (default true)"`
	IncludeDownloadStats bool   `json:"include_download_stats,omitempty" jsonschema:"Attach download statistics; files only"`
	BaseURL              string `json:"base_url,omitempty" jsonschema:"Artifactory base URL override for this call"`
}

// artifactStatBody mirrors the storage metadata block of details results.
// Fields the server omitted are dropped rather than emitted as nulls.
type artifactStatBody struct {
	Created      *string  `json:"created,omitempty"`
	LastModified *string  `json:"last_modified,omitempty"`
	LastUpdated  *string  `json:"last_updated,omitempty"`
	CreatedBy    *string  `json:"created_by,omitempty"`
	ModifiedBy   *string  `json:"modified_by,omitempty"`
	MimeType     *string  `json:"mime_type,omitempty"`
	Size         int64    `json:"size"`
	SHA1         *string  `json:"sha1,omitempty"`
	SHA256       *string  `json:"sha256,omitempty"`
	MD5          *string  `json:"md5,omitempty"`
	IsDir        bool     `json:"is_dir"`
	Children     []string `json:"children,omitempty"`
}

type artifactDetailsOutput struct {
	BaseURL       string              `json:"base_url"`
	Repository    string              `json:"repository"`
	Path          string              `json:"path"`
	URI           string              `json:"uri"`
	IsDir         bool                `json:"is_dir"`
	Stat          artifactStatBody    `json:"stat"`
	Properties    map[string][]string `json:"properties"`
	DownloadStats map[string]any      `json:"download_stats,omitempty"`
}

func (s *server) handleArtifactDetailsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input artifactDetailsInput) (*mcpsdk.CallToolResult, artifactDetailsOutput, error) {
	var zero artifactDetailsOutput

	cli, release, err := s.clientFor(input.BaseURL)
	if err != nil {
		return nil, zero, err
	}
	defer release()

	target, err := cli.Path(input.Repository, input.Path)
	if err != nil {
		return nil, zero, bridge.Errorf(bridge.KindValidation, "%v", err)
	}
	st, err := target.Stat(ctx)
	if err != nil {
		var apiErr *artifactory.APIError
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return nil, zero, bridge.Errorf(bridge.KindNotFound, "Artifact not found: %s", target)
		}
		return nil, zero, err
	}

	out := artifactDetailsOutput{
		BaseURL:    cli.BaseURL(),
		Repository: target.Repository(),
		Path:       target.RelativePath(),
		URI:        target.URI(),
		IsDir:      st.IsDir,
		Stat:       statBody(st),
		Properties: map[string][]string{},
	}
	includeProperties := true
	if input.IncludeProperties != nil {
		includeProperties = *input.IncludeProperties
	}
	if includeProperties {
		properties, err := target.Properties(ctx)
		if err != nil {
			return nil, zero, err
		}
		out.Properties = properties
	}
	if input.IncludeDownloadStats && !st.IsDir {
		stats, err := target.DownloadStats(ctx)
		if err != nil {
			return nil, zero, err
		}
		out.DownloadStats = stats
	}
	return nil, out, nil
}

type readArtifactTextInput struct {
	Repository string `json:"repository" jsonschema:"Repository name"`
	Path       string `json:"path" jsonschema:"Artifact path inside the repository"`
	MaxBytes   int64  `json:"max_bytes,omitempty" jsonschema:"Refuse artifacts larger than this, 1-5000000 (default 200000)"`
	BaseURL    string `json:"base_url,omitempty" jsonschema:"Artifactory base URL override for this call"`
}

type readArtifactTextOutput struct {
	BaseURL    string `json:"base_url"`
	Repository string `json:"repository"`
	Path       string `json:"path"`
	URI        string `json:"uri"`
	Size       int64  `json:"size"`
	Content    string `json:"content"`
}

func (s *server) handleReadArtifactTextTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input readArtifactTextInput) (*mcpsdk.CallToolResult, readArtifactTextOutput, error) {
	var zero readArtifactTextOutput

	maxBytes := input.MaxBytes
	if maxBytes == 0 {
		maxBytes = s.cfg.ReadMaxBytes
	}
	if maxBytes < 1 || maxBytes > afmcp.MaxReadBytes {
		return nil, zero, bridge.Errorf(bridge.KindValidation, "max_bytes must be between 1 and %d.", int64(afmcp.MaxReadBytes))
	}

	cli, release, err := s.clientFor(input.BaseURL)
	if err != nil {
		return nil, zero, err
	}
	defer release()

	target, err := cli.Path(input.Repository, input.Path)
	if err != nil {
		return nil, zero, bridge.Errorf(bridge.KindValidation, "%v", err)
	}
	if target.RelativePath() == "" {
		return nil, zero, bridge.Errorf(bridge.KindValidation, "path must reference a file in the repository.")
	}

	st, err := target.Stat(ctx)
	if err != nil {
		var apiErr *artifactory.APIError
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return nil, zero, bridge.Errorf(bridge.KindNotFound, "Artifact not found: %s", target)
		}
		return nil, zero, err
	}
	if st.IsDir {
		return nil, zero, bridge.Errorf(bridge.KindValidation, "Artifact is a directory: %s", target)
	}
	if st.Size > maxBytes {
		return nil, zero, bridge.Errorf(bridge.KindValidation, "Artifact size %d exceeds max_bytes %d. Increase max_bytes to continue.", st.Size, maxBytes)
	}

	content, err := target.ReadText(ctx)
	if err != nil {
		return nil, zero, err
	}
	return nil, readArtifactTextOutput{
		BaseURL:    cli.BaseURL(),
		Repository: target.Repository(),
		Path:       target.RelativePath(),
		URI:        target.URI(),
		Size:       st.Size,
		Content:    content,
	}, nil
}

type writeArtifactTextInput struct {
	Repository    string `json:"repository" jsonschema:"Repository name"`
	Path          string `json:"path" jsonschema:"Artifact path inside the repository"`
	Content       string `json:"content" jsonschema:"Text content to deploy"`
	Overwrite     bool   `json:"overwrite,omitempty" jsonschema:"Replace an existing artifact instead of failing"`
	CreateParents *bool  `json:"create_parents,omitempty" jsonschema:"Create missing parent folders first (default true)"`
	BaseURL       string `json:"base_url,omitempty" jsonschema:"Artifactory base URL override for this call"`
}

type writeArtifactTextOutput struct {
	BaseURL      string `json:"base_url"`
	Repository   string `json:"repository"`
	Path         string `json:"path"`
	URI          string `json:"uri"`
	BytesWritten int    `json:"bytes_written"`
	Overwritten  bool   `json:"overwritten"`
}

func (s *server) handleWriteArtifactTextTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input writeArtifactTextInput) (*mcpsdk.CallToolResult, writeArtifactTextOutput, error) {
	var zero writeArtifactTextOutput

	if int64(len(input.Content)) > s.cfg.WriteMaxBytes {
		if s.cfg.WriteMaxBytes == afmcp.MaxWriteBytes {
			return nil, zero, bridge.Errorf(bridge.KindValidation, "content is too large. Maximum supported payload is 5 MB.")
		}
		return nil, zero, bridge.Errorf(bridge.KindValidation, "content is too large. Maximum supported payload is %s.", humanize.Bytes(uint64(s.cfg.WriteMaxBytes)))
	}

	cli, release, err := s.clientFor(input.BaseURL)
	if err != nil {
		return nil, zero, err
	}
	defer release()

	target, err := cli.Path(input.Repository, input.Path)
	if err != nil {
		return nil, zero, bridge.Errorf(bridge.KindValidation, "%v", err)
	}
	if target.RelativePath() == "" {
		return nil, zero, bridge.Errorf(bridge.KindValidation, "path must reference a file in the repository.")
	}

	exists, err := target.Exists(ctx)
	if err != nil {
		return nil, zero, err
	}
	if exists && !input.Overwrite {
		return nil, zero, bridge.Errorf(bridge.KindConflict, "Artifact already exists at %s. Set overwrite=true to replace it.", target)
	}

	createParents := true
	if input.CreateParents != nil {
		createParents = *input.CreateParents
	}
	if createParents {
		if err := target.Parent().Mkdir(ctx); err != nil {
			return nil, zero, err
		}
	}

	written, err := target.WriteText(ctx, input.Content)
	if err != nil {
		return nil, zero, err
	}
	return nil, writeArtifactTextOutput{
		BaseURL:      cli.BaseURL(),
		Repository:   target.Repository(),
		Path:         target.RelativePath(),
		URI:          target.URI(),
		BytesWritten: written,
		Overwritten:  exists,
	}, nil
}

// relativeTo strips the listing root from a child's repository path.
func relativeTo(base, full string) string {
	if base == "" {
		return full
	}
	return strings.TrimPrefix(full, base+"/")
}

func formatStatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.RFC3339Nano)
	return &formatted
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func statBody(st artifactory.Stat) artifactStatBody {
	return artifactStatBody{
		Created:      formatStatTime(st.Created),
		LastModified: formatStatTime(st.LastModified),
		LastUpdated:  formatStatTime(st.LastUpdated),
		CreatedBy:    optionalString(st.CreatedBy),
		ModifiedBy:   optionalString(st.ModifiedBy),
		MimeType:     optionalString(st.MimeType),
		Size:         st.Size,
		SHA1:         optionalString(st.SHA1),
		SHA256:       optionalString(st.SHA256),
		MD5:          optionalString(st.MD5),
		IsDir:        st.IsDir,
		Children:     st.Children,
	}
}
