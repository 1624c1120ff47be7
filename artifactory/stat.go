package artifactory

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Stat holds storage metadata for an artifact or folder. Timestamp pointers
// are nil when the server omits the field; Size is zero for folders.
type Stat struct {
	Repository   string
	Path         string
	Created      *time.Time
	CreatedBy    string
	LastModified *time.Time
	ModifiedBy   string
	LastUpdated  *time.Time
	DownloadURI  string
	MimeType     string
	Size         int64
	SHA1         string
	SHA256       string
	MD5          string
	IsDir        bool
	Children     []string
}

// storageInfo is the wire shape of the storage metadata endpoint. Size is
// decoded loosely: the API historically returns it as a JSON string.
type storageInfo struct {
	Repo         string `json:"repo"`
	Path         string `json:"path"`
	Created      string `json:"created"`
	CreatedBy    string `json:"createdBy"`
	LastModified string `json:"lastModified"`
	ModifiedBy   string `json:"modifiedBy"`
	LastUpdated  string `json:"lastUpdated"`
	DownloadURI  string `json:"downloadUri"`
	MimeType     string `json:"mimeType"`
	Size         any    `json:"size"`
	Checksums    struct {
		SHA1   string `json:"sha1"`
		MD5    string `json:"md5"`
		SHA256 string `json:"sha256"`
	} `json:"checksums"`
	Children []struct {
		URI    string `json:"uri"`
		Folder bool   `json:"folder"`
	} `json:"children"`
}

func (info storageInfo) toStat() (Stat, error) {
	stat := Stat{
		Repository:   info.Repo,
		Path:         strings.TrimPrefix(info.Path, "/"),
		CreatedBy:    info.CreatedBy,
		ModifiedBy:   info.ModifiedBy,
		DownloadURI:  info.DownloadURI,
		MimeType:     info.MimeType,
		SHA1:         info.Checksums.SHA1,
		SHA256:       info.Checksums.SHA256,
		MD5:          info.Checksums.MD5,
		Created:      parseAPITime(info.Created),
		LastModified: parseAPITime(info.LastModified),
		LastUpdated:  parseAPITime(info.LastUpdated),
	}
	if info.Size != nil {
		if size, err := cast.ToInt64E(info.Size); err == nil {
			stat.Size = size
		}
	}
	stat.IsDir = info.Children != nil || (info.DownloadURI == "" && info.MimeType == "")
	if len(info.Children) > 0 {
		stat.Children = make([]string, 0, len(info.Children))
		for _, child := range info.Children {
			name := strings.Trim(child.URI, "/")
			if name != "" {
				stat.Children = append(stat.Children, name)
			}
		}
	}
	return stat, nil
}

// parseAPITime decodes the ISO-8601 timestamps the storage API emits
// ("2024-01-05T10:10:12.000+02:00"). Unparseable or absent values yield nil.
func parseAPITime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil
	}
	return &parsed
}
