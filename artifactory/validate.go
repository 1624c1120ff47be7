package artifactory

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var repoPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// NormalizeBaseURL validates raw as an absolute HTTP/HTTPS URL and returns it
// with trailing slashes stripped. A URL without a path component gets
// "/artifactory" appended, which is the deployment layout self-hosted
// instances expose their REST API under.
func NormalizeBaseURL(raw string) (string, error) {
	candidate := strings.TrimRight(strings.TrimSpace(raw), "/")
	parsed, err := url.Parse(candidate)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("invalid base URL %q: expected an absolute HTTP/HTTPS URL", raw)
	}
	if parsed.Path == "" || parsed.Path == "/" {
		parsed.Path = "/artifactory"
		return parsed.String(), nil
	}
	return candidate, nil
}

// ValidateRepository checks a repository name against the allowed character
// set and returns it trimmed.
func ValidateRepository(repository string) (string, error) {
	repo := strings.TrimSpace(repository)
	if repo == "" {
		return "", fmt.Errorf("repository cannot be empty")
	}
	if !repoPattern.MatchString(repo) {
		return "", fmt.Errorf("invalid repository %q: use letters, numbers, '.', '_' or '-'", repository)
	}
	return repo, nil
}

// CleanRelativePath normalizes a path inside a repository: backslashes become
// forward slashes, empty and dot-only inputs collapse to the repository root,
// and traversal segments are rejected.
func CleanRelativePath(p string) (string, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	switch cleaned {
	case "", ".", "/":
		return "", nil
	}
	parts := make([]string, 0, strings.Count(cleaned, "/")+1)
	for _, segment := range strings.Split(cleaned, "/") {
		if segment == "" || segment == "." {
			continue
		}
		if segment == ".." {
			return "", fmt.Errorf("path cannot contain '..' segments")
		}
		parts = append(parts, segment)
	}
	return strings.Join(parts, "/"), nil
}

// ValidateToken rejects blank tokens and the common copy-paste mistake of
// supplying only the header segment of a JWT instead of the full token.
func ValidateToken(token string) error {
	candidate := strings.TrimSpace(token)
	if candidate == "" {
		return fmt.Errorf("token cannot be empty")
	}
	if looksLikeJWTHeaderOnly(candidate) {
		return fmt.Errorf("token appears to be only a JWT header segment, not a full access token; use the complete token string")
	}
	return nil
}

func looksLikeJWTHeaderOnly(token string) bool {
	if strings.Contains(token, ".") {
		return false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return false
	}
	var parsed map[string]any
	if err := json.Unmarshal(decoded, &parsed); err != nil {
		return false
	}
	for _, key := range []string{"alg", "kid", "typ"} {
		if _, ok := parsed[key]; !ok {
			return false
		}
	}
	return true
}
