// Package pathutil expands shell-style tokens in user-supplied file paths.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandUserAndEnv expands environment variable tokens ($HOME, ${HOME}) and a
// leading "~/" or "~\" to the current user's home directory. The result is
// not forced to absolute form; relative-path handling stays with the caller.
func ExpandUserAndEnv(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", nil
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		switch {
		case len(p) == 1:
			p = home
		case p[1] == '/' || p[1] == '\\':
			p = filepath.Join(home, p[2:])
		}
	}
	return p, nil
}
