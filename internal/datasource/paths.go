package datasource

import (
	"os"
	"path/filepath"
	"strings"

	"qwery/internal/apperr"
)

// sandbox confines sqlite datasource files to a root directory and keeps
// protected files (the metadata store) out of reach.
type sandbox struct {
	root      string
	realRoot  string
	protected []string
}

func newSandbox(root string, protected []string) sandbox {
	var sb sandbox
	if strings.TrimSpace(root) != "" {
		if abs, err := filepath.Abs(root); err == nil {
			sb.root = filepath.Clean(abs)
			sb.realRoot = realPath(sb.root)
		}
	}
	for _, p := range protected {
		if strings.TrimSpace(p) == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		abs = filepath.Clean(abs)
		sb.protected = append(sb.protected, abs)
		if real := realPath(abs); real != abs {
			sb.protected = append(sb.protected, real)
		}
	}
	return sb
}

// resolve maps a user supplied path onto an absolute file under the root.
// Relative paths are taken relative to the root.
func (sb sandbox) resolve(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if sb.root == "" {
		return "", apperr.BadRequest("sqlite datasources are disabled")
	}
	if raw == "" {
		return "", apperr.BadRequest("sqlite datasource needs a path")
	}
	if strings.HasPrefix(strings.ToLower(raw), "file:") || strings.ContainsAny(raw, "?#%\x00") || strings.HasPrefix(raw, ":") {
		return "", apperr.BadRequest("sqlite path must be a plain file path")
	}

	candidate := raw
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(sb.root, candidate)
	}
	candidate = filepath.Clean(candidate)
	if !within(sb.root, candidate) {
		return "", apperr.BadRequest("sqlite path must be inside the datasource root")
	}

	real := realPath(candidate)
	if !within(sb.realRoot, real) {
		return "", apperr.BadRequest("sqlite path must be inside the datasource root")
	}
	for _, p := range sb.protected {
		for _, c := range []string{candidate, real} {
			if c == p || strings.HasPrefix(c, p+"-") {
				return "", apperr.BadRequest("sqlite path is not allowed")
			}
		}
	}
	return candidate, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// realPath follows symlinks for the longest existing prefix of path.
func realPath(path string) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}
	dir, base := filepath.Split(path)
	dir = filepath.Clean(dir)
	if dir == path {
		return path
	}
	return filepath.Join(realPath(dir), base)
}
