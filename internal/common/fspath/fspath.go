// Package fspath turns client-supplied slash-separated paths into absolute
// paths that are guaranteed to stay inside the gallery root. Every folder or
// file name that reaches the filesystem goes through a Resolver.
package fspath

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"capturesque/internal/common"

	"github.com/gosimple/unidecode"
)

// SanitizeSegment reduces one path segment to a safe filename token:
// transliterated to ASCII, whitespace collapsed to "_", everything outside
// [A-Za-z0-9_.-] dropped, and leading or trailing dots and underscores
// trimmed. The result never contains a separator and is never "." or "..".
// SanitizeSegment(SanitizeSegment(s)) == SanitizeSegment(s).
func SanitizeSegment(s string) string {
	s = unidecode.Unidecode(s)
	s = strings.NewReplacer("/", " ", "\\", " ").Replace(s)
	s = strings.Join(strings.Fields(s), "_")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

// Resolver confines paths to one root and knows the allowed file extensions.
type Resolver struct {
	root string
	exts map[string]struct{}
}

// NewResolver expects root to be absolute; exts are matched
// case-insensitively, with or without a leading dot.
func NewResolver(root string, exts []string) *Resolver {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return &Resolver{root: filepath.Clean(root), exts: set}
}

// Resolve maps rawPath onto the root. Empty segments ("a//b", trailing "/")
// are dropped; a segment that sanitizes to nothing ("..", ".", "%%") makes
// the whole path invalid, as does an absolute or drive-letter prefix.
// Resolve never touches the filesystem.
func (r *Resolver) Resolve(rawPath string) (string, error) {
	if strings.ContainsRune(rawPath, 0) {
		return "", fmt.Errorf("%w: NUL byte in path", common.ErrInvalidPath)
	}
	if isAbsolute(rawPath) {
		return "", fmt.Errorf("%w: absolute path %q", common.ErrInvalidPath, rawPath)
	}

	parts := []string{r.root}
	for _, seg := range strings.Split(rawPath, "/") {
		if seg == "" {
			continue
		}
		clean := SanitizeSegment(seg)
		if clean == "" {
			return "", fmt.Errorf("%w: illegal segment %q", common.ErrInvalidPath, seg)
		}
		parts = append(parts, clean)
	}
	return r.contain(filepath.Join(parts...))
}

// ResolveFile resolves the folder and appends a sanitized file name, which
// must carry an allowed extension.
func (r *Resolver) ResolveFile(folder, name string) (string, string, error) {
	dir, err := r.Resolve(folder)
	if err != nil {
		return "", "", err
	}
	clean := SanitizeSegment(name)
	if clean == "" {
		return "", "", fmt.Errorf("%w: illegal file name %q", common.ErrInvalidPath, name)
	}
	if !r.Allowed(clean) {
		return "", "", fmt.Errorf("%w: extension of %q is not allowed", common.ErrInvalidInput, clean)
	}
	abs, err := r.contain(filepath.Join(dir, clean))
	if err != nil {
		return "", "", err
	}
	return abs, clean, nil
}

// Child joins one sanitized name onto an already resolved directory.
func (r *Resolver) Child(dir, name string) (string, string, error) {
	clean := SanitizeSegment(name)
	if clean == "" {
		return "", "", fmt.Errorf("%w: illegal name %q", common.ErrInvalidPath, name)
	}
	abs, err := r.contain(filepath.Join(dir, clean))
	if err != nil {
		return "", "", err
	}
	return abs, clean, nil
}

// Allowed reports whether name ends in an allow-listed extension.
func (r *Resolver) Allowed(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		return false
	}
	_, ok := r.exts[ext]
	return ok
}

// Rel returns abs relative to the root in slash form ("" for the root).
func (r *Resolver) Rel(abs string) (string, error) {
	if _, err := r.contain(abs); err != nil {
		return "", err
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidPath, err)
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// IsRoot reports whether abs is the gallery root itself.
func (r *Resolver) IsRoot(abs string) bool {
	return filepath.Clean(abs) == r.root
}

func (r *Resolver) contain(p string) (string, error) {
	p = filepath.Clean(p)
	prefix := r.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if p == r.root || strings.HasPrefix(p, prefix) {
		return p, nil
	}
	return "", fmt.Errorf("%w: outside root", common.ErrInvalidPath)
}

func isAbsolute(p string) bool {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return true
	}
	if len(p) >= 2 && p[1] == ':' {
		c := p[0]
		return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	}
	return filepath.IsAbs(p)
}
