// Package security holds path and name checks for user-supplied file names.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideDir reports a path that resolves outside every allowed directory.
var ErrOutsideDir = errors.New("path outside allowed directories")

// maxNameLen bounds SafeName output.
const maxNameLen = 128

// resolve returns the canonical absolute form of path. For paths that do not
// exist yet, the deepest existing ancestor is resolved and the rest appended.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(real, rest), nil
		}
		if filepath.Dir(dir) == dir {
			return abs, nil
		}
	}
}

// WithinDir checks that path, after symlink resolution, stays inside dir.
func WithinDir(path, dir string) error {
	p, err := resolve(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	d, err := resolve(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	rel, err := filepath.Rel(d, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%s escapes %s: %w", path, dir, ErrOutsideDir)
	}
	return nil
}

// WithinAnyDir checks path against each of dirs in turn.
func WithinAnyDir(path string, dirs ...string) error {
	for _, d := range dirs {
		if WithinDir(path, d) == nil {
			return nil
		}
	}
	return fmt.Errorf("%s not under %v: %w", path, dirs, ErrOutsideDir)
}

// ValidateOutputPath accepts paths under the working directory or the
// system temp directory.
func ValidateOutputPath(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	return WithinAnyDir(path, cwd, os.TempDir())
}

// SafeName reduces an uploaded file name to its base name with runs of
// characters outside [A-Za-z0-9._-] collapsed to one underscore.
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	under := false
	for _, r := range name {
		if b.Len() >= maxNameLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			under = false
		case !under:
			b.WriteByte('_')
			under = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "recording"
	}
	return out
}
