// Package sandbox confines model-supplied paths to the working root.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathEscapeError reports a path that resolves outside the working root.
type PathEscapeError struct {
	Path string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("path %q escapes the working root", e.Path)
}

// Resolver maps requested paths to absolute paths inside the working
// root. The root is absolutized and symlink-resolved once at
// construction and fixed for the process lifetime.
type Resolver struct {
	root string
}

// New creates a Resolver for root, which must be an existing directory.
func New(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to absolutize working root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("working root not accessible: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("working root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("working root %s is not a directory", root)
	}
	return &Resolver{root: resolved}, nil
}

// Root returns the resolved working root.
func (r *Resolver) Root() string {
	return r.root
}

// contains reports whether path is the root or a descendant of it.
// The comparison is component-wise: a sibling directory sharing the
// root's name as a prefix does not pass.
func (r *Resolver) contains(path string) bool {
	if path == r.root {
		return true
	}
	return strings.HasPrefix(path, r.root+string(os.PathSeparator))
}

// Resolve maps a requested path to an absolute path guaranteed to lie
// inside the working root. Relative paths are joined to the root;
// absolute paths are accepted only when they already lie inside it.
// Symlinks are resolved before the containment check so a link inside
// the root cannot reach outside it. Resolution happens before any I/O:
// a failure here means no partial operation was attempted.
func (r *Resolver) Resolve(requested string) (string, error) {
	if strings.TrimSpace(requested) == "" {
		return "", &PathEscapeError{Path: requested}
	}

	var candidate string
	if filepath.IsAbs(requested) {
		candidate = filepath.Clean(requested)
	} else {
		candidate = filepath.Join(r.root, requested)
	}

	if !r.contains(candidate) {
		return "", &PathEscapeError{Path: requested}
	}

	resolved, err := resolveSymlinks(candidate)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", requested, err)
	}
	if !r.contains(resolved) {
		return "", &PathEscapeError{Path: requested}
	}
	return resolved, nil
}

// resolveSymlinks resolves the deepest existing ancestor of path and
// reattaches the non-existing remainder, so paths about to be created
// are still checked through any linked ancestors. A symlink whose
// target cannot be resolved is rejected outright.
func resolveSymlinks(path string) (string, error) {
	var suffix []string
	cur := path
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(suffix) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, suffix[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		if fi, lerr := os.Lstat(cur); lerr == nil && fi.Mode()&os.ModeSymlink != 0 {
			return "", fmt.Errorf("broken symbolic link at %s", cur)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		suffix = append(suffix, filepath.Base(cur))
		cur = parent
	}
}
