// Package policy confines program loading to configured directory trees.
package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrForbiddenPath = errors.New("path is outside allowed roots")

// Roots is the set of directory trees programs may be loaded from. An empty
// set, or a nil *Roots, allows every path.
type Roots struct {
	dirs []string
}

func New(dirs []string) (*Roots, error) {
	r := &Roots{}
	for _, d := range dirs {
		if strings.TrimSpace(d) == "" {
			continue
		}
		c, err := canonical(d)
		if err != nil {
			return nil, fmt.Errorf("allowed root %q: %w", d, err)
		}
		r.dirs = append(r.dirs, c)
	}
	return r, nil
}

func (r *Roots) Dirs() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.dirs...)
}

// Check returns the canonical form of path if it lies inside one of the
// roots. Relative paths are taken from the working directory. Symlinks are
// resolved first, so a link inside a root cannot point a session outside it.
func (r *Roots) Check(path string) (string, error) {
	c, err := canonical(path)
	if err != nil {
		return "", err
	}
	if !r.contains(c) {
		return "", fmt.Errorf("%w: %s", ErrForbiddenPath, path)
	}
	return c, nil
}

func (r *Roots) contains(path string) bool {
	if r == nil || len(r.dirs) == 0 {
		return true
	}
	for _, dir := range r.dirs {
		rel, err := filepath.Rel(dir, path)
		if err != nil || filepath.IsAbs(rel) {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// canonical makes p absolute and resolves symlinks. A missing final element
// is allowed so that the caller's open reports it.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	dir, base := filepath.Split(abs)
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return filepath.Join(resolved, base), nil
	}
	return filepath.Clean(abs), nil
}
