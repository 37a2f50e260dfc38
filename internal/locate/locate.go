// Package locate finds and reads the program artifact a session loads.
//
// A client may name the artifact directly or point at any file or directory
// inside a project. In the second case the locator walks up the parent
// directories until it finds a project manifest:
//
//	# stepd.toml
//	[program]
//	entry = "build/main.lua"
//
// and resolves the entry relative to the manifest's directory.
package locate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/samiralibabic/stepd/internal/policy"
)

const (
	DefaultManifestName = "stepd.toml"
	DefaultExtension    = ".lua"
)

var (
	ErrNoManifest = errors.New("no project manifest found")
	ErrNoEntry    = errors.New("project manifest has no program entry")
	ErrTooLarge   = errors.New("program artifact exceeds size limit")
	ErrNotRegular = errors.New("program artifact is not a regular file")
)

type Manifest struct {
	Program struct {
		Entry string `toml:"entry"`
	} `toml:"program"`
}

type Locator struct {
	Policy       *policy.Roots
	ManifestName string
	Extension    string
	MaxBytes     int64
}

func (l *Locator) manifestName() string {
	if l.ManifestName == "" {
		return DefaultManifestName
	}
	return l.ManifestName
}

func (l *Locator) extension() string {
	if l.Extension == "" {
		return DefaultExtension
	}
	return l.Extension
}

// Resolve maps a client-supplied path to the artifact to load. A path that
// does not exist is returned unchanged so that reading it reports the
// underlying error.
func (l *Locator) Resolve(path string) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return path, nil
	}
	if !st.IsDir() && strings.EqualFold(filepath.Ext(path), l.extension()) {
		return path, nil
	}

	dir := path
	if !st.IsDir() {
		dir = filepath.Dir(path)
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, l.manifestName())
		if _, err := os.Stat(candidate); err == nil {
			return l.entry(candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w above %s", ErrNoManifest, path)
		}
		dir = parent
	}
}

func (l *Locator) entry(manifestPath string) (string, error) {
	var m Manifest
	if _, err := toml.DecodeFile(manifestPath, &m); err != nil {
		return "", fmt.Errorf("read manifest %s: %w", manifestPath, err)
	}
	entry := strings.TrimSpace(m.Program.Entry)
	if entry == "" {
		return "", fmt.Errorf("%w: %s", ErrNoEntry, manifestPath)
	}
	if !filepath.IsAbs(entry) {
		entry = filepath.Join(filepath.Dir(manifestPath), entry)
	}
	return filepath.Clean(entry), nil
}

// Read checks path against the policy and reads at most MaxBytes of it.
func (l *Locator) Read(path string) ([]byte, error) {
	abs, err := l.Policy.Check(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}
	if l.MaxBytes > 0 && st.Size() > l.MaxBytes {
		return nil, fmt.Errorf("%s: %w (%d > %d bytes)", path, ErrTooLarge, st.Size(), l.MaxBytes)
	}
	var r io.Reader = f
	if l.MaxBytes > 0 {
		r = io.LimitReader(f, l.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if l.MaxBytes > 0 && int64(len(data)) > l.MaxBytes {
		return nil, fmt.Errorf("%s: %w", path, ErrTooLarge)
	}
	return data, nil
}
