// Package staging owns the per-archive scratch directories the pipeline
// extracts into, plus maintenance helpers for directories left behind by
// interrupted runs.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DirPrefix marks directories created by New so maintenance only touches them.
const DirPrefix = "rezip-"

// Area is a scratch directory exclusively owned by one pipeline run.
type Area struct {
	Path string

	once sync.Once
	err  error
}

// New creates a fresh, uniquely named staging directory below baseDir.
// source names the archive being processed and only affects the directory
// name, which helps when inspecting leftovers.
func New(baseDir, source string) (*Area, error) {
	if strings.TrimSpace(baseDir) == "" {
		baseDir = os.TempDir()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging base %s: %w", baseDir, err)
	}
	path, err := os.MkdirTemp(baseDir, DirPrefix+dirLabel(source)+"-*")
	if err != nil {
		return nil, fmt.Errorf("create staging area: %w", err)
	}
	return &Area{Path: path}, nil
}

// Release removes the staging directory and everything in it. Calling it
// more than once is safe; later calls return the first result.
func (a *Area) Release() error {
	if a == nil {
		return nil
	}
	a.once.Do(func() {
		if err := os.RemoveAll(a.Path); err != nil {
			a.err = fmt.Errorf("release staging %s: %w", a.Path, err)
		}
	})
	return a.err
}

func dirLabel(source string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= 32 {
			break
		}
	}
	if b.Len() == 0 || source == "" {
		return "archive"
	}
	return b.String()
}
