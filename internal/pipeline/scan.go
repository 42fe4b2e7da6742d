package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ArchiveSuffix selects source archives. Matching is case-sensitive.
const ArchiveSuffix = ".zip"

// Scan returns the regular files below root whose names end in
// ArchiveSuffix, in lexical walk order. Directories listed in skip (such as
// the output and staging directories) are not descended into.
func Scan(root string, skip ...string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	pruned := make(map[string]struct{}, len(skip))
	for _, dir := range skip {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			pruned[abs] = struct{}{}
		}
	}

	var sources []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if _, ok := pruned[path]; ok && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), ArchiveSuffix) {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return sources, nil
}
