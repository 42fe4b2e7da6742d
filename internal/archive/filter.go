package archive

import (
	"path"
	"strings"
)

// Filter decides whether a staged path belongs in the rebuilt archive.
// rel is slash-separated and relative to the staging root. Returning false
// for a directory drops the directory and everything below it.
type Filter interface {
	Include(rel string, isDir bool) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(rel string, isDir bool) bool

// Include calls f.
func (f FilterFunc) Include(rel string, isDir bool) bool { return f(rel, isDir) }

// IncludeAll keeps every path.
var IncludeAll Filter = FilterFunc(func(string, bool) bool { return true })

// All keeps a path only when every filter keeps it. Nil filters are ignored.
func All(filters ...Filter) Filter {
	return FilterFunc(func(rel string, isDir bool) bool {
		for _, f := range filters {
			if f != nil && !f.Include(rel, isDir) {
				return false
			}
		}
		return true
	})
}

// FilterRules configures DefaultFilter.
type FilterRules struct {
	// ArtifactMarkers exclude directories whose relative path contains one,
	// such as "__MACOSX".
	ArtifactMarkers []string
	// TrashExtensions exclude files whose extension matches exactly.
	TrashExtensions []string
}

// DefaultFilter drops artifact directories and trash files.
func DefaultFilter(rules FilterRules) Filter {
	markers := make([]string, 0, len(rules.ArtifactMarkers))
	for _, marker := range rules.ArtifactMarkers {
		if marker != "" {
			markers = append(markers, marker)
		}
	}
	trash := make(map[string]struct{}, len(rules.TrashExtensions))
	for _, ext := range rules.TrashExtensions {
		trash[ext] = struct{}{}
	}

	return FilterFunc(func(rel string, isDir bool) bool {
		if isDir {
			for _, marker := range markers {
				if strings.Contains(rel, marker) {
					return false
				}
			}
			return true
		}
		if ext, ok := Extension(path.Base(rel)); ok {
			if _, drop := trash[ext]; drop {
				return false
			}
		}
		return true
	})
}
