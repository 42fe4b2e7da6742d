// Package pathsafe rejects decoded archive entry names that could escape the
// staging directory once joined to it.
package pathsafe

import (
	"strings"

	"rezip/internal/faults"
)

// Validate returns a faults.ErrPathTraversal error when name contains a
// backslash, starts with "/" or a drive letter prefix such as "C:", or has a
// "/"-separated segment equal to "..". It must run before name is joined to
// any filesystem path. No other normalization is applied.
func Validate(name string) error {
	if reason := rejectReason(name); reason != "" {
		return faults.Wrap(faults.ErrPathTraversal, "validate", reason, quote(name), nil)
	}
	return nil
}

func rejectReason(name string) string {
	switch {
	case strings.ContainsRune(name, '\\'):
		return "backslash in name"
	case strings.HasPrefix(name, "/"):
		return "absolute path"
	case hasDrivePrefix(name):
		return "drive letter prefix"
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == ".." {
			return "parent segment"
		}
	}
	return ""
}

func hasDrivePrefix(name string) bool {
	if len(name) < 2 || name[1] != ':' {
		return false
	}
	c := name[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func quote(name string) string {
	return "\"" + name + "\""
}
