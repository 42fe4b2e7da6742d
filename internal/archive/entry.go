package archive

import (
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
)

// utf8NameFlag is the general purpose bit declaring a UTF-8 entry name.
const utf8NameFlag = 0x800

// RawEntry is one container record before its name is decoded.
type RawEntry struct {
	NameBytes []byte
	IsDir     bool
	Size      uint64
	// DeclaredUTF8 is set when the container flags the name as UTF-8 and the
	// bytes agree.
	DeclaredUTF8 bool
	Open         func() (io.ReadCloser, error)
}

// DecodedEntry is a RawEntry whose name resolved to valid UTF-8 and passed
// path validation.
type DecodedEntry struct {
	Name       string
	IsDir      bool
	Size       uint64
	Encoding   string
	Confidence float64

	raw RawEntry
}

// EntryFailure records an entry that could not be written to staging.
type EntryFailure struct {
	Name string
	Err  error
}

func (f EntryFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Name, f.Err)
}

func (f EntryFailure) Unwrap() error { return f.Err }

// rawEntries snapshots the container directory. The returned entries are
// read-only and safe to hand to concurrent workers.
func rawEntries(files []*zip.File) []RawEntry {
	entries := make([]RawEntry, 0, len(files))
	for _, file := range files {
		entries = append(entries, RawEntry{
			NameBytes:    []byte(file.Name),
			IsDir:        file.FileInfo().IsDir() || strings.HasSuffix(file.Name, "/"),
			Size:         file.UncompressedSize64,
			DeclaredUTF8: file.Flags&utf8NameFlag != 0 && utf8.ValidString(file.Name),
			Open:         file.Open,
		})
	}
	return entries
}

// HistogramKey returns the key a staged file counts under: the text after
// the last dot of its base name, or the whole decoded name when there is no
// usable extension, so chapter1/README and chapter2/README stay apart.
func HistogramKey(name string) string {
	name = strings.TrimSuffix(name, "/")
	if ext, ok := Extension(path.Base(name)); ok {
		return ext
	}
	return name
}

// Extension returns the text after the last dot of base. A leading dot
// (".hidden") or a trailing dot ("name.") yields no extension. The result
// keeps its case.
func Extension(base string) (string, bool) {
	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 || idx == len(base)-1 {
		return "", false
	}
	return base[idx+1:], true
}
