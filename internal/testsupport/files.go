package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ZipEntry describes one record written by WriteZip. Name is used byte for
// byte, so legacy-charset names can be expressed as Go string literals with
// escapes ("\x95\x5c..."). Names ending in "/" become directory records.
type ZipEntry struct {
	Name string
	Body []byte
	// Method defaults to zip.Store.
	Method uint16
}

// WriteZip builds a zip file at path from entries in the given order.
// Non-UTF-8 names are written without the UTF-8 flag, matching archives
// produced by legacy tools.
func WriteZip(t testing.TB, path string, entries []ZipEntry) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, entry := range entries {
		header := &zip.FileHeader{
			Name:    entry.Name,
			Method:  entry.Method,
			NonUTF8: true,
		}
		if header.Method == 0 {
			header.Method = zip.Store
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			t.Fatalf("create zip entry %q: %v", entry.Name, err)
		}
		if len(entry.Body) > 0 {
			if _, err := w.Write(entry.Body); err != nil {
				t.Fatalf("write zip entry %q: %v", entry.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
}

// ZipRecord is one entry as read back by ReadZip.
type ZipRecord struct {
	Name   string
	Body   []byte
	Method uint16
	Mode   os.FileMode
	IsDir  bool
}

// ReadZip returns every record of the archive at path keyed by name.
func ReadZip(t testing.TB, path string) map[string]ZipRecord {
	t.Helper()

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip %s: %v", path, err)
	}
	defer zr.Close()

	records := make(map[string]ZipRecord, len(zr.File))
	for _, file := range zr.File {
		record := ZipRecord{
			Name:   file.Name,
			Method: file.Method,
			Mode:   file.Mode(),
			IsDir:  file.FileInfo().IsDir(),
		}
		if !record.IsDir {
			rc, err := file.Open()
			if err != nil {
				t.Fatalf("open zip entry %q: %v", file.Name, err)
			}
			record.Body, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				t.Fatalf("read zip entry %q: %v", file.Name, err)
			}
		}
		records[file.Name] = record
	}
	return records
}

// ZipNames returns the sorted entry names of the archive at path.
func ZipNames(t testing.TB, path string) []string {
	t.Helper()

	records := ReadZip(t, path)
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PNGBytes returns a small encoded PNG image.
func PNGBytes(t testing.TB) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
