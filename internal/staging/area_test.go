package staging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewCreatesUniqueAreas(t *testing.T) {
	base := t.TempDir()
	first, err := New(base, "/in/vol1.zip")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	second, err := New(base, "/in/vol1.zip")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if first.Path == second.Path {
		t.Fatal("expected distinct staging paths for the same source")
	}
	if filepath.Dir(first.Path) != base {
		t.Fatalf("area %q not under %q", first.Path, base)
	}
	if !strings.HasPrefix(filepath.Base(first.Path), DirPrefix+"vol1-") {
		t.Fatalf("unexpected area name %q", filepath.Base(first.Path))
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	area, err := New(t.TempDir(), "漫画.zip")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(area.Path, "a", "b"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := area.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := area.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if _, err := os.Stat(area.Path); !os.IsNotExist(err) {
		t.Fatalf("expected area removed, stat err=%v", err)
	}
	var nilArea *Area
	if err := nilArea.Release(); err != nil {
		t.Fatalf("nil Release: %v", err)
	}
}

func TestDirLabel(t *testing.T) {
	cases := map[string]string{
		"/in/vol 1.zip": "vol_1",
		"":              "archive",
		"/in/abc-_.zip": "abc-_",
	}
	for in, want := range cases {
		if got := dirLabel(in); got != want {
			t.Errorf("dirLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
