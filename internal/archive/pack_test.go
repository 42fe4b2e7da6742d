package archive_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"rezip/internal/archive"
	"rezip/internal/faults"
	"rezip/internal/testsupport"
)

var defaultRules = archive.FilterRules{
	ArtifactMarkers: []string{"__MACOSX"},
	TrashExtensions: []string{"url", "db", "txt", "html", "torrent", "part"},
}

func TestPackDefaultFilterScenario(t *testing.T) {
	dir := t.TempDir()
	staging := filepath.Join(dir, "staging")
	testsupport.WriteFile(t, filepath.Join(staging, "notes.txt"), 4)
	testsupport.WriteFile(t, filepath.Join(staging, "cover.jpg"), 16)
	testsupport.WriteFile(t, filepath.Join(staging, "__MACOSX", "._cover.jpg"), 8)

	dst := filepath.Join(dir, "out.zip")
	stats, err := archive.NewPacker(nil).Pack(context.Background(), staging, dst, archive.DefaultFilter(defaultRules))
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if names := testsupport.ZipNames(t, dst); !slices.Equal(names, []string{"cover.jpg"}) {
		t.Fatalf("expected only cover.jpg, got %v", names)
	}
	if stats.Files != 1 || stats.Excluded != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestPackPrunesNestedArtifactDirectories(t *testing.T) {
	dir := t.TempDir()
	staging := filepath.Join(dir, "staging")
	testsupport.WriteFile(t, filepath.Join(staging, "vol1", "p1.jpg"), 4)
	testsupport.WriteFile(t, filepath.Join(staging, "vol1", "__MACOSX", "deep", "x.jpg"), 4)
	testsupport.WriteFile(t, filepath.Join(staging, "vol1", "Thumbs.db"), 4)
	testsupport.WriteFile(t, filepath.Join(staging, "vol1", "README.TXT"), 4)

	dst := filepath.Join(dir, "out.zip")
	if _, err := archive.NewPacker(nil).Pack(context.Background(), staging, dst, archive.DefaultFilter(defaultRules)); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	// Trash matching is literal, so the upper-case TXT survives.
	want := []string{"vol1/", "vol1/README.TXT", "vol1/p1.jpg"}
	if names := testsupport.ZipNames(t, dst); !slices.Equal(names, want) {
		t.Fatalf("got %v, want %v", names, want)
	}
}

func TestPackDestinationExists(t *testing.T) {
	dir := t.TempDir()
	staging := filepath.Join(dir, "staging")
	testsupport.WriteFile(t, filepath.Join(staging, "cover.jpg"), 16)

	dst := filepath.Join(dir, "out", "book.zip")
	packer := archive.NewPacker(nil)
	if _, err := packer.Pack(context.Background(), staging, dst, nil); err != nil {
		t.Fatalf("first Pack: %v", err)
	}
	before, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	infoBefore, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}

	testsupport.WriteFile(t, filepath.Join(staging, "extra.jpg"), 32)
	_, err = packer.Pack(context.Background(), staging, dst, nil)
	if !errors.Is(err, faults.ErrDestinationExists) {
		t.Fatalf("expected ErrDestinationExists, got %v", err)
	}

	after, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	infoAfter, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) || !infoBefore.ModTime().Equal(infoAfter.ModTime()) {
		t.Fatal("second pack must not modify the existing destination")
	}
}

func TestPackSourceNotFound(t *testing.T) {
	dir := t.TempDir()
	packer := archive.NewPacker(nil)

	_, err := packer.Pack(context.Background(), filepath.Join(dir, "missing"), filepath.Join(dir, "out.zip"), nil)
	if !errors.Is(err, faults.ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound for missing dir, got %v", err)
	}

	file := filepath.Join(dir, "file")
	testsupport.WriteFile(t, file, 1)
	_, err = packer.Pack(context.Background(), file, filepath.Join(dir, "out.zip"), nil)
	if !errors.Is(err, faults.ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound for a regular file, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.zip")); !os.IsNotExist(err) {
		t.Fatal("no destination may be created on precondition failure")
	}
}

func TestPackSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	staging := filepath.Join(dir, "staging")
	testsupport.WriteFile(t, filepath.Join(staging, "page.jpg"), 4)
	if err := os.Symlink("/etc/hostname", filepath.Join(staging, "link.jpg")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	dst := filepath.Join(dir, "out.zip")
	stats, err := archive.NewPacker(nil).Pack(context.Background(), staging, dst, nil)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if names := testsupport.ZipNames(t, dst); !slices.Equal(names, []string{"page.jpg"}) {
		t.Fatalf("expected symlink skipped, got %v", names)
	}
	if stats.Skipped != 1 {
		t.Fatalf("expected one skipped path, got %+v", stats)
	}
}

func TestFilterComposition(t *testing.T) {
	noJPG := archive.FilterFunc(func(rel string, isDir bool) bool {
		return isDir || filepath.Ext(rel) != ".jpg"
	})
	combined := archive.All(archive.DefaultFilter(defaultRules), nil, noJPG)

	cases := []struct {
		rel   string
		isDir bool
		want  bool
	}{
		{"cover.png", false, true},
		{"cover.jpg", false, false},
		{"notes.txt", false, false},
		{"notes.TXT", false, true},
		{"__MACOSX", true, false},
		{"vol/__MACOSX_old", true, false},
		{"vol", true, true},
		{"link.url", false, false},
		{"txt", false, true},
	}
	for _, tc := range cases {
		if got := combined.Include(tc.rel, tc.isDir); got != tc.want {
			t.Errorf("Include(%q, %v) = %v, want %v", tc.rel, tc.isDir, got, tc.want)
		}
	}
	if !archive.IncludeAll.Include("anything", false) {
		t.Fatal("IncludeAll must keep every path")
	}
}
