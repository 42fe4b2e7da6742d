package pipeline_test

import (
	"path/filepath"
	"slices"
	"testing"

	"rezip/internal/pipeline"
	"rezip/internal/testsupport"
)

func TestScan(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.zip", "b.ZIP", "notes.txt", "sub/c.zip", "out/d.zip", "sub/.zip"} {
		testsupport.WriteFile(t, filepath.Join(root, name), 1)
	}

	got, err := pipeline.Scan(root, filepath.Join(root, "out"), "")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{
		filepath.Join(root, "a.zip"),
		filepath.Join(root, "sub", ".zip"),
		filepath.Join(root, "sub", "c.zip"),
	}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestScanMissingRoot(t *testing.T) {
	if _, err := pipeline.Scan(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestDigestLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	testsupport.WriteFile(t, path, 1)
	digest, err := pipeline.Digest(path)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if len(digest) != 64 {
		t.Fatalf("unexpected digest %q", digest)
	}
}
