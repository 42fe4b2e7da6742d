package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rezip/internal/runlock"
	"rezip/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryCreatable(t *testing.T) {
	base := t.TempDir()
	missing := filepath.Join(base, "a", "b")
	result := CheckDirectoryCreatable("out", missing)
	if !result.Passed || !strings.Contains(result.Detail, "will be created") {
		t.Fatalf("expected creatable pass, got %+v", result)
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Fatal("check must not create the directory")
	}

	file := filepath.Join(base, "plain")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckDirectoryCreatable("out", filepath.Join(file, "child")); r.Passed {
		t.Fatalf("expected failure beneath a file, got %+v", r)
	}
	if r := CheckDirectoryCreatable("out", " "); r.Passed {
		t.Fatal("expected failure for empty path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if r := CheckFreeSpace("space", dir, 1); !r.Passed {
		t.Fatalf("expected pass, got %+v", r)
	}
	if r := CheckFreeSpace("space", dir, 1<<62); r.Passed {
		t.Fatalf("expected failure for absurd threshold, got %+v", r)
	}
}

func TestCheckCharset(t *testing.T) {
	if r := CheckCharset("charset", "Shift_JIS"); !r.Passed {
		t.Fatalf("expected Shift_JIS to pass, got %+v", r)
	}
	if r := CheckCharset("charset", "x-no-such-charset"); r.Passed {
		t.Fatal("expected unknown charset to fail")
	}
}

func TestCheckRunLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".rezip.lock")
	if r := CheckRunLock("lock", path); !r.Passed {
		t.Fatalf("expected free lock, got %+v", r)
	}
	lock, err := runlock.Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()
	if r := CheckRunLock("lock", path); r.Passed {
		t.Fatal("expected held lock to fail")
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(context.Background(), cfg)
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	for _, r := range results {
		if r.Name == "Staging free space" {
			continue
		}
		if !r.Passed {
			t.Fatalf("check %s failed: %s", r.Name, r.Detail)
		}
	}

	cfg.Rezip.FallbackEncoding = "x-no-such-charset"
	failed := Failed(RunAll(context.Background(), cfg))
	found := false
	for _, r := range failed {
		if r.Name == "Fallback charset" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fallback charset failure, got %+v", failed)
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if RunAll(context.Background(), nil) != nil {
		t.Fatal("expected nil results")
	}
}
