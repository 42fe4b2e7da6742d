package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"rezip/internal/charset"
	"rezip/internal/config"
	"rezip/internal/faults"
	"rezip/internal/pipeline"
	"rezip/internal/staging"
	"rezip/internal/testsupport"
)

// 表紙.png in Shift_JIS.
const sjisCover = "\x95\x5c\x8e\x86\x2e\x70\x6e\x67"

var sjisDetector = charset.DetectorFunc(func(raw []byte) (string, float64) {
	for _, b := range raw {
		if b >= 0x80 {
			return "Shift_JIS", 0.9
		}
	}
	return charset.LabelASCII, 1
})

func newPipeline(t *testing.T, cfg *config.Config) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(cfg, pipeline.WithDetector(sjisDetector))
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return p
}

func writeBook(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	src := filepath.Join(testsupport.BaseDir(cfg), "src", name)
	testsupport.WriteZip(t, src, []testsupport.ZipEntry{
		{Name: sjisCover, Body: testsupport.PNGBytes(t)},
		{Name: "page01.jpg", Body: []byte("jpeg bytes")},
		{Name: "notes.txt", Body: []byte("ad")},
		{Name: "__MACOSX/._page01.jpg", Body: []byte("fork")},
	})
	return src
}

func assertStagingEmpty(t *testing.T, cfg *config.Config) {
	t.Helper()
	dirs, err := staging.ListDirectories(cfg.Paths.StagingDir)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 0 {
		t.Fatalf("expected staging to be released, found %+v", dirs)
	}
}

func TestProcessRebuildsArchive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := writeBook(t, cfg, "book.zip")

	result, err := newPipeline(t, cfg).Process(context.Background(), src)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	wantDest := filepath.Join(cfg.Paths.OutputDir, "book.zip")
	if result.DestinationPath != wantDest {
		t.Fatalf("destination = %q, want %q", result.DestinationPath, wantDest)
	}
	records := testsupport.ReadZip(t, wantDest)
	names := testsupport.ZipNames(t, wantDest)
	if want := []string{"page01.jpg", "表紙.jpg"}; !slices.Equal(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for name, rec := range records {
		if rec.Method != 0 {
			t.Fatalf("%s: expected Store method, got %d", name, rec.Method)
		}
		if rec.Mode.Perm() != 0o644 {
			t.Fatalf("%s: expected mode 0644, got %v", name, rec.Mode)
		}
	}
	if string(records["page01.jpg"].Body) != "jpeg bytes" {
		t.Fatalf("page01.jpg body changed: %q", records["page01.jpg"].Body)
	}

	if result.Histogram["png"] != 1 || result.Histogram["jpg"] != 2 || result.Histogram["txt"] != 1 {
		t.Fatalf("unexpected histogram %v", result.Histogram)
	}
	if result.Converted != 1 || result.ConvertFailed != 0 {
		t.Fatalf("unexpected transform counts %d/%d", result.Converted, result.ConvertFailed)
	}
	if result.Encodings["Shift_JIS"] != 1 && result.Encodings["shift_jis"] != 1 {
		t.Fatalf("expected one Shift_JIS name, got %v", result.Encodings)
	}
	if len(result.Digest) != 64 {
		t.Fatalf("expected hex digest, got %q", result.Digest)
	}
	digest, err := pipeline.Digest(wantDest)
	if err != nil || digest != result.Digest {
		t.Fatalf("digest mismatch: %q vs %q (%v)", digest, result.Digest, err)
	}
	assertStagingEmpty(t, cfg)
}

func TestProcessDestinationExists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := writeBook(t, cfg, "book.zip")
	p := newPipeline(t, cfg)

	if _, err := p.Process(context.Background(), src); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	before, err := os.ReadFile(cfg.DestinationFor(src))
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Process(context.Background(), src)
	if !errors.Is(err, faults.ErrDestinationExists) {
		t.Fatalf("expected ErrDestinationExists, got %v", err)
	}
	after, err := os.ReadFile(cfg.DestinationFor(src))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("destination was modified")
	}
	assertStagingEmpty(t, cfg)
}

func TestProcessSourceNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := newPipeline(t, cfg).Process(context.Background(), filepath.Join(testsupport.BaseDir(cfg), "missing.zip"))
	if !errors.Is(err, faults.ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestProcessTraversalIsArchiveFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(testsupport.BaseDir(cfg), "src", "evil.zip")
	testsupport.WriteZip(t, src, []testsupport.ZipEntry{
		{Name: "ok.jpg", Body: []byte("x")},
		{Name: "a/../../b.jpg", Body: []byte("x")},
	})

	_, err := newPipeline(t, cfg).Process(context.Background(), src)
	if !errors.Is(err, faults.ErrPathTraversal) {
		t.Fatalf("expected ErrPathTraversal, got %v", err)
	}
	if _, statErr := os.Stat(cfg.DestinationFor(src)); !os.IsNotExist(statErr) {
		t.Fatalf("destination must not exist, stat err = %v", statErr)
	}
	assertStagingEmpty(t, cfg)
}

func TestProcessCorruptContainer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(testsupport.BaseDir(cfg), "src", "broken.zip")
	testsupport.WriteFile(t, src, 64)

	_, err := newPipeline(t, cfg).Process(context.Background(), src)
	if !errors.Is(err, faults.ErrContainerCorrupt) {
		t.Fatalf("expected ErrContainerCorrupt, got %v", err)
	}
	if !faults.IsArchiveFatal(err) {
		t.Fatal("corrupt container must be archive-fatal")
	}
	assertStagingEmpty(t, cfg)
}

func TestNewRejectsUnknownFallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Rezip.FallbackEncoding = "x-no-such-charset"
	if _, err := pipeline.New(cfg); err == nil {
		t.Fatal("expected error for unknown fallback")
	}
	if _, err := pipeline.New(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
