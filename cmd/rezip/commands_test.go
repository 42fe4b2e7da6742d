package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rezip/internal/testsupport"
)

func writeSampleBook(t *testing.T, path string) {
	t.Helper()
	testsupport.WriteZip(t, path, []testsupport.ZipEntry{
		{Name: "cover.png", Body: testsupport.PNGBytes(t)},
		{Name: "page01.jpg", Body: []byte("jpeg")},
		{Name: "notes.txt", Body: []byte("ad")},
	})
}

func TestRunCommandReportsFailuresAndContinues(t *testing.T) {
	env := setupCLITestEnv(t)
	writeSampleBook(t, filepath.Join(env.sourceDir, "book.zip"))
	testsupport.WriteFile(t, filepath.Join(env.sourceDir, "broken.zip"), 40)

	out, _, err := runCLI(t, env.configPath, "run", env.sourceDir)
	if err == nil {
		t.Fatal("expected non-nil error when an archive fails")
	}
	requireContains(t, err.Error(), "1 of 2 archives failed")
	requireContains(t, out, "book.zip")
	requireContains(t, out, "container_corrupt")
	requireContains(t, out, "image/png")

	names := testsupport.ZipNames(t, filepath.Join(env.outputDir, "book.zip"))
	if strings.Join(names, ",") != "cover.jpg,page01.jpg" {
		t.Fatalf("unexpected rebuilt entries %v", names)
	}

	histOut, _, err := runCLI(t, env.configPath, "history", "--json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var records []historyRecordJSON
	if err := json.Unmarshal([]byte(histOut), &records); err != nil {
		t.Fatalf("decode history json: %v\n%s", err, histOut)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(records))
	}
}

func TestRunCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	writeSampleBook(t, filepath.Join(env.sourceDir, "book.zip"))

	out, _, err := runCLI(t, env.configPath, "--json", "run", env.sourceDir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var view runReportJSONView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode run json: %v\n%s", err, out)
	}
	if view.Archives != 1 || view.Failed != 0 || view.RunID == "" {
		t.Fatalf("unexpected report %+v", view)
	}
	got := view.Outcomes[0]
	if got.Status != "succeeded" || got.Converted != 1 || got.Files != 2 || got.Excluded != 1 {
		t.Fatalf("unexpected outcome %+v", got)
	}
	if got.Histogram["png"] != 1 || got.Histogram["txt"] != 1 {
		t.Fatalf("unexpected histogram %v", got.Histogram)
	}

	// A second run must refuse to overwrite the destination.
	_, _, err = runCLI(t, env.configPath, "run", env.sourceDir)
	if err == nil {
		t.Fatal("expected second run to fail on existing destination")
	}
}

func TestRunCommandEmptyRoot(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.sourceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	out, _, err := runCLI(t, env.configPath, "run", env.sourceDir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "No .zip archives found")
}

func TestInspectCommandFlagsTraversal(t *testing.T) {
	env := setupCLITestEnv(t)
	src := filepath.Join(env.sourceDir, "evil.zip")
	testsupport.WriteZip(t, src, []testsupport.ZipEntry{
		{Name: "fine.jpg", Body: []byte("x")},
		{Name: "../escape.jpg", Body: []byte("x")},
	})

	out, _, err := runCLI(t, env.configPath, "inspect", src)
	if err == nil {
		t.Fatal("expected inspect to report the rejected entry")
	}
	requireContains(t, out, "fine.jpg")
	requireContains(t, out, "path_traversal")
	requireContains(t, out, "Fallback charset: Shift_JIS")
	requireContains(t, err.Error(), "1 of 2 entries")
	if _, statErr := os.Stat(filepath.Join(env.outputDir, "evil.zip")); !os.IsNotExist(statErr) {
		t.Fatal("inspect must not write output")
	}
}

func TestInspectCommandDecodesShiftJIS(t *testing.T) {
	env := setupCLITestEnv(t)
	src := filepath.Join(env.sourceDir, "sjis.zip")
	testsupport.WriteZip(t, src, []testsupport.ZipEntry{
		// テスト/表紙.jpg
		{Name: "\x83\x65\x83\x58\x83\x67/\x95\x5c\x8e\x86.jpg", Body: []byte("x")},
	})

	out, _, err := runCLI(t, env.configPath, "--json", "inspect", src)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var view struct {
		Fallback string             `json:"fallback_encoding"`
		Entries  []inspectEntryJSON `json:"entries"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode inspect json: %v\n%s", err, out)
	}
	if view.Fallback != "Shift_JIS" || len(view.Entries) != 1 {
		t.Fatalf("unexpected inspect view %+v", view)
	}
	if got := view.Entries[0]; got.Name != "テスト/表紙.jpg" || got.Verdict != "ok" {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "conf", "rezip.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, target)

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, target, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, env.configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.outputDir)
	requireContains(t, out, "Shift_JIS")
}

func TestLogLevelOverrideValidated(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env.configPath, "--log-level", "loud", "config", "show"); err == nil {
		t.Fatal("expected invalid --log-level to fail")
	}
	if _, _, err := runCLI(t, env.configPath, "--log-level", "DEBUG", "config", "validate"); err != nil {
		t.Fatalf("expected DEBUG to be accepted: %v", err)
	}
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env.configPath, "check")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "Fallback charset")
	requireContains(t, out, "[OK]")
}

func TestStagingListAndClean(t *testing.T) {
	env := setupCLITestEnv(t)
	stale := filepath.Join(env.stagingDir, "rezip-book-1234")
	testsupport.WriteFile(t, filepath.Join(stale, "page.jpg"), 10)
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	foreign := filepath.Join(env.stagingDir, "keep-me")
	if err := os.MkdirAll(foreign, 0o755); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, env.configPath, "staging", "list")
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, "rezip-book-1234")

	out, _, err = runCLI(t, env.configPath, "staging", "clean", "--max-age", "1h")
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "Removed 1 staging directories")
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale staging directory still present")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Fatal("unrelated directory was removed")
	}
}

func TestMimeType(t *testing.T) {
	if got := mimeType("png"); got != "image/png" {
		t.Fatalf("mimeType(png) = %q", got)
	}
	if got := mimeType("no-such-ext-zz"); got != "-" {
		t.Fatalf("unknown key = %q", got)
	}
}
