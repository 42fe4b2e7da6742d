package pipeline_test

import (
	"context"
	"path/filepath"
	"testing"

	"rezip/internal/faults"
	"rezip/internal/history"
	"rezip/internal/pipeline"
	"rezip/internal/testsupport"
)

func TestRunAllIsolatesFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	good := writeBook(t, cfg, "good.zip")
	other := writeBook(t, cfg, "other.zip")
	bad := filepath.Join(testsupport.BaseDir(cfg), "src", "bad.zip")
	testsupport.WriteFile(t, bad, 32)

	store := testsupport.MustOpenHistory(t, cfg)
	runner := pipeline.NewRunner(newPipeline(t, cfg), store, 2, nil)
	report := runner.RunAll(context.Background(), []string{good, bad, other})

	if report.RunID == "" {
		t.Fatal("expected run id")
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(report.Outcomes))
	}
	if report.Failures() != 1 {
		t.Fatalf("expected 1 failure, got %d", report.Failures())
	}
	if report.Outcomes[0].Source != good || report.Outcomes[0].Failed() {
		t.Fatalf("unexpected first outcome %+v", report.Outcomes[0])
	}
	if !report.Outcomes[1].Failed() || faults.KindOf(report.Outcomes[1].Err) != faults.KindContainerCorrupt {
		t.Fatalf("unexpected bad outcome %+v", report.Outcomes[1])
	}
	if report.Outcomes[2].Failed() {
		t.Fatalf("sibling archive failed: %v", report.Outcomes[2].Err)
	}

	records, err := store.ForRun(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("ForRun: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 history records, got %d", len(records))
	}
	bySource := make(map[string]history.Record, len(records))
	for _, rec := range records {
		bySource[rec.Source] = rec
	}
	if rec := bySource[bad]; rec.Status != history.StatusFailed || rec.ErrorKind != faults.KindContainerCorrupt {
		t.Fatalf("unexpected failed record %+v", rec)
	}
	rec := bySource[good]
	if rec.Status != history.StatusSucceeded || rec.Converted != 1 || rec.Digest == "" {
		t.Fatalf("unexpected success record %+v", rec)
	}
	if rec.Histogram["jpg"] != 2 {
		t.Fatalf("histogram not persisted: %v", rec.Histogram)
	}
}

func TestRunAllCanceledContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := writeBook(t, cfg, "book.zip")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := pipeline.NewRunner(newPipeline(t, cfg), nil, 1, nil).RunAll(ctx, []string{src})
	if report.Failures() != 1 {
		t.Fatalf("expected canceled archive to be reported failed, got %+v", report.Outcomes)
	}
	if faults.KindOf(report.Outcomes[0].Err) != faults.KindCanceled {
		t.Fatalf("expected canceled kind, got %v", report.Outcomes[0].Err)
	}
}
