package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rezip/internal/faults"
	"rezip/internal/history"
	"rezip/internal/logging"
)

// Outcome is the result of one archive within a run.
type Outcome struct {
	Source   string
	Result   *Result
	Err      error
	RecordID int64
}

// Failed reports whether the archive was not rebuilt.
func (o Outcome) Failed() bool { return o.Err != nil }

// Report summarizes a run over many archives.
type Report struct {
	RunID    string
	Outcomes []Outcome
	Duration time.Duration
}

// Failures counts failed archives.
func (r Report) Failures() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}

// Runner processes archives concurrently and records each outcome.
type Runner struct {
	pipeline *Pipeline
	store    *history.Store
	workers  int
	logger   *slog.Logger
}

// NewRunner returns a Runner. store may be nil to skip the ledger; workers
// below 1 process archives one at a time.
func NewRunner(p *Pipeline, store *history.Store, workers int, logger *slog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		pipeline: p,
		store:    store,
		workers:  workers,
		logger:   logging.NewComponentLogger(logger, "runner"),
	}
}

// RunAll processes sources and returns one outcome per source, in input
// order. A failed archive is logged and recorded; the others keep going.
// Cancelling ctx stops new archives from starting; those are reported with
// the context error.
func (r *Runner) RunAll(ctx context.Context, sources []string) Report {
	start := time.Now()
	report := Report{RunID: uuid.NewString(), Outcomes: make([]Outcome, len(sources))}
	ctx = logging.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, r.logger)

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("archives", len(sources)),
		logging.Int("workers", r.workers),
	)

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, source := range sources {
		report.Outcomes[i] = Outcome{Source: source}
		if err := ctx.Err(); err != nil {
			report.Outcomes[i].Err = err
			continue
		}
		g.Go(func() error {
			report.Outcomes[i] = r.runOne(ctx, source)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(start)
	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("archives", len(sources)),
		logging.Int("failed", report.Failures()),
		logging.Duration("elapsed", report.Duration),
	)
	return report
}

func (r *Runner) runOne(ctx context.Context, source string) Outcome {
	started := time.Now()
	outcome := Outcome{Source: source}
	if err := ctx.Err(); err != nil {
		outcome.Err = err
		return outcome
	}

	result, err := r.pipeline.Process(ctx, source)
	outcome.Result = result
	outcome.Err = err

	logger := logging.WithContext(logging.WithArchive(ctx, source), r.logger)
	if err != nil {
		logging.ErrorWithContext(logger, "archive failed", "archive_failed",
			logging.String("error_kind", faults.KindOf(err)),
			logging.Error(err),
		)
	}

	if r.store != nil {
		id, recErr := r.store.Insert(context.WithoutCancel(ctx), recordFor(ctx, outcome, started))
		if recErr != nil {
			logging.WarnWithContext(logger, "history record failed", "history_insert_failed", logging.Error(recErr))
		}
		outcome.RecordID = id
	}
	return outcome
}

func recordFor(ctx context.Context, outcome Outcome, started time.Time) history.Record {
	runID, _ := logging.RunIDFromContext(ctx)
	rec := history.Record{
		RunID:      runID,
		Source:     outcome.Source,
		Status:     history.StatusSucceeded,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if res := outcome.Result; res != nil {
		rec.Destination = res.DestinationPath
		rec.Histogram = res.Histogram
		rec.Encodings = res.Encodings
		rec.Files = res.Pack.Files
		rec.Bytes = res.Pack.Bytes
		rec.ExtractFailures = len(res.ExtractFailures)
		rec.Converted = res.Converted
		rec.ConvertFailed = res.ConvertFailed
		rec.Digest = res.Digest
	}
	if outcome.Err != nil {
		rec.Status = history.StatusFailed
		rec.ErrorKind = faults.KindOf(outcome.Err)
		rec.ErrorMessage = outcome.Err.Error()
	}
	return rec
}
