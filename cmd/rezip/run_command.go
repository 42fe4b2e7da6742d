package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"rezip/internal/config"
	"rezip/internal/faults"
	"rezip/internal/history"
	"rezip/internal/pipeline"
	"rezip/internal/preflight"
	"rezip/internal/runlock"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "run <root>",
		Short: "Rebuild every .zip below root into the output directory",
		Long: `Scan root for files ending in .zip and rebuild each one into the
configured output directory: entry names decoded to UTF-8, junk removed,
selected images converted to JPEG, everything stored uncompressed.

A failing archive is logged and recorded; the others keep going. The
command exits non-zero when any archive failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
				parts := make([]string, 0, len(failed))
				for _, r := range failed {
					parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
				}
				return fmt.Errorf("preflight failed (run `rezip check`): %s", strings.Join(parts, "; "))
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			lock, err := runlock.Acquire(cfg.LockPath())
			if err != nil {
				return err
			}
			defer lock.Release()

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			root, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve root: %w", err)
			}
			sources, err := pipeline.Scan(root, cfg.Paths.OutputDir, cfg.Paths.StagingDir)
			if err != nil {
				return err
			}

			p, err := pipeline.New(cfg, pipeline.WithLogger(logger))
			if err != nil {
				return err
			}

			var store *history.Store
			if !noHistory {
				store, err = history.Open(cfg)
				if err != nil {
					return fmt.Errorf("open history: %w", err)
				}
				defer store.Close()
			}

			runner := pipeline.NewRunner(p, store, config.WorkerCount(cfg.Rezip.ArchiveWorkers), logger)
			report := runner.RunAll(cmd.Context(), sources)

			if ctx.JSONMode() {
				if err := writeJSON(cmd, runReportJSON(report)); err != nil {
					return err
				}
			} else {
				printRunReport(cmd, report)
			}

			if n := report.Failures(); n > 0 {
				return fmt.Errorf("%d of %d archives failed", n, len(report.Outcomes))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record outcomes in the history ledger")
	return cmd
}

type runOutcomeJSON struct {
	Source          string            `json:"source"`
	Destination     string            `json:"destination,omitempty"`
	Status          string            `json:"status"`
	ErrorKind       string            `json:"error_kind,omitempty"`
	Error           string            `json:"error,omitempty"`
	Histogram       map[string]uint64 `json:"histogram,omitempty"`
	Encodings       map[string]int    `json:"encodings,omitempty"`
	Files           int               `json:"files"`
	Excluded        int               `json:"excluded"`
	Converted       int               `json:"converted"`
	ConvertFailed   int               `json:"convert_failed"`
	ExtractFailures []string          `json:"extract_failures,omitempty"`
	Digest          string            `json:"digest,omitempty"`
}

type runReportJSONView struct {
	RunID      string           `json:"run_id"`
	Archives   int              `json:"archives"`
	Failed     int              `json:"failed"`
	DurationMS int64            `json:"duration_ms"`
	Outcomes   []runOutcomeJSON `json:"outcomes"`
}

func runReportJSON(report pipeline.Report) runReportJSONView {
	view := runReportJSONView{
		RunID:      report.RunID,
		Archives:   len(report.Outcomes),
		Failed:     report.Failures(),
		DurationMS: report.Duration.Milliseconds(),
		Outcomes:   make([]runOutcomeJSON, 0, len(report.Outcomes)),
	}
	for _, o := range report.Outcomes {
		item := runOutcomeJSON{Source: o.Source, Status: string(history.StatusSucceeded)}
		if o.Err != nil {
			item.Status = string(history.StatusFailed)
			item.ErrorKind = faults.KindOf(o.Err)
			item.Error = o.Err.Error()
		}
		if res := o.Result; res != nil {
			item.Destination = res.DestinationPath
			item.Histogram = res.Histogram
			item.Encodings = res.Encodings
			item.Files = res.Pack.Files
			item.Excluded = res.Pack.Excluded
			item.Converted = res.Converted
			item.ConvertFailed = res.ConvertFailed
			item.Digest = res.Digest
			for _, f := range res.ExtractFailures {
				item.ExtractFailures = append(item.ExtractFailures, f.Error())
			}
		}
		view.Outcomes = append(view.Outcomes, item)
	}
	return view
}

func printRunReport(cmd *cobra.Command, report pipeline.Report) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	if len(report.Outcomes) == 0 {
		fmt.Fprintln(out, "No .zip archives found")
		return
	}

	for _, o := range report.Outcomes {
		label := filepath.Base(o.Source)
		if o.Err != nil {
			fmt.Fprintln(out, renderStatusLine(label, statusError, fmt.Sprintf("%s: %v", faults.KindOf(o.Err), o.Err), colorize))
		} else {
			res := o.Result
			kind := statusOK
			if len(res.ExtractFailures) > 0 || res.ConvertFailed > 0 {
				kind = statusWarn
			}
			msg := fmt.Sprintf("%s (%d files, %d converted, %d skipped entries, %d failed conversions)",
				res.DestinationPath, res.Pack.Files, res.Converted, len(res.ExtractFailures), res.ConvertFailed)
			fmt.Fprintln(out, renderStatusLine(label, kind, msg, colorize))
		}
		if o.Result != nil && len(o.Result.Histogram) > 0 {
			fmt.Fprintln(out, renderHistogram(o.Result.Histogram))
		}
	}

	failed := report.Failures()
	fmt.Fprintf(out, "\nProcessed %d archives: %d rebuilt, %d failed in %s (run %s)\n",
		len(report.Outcomes), len(report.Outcomes)-failed, failed, formatDuration(report.Duration), report.RunID)
}
