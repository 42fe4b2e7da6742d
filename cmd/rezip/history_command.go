package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rezip/internal/config"
	"rezip/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var source string
	var runID string
	var pruneDays int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded archive outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			if pruneDays > 0 {
				cutoff := time.Now().AddDate(0, 0, -pruneDays)
				removed, err := store.Prune(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"pruned": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d records older than %d days\n", removed, pruneDays)
				return nil
			}

			var records []history.Record
			switch {
			case strings.TrimSpace(runID) != "":
				records, err = store.ForRun(cmd.Context(), strings.TrimSpace(runID))
			case strings.TrimSpace(source) != "":
				var path string
				path, err = config.ExpandPath(strings.TrimSpace(source))
				if err == nil {
					records, err = store.ForSource(cmd.Context(), path)
				}
			default:
				records, err = store.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			if ctx.JSONMode() {
				if records == nil {
					records = []history.Record{}
				}
				return writeJSON(cmd, historyJSON(records))
			}
			printHistory(cmd, records)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of recent records to show")
	cmd.Flags().StringVar(&source, "source", "", "Only show records for this source archive")
	cmd.Flags().StringVar(&runID, "run", "", "Only show records for this run id")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "Delete records older than this many days instead of listing")
	return cmd
}

type historyRecordJSON struct {
	ID              int64             `json:"id"`
	RunID           string            `json:"run_id"`
	Source          string            `json:"source"`
	Destination     string            `json:"destination,omitempty"`
	Status          string            `json:"status"`
	ErrorKind       string            `json:"error_kind,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	Histogram       map[string]uint64 `json:"histogram,omitempty"`
	Encodings       map[string]int    `json:"encodings,omitempty"`
	Files           int               `json:"files"`
	Bytes           int64             `json:"bytes"`
	ExtractFailures int               `json:"extract_failures"`
	Converted       int               `json:"converted"`
	ConvertFailed   int               `json:"convert_failed"`
	Digest          string            `json:"digest,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	FinishedAt      time.Time         `json:"finished_at"`
}

func historyJSON(records []history.Record) []historyRecordJSON {
	out := make([]historyRecordJSON, 0, len(records))
	for _, r := range records {
		out = append(out, historyRecordJSON{
			ID:              r.ID,
			RunID:           r.RunID,
			Source:          r.Source,
			Destination:     r.Destination,
			Status:          string(r.Status),
			ErrorKind:       r.ErrorKind,
			ErrorMessage:    r.ErrorMessage,
			Histogram:       r.Histogram,
			Encodings:       r.Encodings,
			Files:           r.Files,
			Bytes:           r.Bytes,
			ExtractFailures: r.ExtractFailures,
			Converted:       r.Converted,
			ConvertFailed:   r.ConvertFailed,
			Digest:          r.Digest,
			StartedAt:       r.StartedAt,
			FinishedAt:      r.FinishedAt,
		})
	}
	return out
}

func printHistory(cmd *cobra.Command, records []history.Record) {
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No history recorded")
		return
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		status := string(r.Status)
		if r.ErrorKind != "" {
			status += " (" + r.ErrorKind + ")"
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			filepath.Base(r.Source),
			status,
			strconv.Itoa(r.Files),
			strconv.Itoa(r.Converted),
			formatBytes(r.Bytes),
			formatDuration(r.Duration()),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Finished", "Archive", "Status", "Files", "Converted", "Size", "Took"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
}
