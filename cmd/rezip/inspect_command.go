package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"rezip/internal/archive"
	"rezip/internal/charset"
	"rezip/internal/config"
	"rezip/internal/faults"
	"rezip/internal/logging"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <zip>",
		Short: "Show how each entry name decodes without extracting anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			resolver, err := charset.NewResolver(cfg.Rezip.FallbackEncoding,
				charset.WithMinConfidence(cfg.Rezip.DetectMinConfidence),
				charset.WithLogger(logging.NewComponentLogger(logger, "charset")))
			if err != nil {
				return err
			}
			entries, err := archive.NewExtractor(resolver).Inspect(cmd.Context(), path)
			if err != nil {
				return err
			}

			if ctx.JSONMode() {
				if err := writeJSON(cmd, inspectJSON(path, resolver.Fallback(), entries)); err != nil {
					return err
				}
			} else {
				printInspect(cmd, path, resolver.Fallback(), entries)
			}
			if rejected := countRejecting(entries); rejected > 0 {
				return fmt.Errorf("%d of %d entries would reject this archive", rejected, len(entries))
			}
			return nil
		},
	}
}

type inspectEntryJSON struct {
	Raw        string  `json:"raw_hex"`
	Name       string  `json:"name,omitempty"`
	Dir        bool    `json:"dir"`
	Size       uint64  `json:"size"`
	Encoding   string  `json:"encoding,omitempty"`
	Confidence float64 `json:"confidence"`
	Verdict    string  `json:"verdict"`
	Error      string  `json:"error,omitempty"`
}

func inspectJSON(path, fallback string, entries []archive.InspectedEntry) map[string]any {
	items := make([]inspectEntryJSON, 0, len(entries))
	for _, e := range entries {
		item := inspectEntryJSON{
			Raw:        fmt.Sprintf("%x", e.Raw),
			Name:       e.Name,
			Dir:        e.IsDir,
			Size:       e.Size,
			Encoding:   e.Encoding,
			Confidence: e.Confidence,
			Verdict:    verdict(e),
		}
		if e.Err != nil {
			item.Error = e.Err.Error()
		}
		items = append(items, item)
	}
	return map[string]any{"archive": path, "fallback_encoding": fallback, "entries": items}
}

func printInspect(cmd *cobra.Command, path, fallback string, entries []archive.InspectedEntry) {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "%s: empty archive\n", path)
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = fmt.Sprintf("%q", e.Raw)
		}
		size := strconv.FormatUint(e.Size, 10)
		if e.IsDir {
			size = "dir"
		}
		rows = append(rows, []string{
			name,
			e.Encoding,
			strconv.FormatFloat(e.Confidence, 'f', 2, 64),
			size,
			verdict(e),
		})
	}
	fmt.Fprintf(out, "Archive: %s\n", path)
	fmt.Fprintf(out, "Fallback charset: %s\n", fallback)
	fmt.Fprintln(out, renderTable(
		[]string{"Name", "Charset", "Confidence", "Size", "Verdict"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
}

// countRejecting counts entries whose failure aborts the whole archive.
func countRejecting(entries []archive.InspectedEntry) int {
	n := 0
	for _, e := range entries {
		if faults.IsArchiveFatal(e.Err) {
			n++
		}
	}
	return n
}

func verdict(e archive.InspectedEntry) string {
	if e.Err == nil {
		return "ok"
	}
	return faults.KindOf(e.Err)
}
