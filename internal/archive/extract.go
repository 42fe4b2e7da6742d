package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"rezip/internal/charset"
	"rezip/internal/faults"
	"rezip/internal/fileutil"
	"rezip/internal/logging"
	"rezip/internal/pathsafe"
)

const stageExtract = "extract"

// Extraction summarizes one archive unpacked into staging.
type Extraction struct {
	Histogram *Histogram
	Entries   []DecodedEntry
	Failures  []EntryFailure
	// Encodings counts decoded names per charset label.
	Encodings map[string]int
	Files     int
	Dirs      int
	Bytes     int64
	Duration  time.Duration
}

// Extractor unpacks zip containers whose entry names may use legacy charsets.
type Extractor struct {
	resolver *charset.Resolver
	workers  int
	logger   *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithWorkers bounds concurrent entry copies. Values below 1 select GOMAXPROCS.
func WithWorkers(n int) ExtractorOption {
	return func(e *Extractor) {
		e.workers = n
	}
}

// WithLogger sets the logger for per-entry diagnostics.
func WithLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor returns an Extractor decoding names through resolver.
func NewExtractor(resolver *charset.Resolver, opts ...ExtractorOption) *Extractor {
	e := &Extractor{resolver: resolver}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	return e
}

// Extract unpacks archivePath into stagingDir.
func (e *Extractor) Extract(ctx context.Context, archivePath, stagingDir string) (*Extraction, error) {
	zr, err := zip.OpenReader(archivePath)
	if err = usableReader(err); err != nil {
		return nil, openError(archivePath, err)
	}
	defer zr.Close()

	return e.extract(ctx, zr.File, stagingDir)
}

// ExtractReader unpacks an in-memory or otherwise random-access container.
func (e *Extractor) ExtractReader(ctx context.Context, r io.ReaderAt, size int64, stagingDir string) (*Extraction, error) {
	zr, err := zip.NewReader(r, size)
	if err = usableReader(err); err != nil {
		return nil, faults.Wrap(faults.ErrContainerCorrupt, stageExtract, "open", "reader", err)
	}
	return e.extract(ctx, zr.File, stagingDir)
}

// usableReader clears zip.ErrInsecurePath, which the reader reports together
// with a complete file list when GODEBUG=zipinsecurepath=0. Raw names are
// checked after decoding, and a legacy-charset name may carry a 0x5c byte.
func usableReader(err error) error {
	if errors.Is(err, zip.ErrInsecurePath) {
		return nil
	}
	return err
}

func openError(archivePath string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return faults.Wrap(faults.ErrSourceNotFound, stageExtract, "open", archivePath, err)
	}
	return faults.Wrap(faults.ErrContainerCorrupt, stageExtract, "open", archivePath, err)
}

func (e *Extractor) extract(ctx context.Context, files []*zip.File, stagingDir string) (*Extraction, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := e.decodeAll(rawEntries(files))
	if err != nil {
		return nil, err
	}

	result := &Extraction{
		Histogram: NewHistogram(),
		Entries:   entries,
		Encodings: make(map[string]int),
	}
	for _, entry := range entries {
		result.Encodings[entry.Encoding]++
	}

	var mu sync.Mutex
	record := func(entry DecodedEntry, written int64, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Failures = append(result.Failures, EntryFailure{Name: entry.Name, Err: err})
			return
		}
		if entry.IsDir {
			result.Dirs++
			return
		}
		result.Files++
		result.Bytes += written
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			written, err := e.writeEntry(stagingDir, entry, result.Histogram)
			if err != nil {
				logging.WarnWithContext(e.logger, "entry extraction failed; continuing with remaining entries", "entry_extract_failed",
					logging.String(logging.FieldEntry, entry.Name),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check free space and staging_dir permissions"),
					logging.String(logging.FieldImpact, "entry missing from rebuilt archive"),
				)
			}
			record(entry, written, err)
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = time.Since(start)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// decodeAll resolves and validates every name in container order. The
// first failure rejects the archive.
func (e *Extractor) decodeAll(raws []RawEntry) ([]DecodedEntry, error) {
	entries := make([]DecodedEntry, 0, len(raws))
	for _, raw := range raws {
		entry, err := e.decode(raw)
		if err != nil {
			return nil, err
		}
		if err := pathsafe.Validate(entry.Name); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (e *Extractor) decode(raw RawEntry) (DecodedEntry, error) {
	entry := DecodedEntry{IsDir: raw.IsDir, Size: raw.Size, raw: raw}
	if raw.DeclaredUTF8 {
		entry.Name = string(raw.NameBytes)
		entry.Encoding = charset.LabelUTF8
		entry.Confidence = 1
		return entry, nil
	}
	res, err := e.resolver.Resolve(raw.NameBytes)
	if err != nil {
		return DecodedEntry{}, err
	}
	entry.Name = res.Text
	entry.Encoding = res.Label
	entry.Confidence = res.Confidence
	return entry, nil
}

func (e *Extractor) writeEntry(stagingDir string, entry DecodedEntry, histogram *Histogram) (int64, error) {
	target := filepath.Join(stagingDir, filepath.FromSlash(entry.Name))
	if entry.IsDir {
		if err := fileutil.EnsureDir(target); err != nil {
			return 0, faults.Wrap(faults.ErrIO, stageExtract, "mkdir", entry.Name, err)
		}
		return 0, nil
	}

	if err := fileutil.EnsureDir(filepath.Dir(target)); err != nil {
		return 0, faults.Wrap(faults.ErrIO, stageExtract, "mkdir parent", entry.Name, err)
	}
	histogram.AddFile(entry.Name)

	rc, err := entry.raw.Open()
	if err != nil {
		return 0, faults.Wrap(faults.ErrIO, stageExtract, "open entry", entry.Name, err)
	}
	defer rc.Close()

	written, err := fileutil.WriteExclusive(target, rc, 0o644)
	if err != nil {
		return written, faults.Wrap(faults.ErrIO, stageExtract, "write", entry.Name, err)
	}
	return written, nil
}

// InspectedEntry is one container record as reported by Inspect.
type InspectedEntry struct {
	Raw        []byte
	Name       string
	IsDir      bool
	Size       uint64
	Encoding   string
	Confidence float64
	// Err holds the decode or validation failure that would reject the
	// archive during Extract.
	Err error
}

// Inspect decodes and validates every entry name without writing anything.
// Unlike Extract it reports every entry, including the ones that fail.
func (e *Extractor) Inspect(ctx context.Context, archivePath string) ([]InspectedEntry, error) {
	zr, err := zip.OpenReader(archivePath)
	if err = usableReader(err); err != nil {
		return nil, openError(archivePath, err)
	}
	defer zr.Close()

	raws := rawEntries(zr.File)
	out := make([]InspectedEntry, 0, len(raws))
	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		item := InspectedEntry{Raw: raw.NameBytes, IsDir: raw.IsDir, Size: raw.Size}
		entry, err := e.decode(raw)
		if err != nil {
			item.Err = err
			out = append(out, item)
			continue
		}
		item.Name = entry.Name
		item.Encoding = entry.Encoding
		item.Confidence = entry.Confidence
		item.Err = pathsafe.Validate(entry.Name)
		out = append(out, item)
	}
	return out, nil
}

// String renders a short description used in debug output.
func (x *Extraction) String() string {
	if x == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d files, %d dirs, %d failures, %d bytes", x.Files, x.Dirs, len(x.Failures), x.Bytes)
}
