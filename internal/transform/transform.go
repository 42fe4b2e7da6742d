package transform

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rezip/internal/archive"
	"rezip/internal/fileutil"
	"rezip/internal/logging"
)

const stageTransform = "transform"

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 86

// Failure records an image left untouched.
type Failure struct {
	Path string
	Err  error
}

// Summary reports one sweep over a staging directory.
type Summary struct {
	Matched   int
	Converted int
	Failures  []Failure
	Duration  time.Duration
}

// Transformer converts staged files whose extension is in a fixed set.
type Transformer struct {
	extensions map[string]struct{}
	converter  Converter
	quality    int
	workers    int
	logger     *slog.Logger
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithConverter replaces the image converter.
func WithConverter(c Converter) Option {
	return func(t *Transformer) {
		if c != nil {
			t.converter = c
		}
	}
}

// WithQuality sets the JPEG quality.
func WithQuality(q int) Option {
	return func(t *Transformer) {
		t.quality = q
	}
}

// WithWorkers bounds concurrent conversions. Values below 1 select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(t *Transformer) {
		t.workers = n
	}
}

// WithLogger sets the logger for conversion diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transformer) {
		t.logger = logger
	}
}

// New returns a Transformer for the given extensions. Extensions are
// matched literally: "JPG" does not match "jpg".
func New(extensions []string, opts ...Option) *Transformer {
	t := &Transformer{
		extensions: make(map[string]struct{}, len(extensions)),
		converter:  ImageConverter{},
		quality:    DefaultQuality,
	}
	for _, ext := range extensions {
		t.extensions[ext] = struct{}{}
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.workers < 1 {
		t.workers = runtime.GOMAXPROCS(0)
	}
	if t.logger == nil {
		t.logger = logging.NewNop()
	}
	return t
}

// Matches reports whether the base name of path has a transform extension.
func (t *Transformer) Matches(path string) bool {
	ext, ok := archive.Extension(filepath.Base(path))
	if !ok {
		return false
	}
	_, ok = t.extensions[ext]
	return ok
}

// Target returns the JPEG path for src: its stem with a .jpg extension.
func Target(src string) string {
	if ext, ok := archive.Extension(filepath.Base(src)); ok {
		return strings.TrimSuffix(src, "."+ext) + ".jpg"
	}
	return src + ".jpg"
}

// Apply converts every matching file below stagingDir. Failures are logged
// and counted; the original file stays in place. Apply never fails as a
// whole.
func (t *Transformer) Apply(ctx context.Context, stagingDir string) Summary {
	start := time.Now()
	var summary Summary
	if len(t.extensions) == 0 {
		return summary
	}

	var candidates []string
	_ = filepath.WalkDir(stagingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.WarnWithContext(t.logger, "transform walk error; subtree skipped", "transform_walk_failed",
				logging.String("path", path),
				logging.Error(err),
			)
			return nil
		}
		if d.Type().IsRegular() && t.Matches(path) {
			candidates = append(candidates, path)
		}
		return nil
	})
	summary.Matched = len(candidates)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(t.workers)
	for _, src := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := t.convertOne(ctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failures = append(summary.Failures, Failure{Path: src, Err: err})
				return nil
			}
			summary.Converted++
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = time.Since(start)
	return summary
}

func (t *Transformer) convertOne(ctx context.Context, src string) error {
	dst := Target(src)
	if err := t.converter.ConvertToJPEG(ctx, src, dst, t.quality); err != nil {
		logging.WarnWithContext(t.logger, "image conversion failed; original kept", "image_convert_failed",
			logging.String(logging.FieldEntry, filepath.Base(src)),
			logging.String("source", src),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the file may not be a supported image"),
			logging.String(logging.FieldImpact, "original file packed unchanged"),
		)
		return err
	}
	if err := fileutil.RemoveUntilGone(src); err != nil {
		logging.WarnWithContext(t.logger, "converted image original could not be removed", "image_cleanup_failed",
			logging.String("source", src),
			logging.Error(err),
			logging.String(logging.FieldImpact, "both the original and the jpeg are packed"),
		)
		return err
	}
	t.logger.Debug("image converted",
		logging.String("source", src),
		logging.String("target", dst),
	)
	return nil
}
