package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"rezip/internal/archive"
	"rezip/internal/charset"
	"rezip/internal/config"
	"rezip/internal/faults"
	"rezip/internal/logging"
	"rezip/internal/staging"
	"rezip/internal/transform"
)

// Result describes one processed archive. Fields are filled as far as the
// pipeline got, so a failed run still reports what was extracted.
type Result struct {
	Source          string
	Histogram       map[string]uint64
	StagingPath     string
	DestinationPath string
	Encodings       map[string]int
	ExtractFailures []archive.EntryFailure
	Converted       int
	ConvertFailed   int
	Pack            archive.PackStats
	Digest          string
	Duration        time.Duration
}

// Pipeline processes single archives with a fixed configuration.
type Pipeline struct {
	cfg         *config.Config
	extractor   *archive.Extractor
	transformer *transform.Transformer
	packer      *archive.Packer
	filter      archive.Filter
	logger      *slog.Logger
}

type settings struct {
	logger    *slog.Logger
	detector  charset.Detector
	converter transform.Converter
	filter    archive.Filter
}

// Option configures a Pipeline.
type Option func(*settings)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithDetector replaces the statistical charset detector.
func WithDetector(d charset.Detector) Option {
	return func(s *settings) { s.detector = d }
}

// WithConverter replaces the JPEG converter.
func WithConverter(c transform.Converter) Option {
	return func(s *settings) { s.converter = c }
}

// WithFilter replaces the filter built from the configured lists.
func WithFilter(f archive.Filter) Option {
	return func(s *settings) { s.filter = f }
}

// New builds a Pipeline from cfg.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}

	resolver, err := charset.NewResolver(cfg.Rezip.FallbackEncoding,
		charset.WithMinConfidence(cfg.Rezip.DetectMinConfidence),
		charset.WithDetector(s.detector),
		charset.WithLogger(logging.NewComponentLogger(s.logger, "charset")),
	)
	if err != nil {
		return nil, err
	}
	if s.filter == nil {
		s.filter = archive.DefaultFilter(archive.FilterRules{
			ArtifactMarkers: cfg.Rezip.ArtifactMarkers,
			TrashExtensions: cfg.Rezip.TrashExtensions,
		})
	}

	return &Pipeline{
		cfg: cfg,
		extractor: archive.NewExtractor(resolver,
			archive.WithWorkers(config.WorkerCount(cfg.Rezip.ExtractWorkers)),
			archive.WithLogger(logging.NewComponentLogger(s.logger, "archive")),
		),
		transformer: transform.New(cfg.Rezip.TransformExtensions,
			transform.WithConverter(s.converter),
			transform.WithQuality(cfg.Rezip.JPEGQuality),
			transform.WithWorkers(config.WorkerCount(cfg.Rezip.TransformWorkers)),
			transform.WithLogger(logging.NewComponentLogger(s.logger, "transform")),
		),
		packer: archive.NewPacker(logging.NewComponentLogger(s.logger, "archive")),
		filter: s.filter,
		logger: logging.NewComponentLogger(s.logger, "pipeline"),
	}, nil
}

// Process rebuilds source into its destination below the output directory.
func (p *Pipeline) Process(ctx context.Context, source string) (*Result, error) {
	start := time.Now()
	ctx = logging.WithArchive(ctx, source)
	logger := logging.WithContext(ctx, p.logger)
	result := &Result{Source: source, DestinationPath: p.cfg.DestinationFor(source)}
	defer func() { result.Duration = time.Since(start) }()

	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, faults.Wrap(faults.ErrSourceNotFound, "pipeline", "stat", source, err)
		}
		return result, faults.Wrap(faults.ErrIO, "pipeline", "stat", source, err)
	}
	if !info.Mode().IsRegular() {
		return result, faults.Wrap(faults.ErrSourceNotFound, "pipeline", "stat", source+" is not a regular file", nil)
	}
	if _, err := os.Lstat(result.DestinationPath); err == nil {
		return result, faults.Wrap(faults.ErrDestinationExists, "pipeline", "precheck", result.DestinationPath, nil)
	}

	area, err := staging.New(p.cfg.Paths.StagingDir, source)
	if err != nil {
		return result, faults.Wrap(faults.ErrIO, "pipeline", "staging", "", err)
	}
	result.StagingPath = area.Path
	defer func() {
		if err := area.Release(); err != nil {
			logging.WarnWithContext(logger, "staging release failed", "staging_release_failed",
				logging.String("staging_path", area.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run `rezip staging clean` to remove leftovers"),
			)
		}
	}()

	logger.Info("archive started",
		logging.String(logging.FieldEventType, "archive_start"),
		logging.String("destination", result.DestinationPath),
		logging.String("staging_path", area.Path),
	)

	extraction, err := p.extractor.Extract(logging.WithStage(ctx, "extract"), source, area.Path)
	if extraction != nil {
		result.Histogram = extraction.Histogram.Snapshot()
		result.Encodings = extraction.Encodings
		result.ExtractFailures = extraction.Failures
	}
	if err != nil {
		return result, err
	}

	summary := p.transformer.Apply(logging.WithStage(ctx, "transform"), area.Path)
	result.Converted = summary.Converted
	result.ConvertFailed = len(summary.Failures)

	if err := ctx.Err(); err != nil {
		return result, err
	}

	stats, err := p.packer.Pack(logging.WithStage(ctx, "pack"), area.Path, result.DestinationPath, p.filter)
	result.Pack = stats
	if err != nil {
		return result, err
	}

	digest, err := Digest(result.DestinationPath)
	if err != nil {
		logging.WarnWithContext(logger, "archive digest failed", "digest_failed", logging.Error(err))
	} else {
		result.Digest = digest
	}

	logger.Info("archive rebuilt",
		logging.String(logging.FieldEventType, "archive_complete"),
		logging.Int("files", stats.Files),
		logging.Int("excluded", stats.Excluded),
		logging.Int("extract_failures", len(result.ExtractFailures)),
		logging.Int("converted", result.Converted),
		logging.Int("convert_failed", result.ConvertFailed),
		logging.Int64("bytes", stats.Bytes),
		logging.String("digest", result.Digest),
		logging.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (r *Result) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s -> %s (%d files, %d converted, %d entry failures)",
		r.Source, r.DestinationPath, r.Pack.Files, r.Converted, len(r.ExtractFailures))
}
