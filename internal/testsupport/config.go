package testsupport

import (
	"path/filepath"
	"testing"

	"rezip/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Worker counts default to small fixed values so tests do not depend on the
// host CPU count.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "out")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = ""
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Rezip.ExtractWorkers = 2
	cfgVal.Rezip.TransformWorkers = 2
	cfgVal.Rezip.ArchiveWorkers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithWorkers overrides all worker counts.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Rezip.ExtractWorkers = n
		b.cfg.Rezip.TransformWorkers = n
		b.cfg.Rezip.ArchiveWorkers = n
	}
}

// WithTransformExtensions replaces the transform list.
func WithTransformExtensions(exts ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Rezip.TransformExtensions = exts
	}
}

// WithLogDir enables file logging inside the test base directory.
func WithLogDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.LogDir = filepath.Join(b.baseDir, "logs")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
