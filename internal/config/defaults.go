package config

import "runtime"

const (
	defaultConfigPath       = "~/.config/rezip/config.toml"
	defaultOutputDir        = "~/Downloads/test-out"
	defaultStagingDir       = "~/.local/share/rezip/staging"
	defaultLogDir           = "~/.local/share/rezip/logs"
	defaultStateDir         = "~/.local/share/rezip"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	defaultFallbackEncoding = "Shift_JIS"
	defaultDetectConfidence = 70
	defaultJPEGQuality      = 86
	defaultArchiveWorkers   = 1
)

var (
	defaultTrashExtensions     = []string{"url", "db", "txt", "html", "torrent", "part"}
	defaultTransformExtensions = []string{"png", "bmp", "JPG", "webm", "webp"}
	defaultArtifactMarkers     = []string{"__MACOSX"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
		},
		Rezip: Rezip{
			TrashExtensions:     cloneStrings(defaultTrashExtensions),
			TransformExtensions: cloneStrings(defaultTransformExtensions),
			ArtifactMarkers:     cloneStrings(defaultArtifactMarkers),
			FallbackEncoding:    defaultFallbackEncoding,
			DetectMinConfidence: defaultDetectConfidence,
			JPEGQuality:         defaultJPEGQuality,
			ArchiveWorkers:      defaultArchiveWorkers,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

// WorkerCount resolves a configured worker count, mapping 0 to GOMAXPROCS.
func WorkerCount(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

func cloneStrings(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}
