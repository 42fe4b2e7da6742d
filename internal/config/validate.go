package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRezip(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.StagingDir == c.Paths.OutputDir {
		return errors.New("paths.staging_dir must differ from paths.output_dir")
	}
	return nil
}

func (c *Config) validateRezip() error {
	if c.Rezip.JPEGQuality < 1 || c.Rezip.JPEGQuality > 100 {
		return fmt.Errorf("rezip.jpeg_quality must be between 1 and 100, got %d", c.Rezip.JPEGQuality)
	}
	if !knownCharset(c.Rezip.FallbackEncoding) {
		return fmt.Errorf("rezip.fallback_encoding %q does not name a supported charset", c.Rezip.FallbackEncoding)
	}
	if c.Rezip.DetectMinConfidence < 1 || c.Rezip.DetectMinConfidence > 100 {
		return fmt.Errorf("rezip.detect_min_confidence must be between 1 and 100, got %d", c.Rezip.DetectMinConfidence)
	}
	for name, value := range map[string]int{
		"rezip.extract_workers":   c.Rezip.ExtractWorkers,
		"rezip.transform_workers": c.Rezip.TransformWorkers,
		"rezip.archive_workers":   c.Rezip.ArchiveWorkers,
	} {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0, got %d", name, value)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

func knownCharset(label string) bool {
	if strings.TrimSpace(label) == "" {
		return false
	}
	if enc, err := htmlindex.Get(label); err == nil && enc != nil {
		return true
	}
	enc, err := ianaindex.IANA.Encoding(label)
	return err == nil && enc != nil
}
