// Package config loads, normalizes, and validates rezip configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the REZIP_OUTPUT_DIR environment
// fallback. The Config type centralizes every knob the pipeline and CLI need:
// output and staging directories, the trash/transform extension lists, the
// fallback charset, and worker counts.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
