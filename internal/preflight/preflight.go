package preflight

import (
	"context"

	"rezip/internal/config"
)

// MinStagingFree is the free space below which the staging check fails.
const MinStagingFree = 256 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	checks := []func() Result{
		func() Result { return CheckDirectoryCreatable("Output directory", cfg.Paths.OutputDir) },
		func() Result { return CheckDirectoryCreatable("Staging directory", cfg.Paths.StagingDir) },
		func() Result { return CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, MinStagingFree) },
		func() Result { return CheckDirectoryCreatable("State directory", cfg.Paths.StateDir) },
		func() Result { return CheckCharset("Fallback charset", cfg.Rezip.FallbackEncoding) },
		func() Result { return CheckRunLock("Run lock", cfg.LockPath()) },
	}
	if cfg.Paths.LogDir != "" {
		checks = append(checks, func() Result { return CheckDirectoryCreatable("Log directory", cfg.Paths.LogDir) })
	}

	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		if ctx.Err() != nil {
			break
		}
		results = append(results, check())
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
