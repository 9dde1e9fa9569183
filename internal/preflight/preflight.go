package preflight

import (
	"lapsecam/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every preflight check for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckStreams(cfg.Streams),
		CheckFramesDir(cfg.Paths.FramesDir, cfg.Paths.FallbackFramesDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	results = append(results, CheckSystemDeps(cfg)...)

	timelapse := CheckDirectoryAccess("Timelapse directory", cfg.Paths.TimelapseDir)
	timelapse.Optional = true
	return append(results, timelapse)
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
