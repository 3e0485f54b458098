package preflight

import (
	"context"

	"platewatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
// The vision check only runs when the external classifier is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Collage directory", cfg.Paths.CollageDir),
		CheckDirectoryAccess("Results directory", cfg.Paths.ResultsDir),
	}

	if cfg.Vision.Enabled {
		results = append(results, CheckVision(ctx, cfg.VisionClient()))
	}

	results = append(results, CheckBinary("FFprobe", cfg.FFprobeBinary(), "reads media durations for chunk planning", true))
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}
