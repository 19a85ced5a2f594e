package preflight

import (
	"context"
	"strings"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunIngressChecks covers what the upload API needs: state and staging
// directories plus the artifact store it downloads from.
func RunIngressChecks(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
	}
	return append(results, CheckStorageTarget(cfg))
}

// RunWorkerChecks covers the worker pool: writable workspaces, the pipeline
// binaries, and the publish targets.
func RunWorkerChecks(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
	}
	results = append(results, CheckSystemDeps(ctx, cfg)...)
	results = append(results, CheckStorageTarget(cfg), CheckMessagingTarget(cfg))
	return results
}

// RunConsumerChecks covers the summary consumer. The LLM is only contacted
// when an API key is configured; without one the check fails immediately.
func RunConsumerChecks(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckMessagingTarget(cfg),
		CheckStorageTarget(cfg),
		CheckLLM(ctx, "Summary LLM", cfg.LLM),
	}
}

// RunAll executes every check once, in role order.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	seen := make(map[string]bool)
	var results []Result
	groups := [][]Result{
		RunIngressChecks(cfg),
		RunWorkerChecks(ctx, cfg),
		RunConsumerChecks(ctx, cfg),
	}
	for _, group := range groups {
		for _, r := range group {
			key := strings.ToLower(r.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			results = append(results, r)
		}
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
