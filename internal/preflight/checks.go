package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/deps"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services/llm"
)

const llmCheckTimeout = 30 * time.Second

// CheckLLM sends one unretried ping to the summary model.
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	ctx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()

	err := llm.FromConfig(cfg, llm.WithRetryMaxAttempts(1)).HealthCheck(ctx)
	switch {
	case err == nil:
		return Result{Name: name, Passed: true, Detail: "API reachable"}
	case errors.Is(err, context.DeadlineExceeded):
		return Result{Name: name, Detail: fmt.Sprintf("no reply within %s", llmCheckTimeout)}
	case errors.Is(err, services.ErrConfiguration):
		return Result{Name: name, Detail: "API key rejected: " + err.Error()}
	default:
		return Result{Name: name, Detail: err.Error()}
	}
}

// CheckDirectoryAccess requires path to be an existing directory the daemon
// can list, read, and write.
func CheckDirectoryAccess(name, path string) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	fail := func(format string, args ...any) Result {
		return Result{Name: name, Detail: path + ": " + fmt.Sprintf(format, args...)}
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fail("does not exist")
	case err != nil:
		return fail("stat: %v", err)
	case !info.IsDir():
		return fail("not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fail("insufficient permissions: %v", err)
	}
	return Result{Name: name, Passed: true, Detail: path + " (read/write ok)"}
}

// CheckSystemDeps resolves the pipeline binaries. Optional ones pass when
// missing; found ones report their version line when they print one.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []Result {
	statuses := deps.Resolve(ctx, deps.Pipeline(cfg))
	results := make([]Result, 0, len(statuses))
	for _, st := range statuses {
		r := Result{Name: st.Name, Passed: st.Available || st.Optional, Detail: st.Detail}
		if st.Available {
			r.Detail = st.Path
			if st.Version != "" {
				r.Detail += " (" + st.Version + ")"
			}
		}
		results = append(results, r)
	}
	return results
}
