package verify

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/scaffoldkit/scaffoldkit/internal/errs"
	"github.com/scaffoldkit/scaffoldkit/internal/scaffold"
)

// StageResult records what happened to one stage.
type StageResult struct {
	Stage    Stage
	ExitCode int
	Output   string
	Duration time.Duration
	Err      error // nil when the stage passed
}

// Passed reports whether the stage exited 0 and every post-condition held.
func (r StageResult) Passed() bool { return r.Err == nil }

// Result is the outcome of a verification run. Stages holds one entry per
// stage that was attempted, in order; stages after a failure are absent.
type Result struct {
	Planned int
	Stages  []StageResult
}

// Passed reports whether every planned stage ran and passed.
func (r *Result) Passed() bool {
	return r.Failed() == nil && len(r.Stages) == r.Planned
}

// Failed returns the stage that stopped the run, or nil.
func (r *Result) Failed() *StageResult {
	for i := range r.Stages {
		if r.Stages[i].Err != nil {
			return &r.Stages[i]
		}
	}
	return nil
}

// Err returns the failing stage's error, or nil.
func (r *Result) Err() error {
	if f := r.Failed(); f != nil {
		return f.Err
	}
	return nil
}

// Harness executes stages inside a project directory.
type Harness struct {
	// Runner defaults to ExecRunner.
	Runner Runner
	// Stdout and Stderr receive the stage output as it is produced and
	// the per-stage banners; nil discards.
	Stdout io.Writer
	Stderr io.Writer
	// Timeout applies to stages that set none; zero means unbounded.
	Timeout time.Duration
}

// Verify runs stages in order against project and stops at the first
// failure. It never returns nil.
func (h *Harness) Verify(ctx context.Context, project string, pctx scaffold.Context, stages []Stage) *Result {
	runner := h.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	stdout := writerOrDiscard(h.Stdout)

	res := &Result{Planned: len(stages)}
	for _, st := range stages {
		fmt.Fprintf(stdout, "==> [%s] %s\n", st.Kind, st.Name)
		sr := h.runStage(ctx, runner, project, pctx, st)
		res.Stages = append(res.Stages, sr)
		if sr.Err != nil {
			fmt.Fprintf(stdout, "==> [%s] %s failed\n", st.Kind, st.Name)
			break
		}
	}
	return res
}

func (h *Harness) runStage(ctx context.Context, runner Runner, project string, pctx scaffold.Context, st Stage) StageResult {
	sr := StageResult{Stage: st}
	details := map[string]string{"stage": st.Name, "kind": st.Kind.String()}

	expanded, err := expandStage(pctx, st)
	if err != nil {
		sr.ExitCode = -1
		sr.Err = errs.WrapWithDetails(errs.EStageFailed, "expanding stage "+st.Name, err, details)
		return sr
	}
	sr.Stage = expanded

	dir := project
	if expanded.Dir != "" {
		dir = filepath.Join(project, expanded.Dir)
	}
	command := expanded.Command
	if strings.ContainsRune(command, '/') && !filepath.IsAbs(command) {
		command = filepath.Join(dir, filepath.FromSlash(command))
	}
	timeout := expanded.Timeout
	if timeout == 0 {
		timeout = h.Timeout
	}

	start := time.Now()
	out, runErr := runner.Run(ctx, command, expanded.Args, RunOpts{
		Dir:     dir,
		Env:     mergeEnv(os.Environ(), expanded.Env),
		Stdout:  h.Stdout,
		Stderr:  h.Stderr,
		Timeout: timeout,
	})
	sr.Duration = time.Since(start)
	sr.ExitCode = out.ExitCode
	sr.Output = out.Output

	details["command"] = expanded.String()
	switch {
	case out.TimedOut:
		details["timeout"] = timeout.String()
		sr.Err = errs.WrapWithDetails(errs.ETimeout, fmt.Sprintf("stage %s timed out", st.Name), nil, details)
	case runErr != nil:
		sr.Err = errs.WrapWithDetails(errs.EStageFailed, fmt.Sprintf("stage %s could not run", st.Name), runErr, details)
	case out.ExitCode != 0:
		details["exit_code"] = strconv.Itoa(out.ExitCode)
		sr.Err = errs.WrapWithDetails(errs.EStageFailed, fmt.Sprintf("stage %s exited with status %d", st.Name, out.ExitCode), nil, details)
	default:
		for _, c := range expanded.Post {
			path := c.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(project, filepath.FromSlash(path))
			}
			if err := c.Check(path); err != nil {
				details["condition"] = c.Kind.String()
				details["path"] = c.Path
				sr.Err = errs.WrapWithDetails(errs.EPostCondition,
					fmt.Sprintf("stage %s post-condition %s failed", st.Name, c.Kind), err, details)
				break
			}
		}
	}
	return sr
}

// expandStage returns st with every templated field rendered over pctx.
func expandStage(pctx scaffold.Context, st Stage) (Stage, error) {
	var err error
	out := st
	if out.Command, err = pctx.Expand(st.Command); err != nil {
		return st, err
	}
	if out.Args, err = pctx.ExpandAll(st.Args); err != nil {
		return st, err
	}
	if out.Dir, err = pctx.Expand(st.Dir); err != nil {
		return st, err
	}
	if len(st.Env) > 0 {
		out.Env = make(map[string]string, len(st.Env))
		for k, v := range st.Env {
			if out.Env[k], err = pctx.Expand(v); err != nil {
				return st, err
			}
		}
	}
	out.Post = make([]Condition, len(st.Post))
	for i, c := range st.Post {
		out.Post[i] = c
		if out.Post[i].Path, err = pctx.Expand(c.Path); err != nil {
			return st, err
		}
	}
	return out, nil
}

// mergeEnv overlays extra onto base, replacing existing keys.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := extra[key]; ok {
			continue
		}
		env = append(env, kv)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
