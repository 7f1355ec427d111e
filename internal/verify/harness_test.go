package verify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/scaffoldkit/scaffoldkit/internal/errs"
	"github.com/scaffoldkit/scaffoldkit/internal/scaffold"
)

type call struct {
	name string
	args []string
	opts RunOpts
}

// fakeRunner records calls and answers by command base name.
type fakeRunner struct {
	calls   []call
	results map[string]CmdResult
	errs    map[string]error
	onRun   func(name string, opts RunOpts)
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string, opts RunOpts) (CmdResult, error) {
	f.calls = append(f.calls, call{name: name, args: args, opts: opts})
	if f.onRun != nil {
		f.onRun(name, opts)
	}
	base := filepath.Base(name)
	return f.results[base], f.errs[base]
}

func (f *fakeRunner) names() []string {
	var names []string
	for _, c := range f.calls {
		names = append(names, filepath.Base(c.name))
	}
	return names
}

func testContext() scaffold.Context {
	return scaffold.NewContext(
		[2]string{"app_name", "hello"},
		[2]string{"project_slug", "hello"},
	)
}

func cmakeStages() []Stage {
	return []Stage{
		{Name: "configure", Kind: Configure, Command: "cmake", Args: []string{"-S", ".", "-B", "build"}},
		{Name: "build", Kind: Build, Command: "make", Args: []string{"-C", "build"}},
		{Name: "help", Kind: Run, Command: "build/src/{{ .app_name }}", Args: []string{"-h"}},
		{Name: "unit", Kind: UnitTest, Command: "build/test/test_{{ .app_name }}"},
	}
}

func assertCode(t *testing.T, err error, want errs.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := errs.GetCode(err); got != want {
		t.Fatalf("error code = %q, want %q (err: %v)", got, want, err)
	}
}

func TestVerifyAllPass(t *testing.T) {
	project := t.TempDir()
	runner := &fakeRunner{}
	var out bytes.Buffer
	h := &Harness{Runner: runner, Stdout: &out}

	res := h.Verify(context.Background(), project, testContext(), cmakeStages())
	if !res.Passed() {
		t.Fatalf("expected pass, got %v", res.Err())
	}
	if got := strings.Join(runner.names(), ","); got != "cmake,make,hello,test_hello" {
		t.Errorf("ran %s", got)
	}

	help := runner.calls[2]
	if help.name != filepath.Join(project, "build", "src", "hello") {
		t.Errorf("help command = %q", help.name)
	}
	if help.opts.Dir != project {
		t.Errorf("Dir = %q, want project root", help.opts.Dir)
	}
	if !strings.Contains(out.String(), "==> [unit-test] unit") {
		t.Errorf("missing stage banner in output:\n%s", out.String())
	}
}

func TestVerifyShortCircuit(t *testing.T) {
	runner := &fakeRunner{results: map[string]CmdResult{
		"make": {ExitCode: 2, Output: "error: no rule"},
	}}
	h := &Harness{Runner: runner}

	res := h.Verify(context.Background(), t.TempDir(), testContext(), cmakeStages())
	if res.Passed() {
		t.Fatal("expected failure")
	}
	if got := strings.Join(runner.names(), ","); got != "cmake,make" {
		t.Errorf("stages after the failure ran: %s", got)
	}
	if len(res.Stages) != 2 {
		t.Errorf("len(Stages) = %d, want 2", len(res.Stages))
	}

	failed := res.Failed()
	if failed == nil || failed.Stage.Name != "build" {
		t.Fatalf("Failed() = %+v, want build", failed)
	}
	if failed.ExitCode != 2 || failed.Output != "error: no rule" {
		t.Errorf("failed stage = exit %d output %q", failed.ExitCode, failed.Output)
	}
	assertCode(t, res.Err(), errs.EStageFailed)

	var e *errs.Error
	if errors.As(res.Err(), &e) && e.Details["exit_code"] != "2" {
		t.Errorf("exit_code detail = %q", e.Details["exit_code"])
	}
}

func TestVerifyRunError(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{"cmake": errors.New("executable file not found")}}
	res := (&Harness{Runner: runner}).Verify(context.Background(), t.TempDir(), testContext(), cmakeStages())
	assertCode(t, res.Err(), errs.EStageFailed)
	if len(runner.calls) != 1 {
		t.Errorf("runner called %d times, want 1", len(runner.calls))
	}
}

func TestVerifyTimeout(t *testing.T) {
	runner := &fakeRunner{results: map[string]CmdResult{"make": {ExitCode: -1, TimedOut: true}}}
	h := &Harness{Runner: runner, Timeout: time.Minute}

	stages := cmakeStages()
	stages[0].Timeout = 5 * time.Second
	res := h.Verify(context.Background(), t.TempDir(), testContext(), stages)

	assertCode(t, res.Err(), errs.ETimeout)
	if runner.calls[0].opts.Timeout != 5*time.Second {
		t.Errorf("stage timeout = %v, want 5s", runner.calls[0].opts.Timeout)
	}
	if runner.calls[1].opts.Timeout != time.Minute {
		t.Errorf("default timeout = %v, want 1m", runner.calls[1].opts.Timeout)
	}
	if len(runner.calls) != 2 {
		t.Errorf("stages after timeout ran: %v", runner.names())
	}
}

func TestVerifyPostConditions(t *testing.T) {
	project := t.TempDir()
	prefix := filepath.Join(t.TempDir(), "install")
	pctx := testContext().With(map[string]string{"install_prefix": prefix})

	install := Stage{
		Name:    "install",
		Kind:    Install,
		Command: "cmake",
		Args:    []string{"--install", "build", "--prefix", "{{ .install_prefix }}"},
		Post: []Condition{
			{Kind: Executable, Path: "{{ .install_prefix }}/bin/{{ .app_name }}"},
			{Kind: NonEmpty, Path: "{{ .install_prefix }}/etc/config.toml"},
		},
	}

	t.Run("hold", func(t *testing.T) {
		runner := &fakeRunner{onRun: func(string, RunOpts) {
			writeFile(t, filepath.Join(prefix, "bin", "hello"), "#!/bin/sh\n", 0755)
			writeFile(t, filepath.Join(prefix, "etc", "config.toml"), "[app]\n", 0644)
		}}
		res := (&Harness{Runner: runner}).Verify(context.Background(), project, pctx, []Stage{install})
		if !res.Passed() {
			t.Fatalf("expected pass, got %v", res.Err())
		}
		if got := runner.calls[0].args[3]; got != prefix {
			t.Errorf("prefix arg = %q, want %q", got, prefix)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		os.RemoveAll(prefix)
		runner := &fakeRunner{onRun: func(string, RunOpts) {
			writeFile(t, filepath.Join(prefix, "bin", "hello"), "#!/bin/sh\n", 0755)
		}}
		next := Stage{Name: "after", Command: "true"}
		res := (&Harness{Runner: runner}).Verify(context.Background(), project, pctx, []Stage{install, next})
		assertCode(t, res.Err(), errs.EPostCondition)
		if len(runner.calls) != 1 {
			t.Errorf("stage after failed post-condition ran")
		}
	})

	t.Run("not executable", func(t *testing.T) {
		os.RemoveAll(prefix)
		runner := &fakeRunner{onRun: func(string, RunOpts) {
			writeFile(t, filepath.Join(prefix, "bin", "hello"), "data", 0644)
			writeFile(t, filepath.Join(prefix, "etc", "config.toml"), "[app]\n", 0644)
		}}
		res := (&Harness{Runner: runner}).Verify(context.Background(), project, pctx, []Stage{install})
		assertCode(t, res.Err(), errs.EPostCondition)
	})
}

func TestVerifyPostConditionsSkippedOnFailure(t *testing.T) {
	runner := &fakeRunner{results: map[string]CmdResult{"cmake": {ExitCode: 1}}}
	st := Stage{Name: "install", Command: "cmake", Post: []Condition{{Kind: Exists, Path: "nowhere"}}}
	res := (&Harness{Runner: runner}).Verify(context.Background(), t.TempDir(), testContext(), []Stage{st})
	assertCode(t, res.Err(), errs.EStageFailed)
}

func TestVerifyExpandError(t *testing.T) {
	runner := &fakeRunner{}
	st := Stage{Name: "bad", Command: "echo", Args: []string{"{{ .missing }}"}}
	res := (&Harness{Runner: runner}).Verify(context.Background(), t.TempDir(), testContext(), []Stage{st})
	assertCode(t, res.Err(), errs.EStageFailed)
	if len(runner.calls) != 0 {
		t.Error("runner should not be called when expansion fails")
	}
}

func TestVerifyStageDirAndEnv(t *testing.T) {
	project := t.TempDir()
	runner := &fakeRunner{}
	st := Stage{
		Name:    "docs",
		Kind:    Docs,
		Command: "cmake",
		Args:    []string{"--build", ".", "--target", "docs"},
		Dir:     "build",
		Env:     map[string]string{"APP": "{{ .app_name }}"},
	}
	(&Harness{Runner: runner}).Verify(context.Background(), project, testContext(), []Stage{st})

	opts := runner.calls[0].opts
	if opts.Dir != filepath.Join(project, "build") {
		t.Errorf("Dir = %q", opts.Dir)
	}
	found := false
	for _, kv := range opts.Env {
		if kv == "APP=hello" {
			found = true
		}
	}
	if !found {
		t.Error("stage env APP=hello not passed to runner")
	}
}

func TestVerifyNoStages(t *testing.T) {
	res := (&Harness{Runner: &fakeRunner{}}).Verify(context.Background(), t.TempDir(), testContext(), nil)
	if !res.Passed() || res.Err() != nil {
		t.Errorf("empty stage list should pass")
	}
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"A=1", "B=2"}, map[string]string{"B": "3", "C": "4"})
	want := "A=1,B=3,C=4"
	if strings.Join(got, ",") != want {
		t.Errorf("mergeEnv = %v, want %s", got, want)
	}
}

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatal(err)
	}
}
