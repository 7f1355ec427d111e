package scenario

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
	"github.com/scaffoldkit/scaffoldkit/internal/manifest"
	"github.com/scaffoldkit/scaffoldkit/internal/provision"
	"github.com/scaffoldkit/scaffoldkit/internal/scaffold"
	"github.com/scaffoldkit/scaffoldkit/internal/verify"
)

// Expect is the structural expectation on the generated project's top
// level. A zero Expect is derived from the rendered tree, see
// expectRendered.
type Expect struct {
	Entries []string
	Count   int
}

// IsZero reports whether neither entries nor a count were declared.
func (e Expect) IsZero() bool {
	return len(e.Entries) == 0 && e.Count == 0
}

// expectRendered builds the expectation for scenarios that declare none:
// the top-level names of the files the renderer produced plus the first
// segment of every dependency destination.
func expectRendered(res *scaffold.Result) Expect {
	seen := make(map[string]bool)
	for _, f := range res.Files {
		first, _, _ := strings.Cut(f, "/")
		seen[first] = true
	}
	if res.Manifest != nil {
		for _, d := range res.Manifest.Dependencies {
			first, _, _ := strings.Cut(filepath.ToSlash(filepath.Clean(d.Destination)), "/")
			seen[first] = true
		}
	}
	entries := make([]string, 0, len(seen))
	for name := range seen {
		entries = append(entries, name)
	}
	sort.Strings(entries)
	return Expect{Entries: entries, Count: len(entries)}
}

// Scenario is one generate-then-verify run.
type Scenario struct {
	Name        string
	Description string
	Overrides   map[string]string
	Expect      Expect
	Stages      []verify.Stage
}

// Phase names the step a scenario reached.
type Phase string

const (
	PhaseGenerate  Phase = "generate"
	PhaseProvision Phase = "provision"
	PhaseStructure Phase = "structure"
	PhaseVerify    Phase = "verify"
	PhaseDone      Phase = "done"
)

// Report is the outcome of one scenario.
type Report struct {
	Scenario     string
	Phase        Phase // last phase entered; PhaseDone on success
	Entries      []string
	Context      scaffold.Context
	Verification *verify.Result
	Duration     time.Duration
	Err          error
}

// Passed reports whether the scenario ran to completion.
func (r *Report) Passed() bool { return r.Err == nil && r.Phase == PhaseDone }

// Driver runs scenarios against a template.
type Driver struct {
	Renderer scaffold.Renderer
	// Provisioner installs the manifest dependencies after rendering;
	// nil skips provisioning.
	Provisioner *provision.Provisioner
	Harness     *verify.Harness
	// TempRoot holds the per-scenario work areas; empty means os.TempDir.
	TempRoot string
	// Stdout receives progress lines; nil discards.
	Stdout io.Writer
}

// Run executes sc against template. The returned report is never nil; the
// error equals report.Err.
func (d *Driver) Run(ctx context.Context, template string, sc Scenario) (*Report, error) {
	report := &Report{Scenario: sc.Name, Phase: PhaseGenerate}
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	fail := func(err error) (*Report, error) {
		report.Err = err
		return report, err
	}

	out := d.Stdout
	if out == nil {
		out = io.Discard
	}

	work, err := os.MkdirTemp(d.TempRoot, "scaffoldkit-scenario-*")
	if err != nil {
		return fail(errs.Wrap(errs.EInternal, "creating scenario work area", err))
	}
	defer os.RemoveAll(work)

	fmt.Fprintf(out, "--- scenario %s\n", sc.Name)

	res, err := d.Renderer.Render(ctx, template, sc.Overrides, filepath.Join(work, "out"))
	if err != nil {
		return fail(err)
	}
	report.Context = res.Context

	if d.Provisioner != nil {
		report.Phase = PhaseProvision
		if err := provision.Hook(d.Provisioner)(ctx, res); err != nil {
			return fail(err)
		}
	}

	report.Phase = PhaseStructure
	entries, err := topLevel(res.ProjectDir)
	if err != nil {
		return fail(errs.Wrap(errs.EStructure, "listing generated project", err))
	}
	report.Entries = entries
	expect := sc.Expect
	if expect.IsZero() {
		expect = expectRendered(res)
		if expect.Count == 0 {
			return fail(errs.New(errs.EStructure, "template rendered no files"))
		}
	}
	if err := checkStructure(entries, expect); err != nil {
		return fail(err)
	}

	report.Phase = PhaseVerify
	pctx := res.Context.With(map[string]string{
		"project_dir":    res.ProjectDir,
		"install_prefix": filepath.Join(work, "install"),
	})
	report.Context = pctx

	harness := d.Harness
	if harness == nil {
		harness = &verify.Harness{}
	}
	report.Verification = harness.Verify(ctx, res.ProjectDir, pctx, sc.Stages)
	if err := report.Verification.Err(); err != nil {
		return fail(err)
	}

	report.Phase = PhaseDone
	fmt.Fprintf(out, "--- scenario %s passed\n", sc.Name)
	return report, nil
}

// RunAll runs every scenario, continuing past failures. It returns the
// first failure's error.
func (d *Driver) RunAll(ctx context.Context, template string, scenarios []Scenario) ([]*Report, error) {
	reports := make([]*Report, 0, len(scenarios))
	var first error
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return reports, errs.Wrap(errs.EInternal, "scenario run cancelled", err)
		}
		report, err := d.Run(ctx, template, sc)
		reports = append(reports, report)
		if err != nil && first == nil {
			first = err
		}
	}
	return reports, first
}

func topLevel(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// checkStructure compares the project's top-level names with exp.
func checkStructure(entries []string, exp Expect) error {
	if exp.Count > 0 && len(entries) != exp.Count {
		return errs.WrapWithDetails(errs.EStructure,
			fmt.Sprintf("generated project has %d top-level entries, want %d", len(entries), exp.Count), nil,
			map[string]string{"found": strings.Join(entries, ", "), "count": strconv.Itoa(len(entries))})
	}
	if len(exp.Entries) == 0 {
		return nil
	}

	have := make(map[string]bool, len(entries))
	for _, e := range entries {
		have[e] = true
	}
	want := make(map[string]bool, len(exp.Entries))
	var missing, extra []string
	for _, e := range exp.Entries {
		want[e] = true
		if !have[e] {
			missing = append(missing, e)
		}
	}
	for _, e := range entries {
		if !want[e] {
			extra = append(extra, e)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	details := map[string]string{"found": strings.Join(entries, ", ")}
	if len(missing) > 0 {
		sort.Strings(missing)
		details["missing"] = strings.Join(missing, ", ")
	}
	if len(extra) > 0 {
		details["unexpected"] = strings.Join(extra, ", ")
	}
	return errs.WrapWithDetails(errs.EStructure, "generated project layout does not match", nil, details)
}

// FromFile converts a decoded scenarios.yaml.
func FromFile(f *manifest.ScenarioFile) ([]Scenario, error) {
	if f == nil {
		return nil, nil
	}
	scenarios := make([]Scenario, 0, len(f.Scenarios))
	for _, spec := range f.Scenarios {
		stages, err := verify.FromSpecs(spec.Stages)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, Scenario{
			Name:        spec.Name,
			Description: spec.Description,
			Overrides:   spec.Overrides,
			Expect:      Expect{Entries: spec.Expect.Entries, Count: spec.Expect.Count},
			Stages:      stages,
		})
	}
	return scenarios, nil
}

// Load returns the scenarios shipped in templateDir, or Defaults when the
// template has no scenarios file.
func Load(templateDir string) ([]Scenario, error) {
	f, err := manifest.LoadScenarios(templateDir)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return Defaults(), nil
	}
	return FromFile(f)
}

// Discover resolves template (local path or git URL) and loads its
// scenarios.
func Discover(ctx context.Context, template, workDir string) ([]Scenario, error) {
	dir, release, err := scaffold.FetchTemplate(ctx, scaffold.ParseTemplateRef(template), workDir)
	if err != nil {
		return nil, err
	}
	defer release()
	return Load(dir)
}

// Select keeps the scenarios whose names are listed, in the order given.
// An empty list keeps everything. Unknown names are a usage error.
func Select(scenarios []Scenario, names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return scenarios, nil
	}
	byName := make(map[string]Scenario, len(scenarios))
	for _, sc := range scenarios {
		byName[sc.Name] = sc
	}
	selected := make([]Scenario, 0, len(names))
	for _, n := range names {
		sc, ok := byName[n]
		if !ok {
			return nil, errs.Newf(errs.EUsage, "unknown scenario %q", n)
		}
		selected = append(selected, sc)
	}
	return selected, nil
}
