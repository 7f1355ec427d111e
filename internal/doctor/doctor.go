package doctor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"regexp"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/scaffoldkit/scaffoldkit/internal/branding"
	"github.com/scaffoldkit/scaffoldkit/internal/manifest"
	"github.com/scaffoldkit/scaffoldkit/internal/scenario"
)

// Tool is an executable the verification scenarios depend on.
type Tool struct {
	Name       string   // label shown in the report
	Candidates []string // executables tried in order
	Required   bool     // a missing optional tool is a warning
	MinVersion string   // semver constraint floor, e.g. "3.14"
	Purpose    string   // shown when the tool is missing
}

// DefaultTools returns the tools the bundled scenarios use.
func DefaultTools() []Tool {
	return []Tool{
		{Name: "cmake", Candidates: []string{"cmake"}, Required: true, MinVersion: "3.14", Purpose: "configure and build stages"},
		{Name: "c++ compiler", Candidates: []string{"c++", "g++", "clang++"}, Required: true, Purpose: "build stages"},
		{Name: "doxygen", Candidates: []string{"doxygen"}, Purpose: "docs scenario"},
		{Name: "git", Candidates: []string{"git"}, Purpose: "templates fetched from git URLs"},
	}
}

// Checker runs the host checks and writes one line per finding.
type Checker struct {
	LookPath   func(file string) (string, error)
	Version    func(ctx context.Context, path string) (string, error)
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New returns a Checker backed by the real PATH and network.
func New() *Checker {
	return &Checker{
		LookPath:   exec.LookPath,
		Version:    toolVersion,
		HTTPClient: http.DefaultClient,
		Timeout:    10 * time.Second,
	}
}

// Report counts failed required checks and warnings.
type Report struct {
	Failures int
	Warnings int
}

// OK reports whether every required check passed.
func (r Report) OK() bool {
	return r.Failures == 0
}

// Add folds other into r.
func (r *Report) Add(other Report) {
	r.Failures += other.Failures
	r.Warnings += other.Warnings
}

// CheckTools reports each tool as found, missing or too old.
func (c *Checker) CheckTools(ctx context.Context, w io.Writer, tools []Tool) Report {
	var r Report
	fmt.Fprintln(w, "Toolchain check:")
	for _, t := range tools {
		path := c.find(t)
		if path == "" {
			if t.Required {
				r.Failures++
				fmt.Fprintf(w, "  [MISS] %s not found (needed for %s)\n", t.Name, t.Purpose)
			} else {
				r.Warnings++
				fmt.Fprintf(w, "  [WARN] %s not found (needed for %s)\n", t.Name, t.Purpose)
			}
			continue
		}

		version := ""
		if c.Version != nil {
			version, _ = c.Version(ctx, path)
		}
		if t.MinVersion != "" {
			ok, err := satisfies(version, t.MinVersion)
			if err != nil {
				r.Warnings++
				fmt.Fprintf(w, "  [WARN] %s at %s: cannot read version\n", t.Name, path)
				continue
			}
			if !ok {
				r.Failures++
				fmt.Fprintf(w, "  [FAIL] %s %s is older than %s\n", t.Name, version, t.MinVersion)
				continue
			}
		}
		if version != "" {
			fmt.Fprintf(w, "  [ OK ] %s %s (%s)\n", t.Name, version, path)
		} else {
			fmt.Fprintf(w, "  [ OK ] %s (%s)\n", t.Name, path)
		}
	}
	return r
}

// CheckURL issues a HEAD request against url, typically the archive the
// provisioner would fetch.
func (c *Checker) CheckURL(ctx context.Context, w io.Writer, url string) Report {
	fmt.Fprintln(w, "Network check:")
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %s: %v\n", url, err)
		return Report{Failures: 1}
	}
	req.Header.Set("User-Agent", branding.UserAgent())

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %s: %v\n", url, err)
		return Report{Failures: 1}
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		fmt.Fprintf(w, "  [FAIL] %s: HTTP %d\n", url, resp.StatusCode)
		return Report{Failures: 1}
	}
	fmt.Fprintf(w, "  [ OK ] %s reachable\n", url)
	return Report{}
}

// CheckTemplate validates the manifest and scenario file of a local
// template directory.
func CheckTemplate(w io.Writer, dir string) Report {
	var r Report
	fmt.Fprintf(w, "Template check (%s):\n", dir)

	m, err := manifest.LoadTemplate(dir)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %s: %v\n", manifest.TemplateFileName, err)
		return Report{Failures: 1}
	}
	entries, err := m.ContextEntries()
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %s: %v\n", manifest.TemplateFileName, err)
		return Report{Failures: 1}
	}
	fmt.Fprintf(w, "  [ OK ] %s (%d context keys, %d dependencies)\n",
		manifest.TemplateFileName, len(entries), len(m.Dependencies))

	declared := make(map[string]bool, len(entries))
	for _, e := range entries {
		declared[e.Key] = true
	}
	for _, d := range m.Dependencies {
		if !declared[d.VersionKey] {
			r.Failures++
			fmt.Fprintf(w, "  [FAIL] dependency %s: version_key %q is not a context key\n", d.Name, d.VersionKey)
		}
	}

	scenarios, err := scenario.Load(dir)
	if err != nil {
		r.Failures++
		fmt.Fprintf(w, "  [FAIL] %s: %v\n", manifest.ScenarioFileName, err)
		return r
	}
	if f, _ := manifest.LoadScenarios(dir); f == nil {
		r.Warnings++
		fmt.Fprintf(w, "  [WARN] no %s, using %d built-in scenarios\n", manifest.ScenarioFileName, len(scenarios))
	} else {
		fmt.Fprintf(w, "  [ OK ] %s (%d scenarios)\n", manifest.ScenarioFileName, len(scenarios))
	}
	return r
}

func (c *Checker) find(t Tool) string {
	for _, name := range t.Candidates {
		if path, err := c.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// toolVersion runs "<path> --version" and returns the first dotted version
// in its output.
func toolVersion(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "--version")
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return ParseVersion(out.String()), nil
}

// ParseVersion extracts the first dotted version number from tool output,
// e.g. "cmake version 3.28.1" yields "3.28.1".
func ParseVersion(output string) string {
	return versionPattern.FindString(output)
}

func satisfies(version, floor string) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, err
	}
	c, err := semver.NewConstraint(">= " + floor)
	if err != nil {
		return false, err
	}
	return c.Check(v), nil
}
