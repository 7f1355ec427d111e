package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/scaffoldkit/scaffoldkit/internal/errs"
	"github.com/scaffoldkit/scaffoldkit/internal/scenario"
	"github.com/scaffoldkit/scaffoldkit/internal/verify"
)

// runCLI executes the root command with args and captures its output.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SCAFFOLDKIT_HOME", t.TempDir())

	generateOutputDir, generateSets, generateGtest, generateNoProvision = ".", nil, "", false
	provisionVersion, provisionDest, provisionRepo, provisionSubdir, provisionSHA256 = "", "test/lib/gtest", "", "googletest", ""
	verifyScenarios, verifySets, verifyGtest, verifyStream, verifyKeepGoing = nil, nil, "", false, true
	versionShort, versionJSON = false, false
	doctorOffline, doctorTemplate = false, ""

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := execute(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeTemplate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "scaffold.yaml"), `name: cpp-app
context:
  app_name: hello
  gtest_version: v1.14.0
dependencies:
  - name: googletest
    version_key: gtest_version
    destination: test/lib/gtest
`)
	writeFile(t, filepath.Join(root, "{{ .app_name }}", "CMakeLists.txt"), "project({{ .app_name }})\n")
	writeFile(t, filepath.Join(root, "{{ .app_name }}", "src", "main.cpp"), "// {{ .app_name }}\n")
	return root
}

func gtestServer(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("googletest-1.14.0/googletest/include/gtest/gtest.h")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("#pragma once\n"))
	zw.Close()
	body := buf.Bytes()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gt/archive/refs/tags/v1.14.0.zip" {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func assertExit(t *testing.T, err error, want int) {
	t.Helper()
	if got := errs.ExitCode(err); got != want {
		t.Fatalf("exit code = %d, want %d (err: %v)", got, want, err)
	}
}

func TestVersionShort(t *testing.T) {
	buildVersion = "1.2.3"
	stdout, _, err := runCLI(t, "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != "1.2.3" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestVersionShowsDefaults(t *testing.T) {
	buildVersion = "1.2.3"
	stdout, _, err := runCLI(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"scaffoldkit version 1.2.3",
		"dependency: googletest (https://github.com/google/googletest, subdir googletest)",
		"version:    latest (default branch tip)",
		"archive:    https://github.com/google/googletest/archive/refs/heads/main.zip",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestVersionJSONHonorsConfig(t *testing.T) {
	t.Setenv("SCAFFOLDKIT_DEPENDENCY_VERSION", "v1.14.0")
	t.Setenv("SCAFFOLDKIT_DEPENDENCY_MIRROR", "https://mirror.example/gt")
	stdout, _, err := runCLI(t, "version", "--json")
	if err != nil {
		t.Fatal(err)
	}

	var info versionInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("decoding %q: %v", stdout, err)
	}
	if info.Dependency.Version != "v1.14.0" {
		t.Errorf("dependency version = %q", info.Dependency.Version)
	}
	if info.Dependency.Archive != "https://mirror.example/gt/archive/refs/tags/v1.14.0.zip" {
		t.Errorf("archive = %q", info.Dependency.Archive)
	}
	if info.GoVersion == "" || info.ConfigFile == "" {
		t.Errorf("info = %+v", info)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"frobnicate"}},
		{"missing template", []string{"generate"}},
		{"unknown flag", []string{"generate", "x", "--bogus"}},
		{"bad set", []string{"generate", "x", "--set", "novalue"}},
		{"unknown config key", []string{"config", "get", "nope"}},
		{"bad duration", []string{"config", "set", "stage_timeout", "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args...)
			assertExit(t, err, 2)
		})
	}
}

func TestConfigSetGet(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SCAFFOLDKIT_HOME", home)

	rootCmd.SetArgs([]string{"config", "set", "dependency.version", "v1.13.0"})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	if err := execute(context.Background()); err != nil {
		t.Fatalf("config set: %v", err)
	}

	out.Reset()
	rootCmd.SetArgs([]string{"config", "get", "dependency.version"})
	if err := execute(context.Background()); err != nil {
		t.Fatalf("config get: %v", err)
	}
	if strings.TrimSpace(out.String()) != "v1.13.0" {
		t.Errorf("config get = %q", out.String())
	}
}

func TestGenerateNoProvision(t *testing.T) {
	tmpl := writeTemplate(t)
	out := t.TempDir()

	stdout, _, err := runCLI(t, "generate", tmpl, "-o", out, "--no-provision", "--set", "app_name=demo")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "demo", "src", "main.cpp")); err != nil {
		t.Errorf("main.cpp not generated: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "demo", "test", "lib", "gtest")); !os.IsNotExist(err) {
		t.Error("gtest provisioned despite --no-provision")
	}
	if !strings.Contains(stdout, "skipped googletest") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestGenerateProvisionsFromMirror(t *testing.T) {
	server := gtestServer(t)
	tmpl := writeTemplate(t)
	out := t.TempDir()

	t.Setenv("SCAFFOLDKIT_DEPENDENCY_MIRROR", server.URL+"/gt")
	stdout, _, err := runCLI(t, "generate", tmpl, "-o", out)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	header := filepath.Join(out, "hello", "test", "lib", "gtest", "include", "gtest", "gtest.h")
	if _, err := os.Stat(header); err != nil {
		t.Errorf("gtest.h not provisioned: %v", err)
	}
	if !strings.Contains(stdout, "googletest -> test/lib/gtest") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestGenerateFetchFailureRemovesProject(t *testing.T) {
	server := gtestServer(t)
	tmpl := writeTemplate(t)
	out := t.TempDir()

	t.Setenv("SCAFFOLDKIT_DEPENDENCY_MIRROR", server.URL+"/gt")
	_, _, err := runCLI(t, "generate", tmpl, "-o", out, "--gtest-version", "v0.0.1")
	if !errs.Is(err, errs.EFetch) {
		t.Fatalf("err = %v, want E_FETCH", err)
	}
	assertExit(t, err, 1)
	if _, err := os.Stat(filepath.Join(out, "hello")); !os.IsNotExist(err) {
		t.Error("project directory left behind after failed provisioning")
	}
}

func TestProvisionCommand(t *testing.T) {
	server := gtestServer(t)
	project := t.TempDir()

	t.Setenv("SCAFFOLDKIT_DEPENDENCY_MIRROR", server.URL+"/gt")
	stdout, _, err := runCLI(t, "provision", project, "--version", "v1.14.0")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if _, err := os.Stat(filepath.Join(project, "test", "lib", "gtest", "include", "gtest", "gtest.h")); err != nil {
		t.Errorf("gtest.h not installed: %v", err)
	}
	if !strings.Contains(stdout, "Provisioned googletest v1.14.0") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRenderReports(t *testing.T) {
	failErr := errs.WrapWithDetails(errs.EStageFailed, "stage build exited with status 2", nil, nil)
	reports := []*scenario.Report{
		{
			Scenario: "smoke",
			Phase:    scenario.PhaseDone,
			Duration: 1500 * time.Millisecond,
			Verification: &verify.Result{Planned: 1, Stages: []verify.StageResult{
				{Stage: verify.Stage{Name: "configure", Kind: verify.Configure}},
			}},
		},
		{
			Scenario: "install",
			Phase:    scenario.PhaseVerify,
			Err:      failErr,
			Verification: &verify.Result{Planned: 3, Stages: []verify.StageResult{
				{Stage: verify.Stage{Name: "configure", Kind: verify.Configure}},
				{Stage: verify.Stage{Name: "build", Kind: verify.Build}, ExitCode: 2, Output: "line1\nerror: boom\n", Err: failErr},
			}},
		},
	}

	var buf bytes.Buffer
	renderReports(&buf, reports)
	out := buf.String()

	for _, want := range []string{
		"PASS", "smoke", "FAIL", "install",
		"E_STAGE_FAILED", "error: boom",
		"1 stage(s) not run",
		"1/2 scenarios passed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestParseSets(t *testing.T) {
	got, err := parseSets([]string{"a=1", "b=x=y", "c="})
	if err != nil {
		t.Fatal(err)
	}
	if got["a"] != "1" || got["b"] != "x=y" || got["c"] != "" {
		t.Errorf("parseSets = %v", got)
	}
}

func TestTail(t *testing.T) {
	if got := tail("a\nb\nc\n", 2); got != "b\nc" {
		t.Errorf("tail = %q", got)
	}
}
