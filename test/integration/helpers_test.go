//go:build integration

package integration_test

import (
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// testEnv holds paths to isolated test directories.
type testEnv struct {
	HomeDir string // SCAFFOLDKIT_HOME, holds config.yaml
	WorkDir string // scenario work areas and generated projects
}

// setupTestEnv creates isolated temp directories and points SCAFFOLDKIT_HOME
// at one of them so the user's config is never read.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		HomeDir: t.TempDir(),
		WorkDir: t.TempDir(),
	}
	t.Setenv("SCAFFOLDKIT_HOME", env.HomeDir)
	return env
}

// requireToolchain skips unless cmake and a C++ compiler are on PATH.
func requireToolchain(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("cmake"); err != nil {
		t.Skip("cmake not found")
	}
	for _, cxx := range []string{"c++", "g++", "clang++"} {
		if _, err := exec.LookPath(cxx); err == nil {
			return
		}
	}
	t.Skip("no C++ compiler found")
}

// requireNetwork skips when github.com cannot be reached.
func requireNetwork(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "github.com:443", 5*time.Second)
	if err != nil {
		t.Skipf("github.com unreachable: %v", err)
	}
	conn.Close()
}

// templateDir returns the cpp-app template shipped with the repository.
func templateDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate test file")
	}
	dir := filepath.Join(filepath.Dir(file), "..", "..", "templates", "cpp-app")
	if _, err := os.Stat(filepath.Join(dir, "scaffold.yaml")); err != nil {
		t.Fatalf("template not found at %s: %v", dir, err)
	}
	return dir
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("expected file to exist: %s", path)
		return
	}
	if info.IsDir() {
		t.Errorf("expected file but got directory: %s", path)
	}
}

func assertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("expected directory to exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("expected directory but got file: %s", path)
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Errorf("%s not cleaned up: %d entries left", dir, len(entries))
	}
}
