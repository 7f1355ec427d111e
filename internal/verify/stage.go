package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scaffoldkit/scaffoldkit/internal/errs"
	"github.com/scaffoldkit/scaffoldkit/internal/manifest"
)

// Kind is the lifecycle step a stage belongs to.
type Kind int

const (
	Configure Kind = iota
	Build
	Run
	UnitTest
	Docs
	Install
)

var kindNames = []string{"configure", "build", "run", "unit-test", "docs", "install"}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps the manifest spelling of a kind back to a Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage kind %q", s)
}

// ConditionKind selects the filesystem check a Condition performs.
type ConditionKind int

const (
	Exists ConditionKind = iota
	NonEmpty
	Executable
)

func (k ConditionKind) String() string {
	switch k {
	case Exists:
		return "exists"
	case NonEmpty:
		return "non_empty"
	case Executable:
		return "executable"
	}
	return fmt.Sprintf("condition(%d)", int(k))
}

// Condition is a post-condition checked after a stage exits 0. Path is
// relative to the project root unless absolute.
type Condition struct {
	Kind ConditionKind
	Path string
}

// Check reports whether the condition holds for the resolved path.
func (c Condition) Check(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s does not exist", path)
	}
	switch c.Kind {
	case Exists:
		return nil
	case NonEmpty:
		if info.IsDir() {
			entries, err := os.ReadDir(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			if len(entries) == 0 {
				return fmt.Errorf("directory %s is empty", path)
			}
			return nil
		}
		if info.Size() == 0 {
			return fmt.Errorf("file %s is empty", path)
		}
		return nil
	case Executable:
		if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
			return fmt.Errorf("%s is not an executable file", path)
		}
		return nil
	}
	return fmt.Errorf("unknown condition %s", c.Kind)
}

// Stage is one step of a verification run.
type Stage struct {
	Name    string
	Kind    Kind
	Command string
	Args    []string
	Dir     string            // relative to the project root
	Env     map[string]string // added to the inherited environment
	Timeout time.Duration     // zero means the harness default
	Post    []Condition
}

func (s Stage) String() string {
	return strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
}

// FromSpec converts a stage read from scenarios.yaml. A stage without a
// kind is treated as a build step.
func FromSpec(spec manifest.StageSpec) (Stage, error) {
	st := Stage{
		Name:    spec.Name,
		Kind:    Build,
		Command: spec.Command,
		Args:    append([]string(nil), spec.Args...),
		Dir:     filepath.FromSlash(spec.Dir),
	}
	if spec.Kind != "" {
		k, err := ParseKind(spec.Kind)
		if err != nil {
			return Stage{}, errs.Wrap(errs.EInvalidManifest, "stage "+spec.Name, err)
		}
		st.Kind = k
	}
	if len(spec.Env) > 0 {
		st.Env = make(map[string]string, len(spec.Env))
		for k, v := range spec.Env {
			st.Env[k] = v
		}
	}
	if spec.Timeout != "" {
		d, err := time.ParseDuration(spec.Timeout)
		if err != nil || d <= 0 {
			return Stage{}, errs.Newf(errs.EInvalidManifest, "stage %s: invalid timeout %q", spec.Name, spec.Timeout)
		}
		st.Timeout = d
	}
	for _, c := range spec.Post {
		switch {
		case c.Exists != "":
			st.Post = append(st.Post, Condition{Kind: Exists, Path: c.Exists})
		case c.NonEmpty != "":
			st.Post = append(st.Post, Condition{Kind: NonEmpty, Path: c.NonEmpty})
		case c.Executable != "":
			st.Post = append(st.Post, Condition{Kind: Executable, Path: c.Executable})
		default:
			return Stage{}, errs.Newf(errs.EInvalidManifest, "stage %s: empty post-condition", spec.Name)
		}
	}
	return st, nil
}

// FromSpecs converts every stage, stopping at the first invalid one.
func FromSpecs(specs []manifest.StageSpec) ([]Stage, error) {
	stages := make([]Stage, 0, len(specs))
	for _, spec := range specs {
		st, err := FromSpec(spec)
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return stages, nil
}
