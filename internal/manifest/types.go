package manifest

import (
	"fmt"

	"go.yaml.in/yaml/v3"
)

// File names looked up at the root of a template directory.
const (
	TemplateFileName  = "scaffold.yaml"
	ScenarioFileName  = "scenarios.yaml"
	DefaultSubdirName = "googletest"
)

// TemplateManifest is the decoded scaffold.yaml of a project template.
type TemplateManifest struct {
	Name              string       `yaml:"name" json:"name"`
	Description       string       `yaml:"description,omitempty" json:"description,omitempty"`
	Context           yaml.Node    `yaml:"context" json:"-"`
	CopyWithoutRender []string     `yaml:"copy_without_render,omitempty" json:"copy_without_render,omitempty"`
	Exclude           []string     `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Dependencies      []Dependency `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// ContextEntry is one default from the context block, in file order.
type ContextEntry struct {
	Key   string
	Value string
}

// ContextEntries returns the context defaults in the order they appear in
// the file. Later values may reference earlier keys, so order matters.
func (m *TemplateManifest) ContextEntries() ([]ContextEntry, error) {
	node := &m.Context
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("context must be a mapping")
	}

	entries := make([]ContextEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("context key %q: value must be a scalar", k.Value)
		}
		entries = append(entries, ContextEntry{Key: k.Value, Value: val.Value})
	}
	return entries, nil
}

// Dependency is a third-party source tree provisioned into each generated
// project after rendering.
type Dependency struct {
	Name        string `yaml:"name" json:"name"`
	Repo        string `yaml:"repo,omitempty" json:"repo,omitempty"`
	Subdir      string `yaml:"subdir,omitempty" json:"subdir,omitempty"`
	VersionKey  string `yaml:"version_key" json:"version_key"`
	Destination string `yaml:"destination" json:"destination"`
	SHA256      string `yaml:"sha256,omitempty" json:"sha256,omitempty"`
}

// ScenarioFile is the decoded scenarios.yaml of a project template.
type ScenarioFile struct {
	Scenarios []ScenarioSpec `yaml:"scenarios" json:"scenarios"`
}

// ScenarioSpec declares one generate-then-verify run.
type ScenarioSpec struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Overrides   map[string]string `yaml:"overrides,omitempty" json:"overrides,omitempty"`
	Expect      ExpectSpec        `yaml:"expect,omitempty" json:"expect,omitempty"`
	Stages      []StageSpec       `yaml:"stages" json:"stages"`
}

// ExpectSpec is the structural expectation on the generated tree's top level.
type ExpectSpec struct {
	Entries []string `yaml:"entries,omitempty" json:"entries,omitempty"`
	Count   int      `yaml:"count,omitempty" json:"count,omitempty"`
}

// StageSpec is the YAML form of a verification stage.
type StageSpec struct {
	Name    string            `yaml:"name" json:"name"`
	Kind    string            `yaml:"kind,omitempty" json:"kind,omitempty"`
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Dir     string            `yaml:"dir,omitempty" json:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Timeout string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Post    []ConditionSpec   `yaml:"post,omitempty" json:"post,omitempty"`
}

// ConditionSpec holds exactly one of its fields.
type ConditionSpec struct {
	Exists     string `yaml:"exists,omitempty" json:"exists,omitempty"`
	NonEmpty   string `yaml:"non_empty,omitempty" json:"non_empty,omitempty"`
	Executable string `yaml:"executable,omitempty" json:"executable,omitempty"`
}
