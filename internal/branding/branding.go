// Package branding provides compile-time identity values for the CLI.
//
// branding.yaml is embedded with //go:embed; editing it and rebuilding is
// enough to rename the tool, its config directory and its env prefix.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName               string `yaml:"cli_name"`
	DisplayName           string `yaml:"display_name"`
	Description           string `yaml:"description"`
	HomeDir               string `yaml:"home_dir"`
	EnvPrefix             string `yaml:"env_prefix"`
	UserAgent             string `yaml:"user_agent"`
	DefaultDependencyRepo string `yaml:"default_dependency_repo"`
}

func load() {
	once.Do(func() {
		// Hard defaults in case the embedded file is missing or empty.
		defaults = brand{
			CLIName:               "scaffoldkit",
			DisplayName:           "ScaffoldKit",
			Description:           "Generate, provision and verify native project scaffolds",
			HomeDir:               ".scaffoldkit",
			EnvPrefix:             "SCAFFOLDKIT",
			UserAgent:             "scaffoldkit-provisioner",
			DefaultDependencyRepo: "https://github.com/google/googletest",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "scaffoldkit").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".scaffoldkit").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "SCAFFOLDKIT").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// UserAgent is sent with every archive download.
func UserAgent() string { load(); return defaults.UserAgent }

// DefaultDependencyRepo is the repository provisioned when a template
// manifest names a dependency without a repo URL.
func DefaultDependencyRepo() string { load(); return defaults.DefaultDependencyRepo }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("home") → "SCAFFOLDKIT_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
