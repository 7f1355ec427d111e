package scenario

import "github.com/scaffoldkit/scaffoldkit/internal/verify"

// Defaults returns the built-in CMake scenarios used when a template ships
// no scenarios.yaml. Paths are templates over the project context, so the
// executable names follow {{ .app_name }}.
func Defaults() []Scenario {
	configure := verify.Stage{
		Name:    "configure",
		Kind:    verify.Configure,
		Command: "cmake",
		Args:    []string{"-S", ".", "-B", "build", "-DCMAKE_BUILD_TYPE=Debug"},
	}
	build := verify.Stage{
		Name:    "build",
		Kind:    verify.Build,
		Command: "cmake",
		Args:    []string{"--build", "build"},
	}

	return []Scenario{
		{
			Name:        "smoke",
			Description: "configure, build, run the app with -h and the unit tests",
			Stages: []verify.Stage{
				configure,
				build,
				{
					Name:    "help",
					Kind:    verify.Run,
					Command: "build/src/{{ .app_name }}",
					Args:    []string{"-h"},
				},
				{
					Name:    "unit-tests",
					Kind:    verify.UnitTest,
					Command: "build/test/unit/test_{{ .app_name }}",
				},
			},
		},
		{
			Name:        "install",
			Description: "install into a prefix and check the installed layout",
			Stages: []verify.Stage{
				configure,
				build,
				{
					Name:    "install",
					Kind:    verify.Install,
					Command: "cmake",
					Args:    []string{"--install", "build", "--prefix", "{{ .install_prefix }}"},
					Post: []verify.Condition{
						{Kind: verify.Executable, Path: "{{ .install_prefix }}/bin/{{ .app_name }}"},
						{Kind: verify.NonEmpty, Path: "{{ .install_prefix }}/etc/config.toml"},
					},
				},
			},
		},
		{
			Name:        "docs",
			Description: "build the documentation target",
			Stages: []verify.Stage{
				configure,
				{
					Name:    "docs",
					Kind:    verify.Docs,
					Command: "cmake",
					Args:    []string{"--build", "build", "--target", "docs"},
					Post: []verify.Condition{
						{Kind: verify.NonEmpty, Path: "build/docs/html"},
					},
				},
			},
		},
	}
}
