package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scaffoldkit/scaffoldkit/internal/errs"
	"go.yaml.in/yaml/v3"
)

// LoadTemplate reads, validates and decodes <templateDir>/scaffold.yaml.
// Schema violations are reported as E_INVALID_MANIFEST with every issue
// listed in the message.
func LoadTemplate(templateDir string) (*TemplateManifest, error) {
	path := filepath.Join(templateDir, TemplateFileName)
	data, err := readFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.EInvalidManifest, "reading template manifest", err)
	}
	if err := validateOrError(KindTemplate, path, data); err != nil {
		return nil, err
	}

	m, err := parseTyped[TemplateManifest](data, path)
	if err != nil {
		return nil, errs.Wrap(errs.EInvalidManifest, "decoding template manifest", err)
	}
	for i := range m.Dependencies {
		if m.Dependencies[i].Subdir == "" {
			m.Dependencies[i].Subdir = DefaultSubdirName
		}
	}
	return m, nil
}

// LoadScenarios reads <templateDir>/scenarios.yaml. It returns (nil, nil)
// when the template ships no scenario file.
func LoadScenarios(templateDir string) (*ScenarioFile, error) {
	path := filepath.Join(templateDir, ScenarioFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.EInvalidManifest, "reading scenario file", err)
	}
	if err := validateOrError(KindScenarios, path, data); err != nil {
		return nil, err
	}

	f, err := parseTyped[ScenarioFile](data, path)
	if err != nil {
		return nil, errs.Wrap(errs.EInvalidManifest, "decoding scenario file", err)
	}

	seen := make(map[string]bool, len(f.Scenarios))
	for _, sc := range f.Scenarios {
		if seen[sc.Name] {
			return nil, errs.Newf(errs.EInvalidManifest, "%s: duplicate scenario %q", path, sc.Name)
		}
		seen[sc.Name] = true
	}
	return f, nil
}

func validateOrError(kind Kind, path string, data []byte) error {
	result, err := Validate(kind, data)
	if err != nil {
		return errs.Wrap(errs.EInvalidManifest, "validating "+path, err)
	}
	if result.Valid {
		return nil
	}
	msgs := make([]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		msgs = append(msgs, issue.String())
	}
	return errs.Newf(errs.EInvalidManifest, "%s is invalid: %s", path, strings.Join(msgs, "; "))
}

// parseTyped unmarshals YAML data into a typed struct.
func parseTyped[T any](data []byte, path string) (*T, error) {
	var m T
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &m, nil
}

// readFile reads the contents of a file at the given path.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}
