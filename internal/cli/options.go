package cli

import (
	"io"
	"strings"

	"github.com/scaffoldkit/scaffoldkit/internal/config"
	"github.com/scaffoldkit/scaffoldkit/internal/errs"
	"github.com/scaffoldkit/scaffoldkit/internal/provision"
)

// parseSets turns repeated --set key=value flags into overrides.
func parseSets(sets []string) (map[string]string, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	overrides := make(map[string]string, len(sets))
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errs.Newf(errs.EUsage, "--set expects key=value, got %q", s)
		}
		overrides[key] = value
	}
	return overrides, nil
}

func loadSettings() (config.Settings, error) {
	s, err := config.Current()
	if err != nil {
		return config.Settings{}, errs.Wrap(errs.EUsage, "invalid configuration in "+config.FilePath(), err)
	}
	return s, nil
}

// pinnedVersion returns the GoogleTest version the user asked for on the
// command line or in config/env, or "" to let the template decide.
func pinnedVersion(flag string) string {
	if flag != "" {
		return flag
	}
	if v, ok := config.Lookup(config.KeyDependencyVersion); ok {
		return v
	}
	return ""
}

func newProvisioner(s config.Settings, pinned string, progress io.Writer) *provision.Provisioner {
	opts := []provision.Option{
		provision.WithProgress(progress),
		provision.WithTimeout(s.DownloadTimeout),
	}
	if s.DependencyMirror != "" {
		opts = append(opts, provision.WithMirror(s.DependencyMirror))
	}
	if pinned != "" {
		opts = append(opts, provision.WithPinnedVersion(provision.GoogleTest().Name, pinned))
	}
	return provision.New(opts...)
}
