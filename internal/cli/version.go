package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/scaffoldkit/scaffoldkit/internal/branding"
	"github.com/scaffoldkit/scaffoldkit/internal/config"
	"github.com/scaffoldkit/scaffoldkit/internal/provision"
	"github.com/spf13/cobra"
)

var (
	versionShort bool
	versionJSON  bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print version number only")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version info as JSON")
	rootCmd.AddCommand(versionCmd)
}

// versionInfo is the build identity plus the provisioning defaults the
// binary resolves with the current configuration.
type versionInfo struct {
	Version    string         `json:"version"`
	Commit     string         `json:"commit"`
	Date       string         `json:"date"`
	GoVersion  string         `json:"go_version"`
	Dependency dependencyInfo `json:"dependency"`
	ConfigFile string         `json:"config_file"`
}

type dependencyInfo struct {
	Name    string `json:"name"`
	Repo    string `json:"repo"`
	Subdir  string `json:"subdir"`
	Version string `json:"version"`
	Mirror  string `json:"mirror,omitempty"`
	Archive string `json:"archive"`
}

func currentVersionInfo(s config.Settings) (versionInfo, error) {
	p := newProvisioner(s, "", io.Discard)
	src, err := p.Resolve(s.DependencyVersion)
	if err != nil {
		return versionInfo{}, err
	}
	dep := p.Dependency()
	return versionInfo{
		Version:   buildVersion,
		Commit:    buildCommit,
		Date:      buildDate,
		GoVersion: runtime.Version(),
		Dependency: dependencyInfo{
			Name:    dep.Name,
			Repo:    dep.Repo,
			Subdir:  dep.Subdir,
			Version: src.Version,
			Mirror:  s.DependencyMirror,
			Archive: src.URL,
		},
		ConfigFile: config.FilePath(),
	}, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information and provisioning defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if versionShort {
			fmt.Fprintln(out, buildVersion)
			return nil
		}

		settings, err := loadSettings()
		if err != nil {
			return err
		}
		info, err := currentVersionInfo(settings)
		if err != nil {
			return err
		}

		if versionJSON {
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling version info: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		fmt.Fprintf(out, "%s version %s (commit: %s, built: %s, %s)\n",
			branding.CLIName(), info.Version, info.Commit, info.Date, info.GoVersion)
		fmt.Fprintf(out, "  dependency: %s (%s, subdir %s)\n", info.Dependency.Name, info.Dependency.Repo, info.Dependency.Subdir)
		fmt.Fprintf(out, "  version:    %s\n", describeVersion(info.Dependency.Version))
		fmt.Fprintf(out, "  archive:    %s\n", info.Dependency.Archive)
		fmt.Fprintf(out, "  config:     %s\n", info.ConfigFile)
		return nil
	},
}

func describeVersion(v string) string {
	if v == provision.Latest {
		return v + " (default branch tip)"
	}
	return v
}
