package cli

import (
	"fmt"
	"path/filepath"

	"github.com/scaffoldkit/scaffoldkit/internal/provision"
	"github.com/spf13/cobra"
)

var (
	provisionVersion string
	provisionDest    string
	provisionRepo    string
	provisionSubdir  string
	provisionSHA256  string
)

func init() {
	provisionCmd.Flags().StringVar(&provisionVersion, "version", "", "Release tag to install, or \"latest\" (default: dependency.version config)")
	provisionCmd.Flags().StringVar(&provisionDest, "dest", "test/lib/gtest", "Destination relative to the project directory")
	provisionCmd.Flags().StringVar(&provisionRepo, "repo", "", "Repository to fetch (default: GoogleTest)")
	provisionCmd.Flags().StringVar(&provisionSubdir, "subdir", "googletest", "Directory inside the archive to install")
	provisionCmd.Flags().StringVar(&provisionSHA256, "sha256", "", "Expected sha256 of the archive")
	rootCmd.AddCommand(provisionCmd)
}

var provisionCmd = &cobra.Command{
	Use:   "provision [project-dir]",
	Short: "Install GoogleTest into an existing project",
	Long: `Download a GoogleTest archive and install its googletest/ tree into the
project, replacing whatever the destination held before.

Examples:
  scaffoldkit provision                       # latest into ./test/lib/gtest
  scaffoldkit provision ./hello --version v1.14.0`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		projectDir := "."
		if len(args) == 1 {
			projectDir = args[0]
		}
		version := provisionVersion
		if version == "" {
			version = settings.DependencyVersion
		}

		dep := provision.GoogleTest()
		if provisionRepo != "" {
			dep.Repo = provisionRepo
			dep.Name = ""
		}
		dep.Subdir = provisionSubdir
		dep.SHA256 = provisionSHA256

		dest := provisionDest
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(projectDir, filepath.FromSlash(dest))
		}

		p := newProvisioner(settings, "", cmd.ErrOrStderr()).For(dep)
		if err := p.Provision(cmd.Context(), version, dest); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Provisioned %s %s into %s\n", p.Dependency().Name, version, dest)
		return nil
	},
}
