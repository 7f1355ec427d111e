package cli

import (
	"fmt"

	"github.com/scaffoldkit/scaffoldkit/internal/doctor"
	"github.com/spf13/cobra"
)

var (
	doctorOffline  bool
	doctorTemplate string
)

// newChecker is swapped in tests.
var newChecker = doctor.New

func init() {
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "Skip the dependency download check")
	doctorCmd.Flags().StringVar(&doctorTemplate, "check-template", "", "Also validate the template directory at the given path")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that this machine can build and verify generated projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		c := newChecker()
		report := c.CheckTools(cmd.Context(), w, doctor.DefaultTools())

		if !doctorOffline {
			src, err := newProvisioner(settings, "", w).Resolve(settings.DependencyVersion)
			if err != nil {
				return err
			}
			report.Add(c.CheckURL(cmd.Context(), w, src.URL))
		}

		if doctorTemplate != "" {
			report.Add(doctor.CheckTemplate(w, doctorTemplate))
		}

		if !report.OK() {
			return fmt.Errorf("%d required check(s) failed", report.Failures)
		}
		fmt.Fprintf(w, "All required checks passed (%d warning(s))\n", report.Warnings)
		return nil
	},
}
