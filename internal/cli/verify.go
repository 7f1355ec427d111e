package cli

import (
	"io"

	"github.com/scaffoldkit/scaffoldkit/internal/scaffold"
	"github.com/scaffoldkit/scaffoldkit/internal/scenario"
	"github.com/scaffoldkit/scaffoldkit/internal/verify"
	"github.com/spf13/cobra"
)

var (
	verifyScenarios []string
	verifySets      []string
	verifyGtest     string
	verifyStream    bool
	verifyKeepGoing bool
)

func init() {
	verifyCmd.Flags().StringArrayVar(&verifyScenarios, "scenario", nil, "Run only the named scenario (repeatable)")
	verifyCmd.Flags().StringArrayVar(&verifySets, "set", nil, "Override a template variable in every scenario (key=value)")
	verifyCmd.Flags().StringVar(&verifyGtest, "gtest-version", "", "GoogleTest version used by every scenario")
	verifyCmd.Flags().BoolVarP(&verifyStream, "verbose", "v", false, "Stream build output while stages run")
	verifyCmd.Flags().BoolVar(&verifyKeepGoing, "keep-going", true, "Run remaining scenarios after a failure")
	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify <template>",
	Short: "Generate throwaway projects and check that they build",
	Long: `Run the template's verification scenarios. Each scenario renders the
template into a temporary directory, provisions its dependencies, checks the
top-level layout and runs the configure/build/run/test/install stages. The
temporary directory is removed afterwards.

Scenarios come from the template's scenarios.yaml, or the built-in smoke,
install and docs scenarios when the template has none.

Examples:
  scaffoldkit verify ./templates/cpp-app
  scaffoldkit verify ./templates/cpp-app --scenario smoke -v`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		template := args[0]
		overrides, err := parseSets(verifySets)
		if err != nil {
			return err
		}
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		all, err := scenario.Discover(cmd.Context(), template, "")
		if err != nil {
			return err
		}
		selected, err := scenario.Select(all, verifyScenarios)
		if err != nil {
			return err
		}
		for i := range selected {
			selected[i].Overrides = mergeOverrides(selected[i].Overrides, overrides)
		}

		stream := io.Discard
		if verifyStream {
			stream = cmd.ErrOrStderr()
		}
		driver := &scenario.Driver{
			Renderer:    scaffold.NewGenerator(),
			Provisioner: newProvisioner(settings, pinnedVersion(verifyGtest), stream),
			Harness: &verify.Harness{
				Stdout:  stream,
				Stderr:  stream,
				Timeout: settings.StageTimeout,
			},
			Stdout: cmd.ErrOrStderr(),
		}

		var reports []*scenario.Report
		var firstErr error
		if verifyKeepGoing {
			reports, firstErr = driver.RunAll(cmd.Context(), template, selected)
		} else {
			for _, sc := range selected {
				report, err := driver.Run(cmd.Context(), template, sc)
				reports = append(reports, report)
				if err != nil {
					firstErr = err
					break
				}
			}
		}

		renderReports(cmd.OutOrStdout(), reports)
		return firstErr
	},
}

// mergeOverrides layers the command-line overrides over a scenario's own.
func mergeOverrides(base, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return base
	}
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
