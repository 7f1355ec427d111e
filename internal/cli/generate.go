package cli

import (
	"fmt"

	"github.com/scaffoldkit/scaffoldkit/internal/provision"
	"github.com/scaffoldkit/scaffoldkit/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	generateOutputDir   string
	generateSets        []string
	generateGtest       string
	generateNoProvision bool
)

func init() {
	generateCmd.Flags().StringVarP(&generateOutputDir, "output-dir", "o", ".", "Directory that receives the generated project")
	generateCmd.Flags().StringArrayVar(&generateSets, "set", nil, "Override a template variable (key=value, repeatable)")
	generateCmd.Flags().StringVar(&generateGtest, "gtest-version", "", "GoogleTest release tag, or \"latest\" (default: the template's choice)")
	generateCmd.Flags().BoolVar(&generateNoProvision, "no-provision", false, "Skip downloading template dependencies")
	rootCmd.AddCommand(generateCmd)
}

var generateCmd = &cobra.Command{
	Use:   "generate <template>",
	Short: "Render a project from a template",
	Long: `Render a project from a local template directory or a git URL, then
provision the dependencies the template declares.

Examples:
  scaffoldkit generate ./templates/cpp-app
  scaffoldkit generate gh:acme/cpp-template#v2 --set app_name=demo -o ~/src
  scaffoldkit generate ./templates/cpp-app --gtest-version v1.14.0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := parseSets(generateSets)
		if err != nil {
			return err
		}
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		var hooks []scaffold.HookFunc
		if !generateNoProvision {
			p := newProvisioner(settings, pinnedVersion(generateGtest), cmd.ErrOrStderr())
			hooks = append(hooks, provision.Hook(p))
		}

		result, err := scaffold.NewGenerator(hooks...).Render(cmd.Context(), args[0], overrides, generateOutputDir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Generated %s (%d files)\n", result.ProjectDir, len(result.Files))
		for _, dep := range result.Manifest.Dependencies {
			if generateNoProvision {
				fmt.Fprintf(out, "  skipped %s (run '%s provision' later)\n", dep.Name, cmd.Root().Name())
				continue
			}
			fmt.Fprintf(out, "  %s -> %s\n", dep.Name, dep.Destination)
		}
		return nil
	},
}
