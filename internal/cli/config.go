package cli

import (
	"fmt"
	"time"

	"github.com/scaffoldkit/scaffoldkit/internal/branding"
	"github.com/scaffoldkit/scaffoldkit/internal/config"
	"github.com/scaffoldkit/scaffoldkit/internal/errs"
	"github.com/spf13/cobra"
)

var knownConfigKeys = []string{
	config.KeyDependencyVersion,
	config.KeyDependencyMirror,
	config.KeyDownloadTimeout,
	config.KeyStageTimeout,
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage user settings",
	Long: fmt.Sprintf(`Read and write %s configuration stored at ~/%s/config.yaml.

Keys:
  %s    version provisioned when the template does not pin one
  %s     base URL replacing the dependency repository
  %s      limit on a single archive download (e.g. 2m)
  %s         default limit on each build stage (e.g. 10m)`,
		branding.DisplayName(), branding.HomeDir(),
		config.KeyDependencyVersion, config.KeyDependencyMirror,
		config.KeyDownloadTimeout, config.KeyStageTimeout),
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if !isKnownConfigKey(key) {
			return errs.Newf(errs.EUsage, "unknown config key %q", key)
		}
		if key == config.KeyDownloadTimeout || key == config.KeyStageTimeout {
			if d, err := time.ParseDuration(value); err != nil || d < 0 {
				return errs.Newf(errs.EUsage, "%s must be a non-negative duration such as 90s, got %q", key, value)
			}
		}
		if err := config.Set(key, value); err != nil {
			return fmt.Errorf("setting config key %q: %w", key, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isKnownConfigKey(args[0]) {
			return errs.Newf(errs.EUsage, "unknown config key %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), config.Get(args[0]))
		return nil
	},
}

func isKnownConfigKey(key string) bool {
	for _, k := range knownConfigKeys {
		if k == key {
			return true
		}
	}
	return false
}
