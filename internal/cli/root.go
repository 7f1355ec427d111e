package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/scaffoldkit/scaffoldkit/internal/branding"
	"github.com/scaffoldkit/scaffoldkit/internal/config"
	"github.com/scaffoldkit/scaffoldkit/internal/errs"
	"github.com/spf13/cobra"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

// commandStarted is set once flag and argument parsing succeeded, so
// errors raised before that point can be reported as usage errors.
var commandStarted bool

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` renders C++ project templates, provisions their test
dependencies (GoogleTest by default) and verifies that the generated
projects configure, build, run and install.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		commandStarted = true
		config.Load()
	},
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errs.Wrap(errs.EUsage, "invalid flags for "+cmd.CommandPath(), err)
	})
}

// Execute runs the root command with build info injected via ldflags.
// SIGINT and SIGTERM cancel the running command's context.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx)
}

func execute(ctx context.Context) error {
	commandStarted = false
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	if errs.GetCode(err) == "" {
		if !commandStarted {
			return errs.Wrap(errs.EUsage, "invalid command line", err)
		}
		if errors.Is(err, context.Canceled) {
			return errs.Wrap(errs.EInternal, "interrupted", err)
		}
	}
	return err
}
