package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskforge-labs/taskforge/internal/branding"
	"github.com/taskforge-labs/taskforge/internal/extension"
	"github.com/taskforge-labs/taskforge/internal/resolver"
	"github.com/taskforge-labs/taskforge/internal/task"
)

// Exit codes for failures raised before or around a task.
const (
	ExitFailure       = 1
	ExitConfigError   = 2
	ExitExtensionLoad = 3
	ExitUnknownTask   = 4
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var (
	flagConfig   string
	flagNetwork  string
	flagVerbose  bool
	flagLogLevel string
	flagSet      []string
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` compiles, tests and deploys smart contract projects.

Every project command resolves ` + branding.ProjectFile() + `.yaml for the selected network,
loads the extensions it lists and runs one task. Extensions decide what a task does.

Report issues at https://github.com/` + branding.GitHubRepo() + `/issues.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Project file (default: search upward for "+branding.ProjectFile()+".yaml)")
	pf.StringVarP(&flagNetwork, "network", "n", "", "Network to resolve the configuration for")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringArrayVar(&flagSet, "set", nil, "Override a setting for the selected network, key=value (repeatable)")
}

// Execute runs the root command with build info injected via ldflags.
// Interrupts cancel the context handed to the running task.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// ExitCode maps an error returned by Execute to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	// A failed task may wrap an unknown nested task; its own code wins.
	var te *task.TaskExecutionError
	if errors.As(err, &te) {
		return te.ExitCode
	}
	var ue *task.UnknownTaskError
	if errors.As(err, &ue) {
		return ExitUnknownTask
	}
	var le *extension.ExtensionLoadError
	if errors.As(err, &le) {
		return ExitExtensionLoad
	}
	var ce *resolver.ConfigError
	if errors.As(err, &ce) {
		return ExitConfigError
	}
	return ExitFailure
}
