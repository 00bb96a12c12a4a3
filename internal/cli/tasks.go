package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/taskforge-labs/taskforge/internal/branding"
	"github.com/taskforge-labs/taskforge/internal/project"
)

func init() {
	compileCmd.Flags().Bool("force", false, "Recompile even when no source changed")
	compileCmd.Flags().Bool("quiet", false, "Do not print a summary")
	cleanCmd.Flags().Bool("global", false, "Also remove downloaded compilers")

	rootCmd.AddCommand(compileCmd, runCmd, nodeCmd, testCmd, cleanCmd, consoleCmd, flattenCmd, checkCmd, taskCmd, tasksCmd)
	rootCmd.SetHelpCommand(helpCmd)
}

// taskCommand builds a command that runs the task of the same name. Flags
// set on the command itself are handed to the hook ahead of the arguments.
func taskCommand(use, short, long string, args cobra.PositionalArgs) *cobra.Command {
	name, _, _ := strings.Cut(use, " ")
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd, name, append(forwardedFlags(cmd), args...))
		},
	}
}

// forwardedFlags renders the command's changed local flags as hook args.
func forwardedFlags(cmd *cobra.Command) []string {
	var out []string
	cmd.LocalNonPersistentFlags().Visit(func(f *pflag.Flag) {
		out = append(out, "--"+f.Name+"="+f.Value.String())
	})
	return out
}

// runTask is the shared resolve, load and run pipeline.
func runTask(cmd *cobra.Command, name string, args []string) error {
	s, err := sessionFor(cmd.Context())
	if err != nil {
		return err
	}
	return s.run(cmd.Context(), name, args)
}

var compileCmd = taskCommand("compile", "Compile the entire project, building all artifacts",
	`Compile every source under paths.sources with the solc build matching
targetVersion. Unchanged projects are skipped unless --force is given.`,
	cobra.NoArgs)

var runCmd = taskCommand("run <script> [args...]", "Run a user-defined script after compiling the project",
	`Compile the project, then run a node script with the resolved configuration
exported as `+branding.EnvVar("NETWORK")+`, `+branding.EnvVar("TARGET_VERSION")+` and `+branding.EnvVar("CONFIG")+`.
Put script arguments that start with "-" after "--", as in
"run scripts/deploy.js -- --dry".`,
	cobra.MinimumNArgs(1))

var nodeCmd = taskCommand("node [args...]", "Start a local development chain",
	`Start the command configured under node.command (default "anvil"), run by
the runtime named in node.runtime ("binary" or "node"). Arguments for the
chain that start with "-" go after "--".`,
	cobra.ArbitraryArgs)

var testCmd = taskCommand("test [files...]", "Run mocha tests",
	`Compile the project, then run the test files (default: everything under
paths.tests) with mocha. Mocha options such as --grep go after "--".`,
	cobra.ArbitraryArgs)

var cleanCmd = taskCommand("clean", "Clear the cache and delete all artifacts", "",
	cobra.NoArgs)

var consoleCmd = taskCommand("console", "Open an interactive node console", "",
	cobra.NoArgs)

var flattenCmd = taskCommand("flatten [files...]", "Flatten and print contracts and their dependencies", "",
	cobra.ArbitraryArgs)

var checkCmd = taskCommand("check", "Check that sources parse and imports resolve", "",
	cobra.NoArgs)

var taskCmd = &cobra.Command{
	Use:   "task <name> [args...]",
	Short: "Run any registered task",
	Long: `Run a task by name, including tasks added by extensions (e.g. deploy).
Arguments after "--" are passed to the task untouched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTask(cmd, args[0], args[1:])
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List registered tasks and the extension providing each",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFor(cmd.Context())
		if err != nil {
			return err
		}
		names := s.hooks.Tasks()
		sort.Strings(names)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TASK\tEXTENSION")
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%s\n", name, s.hooks.Owner(name))
		}
		return w.Flush()
	},
}

var helpCmd = &cobra.Command{
	Use:   "help [task]",
	Short: "Print the list of available tasks",
	Long: `Run the help task, which lists every registered task. Outside a project,
or for a command that is not a task, print command help instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			if target, _, err := rootCmd.Find(args); err == nil && target != rootCmd && !isTaskCommand(target) {
				return target.Help()
			}
		}

		s, err := sessionFor(cmd.Context())
		if errors.Is(err, project.ErrNotFound) {
			return rootCmd.Help()
		}
		if err != nil {
			return err
		}
		return s.run(cmd.Context(), "help", args)
	},
}

func isTaskCommand(c *cobra.Command) bool {
	switch c {
	case compileCmd, runCmd, nodeCmd, testCmd, cleanCmd, consoleCmd, flattenCmd, checkCmd, taskCmd:
		return true
	}
	return false
}
