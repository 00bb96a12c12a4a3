package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/taskforge-labs/taskforge/internal/branding"
	"github.com/taskforge-labs/taskforge/internal/resolver"
	"github.com/taskforge-labs/taskforge/internal/scaffold"
)

var (
	initName          string
	initTargetVersion string
	initExtensions    []string
)

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "Project name (default: directory name)")
	initCmd.Flags().StringVar(&initTargetVersion, "target-version", scaffold.DefaultTargetVersion, "Compiler version or range for the new project")
	initCmd.Flags().StringSliceVar(&initExtensions, "extensions", nil, "Extensions to list in the project file (default: core,solc,waffle,scripts)")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a new project",
	Long: `Create a new project in dir (default: the current directory).

The directory must be empty or absent. The generated ` + branding.ProjectFile() + `.yaml lists the
built-in extensions, and a sample contract, deploy script and test are added.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", dir, err)
		}

		if _, err := resolver.ParseTargetVersion(initTargetVersion); err != nil {
			return err
		}

		name := initName
		if name == "" {
			name = filepath.Base(abs)
		}
		data := scaffold.NewData(name)
		data.TargetVersion = initTargetVersion
		if len(initExtensions) > 0 {
			data.Extensions = initExtensions
		}

		result, err := scaffold.Generate(data, abs)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created %s in %s\n", data.Title, result.OutputDir)
		for _, f := range result.Files {
			fmt.Fprintf(out, "  %s\n", f)
		}
		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
		}
		fmt.Fprintf(out, "\nNext: npm install && %s compile && %s test\n", branding.CLIName(), branding.CLIName())
		return nil
	},
}
