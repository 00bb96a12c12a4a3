package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/taskforge-labs/taskforge/internal/config"
	"github.com/taskforge-labs/taskforge/internal/resolver"
)

var compilersAvailable bool

func init() {
	compilersListCmd.Flags().BoolVar(&compilersAvailable, "available", false, "List releases on the mirror instead of installed builds")
	compilersCmd.AddCommand(compilersListCmd, compilersInstallCmd)
	rootCmd.AddCommand(compilersCmd)
}

var compilersCmd = &cobra.Command{
	Use:   "compilers",
	Short: "Manage downloaded solc builds",
}

var compilersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed compilers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config.Load()
		mgr := newToolchain(config.Current(), os.Stderr)
		out := cmd.OutOrStdout()

		if compilersAvailable {
			list, err := mgr.FetchList(cmd.Context())
			if err != nil {
				return err
			}
			for i := len(list.Builds) - 1; i >= 0; i-- {
				b := list.Builds[i]
				if b.Prerelease != "" {
					continue
				}
				marker := ""
				if b.Version == list.LatestRelease {
					marker = " (latest)"
				}
				fmt.Fprintf(out, "%s%s\n", b.Version, marker)
			}
			return nil
		}

		installed, err := mgr.Installed()
		if err != nil {
			return err
		}
		if len(installed) == 0 {
			fmt.Fprintf(out, "No compilers installed in %s\n", mgr.Dir())
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tPATH")
		for _, in := range installed {
			fmt.Fprintf(w, "%s\t%s\n", in.Version, in.Path)
		}
		return w.Flush()
	},
}

var compilersInstallCmd = &cobra.Command{
	Use:   "install <version-or-range>",
	Short: "Download the newest solc release matching a version or range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := resolver.ParseTargetVersion(args[0])
		if err != nil {
			return err
		}
		config.Load()
		mgr := newToolchain(config.Current(), os.Stderr)

		in, err := mgr.Resolve(cmd.Context(), c)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "solc %s ready at %s\n", in.Version, in.Path)
		return nil
	},
}
