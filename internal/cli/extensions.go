package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/taskforge-labs/taskforge/internal/config"
	"github.com/taskforge-labs/taskforge/internal/extension"
)

func init() {
	rootCmd.AddCommand(extensionsCmd)
}

var extensionsCmd = &cobra.Command{
	Use:   "extensions",
	Short: "List the extensions that can be named in a project file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config.Load()
		return listExtensions(cmd.OutOrStdout(), registry(config.Current()))
	},
}

func listExtensions(out io.Writer, reg *extension.Registry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EXTENSION\tDESCRIPTION")
	for _, id := range reg.IDs() {
		desc := ""
		if factory, ok := reg.Lookup(id); ok {
			// Built-in factories do not read the configuration.
			if ext, err := factory(nil); err == nil && ext != nil {
				desc = ext.Description
			}
		}
		fmt.Fprintf(w, "%s\t%s\n", id, desc)
	}
	return w.Flush()
}
