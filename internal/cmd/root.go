// Package cmd provides the tms-server command line.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree. Running it without a subcommand serves.
func NewRootCmd() *cobra.Command {
	var opts serveOptions

	root := &cobra.Command{
		Use:           "tms-server",
		Short:         "Admin and portal authentication server backed by a spreadsheet",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	bindServeFlags(root, &opts)

	root.AddCommand(newServeCmd())
	root.AddCommand(newHashPasswordCmd())
	root.AddCommand(newSeedCmd())
	return root
}
