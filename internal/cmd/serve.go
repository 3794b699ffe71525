package cmd

import (
	"github.com/spf13/cobra"

	"tms-server/internal/bootstrap"
)

type serveOptions struct {
	configPath string
	dotEnv     string
}

func bindServeFlags(cmd *cobra.Command, opts *serveOptions) {
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (default config.yaml if present)")
	cmd.Flags().StringVar(&opts.dotEnv, "env-file", ".env", "dotenv file merged under the process environment")
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	bindServeFlags(cmd, &opts)
	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	return bootstrap.Run(cmd.Context(), bootstrap.Options{
		ConfigPath: opts.configPath,
		DotEnv:     opts.dotEnv,
	})
}
