package main

import (
	"fmt"

	"github.com/aretw0/questgraph/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [document]",
	Short: "Start the HTTP runtime server",
	Long: `Compiles the document and exposes instance creation, observation and
an outcome event stream over HTTP. Prometheus metrics are served on
/metrics unless disabled in the config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		listen, _ := cmd.Flags().GetString("listen")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		err := cli.Serve(ctx, cli.ServeOptions{
			QuestPath:  questArg(args),
			ConfigPath: configPath,
			Listen:     listen,
			Debug:      debug,
		})
		if sig := ctx.Signal(); sig != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "stopped on %v\n", sig)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (overrides server.listen)")
}
