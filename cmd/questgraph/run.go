package main

import (
	"io"
	"os"

	"github.com/aretw0/questgraph/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [document]",
	Short: "Drive a quest instance from a script",
	Long: `Compiles the document, creates an instance (or resumes --instance) and
applies one command per line from --script or stdin:

  observe <predicate> [value]
  all <predicate> [value]
  interrupt <node>
  force <node>
  abandon
  status`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		scriptPath, _ := cmd.Flags().GetString("script")
		instanceID, _ := cmd.Flags().GetString("instance")
		quiet, _ := cmd.Flags().GetBool("quiet")

		var in io.Reader = cmd.InOrStdin()
		if scriptPath != "" && scriptPath != "-" {
			f, err := os.Open(scriptPath)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.Execute(ctx, cli.RunOptions{
			QuestPath:  questArg(args),
			ConfigPath: configPath,
			InstanceID: instanceID,
			Debug:      debug,
			Quiet:      quiet,
		}, in, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("script", "s", "", "Read commands from this file instead of stdin")
	runCmd.Flags().StringP("instance", "i", "", "Resume a stored instance")
	runCmd.Flags().BoolP("quiet", "q", false, "Print only command results")
}
