package main

import (
	"context"
	"errors"

	"github.com/aretw0/questgraph/internal/cli"
	"github.com/spf13/cobra"
)

var errInvalid = errors.New("quest document is invalid")

var validateCmd = &cobra.Command{
	Use:   "validate [document]",
	Short: "Check a quest document for errors",
	Long: `Loads the document and reports every structural, expression and
reachability problem without compiling it. With --watch, a Loam directory
is revalidated whenever one of its files changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		watch, _ := cmd.Flags().GetBool("watch")

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		rt, err := cli.Open(ctx, questArg(args), configPath, debug)
		if err != nil {
			return err
		}
		defer rt.Close()

		if watch {
			return cli.WatchValidate(ctx, rt.Engine, cmd.OutOrStdout())
		}
		ok, err := cli.Validate(ctx, rt.Engine, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if !ok {
			return errInvalid
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolP("watch", "w", false, "Revalidate on every change")
}
