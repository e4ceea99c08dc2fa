package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/questgraph/internal/cli"
	"github.com/aretw0/questgraph/pkg/codec"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile [document]",
	Short: "Compile a quest document and register the definition",
	Long: `Validates and compiles the document, registers the machine in the
configured registry and prints its definition id. With --output the
encoded definition is written to a file as well.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)
		output, _ := cmd.Flags().GetString("output")
		formatName, _ := cmd.Flags().GetString("format")

		format, err := codec.ParseFormat(formatName)
		if err != nil {
			return err
		}

		ctx := context.Background()
		rt, err := cli.Open(ctx, questArg(args), configPath, debug)
		if err != nil {
			return err
		}
		defer rt.Close()

		m, err := rt.Engine.Compile(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), m.ID)

		if output == "" {
			return nil
		}
		data, err := codec.EncodeDefinition(m, format)
		if err != nil {
			return err
		}
		return os.WriteFile(output, data, 0o644)
	},
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringP("output", "o", "", "Write the encoded definition to this file")
	compileCmd.Flags().String("format", "binary", "Encoding for --output: binary or json")
}
