package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/questgraph"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of questgraph",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "questgraph version %s\n", strings.TrimSpace(questgraph.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
