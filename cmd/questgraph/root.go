package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "questgraph",
	Short: "questgraph compiles and runs quest graphs",
	Long: `questgraph validates quest documents, compiles them into state machines
and drives quest instances from scripts, HTTP or an MQTT broker.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a questgraph.yaml config file")
	rootCmd.PersistentFlags().Bool("debug", false, "Log lifecycle events at debug level")
}

// questArg returns the document path argument, or "" so the config's quest: applies.
func questArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func globalFlags(cmd *cobra.Command) (configPath string, debug bool) {
	configPath, _ = cmd.Flags().GetString("config")
	debug, _ = cmd.Flags().GetBool("debug")
	return configPath, debug
}
