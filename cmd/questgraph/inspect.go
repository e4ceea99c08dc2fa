package main

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/questgraph/internal/cli"
	"github.com/aretw0/questgraph/internal/expr"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [document]",
	Short: "Print the compiled state machine",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, debug := globalFlags(cmd)

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
		printMachine(cmd.OutOrStdout(), m)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func printMachine(w io.Writer, m *domain.Machine) {
	fmt.Fprintf(w, "definition %s (%s)\n", m.ID, m.Name)
	fmt.Fprintf(w, "states %d, transitions %d, predicates %d, depth %d\n",
		len(m.States), len(m.Transitions), len(m.Predicates), m.Depth())

	for i, st := range m.States {
		marker := " "
		if i == m.Entry {
			marker = ">"
		}
		fmt.Fprintf(w, "%s %3d %-12s %s", marker, i, st.Kind, st.NodeID)
		if g := expr.Lift(m, st.Guard); g != nil {
			fmt.Fprintf(w, " when %s", g)
		}
		fmt.Fprintln(w)
		for _, ti := range st.Out {
			t := m.Transitions[ti]
			fmt.Fprintf(w, "      -> %s", m.States[t.Target].NodeID)
			if g := expr.Lift(m, t.Guard); g != nil {
				fmt.Fprintf(w, " [%s]", g)
			}
			fmt.Fprintln(w)
		}
	}
}
