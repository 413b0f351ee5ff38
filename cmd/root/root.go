package root

import (
	"github.com/spf13/cobra"

	"github.com/operator-framework/cpkernel/cmd/dimacs"
	"github.com/operator-framework/cpkernel/cmd/sudoku"
	"github.com/operator-framework/cpkernel/internal/cli"
)

func NewRootCmd() *cobra.Command {
	flags := &cli.Flags{}
	rootCmd := &cobra.Command{
		Use:   "cpkernel",
		Short: "cpkernel is a constraint programming search kernel",
		Long: `A constraint programming search kernel written in Go: reversible
state, propagation to a fixpoint and depth-first search with nested
searches, driven here on boolean problems.`,
		SilenceUsage: true,
	}
	flags.Bind(rootCmd.PersistentFlags())

	// add sub-commands
	rootCmd.AddCommand(dimacs.NewDimacsCommand(flags))
	rootCmd.AddCommand(sudoku.NewSudokuCommand(flags))

	return rootCmd
}
