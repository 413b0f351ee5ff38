package sudoku

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/operator-framework/cpkernel/internal/cli"
	"github.com/operator-framework/cpkernel/pkg/sat"
)

func NewSudokuCommand(flags *cli.Flags) *cobra.Command {
	var seed int64
	var oracle bool
	cmd := &cobra.Command{
		Use:   "sudoku",
		Short: "Returns a solved sudoku board",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.Config(cmd.Flags())
			if err != nil {
				return err
			}
			ss, err := cli.NewSession(cmd.Context(), "sudoku", c)
			if err != nil {
				return err
			}
			defer ss.Close()
			if !cmd.Flags().Changed("seed") {
				seed = time.Now().UnixNano()
			}
			return solve(cmd.OutOrStdout(), ss, rand.New(rand.NewSource(seed)), oracle)
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed of the number order (random by default)")
	cmd.Flags().BoolVar(&oracle, "oracle", false, "check every node with the SAT oracle")
	return cmd
}

func solve(out io.Writer, ss *cli.Session, rng *rand.Rand, oracle bool) error {
	s := ss.Solver
	sd, err := NewSudoku(s, rng)
	if err != nil {
		return err
	}
	if oracle {
		s.AddConstraint(sat.NewOracle(sd.Model()))
	}

	s.NewSearch(sd.DecisionBuilder(), ss.Monitors...)
	defer s.EndSearch()
	if !s.NextSolution() {
		fmt.Fprintln(out, "no solution found")
		ss.Report(0)
		return nil
	}
	printBoard(out, sd.Board())
	ss.Report(1)
	return nil
}

func printBoard(out io.Writer, board [9][9]int) {
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			if board[row][col] == 0 {
				fmt.Fprint(out, " ")
			} else {
				fmt.Fprintf(out, "%d", board[row][col])
			}
			if col != 8 {
				fmt.Fprint(out, " ")
			}
		}
		fmt.Fprintln(out)
	}
}
