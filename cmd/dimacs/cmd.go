package dimacs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/operator-framework/cpkernel/internal/cli"
	"github.com/operator-framework/cpkernel/pkg/sat"
)

func NewDimacsCommand(flags *cli.Flags) *cobra.Command {
	var noOracle bool
	cmd := &cobra.Command{
		Use:   "solve <path>",
		Short: "Solves a sat problem given in dimacs format",
		Long: `Solves a sat problem given in dimacs format. For instance:
c
c this is a comment
c header: p cnf <number of variable> <number of clauses> 
p cnf 2 2
c clauses end in zero, negative means 'not'
c 0 (zero) is not a valid literal
1 2 0
1 -2 0
c cnf: (1 or 2) and (1 and not 2)
`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("file (%s) not found", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.Config(cmd.Flags())
			if err != nil {
				return err
			}
			ss, err := cli.NewSession(cmd.Context(), "dimacs", c)
			if err != nil {
				return err
			}
			defer ss.Close()
			return solve(cmd.OutOrStdout(), ss, args[0], flags.All, !noOracle)
		},
	}
	cmd.Flags().BoolVar(&noOracle, "no-oracle", false, "rely on clause propagation only")
	return cmd
}

func solve(out io.Writer, ss *cli.Session, path string, all, oracle bool) error {
	// open dimacs file
	dimacsFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening dimacs file (%s): %w", path, err)
	}
	defer dimacsFile.Close()

	dimacs, err := NewDimacs(dimacsFile)
	if err != nil {
		return fmt.Errorf("error parsing dimacs file (%s): %w", path, err)
	}

	m, err := NewModel(ss.Solver, dimacs)
	if err != nil {
		return err
	}
	if oracle {
		ss.Solver.AddConstraint(sat.NewOracle(m))
	}

	s := ss.Solver
	s.NewSearch(sat.Phase(m, m.Vars(), true), ss.Monitors...)
	defer s.EndSearch()

	found := 0
	for s.NextSolution() {
		found++
		printSolution(out, m, found)
		if !all {
			break
		}
	}
	if found == 0 {
		if ss.Limit.Crossed() {
			fmt.Fprintln(out, "no solution found: search limit reached")
		} else {
			fmt.Fprintln(out, "no solution found: constraints not satisfiable")
		}
	}
	ss.Report(found)
	return nil
}

func printSolution(out io.Writer, m *sat.Model, n int) {
	fmt.Fprintf(out, "solution %d found:\n", n)
	assignment := m.Assignment()
	names := make([]string, 0, len(assignment))
	for name := range assignment {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, _ := strconv.Atoi(names[i])
		b, _ := strconv.Atoi(names[j])
		return a < b
	})
	for _, name := range names {
		fmt.Fprintf(out, "%s = %t\n", name, assignment[name])
	}
}
