package sudoku

import (
	"fmt"
	"math/rand"

	"github.com/go-air/gini/z"

	"github.com/operator-framework/cpkernel/pkg/cp"
	"github.com/operator-framework/cpkernel/pkg/sat"
	"github.com/operator-framework/cpkernel/pkg/sat/constraints"
)

// Sudoku is a 9x9 board encoded with one boolean variable per cell and
// number.
type Sudoku struct {
	m     *sat.Model
	cells [9][9][9]*sat.Var
	order []*sat.Var
}

func GetID(row int, col int, num int) string {
	n := num
	n += col * 9
	n += row * 81
	return fmt.Sprintf("%03d", n)
}

// NewSudoku builds the board constraints on s. The numbers of each cell
// are tried in an order drawn from rng, so that different seeds give
// different boards.
func NewSudoku(s *cp.Solver, rng *rand.Rand) (*Sudoku, error) {
	// adapted from: https://github.com/go-air/gini/blob/871d828a26852598db2b88f436549634ba9533ff/sudoku_test.go#L10
	sd := &Sudoku{m: sat.NewModel(s)}

	// create variables for all number in all positions of the board
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			for n := 0; n < 9; n++ {
				sd.cells[row][col][n] = sd.m.NewVar(GetID(row, col, n))
			}
		}
	}

	// every position on the board has a number
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			vars := append([]*sat.Var(nil), sd.cells[row][col][:]...)
			// randomize order to create new sudoku boards every run
			rng.Shuffle(len(vars), func(i, j int) { vars[i], vars[j] = vars[j], vars[i] })
			sd.order = append(sd.order, vars...)

			lits := make([]z.Lit, len(vars))
			for i, v := range vars {
				lits[i] = v.Pos()
			}
			if err := sd.m.AddClause(lits...); err != nil {
				return nil, err
			}
		}
	}

	conflict := func(a, b *sat.Var) error {
		return sd.m.AddClause(constraints.Conflict(a, b)...)
	}

	for n := 0; n < 9; n++ {
		for i := 0; i < 9; i++ {
			for a := 0; a < 9; a++ {
				for b := a + 1; b < 9; b++ {
					// every row has unique numbers
					if err := conflict(sd.cells[i][a][n], sd.cells[i][b][n]); err != nil {
						return nil, err
					}
					// every column has unique numbers
					if err := conflict(sd.cells[a][i][n], sd.cells[b][i][n]); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	// every box rooted at x, y has unique numbers
	offs := []struct{ x, y int }{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}, {2, 0}, {2, 1}, {2, 2}}
	for x := 0; x < 9; x += 3 {
		for y := 0; y < 9; y += 3 {
			for n := 0; n < 9; n++ {
				for i, offA := range offs {
					for _, offB := range offs[i+1:] {
						if err := conflict(sd.cells[x+offA.x][y+offA.y][n], sd.cells[x+offB.x][y+offB.y][n]); err != nil {
							return nil, err
						}
					}
				}
			}
		}
	}
	return sd, nil
}

func (sd *Sudoku) Model() *sat.Model {
	return sd.m
}

// DecisionBuilder fills the board cell by cell, trying numbers in the
// shuffled order.
func (sd *Sudoku) DecisionBuilder() cp.DecisionBuilder {
	return sat.Phase(sd.m, sd.order, true)
}

// Board returns the numbers placed on the board, 1 to 9, or 0 for an
// empty cell.
func (sd *Sudoku) Board() [9][9]int {
	var board [9][9]int
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			for n, v := range sd.cells[row][col] {
				if v.Bound() && v.Value() {
					board[row][col] = n + 1
					break
				}
			}
		}
	}
	return board
}
