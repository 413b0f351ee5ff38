package sudoku

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/cpkernel/internal/cli"
	"github.com/operator-framework/cpkernel/pkg/cp"
)

func checkBoard(t *testing.T, board [9][9]int) {
	t.Helper()
	for i := 0; i < 9; i++ {
		row, col, box := map[int]bool{}, map[int]bool{}, map[int]bool{}
		for j := 0; j < 9; j++ {
			r, c := i, j
			br, bc := 3*(i/3)+j/3, 3*(i%3)+j%3
			for _, seen := range []struct {
				set map[int]bool
				n   int
			}{{row, board[r][c]}, {col, board[c][r]}, {box, board[br][bc]}} {
				require.NotZero(t, seen.n)
				require.False(t, seen.set[seen.n], "duplicate %d in unit %d", seen.n, i)
				seen.set[seen.n] = true
			}
		}
	}
}

func TestSudoku(t *testing.T) {
	for _, seed := range []int64{1, 2, 42} {
		s, err := cp.NewSolver("sudoku")
		require.NoError(t, err)
		sd, err := NewSudoku(s, rand.New(rand.NewSource(seed)))
		require.NoError(t, err)

		s.NewSearch(sd.DecisionBuilder())
		require.True(t, s.NextSolution())
		checkBoard(t, sd.Board())
		s.EndSearch()
		assert.Equal(t, [9][9]int{}, sd.Board())
	}
}

func TestSudokuIsDeterministicPerSeed(t *testing.T) {
	boards := make([][9][9]int, 2)
	for i := range boards {
		s, err := cp.NewSolver("sudoku")
		require.NoError(t, err)
		sd, err := NewSudoku(s, rand.New(rand.NewSource(7)))
		require.NoError(t, err)
		s.NewSearch(sd.DecisionBuilder())
		require.True(t, s.NextSolution())
		boards[i] = sd.Board()
		s.EndSearch()
	}
	assert.Equal(t, boards[0], boards[1])
}

func TestSudokuCommand(t *testing.T) {
	flags := &cli.Flags{}
	cmd := NewSudokuCommand(flags)
	flags.Bind(cmd.Flags())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--seed", "3", "--oracle", "--log-level", "error"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 9)
	for _, line := range lines {
		assert.Len(t, strings.Fields(line), 9)
	}
}
