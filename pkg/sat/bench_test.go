package sat_test

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/go-air/gini/z"

	"github.com/operator-framework/cpkernel/pkg/cp"
	"github.com/operator-framework/cpkernel/pkg/sat"
	"github.com/operator-framework/cpkernel/pkg/sat/constraints"
)

// benchmarkModel builds a random dependency problem. The same seed gives
// the same clauses.
func benchmarkModel(b *testing.B, oracle bool) (*sat.Model, cp.DecisionBuilder) {
	const (
		length      = 256
		seed        = 9
		pMandatory  = .1
		pDependency = .15
		nDependency = 6
		pConflict   = .05
		nConflict   = 3
	)

	s, err := cp.NewSolver("bench")
	if err != nil {
		b.Fatalf("failed to initialize solver: %s", err)
	}
	m := sat.NewModel(s)
	vars := make([]*sat.Var, length)
	for i := range vars {
		vars[i] = m.NewVar(strconv.Itoa(i))
	}

	rng := rand.New(rand.NewSource(seed))
	other := func(i int) *sat.Var {
		y := i
		for y == i {
			y = rng.Intn(length)
		}
		return vars[y]
	}
	add := func(lits []z.Lit) {
		if err := m.AddClause(lits...); err != nil {
			b.Fatalf("failed to add clause: %s", err)
		}
	}
	for i, v := range vars {
		if rng.Float64() < pMandatory {
			add(constraints.Mandatory(v))
		}
		if rng.Float64() < pDependency {
			n := rng.Intn(nDependency-1) + 1
			var d []*sat.Var
			for x := 0; x < n; x++ {
				d = append(d, other(i))
			}
			add(constraints.Dependency(v, d...))
		}
		if rng.Float64() < pConflict {
			n := rng.Intn(nConflict-1) + 1
			for x := 0; x < n; x++ {
				add(constraints.Conflict(v, other(i)))
			}
		}
	}
	if oracle {
		s.AddConstraint(sat.NewOracle(m))
	}
	return m, sat.Phase(m, vars, false)
}

func BenchmarkSolve(b *testing.B) {
	for i := 0; i < b.N; i++ {
		m, db := benchmarkModel(b, false)
		m.Solver().Solve(db)
	}
}

func BenchmarkSolveWithOracle(b *testing.B) {
	for i := 0; i < b.N; i++ {
		m, db := benchmarkModel(b, true)
		m.Solver().Solve(db)
	}
}

func BenchmarkNewModel(b *testing.B) {
	for i := 0; i < b.N; i++ {
		benchmarkModel(b, true)
	}
}
