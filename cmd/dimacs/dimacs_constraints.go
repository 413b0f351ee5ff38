package dimacs

import (
	"github.com/go-air/gini/z"

	"github.com/operator-framework/cpkernel/pkg/cp"
	"github.com/operator-framework/cpkernel/pkg/sat"
	"github.com/operator-framework/cpkernel/pkg/sat/constraints"
)

// NewModel creates one variable per DIMACS variable, in order, and
// adds every clause to the model of s.
func NewModel(s *cp.Solver, dimacs *Dimacs) (*sat.Model, error) {
	m := sat.NewModel(s)
	for _, name := range dimacs.Variables() {
		m.NewVar(name)
	}

	lits := make([]z.Lit, 0, 8)
	for _, clause := range dimacs.clauses {
		lits = lits[:0]
		for _, n := range clause {
			lits = append(lits, constraints.Lit(n))
		}
		if err := m.AddClause(lits...); err != nil {
			return nil, err
		}
	}
	return m, nil
}
