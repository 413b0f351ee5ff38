// Package constraints builds the clauses of common boolean relations.
package constraints

import (
	"github.com/go-air/gini/z"

	"github.com/operator-framework/cpkernel/pkg/sat"
)

// Mandatory permits only solutions where v is true.
func Mandatory(v *sat.Var) []z.Lit {
	return []z.Lit{v.Pos()}
}

// Prohibited rejects any solution where v is true.
func Prohibited(v *sat.Var) []z.Lit {
	return []z.Lit{v.Neg()}
}

// Dependency only permits v when at least one of deps is true. Earlier
// deps are not preferred over later ones; the decision builder decides.
func Dependency(v *sat.Var, deps ...*sat.Var) []z.Lit {
	lits := []z.Lit{v.Neg()}
	for _, d := range deps {
		lits = append(lits, d.Pos())
	}
	return lits
}

// Conflict permits a, b or neither, but not both.
func Conflict(a, b *sat.Var) []z.Lit {
	return []z.Lit{a.Neg(), b.Neg()}
}

// Or returns a | b, each side optionally negated.
func Or(a *sat.Var, negateA bool, b *sat.Var, negateB bool) []z.Lit {
	la, lb := a.Pos(), b.Pos()
	if negateA {
		la = la.Not()
	}
	if negateB {
		lb = lb.Not()
	}
	return []z.Lit{la, lb}
}

// Lit converts a DIMACS literal to a gini literal: n is variable |n|,
// negated when n is negative.
func Lit(n int) z.Lit {
	if n < 0 {
		return z.Var(-n).Neg()
	}
	return z.Var(n).Pos()
}
