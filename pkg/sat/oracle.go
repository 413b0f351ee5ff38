package sat

import (
	"github.com/go-air/gini"
	"github.com/go-air/gini/z"

	"github.com/operator-framework/cpkernel/pkg/cp"
)

const unsatisfiable = -1

// Oracle checks the model clauses with gini under the current partial
// assignment and fails the branch when they can no longer be satisfied.
// It runs as a delayed demon, after clause propagation has settled.
//
// Only the clauses in the model when the oracle is posted are known to
// it.
type Oracle struct {
	m      *Model
	g      *gini.Gini
	buf    []z.Lit
	added  int
	checks int64
	cuts   int64
}

func NewOracle(m *Model) *Oracle {
	return &Oracle{m: m, g: gini.New()}
}

// Checks returns the number of SAT checks run so far.
func (o *Oracle) Checks() int64 {
	return o.checks
}

// Cuts returns the number of branches the oracle failed.
func (o *Oracle) Cuts() int64 {
	return o.cuts
}

func (o *Oracle) Post(s *cp.Solver) {
	// gini keeps its clauses across searches
	clauses := o.m.Clauses()
	for _, clause := range clauses[o.added:] {
		for _, l := range clause {
			o.g.Add(l)
		}
		o.g.Add(z.LitNull)
	}
	o.added = len(clauses)
	d := cp.NewDemon(cp.DelayedPriority, o.check)
	for _, v := range o.m.Vars() {
		v.WhenBound(d)
	}
}

func (o *Oracle) InitialPropagate(s *cp.Solver) {
	o.check(s)
}

func (o *Oracle) check(s *cp.Solver) {
	o.buf = o.buf[:0]
	for _, v := range o.m.Vars() {
		if !v.Bound() {
			continue
		}
		if v.Value() {
			o.buf = append(o.buf, v.Pos())
		} else {
			o.buf = append(o.buf, v.Neg())
		}
	}
	o.g.Assume(o.buf...)
	o.checks++
	if o.g.Solve() == unsatisfiable {
		o.cuts++
		s.Logger().WithField("assumptions", len(o.buf)).Trace("oracle cut")
		s.Fail()
	}
}
