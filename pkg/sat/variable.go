// Package sat is a small boolean layer on top of the cp kernel: boolean
// variables kept in trail slots, clause propagation, a gini backed
// consistency check and a first-unbound decision builder.
package sat

import (
	"fmt"

	"github.com/go-air/gini/z"

	"github.com/operator-framework/cpkernel/pkg/cp"
	"github.com/operator-framework/cpkernel/pkg/trail"
)

const (
	unbound int64 = -1
	falseV  int64 = 0
	trueV   int64 = 1
)

// Model owns the boolean variables and the model clauses of a solver.
type Model struct {
	s       *cp.Solver
	vars    []*Var
	clauses [][]z.Lit
}

func NewModel(s *cp.Solver) *Model {
	return &Model{s: s}
}

func (m *Model) Solver() *cp.Solver {
	return m.s
}

// NewVar creates an unbound variable. Its literal index is its
// position in the model, starting at 1.
func (m *Model) NewVar(name string) *Var {
	t := m.s.Trail()
	v := &Var{
		m:     m,
		name:  name,
		id:    z.Var(len(m.vars) + 1),
		value: t.NewInt(unbound),
		count: t.NewInt(0),
	}
	m.vars = append(m.vars, v)
	return v
}

// Vars returns the variables in creation order.
func (m *Model) Vars() []*Var {
	return m.vars
}

// Var returns the variable of a literal, or nil if the literal does not
// belong to the model.
func (m *Model) Var(l z.Lit) *Var {
	i := int(l.Var()) - 1
	if i < 0 || i >= len(m.vars) {
		return nil
	}
	return m.vars[i]
}

// Clauses returns the clauses added to the model outside search.
func (m *Model) Clauses() [][]z.Lit {
	return m.clauses
}

// AddClause requires at least one of lits to hold. Outside search the
// clause becomes part of the model; during search it only holds below
// the current node.
func (m *Model) AddClause(lits ...z.Lit) error {
	for _, l := range lits {
		if m.Var(l) == nil {
			return fmt.Errorf("literal %v does not belong to the model", l)
		}
	}
	c := &Clause{m: m, lits: append([]z.Lit(nil), lits...)}
	if m.s.State() == cp.OutsideSearch {
		m.clauses = append(m.clauses, c.lits)
	}
	m.s.AddConstraint(c)
	return nil
}

// Value reports whether l holds. It panics if the variable of l is
// unbound or does not belong to the model.
func (m *Model) Value(l z.Lit) bool {
	v := m.Var(l)
	if v == nil {
		panic(fmt.Sprintf("sat: literal %v does not belong to the model", l))
	}
	return v.Value() == l.IsPos()
}

// Assignment returns the values of all bound variables by name.
func (m *Model) Assignment() map[string]bool {
	out := make(map[string]bool, len(m.vars))
	for _, v := range m.vars {
		if v.Bound() {
			out[v.name] = v.Value()
		}
	}
	return out
}

// Var is a boolean variable whose value and watchers are reversible.
type Var struct {
	m     *Model
	name  string
	id    z.Var
	value trail.Int

	// demons[:count] are the live watchers; count is a trail slot so
	// watchers added during search are dropped on backtrack.
	demons []cp.Demon
	count  trail.Int
}

func (v *Var) Name() string {
	return v.name
}

func (v *Var) String() string {
	t := v.m.s.Trail()
	switch t.Int(v.value) {
	case unbound:
		return v.name
	case trueV:
		return v.name + "=true"
	}
	return v.name + "=false"
}

func (v *Var) Pos() z.Lit {
	return v.id.Pos()
}

func (v *Var) Neg() z.Lit {
	return v.id.Neg()
}

func (v *Var) Bound() bool {
	return v.m.s.Trail().Int(v.value) != unbound
}

// Value returns the value of a bound variable.
func (v *Var) Value() bool {
	switch v.m.s.Trail().Int(v.value) {
	case trueV:
		return true
	case falseV:
		return false
	}
	panic(fmt.Sprintf("sat: value of unbound variable %s", v.name))
}

// SetValue binds v and wakes its watchers. Binding v to the opposite of
// its current value fails the current branch.
func (v *Var) SetValue(b bool) {
	s := v.m.s
	t := s.Trail()
	want := falseV
	if b {
		want = trueV
	}
	switch t.Int(v.value) {
	case want:
		return
	case unbound:
		t.SetInt(v.value, want)
		s.EnqueueAll(v.demons[:t.Int(v.count)])
	default:
		s.Fail()
	}
}

// WhenBound registers d to be scheduled each time v gets bound.
func (v *Var) WhenBound(d cp.Demon) {
	t := v.m.s.Trail()
	n := t.Int(v.count)
	v.demons = append(v.demons[:n], d)
	t.SetInt(v.count, n+1)
}
