package sat

import (
	"strings"

	"github.com/go-air/gini/z"

	"github.com/operator-framework/cpkernel/pkg/cp"
)

// Clause holds when at least one of its literals does. It fails once
// every literal is false and binds the last free literal when all the
// others are false.
type Clause struct {
	m    *Model
	lits []z.Lit
}

func (c *Clause) Lits() []z.Lit {
	return c.lits
}

func (c *Clause) Post(s *cp.Solver) {
	d := cp.NewDemon(cp.NormalPriority, c.propagate)
	for _, l := range c.lits {
		c.m.Var(l).WhenBound(d)
	}
}

func (c *Clause) InitialPropagate(s *cp.Solver) {
	c.propagate(s)
}

func (c *Clause) propagate(s *cp.Solver) {
	var last z.Lit
	free := 0
	for _, l := range c.lits {
		v := c.m.Var(l)
		if !v.Bound() {
			free++
			last = l
			continue
		}
		if v.Value() == l.IsPos() {
			return
		}
	}
	switch free {
	case 0:
		s.Fail()
	case 1:
		c.m.Var(last).SetValue(last.IsPos())
	}
}

func (c *Clause) String() string {
	terms := make([]string, len(c.lits))
	for i, l := range c.lits {
		name := c.m.Var(l).Name()
		if !l.IsPos() {
			name = "~" + name
		}
		terms[i] = name
	}
	return "(" + strings.Join(terms, " | ") + ")"
}
