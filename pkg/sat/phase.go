package sat

import (
	"fmt"

	"github.com/operator-framework/cpkernel/pkg/cp"
	"github.com/operator-framework/cpkernel/pkg/trail"
)

type assign struct {
	v     *Var
	value bool
}

func (a *assign) Apply(*cp.Solver) {
	a.v.SetValue(a.value)
}

func (a *assign) Refute(*cp.Solver) {
	a.v.SetValue(!a.value)
}

func (a *assign) String() string {
	return fmt.Sprintf("%s = %t", a.v.Name(), a.value)
}

type phase struct {
	vars   []*Var
	prefer bool
	start  trail.Int
}

// Phase branches on the first unbound variable of vars, trying prefer
// first.
func Phase(m *Model, vars []*Var, prefer bool) cp.DecisionBuilder {
	return &phase{
		vars:   vars,
		prefer: prefer,
		start:  m.Solver().Trail().NewInt(0),
	}
}

func (p *phase) Next(s *cp.Solver) cp.Decision {
	t := s.Trail()
	for i := int(t.Int(p.start)); i < len(p.vars); i++ {
		if !p.vars[i].Bound() {
			t.SetInt(p.start, int64(i))
			return &assign{v: p.vars[i], value: p.prefer}
		}
	}
	t.SetInt(p.start, int64(len(p.vars)))
	return nil
}
