package cp

import (
	"fmt"

	"github.com/operator-framework/cpkernel/pkg/trail"
)

type funcDecision struct {
	name   string
	apply  func(*Solver)
	refute func(*Solver)
}

// NewDecision builds a decision from its two branches. A nil branch
// does nothing.
func NewDecision(name string, apply, refute func(*Solver)) Decision {
	return &funcDecision{name: name, apply: apply, refute: refute}
}

func (d *funcDecision) Apply(s *Solver) {
	if d.apply != nil {
		d.apply(s)
	}
}

func (d *funcDecision) Refute(s *Solver) {
	if d.refute != nil {
		d.refute(s)
	}
}

func (d *funcDecision) String() string {
	return d.name
}

type failDecision struct{}

func (*failDecision) Apply(s *Solver)  { s.Fail() }
func (*failDecision) Refute(s *Solver) { s.Fail() }
func (*failDecision) String() string   { return "FailDecision" }

// reverseDecision swaps the branches of a decision.
type reverseDecision struct {
	d Decision
}

func (r *reverseDecision) Apply(s *Solver) {
	r.d.Refute(s)
}

func (r *reverseDecision) Refute(s *Solver) {
	r.d.Apply(s)
}

func (r *reverseDecision) String() string {
	return fmt.Sprintf("Reverse(%v)", r.d)
}

// BuilderFunc adapts a function to the DecisionBuilder interface.
type BuilderFunc func(s *Solver) Decision

func (f BuilderFunc) Next(s *Solver) Decision {
	return f(s)
}

type composeBuilder struct {
	builders []DecisionBuilder
	start    trail.Int
}

// Compose chains builders: the next one is asked for decisions once the
// previous one returns nil. The position in the chain is reversible.
func Compose(s *Solver, builders ...DecisionBuilder) DecisionBuilder {
	return &composeBuilder{
		builders: builders,
		start:    s.Trail().NewInt(0),
	}
}

func (c *composeBuilder) Next(s *Solver) Decision {
	t := s.Trail()
	for i := int(t.Int(c.start)); i < len(c.builders); i++ {
		if d := c.builders[i].Next(s); d != nil {
			t.SetInt(c.start, int64(i))
			return d
		}
	}
	t.SetInt(c.start, int64(len(c.builders)))
	return nil
}

type solveOnce struct {
	db       DecisionBuilder
	monitors []SearchMonitor
}

// SolveOnce returns a builder that runs db as a nested search and keeps
// its first solution. It fails if db has none.
func SolveOnce(db DecisionBuilder, monitors ...SearchMonitor) DecisionBuilder {
	return &solveOnce{db: db, monitors: monitors}
}

func (so *solveOnce) Next(s *Solver) Decision {
	if !s.SolveAndCommit(so.db, so.monitors...) {
		s.Fail()
	}
	return nil
}

// NestedSolveState is the outcome of a NestedSolveDecision.
type NestedSolveState int64

const (
	NestedSolvePending NestedSolveState = iota
	NestedSolveFailed
	NestedSolveFound
)

func (n NestedSolveState) String() string {
	switch n {
	case NestedSolvePending:
		return "pending"
	case NestedSolveFailed:
		return "failed"
	case NestedSolveFound:
		return "found"
	}
	return fmt.Sprintf("NestedSolveState(%d)", int64(n))
}

// NestedSolveDecision runs a nested search when applied and records
// whether it found a solution. When restore is set the nested search
// leaves no trace; otherwise its first solution is kept.
type NestedSolveDecision struct {
	db       DecisionBuilder
	restore  bool
	monitors []SearchMonitor
	state    trail.Int
}

func NewNestedSolveDecision(s *Solver, db DecisionBuilder, restore bool, monitors ...SearchMonitor) *NestedSolveDecision {
	return &NestedSolveDecision{
		db:       db,
		restore:  restore,
		monitors: monitors,
		state:    s.Trail().NewInt(int64(NestedSolvePending)),
	}
}

func (n *NestedSolveDecision) Apply(s *Solver) {
	var found bool
	if n.restore {
		found = s.Solve(n.db, n.monitors...)
	} else {
		found = s.SolveAndCommit(n.db, n.monitors...)
	}
	outcome := NestedSolveFailed
	if found {
		outcome = NestedSolveFound
	}
	s.Trail().SetInt(n.state, int64(outcome))
}

func (n *NestedSolveDecision) Refute(*Solver) {}

func (n *NestedSolveDecision) State(s *Solver) NestedSolveState {
	return NestedSolveState(s.Trail().Int(n.state))
}

func (n *NestedSolveDecision) String() string {
	return "NestedSolve"
}

type funcDemon struct {
	BaseDemon
	priority DemonPriority
	run      func(*Solver)
}

// NewDemon wraps run into a demon scheduled at priority p.
func NewDemon(p DemonPriority, run func(*Solver)) Demon {
	return &funcDemon{priority: p, run: run}
}

func (d *funcDemon) Run(s *Solver) {
	d.run(s)
}

func (d *funcDemon) Priority() DemonPriority {
	return d.priority
}
