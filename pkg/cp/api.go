// Package cp is the search kernel of a constraint programming solver:
// a demon queue that propagates to a fixpoint, search levels that fan
// events out to monitors, and a Solver that runs depth-first search
// over decisions while keeping every change reversible through a
// trail.Trail.
package cp

import "fmt"

// DemonPriority selects the queue a demon is scheduled on.
type DemonPriority int

const (
	// DelayedPriority is for expensive global checks. A delayed demon
	// only runs when no var or normal demon is pending.
	DelayedPriority DemonPriority = iota
	// VarPriority is for demons reacting to a single variable event.
	VarPriority
	// NormalPriority is the default.
	NormalPriority

	numPriorities = 3
)

func (p DemonPriority) String() string {
	switch p {
	case DelayedPriority:
		return "delayed"
	case VarPriority:
		return "var"
	case NormalPriority:
		return "normal"
	}
	return fmt.Sprintf("DemonPriority(%d)", int(p))
}

// Demon is a unit of propagation work. Implementations embed BaseDemon,
// which holds the scheduling stamp.
type Demon interface {
	Run(s *Solver)
	Priority() DemonPriority
	base() *BaseDemon
}

// BaseDemon carries the queue stamp of a demon. A demon whose stamp
// equals the queue stamp is already scheduled for the current round.
type BaseDemon struct {
	stamp uint64
}

func (d *BaseDemon) base() *BaseDemon {
	return d
}

// Decision is a binary choice. Apply takes the left branch, Refute the
// right one; both may be called on the same value across a backtrack.
type Decision interface {
	Apply(s *Solver)
	Refute(s *Solver)
}

// DecisionBuilder supplies the decisions of one search. Next returns
// nil once every variable it is responsible for is assigned.
type DecisionBuilder interface {
	Next(s *Solver) Decision
}

// Constraint implementations register their demons in Post and perform
// their first filtering in InitialPropagate. Both run with the queue
// frozen.
type Constraint interface {
	Post(s *Solver)
	InitialPropagate(s *Solver)
}

// DecisionModification lets monitors change how the next decision is
// explored.
type DecisionModification int

const (
	NoChange DecisionModification = iota
	// KeepLeft applies the decision without creating a choice point.
	KeepLeft
	// KeepRight refutes the decision without creating a choice point.
	KeepRight
	// KillBoth fails immediately.
	KillBoth
	// SwitchBranches explores the refutation first.
	SwitchBranches
)

// SearchMonitor observes and steers a search. Embed BaseSearchMonitor
// to get no-op defaults. Monitors may call Fail, FinishCurrentSearch or
// RestartCurrentSearch on the solver from any hook that runs on the
// decision path.
type SearchMonitor interface {
	EnterSearch(s *Solver)
	RestartSearch(s *Solver)
	ExitSearch(s *Solver)
	BeginNextDecision(s *Solver, b DecisionBuilder)
	EndNextDecision(s *Solver, b DecisionBuilder, d Decision)
	ApplyDecision(s *Solver, d Decision)
	RefuteDecision(s *Solver, d Decision)
	AfterDecision(s *Solver, d Decision, apply bool)
	BeginFail(s *Solver)
	EndFail(s *Solver)
	BeginInitialPropagation(s *Solver)
	EndInitialPropagation(s *Solver)
	// AcceptSolution returns false to reject a complete assignment.
	AcceptSolution(s *Solver) bool
	// AtSolution returns true to continue the search after a solution.
	AtSolution(s *Solver) bool
	NoMoreSolutions(s *Solver)
	// LocalOptimum returns true to restart from a local optimum.
	LocalOptimum(s *Solver) bool
	AcceptDelta(s *Solver, delta, deltaDelta any) bool
	AcceptNeighbor(s *Solver)
	PeriodicCheck(s *Solver)
	ModifyDecision(s *Solver) DecisionModification
}

// BaseSearchMonitor implements every SearchMonitor hook as a no-op.
type BaseSearchMonitor struct{}

func (BaseSearchMonitor) EnterSearch(*Solver)                                {}
func (BaseSearchMonitor) RestartSearch(*Solver)                              {}
func (BaseSearchMonitor) ExitSearch(*Solver)                                 {}
func (BaseSearchMonitor) BeginNextDecision(*Solver, DecisionBuilder)         {}
func (BaseSearchMonitor) EndNextDecision(*Solver, DecisionBuilder, Decision) {}
func (BaseSearchMonitor) ApplyDecision(*Solver, Decision)                    {}
func (BaseSearchMonitor) RefuteDecision(*Solver, Decision)                   {}
func (BaseSearchMonitor) AfterDecision(*Solver, Decision, bool)              {}
func (BaseSearchMonitor) BeginFail(*Solver)                                  {}
func (BaseSearchMonitor) EndFail(*Solver)                                    {}
func (BaseSearchMonitor) BeginInitialPropagation(*Solver)                    {}
func (BaseSearchMonitor) EndInitialPropagation(*Solver)                      {}
func (BaseSearchMonitor) AcceptSolution(*Solver) bool                        { return true }
func (BaseSearchMonitor) AtSolution(*Solver) bool                            { return false }
func (BaseSearchMonitor) NoMoreSolutions(*Solver)                            {}
func (BaseSearchMonitor) LocalOptimum(*Solver) bool                          { return false }
func (BaseSearchMonitor) AcceptDelta(*Solver, any, any) bool                 { return true }
func (BaseSearchMonitor) AcceptNeighbor(*Solver)                             {}
func (BaseSearchMonitor) PeriodicCheck(*Solver)                              {}
func (BaseSearchMonitor) ModifyDecision(*Solver) DecisionModification        { return NoChange }

// State is the externally visible state of a top-level search.
type State int

const (
	OutsideSearch State = iota
	InSearch
	AtSolution
	NoMoreSolutions
	Infeasible
	// inRootNode is held while the constraints of the model are posted
	// and propagated for the first time.
	inRootNode
)

func (s State) String() string {
	switch s {
	case OutsideSearch:
		return "OutsideSearch"
	case InSearch:
		return "InSearch"
	case AtSolution:
		return "AtSolution"
	case NoMoreSolutions:
		return "NoMoreSolutions"
	case Infeasible:
		return "Infeasible"
	case inRootNode:
		return "InRootNode"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
