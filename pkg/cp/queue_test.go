package cp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSolver(t *testing.T, options ...Option) *Solver {
	t.Helper()
	s, err := NewSolver(t.Name(), options...)
	require.NoError(t, err)
	return s
}

// recorder collects the names of the demons it builds, in run order.
type recorder struct {
	runs []string
}

func (r *recorder) demon(p DemonPriority, name string, then ...func(*Solver)) Demon {
	return NewDemon(p, func(s *Solver) {
		r.runs = append(r.runs, name)
		for _, fn := range then {
			fn(s)
		}
	})
}

func TestQueueOrder(t *testing.T) {
	s := newTestSolver(t)
	var r recorder

	s.FreezeQueue()
	s.Enqueue(r.demon(DelayedPriority, "C"))
	s.Enqueue(r.demon(NormalPriority, "A1"))
	s.Enqueue(r.demon(NormalPriority, "A2"))
	s.Enqueue(r.demon(VarPriority, "B"))
	assert.Equal(t, 4, s.PendingDemons())
	assert.Empty(t, r.runs)
	s.UnfreezeQueue()

	assert.Equal(t, []string{"A1", "A2", "B", "C"}, r.runs)
	assert.Equal(t, 0, s.PendingDemons())
	assert.EqualValues(t, 1, s.DemonRuns(VarPriority))
	assert.EqualValues(t, 2, s.DemonRuns(NormalPriority))
	assert.EqualValues(t, 1, s.DemonRuns(DelayedPriority))
}

func TestQueueNormalDrainedBeforeEachVarDemon(t *testing.T) {
	s := newTestSolver(t)
	var r recorder

	b := r.demon(NormalPriority, "B")
	a1 := r.demon(VarPriority, "A1", func(s *Solver) { s.Enqueue(b) })
	a2 := r.demon(VarPriority, "A2")
	c := r.demon(DelayedPriority, "C", func(s *Solver) { s.Enqueue(a2) })

	s.FreezeQueue()
	s.Enqueue(c)
	s.Enqueue(a1)
	s.UnfreezeQueue()

	assert.Equal(t, []string{"A1", "B", "C", "A2"}, r.runs)
}

func TestQueueNoDuplicateScheduling(t *testing.T) {
	s := newTestSolver(t)
	var r recorder
	d := r.demon(NormalPriority, "D")

	s.FreezeQueue()
	s.Enqueue(d)
	s.Enqueue(d)
	s.Enqueue(d)
	assert.Equal(t, 1, s.PendingDemons())
	s.UnfreezeQueue()
	assert.Equal(t, []string{"D"}, r.runs)

	// a new round accepts it again
	s.FreezeQueue()
	s.Enqueue(d)
	s.UnfreezeQueue()
	assert.Equal(t, []string{"D", "D"}, r.runs)
}

func TestQueueRunningDemonMayRescheduleItself(t *testing.T) {
	s := newTestSolver(t)
	count := 0
	var d Demon
	d = NewDemon(NormalPriority, func(s *Solver) {
		count++
		if count < 3 {
			s.Enqueue(d)
		}
	})
	s.Enqueue(d)
	assert.Equal(t, 3, count)
}

func TestQueueNestedFreeze(t *testing.T) {
	s := newTestSolver(t)
	var r recorder

	s.FreezeQueue()
	s.FreezeQueue()
	s.Enqueue(r.demon(NormalPriority, "X"))
	s.UnfreezeQueue()
	assert.Empty(t, r.runs)
	s.UnfreezeQueue()
	assert.Equal(t, []string{"X"}, r.runs)
}

func TestInhibit(t *testing.T) {
	s := newTestSolver(t)
	var r recorder
	d := r.demon(NormalPriority, "D")

	s.PushState()
	s.Inhibit(d)
	s.Enqueue(d)
	assert.Empty(t, r.runs)
	s.PopState()

	s.Enqueue(d)
	assert.Equal(t, []string{"D"}, r.runs)
}

func TestPeriodicCheck(t *testing.T) {
	p := DefaultParameters()
	p.PeriodicCheckInterval = 2
	s := newTestSolver(t, WithParameters(p))
	m := &countingMonitor{}
	s.NewSearch(BuilderFunc(func(s *Solver) Decision {
		for i := 0; i < 5; i++ {
			s.Enqueue(NewDemon(NormalPriority, func(*Solver) {}))
		}
		return nil
	}), m)
	assert.True(t, s.NextSolution())
	s.EndSearch()
	assert.Equal(t, 2, m.periodic)
}

type failingConstraint struct{}

func (failingConstraint) Post(*Solver)               {}
func (failingConstraint) InitialPropagate(s *Solver) { s.Fail() }

func TestAfterFailureRunsCleanActionOnce(t *testing.T) {
	s := newTestSolver(t)
	cleaned := 0
	db := BuilderFunc(func(s *Solver) Decision {
		s.FreezeQueue()
		s.SetQueueCleanAction(func(*Solver) { cleaned++ })
		s.Enqueue(NewDemon(NormalPriority, func(*Solver) {}))
		s.Fail()
		return nil
	})
	assert.False(t, s.Solve(db))
	assert.Equal(t, 1, cleaned)
	assert.Equal(t, 0, s.PendingDemons())
	assert.Equal(t, 0, s.queue.freezeLevel)
}

type postRecorder struct {
	name string
	log  *[]string
	then []Constraint
}

func (c *postRecorder) Post(s *Solver) {
	*c.log = append(*c.log, "post "+c.name)
	for _, o := range c.then {
		s.AddConstraint(o)
	}
}

func (c *postRecorder) InitialPropagate(*Solver) {
	*c.log = append(*c.log, "propagate "+c.name)
}

func TestConstraintsAddedDuringPostAreDeferred(t *testing.T) {
	s := newTestSolver(t)
	var log []string
	inner := &postRecorder{name: "inner", log: &log}
	outer := &postRecorder{name: "outer", log: &log, then: []Constraint{inner}}
	s.AddConstraint(outer)

	s.NewSearch(BuilderFunc(func(*Solver) Decision { return nil }))
	assert.True(t, s.NextSolution())
	s.EndSearch()

	assert.Equal(t, []string{"post outer", "propagate outer", "post inner", "propagate inner"}, log)
}

func TestNestedSearchKeepsPendingDemons(t *testing.T) {
	s := newTestSolver(t)
	var r recorder
	never := BuilderFunc(func(s *Solver) Decision { return s.MakeFailDecision() })
	var solved bool
	first := r.demon(NormalPriority, "first", func(s *Solver) { solved = s.Solve(never) })
	later := r.demon(NormalPriority, "later")

	db := BuilderFunc(func(s *Solver) Decision {
		s.FreezeQueue()
		s.Enqueue(first)
		s.Enqueue(later)
		s.UnfreezeQueue()
		return nil
	})
	require.True(t, s.Solve(db))
	assert.False(t, solved)
	assert.Equal(t, []string{"first", "later"}, r.runs)
	assert.EqualValues(t, 2, s.DemonRuns(NormalPriority))
}

func TestNestedSearchWhileFrozen(t *testing.T) {
	s := newTestSolver(t)
	var r recorder
	never := BuilderFunc(func(s *Solver) Decision { return s.MakeFailDecision() })

	var beforeUnfreeze []string
	db := BuilderFunc(func(s *Solver) Decision {
		s.FreezeQueue()
		s.Enqueue(r.demon(VarPriority, "queued before"))
		s.Solve(never)
		s.Enqueue(r.demon(VarPriority, "queued after"))
		beforeUnfreeze = append(beforeUnfreeze, r.runs...)
		s.UnfreezeQueue()
		s.Enqueue(r.demon(VarPriority, "unfrozen"))
		return nil
	})
	require.True(t, s.Solve(db))
	assert.Empty(t, beforeUnfreeze)
	assert.Equal(t, []string{"queued before", "queued after", "unfrozen"}, r.runs)
	assert.Equal(t, 0, s.queue.freezeLevel)
}
