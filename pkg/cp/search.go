package cp

type failureSignal struct{}

// failure is the only value ever used to unwind a failed branch. It is
// allocated once so that failing does not allocate.
var failure = &failureSignal{}

// search is one level of a possibly nested search. The solver keeps a
// stack of them, all sharing the solver's trail and queue.
type search struct {
	s        *Solver
	markers  []*stateMarker
	monitors []SearchMonitor
	db       DecisionBuilder

	solutionCounter int64
	depth           int
	leftDepth       int
	shouldRestart   bool
	shouldFinish    bool
	sentinelPushed  int
	armed           bool

	createdBySolve    bool
	backtrackAtTheEnd bool

	// queue state of the enclosing level, for nested searches
	parentQueue queueState
}

func newSearch(s *Solver) *search {
	return &search{s: s, backtrackAtTheEnd: true}
}

func (sr *search) clear() {
	sr.monitors = nil
	sr.db = nil
	sr.solutionCounter = 0
	sr.depth = 0
	sr.leftDepth = 0
	sr.shouldRestart = false
	sr.shouldFinish = false
	sr.createdBySolve = false
	sr.backtrackAtTheEnd = true
}

// try runs fn under this level's recovery point. A Fail raised while fn
// runs unwinds straight back here and try reports true; the only
// cleanup that happens on the way is what was registered on the trail
// or as a backtrack action.
func (sr *search) try(fn func()) (failed bool) {
	if sr.armed {
		panic("cp: recovery point set twice on the same search level")
	}
	sr.armed = true
	defer func() {
		sr.armed = false
		if r := recover(); r != nil {
			if r != failure {
				panic(r)
			}
			failed = true
		}
	}()
	fn()
	return false
}

// jumpBack unwinds to the most recent try of this level.
func (sr *search) jumpBack() {
	if !sr.armed {
		panic("cp: failure triggered outside an active search")
	}
	panic(failure)
}

func (sr *search) checkFail() {
	if sr.shouldFinish || sr.shouldRestart {
		sr.s.Fail()
	}
}

func (sr *search) leftMove() {
	sr.depth++
	sr.leftDepth++
}

func (sr *search) rightMove() {
	sr.depth++
}

func (sr *search) enterSearch() {
	sr.solutionCounter = 0
	for _, m := range sr.monitors {
		m.EnterSearch(sr.s)
	}
}

func (sr *search) restartSearch() {
	for _, m := range sr.monitors {
		m.RestartSearch(sr.s)
	}
}

func (sr *search) exitSearch() {
	for _, m := range sr.monitors {
		m.ExitSearch(sr.s)
	}
}

func (sr *search) beginNextDecision(b DecisionBuilder) {
	for _, m := range sr.monitors {
		m.BeginNextDecision(sr.s, b)
	}
	sr.checkFail()
}

func (sr *search) endNextDecision(b DecisionBuilder, d Decision) {
	for _, m := range sr.monitors {
		m.EndNextDecision(sr.s, b, d)
	}
	sr.checkFail()
}

func (sr *search) applyDecision(d Decision) {
	for _, m := range sr.monitors {
		m.ApplyDecision(sr.s, d)
	}
	sr.checkFail()
}

func (sr *search) refuteDecision(d Decision) {
	for _, m := range sr.monitors {
		m.RefuteDecision(sr.s, d)
	}
	sr.checkFail()
}

func (sr *search) afterDecision(d Decision, apply bool) {
	for _, m := range sr.monitors {
		m.AfterDecision(sr.s, d, apply)
	}
	sr.checkFail()
}

func (sr *search) beginFail() {
	for _, m := range sr.monitors {
		m.BeginFail(sr.s)
	}
}

func (sr *search) endFail() {
	for _, m := range sr.monitors {
		m.EndFail(sr.s)
	}
}

func (sr *search) beginInitialPropagation() {
	for _, m := range sr.monitors {
		m.BeginInitialPropagation(sr.s)
	}
}

func (sr *search) endInitialPropagation() {
	for _, m := range sr.monitors {
		m.EndInitialPropagation(sr.s)
	}
}

// acceptSolution asks every monitor, even after one has refused.
func (sr *search) acceptSolution() bool {
	valid := true
	for _, m := range sr.monitors {
		if !m.AcceptSolution(sr.s) {
			valid = false
		}
	}
	return valid
}

// atSolution reports whether any monitor wants the search to go on.
func (sr *search) atSolution() bool {
	more := false
	for _, m := range sr.monitors {
		if m.AtSolution(sr.s) {
			more = true
		}
	}
	return more
}

func (sr *search) noMoreSolutions() {
	for _, m := range sr.monitors {
		m.NoMoreSolutions(sr.s)
	}
}

func (sr *search) localOptimum() bool {
	res := false
	for _, m := range sr.monitors {
		if m.LocalOptimum(sr.s) {
			res = true
		}
	}
	return res
}

func (sr *search) acceptDelta(delta, deltaDelta any) bool {
	accept := true
	for _, m := range sr.monitors {
		if !m.AcceptDelta(sr.s, delta, deltaDelta) {
			accept = false
		}
	}
	return accept
}

func (sr *search) acceptNeighbor() {
	for _, m := range sr.monitors {
		m.AcceptNeighbor(sr.s)
	}
}

func (sr *search) periodicCheck() {
	for _, m := range sr.monitors {
		m.PeriodicCheck(sr.s)
	}
}

// modifyDecision returns the first modification requested by a
// monitor.
func (sr *search) modifyDecision() DecisionModification {
	for _, m := range sr.monitors {
		if mod := m.ModifyDecision(sr.s); mod != NoChange {
			return mod
		}
	}
	return NoChange
}
