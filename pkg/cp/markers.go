package cp

import (
	"fmt"

	"github.com/operator-framework/cpkernel/pkg/trail"
)

type markerKind int

const (
	sentinelMarker markerKind = iota
	simpleMarker
	choicePointMarker
	backtrackActionMarker
)

func (k markerKind) String() string {
	switch k {
	case sentinelMarker:
		return "sentinel"
	case simpleMarker:
		return "simple"
	case choicePointMarker:
		return "choice point"
	case backtrackActionMarker:
		return "backtrack action"
	}
	return fmt.Sprintf("markerKind(%d)", int(k))
}

// Sentinel codes tell which boundary a sentinel marks.
const (
	initialSearchSentinel = 10000000
	rootNodeSentinel      = 20000000
	solverCtorSentinel    = 40000000
)

// stateMarker is one entry of a search level's marker stack. All kinds
// but backtrack actions hold a trail checkpoint.
type stateMarker struct {
	kind       markerKind
	checkpoint trail.Checkpoint

	sentinel int

	decision  Decision
	right     bool
	depth     int
	leftDepth int

	action func(*Solver)
}

func (s *Solver) pushMarker(m *stateMarker) {
	sr := s.active()
	if m.kind == backtrackActionMarker {
		sr.markers = append(sr.markers, m)
		return
	}
	m.checkpoint = s.trail.Checkpoint()
	sr.markers = append(sr.markers, m)
	s.queue.advanceStamp()
}

// popMarker removes the newest marker of the active level. Trail
// snapshots are restored; backtrack actions are returned unrun so the
// caller decides when to run them.
func (s *Solver) popMarker() *stateMarker {
	sr := s.active()
	if len(sr.markers) == 0 {
		panic("cp: pop on an empty marker stack")
	}
	m := sr.markers[len(sr.markers)-1]
	sr.markers[len(sr.markers)-1] = nil
	sr.markers = sr.markers[:len(sr.markers)-1]
	if m.kind != backtrackActionMarker {
		s.trail.RestoreTo(m.checkpoint)
		s.queue.advanceStamp()
	}
	return m
}

func (s *Solver) pushSentinel(code int) {
	s.pushMarker(&stateMarker{kind: sentinelMarker, sentinel: code})
	sr := s.active()
	// the sentinel pushed by the constructor is not counted
	if code != solverCtorSentinel {
		sr.sentinelPushed++
	}
	if (code == initialSearchSentinel && sr.sentinelPushed != 1) ||
		(code == rootNodeSentinel && sr.sentinelPushed != 2) {
		panic(fmt.Sprintf("cp: sentinel %d pushed as number %d of its search", code, sr.sentinelPushed))
	}
}

func (s *Solver) checkSentinel(m *stateMarker) {
	top := s.SolveDepth() <= 1
	if !(m.sentinel == rootNodeSentinel && top) && !(m.sentinel == initialSearchSentinel && !top) {
		panic(fmt.Sprintf("cp: wrong sentinel %d found at solve depth %d", m.sentinel, s.SolveDepth()))
	}
}

// backtrackOneLevel unwinds to the newest left choice point and returns
// its decision so it can be refuted. It reports true when a sentinel is
// reached first, meaning the subtree below it is exhausted.
func (s *Solver) backtrackOneLevel() (Decision, bool) {
	sr := s.active()
	var refute Decision
	noMoreSolutions := false
	for end := false; !end; {
		m := s.popMarker()
		switch m.kind {
		case sentinelMarker:
			s.checkSentinel(m)
			sr.sentinelPushed--
			noMoreSolutions = true
			end = true
		case simpleMarker:
			s.log.Error("simple marker found during search backtrack")
		case choicePointMarker:
			if !m.right {
				refute = m.decision
				sr.depth = m.depth
				sr.leftDepth = m.leftDepth
				end = true
			}
		case backtrackActionMarker:
			if m.action != nil {
				m.action(s)
			}
		}
	}
	sr.endFail()
	s.failStamp++
	if noMoreSolutions {
		sr.noMoreSolutions()
	}
	return refute, noMoreSolutions
}

// backtrackToSentinel unwinds the active level down to and including
// the sentinel with the given code.
func (s *Solver) backtrackToSentinel(code int) {
	sr := s.active()
	for end := sr.sentinelPushed == 0; !end; {
		m := s.popMarker()
		switch m.kind {
		case sentinelMarker:
			if m.sentinel == solverCtorSentinel {
				panic("cp: backtracked over the solver sentinel")
			}
			sr.sentinelPushed--
			sr.depth = 0
			sr.leftDepth = 0
			if m.sentinel == code {
				end = true
			}
		case backtrackActionMarker:
			if m.action != nil {
				m.action(s)
			}
		}
	}
	s.failStamp++
}

// transferToParent ends a nested level without undoing its work: trail
// snapshots are committed into the parent's newest snapshot and
// backtrack actions move to the parent, keeping their order.
func (s *Solver) transferToParent() {
	if s.SolveDepth() <= 1 {
		panic("cp: transfer of the top level search")
	}
	c := s.active()
	p := s.searches[len(s.searches)-2]
	var actions []*stateMarker
	found := false
	for len(c.markers) > 0 {
		m := c.markers[len(c.markers)-1]
		c.markers = c.markers[:len(c.markers)-1]
		switch m.kind {
		case backtrackActionMarker:
			actions = append(actions, m)
		case sentinelMarker:
			if len(c.markers) != 0 {
				panic("cp: sentinel found too early")
			}
			found = true
			s.trail.Commit(m.checkpoint)
		default:
			s.trail.Commit(m.checkpoint)
		}
	}
	if !found {
		panic("cp: sentinel not found")
	}
	for i := len(actions) - 1; i >= 0; i-- {
		p.markers = append(p.markers, actions[i])
	}
	c.sentinelPushed = 0
	c.depth = 0
	c.leftDepth = 0
	s.queue.advanceStamp()
}
