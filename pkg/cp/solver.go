package cp

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/operator-framework/cpkernel/pkg/trail"
)

// Solver runs depth-first searches over a model made of constraints.
// It owns the trail and the demon queue shared by every search level.
// A Solver is not safe for concurrent use.
type Solver struct {
	name   string
	params Parameters
	log    logrus.FieldLogger

	trail *trail.Trail
	queue *queue

	// searches[0] holds the constructor sentinel, searches[1] is the
	// top-level search, nested searches follow.
	searches    []*search
	state       State
	constraints []Constraint

	branches  int64
	fails     int64
	decisions int64
	failStamp int64
	neighbors int64
	accepted  int64
	filtered  int64
	created   time.Time

	failDecision *failDecision
}

type Option func(s *Solver) error

// WithParameters replaces the default parameters.
func WithParameters(p Parameters) Option {
	return func(s *Solver) error {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid solver parameters: %w", err)
		}
		s.params = p
		return nil
	}
}

// WithLogger sets the logger used for search lifecycle events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Solver) error {
		s.log = l
		return nil
	}
}

// WithTrail makes the solver use t instead of building one from its
// parameters. t must not hold any checkpoint.
func WithTrail(t *trail.Trail) Option {
	return func(s *Solver) error {
		if t.Depth() != 0 {
			return fmt.Errorf("trail already holds %d checkpoints", t.Depth())
		}
		s.trail = t
		return nil
	}
}

var defaults = []Option{
	func(s *Solver) error {
		if s.params == (Parameters{}) {
			s.params = DefaultParameters()
		}
		return nil
	},
	func(s *Solver) error {
		if s.log == nil {
			l := logrus.New()
			l.SetOutput(os.Stderr)
			level, err := logrus.ParseLevel(s.params.LogLevel)
			if err != nil {
				return err
			}
			l.SetLevel(level)
			s.log = l
		}
		return nil
	},
	func(s *Solver) error {
		if s.trail == nil {
			t, err := trail.New(
				trail.WithBlockSize(s.params.TrailBlockSize),
				trail.WithCompression(s.params.TrailCompression),
			)
			if err != nil {
				return err
			}
			s.trail = t
		}
		return nil
	},
}

func NewSolver(name string, options ...Option) (*Solver, error) {
	s := &Solver{
		name:         name,
		created:      time.Now(),
		failDecision: &failDecision{},
	}
	for _, option := range append(options, defaults...) {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	s.log = s.log.WithField("solver", name)
	s.queue = newQueue(s, s.params.PeriodicCheckInterval)
	s.searches = []*search{newSearch(s)}
	s.pushSentinel(solverCtorSentinel)
	s.searches = append(s.searches, newSearch(s))
	s.state = OutsideSearch
	return s, nil
}

func (s *Solver) Name() string {
	return s.name
}

// Trail returns the reversible memory of the solver.
func (s *Solver) Trail() *trail.Trail {
	return s.trail
}

func (s *Solver) Logger() logrus.FieldLogger {
	return s.log
}

func (s *Solver) Parameters() Parameters {
	return s.params
}

// State returns the state of the top-level search.
func (s *Solver) State() State {
	if s.state == inRootNode {
		return InSearch
	}
	return s.state
}

func (s *Solver) active() *search {
	return s.searches[len(s.searches)-1]
}

// SolveDepth is 0 outside search, 1 in the top-level search and grows
// by one with each nested search.
func (s *Solver) SolveDepth() int {
	if s.state == OutsideSearch {
		return 0
	}
	return len(s.searches) - 1
}

// SearchDepth is the number of branches taken from the root of the
// active search.
func (s *Solver) SearchDepth() int {
	return s.active().depth
}

// SearchLeftDepth is the number of left branches taken from the root of
// the active search.
func (s *Solver) SearchLeftDepth() int {
	return s.active().leftDepth
}

// Solutions returns the number of solutions found by the active search.
func (s *Solver) Solutions() int64 {
	return s.active().solutionCounter
}

func (s *Solver) Branches() int64  { return s.branches }
func (s *Solver) Failures() int64  { return s.fails }
func (s *Solver) Decisions() int64 { return s.decisions }

// FailStamp increases each time the search backtracks.
func (s *Solver) FailStamp() int64 { return s.failStamp }

func (s *Solver) Neighbors() int64         { return s.neighbors }
func (s *Solver) FilteredNeighbors() int64 { return s.filtered }
func (s *Solver) AcceptedNeighbors() int64 { return s.accepted }

// DemonRuns returns the number of demons run at priority p.
func (s *Solver) DemonRuns(p DemonPriority) int64 {
	return s.queue.runs[p]
}

// WallTime is the time elapsed since the solver was created.
func (s *Solver) WallTime() time.Duration {
	return time.Since(s.created)
}

// AddConstraint adds c to the model when called outside search. During
// search c is posted and propagated immediately and is removed again
// when the search backtracks over the current node.
func (s *Solver) AddConstraint(c Constraint) {
	if s.state == OutsideSearch {
		s.constraints = append(s.constraints, c)
		return
	}
	s.queue.addConstraint(c)
}

// Constraints returns the constraints of the model.
func (s *Solver) Constraints() []Constraint {
	return s.constraints
}

func (s *Solver) processConstraints() {
	for i := 0; i < len(s.constraints); i++ {
		s.queue.addConstraint(s.constraints[i])
	}
}

// Fail abandons the current branch. It does not return: control goes
// back to the search loop, which backtracks.
func (s *Solver) Fail() {
	sr := s.active()
	if !sr.armed {
		panic("cp: failure triggered outside an active search")
	}
	s.fails++
	sr.beginFail()
	sr.jumpBack()
}

// FinishCurrentSearch makes the active search stop at the next check.
func (s *Solver) FinishCurrentSearch() {
	s.active().shouldFinish = true
}

// RestartCurrentSearch makes the active search go back to its root at
// the next check.
func (s *Solver) RestartCurrentSearch() {
	s.active().shouldRestart = true
}

// NewSearch starts a search driven by db. Called while a search is
// running, it starts a nested search sharing the same trail. The nested
// search starts with an empty demon queue; demons and constraints still
// pending in the enclosing level wait until it ends.
func (s *Solver) NewSearch(db DecisionBuilder, monitors ...SearchMonitor) {
	if db == nil {
		panic("cp: NewSearch with a nil decision builder")
	}
	if s.state == inRootNode {
		panic("cp: cannot start a search during initial propagation")
	}
	nested := s.state == InSearch
	var sr *search
	if nested {
		sr = newSearch(s)
		s.searches = append(s.searches, sr)
	} else {
		sr = s.searches[1]
		s.backtrackToSentinel(initialSearchSentinel)
		s.state = OutsideSearch
	}
	sr.clear()
	if nested {
		sr.parentQueue = s.queue.suspend()
	}
	sr.monitors = append(sr.monitors, monitors...)
	sr.enterSearch()
	s.pushSentinel(initialSearchSentinel)
	sr.db = db
	s.log.WithFields(logrus.Fields{"nested": nested, "depth": len(s.searches) - 1}).Debug("search started")
}

// NextSolution explores the tree until the next solution. It returns
// false once the tree is exhausted, the search is finished by a
// monitor, or the model is infeasible.
func (s *Solver) NextSolution() bool {
	sr := s.active()
	solveDepth := s.SolveDepth()
	topLevel := solveDepth <= 1
	var fd Decision

	if solveDepth == 0 && sr.db == nil {
		s.log.Warn("NextSolution called without a NewSearch before")
		return false
	}

	if topLevel {
		switch s.state {
		case Infeasible, NoMoreSolutions:
			return false
		case AtSolution:
			d, done := s.backtrackOneLevel()
			if done {
				s.state = NoMoreSolutions
				return false
			}
			fd = d
			s.state = InSearch
		case OutsideSearch:
			s.state = inRootNode
			failed := sr.try(func() {
				sr.beginInitialPropagation()
				s.processConstraints()
				sr.endInitialPropagation()
				s.pushSentinel(rootNodeSentinel)
				s.state = InSearch
			})
			if failed {
				s.queue.afterFailure()
				s.backtrackToSentinel(initialSearchSentinel)
				s.state = Infeasible
				s.log.Debug("model is infeasible at the root node")
				return false
			}
		case InSearch:
			// resuming after RestartSearch
		case inRootNode:
			panic("cp: NextSolution called during initial propagation")
		}
	}

	db := sr.db
	finish, result := false, false
	for !finish {
		failed := sr.try(func() {
			if fd != nil {
				s.pushMarker(&stateMarker{
					kind:      choicePointMarker,
					decision:  fd,
					right:     true,
					depth:     sr.depth,
					leftDepth: sr.leftDepth,
				})
				sr.refuteDecision(fd)
				s.branches++
				fd.Refute(s)
				sr.afterDecision(fd, false)
				sr.rightMove()
				fd = nil
			}
			for {
				sr.beginNextDecision(db)
				d := db.Next(s)
				sr.endNextDecision(db, d)
				if d == nil {
					break
				}
				if _, ok := d.(*failDecision); ok {
					s.Fail()
				}
				switch sr.modifyDecision() {
				case SwitchBranches:
					d = &reverseDecision{d: d}
					fallthrough
				case NoChange:
					s.decisions++
					s.pushMarker(&stateMarker{
						kind:      choicePointMarker,
						decision:  d,
						depth:     sr.depth,
						leftDepth: sr.leftDepth,
					})
					sr.applyDecision(d)
					s.branches++
					d.Apply(s)
					sr.afterDecision(d, true)
					sr.leftMove()
				case KeepLeft:
					sr.applyDecision(d)
					d.Apply(s)
					sr.afterDecision(d, true)
				case KeepRight:
					sr.refuteDecision(d)
					d.Refute(s)
					sr.afterDecision(d, false)
				case KillBoth:
					s.Fail()
				}
			}
			if !sr.acceptSolution() {
				s.Fail()
			}
			sr.solutionCounter++
			if sr.atSolution() && sr.createdBySolve {
				// a monitor wants more and nobody is waiting for this one
				s.Fail()
			}
			result = true
			finish = true
		})
		if !failed {
			continue
		}
		s.queue.afterFailure()
		switch {
		case sr.shouldFinish:
			fd = nil
			s.backtrackToSentinel(s.searchSentinel())
			result = false
			finish = true
			sr.shouldFinish = false
			sr.shouldRestart = false
		case sr.shouldRestart:
			fd = nil
			code := s.searchSentinel()
			s.backtrackToSentinel(code)
			sr.shouldFinish = false
			sr.shouldRestart = false
			s.pushSentinel(code)
			sr.restartSearch()
		default:
			d, done := s.backtrackOneLevel()
			fd = d
			if done {
				result = false
				finish = true
			}
		}
	}
	if topLevel {
		if result {
			s.state = AtSolution
		} else {
			s.state = NoMoreSolutions
		}
	}
	return result
}

// searchSentinel is the sentinel a restart or finish of the active
// search unwinds to.
func (s *Solver) searchSentinel() int {
	if s.SolveDepth() <= 1 {
		return rootNodeSentinel
	}
	return initialSearchSentinel
}

// EndSearch ends the active search. Its changes are undone unless it
// was started by SolveAndCommit, in which case they become part of the
// enclosing search.
func (s *Solver) EndSearch() {
	sr := s.active()
	if sr.backtrackAtTheEnd {
		s.backtrackToSentinel(initialSearchSentinel)
	} else if sr.sentinelPushed > 0 {
		s.transferToParent()
	}
	sr.exitSearch()
	sr.clear()
	if len(s.searches) == 2 {
		s.state = OutsideSearch
	} else {
		s.queue.resume(sr.parentQueue)
		sr.parentQueue = queueState{}
		s.searches[len(s.searches)-1] = nil
		s.searches = s.searches[:len(s.searches)-1]
	}
	s.log.WithField("depth", len(s.searches)-1).Debug("search ended")
}

// Solve runs a complete search and reports whether a solution was
// found. All changes are undone when it returns.
func (s *Solver) Solve(db DecisionBuilder, monitors ...SearchMonitor) bool {
	s.NewSearch(db, monitors...)
	s.active().createdBySolve = true
	s.NextSolution()
	found := s.active().solutionCounter > 0
	s.EndSearch()
	return found
}

// SolveAndCommit runs a nested search and keeps the state of the first
// solution it finds. It may only be called while a search is running.
func (s *Solver) SolveAndCommit(db DecisionBuilder, monitors ...SearchMonitor) bool {
	if s.state != InSearch {
		panic("cp: SolveAndCommit is only valid inside a search")
	}
	s.NewSearch(db, monitors...)
	sr := s.active()
	sr.createdBySolve = true
	sr.backtrackAtTheEnd = false
	s.NextSolution()
	found := sr.solutionCounter > 0
	s.EndSearch()
	return found
}

// CheckConstraint reports whether c is consistent with the current
// state. Nothing c does survives the call.
func (s *Solver) CheckConstraint(c Constraint) bool {
	return s.Solve(BuilderFunc(func(s *Solver) Decision {
		s.AddConstraint(c)
		return nil
	}))
}

// RestartSearch sends the active search back to its root node.
func (s *Solver) RestartSearch() {
	sr := s.active()
	switch depth := s.SolveDepth(); {
	case depth == 1:
		if sr.sentinelPushed > 1 {
			s.backtrackToSentinel(rootNodeSentinel)
		}
		if sr.sentinelPushed != 1 {
			panic("cp: RestartSearch before the root node was reached")
		}
		s.pushSentinel(rootNodeSentinel)
		s.state = InSearch
	case depth > 1:
		if sr.sentinelPushed > 0 {
			s.backtrackToSentinel(initialSearchSentinel)
		}
		s.pushSentinel(initialSearchSentinel)
	default:
		panic("cp: RestartSearch outside of a search")
	}
	sr.restartSearch()
}

// PushState saves the current state. It is restored by the matching
// PopState.
func (s *Solver) PushState() {
	s.pushMarker(&stateMarker{kind: simpleMarker})
}

// PopState restores the state saved by the last PushState, running the
// backtrack actions registered since.
func (s *Solver) PopState() {
	for {
		m := s.popMarker()
		switch m.kind {
		case simpleMarker:
			return
		case backtrackActionMarker:
			if m.action != nil {
				m.action(s)
			}
		default:
			panic(fmt.Sprintf("cp: PopState found a %s marker", m.kind))
		}
	}
}

// AddBacktrackAction registers fn to run once, when the search
// backtracks over the current node.
func (s *Solver) AddBacktrackAction(fn func(*Solver)) {
	s.pushMarker(&stateMarker{kind: backtrackActionMarker, action: fn})
}

// RevAlloc hands v over to the trail. It stays valid until the search
// backtracks over the current node.
func RevAlloc[T any](s *Solver, v *T) trail.Owned[T] {
	return trail.Alloc(s.trail, v)
}

// PeriodicCheck gives the monitors of the top-level search a chance to
// stop a long propagation.
func (s *Solver) PeriodicCheck() {
	if len(s.searches) < 2 {
		return
	}
	top := s.searches[1]
	top.periodicCheck()
	if s.active().armed && (top.shouldFinish || top.shouldRestart) {
		s.Fail()
	}
}

// LocalOptimum notifies the monitors of the active search that a local
// search reached a local optimum and reports whether one of them wants
// to continue.
func (s *Solver) LocalOptimum() bool {
	return s.active().localOptimum()
}

// AcceptDelta asks the monitors of the active search whether a local
// search move is acceptable.
func (s *Solver) AcceptDelta(delta, deltaDelta any) bool {
	s.neighbors++
	if !s.active().acceptDelta(delta, deltaDelta) {
		s.filtered++
		return false
	}
	return true
}

// AcceptNeighbor notifies the monitors that a neighbor was accepted.
func (s *Solver) AcceptNeighbor() {
	s.accepted++
	s.active().acceptNeighbor()
}

// Enqueue schedules d on the queue of its priority.
func (s *Solver) Enqueue(d Demon) {
	s.queue.enqueue(d)
}

// EnqueueAll schedules demons as one batch.
func (s *Solver) EnqueueAll(demons []Demon) {
	s.queue.freeze()
	for _, d := range demons {
		s.queue.enqueue(d)
	}
	s.queue.unfreeze()
}

// FreezeQueue stops the queue from running demons until the matching
// UnfreezeQueue.
func (s *Solver) FreezeQueue() {
	s.queue.freeze()
}

func (s *Solver) UnfreezeQueue() {
	s.queue.unfreeze()
}

// SetQueueCleanAction registers a to run once if the current
// propagation fails.
func (s *Solver) SetQueueCleanAction(a func(*Solver)) {
	s.queue.setCleanAction(a)
}

func (s *Solver) ClearQueueCleanAction() {
	s.queue.clearCleanAction()
}

// QueueStamp identifies the current propagation round.
func (s *Solver) QueueStamp() uint64 {
	return s.queue.stamp
}

// PendingDemons returns the number of scheduled demons.
func (s *Solver) PendingDemons() int {
	return s.queue.pending()
}

// Inhibit prevents d from being scheduled until the search backtracks
// over the current node.
func (s *Solver) Inhibit(d Demon) {
	b := d.base()
	if b.stamp == inhibitedStamp {
		return
	}
	old := b.stamp
	b.stamp = inhibitedStamp
	s.AddBacktrackAction(func(*Solver) { b.stamp = old })
}

// Desinhibit lets an inhibited demon be scheduled again.
func (s *Solver) Desinhibit(d Demon) {
	b := d.base()
	if b.stamp != inhibitedStamp {
		return
	}
	b.stamp = s.queue.stamp - 1
	s.AddBacktrackAction(func(*Solver) { b.stamp = inhibitedStamp })
}

// MakeFailDecision returns a decision that fails as soon as it is
// returned by a decision builder.
func (s *Solver) MakeFailDecision() Decision {
	return s.failDecision
}
