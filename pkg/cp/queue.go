package cp

import "math"

// inhibitedStamp is never below the queue stamp, so an inhibited demon
// can not be enqueued.
const inhibitedStamp = math.MaxUint64

// demonFIFO is a first-in first-out list of demons.
type demonFIFO struct {
	items []Demon
	head  int
}

func (f *demonFIFO) empty() bool {
	return f.head == len(f.items)
}

func (f *demonFIFO) push(d Demon) {
	f.items = append(f.items, d)
}

func (f *demonFIFO) pop() Demon {
	d := f.items[f.head]
	f.items[f.head] = nil
	f.head++
	if f.head == len(f.items) {
		f.items = f.items[:0]
		f.head = 0
	}
	return d
}

func (f *demonFIFO) clear() {
	for i := f.head; i < len(f.items); i++ {
		f.items[i] = nil
	}
	f.items = f.items[:0]
	f.head = 0
}

func (f *demonFIFO) len() int {
	return len(f.items) - f.head
}

// queueState is the part of the queue that belongs to one search level.
// A nested search starts from an empty one and gives the enclosing
// level its own back when it ends.
type queueState struct {
	fifos       [numPriorities]demonFIFO
	freezeLevel int
	inProcess   bool
	cleanAction func(*Solver)

	toAdd []Constraint
	inAdd bool
}

// queue schedules demons by priority and runs them to a fixpoint. It
// also serializes the posting of constraints added while another one
// is being posted.
type queue struct {
	s *Solver
	queueState
	stamp uint64

	runs         [numPriorities]int64
	checkEvery   int64
	sinceLastChk int64
}

func newQueue(s *Solver, checkEvery int64) *queue {
	return &queue{
		s:          s,
		stamp:      1,
		checkEvery: checkEvery,
	}
}

func (q *queue) freeze() {
	q.freezeLevel++
	q.stamp++
}

func (q *queue) unfreeze() {
	q.freezeLevel--
	if q.freezeLevel == 0 {
		q.process()
	}
}

func (q *queue) advanceStamp() {
	q.stamp++
}

// enqueue schedules d unless it is already scheduled in this round.
func (q *queue) enqueue(d Demon) {
	b := d.base()
	if b.stamp < q.stamp {
		b.stamp = q.stamp
		q.fifos[d.Priority()].push(d)
		if q.freezeLevel == 0 {
			q.process()
		}
	}
}

func (q *queue) runOne(p DemonPriority) {
	d := q.fifos[p].pop()
	// one below the current stamp so the demon can schedule itself again
	d.base().stamp = q.stamp - 1
	q.runs[p]++
	d.Run(q.s)
	if q.checkEvery > 0 {
		q.sinceLastChk++
		if q.sinceLastChk >= q.checkEvery {
			q.sinceLastChk = 0
			q.s.PeriodicCheck()
		}
	}
}

// process drains the queue. Normal demons are drained completely before
// each var demon runs, and a single delayed demon runs only once both
// are empty.
func (q *queue) process() {
	if q.inProcess {
		return
	}
	q.inProcess = true
	for !q.fifos[VarPriority].empty() || !q.fifos[NormalPriority].empty() || !q.fifos[DelayedPriority].empty() {
		for !q.fifos[VarPriority].empty() || !q.fifos[NormalPriority].empty() {
			for !q.fifos[NormalPriority].empty() {
				q.runOne(NormalPriority)
			}
			if !q.fifos[VarPriority].empty() {
				q.runOne(VarPriority)
			}
		}
		if !q.fifos[DelayedPriority].empty() {
			q.runOne(DelayedPriority)
		}
	}
	q.inProcess = false
}

func (q *queue) pending() int {
	n := 0
	for i := range q.fifos {
		n += q.fifos[i].len()
	}
	return n
}

// afterFailure drops every pending demon of the active search level and
// runs the clean action registered by whoever froze the queue for a
// multi-step update. Demons of enclosing levels are kept aside by
// suspend and are not touched.
func (q *queue) afterFailure() {
	for i := range q.fifos {
		q.fifos[i].clear()
	}
	q.freezeLevel = 0
	q.inProcess = false
	q.inAdd = false
	q.toAdd = q.toAdd[:0]
	if q.cleanAction != nil {
		action := q.cleanAction
		q.cleanAction = nil
		action(q.s)
	}
}

// suspend hands the queue over to a nested search level and returns
// the state of the enclosing one.
func (q *queue) suspend() queueState {
	saved := q.queueState
	q.queueState = queueState{}
	return saved
}

// resume gives the queue back to the enclosing level. Its pending demons
// are stamped again so that they are not scheduled twice.
func (q *queue) resume(saved queueState) {
	q.queueState = saved
	for i := range q.fifos {
		f := &q.fifos[i]
		for _, d := range f.items[f.head:] {
			if b := d.base(); b.stamp != inhibitedStamp {
				b.stamp = q.stamp
			}
		}
	}
}

func (q *queue) setCleanAction(a func(*Solver)) {
	q.cleanAction = a
}

func (q *queue) clearCleanAction() {
	q.cleanAction = nil
}

// addConstraint posts c and propagates it to a fixpoint. Constraints
// added while another one is being posted are processed, in order, once
// it is done.
func (q *queue) addConstraint(c Constraint) {
	q.toAdd = append(q.toAdd, c)
	q.processConstraints()
}

func (q *queue) processConstraints() {
	if q.inAdd {
		return
	}
	q.inAdd = true
	// toAdd may grow while it is walked
	for i := 0; i < len(q.toAdd); i++ {
		c := q.toAdd[i]
		q.toAdd[i] = nil
		q.freeze()
		c.Post(q.s)
		c.InitialPropagate(q.s)
		q.unfreeze()
	}
	q.toAdd = q.toAdd[:0]
	q.inAdd = false
}
