package monitor

import (
	"context"
	"time"

	"github.com/operator-framework/cpkernel/pkg/cp"
)

// Limits bound a search. Zero fields are unbounded.
type Limits struct {
	Branches  int64
	Failures  int64
	Solutions int64
	Time      time.Duration
}

// Limit finishes the search it monitors as soon as one of its limits is
// crossed or its context is done.
type Limit struct {
	cp.BaseSearchMonitor

	ctx    context.Context
	limits Limits

	started   time.Time
	branches  int64
	failures  int64
	solutions int64
	crossed   bool
}

func NewLimit(ctx context.Context, limits Limits) *Limit {
	return &Limit{ctx: ctx, limits: limits}
}

// Crossed reports whether the last search was stopped by this limit.
func (l *Limit) Crossed() bool {
	return l.crossed
}

func (l *Limit) EnterSearch(s *cp.Solver) {
	l.started = time.Now()
	l.branches = s.Branches()
	l.failures = s.Failures()
	l.solutions = 0
	l.crossed = false
}

func (l *Limit) BeginNextDecision(s *cp.Solver, _ cp.DecisionBuilder) {
	l.check(s)
}

func (l *Limit) RefuteDecision(s *cp.Solver, _ cp.Decision) {
	l.check(s)
}

func (l *Limit) PeriodicCheck(s *cp.Solver) {
	l.check(s)
}

func (l *Limit) AtSolution(s *cp.Solver) bool {
	l.solutions++
	l.check(s)
	return false
}

func (l *Limit) check(s *cp.Solver) {
	if l.crossed || l.exceeded(s) {
		l.crossed = true
		s.FinishCurrentSearch()
	}
}

func (l *Limit) exceeded(s *cp.Solver) bool {
	switch {
	case l.ctx != nil && l.ctx.Err() != nil:
		return true
	case l.limits.Branches > 0 && s.Branches()-l.branches >= l.limits.Branches:
		return true
	case l.limits.Failures > 0 && s.Failures()-l.failures >= l.limits.Failures:
		return true
	case l.limits.Solutions > 0 && l.solutions >= l.limits.Solutions:
		return true
	case l.limits.Time > 0 && time.Since(l.started) >= l.limits.Time:
		return true
	}
	return false
}
