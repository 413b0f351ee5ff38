// Package monitor holds search monitors that report on and bound the
// searches of a cp.Solver.
package monitor

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/operator-framework/cpkernel/pkg/cp"
)

// Logger writes the progress of a search to a logrus logger. Every
// search it observes is tagged with a fresh id so that nested searches
// can be told apart.
type Logger struct {
	cp.BaseSearchMonitor

	log    logrus.FieldLogger
	period int64

	entry        *logrus.Entry
	started      time.Time
	lastBranches int64
	branches     int64
	failures     int64
	solutions    int64
}

// NewLogger logs a progress line every period branches. A period of
// zero only logs the start, solutions and end of the search.
func NewLogger(log logrus.FieldLogger, period int64) *Logger {
	return &Logger{log: log, period: period}
}

func (l *Logger) EnterSearch(s *cp.Solver) {
	l.entry = l.log.WithFields(logrus.Fields{
		"search": uuid.New().String(),
		"depth":  s.SolveDepth(),
	})
	l.started = time.Now()
	l.branches = s.Branches()
	l.failures = s.Failures()
	l.lastBranches = l.branches
	l.solutions = 0
	l.entry.Info("search started")
}

func (l *Logger) RestartSearch(s *cp.Solver) {
	l.entry.WithField("branches", s.Branches()-l.branches).Debug("search restarted")
}

func (l *Logger) AtSolution(s *cp.Solver) bool {
	l.solutions++
	l.entry.WithFields(l.progress(s)).Info("solution found")
	return false
}

func (l *Logger) NoMoreSolutions(s *cp.Solver) {
	l.entry.WithFields(l.progress(s)).Debug("search tree exhausted")
}

func (l *Logger) BeginFail(s *cp.Solver) {
	l.entry.WithField("depth", s.SearchDepth()).Trace("branch failed")
}

func (l *Logger) PeriodicCheck(s *cp.Solver) {
	l.tick(s)
}

func (l *Logger) ApplyDecision(s *cp.Solver, d cp.Decision) {
	l.entry.WithField("decision", d).Trace("apply")
	l.tick(s)
}

func (l *Logger) RefuteDecision(s *cp.Solver, d cp.Decision) {
	l.entry.WithField("decision", d).Trace("refute")
	l.tick(s)
}

func (l *Logger) ExitSearch(s *cp.Solver) {
	l.entry.WithFields(l.progress(s)).Info("search ended")
}

func (l *Logger) tick(s *cp.Solver) {
	if l.period <= 0 || s.Branches()-l.lastBranches < l.period {
		return
	}
	l.lastBranches = s.Branches()
	l.entry.WithFields(l.progress(s)).Info("progress")
}

func (l *Logger) progress(s *cp.Solver) logrus.Fields {
	return logrus.Fields{
		"branches":  s.Branches() - l.branches,
		"failures":  s.Failures() - l.failures,
		"solutions": l.solutions,
		"elapsed":   time.Since(l.started).Round(time.Millisecond).String(),
	}
}
