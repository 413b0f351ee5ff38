package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/operator-framework/cpkernel/pkg/cp"
)

const namespace = "cpkernel"

// Metrics exports search statistics as prometheus collectors.
type Metrics struct {
	cp.BaseSearchMonitor

	searches  prometheus.Counter
	branches  prometheus.Counter
	failures  prometheus.Counter
	solutions prometheus.Counter
	demons    *prometheus.CounterVec
	depth     prometheus.Gauge
	duration  prometheus.Histogram

	started time.Time
	runs    [3]int64
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		searches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Number of searches started.",
		}),
		branches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branches_total",
			Help:      "Number of branches explored.",
		}),
		failures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Number of failed branches.",
		}),
		solutions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solutions_total",
			Help:      "Number of solutions found.",
		}),
		demons: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "demon_runs_total",
			Help:      "Number of demons run, by priority.",
		}, []string{"priority"}),
		depth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "search_depth",
			Help:      "Depth of the current node of the search.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Wall time of completed searches.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

var priorities = []cp.DemonPriority{cp.DelayedPriority, cp.VarPriority, cp.NormalPriority}

func (m *Metrics) EnterSearch(s *cp.Solver) {
	m.searches.Inc()
	m.started = time.Now()
	for _, p := range priorities {
		m.runs[p] = s.DemonRuns(p)
	}
}

func (m *Metrics) ApplyDecision(*cp.Solver, cp.Decision) {
	m.branches.Inc()
}

func (m *Metrics) RefuteDecision(*cp.Solver, cp.Decision) {
	m.branches.Inc()
}

func (m *Metrics) AfterDecision(s *cp.Solver, _ cp.Decision, _ bool) {
	m.depth.Set(float64(s.SearchDepth()))
}

func (m *Metrics) BeginFail(*cp.Solver) {
	m.failures.Inc()
}

func (m *Metrics) AtSolution(*cp.Solver) bool {
	m.solutions.Inc()
	return false
}

func (m *Metrics) ExitSearch(s *cp.Solver) {
	m.duration.Observe(time.Since(m.started).Seconds())
	m.depth.Set(0)
	for _, p := range priorities {
		runs := s.DemonRuns(p)
		m.demons.WithLabelValues(p.String()).Add(float64(runs - m.runs[p]))
		m.runs[p] = runs
	}
}

func (m *Metrics) Searches() prometheus.Counter  { return m.searches }
func (m *Metrics) Branches() prometheus.Counter  { return m.branches }
func (m *Metrics) Failures() prometheus.Counter  { return m.failures }
func (m *Metrics) Solutions() prometheus.Counter { return m.solutions }

func (m *Metrics) DemonRuns() *prometheus.CounterVec {
	return m.demons
}
