// Package cli wires the configuration, logging, metrics and search
// monitors shared by the cpkernel commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/operator-framework/cpkernel/internal/config"
	"github.com/operator-framework/cpkernel/pkg/cp"
	"github.com/operator-framework/cpkernel/pkg/cp/monitor"
)

// Flags are the global flags of the cpkernel command. Flags set on the
// command line override the configuration file.
type Flags struct {
	ConfigPath       string
	LogLevel         string
	TrailCompression string
	MetricsAddr      string
	All              bool

	Branches  int64
	Failures  int64
	Solutions int64
	Time      time.Duration
	Progress  int64
}

func (f *Flags) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "path to a YAML configuration file")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	fs.StringVar(&f.TrailCompression, "trail-compression", "", "codec for completed trail blocks (none, noop, s2)")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	fs.BoolVar(&f.All, "all", false, "enumerate all solutions")
	fs.Int64Var(&f.Branches, "limit-branches", 0, "stop after this many branches")
	fs.Int64Var(&f.Failures, "limit-failures", 0, "stop after this many failures")
	fs.Int64Var(&f.Solutions, "limit-solutions", 0, "stop after this many solutions")
	fs.DurationVar(&f.Time, "limit-time", 0, "stop after this much time")
	fs.Int64Var(&f.Progress, "progress", 0, "log progress every this many branches")
}

// Config loads the configuration file and applies the flags that were
// set explicitly.
func (f *Flags) Config(fs *pflag.FlagSet) (*config.Config, error) {
	c, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, err
	}
	if fs.Changed("log-level") {
		c.Solver.LogLevel = f.LogLevel
	}
	if fs.Changed("trail-compression") {
		c.Solver.TrailCompression = f.TrailCompression
	}
	if fs.Changed("metrics-addr") {
		c.Metrics.Address = f.MetricsAddr
	}
	if fs.Changed("limit-branches") {
		c.Search.Branches = f.Branches
	}
	if fs.Changed("limit-failures") {
		c.Search.Failures = f.Failures
	}
	if fs.Changed("limit-solutions") {
		c.Search.Solutions = f.Solutions
	}
	if fs.Changed("limit-time") {
		c.Search.Time = f.Time
	}
	if fs.Changed("progress") {
		c.Search.ProgressPeriod = f.Progress
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// Session is a configured solver together with the monitors every
// search of a command runs with.
type Session struct {
	Solver   *cp.Solver
	Log      *logrus.Logger
	Limit    *monitor.Limit
	Monitors []cp.SearchMonitor

	server *http.Server
}

func NewSession(ctx context.Context, name string, c *config.Config) (*Session, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(c.Solver.LogLevel)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	s, err := cp.NewSolver(name, cp.WithParameters(c.Solver), cp.WithLogger(log))
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	limit := monitor.NewLimit(ctx, c.Search.Limits())
	ss := &Session{
		Solver: s,
		Log:    log,
		Limit:  limit,
		Monitors: []cp.SearchMonitor{
			limit,
			monitor.NewLogger(log, c.Search.ProgressPeriod),
			monitor.NewMetrics(reg),
		},
	}
	if c.Metrics.Address != "" {
		ss.serve(c.Metrics.Address, reg)
	}
	return ss, nil
}

func (ss *Session) serve(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	ss.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := ss.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ss.Log.WithError(err).Error("metrics server stopped")
		}
	}()
	ss.Log.WithField("address", addr).Info("serving metrics")
}

// Close stops the metrics server, if any.
func (ss *Session) Close() error {
	if ss.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ss.server.Shutdown(ctx)
}

// Report logs the statistics of the last search.
func (ss *Session) Report(found int) {
	s := ss.Solver
	ss.Log.WithFields(logrus.Fields{
		"solutions": found,
		"branches":  s.Branches(),
		"failures":  s.Failures(),
		"limited":   ss.Limit.Crossed(),
		"trail":     fmt.Sprintf("%+v", s.Trail().Stats()),
		"wall":      s.WallTime().Round(time.Millisecond).String(),
	}).Info("search statistics")
}
