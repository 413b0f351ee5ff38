// Package config loads the cpkernel configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/operator-framework/cpkernel/pkg/cp"
	"github.com/operator-framework/cpkernel/pkg/cp/monitor"
)

type Config struct {
	Solver  cp.Parameters `yaml:"solver"`
	Search  Search        `yaml:"search"`
	Metrics Metrics       `yaml:"metrics"`
}

// Search bounds every search started by the CLI. Zero means unbounded.
type Search struct {
	Branches  int64         `yaml:"branches"`
	Failures  int64         `yaml:"failures"`
	Solutions int64         `yaml:"solutions"`
	Time      time.Duration `yaml:"time"`
	// ProgressPeriod is the number of branches between two progress
	// log lines.
	ProgressPeriod int64 `yaml:"progressPeriod"`
}

func (s Search) Limits() monitor.Limits {
	return monitor.Limits{
		Branches:  s.Branches,
		Failures:  s.Failures,
		Solutions: s.Solutions,
		Time:      s.Time,
	}
}

type Metrics struct {
	// Address serves /metrics when set.
	Address string `yaml:"address"`
}

func Default() *Config {
	return &Config{Solver: cp.DefaultParameters()}
}

// Load reads the file at path on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file (%s): %w", path, err)
	}
	c, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error loading config file (%s): %w", path, err)
	}
	return c, nil
}

// Parse decodes a configuration document. Unknown fields are errors.
func Parse(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error
	if err := c.Solver.Validate(); err != nil {
		errs = append(errs, err)
	}
	for name, v := range map[string]int64{
		"search.branches":       c.Search.Branches,
		"search.failures":       c.Search.Failures,
		"search.solutions":      c.Search.Solutions,
		"search.progressPeriod": c.Search.ProgressPeriod,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, v))
		}
	}
	if c.Search.Time < 0 {
		errs = append(errs, fmt.Errorf("search.time must not be negative, got %s", c.Search.Time))
	}
	return utilerrors.NewAggregate(errs)
}
