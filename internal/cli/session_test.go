package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/cpkernel/internal/config"
	"github.com/operator-framework/cpkernel/pkg/cp"
)

func parse(t *testing.T, args ...string) (*Flags, *pflag.FlagSet) {
	t.Helper()
	f := &Flags{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.Bind(fs)
	require.NoError(t, fs.Parse(args))
	return f, fs
}

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestConfigDefaults(t *testing.T) {
	f, fs := parse(t)
	c, err := f.Config(fs)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := writeConfig(t, `
solver:
  trailCompression: s2
  logLevel: info
search:
  branches: 10
  failures: 3
`)
	f, fs := parse(t, "--config", path, "--limit-branches", "20", "--log-level", "debug", "--limit-time", "2s")
	c, err := f.Config(fs)
	require.NoError(t, err)

	assert.Equal(t, "s2", c.Solver.TrailCompression)
	assert.Equal(t, "debug", c.Solver.LogLevel)
	assert.Equal(t, int64(20), c.Search.Branches)
	assert.Equal(t, int64(3), c.Search.Failures)
	assert.Equal(t, 2*time.Second, c.Search.Time)
}

func TestInvalidFlags(t *testing.T) {
	for name, args := range map[string][]string{
		"log level":   {"--log-level", "loud"},
		"compression": {"--trail-compression", "zip"},
		"config file": {"--config", filepath.Join(t.TempDir(), "missing.yaml")},
	} {
		t.Run(name, func(t *testing.T) {
			f, fs := parse(t, args...)
			_, err := f.Config(fs)
			assert.Error(t, err)
		})
	}
}

func TestSession(t *testing.T) {
	c := config.Default()
	c.Search.Solutions = 1
	ss, err := NewSession(context.Background(), "test", c)
	require.NoError(t, err)
	defer func() { assert.NoError(t, ss.Close()) }()

	assert.Equal(t, "test", ss.Solver.Name())
	assert.Len(t, ss.Monitors, 3)
	assert.Same(t, ss.Log, ss.Solver.Logger())

	t.Run("limits every search", func(t *testing.T) {
		s := ss.Solver
		db := cp.BuilderFunc(func(*cp.Solver) cp.Decision {
			return cp.NewDecision("any", func(*cp.Solver) {}, func(*cp.Solver) {})
		})
		depth := s.Trail().NewInt(0)
		bounded := cp.BuilderFunc(func(s *cp.Solver) cp.Decision {
			if s.Trail().Int(depth) == 2 {
				return nil
			}
			s.Trail().AddInt(depth, 1)
			return db.Next(s)
		})
		s.NewSearch(bounded, ss.Monitors...)
		n := 0
		for s.NextSolution() {
			n++
		}
		s.EndSearch()
		assert.Equal(t, 1, n)
		assert.True(t, ss.Limit.Crossed())
		ss.Report(n)
	})
}
