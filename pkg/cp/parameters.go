package cp

import (
	"fmt"

	"github.com/sirupsen/logrus"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/operator-framework/cpkernel/pkg/trail"
)

// Parameters tune the memory and bookkeeping of a Solver.
type Parameters struct {
	// TrailBlockSize is the number of entries per trail block.
	TrailBlockSize int `yaml:"trailBlockSize"`
	// TrailCompression names the codec used to pack completed trail
	// blocks: none, noop or s2.
	TrailCompression string `yaml:"trailCompression"`
	// PeriodicCheckInterval is the number of demon runs between two
	// periodic checks of the search monitors. Zero disables them.
	PeriodicCheckInterval int64 `yaml:"periodicCheckInterval"`
	// LogLevel is a logrus level name.
	LogLevel string `yaml:"logLevel"`
}

func DefaultParameters() Parameters {
	return Parameters{
		TrailBlockSize:        trail.DefaultBlockSize,
		TrailCompression:      "none",
		PeriodicCheckInterval: 1000,
		LogLevel:              logrus.WarnLevel.String(),
	}
}

// Validate reports every invalid field at once.
func (p Parameters) Validate() error {
	var errs []error
	if p.TrailBlockSize <= 0 {
		errs = append(errs, fmt.Errorf("trailBlockSize must be positive, got %d", p.TrailBlockSize))
	}
	if _, err := trail.CodecByName(p.TrailCompression); err != nil {
		errs = append(errs, err)
	}
	if p.PeriodicCheckInterval < 0 {
		errs = append(errs, fmt.Errorf("periodicCheckInterval must not be negative, got %d", p.PeriodicCheckInterval))
	}
	if _, err := logrus.ParseLevel(p.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return utilerrors.NewAggregate(errs)
}
