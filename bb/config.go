package bb

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/gmmreg/utils"
)

// Config controls termination and parallelism of a search.
type Config struct {
	// Tolerance is the optimality gap at which a node, and the whole search, counts as resolved.
	Tolerance float64
	// MinBoxSize stops subdividing boxes whose longest side is below it.
	MinBoxSize float64
	// MaxIterations caps the number of nodes taken from the queue. Zero means no cap.
	MaxIterations int
	// TimeBudget caps the wall time of the search. Zero means no cap.
	TimeBudget time.Duration
	// Workers bounds the goroutines evaluating children. Zero means utils.ParallelFactor.
	Workers int
	// Clock measures the time budget. Nil means the real clock.
	Clock clock.Clock
}

// DefaultConfig returns a config suitable for searches over domains of unit scale.
func DefaultConfig() Config {
	return Config{
		Tolerance:     1e-3,
		MinBoxSize:    1e-3,
		MaxIterations: 100000,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg Config) Validate() error {
	var errs error
	if !utils.IsFinite(cfg.Tolerance) || cfg.Tolerance <= 0 {
		errs = multierr.Append(errs, errors.Errorf("tolerance must be positive, got %v", cfg.Tolerance))
	}
	if !utils.IsFinite(cfg.MinBoxSize) || cfg.MinBoxSize < 0 {
		errs = multierr.Append(errs, errors.Errorf("min box size must be non-negative, got %v", cfg.MinBoxSize))
	}
	if cfg.MaxIterations < 0 {
		errs = multierr.Append(errs, errors.Errorf("max iterations must be non-negative, got %d", cfg.MaxIterations))
	}
	if cfg.TimeBudget < 0 {
		errs = multierr.Append(errs, errors.Errorf("time budget must be non-negative, got %v", cfg.TimeBudget))
	}
	if cfg.Workers < 0 {
		errs = multierr.Append(errs, errors.Errorf("workers must be non-negative, got %d", cfg.Workers))
	}
	if errs != nil {
		return errors.Wrap(ErrInvalidConfig, errs.Error())
	}
	return nil
}

func (cfg Config) workers() int {
	if cfg.Workers == 0 {
		return utils.ParallelFactor
	}
	return cfg.Workers
}

func (cfg Config) clock() clock.Clock {
	if cfg.Clock == nil {
		return clock.New()
	}
	return cfg.Clock
}

// Problem is a search over Domain. RootUpper bounds the root box, ChildUpper every subdivided
// box (RootUpper when nil), Lower bounds from below, and Objective scores the incumbent
// candidates.
type Problem struct {
	Domain     Box
	RootUpper  Bound
	ChildUpper Bound
	Lower      Bound
	Objective  Objective
}

// Validate ensures the problem can be searched.
func (p Problem) Validate() error {
	var errs error
	if !(p.Domain.Volume() > 0) {
		errs = multierr.Append(errs, errors.Errorf("domain [%v, %v] has no volume", p.Domain.Min, p.Domain.Max))
	}
	if p.RootUpper == nil {
		errs = multierr.Append(errs, errors.New("missing root upper bound"))
	} else if !p.RootUpper.Kind().IsUpper() {
		errs = multierr.Append(errs, errors.Errorf("root upper bound has kind %v", p.RootUpper.Kind()))
	}
	if p.ChildUpper != nil && !p.ChildUpper.Kind().IsUpper() {
		errs = multierr.Append(errs, errors.Errorf("child upper bound has kind %v", p.ChildUpper.Kind()))
	}
	if p.Lower == nil {
		errs = multierr.Append(errs, errors.New("missing lower bound"))
	} else if p.Lower.Kind() != KindLower {
		errs = multierr.Append(errs, errors.Errorf("lower bound has kind %v", p.Lower.Kind()))
	}
	if p.Objective == nil {
		errs = multierr.Append(errs, errors.New("missing objective"))
	}
	if errs != nil {
		return errors.Wrap(ErrInvalidConfig, errs.Error())
	}
	return nil
}

func (p Problem) childUpper() Bound {
	if p.ChildUpper == nil {
		return p.RootUpper
	}
	return p.ChildUpper
}
