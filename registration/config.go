package registration

import (
	"os"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	goutils "go.viam.com/utils"

	"go.viam.com/gmmreg/bb"
)

// DomainConfig is an axis-aligned box of translations.
type DomainConfig struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// Box converts the config to a search box.
func (cfg *DomainConfig) Box() (bb.Box, error) {
	return bb.NewBox(
		r3.Vector{X: cfg.Min[0], Y: cfg.Min[1], Z: cfg.Min[2]},
		r3.Vector{X: cfg.Max[0], Y: cfg.Max[1], Z: cfg.Max[2]},
	)
}

// Config describes a registration run.
type Config struct {
	Tolerance             float64       `json:"tolerance,omitempty"`
	TranslationResolution float64       `json:"translation_resolution,omitempty"`
	RotationTolerance     float64       `json:"rotation_tolerance,omitempty"`
	RotationResolution    float64       `json:"rotation_resolution,omitempty"`
	MaxIterations         int           `json:"max_iterations,omitempty"`
	TimeBudgetSec         float64       `json:"time_budget_sec,omitempty"`
	Workers               int           `json:"workers,omitempty"`
	TranslationDomain     *DomainConfig `json:"translation_domain,omitempty"`
	SkipRotation          bool          `json:"skip_rotation,omitempty"`
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() Config {
	return Config{
		Tolerance:             1e-3,
		TranslationResolution: 1e-3,
		RotationTolerance:     1e-2,
		RotationResolution:    1e-2,
		MaxIterations:         100000,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Tolerance <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("tolerance must be positive"))
	}
	if cfg.RotationTolerance <= 0 && !cfg.SkipRotation {
		return goutils.NewConfigValidationError(path, errors.New("rotation_tolerance must be positive"))
	}
	if cfg.TranslationResolution < 0 || cfg.RotationResolution < 0 {
		return goutils.NewConfigValidationError(path, errors.New("resolutions must be non-negative"))
	}
	if cfg.MaxIterations < 0 {
		return goutils.NewConfigValidationError(path, errors.New("max_iterations must be non-negative"))
	}
	if cfg.TimeBudgetSec < 0 {
		return goutils.NewConfigValidationError(path, errors.New("time_budget_sec must be non-negative"))
	}
	if cfg.Workers < 0 {
		return goutils.NewConfigValidationError(path, errors.New("workers must be non-negative"))
	}
	if cfg.TranslationDomain != nil {
		box, err := cfg.TranslationDomain.Box()
		if err != nil {
			return goutils.NewConfigValidationError(path+".translation_domain", err)
		}
		if box.Volume() <= 0 {
			return goutils.NewConfigValidationError(path+".translation_domain", errors.New("domain has no volume"))
		}
	}
	return nil
}

func (cfg *Config) searchConfig(tolerance, resolution float64) bb.Config {
	return bb.Config{
		Tolerance:     tolerance,
		MinBoxSize:    resolution,
		MaxIterations: cfg.MaxIterations,
		TimeBudget:    time.Duration(cfg.TimeBudgetSec * float64(time.Second)),
		Workers:       cfg.Workers,
	}
}

// ReadConfigFile reads and validates a JSON5 config, so comments and trailing commas are
// allowed. Fields that are absent keep their defaults.
func ReadConfigFile(path string) (*Config, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", path)
	}
	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}
