package registration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/gmmreg/bb"
	"go.viam.com/gmmreg/gmm"
	"go.viam.com/gmmreg/logging"
	"go.viam.com/gmmreg/spatialmath"
)

func testModel(t *testing.T) *gmm.Model {
	t.Helper()
	means := []r3.Vector{{X: 1}, {Y: 0.8, Z: 0.2}, {X: -0.6, Y: -0.4}, {Z: 1.2}}
	comps := make([]gmm.Component, 0, len(means))
	for _, mu := range means {
		c, err := gmm.NewIsotropicComponent(mu, 0.02, 0.25)
		test.That(t, err, test.ShouldBeNil)
		comps = append(comps, c)
	}
	m, err := gmm.NewModel(comps)
	test.That(t, err, test.ShouldBeNil)
	return m
}

func quietLogger(t *testing.T) logging.Logger {
	t.Helper()
	logger := logging.NewTestLogger(t)
	logger.SetLevel(logging.INFO)
	return logger
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate("cfg"), test.ShouldBeNil)

	for _, mutate := range []func(*Config){
		func(c *Config) { c.Tolerance = 0 },
		func(c *Config) { c.RotationTolerance = -1 },
		func(c *Config) { c.TranslationResolution = -1 },
		func(c *Config) { c.MaxIterations = -5 },
		func(c *Config) { c.TimeBudgetSec = -1 },
		func(c *Config) { c.Workers = -1 },
		func(c *Config) { c.TranslationDomain = &DomainConfig{Min: [3]float64{1, 0, 0}, Max: [3]float64{0, 1, 1}} },
		func(c *Config) { c.TranslationDomain = &DomainConfig{Max: [3]float64{1, 1, 0}} },
	} {
		bad := DefaultConfig()
		mutate(&bad)
		err := bad.Validate("cfg")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "cfg")
	}

	skip := DefaultConfig()
	skip.SkipRotation = true
	skip.RotationTolerance = 0
	test.That(t, skip.Validate("cfg"), test.ShouldBeNil)
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	test.That(t, os.WriteFile(path, []byte(`{"tolerance": 0.01, "skip_rotation": true,
		"translation_domain": {"min": [-1, -1, -1], "max": [1, 1, 1]}}`), 0o600), test.ShouldBeNil)

	cfg, err := ReadConfigFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Tolerance, test.ShouldEqual, 0.01)
	test.That(t, cfg.SkipRotation, test.ShouldBeTrue)
	test.That(t, cfg.RotationResolution, test.ShouldEqual, DefaultConfig().RotationResolution)
	box, err := cfg.TranslationDomain.Box()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, box.Volume(), test.ShouldAlmostEqual, 8)

	test.That(t, os.WriteFile(path, []byte(`{
		// coarse run
		"rotation_resolution": 0.05,
		"workers": 2,
	}`), 0o600), test.ShouldBeNil)
	cfg, err = ReadConfigFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.RotationResolution, test.ShouldEqual, 0.05)
	test.That(t, cfg.Workers, test.ShouldEqual, 2)
	test.That(t, cfg.Tolerance, test.ShouldEqual, DefaultConfig().Tolerance)

	test.That(t, os.WriteFile(path, []byte(`{"tolerance": -1}`), 0o600), test.ShouldBeNil)
	_, err = ReadConfigFile(path)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, os.WriteFile(path, []byte(`{`), 0o600), test.ShouldBeNil)
	_, err = ReadConfigFile(path)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ReadConfigFile(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDefaultTranslationDomain(t *testing.T) {
	src := testModel(t)
	t0 := r3.Vector{X: 3, Y: -1, Z: 2}
	dst := src.Translate(t0)
	box := DefaultTranslationDomain(src, dst, spatialmath.IdentityQuat)
	test.That(t, box.Center().Distance(t0), test.ShouldBeLessThan, 1e-9)
	test.That(t, box.Contains(t0), test.ShouldBeTrue)
	test.That(t, box.Volume(), test.ShouldBeGreaterThan, 0)
	test.That(t, box.HalfExtents().X, test.ShouldAlmostEqual, 1.6+3*0.1414213562373095, 1e-9)
}

func TestRegisterTranslationOnly(t *testing.T) {
	src := testModel(t)
	t0 := r3.Vector{X: 0.4, Y: -0.25, Z: 0.3}
	dst := src.Translate(t0)
	cfg := DefaultConfig()
	cfg.SkipRotation = true
	cfg.TranslationResolution = 1e-5

	res, err := Register(context.Background(), src, dst, cfg, quietLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.RotationSearch, test.ShouldBeNil)
	test.That(t, res.Rotation, test.ShouldResemble, spatialmath.IdentityQuat)
	test.That(t, res.Cost, test.ShouldBeLessThan, cfg.Tolerance)
	test.That(t, res.TranslationSearch.Status, test.ShouldEqual, bb.StatusCertified)
	test.That(t, res.Certified(), test.ShouldBeTrue)

	cfg.Tolerance = 1e-9
	cfg.TranslationResolution = 1e-4
	cfg.MaxIterations = 200000
	res, err = Register(context.Background(), src, dst, cfg, quietLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Translation.Distance(t0), test.ShouldBeLessThanOrEqualTo, cfg.TranslationResolution)
	test.That(t, res.TranslationSearch.LowerBound, test.ShouldBeLessThanOrEqualTo, res.Cost)
}

func TestRegisterDegenerateDomain(t *testing.T) {
	point := func(mu r3.Vector) *gmm.Model {
		c, err := gmm.NewIsotropicComponent(mu, 1e-4, 1)
		test.That(t, err, test.ShouldBeNil)
		m, err := gmm.NewModel([]gmm.Component{c})
		test.That(t, err, test.ShouldBeNil)
		return m
	}
	cfg := DefaultConfig()
	cfg.SkipRotation = true
	cfg.TranslationDomain = &DomainConfig{Min: [3]float64{-1, -1, -1}, Max: [3]float64{1, 1, 1}}

	res, err := Register(context.Background(), point(r3.Vector{}), point(r3.Vector{X: 1e5}), cfg, quietLogger(t))
	test.That(t, errors.Is(err, bb.ErrDegenerate), test.ShouldBeTrue)
	test.That(t, res, test.ShouldBeNil)
}

func TestRegisterExplicitDomain(t *testing.T) {
	src := testModel(t)
	t0 := r3.Vector{X: 0.4, Y: -0.25, Z: 0.3}
	dst := src.Translate(t0)
	cfg := DefaultConfig()
	cfg.SkipRotation = true
	// the domain excludes t0 so the best point sits on its boundary
	cfg.TranslationDomain = &DomainConfig{Min: [3]float64{-1, -1, -1}, Max: [3]float64{0, 0, 0}}

	res, err := Register(context.Background(), src, dst, cfg, quietLogger(t))
	test.That(t, err, test.ShouldBeNil)
	box, err := cfg.TranslationDomain.Box()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, box.Contains(res.Translation), test.ShouldBeTrue)
	test.That(t, res.Cost, test.ShouldBeGreaterThan, 0)
}

func TestRegister(t *testing.T) {
	src := testModel(t)
	q0 := spatialmath.R3ToQuat(r3.Vector{X: 0.3, Y: -0.2, Z: 0.6})
	t0 := r3.Vector{X: 0.5, Y: 0.2, Z: -0.3}
	dst := src.Transform(q0, t0)
	cfg := DefaultConfig()
	cfg.MaxIterations = 50000

	res, err := Register(context.Background(), src, dst, cfg, quietLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.RotationSearch, test.ShouldNotBeNil)
	test.That(t, spatialmath.AngleBetween(res.Rotation, q0), test.ShouldBeLessThan, 0.05)
	test.That(t, res.Translation.Distance(t0), test.ShouldBeLessThan, 0.1)
	test.That(t, res.Gap, test.ShouldBeGreaterThanOrEqualTo, 0)

	pose := res.Pose()
	moved := pose.Transform(src.At(0).Mean())
	test.That(t, moved.Distance(dst.At(0).Mean()), test.ShouldBeLessThan, 0.1)
}

func TestRegisterInvalidConfig(t *testing.T) {
	src := testModel(t)
	_, err := Register(context.Background(), src, src, Config{}, nil)
	test.That(t, err, test.ShouldNotBeNil)
}
