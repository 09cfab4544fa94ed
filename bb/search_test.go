package bb

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/gmmreg/logging"
	"go.viam.com/gmmreg/spatialmath"
)

type constBound struct {
	kind  Kind
	value float64
}

func (b *constBound) Kind() Kind                     { return b.kind }
func (b *constBound) Evaluate(*Node) float64         { return b.value }
func (b *constBound) EvaluateAndSet(n *Node) float64 { return evaluateAndSet(b, n) }

func quietLogger(t *testing.T) logging.Logger {
	t.Helper()
	logger := logging.NewTestLogger(t)
	logger.SetLevel(logging.INFO)
	return logger
}

func unitCube() Box {
	return Box{Max: r3.Vector{X: 1, Y: 1, Z: 1}}
}

// flatProblem never prunes: every box has lower 0, upper 1 and cost 1.
func flatProblem(objective Objective) Problem {
	if objective == nil {
		objective = ObjectiveFunc(func(r3.Vector) float64 { return 1 })
	}
	return Problem{
		Domain:    unitCube(),
		RootUpper: &constBound{kind: KindIndependent, value: 1},
		Lower:     &constBound{kind: KindLower, value: 0},
		Objective: objective,
	}
}

func TestQueueTieBreak(t *testing.T) {
	mk := func(upper float64, depth int, id uint64) *Node {
		n := NewNode(unitCube(), depth, id)
		n.SetUpper(upper)
		return n
	}
	var q nodeQueue
	for _, n := range []*Node{
		mk(1, 2, 5),
		mk(1, 1, 9),
		mk(2, 0, 0),
		mk(1, 1, 3),
		mk(0.5, 3, 10),
	} {
		q.push(n)
	}
	var order []uint64
	for q.Len() > 0 {
		order = append(order, q.pop().ID())
	}
	test.That(t, order, test.ShouldResemble, []uint64{10, 3, 9, 5, 0})
}

func TestConfigValidate(t *testing.T) {
	test.That(t, DefaultConfig().Validate(), test.ShouldBeNil)
	for _, cfg := range []Config{
		{Tolerance: 0},
		{Tolerance: -1},
		{Tolerance: 1e-3, MinBoxSize: -1},
		{Tolerance: 1e-3, MaxIterations: -1},
		{Tolerance: 1e-3, TimeBudget: -time.Second},
		{Tolerance: 1e-3, Workers: -2},
	} {
		err := cfg.Validate()
		test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)
	}
}

func TestSearchInvalidProblem(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cfg := DefaultConfig()

	p := flatProblem(nil)
	p.Domain = Box{Max: r3.Vector{X: 1, Y: 1}}
	_, err := Search(context.Background(), p, cfg, logger)
	test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)

	p = flatProblem(nil)
	p.Lower = nil
	_, err = Search(context.Background(), p, cfg, logger)
	test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)

	p = flatProblem(nil)
	p.Lower = p.RootUpper
	_, err = Search(context.Background(), p, cfg, logger)
	test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)

	p = flatProblem(nil)
	p.ChildUpper = &constBound{kind: KindLower}
	_, err = Search(context.Background(), p, cfg, logger)
	test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)

	p = flatProblem(nil)
	p.Objective = nil
	_, err = Search(context.Background(), p, cfg, logger)
	test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)

	_, err = Search(context.Background(), flatProblem(nil), Config{}, logger)
	test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)
}

func TestSearchBoundInversion(t *testing.T) {
	p := flatProblem(nil)
	p.Lower = &constBound{kind: KindLower, value: 5}
	_, err := Search(context.Background(), p, DefaultConfig(), logging.NewTestLogger(t))
	test.That(t, errors.Is(err, ErrBoundInversion), test.ShouldBeTrue)

	// children inherit the parent's lower bound, so an upper bound that collapses below it is
	// caught as well
	p = flatProblem(nil)
	p.Lower = &constBound{kind: KindLower, value: 0.5}
	p.ChildUpper = &constBound{kind: KindIndependent, value: 0.25}
	_, err = Search(context.Background(), p, DefaultConfig(), logging.NewTestLogger(t))
	test.That(t, errors.Is(err, ErrBoundInversion), test.ShouldBeTrue)
}

func TestSearchDegenerateDomain(t *testing.T) {
	// the target sits so far outside the domain that every cost saturates
	src := isotropicModel(t, 1e-4, r3.Vector{})
	dst := isotropicModel(t, 1e-4, r3.Vector{X: 1e5})
	domain := Box{Min: r3.Vector{X: -1, Y: -1, Z: -1}, Max: r3.Vector{X: 1, Y: 1, Z: 1}}
	logger, logs := logging.NewObservedTestLogger(t)

	res, err := Search(context.Background(), NewTranslationProblem(domain, src, dst, spatialmath.IdentityQuat), DefaultConfig(), logger)
	test.That(t, errors.Is(err, ErrDegenerate), test.ShouldBeTrue)
	test.That(t, res, test.ShouldBeNil)
	test.That(t, logs.FilterMessage("search degenerate").Len(), test.ShouldEqual, 1)

	// a saturated objective is degenerate even when the bounds are finite
	p := flatProblem(ObjectiveFunc(func(r3.Vector) float64 { return math.Inf(1) }))
	cfg := DefaultConfig()
	cfg.MinBoxSize = 0.3
	_, err = Search(context.Background(), p, cfg, quietLogger(t))
	test.That(t, errors.Is(err, ErrDegenerate), test.ShouldBeTrue)
}

func TestSearchResolutionLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinBoxSize = 0.3
	res, err := Search(context.Background(), flatProblem(nil), cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, StatusResolutionLimit)
	test.That(t, res.Unresolved, test.ShouldBeFalse)
	test.That(t, res.Iterations, test.ShouldEqual, 1+8+64)
	test.That(t, res.NodesCreated, test.ShouldEqual, 1+8+64)
	test.That(t, res.NodesResolved, test.ShouldEqual, 64)
	test.That(t, res.NodesPruned, test.ShouldEqual, 0)
	test.That(t, res.Cost, test.ShouldEqual, 1.0)
	test.That(t, res.LowerBound, test.ShouldEqual, 0.0)
	test.That(t, res.Gap, test.ShouldEqual, 1.0)
	test.That(t, res.Evaluations, test.ShouldEqual, int64(3*res.NodesCreated))
}

func TestSearchIterationBudget(t *testing.T) {
	src := anisotropicModel(t)
	dst := src.Translate(r3.Vector{X: 0.7, Y: -0.3, Z: 0.45})
	domain := Box{Min: r3.Vector{X: -2, Y: -2, Z: -2}, Max: r3.Vector{X: 2, Y: 2, Z: 2}}
	cfg := DefaultConfig()
	cfg.MaxIterations = 1

	res, err := Search(context.Background(), NewTranslationProblem(domain, src, dst, spatialmath.IdentityQuat), cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, StatusIterationBudget)
	test.That(t, res.Unresolved, test.ShouldBeTrue)
	test.That(t, res.Iterations, test.ShouldEqual, 1)
	test.That(t, res.NodesCreated, test.ShouldEqual, 9)
	test.That(t, res.Gap, test.ShouldBeGreaterThan, cfg.Tolerance)
	test.That(t, res.LowerBound, test.ShouldBeLessThanOrEqualTo, res.Cost)
}

func TestSearchDeadline(t *testing.T) {
	t.Run("time budget", func(t *testing.T) {
		mock := clock.NewMock()
		cfg := DefaultConfig()
		cfg.Clock = mock
		cfg.TimeBudget = 10 * time.Second
		cfg.Workers = 1
		cfg.MinBoxSize = 0
		objective := ObjectiveFunc(func(r3.Vector) float64 {
			mock.Add(time.Second)
			return 1
		})

		res, err := Search(context.Background(), flatProblem(objective), cfg, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Status, test.ShouldEqual, StatusDeadline)
		test.That(t, res.Unresolved, test.ShouldBeTrue)
		test.That(t, res.Iterations, test.ShouldEqual, 2)
		test.That(t, res.Elapsed, test.ShouldEqual, 17*time.Second)
	})

	t.Run("context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res, err := Search(ctx, flatProblem(nil), DefaultConfig(), logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Status, test.ShouldEqual, StatusDeadline)
		test.That(t, res.Iterations, test.ShouldEqual, 0)
		test.That(t, res.NodesCreated, test.ShouldEqual, 1)
		test.That(t, res.Gap, test.ShouldEqual, 1.0)
	})
}

func TestChildBoundsInherit(t *testing.T) {
	src := anisotropicModel(t)
	dst := src.Translate(r3.Vector{X: 0.7, Y: -0.3, Z: 0.45})
	p := NewTranslationProblem(Box{Min: r3.Vector{X: -2, Y: -2, Z: -2}, Max: r3.Vector{X: 2, Y: 2, Z: 2}},
		src, dst, spatialmath.IdentityQuat)
	s := &searcher{problem: p, cfg: DefaultConfig(), logger: logging.NewTestLogger(t)}

	root := NewNode(p.Domain, 0, 0)
	_, err := s.evaluate(root, nil, p.RootUpper)
	test.That(t, err, test.ShouldBeNil)
	parents := []*Node{root}
	for depth := 0; depth < 3; depth++ {
		var next []*Node
		for _, parent := range parents {
			for _, child := range parent.Subdivide(0) {
				_, err := s.evaluate(child, parent, p.childUpper())
				test.That(t, err, test.ShouldBeNil)
				test.That(t, child.upper, test.ShouldBeLessThanOrEqualTo, parent.upper)
				test.That(t, child.lower, test.ShouldBeGreaterThanOrEqualTo, parent.lower)
				test.That(t, child.lower, test.ShouldBeLessThanOrEqualTo, child.upper)
				next = append(next, child)
			}
		}
		parents = next[:4]
	}
}

func TestSearchIdenticalModels(t *testing.T) {
	m := anisotropicModel(t)
	domain := Box{Min: r3.Vector{X: -1, Y: -0.7, Z: -1.1}, Max: r3.Vector{X: 1.3, Y: 1, Z: 0.9}}
	cfg := DefaultConfig()
	cfg.MinBoxSize = 1e-5
	logger, logs := logging.NewObservedTestLogger(t)
	logger.SetLevel(logging.INFO)

	res, err := Search(context.Background(), NewTranslationProblem(domain, m, m, spatialmath.IdentityQuat), cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, StatusCertified)
	test.That(t, res.Unresolved, test.ShouldBeFalse)
	test.That(t, res.Cost, test.ShouldBeLessThan, cfg.Tolerance)
	test.That(t, res.Gap, test.ShouldBeLessThanOrEqualTo, cfg.Tolerance)
	test.That(t, logs.FilterMessage("search finished").Len(), test.ShouldEqual, 1)

	cfg.Tolerance = 1e-9
	cfg.MinBoxSize = 1e-4
	cfg.MaxIterations = 200000
	res, err = Search(context.Background(), NewTranslationProblem(domain, m, m, spatialmath.IdentityQuat), cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Point.Norm(), test.ShouldBeLessThanOrEqualTo, cfg.MinBoxSize)
	test.That(t, res.LowerBound, test.ShouldBeLessThanOrEqualTo, res.Cost)
}

func TestSearchRecoversTranslation(t *testing.T) {
	src := anisotropicModel(t)
	t0 := r3.Vector{X: 0.7, Y: -0.3, Z: 0.45}
	dst := src.Translate(t0)
	domain := Box{Min: r3.Vector{X: -2, Y: -2, Z: -2}, Max: r3.Vector{X: 2, Y: 2, Z: 2}}
	cfg := DefaultConfig()
	cfg.MinBoxSize = 1e-5
	cfg.MaxIterations = 200000

	res, err := Search(context.Background(), NewTranslationProblem(domain, src, dst, spatialmath.IdentityQuat), cfg, quietLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, StatusCertified)
	test.That(t, res.Cost, test.ShouldBeLessThan, cfg.Tolerance)
	test.That(t, res.LowerBound, test.ShouldBeLessThanOrEqualTo, res.Cost)
	test.That(t, res.NodesPruned, test.ShouldBeGreaterThan, 0)
	test.That(t, res.Elapsed, test.ShouldBeGreaterThanOrEqualTo, time.Duration(0))

	cfg.Tolerance = 1e-9
	cfg.MinBoxSize = 1e-4
	res, err = Search(context.Background(), NewTranslationProblem(domain, src, dst, spatialmath.IdentityQuat), cfg, quietLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Point.Distance(t0), test.ShouldBeLessThanOrEqualTo, cfg.MinBoxSize)
	test.That(t, res.LowerBound, test.ShouldBeLessThanOrEqualTo, res.Cost)
}

func TestSearchRecoversRotation(t *testing.T) {
	src := isotropicModel(t, 0.02,
		r3.Vector{X: 1}, r3.Vector{Y: 0.8, Z: 0.2}, r3.Vector{X: -0.6, Y: -0.4}, r3.Vector{Z: 1.2})
	r0 := r3.Vector{X: 0.3, Y: -0.2, Z: 0.6}
	dst := src.Transform(spatialmath.R3ToQuat(r0), r3.Vector{})
	cfg := DefaultConfig()
	cfg.Tolerance = 1e-2
	cfg.MinBoxSize = 0.02
	cfg.MaxIterations = 50000

	res, err := Search(context.Background(), NewRotationProblem(src, dst, r3.Vector{}), cfg, quietLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.LowerBound, test.ShouldBeLessThanOrEqualTo, res.Cost)
	angle := spatialmath.AngleBetween(spatialmath.R3ToQuat(res.Point), spatialmath.R3ToQuat(r0))
	test.That(t, angle, test.ShouldBeLessThan, 0.05)
}
