// Package bb implements a best-first spatial branch and bound search over boxes of R^3. It is used
// to find globally optimal rotations and translations aligning two Gaussian mixtures, but the
// driver only depends on the Bound and Objective interfaces.
package bb

import (
	"context"
	"math"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"go.viam.com/gmmreg/logging"
)

type incumbent struct {
	point r3.Vector
	cost  float64
}

type searcher struct {
	problem Problem
	cfg     Config
	logger  logging.Logger
	clk     clock.Clock

	queue  nodeQueue
	best   incumbent
	nextID uint64

	// floor is the smallest lower bound of every node that left the queue without being
	// subdivided.
	floor float64

	iterations  int
	created     int
	pruned      int
	resolved    int
	evaluations atomic.Int64
}

// Search runs branch and bound over problem.Domain. It returns the best point found together
// with a certified lower bound of the global minimum. Running out of iterations or time, or a
// done context, is a normal termination reported through Result.Status. ErrInvalidConfig,
// ErrBoundInversion and ErrDegenerate are returned as errors.
func Search(ctx context.Context, problem Problem, cfg Config, logger logging.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewBlankLogger("bb")
	}
	s := &searcher{
		problem: problem,
		cfg:     cfg,
		logger:  logger,
		clk:     cfg.clock(),
		floor:   math.Inf(1),
	}
	return s.run(ctx)
}

func (s *searcher) run(ctx context.Context) (*Result, error) {
	start := s.clk.Now()

	root := NewNode(s.problem.Domain, 0, s.nextID)
	s.nextID++
	s.created++
	rootCost, err := s.evaluate(root, nil, s.problem.RootUpper)
	if err != nil {
		return nil, err
	}
	s.best = incumbent{point: root.Witness(), cost: rootCost}
	s.queue.push(root)
	s.logger.Infow("starting search",
		"domain_min", s.problem.Domain.Min, "domain_max", s.problem.Domain.Max,
		"root_lower", root.lower, "root_upper", root.upper, "root_cost", rootCost)

	status := StatusCertified
	unresolved := false
	for s.queue.Len() > 0 {
		if ctx.Err() != nil || (s.cfg.TimeBudget > 0 && s.clk.Since(start) >= s.cfg.TimeBudget) {
			status, unresolved = StatusDeadline, true
			break
		}
		if s.cfg.MaxIterations > 0 && s.iterations >= s.cfg.MaxIterations {
			status, unresolved = StatusIterationBudget, true
			break
		}

		node := s.queue.pop()
		s.iterations++

		if node.lower >= s.best.cost-s.cfg.Tolerance {
			s.pruned++
			s.floor = math.Min(s.floor, node.lower)
			continue
		}
		if node.box.MaxSide() < s.cfg.MinBoxSize || node.upper-node.lower < s.cfg.Tolerance {
			s.resolved++
			s.floor = math.Min(s.floor, node.lower)
			continue
		}

		children := node.Subdivide(s.nextID)
		s.nextID += uint64(len(children))
		s.created += len(children)
		costs, err := s.evaluateChildren(ctx, node, children)
		if err != nil {
			return nil, err
		}
		for i, child := range children {
			s.offer(child.Witness(), costs[i])
			s.queue.push(child)
		}
		s.logger.CDebugf(ctx, "iteration %d: %v, incumbent %g, queue %d", s.iterations, node, s.best.cost, s.queue.Len())
	}

	if s.best.cost >= Sentinel {
		s.logger.Warnw("search degenerate", "iterations", s.iterations, "nodes", s.created)
		return nil, errors.Wrapf(ErrDegenerate, "no cost below %g after %d iterations", Sentinel, s.iterations)
	}

	lowerBound := math.Min(s.floor, s.best.cost)
	if open, ok := s.queue.minLower(); ok {
		lowerBound = math.Min(lowerBound, open)
	}
	gap := math.Max(0, s.best.cost-lowerBound)
	if !unresolved && gap > s.cfg.Tolerance {
		status = StatusResolutionLimit
	}

	res := &Result{
		Point:         s.best.point,
		Cost:          s.best.cost,
		LowerBound:    lowerBound,
		Gap:           gap,
		Status:        status,
		Unresolved:    unresolved,
		Iterations:    s.iterations,
		NodesCreated:  s.created,
		NodesPruned:   s.pruned,
		NodesResolved: s.resolved,
		Evaluations:   s.evaluations.Load(),
		Elapsed:       s.clk.Since(start),
	}
	s.logger.Infow("search finished",
		"status", res.Status.String(), "cost", res.Cost, "gap", res.Gap,
		"iterations", res.Iterations, "nodes", res.NodesCreated, "elapsed", res.Elapsed)
	return res, nil
}

// evaluateChildren bounds and scores the children concurrently. Each goroutine only touches its
// own child; the queue and incumbent are updated by the caller afterwards.
func (s *searcher) evaluateChildren(ctx context.Context, parent *Node, children []*Node) ([]float64, error) {
	costs := make([]float64, len(children))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.workers())
	for i, child := range children {
		i, child := i, child
		g.Go(func() error {
			cost, err := s.evaluate(child, parent, s.problem.childUpper())
			costs[i] = cost
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return costs, nil
}

// evaluate sets both bounds of n, tightened by the parent's when given, and returns the exact
// cost at its witness.
func (s *searcher) evaluate(n, parent *Node, upperBound Bound) (float64, error) {
	lower := s.problem.Lower.EvaluateAndSet(n)
	upper := upperBound.EvaluateAndSet(n)
	s.evaluations.Add(2)
	if lower == Sentinel || upper == Sentinel {
		s.logger.Debugw("bound saturated", "node", n.String())
	}
	if parent != nil {
		n.SetLower(math.Max(parent.lower, lower))
		n.SetUpper(math.Min(parent.upper, upper))
	}
	if n.lower > n.upper+1e-9*math.Max(1, math.Abs(n.upper)) {
		return 0, errors.Wrapf(ErrBoundInversion, "%v", n)
	}
	cost := clamp(s.problem.Objective.Cost(n.Witness()))
	s.evaluations.Inc()
	return cost, nil
}

// offer makes p the incumbent if it improves on the current one.
func (s *searcher) offer(p r3.Vector, cost float64) {
	if cost < s.best.cost {
		s.best = incumbent{point: p, cost: cost}
	}
}
