package bb

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/gmmreg/gmm"
)

// TranslationCost is the exact alignment cost as a function of translation with the rotation
// held fixed.
type TranslationCost struct {
	terms *translationTerms
}

// NewTranslationCost returns the cost of moving src by rotation q and a translation onto dst.
func NewTranslationCost(src, dst *gmm.Model, q quat.Number) *TranslationCost {
	return &TranslationCost{terms: newTranslationTerms(src, dst, q)}
}

// Cost returns the cost at translation t.
func (c *TranslationCost) Cost(t r3.Vector) float64 {
	return c.terms.cost(func(k int) float64 { return c.terms.pairs[k].q(t) })
}

// IndependentUpperR3 bounds the translation cost from above by taking each pair's worst
// placement in the box independently.
type IndependentUpperR3 struct {
	terms *translationTerms
}

// NewIndependentUpperR3 returns the independent upper bound for src rotated by q against dst.
func NewIndependentUpperR3(src, dst *gmm.Model, q quat.Number) *IndependentUpperR3 {
	return &IndependentUpperR3{terms: newTranslationTerms(src, dst, q)}
}

// Kind returns KindIndependent.
func (u *IndependentUpperR3) Kind() Kind {
	return KindIndependent
}

// Evaluate returns an upper bound of the cost at every point of the node's box.
func (u *IndependentUpperR3) Evaluate(n *Node) float64 {
	return independentUpper(u.terms, n.box)
}

// EvaluateAndSet evaluates and caches the bound into n.
func (u *IndependentUpperR3) EvaluateAndSet(n *Node) float64 {
	return evaluateAndSet(u, n)
}

// q_k is convex so its maximum over the box is attained at a corner.
func independentUpper(terms *translationTerms, box Box) float64 {
	corners := box.Corners()
	return terms.cost(func(k int) float64 {
		p := &terms.pairs[k]
		worst := 0.0
		for _, c := range corners {
			worst = math.Max(worst, p.q(c))
		}
		return worst
	})
}

// ConvexUpperR3 bounds the translation cost from above using convexity. It is the smallest of
// the independent bound, Jensen's inequality over the whole mixture, and the tangent bound of the
// mixture at the box center. The last one is second order tight near stationary points.
type ConvexUpperR3 struct {
	terms *translationTerms
}

// NewConvexUpperR3 returns the convex upper bound for src rotated by q against dst.
func NewConvexUpperR3(src, dst *gmm.Model, q quat.Number) *ConvexUpperR3 {
	return &ConvexUpperR3{terms: newTranslationTerms(src, dst, q)}
}

// Kind returns KindConvex.
func (u *ConvexUpperR3) Kind() Kind {
	return KindConvex
}

// Evaluate returns an upper bound of the cost at every point of the node's box.
func (u *ConvexUpperR3) Evaluate(n *Node) float64 {
	terms := u.terms
	if len(terms.pairs) == 0 {
		return Sentinel
	}
	_, worst := findMaxTranslation(terms.a, terms.b, n.box)
	best := math.Min(
		clamp(terms.logZ-terms.logC+0.5*(worst+terms.e)),
		independentUpper(terms, n.box),
	)
	return math.Min(best, tangentUpper(terms, n.box))
}

// EvaluateAndSet evaluates and caches the bound into n.
func (u *ConvexUpperR3) EvaluateAndSet(n *Node) float64 {
	return evaluateAndSet(u, n)
}

// tangentUpper uses exp(-x/2) >= 1 - x/2 on every pair around the box center c. With d = t - c
// the overlap ratio O(t)/O(c) is at least 1 - (g.d + d^T M d)/2, where g and M are the softmax
// weighted pair gradients and inverse covariances. The quadratic is convex in d so its maximum is
// at a corner.
func tangentUpper(terms *translationTerms, box Box) float64 {
	c := box.Center()
	ex := terms.expand(c)
	var g r3.Vector
	var m sym3
	for k := range terms.pairs {
		g = g.Add(ex.grads[k].Mul(ex.weights[k]))
		m = m.add(terms.pairs[k].sInv, ex.weights[k])
	}
	shifted := Box{Min: box.Min.Sub(c), Max: box.Max.Sub(c)}
	_, worst := findMaxTranslation(m, g.Mul(-0.5), shifted)
	if worst >= 2 {
		return Sentinel
	}
	return clamp(ex.cost - math.Log1p(-0.5*worst))
}

// FindMaxTranslationInNode returns the corner of the node's box maximizing the convex quadratic
// t^T A t - 2 t^T b, together with that maximum. A must be positive semidefinite.
func FindMaxTranslationInNode(a mat.Symmetric, b r3.Vector, n *Node) (r3.Vector, float64) {
	return findMaxTranslation(sym3From(a), b, n.box)
}

func findMaxTranslation(a sym3, b r3.Vector, box Box) (r3.Vector, float64) {
	var best r3.Vector
	bestVal := math.Inf(-1)
	for i := 0; i < 8; i++ {
		c := box.Corner(i)
		v := a.quad(c) - 2*c.Dot(b)
		if v > bestVal {
			best, bestVal = c, v
		}
	}
	return best, bestVal
}

// LowerR3 bounds the minimum of the translation cost over a box from below.
type LowerR3 struct {
	terms *translationTerms
}

// NewLowerR3 returns the translation lower bound for src rotated by q against dst.
func NewLowerR3(src, dst *gmm.Model, q quat.Number) *LowerR3 {
	return &LowerR3{terms: newTranslationTerms(src, dst, q)}
}

// Kind returns KindLower.
func (l *LowerR3) Kind() Kind {
	return KindLower
}

// Evaluate returns a value no greater than the cost anywhere in the node's box. It is the larger
// of two relaxations. The first bounds each pair's q separately, by its distance to the box over
// the largest covariance eigenvalue and by its tangent plane at the box center. The second drops
// only the quadratic part of every q around the center, which leaves a log-sum-exp of linear
// functions whose maximum over the box is at a corner; it is tight where the gradient vanishes.
func (l *LowerR3) Evaluate(n *Node) float64 {
	terms := l.terms
	if len(terms.pairs) == 0 {
		return Sentinel
	}
	box := n.box
	c := box.Center()
	h := box.HalfExtents()
	perPair := terms.cost(func(k int) float64 {
		p := &terms.pairs[k]
		best := box.DistanceSquared(p.m) / p.eigMax
		grad := p.sInv.mulVec(c.Sub(p.m)).Mul(2)
		tangent := p.q(c) - math.Abs(grad.X)*h.X - math.Abs(grad.Y)*h.Y - math.Abs(grad.Z)*h.Z
		return math.Max(0, math.Max(best, tangent))
	})

	ex := terms.expand(c)
	vals := make([]float64, len(terms.pairs))
	worst := math.Inf(-1)
	for i := 0; i < 8; i++ {
		d := box.Corner(i).Sub(c)
		for k := range terms.pairs {
			vals[k] = math.Log(ex.weights[k]) - 0.5*ex.grads[k].Dot(d)
		}
		worst = math.Max(worst, logSumExp(vals))
	}
	joint := clamp(ex.cost - worst)

	// the cost is a negative log normalized inner product and never negative
	return math.Max(0, math.Max(perPair, joint))
}

// EvaluateAndSet evaluates and caches the bound into n.
func (l *LowerR3) EvaluateAndSet(n *Node) float64 {
	return evaluateAndSet(l, n)
}

// NewTranslationProblem returns the problem of finding the translation of src, rotated by q, that
// best aligns it with dst within domain. All evaluators share one set of precomputed pair terms.
func NewTranslationProblem(domain Box, src, dst *gmm.Model, q quat.Number) Problem {
	terms := newTranslationTerms(src, dst, q)
	return Problem{
		Domain:     domain,
		RootUpper:  &ConvexUpperR3{terms: terms},
		ChildUpper: &IndependentUpperR3{terms: terms},
		Lower:      &LowerR3{terms: terms},
		Objective:  &TranslationCost{terms: terms},
	}
}
