package bb

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/gmmreg/gmm"
)

// RotationDomain is the axis-angle box [-pi, pi]^3, which contains every rotation.
var RotationDomain = Box{
	Min: r3.Vector{X: -math.Pi, Y: -math.Pi, Z: -math.Pi},
	Max: r3.Vector{X: math.Pi, Y: math.Pi, Z: math.Pi},
}

// RotationCost is the alignment cost of the isotropic surrogates as a function of the axis-angle
// rotation with the translation held fixed.
type RotationCost struct {
	terms *rotationTerms
}

// NewRotationCost returns the cost of rotating src by an axis-angle vector and then moving it by
// t onto dst. Both models are replaced by their isotropic surrogates.
func NewRotationCost(src, dst *gmm.Model, t r3.Vector) *RotationCost {
	return &RotationCost{terms: newRotationTerms(src, dst, t)}
}

// Cost returns the cost at axis-angle r.
func (c *RotationCost) Cost(r r3.Vector) float64 {
	rotated := c.terms.rotatedMeans(r)
	return c.terms.cost(func(k int) float64 {
		p := &c.terms.pairs[k]
		return rotated[p.src].Sub(p.v).Norm()
	})
}

// rotationDistances returns, per pair, the distance at the box center and the radius by which a
// rotated mean can move anywhere in the box. The angle between R(r) and R(r0) never exceeds
// |r - r0|, which is at most the half diagonal.
func rotationDistances(terms *rotationTerms, box Box) (center []float64, slack []float64) {
	rotated := terms.rotatedMeans(box.Center())
	halfDiag := box.Diagonal() / 2
	center = make([]float64, len(terms.pairs))
	slack = make([]float64, len(terms.pairs))
	for k := range terms.pairs {
		p := &terms.pairs[k]
		center[k] = rotated[p.src].Sub(p.v).Norm()
		slack[k] = terms.meanNorms[p.src] * math.Min(halfDiag, math.Pi)
	}
	return center, slack
}

// UpperRotation bounds the rotation cost from above over an axis-angle box.
type UpperRotation struct {
	terms *rotationTerms
}

// NewUpperRotation returns the rotation upper bound for src moved by t against dst.
func NewUpperRotation(src, dst *gmm.Model, t r3.Vector) *UpperRotation {
	return &UpperRotation{terms: newRotationTerms(src, dst, t)}
}

// Kind returns KindIndependent.
func (u *UpperRotation) Kind() Kind {
	return KindIndependent
}

// Evaluate returns an upper bound of the cost at every rotation of the node's box.
func (u *UpperRotation) Evaluate(n *Node) float64 {
	terms := u.terms
	center, slack := rotationDistances(terms, n.box)
	return terms.cost(func(k int) float64 {
		p := &terms.pairs[k]
		return math.Min(center[k]+slack[k], terms.meanNorms[p.src]+p.vNorm)
	})
}

// EvaluateAndSet evaluates and caches the bound into n.
func (u *UpperRotation) EvaluateAndSet(n *Node) float64 {
	return evaluateAndSet(u, n)
}

// LowerRotation bounds the minimum of the rotation cost over an axis-angle box from below.
type LowerRotation struct {
	terms *rotationTerms
}

// NewLowerRotation returns the rotation lower bound for src moved by t against dst.
func NewLowerRotation(src, dst *gmm.Model, t r3.Vector) *LowerRotation {
	return &LowerRotation{terms: newRotationTerms(src, dst, t)}
}

// Kind returns KindLower.
func (l *LowerRotation) Kind() Kind {
	return KindLower
}

// Evaluate returns a value no greater than the cost at any rotation of the node's box.
func (l *LowerRotation) Evaluate(n *Node) float64 {
	terms := l.terms
	center, slack := rotationDistances(terms, n.box)
	v := terms.cost(func(k int) float64 {
		p := &terms.pairs[k]
		d := math.Max(center[k]-slack[k], math.Abs(terms.meanNorms[p.src]-p.vNorm))
		return math.Max(0, d)
	})
	return math.Max(0, v)
}

// EvaluateAndSet evaluates and caches the bound into n.
func (l *LowerRotation) EvaluateAndSet(n *Node) float64 {
	return evaluateAndSet(l, n)
}

// NewRotationProblem returns the problem of finding the rotation of src, followed by translation
// t, that best aligns it with dst. Callers usually center both models first.
func NewRotationProblem(src, dst *gmm.Model, t r3.Vector) Problem {
	terms := newRotationTerms(src, dst, t)
	upper := &UpperRotation{terms: terms}
	return Problem{
		Domain:     RotationDomain,
		RootUpper:  upper,
		ChildUpper: upper,
		Lower:      &LowerRotation{terms: terms},
		Objective:  &RotationCost{terms: terms},
	}
}
