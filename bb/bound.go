package bb

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/gmmreg/utils"
)

// Sentinel is the saturated cost reported in place of non-finite values. It marks regions that
// are infeasible or irrelevant to the search.
const Sentinel = 1e12

// Kind identifies a bound evaluator.
type Kind int

const (
	// KindIndependent bounds every mixture pair separately from above.
	KindIndependent Kind = iota
	// KindConvex is the tighter joint upper bound built on convexity of the pair costs.
	KindConvex
	// KindLower is a relaxation bounding the minimum over a box from below.
	KindLower
)

// IsUpper returns whether bounds of this kind bound the cost from above.
func (k Kind) IsUpper() bool {
	return k == KindIndependent || k == KindConvex
}

func (k Kind) String() string {
	switch k {
	case KindIndependent:
		return "independent"
	case KindConvex:
		return "convex"
	case KindLower:
		return "lower"
	default:
		return "unknown"
	}
}

// Bound evaluates a bound of the cost over a node's box.
type Bound interface {
	Kind() Kind
	// Evaluate returns the bound without touching the node.
	Evaluate(n *Node) float64
	// EvaluateAndSet evaluates the bound, caches it into the node and records the node's witness.
	EvaluateAndSet(n *Node) float64
}

// Objective is the exact cost at a point of the domain.
type Objective interface {
	Cost(p r3.Vector) float64
}

// ObjectiveFunc adapts a plain function to an Objective.
type ObjectiveFunc func(p r3.Vector) float64

// Cost calls f(p).
func (f ObjectiveFunc) Cost(p r3.Vector) float64 {
	return f(p)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return Sentinel
	}
	return utils.Clamp(v, -Sentinel, Sentinel)
}

func evaluateAndSet(b Bound, n *Node) float64 {
	v := b.Evaluate(n)
	if b.Kind().IsUpper() {
		n.SetUpper(v)
	} else {
		n.SetLower(v)
	}
	n.SetWitness(n.box.Center())
	return v
}
