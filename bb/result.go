package bb

import (
	"time"

	"github.com/golang/geo/r3"
)

// Status is how a search terminated.
type Status int

const (
	// StatusCertified means the queue was exhausted and the incumbent is within Tolerance of the
	// global minimum.
	StatusCertified Status = iota
	// StatusResolutionLimit means the queue was exhausted but boxes at the minimum size kept the
	// gap above Tolerance.
	StatusResolutionLimit
	// StatusIterationBudget means MaxIterations was reached with nodes still open.
	StatusIterationBudget
	// StatusDeadline means the time budget ran out or the context was done with nodes still open.
	StatusDeadline
)

func (s Status) String() string {
	switch s {
	case StatusCertified:
		return "certified"
	case StatusResolutionLimit:
		return "resolution_limit"
	case StatusIterationBudget:
		return "iteration_budget"
	case StatusDeadline:
		return "deadline"
	default:
		return "unknown"
	}
}

// Result is the outcome of a search.
type Result struct {
	// Point is the best point found and Cost its exact cost.
	Point r3.Vector
	Cost  float64
	// LowerBound is a certified lower bound of the global minimum and Gap is Cost minus it.
	LowerBound float64
	Gap        float64
	Status     Status
	// Unresolved is set when a budget stopped the search with nodes still open.
	Unresolved bool

	Iterations    int
	NodesCreated  int
	NodesPruned   int
	NodesResolved int
	Evaluations   int64
	Elapsed       time.Duration
}
