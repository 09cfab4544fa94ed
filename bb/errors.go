package bb

import "github.com/pkg/errors"

var (
	// ErrInvalidConfig is returned when a search is started with an invalid configuration or
	// problem.
	ErrInvalidConfig = errors.New("invalid branch and bound configuration")
	// ErrBoundInversion is returned when a node's lower bound exceeds its upper bound. It means an
	// evaluator is wrong and the search cannot be trusted.
	ErrBoundInversion = errors.New("lower bound exceeds upper bound")
	// ErrDegenerate is returned when every point the search evaluated saturated to Sentinel, so
	// no feasible optimum exists in the domain.
	ErrDegenerate = errors.New("every evaluated point of the domain is degenerate")
)
