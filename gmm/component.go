// Package gmm defines the Gaussian mixture models that summarize a point cloud's surface for
// registration. Components are validated once at construction and are read-only afterwards.
package gmm

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/gmmreg/spatialmath"
	"go.viam.com/gmmreg/utils"
)

// MaxConditionNumber is the largest covariance condition number accepted before a component is
// considered singular.
const MaxConditionNumber = 1e12

var (
	// ErrSingularCovariance is returned for covariances that are not positive definite or are too
	// badly conditioned to invert reliably.
	ErrSingularCovariance = errors.New("covariance is singular or not positive definite")
	// ErrInvalidWeight is returned for negative or non-finite weights.
	ErrInvalidWeight = errors.New("component weight must be finite and non-negative")
	// ErrEmptyModel is returned when building a model without components.
	ErrEmptyModel = errors.New("mixture model has no components")
	// ErrZeroWeight is returned when all component weights of a model are zero.
	ErrZeroWeight = errors.New("mixture model has zero total weight")
)

// Component is one weighted Gaussian of a mixture.
type Component struct {
	mean   r3.Vector
	cov    *mat.SymDense
	weight float64

	inv    *mat.SymDense
	logDet float64
	eigMin float64
	eigMax float64
}

// NewComponent validates and returns a component. The covariance must be a 3x3 symmetric positive
// definite matrix; it is copied.
func NewComponent(mean r3.Vector, cov mat.Symmetric, weight float64) (Component, error) {
	if !utils.IsFinite(weight) || weight < 0 {
		return Component{}, errors.Wrapf(ErrInvalidWeight, "got %v", weight)
	}
	if !utils.IsFinite(mean.X) || !utils.IsFinite(mean.Y) || !utils.IsFinite(mean.Z) {
		return Component{}, errors.Errorf("component mean %v is not finite", mean)
	}
	if cov == nil || cov.SymmetricDim() != 3 {
		return Component{}, errors.New("covariance must be 3x3")
	}
	c := mat.NewSymDense(3, nil)
	c.CopySym(cov)

	var es mat.EigenSym
	if ok := es.Factorize(c, false); !ok {
		return Component{}, errors.Wrap(ErrSingularCovariance, "eigen decomposition failed")
	}
	vals := es.Values(nil)
	eigMin, eigMax := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		eigMin = math.Min(eigMin, v)
		eigMax = math.Max(eigMax, v)
	}
	if !utils.IsFinite(eigMax) || eigMin <= 0 || eigMax/eigMin > MaxConditionNumber {
		return Component{}, errors.Wrapf(ErrSingularCovariance, "eigenvalues in [%g, %g]", eigMin, eigMax)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(c); !ok {
		return Component{}, errors.Wrap(ErrSingularCovariance, "cholesky factorization failed")
	}
	inv := mat.NewSymDense(3, nil)
	if err := chol.InverseTo(inv); err != nil {
		return Component{}, errors.Wrap(ErrSingularCovariance, err.Error())
	}

	return Component{
		mean:   mean,
		cov:    c,
		weight: weight,
		inv:    inv,
		logDet: chol.LogDet(),
		eigMin: eigMin,
		eigMax: eigMax,
	}, nil
}

// NewIsotropicComponent returns a component with covariance variance*I.
func NewIsotropicComponent(mean r3.Vector, variance, weight float64) (Component, error) {
	return NewComponent(mean, mat.NewSymDense(3, []float64{
		variance, 0, 0,
		0, variance, 0,
		0, 0, variance,
	}), weight)
}

// Mean returns the component mean.
func (c Component) Mean() r3.Vector {
	return c.mean
}

// Covariance returns a copy of the component covariance.
func (c Component) Covariance() *mat.SymDense {
	out := mat.NewSymDense(3, nil)
	out.CopySym(c.cov)
	return out
}

// Weight returns the (possibly unnormalized) weight.
func (c Component) Weight() float64 {
	return c.weight
}

// Eigenvalues returns the smallest and largest covariance eigenvalues.
func (c Component) Eigenvalues() (float64, float64) {
	return c.eigMin, c.eigMax
}

// LogDet returns the log determinant of the covariance.
func (c Component) LogDet() float64 {
	return c.logDet
}

// MeanVariance returns trace(cov)/3, the variance of the isotropic surrogate.
func (c Component) MeanVariance() float64 {
	return mat.Trace(c.cov) / 3
}

// transform returns the component moved by the rotation and translation. Eigenvalues and the
// determinant are rotation invariant so no refactorization is needed.
func (c Component) transform(rm *spatialmath.RotationMatrix, t r3.Vector) Component {
	return Component{
		mean:   rm.Mul(c.mean).Add(t),
		cov:    rm.Conjugate(c.cov),
		weight: c.weight,
		inv:    rm.Conjugate(c.inv),
		logDet: c.logDet,
		eigMin: c.eigMin,
		eigMax: c.eigMax,
	}
}
