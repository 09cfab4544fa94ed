package gmm

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/gmmreg/spatialmath"
)

// log((2*pi)^3).
var log2Pi3 = 3 * math.Log(2*math.Pi)

// Model is an ordered, read-only mixture of Gaussian components. Weights need not sum to one.
type Model struct {
	components []Component
}

// NewModel returns a model over a copy of the given components.
func NewModel(components []Component) (*Model, error) {
	if len(components) == 0 {
		return nil, ErrEmptyModel
	}
	m := &Model{components: append([]Component(nil), components...)}
	if m.TotalWeight() <= 0 {
		return nil, ErrZeroWeight
	}
	return m, nil
}

// Len returns the number of components.
func (m *Model) Len() int {
	return len(m.components)
}

// At returns the i-th component.
func (m *Model) At(i int) Component {
	return m.components[i]
}

// Components returns a copy of the components.
func (m *Model) Components() []Component {
	return append([]Component(nil), m.components...)
}

// TotalWeight returns the sum of the component weights.
func (m *Model) TotalWeight() float64 {
	return lo.SumBy(m.components, func(c Component) float64 { return c.weight })
}

// Mean returns the weighted centroid of the component means.
func (m *Model) Mean() r3.Vector {
	total := m.TotalWeight()
	var sum r3.Vector
	for _, c := range m.components {
		sum = sum.Add(c.mean.Mul(c.weight))
	}
	return sum.Mul(1 / total)
}

// Bounds returns the axis-aligned extents of the component means.
func (m *Model) Bounds() (r3.Vector, r3.Vector) {
	minPt, maxPt := m.components[0].mean, m.components[0].mean
	for _, c := range m.components[1:] {
		minPt = r3.Vector{X: math.Min(minPt.X, c.mean.X), Y: math.Min(minPt.Y, c.mean.Y), Z: math.Min(minPt.Z, c.mean.Z)}
		maxPt = r3.Vector{X: math.Max(maxPt.X, c.mean.X), Y: math.Max(maxPt.Y, c.mean.Y), Z: math.Max(maxPt.Z, c.mean.Z)}
	}
	return minPt, maxPt
}

// Transform returns a new model with every component rotated by q and then translated by t.
func (m *Model) Transform(q quat.Number, t r3.Vector) *Model {
	rm := spatialmath.QuatToRotationMatrix(q)
	return &Model{components: lo.Map(m.components, func(c Component, _ int) Component {
		return c.transform(rm, t)
	})}
}

// Translate returns a new model moved by t.
func (m *Model) Translate(t r3.Vector) *Model {
	return m.Transform(spatialmath.IdentityQuat, t)
}

// Isotropic returns the model with every covariance replaced by (trace/3)*I. The result is
// rotation invariant per component, which the rotation search relies on.
func (m *Model) Isotropic() *Model {
	out := make([]Component, 0, len(m.components))
	for _, c := range m.components {
		v := c.MeanVariance()
		iso := mat.NewSymDense(3, []float64{v, 0, 0, 0, v, 0, 0, 0, v})
		inv := mat.NewSymDense(3, []float64{1 / v, 0, 0, 0, 1 / v, 0, 0, 0, 1 / v})
		out = append(out, Component{
			mean:   c.mean,
			cov:    iso,
			weight: c.weight,
			inv:    inv,
			logDet: 3 * math.Log(v),
			eigMin: v,
			eigMax: v,
		})
	}
	return &Model{components: out}
}

// LogOverlap returns log of sum_ij w_i w_j N(mu_j; mu_i, Sigma_i + Sigma_j), the log L2 inner
// product of the two mixture densities. Zero weight components are skipped.
func (m *Model) LogOverlap(other *Model) float64 {
	terms := make([]float64, 0, m.Len()*other.Len())
	for _, a := range m.components {
		if a.weight == 0 {
			continue
		}
		for _, b := range other.components {
			if b.weight == 0 {
				continue
			}
			terms = append(terms, math.Log(a.weight*b.weight)+LogGaussianOverlap(a, b))
		}
	}
	if len(terms) == 0 {
		return math.Inf(-1)
	}
	return floats.LogSumExp(terms)
}

// LogSelfOverlap returns the pose invariant log overlap of the model with itself.
func (m *Model) LogSelfOverlap() float64 {
	return m.LogOverlap(m)
}

// LogGaussianOverlap returns log N(mu_a; mu_b, Sigma_a + Sigma_b), the log integral of the
// product of the two unweighted densities.
func LogGaussianOverlap(a, b Component) float64 {
	s := mat.NewSymDense(3, nil)
	s.AddSym(a.cov, b.cov)
	return LogNormal(a.mean.Sub(b.mean), s)
}

// LogNormal returns the log density at d of a zero mean normal with covariance s. A covariance
// that cannot be factorized yields -Inf.
func LogNormal(d r3.Vector, s mat.Symmetric) float64 {
	var chol mat.Cholesky
	if ok := chol.Factorize(s); !ok {
		return math.Inf(-1)
	}
	dv := mat.NewVecDense(3, []float64{d.X, d.Y, d.Z})
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, dv); err != nil {
		return math.Inf(-1)
	}
	return -0.5 * (log2Pi3 + chol.LogDet() + mat.Dot(dv, &x))
}
