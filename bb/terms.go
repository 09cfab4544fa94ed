package bb

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/gmmreg/gmm"
	"go.viam.com/gmmreg/spatialmath"
)

var log2Pi3 = 3 * math.Log(2*math.Pi)

// sym3 is a symmetric 3x3 matrix laid out for the quadratic forms evaluated in the inner loops.
type sym3 struct {
	xx, xy, xz, yy, yz, zz float64
}

func sym3From(s mat.Symmetric) sym3 {
	return sym3{
		xx: s.At(0, 0), xy: s.At(0, 1), xz: s.At(0, 2),
		yy: s.At(1, 1), yz: s.At(1, 2),
		zz: s.At(2, 2),
	}
}

func (s sym3) mulVec(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: s.xx*v.X + s.xy*v.Y + s.xz*v.Z,
		Y: s.xy*v.X + s.yy*v.Y + s.yz*v.Z,
		Z: s.xz*v.X + s.yz*v.Y + s.zz*v.Z,
	}
}

func (s sym3) quad(v r3.Vector) float64 {
	return v.Dot(s.mulVec(v))
}

func (s sym3) add(o sym3, scale float64) sym3 {
	return sym3{
		xx: s.xx + scale*o.xx, xy: s.xy + scale*o.xy, xz: s.xz + scale*o.xz,
		yy: s.yy + scale*o.yy, yz: s.yz + scale*o.yz,
		zz: s.zz + scale*o.zz,
	}
}

// logSumExp returns log(sum(exp(v))), or -Inf for an empty slice.
func logSumExp(v []float64) float64 {
	if len(v) == 0 {
		return math.Inf(-1)
	}
	return floats.LogSumExp(v)
}

// translationPair is one (source, target) component pair with the rotation held fixed:
// q(t) = (t-m)^T sInv (t-m) and the pair contributes exp(logC - q(t)/2) to the overlap.
type translationPair struct {
	m      r3.Vector
	sInv   sym3
	logC   float64
	eigMax float64
}

func (p *translationPair) q(t r3.Vector) float64 {
	return p.sInv.quad(t.Sub(p.m))
}

type translationTerms struct {
	pairs []translationPair
	logZ  float64

	// Jensen aggregate: sum_k p_k q_k(t) = t^T a t - 2 t^T b + e with p_k = exp(logC_k - logC).
	logC float64
	a    sym3
	b    r3.Vector
	e    float64
}

func newTranslationTerms(src, dst *gmm.Model, q quat.Number) *translationTerms {
	rotated := src.Transform(q, r3.Vector{})
	terms := &translationTerms{
		logZ: 0.5 * (src.LogSelfOverlap() + dst.LogSelfOverlap()),
	}
	for i := 0; i < rotated.Len(); i++ {
		ci := rotated.At(i)
		if ci.Weight() == 0 {
			continue
		}
		for j := 0; j < dst.Len(); j++ {
			cj := dst.At(j)
			if cj.Weight() == 0 {
				continue
			}
			s := mat.NewSymDense(3, nil)
			s.AddSym(ci.Covariance(), cj.Covariance())

			var chol mat.Cholesky
			if ok := chol.Factorize(s); !ok {
				continue
			}
			inv := mat.NewSymDense(3, nil)
			if err := chol.InverseTo(inv); err != nil {
				continue
			}
			var es mat.EigenSym
			if ok := es.Factorize(s, false); !ok {
				continue
			}
			terms.pairs = append(terms.pairs, translationPair{
				m:      cj.Mean().Sub(ci.Mean()),
				sInv:   sym3From(inv),
				logC:   math.Log(ci.Weight()*cj.Weight()) - 0.5*(log2Pi3+chol.LogDet()),
				eigMax: floats.Max(es.Values(nil)),
			})
		}
	}

	logCs := make([]float64, len(terms.pairs))
	for k := range terms.pairs {
		logCs[k] = terms.pairs[k].logC
	}
	terms.logC = logSumExp(logCs)
	for k := range terms.pairs {
		p := &terms.pairs[k]
		share := math.Exp(p.logC - terms.logC)
		sm := p.sInv.mulVec(p.m)
		terms.a = terms.a.add(p.sInv, share)
		terms.b = terms.b.Add(sm.Mul(share))
		terms.e += share * p.m.Dot(sm)
	}
	return terms
}

// cost returns logZ - log(sum_k exp(logC_k - q_k/2)) given per pair q values.
func (terms *translationTerms) cost(q func(k int) float64) float64 {
	if len(terms.pairs) == 0 {
		return Sentinel
	}
	vals := make([]float64, len(terms.pairs))
	for k := range terms.pairs {
		vals[k] = terms.pairs[k].logC - 0.5*q(k)
	}
	return clamp(terms.logZ - logSumExp(vals))
}

// expansion is the cost and its per pair softmax weights and gradients at a point c.
type expansion struct {
	c       r3.Vector
	cost    float64
	weights []float64
	grads   []r3.Vector
}

func (terms *translationTerms) expand(c r3.Vector) expansion {
	ex := expansion{
		c:       c,
		weights: make([]float64, len(terms.pairs)),
		grads:   make([]r3.Vector, len(terms.pairs)),
	}
	vals := make([]float64, len(terms.pairs))
	for k := range terms.pairs {
		p := &terms.pairs[k]
		vals[k] = p.logC - 0.5*p.q(c)
		ex.grads[k] = p.sInv.mulVec(c.Sub(p.m)).Mul(2)
	}
	logO := logSumExp(vals)
	ex.cost = clamp(terms.logZ - logO)
	for k := range vals {
		ex.weights[k] = math.Exp(vals[k] - logO)
	}
	return ex
}

// rotationPair is one component pair of the isotropic surrogate with the translation held fixed:
// q(R) = |R mu + t - nu|^2 / s.
type rotationPair struct {
	src   int
	v     r3.Vector
	vNorm float64
	invS  float64
	logC  float64
}

type rotationTerms struct {
	means     []r3.Vector
	meanNorms []float64
	pairs     []rotationPair
	logZ      float64
}

func newRotationTerms(src, dst *gmm.Model, t r3.Vector) *rotationTerms {
	srcIso := src.Isotropic()
	dstIso := dst.Isotropic()
	terms := &rotationTerms{
		logZ: 0.5 * (srcIso.LogSelfOverlap() + dstIso.LogSelfOverlap()),
	}
	for i := 0; i < srcIso.Len(); i++ {
		ci := srcIso.At(i)
		terms.means = append(terms.means, ci.Mean())
		terms.meanNorms = append(terms.meanNorms, ci.Mean().Norm())
		if ci.Weight() == 0 {
			continue
		}
		for j := 0; j < dstIso.Len(); j++ {
			cj := dstIso.At(j)
			if cj.Weight() == 0 {
				continue
			}
			s := ci.MeanVariance() + cj.MeanVariance()
			v := cj.Mean().Sub(t)
			terms.pairs = append(terms.pairs, rotationPair{
				src:   i,
				v:     v,
				vNorm: v.Norm(),
				invS:  1 / s,
				logC:  math.Log(ci.Weight()*cj.Weight()) - 0.5*(log2Pi3+3*math.Log(s)),
			})
		}
	}
	return terms
}

// rotatedMeans returns the source means rotated by the axis-angle vector r.
func (terms *rotationTerms) rotatedMeans(r r3.Vector) []r3.Vector {
	rm := spatialmath.QuatToRotationMatrix(spatialmath.R3ToQuat(r))
	out := make([]r3.Vector, len(terms.means))
	for i, mu := range terms.means {
		out[i] = rm.Mul(mu)
	}
	return out
}

// cost returns logZ - log(sum_k exp(logC_k - d_k^2/(2 s_k))) given per pair distances.
func (terms *rotationTerms) cost(dist func(k int) float64) float64 {
	if len(terms.pairs) == 0 {
		return Sentinel
	}
	vals := make([]float64, len(terms.pairs))
	for k := range terms.pairs {
		d := dist(k)
		vals[k] = terms.pairs[k].logC - 0.5*d*d*terms.pairs[k].invS
	}
	return clamp(terms.logZ - logSumExp(vals))
}
