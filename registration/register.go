// Package registration aligns two Gaussian mixtures by running a rotation search followed by a
// translation search, both with branch and bound.
package registration

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/gmmreg/bb"
	"go.viam.com/gmmreg/gmm"
	"go.viam.com/gmmreg/logging"
	"go.viam.com/gmmreg/spatialmath"
)

// Result is the transform taking the source model onto the target, x -> R x + t.
type Result struct {
	Rotation    quat.Number
	AxisAngle   r3.Vector
	Translation r3.Vector
	// Cost and Gap are those of the translation search with the final rotation.
	Cost float64
	Gap  float64

	// RotationSearch is nil when rotation was skipped.
	RotationSearch    *bb.Result
	TranslationSearch *bb.Result
}

// Pose returns the result as a pose.
func (r *Result) Pose() spatialmath.Pose {
	return spatialmath.NewPose(r.Rotation, r.Translation)
}

// Certified returns whether both searches closed their gap.
func (r *Result) Certified() bool {
	if r.RotationSearch != nil && r.RotationSearch.Status != bb.StatusCertified {
		return false
	}
	return r.TranslationSearch.Status == bb.StatusCertified
}

// Register finds the rigid transform best aligning src with dst. The rotation is searched over
// all of SO(3) on the isotropic surrogates of both models, centered on their centroids. The
// translation is then searched with the full covariances over cfg.TranslationDomain, or around
// the centroid offset when it is unset.
func Register(ctx context.Context, src, dst *gmm.Model, cfg Config, logger logging.Logger) (*Result, error) {
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewBlankLogger("registration")
	}

	res := &Result{Rotation: spatialmath.IdentityQuat}
	if !cfg.SkipRotation {
		srcCentered := src.Translate(src.Mean().Mul(-1))
		dstCentered := dst.Translate(dst.Mean().Mul(-1))
		rot, err := bb.Search(ctx,
			bb.NewRotationProblem(srcCentered, dstCentered, r3.Vector{}),
			cfg.searchConfig(cfg.RotationTolerance, cfg.RotationResolution),
			logger.Sublogger("rotation"))
		if err != nil {
			return nil, errors.Wrap(err, "rotation search failed")
		}
		res.RotationSearch = rot
		res.Rotation = spatialmath.R3ToQuat(rot.Point)
		logger.Infow("rotation found", "axis_angle", rot.Point, "status", rot.Status.String(), "gap", rot.Gap)
	}
	res.AxisAngle = spatialmath.QuatToR3AA(res.Rotation)

	var domain bb.Box
	if cfg.TranslationDomain != nil {
		box, err := cfg.TranslationDomain.Box()
		if err != nil {
			return nil, err
		}
		domain = box
	} else {
		domain = DefaultTranslationDomain(src, dst, res.Rotation)
	}

	trans, err := bb.Search(ctx,
		bb.NewTranslationProblem(domain, src, dst, res.Rotation),
		cfg.searchConfig(cfg.Tolerance, cfg.TranslationResolution),
		logger.Sublogger("translation"))
	if err != nil {
		return nil, errors.Wrap(err, "translation search failed")
	}
	res.TranslationSearch = trans
	res.Translation = trans.Point
	res.Cost = trans.Cost
	res.Gap = trans.Gap
	logger.Infow("registration finished", "pose", res.Pose().String(), "cost", res.Cost, "gap", res.Gap)
	return res, nil
}

// DefaultTranslationDomain returns the box of translations centered on the offset between the
// target centroid and the rotated source centroid. Each half extent is the larger of the two
// models' extents along that axis plus three standard deviations of the widest component.
func DefaultTranslationDomain(src, dst *gmm.Model, q quat.Number) bb.Box {
	rotated := src.Transform(q, r3.Vector{})
	center := dst.Mean().Sub(rotated.Mean())

	srcMin, srcMax := rotated.Bounds()
	dstMin, dstMax := dst.Bounds()
	srcExt := srcMax.Sub(srcMin)
	dstExt := dstMax.Sub(dstMin)
	margin := 3 * math.Sqrt(math.Max(maxEigenvalue(src), maxEigenvalue(dst)))
	half := r3.Vector{
		X: math.Max(srcExt.X, dstExt.X) + margin,
		Y: math.Max(srcExt.Y, dstExt.Y) + margin,
		Z: math.Max(srcExt.Z, dstExt.Z) + margin,
	}
	return bb.NewBoxFromCenter(center, half)
}

func maxEigenvalue(m *gmm.Model) float64 {
	return lo.Max(lo.Map(m.Components(), func(c gmm.Component, _ int) float64 {
		_, hi := c.Eigenvalues()
		return hi
	}))
}
