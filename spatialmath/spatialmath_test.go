package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestAxisAngleRoundTrip(t *testing.T) {
	for _, aa := range []r3.Vector{
		{X: 0, Y: 0, Z: math.Pi / 2},
		{X: 0.3, Y: -0.2, Z: 0.1},
		{X: -1, Y: 1, Z: 1},
	} {
		back := QuatToR3AA(R3ToQuat(aa))
		test.That(t, back.X, test.ShouldAlmostEqual, aa.X, 1e-9)
		test.That(t, back.Y, test.ShouldAlmostEqual, aa.Y, 1e-9)
		test.That(t, back.Z, test.ShouldAlmostEqual, aa.Z, 1e-9)
	}

	identity := R3ToQuat(r3.Vector{})
	test.That(t, identity, test.ShouldResemble, IdentityQuat)
	test.That(t, QuatToR3AA(identity), test.ShouldResemble, r3.Vector{})
}

func TestRotateVector(t *testing.T) {
	q := R3ToQuat(r3.Vector{Z: math.Pi / 2})
	v := RotateVector(q, r3.Vector{X: 1})
	test.That(t, v.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, v.Y, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, v.Z, test.ShouldAlmostEqual, 0, 1e-12)

	rm := QuatToRotationMatrix(q)
	w := rm.Mul(r3.Vector{X: 1, Y: 2, Z: 3})
	expected := RotateVector(q, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, w.Sub(expected).Norm(), test.ShouldBeLessThan, 1e-12)
}

func TestConjugate(t *testing.T) {
	q := R3ToQuat(r3.Vector{Z: math.Pi / 2})
	rm := QuatToRotationMatrix(q)
	s := mat.NewSymDense(3, []float64{
		4, 0, 0,
		0, 1, 0,
		0, 0, 2,
	})
	out := rm.Conjugate(s)
	// A quarter turn about Z swaps the X and Y variances.
	test.That(t, out.At(0, 0), test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, out.At(1, 1), test.ShouldAlmostEqual, 4, 1e-12)
	test.That(t, out.At(2, 2), test.ShouldAlmostEqual, 2, 1e-12)
	test.That(t, out.At(0, 1), test.ShouldAlmostEqual, 0, 1e-12)
}

func TestPose(t *testing.T) {
	p := NewPose(R3ToQuat(r3.Vector{Z: math.Pi / 2}), r3.Vector{X: 1})
	v := p.Transform(r3.Vector{X: 1})
	test.That(t, v.Sub(r3.Vector{X: 1, Y: 1}).Norm(), test.ShouldBeLessThan, 1e-12)

	inv := p.Invert()
	back := inv.Transform(v)
	test.That(t, back.Sub(r3.Vector{X: 1}).Norm(), test.ShouldBeLessThan, 1e-12)

	composed := inv.Compose(p)
	test.That(t, PoseAlmostEqual(composed, NewZeroPose(), 1e-9, 1e-6), test.ShouldBeTrue)

	test.That(t, AngleBetween(p.Orientation, IdentityQuat), test.ShouldAlmostEqual, math.Pi/2, 1e-9)
	test.That(t, p.String(), test.ShouldContainSubstring, "T: (1.0000, 0.0000, 0.0000)")
}
