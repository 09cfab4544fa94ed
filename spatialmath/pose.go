package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform: a rotation followed by a translation.
type Pose struct {
	Orientation quat.Number
	Point       r3.Vector
}

// NewZeroPose returns the identity transform.
func NewZeroPose() Pose {
	return Pose{Orientation: IdentityQuat}
}

// NewPose returns a pose from a rotation and a translation.
func NewPose(q quat.Number, t r3.Vector) Pose {
	return Pose{Orientation: Normalize(q), Point: t}
}

// Transform applies the pose to v: R*v + t.
func (p Pose) Transform(v r3.Vector) r3.Vector {
	return RotateVector(p.Orientation, v).Add(p.Point)
}

// Compose returns the pose that applies b first and then p.
func (p Pose) Compose(b Pose) Pose {
	return Pose{
		Orientation: Normalize(quat.Mul(p.Orientation, b.Orientation)),
		Point:       p.Transform(b.Point),
	}
}

// Invert returns the inverse transform.
func (p Pose) Invert() Pose {
	inv := quat.Conj(Normalize(p.Orientation))
	return Pose{Orientation: inv, Point: RotateVector(inv, p.Point).Mul(-1)}
}

// AxisAngle returns the rotation of the pose as an R3 axis angle.
func (p Pose) AxisAngle() r3.Vector {
	return QuatToR3AA(p.Orientation)
}

func (p Pose) String() string {
	aa := QuatToR4AA(p.Orientation)
	return fmt.Sprintf("T: (%.4f, %.4f, %.4f) | R: %.4f rad about (%.3f, %.3f, %.3f)",
		p.Point.X, p.Point.Y, p.Point.Z, aa.Theta, aa.RX, aa.RY, aa.RZ)
}

// PoseAlmostEqual returns whether the poses are within the translation and angle tolerances.
func PoseAlmostEqual(a, b Pose, transTol, angleTol float64) bool {
	return a.Point.Sub(b.Point).Norm() <= transTol && AngleBetween(a.Orientation, b.Orientation) <= angleTol
}
