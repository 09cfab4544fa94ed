package bb

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/gmmreg/utils"
)

// Box is an axis-aligned box of the search domain.
type Box struct {
	Min r3.Vector
	Max r3.Vector
}

// NewBox returns the box spanning min to max. Every coordinate must be finite and min must not
// exceed max on any axis.
func NewBox(min, max r3.Vector) (Box, error) {
	for _, v := range []float64{min.X, min.Y, min.Z, max.X, max.Y, max.Z} {
		if !utils.IsFinite(v) {
			return Box{}, errors.Errorf("box bounds must be finite, got %v to %v", min, max)
		}
	}
	if min.X > max.X || min.Y > max.Y || min.Z > max.Z {
		return Box{}, errors.Errorf("box min %v exceeds max %v", min, max)
	}
	return Box{Min: min, Max: max}, nil
}

// NewBoxFromCenter returns the box centered on c with the given half extents. Negative half
// extents are treated as their absolute value.
func NewBoxFromCenter(c, half r3.Vector) Box {
	half = r3.Vector{X: math.Abs(half.X), Y: math.Abs(half.Y), Z: math.Abs(half.Z)}
	return Box{Min: c.Sub(half), Max: c.Add(half)}
}

// Center returns the midpoint of the box.
func (b Box) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// HalfExtents returns half the side lengths.
func (b Box) HalfExtents() r3.Vector {
	return b.Max.Sub(b.Min).Mul(0.5)
}

// Volume returns the product of the side lengths.
func (b Box) Volume() float64 {
	d := b.Max.Sub(b.Min)
	return d.X * d.Y * d.Z
}

// Diagonal returns the length of the main diagonal.
func (b Box) Diagonal() float64 {
	return b.Max.Sub(b.Min).Norm()
}

// MaxSide returns the longest side length.
func (b Box) MaxSide() float64 {
	d := b.Max.Sub(b.Min)
	return math.Max(d.X, math.Max(d.Y, d.Z))
}

// Contains returns whether p lies in the closed box.
func (b Box) Contains(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Corner returns corner i of the box, 0 <= i < 8. Bit k of i selects Max (1) or Min (0) along
// axis k, with bit 0 for X, bit 1 for Y and bit 2 for Z.
func (b Box) Corner(i int) r3.Vector {
	c := b.Min
	if i&1 != 0 {
		c.X = b.Max.X
	}
	if i&2 != 0 {
		c.Y = b.Max.Y
	}
	if i&4 != 0 {
		c.Z = b.Max.Z
	}
	return c
}

// Corners returns all 8 corners indexed as in Corner.
func (b Box) Corners() [8]r3.Vector {
	var out [8]r3.Vector
	for i := range out {
		out[i] = b.Corner(i)
	}
	return out
}

// Subdivide splits the box at its center into 8 octants. Child i is the octant touching Corner(i).
func (b Box) Subdivide() [8]Box {
	c := b.Center()
	var out [8]Box
	for i := range out {
		corner := b.Corner(i)
		out[i] = Box{
			Min: r3.Vector{X: math.Min(c.X, corner.X), Y: math.Min(c.Y, corner.Y), Z: math.Min(c.Z, corner.Z)},
			Max: r3.Vector{X: math.Max(c.X, corner.X), Y: math.Max(c.Y, corner.Y), Z: math.Max(c.Z, corner.Z)},
		}
	}
	return out
}

// DistanceSquared returns the squared distance from p to the closest point of the box, which is
// zero inside it.
func (b Box) DistanceSquared(p r3.Vector) float64 {
	outside := func(lo, hi, v float64) float64 {
		return math.Max(0, math.Max(lo-v, v-hi))
	}
	return utils.Square(outside(b.Min.X, b.Max.X, p.X)) +
		utils.Square(outside(b.Min.Y, b.Max.Y, p.Y)) +
		utils.Square(outside(b.Min.Z, b.Max.Z, p.Z))
}
