package bb

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Node is one box of the search tree together with the bounds evaluated on it. The box, depth and
// id never change; bounds and the witness are written once by the evaluators.
type Node struct {
	box   Box
	depth int
	id    uint64

	lower    float64
	upper    float64
	lowerSet bool
	upperSet bool

	witness    r3.Vector
	witnessSet bool
}

// NewNode returns an unevaluated node.
func NewNode(box Box, depth int, id uint64) *Node {
	return &Node{box: box, depth: depth, id: id}
}

// Box returns the node's box.
func (n *Node) Box() Box {
	return n.box
}

// Depth returns the number of subdivisions from the root.
func (n *Node) Depth() int {
	return n.depth
}

// ID returns the creation sequence number of the node.
func (n *Node) ID() uint64 {
	return n.id
}

// Lower returns the cached lower bound and whether it has been set.
func (n *Node) Lower() (float64, bool) {
	return n.lower, n.lowerSet
}

// Upper returns the cached upper bound and whether it has been set.
func (n *Node) Upper() (float64, bool) {
	return n.upper, n.upperSet
}

// SetLower caches a lower bound.
func (n *Node) SetLower(v float64) {
	n.lower = v
	n.lowerSet = true
}

// SetUpper caches an upper bound.
func (n *Node) SetUpper(v float64) {
	n.upper = v
	n.upperSet = true
}

// Witness returns the representative point recorded by the last evaluator, which falls back to
// the box center.
func (n *Node) Witness() r3.Vector {
	if !n.witnessSet {
		return n.box.Center()
	}
	return n.witness
}

// SetWitness records the representative point of the node.
func (n *Node) SetWitness(p r3.Vector) {
	n.witness = p
	n.witnessSet = true
}

// Gap returns upper minus lower, or Sentinel when either is unset.
func (n *Node) Gap() float64 {
	if !n.lowerSet || !n.upperSet {
		return Sentinel
	}
	return n.upper - n.lower
}

// Subdivide returns the 8 children of the node at depth+1. Child i covers the octant touching
// corner i and gets id firstID+i.
func (n *Node) Subdivide(firstID uint64) []*Node {
	boxes := n.box.Subdivide()
	children := make([]*Node, 0, len(boxes))
	for i, b := range boxes {
		children = append(children, NewNode(b, n.depth+1, firstID+uint64(i)))
	}
	return children
}

func (n *Node) String() string {
	return fmt.Sprintf("node %d (depth %d) [%v, %v] lower=%g upper=%g", n.id, n.depth, n.box.Min, n.box.Max, n.lower, n.upper)
}
