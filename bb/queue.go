package bb

import "container/heap"

// nodeQueue is a min-heap of nodes ordered by upper bound. Ties go to the shallower node and then
// to the earlier created one.
type nodeQueue []*Node

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.upper != b.upper {
		return a.upper < b.upper
	}
	if a.depth != b.depth {
		return a.depth < b.depth
	}
	return a.id < b.id
}

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x interface{}) {
	*q = append(*q, x.(*Node))
}

func (q *nodeQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

func (q *nodeQueue) push(n *Node) {
	heap.Push(q, n)
}

func (q *nodeQueue) pop() *Node {
	return heap.Pop(q).(*Node)
}

// minLower returns the smallest lower bound of the queued nodes, or ok false when empty.
func (q nodeQueue) minLower() (float64, bool) {
	if len(q) == 0 {
		return 0, false
	}
	lowest := q[0].lower
	for _, n := range q[1:] {
		if n.lower < lowest {
			lowest = n.lower
		}
	}
	return lowest, true
}
