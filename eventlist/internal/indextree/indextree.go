// Package indextree provides an arena-allocated order-statistics tree for sequences whose
// positions are implicit. Every node carries one of two colours and the tree keeps
// per-colour counts in each subtree, so rank queries by colour run in O(log n).
//
// The tree is a treap: nodes are ordered by position and heap-ordered by a random priority.
// Handles are indexes into the node arena and stay valid until the node is removed.
package indextree

import (
	"math/rand/v2"
)

// Handle identifies a node inside a Tree.
type Handle int32

// Nil is the handle of no node.
const Nil Handle = -1

// Color is the per-node colour used for rank queries.
type Color uint8

const (
	// Black is the zero colour.
	Black Color = iota

	// White is the second colour.
	White
)

type node[V any] struct {
	left, right, parent Handle
	priority            uint32
	size                int
	counts              [2]int
	color               Color
	value               V
}

// Tree is an order-statistics treap over positions [0, Len()).
type Tree[V any] struct {
	nodes []node[V]
	free  []Handle
	root  Handle
}

// New creates an empty Tree.
func New[V any]() *Tree[V] {
	return &Tree[V]{root: Nil}
}

// Len returns the number of nodes.
func (t *Tree[V]) Len() int {
	return t.sizeOf(t.root)
}

// Count returns the number of nodes with the given colour.
func (t *Tree[V]) Count(c Color) int {
	if t.root == Nil {
		return 0
	}

	return t.nodes[t.root].counts[c]
}

// Clear removes every node and releases the arena.
func (t *Tree[V]) Clear() {
	t.nodes = t.nodes[:0]
	t.free = t.free[:0]
	t.root = Nil
}

// Value returns the value stored at h.
func (t *Tree[V]) Value(h Handle) V {
	return t.nodes[h].value
}

// SetValue replaces the value stored at h.
func (t *Tree[V]) SetValue(h Handle, v V) {
	t.nodes[h].value = v
}

// Color returns the colour of h.
func (t *Tree[V]) Color(h Handle) Color {
	return t.nodes[h].color
}

// SetColor recolours h and fixes the counts on the path to the root.
func (t *Tree[V]) SetColor(h Handle, c Color) {
	if t.nodes[h].color == c {
		return
	}

	t.nodes[h].color = c
	for n := h; n != Nil; n = t.nodes[n].parent {
		t.pull(n)
	}
}

// InsertAt inserts a node at position pos, shifting later positions up by one.
// pos must be within [0, Len()].
func (t *Tree[V]) InsertAt(pos int, c Color, v V) Handle {
	h := t.alloc(c, v)

	if t.root == Nil {
		t.root = h
		return h
	}

	// descend to the leaf slot for pos
	cur := t.root
	for {
		leftSize := t.sizeOf(t.nodes[cur].left)
		if pos <= leftSize {
			if t.nodes[cur].left == Nil {
				t.nodes[cur].left = h
				break
			}
			cur = t.nodes[cur].left
			continue
		}

		pos -= leftSize + 1
		if t.nodes[cur].right == Nil {
			t.nodes[cur].right = h
			break
		}
		cur = t.nodes[cur].right
	}

	t.nodes[h].parent = cur
	for n := cur; n != Nil; n = t.nodes[n].parent {
		t.pull(n)
	}

	for p := t.nodes[h].parent; p != Nil && t.nodes[h].priority > t.nodes[p].priority; p = t.nodes[h].parent {
		t.rotateUp(h)
	}

	return h
}

// Append inserts a node at the end of the sequence.
func (t *Tree[V]) Append(c Color, v V) Handle {
	return t.InsertAt(t.Len(), c, v)
}

// Remove deletes h, shifting later positions down by one.
func (t *Tree[V]) Remove(h Handle) {
	// rotate h down until it is a leaf
	for {
		l, r := t.nodes[h].left, t.nodes[h].right
		if l == Nil && r == Nil {
			break
		}

		switch {
		case l == Nil:
			t.rotateUp(r)
		case r == Nil:
			t.rotateUp(l)
		case t.nodes[l].priority > t.nodes[r].priority:
			t.rotateUp(l)
		default:
			t.rotateUp(r)
		}
	}

	p := t.nodes[h].parent
	t.replaceChild(p, h, Nil)
	for n := p; n != Nil; n = t.nodes[n].parent {
		t.pull(n)
	}

	t.release(h)
}

// IndexOf returns the position of h.
func (t *Tree[V]) IndexOf(h Handle) int {
	idx := t.sizeOf(t.nodes[h].left)
	for n := h; t.nodes[n].parent != Nil; n = t.nodes[n].parent {
		p := t.nodes[n].parent
		if t.nodes[p].right == n {
			idx += t.sizeOf(t.nodes[p].left) + 1
		}
	}

	return idx
}

// ColorIndexOf returns the number of nodes with the colour of h that precede h.
func (t *Tree[V]) ColorIndexOf(h Handle) int {
	c := t.nodes[h].color
	idx := t.countOf(t.nodes[h].left, c)
	for n := h; t.nodes[n].parent != Nil; n = t.nodes[n].parent {
		p := t.nodes[n].parent
		if t.nodes[p].right == n {
			idx += t.countOf(t.nodes[p].left, c)
			if t.nodes[p].color == c {
				idx++
			}
		}
	}

	return idx
}

// At returns the node at position pos, or Nil when pos is out of range.
func (t *Tree[V]) At(pos int) Handle {
	if pos < 0 || pos >= t.Len() {
		return Nil
	}

	cur := t.root
	for cur != Nil {
		leftSize := t.sizeOf(t.nodes[cur].left)
		switch {
		case pos < leftSize:
			cur = t.nodes[cur].left
		case pos == leftSize:
			return cur
		default:
			pos -= leftSize + 1
			cur = t.nodes[cur].right
		}
	}

	return Nil
}

// AtColor returns the k-th node (zero based) of colour c, or Nil when there is none.
func (t *Tree[V]) AtColor(c Color, k int) Handle {
	if k < 0 || k >= t.Count(c) {
		return Nil
	}

	cur := t.root
	for cur != Nil {
		leftCount := t.countOf(t.nodes[cur].left, c)
		switch {
		case k < leftCount:
			cur = t.nodes[cur].left
		case k == leftCount && t.nodes[cur].color == c:
			return cur
		default:
			k -= leftCount
			if t.nodes[cur].color == c {
				k--
			}
			cur = t.nodes[cur].right
		}
	}

	return Nil
}

// CountBefore returns the number of nodes of colour c at positions [0, pos).
func (t *Tree[V]) CountBefore(c Color, pos int) int {
	count := 0
	cur := t.root
	for cur != Nil && pos > 0 {
		leftSize := t.sizeOf(t.nodes[cur].left)
		if pos <= leftSize {
			cur = t.nodes[cur].left
			continue
		}

		count += t.countOf(t.nodes[cur].left, c)
		if t.nodes[cur].color == c {
			count++
		}
		pos -= leftSize + 1
		cur = t.nodes[cur].right
	}

	return count
}

// Search descends from the root and returns the insertion position chosen by direction:
// a negative result moves left of the visited node, zero or positive moves right of it.
func (t *Tree[V]) Search(direction func(h Handle) int) int {
	pos := 0
	cur := t.root
	for cur != Nil {
		if direction(cur) < 0 {
			cur = t.nodes[cur].left
			continue
		}

		pos += t.sizeOf(t.nodes[cur].left) + 1
		cur = t.nodes[cur].right
	}

	return pos
}

// Handles returns every handle in position order.
func (t *Tree[V]) Handles() []Handle {
	out := make([]Handle, 0, t.Len())
	var stack []Handle
	cur := t.root
	for cur != Nil || len(stack) > 0 {
		for cur != Nil {
			stack = append(stack, cur)
			cur = t.nodes[cur].left
		}

		cur = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)
		cur = t.nodes[cur].right
	}

	return out
}

func (t *Tree[V]) sizeOf(h Handle) int {
	if h == Nil {
		return 0
	}

	return t.nodes[h].size
}

func (t *Tree[V]) countOf(h Handle, c Color) int {
	if h == Nil {
		return 0
	}

	return t.nodes[h].counts[c]
}

// pull recomputes size and colour counts of n from its children.
func (t *Tree[V]) pull(n Handle) {
	nd := &t.nodes[n]
	nd.size = 1 + t.sizeOf(nd.left) + t.sizeOf(nd.right)
	for c := Black; c <= White; c++ {
		nd.counts[c] = t.countOf(nd.left, c) + t.countOf(nd.right, c)
	}
	nd.counts[nd.color]++
}

// rotateUp lifts x above its parent, preserving in-order sequence.
func (t *Tree[V]) rotateUp(x Handle) {
	p := t.nodes[x].parent
	g := t.nodes[p].parent

	if t.nodes[p].left == x {
		mid := t.nodes[x].right
		t.nodes[p].left = mid
		if mid != Nil {
			t.nodes[mid].parent = p
		}
		t.nodes[x].right = p
	} else {
		mid := t.nodes[x].left
		t.nodes[p].right = mid
		if mid != Nil {
			t.nodes[mid].parent = p
		}
		t.nodes[x].left = p
	}

	t.nodes[p].parent = x
	t.nodes[x].parent = g
	t.replaceChild(g, p, x)

	t.pull(p)
	t.pull(x)
}

func (t *Tree[V]) replaceChild(parent, old, repl Handle) {
	switch {
	case parent == Nil:
		t.root = repl
	case t.nodes[parent].left == old:
		t.nodes[parent].left = repl
	default:
		t.nodes[parent].right = repl
	}
}

func (t *Tree[V]) alloc(c Color, v V) Handle {
	nd := node[V]{
		left:     Nil,
		right:    Nil,
		parent:   Nil,
		priority: rand.Uint32(), //nolint:gosec // balancing only
		size:     1,
		color:    c,
		value:    v,
	}
	nd.counts[c] = 1

	if n := len(t.free); n > 0 {
		h := t.free[n-1]
		t.free = t.free[:n-1]
		t.nodes[h] = nd

		return h
	}

	t.nodes = append(t.nodes, nd)

	return Handle(len(t.nodes) - 1)
}

func (t *Tree[V]) release(h Handle) {
	var zero node[V]
	t.nodes[h] = zero
	t.free = append(t.free, h)
}
