package eventlist

import (
	"cmp"
	"context"
	"slices"

	"github.com/stolsvik/glazedlists/eventlist/internal/indextree"
)

// Comparator orders elements: negative when a sorts before b, positive when after, zero when equal.
type Comparator[E any] func(a, b E) int

type sortedEntry[E any] struct {
	elem   E
	parent indextree.Handle
}

// SortedView shows the source elements ordered by a comparator. Equal elements keep their source order.
// A nil comparator mirrors the source order.
type SortedView[E any] struct {
	viewCore[E]
	compare Comparator[E]
	// source order; each node points at its node in sorted
	unsorted *indextree.Tree[indextree.Handle]
	// view order; each node caches its element and points back into unsorted
	sorted *indextree.Tree[sortedEntry[E]]
}

var _ List[int] = (*SortedView[int])(nil)

// NewSortedView creates a view of source ordered by compare.
func NewSortedView[E any](ctx context.Context, source List[E], compare Comparator[E], options ...Option) (*SortedView[E], error) {
	if source == nil {
		return nil, ErrNilSource
	}

	v := &SortedView[E]{
		compare:  compare,
		unsorted: indextree.New[indextree.Handle](),
		sorted:   indextree.New[sortedEntry[E]](),
	}
	if err := v.initView(v, source, options); err != nil {
		return nil, err
	}

	err := v.obs.observeWrite(ctx, v.lock, operationNew, noIndex, func(ctx context.Context) (int, error) {
		if err := v.usable(); err != nil {
			return 0, err
		}

		elems := elementsOf(source)
		v.rebuild(v.sortOrder(elems), elems)
		v.listener = source.AddListener(v.handle)

		return 0, nil
	})
	if err != nil {
		return nil, err
	}

	return v, nil
}

func (v *SortedView[E]) size() int {
	return v.sorted.Len()
}

func (v *SortedView[E]) get(i int) E {
	return v.sorted.Value(v.sorted.At(i)).elem
}

func (v *SortedView[E]) parentIndex(i int) int {
	return v.unsorted.IndexOf(v.sorted.Value(v.sorted.At(i)).parent)
}

// compareTo orders (e, p) against the entry at h by comparator, then by source index.
func (v *SortedView[E]) compareTo(e E, p int, h indextree.Handle) int {
	entry := v.sorted.Value(h)
	if v.compare != nil {
		if c := v.compare(e, entry.elem); c != 0 {
			return c
		}
	}

	return cmp.Compare(p, v.unsorted.IndexOf(entry.parent))
}

func (v *SortedView[E]) insertionPoint(e E, p int) int {
	return v.sorted.Search(func(h indextree.Handle) int {
		return v.compareTo(e, p, h)
	})
}

// sortOrder returns source indexes in view order.
func (v *SortedView[E]) sortOrder(elems []E) []int {
	order := make([]int, len(elems))
	for i := range order {
		order[i] = i
	}

	if v.compare != nil {
		slices.SortStableFunc(order, func(a, b int) int {
			return v.compare(elems[a], elems[b])
		})
	}

	return order
}

// rebuild replaces both trees. elems is in source order, order lists source indexes in view order.
func (v *SortedView[E]) rebuild(order []int, elems []E) {
	v.unsorted.Clear()
	v.sorted.Clear()

	parents := make([]indextree.Handle, len(elems))
	for q := range elems {
		parents[q] = v.unsorted.Append(indextree.Black, indextree.Nil)
	}

	for _, q := range order {
		h := v.sorted.Append(indextree.Black, sortedEntry[E]{elem: elems[q], parent: parents[q]})
		v.unsorted.SetValue(parents[q], h)
	}
}

// snapshot returns the cached elements in source order and each one's current view index.
func (v *SortedView[E]) snapshot() ([]E, []int) {
	handles := v.unsorted.Handles()
	elems := make([]E, len(handles))
	positions := make([]int, len(handles))

	for q, u := range handles {
		h := v.unsorted.Value(u)
		elems[q] = v.sorted.Value(h).elem
		positions[q] = v.sorted.IndexOf(h)
	}

	return elems, positions
}

func (v *SortedView[E]) handle(ctx context.Context, event ListEvent[E]) {
	v.pub.begin(v.size())

	if perm := event.Reorder(); perm != nil {
		v.applyReorder(perm)
	} else {
		for _, c := range event.Changes() {
			v.applyChange(c)
		}
	}

	v.pub.commit(ctx, v.reader())
}

func (v *SortedView[E]) applyChange(c Change) {
	switch c.Type {
	case Insert:
		for p := c.Start; p < c.End; p++ {
			e := v.source.get(p)
			u := v.unsorted.InsertAt(p, indextree.Black, indextree.Nil)
			pos := v.insertionPoint(e, p)
			v.unsorted.SetValue(u, v.sorted.InsertAt(pos, indextree.Black, sortedEntry[E]{elem: e, parent: u}))
			v.pub.addChange(Insert, pos, pos+1)
		}

	case Delete:
		for range c.Len() {
			u := v.unsorted.At(c.Start)
			h := v.unsorted.Value(u)
			pos := v.sorted.IndexOf(h)
			v.sorted.Remove(h)
			v.unsorted.Remove(u)
			v.pub.addChange(Delete, pos, pos+1)
		}

	case Update:
		for p := c.Start; p < c.End; p++ {
			v.applyUpdate(p, v.source.get(p))
		}
	}
}

// applyUpdate keeps an updated element in place while it still sorts between its neighbours
// and moves it otherwise.
func (v *SortedView[E]) applyUpdate(p int, e E) {
	u := v.unsorted.At(p)
	h := v.unsorted.Value(u)
	pos := v.sorted.IndexOf(h)

	prev, next := v.sorted.At(pos-1), v.sorted.At(pos+1)
	if (prev == indextree.Nil || v.compareTo(e, p, prev) > 0) && (next == indextree.Nil || v.compareTo(e, p, next) < 0) {
		v.sorted.SetValue(h, sortedEntry[E]{elem: e, parent: u})
		v.pub.addChange(Update, pos, pos+1)

		return
	}

	v.sorted.Remove(h)
	v.pub.addChange(Delete, pos, pos+1)

	pos = v.insertionPoint(e, p)
	v.unsorted.SetValue(u, v.sorted.InsertAt(pos, indextree.Black, sortedEntry[E]{elem: e, parent: u}))
	v.pub.addChange(Insert, pos, pos+1)
}

func (v *SortedView[E]) applyReorder(perm []int) {
	oldElems, oldPositions := v.snapshot()

	elems := make([]E, len(perm))
	for q, old := range perm {
		elems[q] = oldElems[old]
	}

	order := v.sortOrder(elems)
	v.rebuild(order, elems)

	childPerm := make([]int, len(order))
	for k, q := range order {
		childPerm[k] = oldPositions[perm[q]]
	}
	v.pub.addReorder(childPerm)
}

// SetComparator re-sorts the view and publishes the result as a reorder. A nil comparator restores source order.
func (v *SortedView[E]) SetComparator(ctx context.Context, compare Comparator[E]) error {
	return v.obs.observeWrite(ctx, v.lock, operationSetComparator, noIndex, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		elems, oldPositions := v.snapshot()
		v.compare = compare
		order := v.sortOrder(elems)
		v.rebuild(order, elems)

		childPerm := make([]int, len(order))
		for k, q := range order {
			childPerm[k] = oldPositions[q]
		}

		v.pub.begin(v.size())
		v.pub.addReorder(childPerm)

		return v.pub.commit(ctx, v.reader()), nil
	})
}

// Add is not supported: a sorted view decides positions itself.
func (v *SortedView[E]) Add(ctx context.Context, i int, _ E) error {
	return v.obs.observeWrite(ctx, v.lock, operationAdd, i, func(context.Context) (int, error) {
		return 0, ErrUnsupportedOperation
	})
}

// Set replaces the element at index i in the source. The element may move afterwards.
func (v *SortedView[E]) Set(ctx context.Context, i int, e E) (E, error) {
	var old E

	err := v.obs.observeWrite(ctx, v.lock, operationSet, i, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		if err := v.checkIndex(i); err != nil {
			return 0, err
		}

		var err error
		old, err = v.source.Set(ctx, v.parentIndex(i), e)

		return 0, err
	})

	return old, err
}

// Remove removes the element at index i from the source.
func (v *SortedView[E]) Remove(ctx context.Context, i int) (E, error) {
	var old E

	err := v.obs.observeWrite(ctx, v.lock, operationRemove, i, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		if err := v.checkIndex(i); err != nil {
			return 0, err
		}

		var err error
		old, err = v.source.Remove(ctx, v.parentIndex(i))

		return 0, err
	})

	return old, err
}

func (v *SortedView[E]) removeIndices(ctx context.Context, indices []int) error {
	parents := make([]int, len(indices))
	for k, i := range indices {
		parents[k] = v.parentIndex(i)
	}

	return v.source.removeIndices(ctx, sortedUnique(parents))
}

// Dispose detaches the view from its source.
func (v *SortedView[E]) Dispose(ctx context.Context) error {
	return v.dispose(ctx, func() {
		v.unsorted.Clear()
		v.sorted.Clear()
	})
}
