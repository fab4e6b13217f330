package eventlist

import (
	"context"

	"github.com/stolsvik/glazedlists/eventlist/internal/indextree"
)

const matching = indextree.White

// Predicate decides whether an element belongs to a FilteredView.
type Predicate[E any] func(e E) bool

// FilteredView shows the source elements that match a predicate, in source order.
type FilteredView[E any] struct {
	viewCore[E]
	predicate Predicate[E]
	// one node per source element, coloured by the predicate result
	flags *indextree.Tree[struct{}]
}

var _ List[int] = (*FilteredView[int])(nil)

// NewFilteredView creates a view of the elements of source matching predicate. A nil predicate matches everything.
func NewFilteredView[E any](ctx context.Context, source List[E], predicate Predicate[E], options ...Option) (*FilteredView[E], error) {
	if source == nil {
		return nil, ErrNilSource
	}

	v := &FilteredView[E]{predicate: predicate, flags: indextree.New[struct{}]()}
	if err := v.initView(v, source, options); err != nil {
		return nil, err
	}

	err := v.obs.observeWrite(ctx, v.lock, operationNew, noIndex, func(ctx context.Context) (int, error) {
		if err := v.usable(); err != nil {
			return 0, err
		}

		for i := range source.size() {
			v.flags.Append(v.colorOf(source.get(i)), struct{}{})
		}
		v.listener = source.AddListener(v.handle)

		return 0, nil
	})
	if err != nil {
		return nil, err
	}

	return v, nil
}

func (v *FilteredView[E]) colorOf(e E) indextree.Color {
	if v.predicate == nil || v.predicate(e) {
		return matching
	}

	return indextree.Black
}

func (v *FilteredView[E]) size() int {
	return v.flags.Count(matching)
}

func (v *FilteredView[E]) get(i int) E {
	return v.source.get(v.parentIndex(i))
}

func (v *FilteredView[E]) parentIndex(i int) int {
	return v.flags.IndexOf(v.flags.AtColor(matching, i))
}

func (v *FilteredView[E]) handle(ctx context.Context, event ListEvent[E]) {
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

func (v *FilteredView[E]) applyChange(c Change) {
	switch c.Type {
	case Insert:
		for p := c.Start; p < c.End; p++ {
			h := v.flags.InsertAt(p, v.colorOf(v.source.get(p)), struct{}{})
			if v.flags.Color(h) == matching {
				ci := v.flags.ColorIndexOf(h)
				v.pub.addChange(Insert, ci, ci+1)
			}
		}

	case Delete:
		for range c.Len() {
			h := v.flags.At(c.Start)
			if v.flags.Color(h) == matching {
				ci := v.flags.ColorIndexOf(h)
				v.pub.addChange(Delete, ci, ci+1)
			}
			v.flags.Remove(h)
		}

	case Update:
		for p := c.Start; p < c.End; p++ {
			v.recolor(v.flags.At(p), v.colorOf(v.source.get(p)), true)
		}
	}
}

// recolor moves h in or out of the view. An unchanged match is reported as an update when report is set.
func (v *FilteredView[E]) recolor(h indextree.Handle, now indextree.Color, report bool) {
	was := v.flags.Color(h)

	switch {
	case was == matching && now == matching:
		if report {
			ci := v.flags.ColorIndexOf(h)
			v.pub.addChange(Update, ci, ci+1)
		}
	case was == matching:
		ci := v.flags.ColorIndexOf(h)
		v.flags.SetColor(h, now)
		v.pub.addChange(Delete, ci, ci+1)
	case now == matching:
		v.flags.SetColor(h, now)
		ci := v.flags.ColorIndexOf(h)
		v.pub.addChange(Insert, ci, ci+1)
	}
}

// applyReorder carries a source permutation over to the matching elements.
func (v *FilteredView[E]) applyReorder(perm []int) {
	handles := v.flags.Handles()
	oldColors := make([]indextree.Color, len(handles))
	oldChild := make([]int, len(handles))
	rank := 0
	for i, h := range handles {
		oldColors[i] = v.flags.Color(h)
		oldChild[i] = rank
		if oldColors[i] == matching {
			rank++
		}
	}

	v.flags.Clear()
	childPerm := make([]int, 0, rank)
	for _, old := range perm {
		v.flags.Append(oldColors[old], struct{}{})
		if oldColors[old] == matching {
			childPerm = append(childPerm, oldChild[old])
		}
	}

	v.pub.addReorder(childPerm)
}

// SetPredicate replaces the predicate and publishes only the membership changes.
func (v *FilteredView[E]) SetPredicate(ctx context.Context, predicate Predicate[E]) error {
	return v.obs.observeWrite(ctx, v.lock, operationSetPredicate, noIndex, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		v.predicate = predicate
		v.pub.begin(v.size())
		for p, h := range v.flags.Handles() {
			v.recolor(h, v.colorOf(v.source.get(p)), false)
		}

		return v.pub.commit(ctx, v.reader()), nil
	})
}

// Add inserts e into the source in front of the element currently at index i, or after the last
// matching element when i == Size(). The element only shows up here if it matches the predicate.
func (v *FilteredView[E]) Add(ctx context.Context, i int, e E) error {
	return v.obs.observeWrite(ctx, v.lock, operationAdd, i, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		n := v.size()
		if i < 0 || i > n {
			return 0, indexOutOfBounds(i, n)
		}

		var p int
		switch {
		case i < n:
			p = v.parentIndex(i)
		case n == 0:
			p = v.source.size()
		default:
			p = v.parentIndex(n-1) + 1
		}

		return 0, v.source.Add(ctx, p, e)
	})
}

// Set replaces the element at index i in the source.
func (v *FilteredView[E]) Set(ctx context.Context, i int, e E) (E, error) {
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
func (v *FilteredView[E]) Remove(ctx context.Context, i int) (E, error) {
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

func (v *FilteredView[E]) removeIndices(ctx context.Context, indices []int) error {
	parents := make([]int, len(indices))
	for k, i := range indices {
		parents[k] = v.parentIndex(i)
	}

	return v.source.removeIndices(ctx, parents)
}

// Dispose detaches the view from its source.
func (v *FilteredView[E]) Dispose(ctx context.Context) error {
	return v.dispose(ctx, func() { v.flags.Clear() })
}
