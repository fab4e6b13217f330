package eventlist

import (
	"context"
)

// WindowedView shows the source elements at [from, to). The bounds track the elements they
// surround: inserts and deletes before the window shift it, inserts strictly inside grow it.
// A window emptied by deletes stays where it was and does not capture later inserts.
type WindowedView[E any] struct {
	viewCore[E]
	from, to int
	// source position an in-flight Add claims for the window, or -1
	claimed int
}

var _ List[int] = (*WindowedView[int])(nil)

// NewWindowedView creates a view of source at [from, to). Bounds beyond the source size are clamped.
func NewWindowedView[E any](ctx context.Context, source List[E], from, to int, options ...Option) (*WindowedView[E], error) {
	if source == nil {
		return nil, ErrNilSource
	}

	if from < 0 || from > to {
		return nil, invalidRange(from, to)
	}

	v := &WindowedView[E]{claimed: -1}
	if err := v.initView(v, source, options); err != nil {
		return nil, err
	}

	err := v.obs.observeWrite(ctx, v.lock, operationNew, from, func(ctx context.Context) (int, error) {
		if err := v.usable(); err != nil {
			return 0, err
		}

		n := source.size()
		v.from, v.to = min(from, n), min(to, n)
		v.listener = source.AddListener(v.handle)

		return 0, nil
	})
	if err != nil {
		return nil, err
	}

	return v, nil
}

func (v *WindowedView[E]) size() int {
	return v.to - v.from
}

func (v *WindowedView[E]) get(i int) E {
	return v.source.get(v.from + i)
}

// Range returns the current bounds [from, to) in source indexes.
func (v *WindowedView[E]) Range() (int, int) {
	v.lock.RLock()
	defer v.lock.RUnlock()

	return v.from, v.to
}

func (v *WindowedView[E]) handle(ctx context.Context, event ListEvent[E]) {
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

func (v *WindowedView[E]) applyChange(c Change) {
	n := c.Len()

	switch c.Type {
	case Insert:
		switch {
		case c.Start == v.claimed:
			v.claimed = -1
			v.pub.addChange(Insert, c.Start-v.from, c.End-v.from)
			v.to += n
		case c.Start <= v.from:
			v.from += n
			v.to += n
		case c.Start < v.to:
			v.pub.addChange(Insert, c.Start-v.from, c.End-v.from)
			v.to += n
		}

	case Delete:
		before := max(0, min(c.End, v.from)-c.Start)
		lo, hi := max(c.Start, v.from), min(c.End, v.to)
		if lo < hi {
			v.pub.addChange(Delete, lo-v.from, hi-v.from)
			v.to -= hi - lo
		}
		v.from -= before
		v.to -= before

	case Update:
		lo, hi := max(c.Start, v.from), min(c.End, v.to)
		if lo < hi {
			v.pub.addChange(Update, lo-v.from, hi-v.from)
		}
	}
}

// applyReorder follows the window's elements when they stay contiguous, otherwise it keeps the
// bounds and reports the positions whose occupant changed.
func (v *WindowedView[E]) applyReorder(perm []int) {
	if v.from == v.to {
		return
	}

	first, last, count := len(perm), -1, 0
	for q, old := range perm {
		if old >= v.from && old < v.to {
			first, last = min(first, q), max(last, q)
			count++
		}
	}

	if last-first+1 == count {
		childPerm := make([]int, count)
		for k := range childPerm {
			childPerm[k] = perm[first+k] - v.from
		}
		v.from, v.to = first, last+1
		v.pub.addReorder(childPerm)

		return
	}

	for q := v.from; q < v.to; q++ {
		if perm[q] != q {
			v.pub.addChange(Update, q-v.from, q-v.from+1)
		}
	}
}

// SetRange moves the window to [from, to), clamped to the source size, publishing only the difference.
func (v *WindowedView[E]) SetRange(ctx context.Context, from, to int) error {
	return v.obs.observeWrite(ctx, v.lock, operationSetRange, from, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		if from < 0 || from > to {
			return 0, invalidRange(from, to)
		}

		n := v.source.size()
		from, to = min(from, n), min(to, n)

		v.pub.begin(v.size())
		if to <= v.from || from >= v.to {
			v.pub.addChange(Delete, 0, v.size())
			v.pub.addChange(Insert, 0, to-from)
		} else {
			switch {
			case from < v.from:
				v.pub.addChange(Insert, 0, v.from-from)
			case from > v.from:
				v.pub.addChange(Delete, 0, from-v.from)
			}
			switch {
			case to > v.to:
				v.pub.addChange(Insert, v.to-from, to-from)
			case to < v.to:
				v.pub.addChange(Delete, to-from, v.to-from)
			}
		}
		v.from, v.to = from, to

		return v.pub.commit(ctx, v.reader()), nil
	})
}

// Add inserts e into the source at from+i, 0 <= i <= Size(). The element becomes part of the window.
func (v *WindowedView[E]) Add(ctx context.Context, i int, e E) error {
	return v.obs.observeWrite(ctx, v.lock, operationAdd, i, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		if n := v.size(); i < 0 || i > n {
			return 0, indexOutOfBounds(i, n)
		}

		v.claimed = v.from + i
		defer func() { v.claimed = -1 }()

		return 0, v.source.Add(ctx, v.from+i, e)
	})
}

// Set replaces the element at index i in the source.
func (v *WindowedView[E]) Set(ctx context.Context, i int, e E) (E, error) {
	var old E

	err := v.obs.observeWrite(ctx, v.lock, operationSet, i, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		if err := v.checkIndex(i); err != nil {
			return 0, err
		}

		var err error
		old, err = v.source.Set(ctx, v.from+i, e)

		return 0, err
	})

	return old, err
}

// Remove removes the element at index i from the source.
func (v *WindowedView[E]) Remove(ctx context.Context, i int) (E, error) {
	var old E

	err := v.obs.observeWrite(ctx, v.lock, operationRemove, i, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		if err := v.checkIndex(i); err != nil {
			return 0, err
		}

		var err error
		old, err = v.source.Remove(ctx, v.from+i)

		return 0, err
	})

	return old, err
}

func (v *WindowedView[E]) removeIndices(ctx context.Context, indices []int) error {
	parents := make([]int, len(indices))
	for k, i := range indices {
		parents[k] = v.from + i
	}

	return v.source.removeIndices(ctx, parents)
}

// Dispose detaches the view from its source.
func (v *WindowedView[E]) Dispose(ctx context.Context) error {
	return v.dispose(ctx, nil)
}
