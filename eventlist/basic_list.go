package eventlist

import (
	"context"
	"slices"
)

// BasicList is the mutable base of a chain. It owns the elements and the chain's Lock.
type BasicList[E any] struct {
	listCore[E]
	data []E
}

var _ List[int] = (*BasicList[int])(nil)

// New creates an empty BasicList with a new Lock.
func New[E any](options ...Option) (*BasicList[E], error) {
	cfg, err := newConfig(nil, options)
	if err != nil {
		return nil, err
	}

	l := &BasicList[E]{}
	l.init(l, NewLock(), cfg)
	l.obs.logLifecycle(context.Background(), operationNew)

	return l, nil
}

// NewFrom creates a BasicList holding a copy of elements.
func NewFrom[E any](ctx context.Context, elements []E, options ...Option) (*BasicList[E], error) {
	l, err := New[E](options...)
	if err != nil {
		return nil, err
	}

	if err := l.Append(ctx, elements...); err != nil {
		return nil, err
	}

	return l, nil
}

func (l *BasicList[E]) size() int {
	return len(l.data)
}

func (l *BasicList[E]) get(i int) E {
	return l.data[i]
}

func (l *BasicList[E]) usable() error {
	if l.disposed {
		return ErrDisposed
	}

	return nil
}

// Add inserts e at index i, 0 <= i <= Size().
func (l *BasicList[E]) Add(ctx context.Context, i int, e E) error {
	return l.obs.observeWrite(ctx, l.lock, operationAdd, i, func(ctx context.Context) (int, error) {
		if err := l.usable(); err != nil {
			return 0, err
		}

		if i < 0 || i > len(l.data) {
			return 0, indexOutOfBounds(i, len(l.data))
		}

		l.pub.begin(len(l.data))
		l.data = slices.Insert(l.data, i, e)
		l.pub.addChange(Insert, i, i+1)

		return l.pub.commit(ctx, l.reader()), nil
	})
}

// Append adds elements at the end as one batch.
func (l *BasicList[E]) Append(ctx context.Context, elements ...E) error {
	return l.obs.observeWrite(ctx, l.lock, operationAppend, noIndex, func(ctx context.Context) (int, error) {
		if err := l.usable(); err != nil {
			return 0, err
		}

		if len(elements) == 0 {
			return 0, nil
		}

		start := len(l.data)
		l.pub.begin(start)
		l.data = append(l.data, elements...)
		l.pub.addChange(Insert, start, len(l.data))

		return l.pub.commit(ctx, l.reader()), nil
	})
}

// Set replaces the element at index i and returns the previous one.
func (l *BasicList[E]) Set(ctx context.Context, i int, e E) (E, error) {
	var old E

	err := l.obs.observeWrite(ctx, l.lock, operationSet, i, func(ctx context.Context) (int, error) {
		if err := l.usable(); err != nil {
			return 0, err
		}

		if err := l.checkIndex(i); err != nil {
			return 0, err
		}

		l.pub.begin(len(l.data))
		old = l.data[i]
		l.data[i] = e
		l.pub.addChange(Update, i, i+1)

		return l.pub.commit(ctx, l.reader()), nil
	})

	return old, err
}

// Remove removes the element at index i and returns it.
func (l *BasicList[E]) Remove(ctx context.Context, i int) (E, error) {
	var old E

	err := l.obs.observeWrite(ctx, l.lock, operationRemove, i, func(ctx context.Context) (int, error) {
		if err := l.usable(); err != nil {
			return 0, err
		}

		if err := l.checkIndex(i); err != nil {
			return 0, err
		}

		l.pub.begin(len(l.data))
		old = l.data[i]
		l.data = slices.Delete(l.data, i, i+1)
		l.pub.addChange(Delete, i, i+1)

		return l.pub.commit(ctx, l.reader()), nil
	})

	return old, err
}

// RemoveRange removes the elements at [from, to).
func (l *BasicList[E]) RemoveRange(ctx context.Context, from, to int) error {
	return l.obs.observeWrite(ctx, l.lock, operationRemoveRange, from, func(ctx context.Context) (int, error) {
		if err := l.usable(); err != nil {
			return 0, err
		}

		if from < 0 || from > to {
			return 0, invalidRange(from, to)
		}

		if to > len(l.data) {
			return 0, indexOutOfBounds(to, len(l.data))
		}

		if from == to {
			return 0, nil
		}

		l.pub.begin(len(l.data))
		l.data = slices.Delete(l.data, from, to)
		l.pub.addChange(Delete, from, to)

		return l.pub.commit(ctx, l.reader()), nil
	})
}

// Clear removes every element.
func (l *BasicList[E]) Clear(ctx context.Context) error {
	return l.obs.observeWrite(ctx, l.lock, operationClear, noIndex, func(ctx context.Context) (int, error) {
		if err := l.usable(); err != nil {
			return 0, err
		}

		if len(l.data) == 0 {
			return 0, nil
		}

		l.pub.begin(len(l.data))
		n := len(l.data)
		clear(l.data)
		l.data = l.data[:0]
		l.pub.addChange(Delete, 0, n)

		return l.pub.commit(ctx, l.reader()), nil
	})
}

// Update runs fn under the write lock and publishes everything fn wrote through ctx as one batch.
// Changes fn made before returning an error (or panicking) are still published.
// Views of this list reject writes while fn runs.
func (l *BasicList[E]) Update(ctx context.Context, fn func(ctx context.Context, view Reader[E]) error) error {
	return l.obs.observeWrite(ctx, l.lock, operationUpdate, noIndex, func(ctx context.Context) (published int, err error) {
		if err := l.usable(); err != nil {
			return 0, err
		}

		l.pub.begin(len(l.data))
		l.lock.batching++
		defer func() {
			l.lock.batching--
			published = l.pub.commit(ctx, l.reader())
		}()

		err = fn(ctx, l.reader())

		return published, err
	})
}

// removeIndices removes the elements at the given ascending indices as one batch.
func (l *BasicList[E]) removeIndices(ctx context.Context, indices []int) error {
	l.pub.begin(len(l.data))
	for k := len(indices) - 1; k >= 0; k-- {
		i := indices[k]
		l.data = slices.Delete(l.data, i, i+1)
		l.pub.addChange(Delete, i, i+1)
	}
	l.pub.commit(ctx, l.reader())

	return nil
}

// Dispose makes the list inert. Views stacked on it are not disposed; their reads fail with ErrSourceDisposed.
func (l *BasicList[E]) Dispose(ctx context.Context) error {
	return l.obs.observeWrite(ctx, l.lock, operationDispose, noIndex, func(ctx context.Context) (int, error) {
		if l.disposed {
			return 0, ErrAlreadyDisposed
		}

		l.disposed = true
		l.data = nil
		l.pub.listeners.clear()
		l.obs.logLifecycle(ctx, operationDispose)

		return 0, nil
	})
}
