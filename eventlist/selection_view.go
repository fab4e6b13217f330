package eventlist

import (
	"context"

	"github.com/stolsvik/glazedlists/eventlist/internal/indextree"
)

// SelectionView is one side of a SelectionTracker: the selected or the deselected elements, in source order.
type SelectionView[E any] struct {
	listCore[E]
	tracker *SelectionTracker[E]
	color   indextree.Color
}

var _ List[int] = (*SelectionView[int])(nil)

func newSelectionView[E any](t *SelectionTracker[E], color indextree.Color, cfg config, suffix string) *SelectionView[E] {
	v := &SelectionView[E]{tracker: t, color: color}
	cfg.name += suffix
	v.init(v, t.lock, cfg)

	return v
}

func (v *SelectionView[E]) size() int {
	return v.tracker.flags.Count(v.color)
}

func (v *SelectionView[E]) get(i int) E {
	return v.tracker.source.get(v.parentIndex(i))
}

func (v *SelectionView[E]) parentIndex(i int) int {
	return v.tracker.flags.IndexOf(v.tracker.flags.AtColor(v.color, i))
}

func (v *SelectionView[E]) usable() error {
	if v.disposed {
		return ErrDisposed
	}

	return v.tracker.usable()
}

func (v *SelectionView[E]) writable() error {
	if err := v.usable(); err != nil {
		return err
	}

	if v.lock.batching > 0 {
		return ErrBatchInProgress
	}

	return nil
}

// Add is not supported: membership is decided by the selection.
func (v *SelectionView[E]) Add(ctx context.Context, i int, _ E) error {
	return v.obs.observeWrite(ctx, v.lock, operationAdd, i, func(context.Context) (int, error) {
		return 0, ErrUnsupportedOperation
	})
}

// Set replaces the element at index i in the source. Its selection flag is kept.
func (v *SelectionView[E]) Set(ctx context.Context, i int, e E) (E, error) {
	var old E

	err := v.obs.observeWrite(ctx, v.lock, operationSet, i, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		if err := v.checkIndex(i); err != nil {
			return 0, err
		}

		var err error
		old, err = v.tracker.source.Set(ctx, v.parentIndex(i), e)

		return 0, err
	})

	return old, err
}

// Remove removes the element at index i from the source.
func (v *SelectionView[E]) Remove(ctx context.Context, i int) (E, error) {
	var old E

	err := v.obs.observeWrite(ctx, v.lock, operationRemove, i, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		if err := v.checkIndex(i); err != nil {
			return 0, err
		}

		var err error
		old, err = v.tracker.source.Remove(ctx, v.parentIndex(i))

		return 0, err
	})

	return old, err
}

// Clear removes all of the view's elements from the source in one batch.
func (v *SelectionView[E]) Clear(ctx context.Context) error {
	return v.obs.observeWrite(ctx, v.lock, operationClear, noIndex, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		n := v.size()
		if n == 0 {
			return 0, nil
		}

		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}

		return n, v.removeIndices(ctx, indices)
	})
}

// Update runs fn under the chain's write lock. Every write fn makes through the view publishes its own batch.
func (v *SelectionView[E]) Update(ctx context.Context, fn func(ctx context.Context, view Reader[E]) error) error {
	return v.obs.observeWrite(ctx, v.lock, operationUpdate, noIndex, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		return 0, fn(ctx, v.reader())
	})
}

func (v *SelectionView[E]) removeIndices(ctx context.Context, indices []int) error {
	parents := make([]int, len(indices))
	for k, i := range indices {
		parents[k] = v.parentIndex(i)
	}

	return v.tracker.source.removeIndices(ctx, parents)
}

// Dispose makes this view inert. The tracker and the other view keep working.
func (v *SelectionView[E]) Dispose(ctx context.Context) error {
	return v.obs.observeWrite(ctx, v.lock, operationDispose, noIndex, func(ctx context.Context) (int, error) {
		if v.disposed {
			return 0, ErrAlreadyDisposed
		}

		v.disposed = true
		v.pub.listeners.clear()
		v.obs.logLifecycle(ctx, operationDispose)

		return 0, nil
	})
}
