package eventlist

import (
	"context"
	"errors"
	"slices"
)

// List is an observable, index-addressable sequence: a BasicList or one of the views stacked on it.
//
// Reads take the chain's read lock and must not be called from a Listener or from the callback of Update;
// use the Reader handed to those callbacks instead. Writes take a context.Context that carries the
// chain's write lock, see Lock.
type List[E any] interface {
	Reader[E]

	// Add inserts e at index i, 0 <= i <= Size().
	Add(ctx context.Context, i int, e E) error

	// Set replaces the element at index i and returns the previous one.
	Set(ctx context.Context, i int, e E) (E, error)

	// Remove removes the element at index i and returns it.
	Remove(ctx context.Context, i int) (E, error)

	// Clear removes every element of the list; for a view, from its source.
	Clear(ctx context.Context) error

	// Update runs fn under the chain's write lock. fn must use the given context for its writes and
	// the given Reader for its reads.
	Update(ctx context.Context, fn func(ctx context.Context, view Reader[E]) error) error

	// AddListener registers fn for every batch the list publishes.
	AddListener(fn Listener[E]) ListenerID

	// RemoveListener unregisters a listener. It reports whether the listener was registered.
	RemoveListener(id ListenerID) bool

	// Lock returns the lock shared by the whole chain.
	Lock() *Lock

	// Name returns the name used in logs, metrics, and spans.
	Name() string

	// Dispose detaches the list from its source. Afterwards the list is inert.
	Dispose(ctx context.Context) error

	core() *listCore[E]
	size() int
	get(i int) E
	usable() error
	removeIndices(ctx context.Context, indices []int) error
}

// listCore holds what every list of a chain has: the shared lock, instrumentation, and its publisher.
type listCore[E any] struct {
	self     List[E]
	lock     *Lock
	obs      *observer
	pub      publisher[E]
	disposed bool
}

func (c *listCore[E]) init(self List[E], lock *Lock, cfg config) {
	c.self = self
	c.lock = lock
	c.obs = newObserver(cfg)
	c.pub.lock = lock
	c.pub.obs = c.obs
}

func (c *listCore[E]) core() *listCore[E] {
	return c
}

// Get returns the element at index i.
func (c *listCore[E]) Get(i int) (E, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	var zero E
	if err := c.self.usable(); err != nil {
		return zero, c.obs.checkRead(operationGet, err)
	}

	if n := c.self.size(); i < 0 || i >= n {
		return zero, c.obs.checkRead(operationGet, indexOutOfBounds(i, n))
	}

	return c.self.get(i), nil
}

// Size returns the number of elements, or 0 once the list or its source is disposed.
func (c *listCore[E]) Size() int {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.self.usable() != nil {
		return 0
	}

	return c.self.size()
}

// Elements returns a consistent snapshot of all elements.
func (c *listCore[E]) Elements() []E {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.self.usable() != nil {
		return nil
	}

	return elementsOf(c.self)
}

// AddListener registers fn for every batch the list publishes.
func (c *listCore[E]) AddListener(fn Listener[E]) ListenerID {
	id, count := c.pub.listeners.add(fn)
	c.obs.recordListeners(operationAddListener, count)

	return id
}

// RemoveListener unregisters a listener and reports whether it was registered.
func (c *listCore[E]) RemoveListener(id ListenerID) bool {
	removed, count := c.pub.listeners.remove(id)
	if removed {
		c.obs.recordListeners(operationRemoveListener, count)
	}

	return removed
}

// Lock returns the lock shared by the whole chain.
func (c *listCore[E]) Lock() *Lock {
	return c.lock
}

// Name returns the list's name.
func (c *listCore[E]) Name() string {
	return c.obs.name
}

func (c *listCore[E]) reader() Reader[E] {
	return lockedReader[E]{l: c.self}
}

func (c *listCore[E]) checkIndex(i int) error {
	if n := c.self.size(); i < 0 || i >= n {
		return indexOutOfBounds(i, n)
	}

	return nil
}

// viewCore is the part of every derived view that deals with its source.
type viewCore[E any] struct {
	listCore[E]
	source   List[E]
	listener ListenerID
}

func (v *viewCore[E]) initView(self List[E], source List[E], options []Option) error {
	cfg, err := newConfig(source.core().obs, options)
	if err != nil {
		return err
	}

	v.init(self, source.Lock(), cfg)
	v.source = source

	return nil
}

func (v *viewCore[E]) usable() error {
	if v.disposed {
		return ErrDisposed
	}

	if err := v.source.usable(); err != nil {
		return errors.Join(ErrSourceDisposed, err)
	}

	return nil
}

// writable checks that the view can write through to its source right now.
func (v *viewCore[E]) writable() error {
	if err := v.usable(); err != nil {
		return err
	}

	if v.lock.batching > 0 {
		return ErrBatchInProgress
	}

	return nil
}

// Update runs fn under the chain's write lock. Every write fn makes through a view publishes its own batch.
func (v *viewCore[E]) Update(ctx context.Context, fn func(ctx context.Context, view Reader[E]) error) error {
	return v.obs.observeWrite(ctx, v.lock, operationUpdate, noIndex, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		return 0, fn(ctx, v.reader())
	})
}

// Clear removes the view's elements from the source in one batch.
func (v *viewCore[E]) Clear(ctx context.Context) error {
	return v.obs.observeWrite(ctx, v.lock, operationClear, noIndex, func(ctx context.Context) (int, error) {
		if err := v.writable(); err != nil {
			return 0, err
		}

		n := v.self.size()
		if n == 0 {
			return 0, nil
		}

		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}

		return n, v.self.removeIndices(ctx, indices)
	})
}

// dispose detaches the view from its source. release frees the view's own state.
func (v *viewCore[E]) dispose(ctx context.Context, release func()) error {
	return v.obs.observeWrite(ctx, v.lock, operationDispose, noIndex, func(ctx context.Context) (int, error) {
		if v.disposed {
			return 0, ErrAlreadyDisposed
		}

		v.disposed = true
		v.source.RemoveListener(v.listener)
		v.pub.listeners.clear()
		if release != nil {
			release()
		}
		v.obs.logLifecycle(ctx, operationDispose)

		return 0, nil
	})
}

// sortedUnique returns the indices in ascending order without duplicates.
func sortedUnique(indices []int) []int {
	out := slices.Clone(indices)
	slices.Sort(out)

	return slices.Compact(out)
}
