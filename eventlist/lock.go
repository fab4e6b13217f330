package eventlist

import (
	"context"
	"sync"
	"sync/atomic"
)

// Lock is the read/write lock shared by every list of one chain: a base list and all views stacked on it.
//
// Writers acquire it through their context.Context. The context returned by an acquisition carries the
// hold, so a nested write on the same chain with that context (a view writing through to its source, the
// callback of Update) re-enters instead of deadlocking. Readers take the read lock.
type Lock struct {
	rw          sync.RWMutex
	dispatching atomic.Int32
	batching    int
}

type lockHoldKey struct{}

// NewLock creates a Lock for a new chain.
func NewLock() *Lock {
	return &Lock{}
}

// RLock acquires the read lock.
func (l *Lock) RLock() {
	l.rw.RLock()
}

// RUnlock releases the read lock.
func (l *Lock) RUnlock() {
	l.rw.RUnlock()
}

// HeldBy reports whether ctx carries a write hold on l.
func (l *Lock) HeldBy(ctx context.Context) bool {
	held, ok := ctx.Value(lockHoldKey{}).(*Lock)
	return ok && held == l
}

// acquireWrite takes the write lock unless ctx already holds it. The returned release must be called exactly once.
// Writing with a held context while listeners are being notified panics with ErrReentrantWrite.
// A context without the hold blocks on the lock, even when the caller is a listener of this chain.
func (l *Lock) acquireWrite(ctx context.Context) (context.Context, func()) {
	if l.HeldBy(ctx) {
		if l.dispatching.Load() > 0 {
			panic(ErrReentrantWrite)
		}

		return ctx, func() {}
	}

	l.rw.Lock()

	return context.WithValue(ctx, lockHoldKey{}, l), l.rw.Unlock
}

// beginDispatch marks the chain as notifying listeners. The returned func ends it.
func (l *Lock) beginDispatch() func() {
	l.dispatching.Add(1)
	return func() { l.dispatching.Add(-1) }
}
