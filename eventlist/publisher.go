package eventlist

import (
	"container/list"
	"context"
	"sync"

	"github.com/google/uuid"
)

type listenerEntry[E any] struct {
	id ListenerID
	fn Listener[E]
}

// listenerRegistry keeps listeners in registration order with O(1) add and remove.
type listenerRegistry[E any] struct {
	mu      sync.Mutex
	entries *list.List
	index   map[ListenerID]*list.Element
}

func (r *listenerRegistry[E]) add(fn Listener[E]) (ListenerID, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = list.New()
		r.index = make(map[ListenerID]*list.Element)
	}

	id := uuid.New()
	r.index[id] = r.entries.PushBack(listenerEntry[E]{id: id, fn: fn})

	return id, r.entries.Len()
}

func (r *listenerRegistry[E]) remove(id ListenerID) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem, ok := r.index[id]
	if !ok {
		return false, r.len()
	}

	r.entries.Remove(elem)
	delete(r.index, id)

	return true, r.len()
}

func (r *listenerRegistry[E]) snapshot() []Listener[E] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		return nil
	}

	out := make([]Listener[E], 0, r.entries.Len())
	for elem := r.entries.Front(); elem != nil; elem = elem.Next() {
		out = append(out, elem.Value.(listenerEntry[E]).fn) //nolint:forcetypeassert // only entries are stored
	}

	return out
}

func (r *listenerRegistry[E]) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = nil
	r.index = nil
}

func (r *listenerRegistry[E]) len() int {
	if r.entries == nil {
		return 0
	}

	return r.entries.Len()
}

// publisher owns the transaction and listeners of one list.
type publisher[E any] struct {
	lock      *Lock
	obs       *observer
	asm       assembler
	listeners listenerRegistry[E]
}

func (p *publisher[E]) begin(size int) {
	p.asm.begin(size)
}

func (p *publisher[E]) addChange(t ChangeType, start, end int) {
	p.asm.addChange(t, start, end)
}

func (p *publisher[E]) addReorder(perm []int) {
	p.asm.addReorder(perm)
}

// commit closes the transaction and, for the outermost commit, notifies every listener with the batch.
// It returns the number of published blocks.
func (p *publisher[E]) commit(ctx context.Context, reader Reader[E]) int {
	changes, reorder, ok := p.asm.commit()
	if !ok {
		return 0
	}

	p.obs.recordPublished(ctx, len(changes))

	event := ListEvent[E]{list: reader, changes: changes, reorder: reorder}

	endDispatch := p.lock.beginDispatch()
	defer endDispatch()

	for _, fn := range p.listeners.snapshot() {
		fn(ctx, event)
	}

	return len(changes)
}
