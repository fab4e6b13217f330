package eventlist

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// ChangeType is the kind of structural change a Change block describes.
type ChangeType uint8

const (
	// Insert means elements were added at [Start, End).
	Insert ChangeType = iota

	// Update means the elements at [Start, End) were replaced.
	Update

	// Delete means the elements at [Start, End) were removed.
	Delete
)

const (
	changeTypeInsert = "insert"
	changeTypeUpdate = "update"
	changeTypeDelete = "delete"
)

func (t ChangeType) String() string {
	switch t {
	case Insert:
		return changeTypeInsert
	case Update:
		return changeTypeUpdate
	case Delete:
		return changeTypeDelete
	default:
		return fmt.Sprintf("ChangeType(%d)", uint8(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t ChangeType) MarshalText() ([]byte, error) {
	switch t {
	case Insert, Update, Delete:
		return []byte(t.String()), nil
	default:
		return nil, fmt.Errorf("%w: unknown change type %d", ErrInvalidChangeJSON, uint8(t))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ChangeType) UnmarshalText(text []byte) error {
	switch string(text) {
	case changeTypeInsert:
		*t = Insert
	case changeTypeUpdate:
		*t = Update
	case changeTypeDelete:
		*t = Delete
	default:
		return fmt.Errorf("%w: unknown change type %q", ErrInvalidChangeJSON, text)
	}

	return nil
}

// Change is one block of a published batch: a contiguous index range [Start, End) of one ChangeType.
//
// Blocks of a batch are sequential. Each block's indexes are interpreted in the list state after every
// earlier block of the same batch has been applied, so Insert and Update ranges are valid in the final
// state and a Delete range names the removed elements' positions immediately before their removal.
type Change struct {
	Type  ChangeType `json:"type"`
	Start int        `json:"start"`
	End   int        `json:"end"`
}

// Len returns the number of elements the block covers.
func (c Change) Len() int {
	return c.End - c.Start
}

func (c Change) String() string {
	return fmt.Sprintf("%s[%d,%d)", c.Type, c.Start, c.End)
}

// Reader is the read side of a list.
type Reader[E any] interface {
	// Get returns the element at index i.
	Get(i int) (E, error)

	// Size returns the number of elements.
	Size() int

	// Elements returns a snapshot of all elements in order.
	Elements() []E
}

// ListenerID identifies a registered Listener.
type ListenerID = uuid.UUID

// Listener receives every batch a list publishes, after the batch has been fully applied.
//
// The callback runs while the chain's write lock is held. It must read the publishing list through
// event.List() and must not write to any list of the same chain. A write with the callback's ctx
// panics with ErrReentrantWrite. A write with a context that does not carry the hold, such as
// context.Background(), waits for the write lock and deadlocks.
type Listener[E any] func(ctx context.Context, event ListEvent[E])

// ListEvent is one published batch.
type ListEvent[E any] struct {
	list    Reader[E]
	changes []Change
	reorder []int
}

// List returns a read view of the publishing list. It is only valid for the duration of the callback.
func (e ListEvent[E]) List() Reader[E] {
	return e.list
}

// Changes returns the change blocks of the batch.
func (e ListEvent[E]) Changes() []Change {
	return slices.Clone(e.changes)
}

// Reorder returns the permutation of a pure reordering batch, with reorder[newIndex] == oldIndex,
// or nil when the batch is not a reorder. A reordering batch also lists an Update block for every
// position whose occupant changed.
func (e ListEvent[E]) Reorder() []int {
	return slices.Clone(e.reorder)
}

// IsReorder reports whether the batch only rearranged elements.
func (e ListEvent[E]) IsReorder() bool {
	return e.reorder != nil
}

// lockedReader reads a list without taking the chain lock. Only valid while the lock is held.
type lockedReader[E any] struct {
	l List[E]
}

func (r lockedReader[E]) Get(i int) (E, error) {
	if i < 0 || i >= r.l.size() {
		var zero E
		return zero, indexOutOfBounds(i, r.l.size())
	}

	return r.l.get(i), nil
}

func (r lockedReader[E]) Size() int {
	return r.l.size()
}

func (r lockedReader[E]) Elements() []E {
	return elementsOf(r.l)
}

func elementsOf[E any](l List[E]) []E {
	n := l.size()
	out := make([]E, n)
	for i := range n {
		out[i] = l.get(i)
	}

	return out
}
