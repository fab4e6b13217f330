package eventlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/stolsvik/glazedlists/eventlist/internal/indextree"
)

const selected = indextree.White

// SelectionMode controls how selection operations and source inserts affect the selection.
type SelectionMode uint8

const (
	// SelectionMultipleRangeDefensive allows any selection. Inserted elements are deselected.
	SelectionMultipleRangeDefensive SelectionMode = iota

	// SelectionMultipleRange allows any selection. Inserted elements take the flag of the element they push down.
	SelectionMultipleRange

	// SelectionSingleRange allows one contiguous range. Selecting replaces the selection.
	SelectionSingleRange

	// SelectionSingle allows at most one selected index. Selecting replaces the selection.
	SelectionSingle
)

func (m SelectionMode) String() string {
	switch m {
	case SelectionMultipleRangeDefensive:
		return "multiple_range_defensive"
	case SelectionMultipleRange:
		return "multiple_range"
	case SelectionSingleRange:
		return "single_range"
	case SelectionSingle:
		return "single"
	default:
		return fmt.Sprintf("SelectionMode(%d)", uint8(m))
	}
}

func (m SelectionMode) single() bool {
	return m == SelectionSingle || m == SelectionSingleRange
}

// SelectionTracker keeps a selected flag per source element and partitions the source into the
// Selected and Deselected views, both in source order.
type SelectionTracker[E any] struct {
	source     List[E]
	lock       *Lock
	obs        *observer
	mode       SelectionMode
	flags      *indextree.Tree[struct{}]
	listener   ListenerID
	selected   *SelectionView[E]
	deselected *SelectionView[E]
	disposed   bool
}

// NewSelectionTracker creates a tracker over source. Its mode defaults to SelectionMultipleRangeDefensive
// and is set with WithSelectionMode. The options also configure both views.
func NewSelectionTracker[E any](ctx context.Context, source List[E], options ...Option) (*SelectionTracker[E], error) {
	if source == nil {
		return nil, ErrNilSource
	}

	cfg, err := newConfig(source.core().obs, options)
	if err != nil {
		return nil, err
	}

	t := &SelectionTracker[E]{
		source: source,
		lock:   source.Lock(),
		obs:    newObserver(cfg),
		mode:   cfg.selectionMode,
		flags:  indextree.New[struct{}](),
	}
	t.selected = newSelectionView(t, selected, cfg, ".selected")
	t.deselected = newSelectionView(t, indextree.Black, cfg, ".deselected")

	err = t.obs.observeWrite(ctx, t.lock, operationNew, noIndex, func(ctx context.Context) (int, error) {
		if err := t.usable(); err != nil {
			return 0, err
		}

		for range source.size() {
			t.flags.Append(indextree.Black, struct{}{})
		}
		t.listener = source.AddListener(t.handle)

		return 0, nil
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}

// Selected returns the view of selected elements.
func (t *SelectionTracker[E]) Selected() *SelectionView[E] {
	return t.selected
}

// Deselected returns the view of deselected elements.
func (t *SelectionTracker[E]) Deselected() *SelectionView[E] {
	return t.deselected
}

func (t *SelectionTracker[E]) usable() error {
	if t.disposed {
		return ErrDisposed
	}

	if err := t.source.usable(); err != nil {
		return errors.Join(ErrSourceDisposed, err)
	}

	return nil
}

// writable checks that the flags can change right now. Inside an Update of the base list the
// flags still describe the source before the batch.
func (t *SelectionTracker[E]) writable() error {
	if err := t.usable(); err != nil {
		return err
	}

	if t.lock.batching > 0 {
		return ErrBatchInProgress
	}

	return nil
}

func (t *SelectionTracker[E]) viewOf(c indextree.Color) *SelectionView[E] {
	if c == selected {
		return t.selected
	}

	return t.deselected
}

func (t *SelectionTracker[E]) begin() {
	t.selected.pub.begin(t.selected.size())
	t.deselected.pub.begin(t.deselected.size())
}

func (t *SelectionTracker[E]) commit(ctx context.Context) int {
	return t.selected.pub.commit(ctx, t.selected.reader()) + t.deselected.pub.commit(ctx, t.deselected.reader())
}

func (t *SelectionTracker[E]) handle(ctx context.Context, event ListEvent[E]) {
	t.begin()

	if perm := event.Reorder(); perm != nil {
		t.applyReorder(perm)
	} else {
		for _, c := range event.Changes() {
			t.applyChange(c)
		}
	}

	t.commit(ctx)
}

func (t *SelectionTracker[E]) applyChange(c Change) {
	switch c.Type {
	case Insert:
		color := indextree.Black
		if t.mode == SelectionMultipleRange || t.mode == SelectionSingleRange {
			if h := t.flags.At(c.Start); h != indextree.Nil {
				color = t.flags.Color(h)
			}
		}

		for p := c.Start; p < c.End; p++ {
			h := t.flags.InsertAt(p, color, struct{}{})
			ci := t.flags.ColorIndexOf(h)
			t.viewOf(color).pub.addChange(Insert, ci, ci+1)
		}

	case Delete:
		for range c.Len() {
			h := t.flags.At(c.Start)
			ci := t.flags.ColorIndexOf(h)
			t.viewOf(t.flags.Color(h)).pub.addChange(Delete, ci, ci+1)
			t.flags.Remove(h)
		}

	case Update:
		for p := c.Start; p < c.End; p++ {
			h := t.flags.At(p)
			ci := t.flags.ColorIndexOf(h)
			t.viewOf(t.flags.Color(h)).pub.addChange(Update, ci, ci+1)
		}
	}
}

func (t *SelectionTracker[E]) applyReorder(perm []int) {
	handles := t.flags.Handles()
	oldColors := make([]indextree.Color, len(handles))
	oldRank := make([]int, len(handles))
	var counts [2]int
	for i, h := range handles {
		c := t.flags.Color(h)
		oldColors[i] = c
		oldRank[i] = counts[c]
		counts[c]++
	}

	t.flags.Clear()
	var perms [2][]int
	for _, old := range perm {
		c := oldColors[old]
		t.flags.Append(c, struct{}{})
		perms[c] = append(perms[c], oldRank[old])
	}

	t.selected.pub.addReorder(perms[selected])
	t.deselected.pub.addReorder(perms[indextree.Black])
}

// setFlag flips the flag at source index p and records the move between the views.
func (t *SelectionTracker[E]) setFlag(p int, want indextree.Color) {
	h := t.flags.At(p)
	was := t.flags.Color(h)
	if was == want {
		return
	}

	ci := t.flags.ColorIndexOf(h)
	t.viewOf(was).pub.addChange(Delete, ci, ci+1)
	t.flags.SetColor(h, want)
	ci = t.flags.ColorIndexOf(h)
	t.viewOf(want).pub.addChange(Insert, ci, ci+1)
}

func (t *SelectionTracker[E]) setRange(from, to int, want indextree.Color) {
	for p := from; p <= to; p++ {
		t.setFlag(p, want)
	}
}

func (t *SelectionTracker[E]) deselectAllExcept(from, to int) {
	for k := t.flags.Count(selected) - 1; k >= 0; k-- {
		p := t.flags.IndexOf(t.flags.AtColor(selected, k))
		if p < from || p > to {
			t.setFlag(p, indextree.Black)
		}
	}
}

// selectionRun returns the bounds of the contiguous selected run containing p.
func (t *SelectionTracker[E]) selectionRun(p int) (int, int) {
	from, to := p, p
	for from > 0 && t.flags.Color(t.flags.At(from-1)) == selected {
		from--
	}
	for to+1 < t.flags.Len() && t.flags.Color(t.flags.At(to+1)) == selected {
		to++
	}

	return from, to
}

func (t *SelectionTracker[E]) checkIndex(i int) error {
	if n := t.flags.Len(); i < 0 || i >= n {
		return indexOutOfBounds(i, n)
	}

	return nil
}

func (t *SelectionTracker[E]) checkRange(from, to int) error {
	if from > to {
		return invalidRange(from, to)
	}

	if err := t.checkIndex(from); err != nil {
		return err
	}

	return t.checkIndex(to)
}

// mutate runs fn as one selection change, published to both views.
func (t *SelectionTracker[E]) mutate(ctx context.Context, operation string, index int, fn func() error) error {
	return t.obs.observeWrite(ctx, t.lock, operation, index, func(ctx context.Context) (int, error) {
		if err := t.writable(); err != nil {
			return 0, err
		}

		t.begin()
		err := fn()

		return t.commit(ctx), err
	})
}

// Select selects the element at index i. In the single modes it replaces the selection.
func (t *SelectionTracker[E]) Select(ctx context.Context, i int) error {
	return t.SelectRange(ctx, i, i)
}

// SelectRange selects the elements at [from, to], inclusive.
// SelectionSingle keeps only to selected, SelectionSingleRange replaces the selection by the range.
func (t *SelectionTracker[E]) SelectRange(ctx context.Context, from, to int) error {
	return t.mutate(ctx, operationSelect, from, func() error {
		if err := t.checkRange(from, to); err != nil {
			return err
		}

		t.selectRange(from, to)

		return nil
	})
}

func (t *SelectionTracker[E]) selectRange(from, to int) {
	switch t.mode {
	case SelectionSingle:
		t.deselectAllExcept(to, to)
		t.setFlag(to, selected)
	case SelectionSingleRange:
		t.deselectAllExcept(from, to)
		t.setRange(from, to, selected)
	default:
		t.setRange(from, to, selected)
	}
}

// SelectIndices selects the elements at the given indexes. In the single modes only the last one stays selected.
func (t *SelectionTracker[E]) SelectIndices(ctx context.Context, indices ...int) error {
	return t.mutate(ctx, operationSelect, noIndex, func() error {
		for _, i := range indices {
			if err := t.checkIndex(i); err != nil {
				return err
			}
		}

		for _, i := range indices {
			t.selectRange(i, i)
		}

		return nil
	})
}

// Deselect deselects the element at index i.
func (t *SelectionTracker[E]) Deselect(ctx context.Context, i int) error {
	return t.DeselectRange(ctx, i, i)
}

// DeselectRange deselects the elements at [from, to], inclusive. In SelectionSingleRange a deselect
// that would split the selected run also deselects the rest of the run.
func (t *SelectionTracker[E]) DeselectRange(ctx context.Context, from, to int) error {
	return t.mutate(ctx, operationDeselect, from, func() error {
		if err := t.checkRange(from, to); err != nil {
			return err
		}

		t.deselectRange(from, to)

		return nil
	})
}

func (t *SelectionTracker[E]) deselectRange(from, to int) {
	if t.mode == SelectionSingleRange && from > 0 && t.flags.Color(t.flags.At(from-1)) == selected {
		_, runEnd := t.selectionRun(from - 1)
		to = max(to, runEnd)
	}

	t.setRange(from, to, indextree.Black)
}

// DeselectIndices deselects the elements at the given indexes.
func (t *SelectionTracker[E]) DeselectIndices(ctx context.Context, indices ...int) error {
	return t.mutate(ctx, operationDeselect, noIndex, func() error {
		for _, i := range indices {
			if err := t.checkIndex(i); err != nil {
				return err
			}
		}

		for _, i := range indices {
			t.deselectRange(i, i)
		}

		return nil
	})
}

// SetSelection makes the element at index i the only selected one.
func (t *SelectionTracker[E]) SetSelection(ctx context.Context, i int) error {
	return t.SetSelectionRange(ctx, i, i)
}

// SetSelectionRange replaces the selection by [from, to], inclusive.
func (t *SelectionTracker[E]) SetSelectionRange(ctx context.Context, from, to int) error {
	return t.mutate(ctx, operationSetSelection, from, func() error {
		if err := t.checkRange(from, to); err != nil {
			return err
		}

		if t.mode == SelectionSingle {
			from = to
		}
		t.deselectAllExcept(from, to)
		t.setRange(from, to, selected)

		return nil
	})
}

// SetSelectionIndices replaces the selection by the given indexes.
func (t *SelectionTracker[E]) SetSelectionIndices(ctx context.Context, indices ...int) error {
	return t.mutate(ctx, operationSetSelection, noIndex, func() error {
		for _, i := range indices {
			if err := t.checkIndex(i); err != nil {
				return err
			}
		}

		if t.mode.single() && len(indices) > 0 {
			indices = indices[len(indices)-1:]
		}

		want := make(map[int]bool, len(indices))
		for _, i := range indices {
			want[i] = true
		}

		for p := t.flags.Len() - 1; p >= 0; p-- {
			if !want[p] {
				t.setFlag(p, indextree.Black)
			}
		}
		for _, i := range indices {
			t.setFlag(i, selected)
		}

		return nil
	})
}

// SelectAll selects every element. It fails with ErrSelectionModeConflict in SelectionSingle
// when there is more than one element.
func (t *SelectionTracker[E]) SelectAll(ctx context.Context) error {
	return t.mutate(ctx, operationSelectAll, noIndex, func() error {
		n := t.flags.Len()
		if t.mode == SelectionSingle && n > 1 {
			return ErrSelectionModeConflict
		}

		if n > 0 {
			t.setRange(0, n-1, selected)
		}

		return nil
	})
}

// DeselectAll deselects every element.
func (t *SelectionTracker[E]) DeselectAll(ctx context.Context) error {
	return t.mutate(ctx, operationDeselectAll, noIndex, func() error {
		t.deselectAllExcept(0, -1)
		return nil
	})
}

// InvertSelection flips every flag. In the single modes it fails with ErrSelectionModeConflict
// when the result would not be a valid selection for the mode.
func (t *SelectionTracker[E]) InvertSelection(ctx context.Context) error {
	return t.mutate(ctx, operationInvert, noIndex, func() error {
		n := t.flags.Len()
		if t.mode.single() && !t.invertFits(n) {
			return ErrSelectionModeConflict
		}

		for p := range n {
			if t.flags.Color(t.flags.At(p)) == selected {
				t.setFlag(p, indextree.Black)
			} else {
				t.setFlag(p, selected)
			}
		}

		return nil
	})
}

// invertFits reports whether the inverted selection satisfies a single mode.
func (t *SelectionTracker[E]) invertFits(n int) bool {
	inverted := n - t.flags.Count(selected)
	if inverted <= 1 {
		return true
	}

	if t.mode == SelectionSingle {
		return false
	}

	// the deselected elements must form one run
	first := t.flags.IndexOf(t.flags.AtColor(indextree.Black, 0))
	last := t.flags.IndexOf(t.flags.AtColor(indextree.Black, inverted-1))

	return last-first+1 == inverted
}

// IsSelected reports whether the element at index i is selected.
func (t *SelectionTracker[E]) IsSelected(i int) (bool, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if err := t.usable(); err != nil {
		return false, t.obs.checkRead(operationIsSelected, err)
	}

	if err := t.checkIndex(i); err != nil {
		return false, t.obs.checkRead(operationIsSelected, err)
	}

	return t.flags.Color(t.flags.At(i)) == selected, nil
}

// SelectedIndices returns the selected source indexes in ascending order.
func (t *SelectionTracker[E]) SelectedIndices() []int {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if t.usable() != nil {
		return nil
	}

	out := make([]int, t.flags.Count(selected))
	for k := range out {
		out[k] = t.flags.IndexOf(t.flags.AtColor(selected, k))
	}

	return out
}

// SelectionMode returns the current mode.
func (t *SelectionTracker[E]) SelectionMode() SelectionMode {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.mode
}

// SetSelectionMode changes the mode. Switching into a single mode clears the selection.
func (t *SelectionTracker[E]) SetSelectionMode(ctx context.Context, mode SelectionMode) error {
	return t.mutate(ctx, operationSetMode, noIndex, func() error {
		if mode.single() && mode != t.mode {
			t.deselectAllExcept(0, -1)
		}
		t.mode = mode

		return nil
	})
}

// Dispose detaches the tracker and both views from the source.
func (t *SelectionTracker[E]) Dispose(ctx context.Context) error {
	return t.obs.observeWrite(ctx, t.lock, operationDispose, noIndex, func(ctx context.Context) (int, error) {
		if t.disposed {
			return 0, ErrAlreadyDisposed
		}

		t.disposed = true
		t.source.RemoveListener(t.listener)
		t.selected.pub.listeners.clear()
		t.deselected.pub.listeners.clear()
		t.flags.Clear()
		t.obs.logLifecycle(ctx, operationDispose)

		return 0, nil
	})
}
