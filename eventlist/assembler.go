package eventlist

import (
	"slices"
)

type segmentKind uint8

const (
	segKeep segmentKind = iota
	segInsert
	segUpdate
	segDelete
)

// segment is a run of n positions sharing one fate in the transaction.
// Delete runs have no width in the current index space.
type segment struct {
	kind segmentKind
	n    int
}

func (s segment) width() int {
	if s.kind == segDelete {
		return 0
	}

	return s.n
}

// assembler collects the changes of one transaction and resolves them into the minimal ordered batch.
//
// It keeps a run-length description of the transaction: starting from one keep run covering the list
// as it was at begin, each recorded change splits and relabels runs. Inserts that are later deleted
// vanish, updates that are later deleted become deletes, updates of inserted elements stay inserts.
type assembler struct {
	depth    int
	segments []segment
	reorder  []int
}

// begin opens a transaction over a list of the given size. Nested calls share the outermost transaction.
func (a *assembler) begin(size int) {
	if a.depth == 0 {
		a.segments = a.segments[:0]
		if size > 0 {
			a.segments = append(a.segments, segment{kind: segKeep, n: size})
		}
		a.reorder = nil
	}

	a.depth++
}

// addChange records a change against the current index space.
func (a *assembler) addChange(t ChangeType, start, end int) {
	if a.depth == 0 {
		panic(ErrNoTransaction)
	}

	if end <= start {
		return
	}

	a.flattenReorder()

	switch t {
	case Insert:
		a.insert(start, end-start)
	case Delete:
		a.relabel(start, end, func(k segmentKind) (segmentKind, bool) {
			if k == segInsert {
				return k, false
			}

			return segDelete, true
		})
	case Update:
		a.relabel(start, end, func(k segmentKind) (segmentKind, bool) {
			if k == segInsert {
				return segInsert, true
			}

			return segUpdate, true
		})
	}
}

// addReorder records a permutation with perm[newIndex] == oldIndex over the current index space.
func (a *assembler) addReorder(perm []int) {
	if a.depth == 0 {
		panic(ErrNoTransaction)
	}

	if !a.untouched() {
		a.updateMoved(perm)
		return
	}

	if a.reorder == nil {
		a.reorder = slices.Clone(perm)
		return
	}

	composed := make([]int, len(perm))
	for newIndex, mid := range perm {
		composed[newIndex] = a.reorder[mid]
	}
	a.reorder = composed
}

// commit closes a transaction. Only the outermost commit returns the resolved batch; ok is false
// when there is nothing to publish.
func (a *assembler) commit() (changes []Change, reorder []int, ok bool) {
	if a.depth == 0 {
		panic(ErrNoTransaction)
	}

	a.depth--
	if a.depth > 0 {
		return nil, nil, false
	}

	if a.reorder != nil {
		changes = movedUpdates(a.reorder)
		if len(changes) == 0 {
			return nil, nil, false
		}

		return changes, a.reorder, true
	}

	changes = a.blocks()

	return changes, nil, len(changes) > 0
}

// inTransaction reports whether a transaction is open.
func (a *assembler) inTransaction() bool {
	return a.depth > 0
}

func (a *assembler) untouched() bool {
	for _, s := range a.segments {
		if s.kind != segKeep {
			return false
		}
	}

	return true
}

// flattenReorder turns a pending permutation into updates once other changes join the transaction.
func (a *assembler) flattenReorder() {
	if a.reorder == nil {
		return
	}

	perm := a.reorder
	a.reorder = nil
	a.updateMoved(perm)
}

func (a *assembler) updateMoved(perm []int) {
	for _, c := range movedUpdates(perm) {
		a.addChange(Update, c.Start, c.End)
	}
}

// movedUpdates returns Update blocks over every position whose occupant a permutation changed.
func movedUpdates(perm []int) []Change {
	var changes []Change
	for i := 0; i < len(perm); i++ {
		if perm[i] == i {
			continue
		}

		start := i
		for i+1 < len(perm) && perm[i+1] != i+1 {
			i++
		}
		changes = append(changes, Change{Type: Update, Start: start, End: i + 1})
	}

	return changes
}

func (a *assembler) insert(at, n int) {
	out := make([]segment, 0, len(a.segments)+2)
	pos := 0
	done := false

	for _, s := range a.segments {
		w := s.width()
		if !done && at >= pos && at < pos+w && at > pos {
			left := at - pos
			out = append(out, segment{kind: s.kind, n: left}, segment{kind: segInsert, n: n}, segment{kind: s.kind, n: s.n - left})
			done = true
			pos += w

			continue
		}

		if !done && at == pos {
			out = append(out, segment{kind: segInsert, n: n})
			done = true
		}

		out = append(out, s)
		pos += w
	}

	if !done {
		out = append(out, segment{kind: segInsert, n: n})
	}

	a.segments = normalize(out)
}

// relabel applies fn to every position in [start, end). fn returns the new kind, or false to drop the position.
func (a *assembler) relabel(start, end int, fn func(segmentKind) (segmentKind, bool)) {
	out := make([]segment, 0, len(a.segments)+2)
	pos := 0

	for _, s := range a.segments {
		w := s.width()
		lo, hi := max(pos, start), min(pos+w, end)
		if w == 0 || lo >= hi {
			out = append(out, s)
			pos += w

			continue
		}

		if lo > pos {
			out = append(out, segment{kind: s.kind, n: lo - pos})
		}
		if kind, keep := fn(s.kind); keep {
			out = append(out, segment{kind: kind, n: hi - lo})
		}
		if pos+w > hi {
			out = append(out, segment{kind: s.kind, n: pos + w - hi})
		}

		pos += w
	}

	a.segments = normalize(out)
}

// normalize drops empty runs, merges neighbours of one kind, and within every gap between
// surviving positions places deletes before inserts.
func normalize(in []segment) []segment {
	out := in[:0:0]
	for i := 0; i < len(in); {
		s := in[i]
		if s.kind != segInsert && s.kind != segDelete {
			if s.n > 0 {
				out = appendMerged(out, s)
			}
			i++

			continue
		}

		deleted, inserted := 0, 0
		for ; i < len(in) && (in[i].kind == segInsert || in[i].kind == segDelete); i++ {
			if in[i].kind == segDelete {
				deleted += in[i].n
			} else {
				inserted += in[i].n
			}
		}
		if deleted > 0 {
			out = appendMerged(out, segment{kind: segDelete, n: deleted})
		}
		if inserted > 0 {
			out = appendMerged(out, segment{kind: segInsert, n: inserted})
		}
	}

	return out
}

func appendMerged(out []segment, s segment) []segment {
	if n := len(out); n > 0 && out[n-1].kind == s.kind {
		out[n-1].n += s.n
		return out
	}

	return append(out, s)
}

// blocks walks the runs with a cursor in the published index space.
func (a *assembler) blocks() []Change {
	var changes []Change
	pos := 0

	for _, s := range a.segments {
		switch s.kind {
		case segKeep:
			pos += s.n
		case segInsert:
			changes = append(changes, Change{Type: Insert, Start: pos, End: pos + s.n})
			pos += s.n
		case segUpdate:
			changes = append(changes, Change{Type: Update, Start: pos, End: pos + s.n})
			pos += s.n
		case segDelete:
			changes = append(changes, Change{Type: Delete, Start: pos, End: pos + s.n})
		}
	}

	return changes
}
