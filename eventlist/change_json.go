package eventlist

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var changeJSON = jsoniter.ConfigFastest

type listEventJSON struct {
	Changes []Change `json:"changes"`
	Reorder []int    `json:"reorder,omitempty"`
}

// MarshalChanges encodes a batch of change blocks for an external mirror.
func MarshalChanges(changes []Change) ([]byte, error) {
	return marshalBatch(listEventJSON{Changes: changes})
}

// MarshalJSON encodes the batch's change blocks and reorder permutation. Elements are not included.
func (e ListEvent[E]) MarshalJSON() ([]byte, error) {
	return marshalBatch(listEventJSON{Changes: e.changes, Reorder: e.reorder})
}

func marshalBatch(batch listEventJSON) ([]byte, error) {
	for _, c := range batch.Changes {
		if _, err := c.Type.MarshalText(); err != nil {
			return nil, err
		}
	}

	data, err := changeJSON.Marshal(batch)
	if err != nil {
		return nil, errors.Join(ErrInvalidChangeJSON, err)
	}

	return data, nil
}

// UnmarshalChanges decodes a batch encoded with MarshalChanges or ListEvent.MarshalJSON.
// The blocks must be non-empty and ordered by their start index. A reorder must be a permutation
// and may only come with update blocks inside it.
func UnmarshalChanges(data []byte) ([]Change, []int, error) {
	if !changeJSON.Valid(data) {
		return nil, nil, ErrInvalidChangeJSON
	}

	var decoded listEventJSON
	if err := changeJSON.Unmarshal(data, &decoded); err != nil {
		return nil, nil, errors.Join(ErrInvalidChangeJSON, err)
	}

	prevStart := -1
	for _, c := range decoded.Changes {
		if c.Start < 0 || c.End <= c.Start || c.Start < prevStart {
			return nil, nil, errors.Join(ErrInvalidChangeJSON, invalidRange(c.Start, c.End))
		}
		prevStart = c.Start
	}

	if decoded.Reorder != nil {
		if err := checkPermutation(decoded.Reorder); err != nil {
			return nil, nil, errors.Join(ErrInvalidChangeJSON, err)
		}

		for _, c := range decoded.Changes {
			if c.Type != Update || c.End > len(decoded.Reorder) {
				return nil, nil, errors.Join(ErrInvalidChangeJSON, fmt.Errorf("%s block in a reorder of %d", c, len(decoded.Reorder)))
			}
		}
	}

	return decoded.Changes, decoded.Reorder, nil
}

func checkPermutation(perm []int) error {
	seen := make([]bool, len(perm))
	for _, old := range perm {
		if old < 0 || old >= len(perm) || seen[old] {
			return fmt.Errorf("reorder is not a permutation of [0, %d)", len(perm))
		}
		seen[old] = true
	}

	return nil
}

// ApplyChanges replays a batch onto a mirror slice. inserted supplies the new element for an
// inserted or updated index in the final state of the batch. The batch is checked against the
// mirror's length before anything is applied; a batch that does not fit returns ErrInvalidChangeJSON
// and leaves the mirror untouched.
func ApplyChanges[E any](mirror []E, changes []Change, reorder []int, inserted func(i int) E) ([]E, error) {
	if err := checkFits(len(mirror), changes, reorder); err != nil {
		return mirror, errors.Join(ErrInvalidChangeJSON, err)
	}

	if reorder != nil {
		permuted := make([]E, len(reorder))
		for newIndex, oldIndex := range reorder {
			permuted[newIndex] = mirror[oldIndex]
		}

		return permuted, nil
	}

	for _, c := range changes {
		switch c.Type {
		case Insert:
			fresh := make([]E, c.Len())
			for i := range fresh {
				fresh[i] = inserted(c.Start + i)
			}
			mirror = append(mirror[:c.Start], append(fresh, mirror[c.Start:]...)...)
		case Delete:
			mirror = append(mirror[:c.Start], mirror[c.End:]...)
		case Update:
			for i := c.Start; i < c.End; i++ {
				mirror[i] = inserted(i)
			}
		}
	}

	return mirror, nil
}

func checkFits(size int, changes []Change, reorder []int) error {
	if reorder != nil {
		if len(reorder) != size {
			return fmt.Errorf("reorder of %d elements for a list of %d", len(reorder), size)
		}

		return checkPermutation(reorder)
	}

	for _, c := range changes {
		if c.Start < 0 || c.End <= c.Start {
			return invalidRange(c.Start, c.End)
		}

		switch c.Type {
		case Insert:
			if c.Start > size {
				return indexOutOfBounds(c.Start, size)
			}
			size += c.Len()
		case Delete, Update:
			if c.End > size {
				return indexOutOfBounds(c.End-1, size)
			}
			if c.Type == Delete {
				size -= c.Len()
			}
		default:
			return fmt.Errorf("unknown change type %d", uint8(c.Type))
		}
	}

	return nil
}
