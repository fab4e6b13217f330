package eventlist

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfBounds is returned when an index does not address an element of the list.
	ErrIndexOutOfBounds = errors.New("index out of bounds")

	// ErrInvalidRange is returned when a range has its lower bound above its upper bound or a negative bound.
	ErrInvalidRange = errors.New("invalid range")

	// ErrDisposed is returned by every operation on a list that has been disposed.
	ErrDisposed = errors.New("list is disposed")

	// ErrSourceDisposed is returned by operations on a view whose source has been disposed.
	ErrSourceDisposed = errors.New("source list is disposed")

	// ErrAlreadyDisposed is returned when Dispose is called a second time.
	ErrAlreadyDisposed = errors.New("list is already disposed")

	// ErrNilSource is returned when a view is constructed without a source.
	ErrNilSource = errors.New("source list must not be nil")

	// ErrUnsupportedOperation is returned for writes a view cannot express, e.g. positional inserts into a sorted view.
	ErrUnsupportedOperation = errors.New("operation is not supported by this list")

	// ErrSelectionModeConflict is returned when a selection operation would violate the current selection mode.
	ErrSelectionModeConflict = errors.New("operation conflicts with the selection mode")

	// ErrEmptyListName is returned when an empty name is supplied with WithName.
	ErrEmptyListName = errors.New("list name must not be empty")

	// ErrBatchInProgress is returned when a view is written to while its base list is inside Update.
	ErrBatchInProgress = errors.New("views cannot be written to while their base list is batching changes")

	// ErrInvalidChangeJSON is returned when a change stream cannot be decoded.
	ErrInvalidChangeJSON = errors.New("change json is not valid")

	// ErrNoTransaction is raised (as a panic) when a change is recorded or committed without an open transaction.
	ErrNoTransaction = errors.New("change recorded outside of a transaction")

	// ErrReentrantWrite is raised (as a panic) when a listener writes to the chain that is notifying it.
	ErrReentrantWrite = errors.New("write to a list chain from within one of its listeners")
)

func indexOutOfBounds(index, size int) error {
	return errors.Join(ErrIndexOutOfBounds, fmt.Errorf("index %d, size %d", index, size))
}

func invalidRange(from, to int) error {
	return errors.Join(ErrInvalidRange, fmt.Errorf("range [%d, %d]", from, to))
}

// isPrecondition reports whether err is a caller-side precondition violation.
func isPrecondition(err error) bool {
	for _, target := range []error{
		ErrIndexOutOfBounds,
		ErrInvalidRange,
		ErrDisposed,
		ErrSourceDisposed,
		ErrAlreadyDisposed,
		ErrUnsupportedOperation,
		ErrSelectionModeConflict,
		ErrBatchInProgress,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// errorType returns a short label for err, used in logs and metrics.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrIndexOutOfBounds):
		return "index_out_of_bounds"
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ErrSourceDisposed):
		return "source_disposed"
	case errors.Is(err, ErrAlreadyDisposed):
		return "already_disposed"
	case errors.Is(err, ErrDisposed):
		return "disposed"
	case errors.Is(err, ErrUnsupportedOperation):
		return "unsupported_operation"
	case errors.Is(err, ErrSelectionModeConflict):
		return "selection_mode_conflict"
	case errors.Is(err, ErrBatchInProgress):
		return "batch_in_progress"
	default:
		return "other"
	}
}
