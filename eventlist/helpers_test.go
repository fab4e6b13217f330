package eventlist_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stolsvik/glazedlists/eventlist"
)

func givenList[E any](t *testing.T, elements ...E) *eventlist.BasicList[E] {
	t.Helper()

	l, err := eventlist.NewFrom(context.Background(), elements, eventlist.WithName(t.Name()))
	require.NoError(t, err, "error in arranging test data")

	return l
}

func intRange(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}

	return out
}

func indexOf[E comparable](l eventlist.Reader[E], e E) int {
	for i, x := range l.Elements() {
		if x == e {
			return i
		}
	}

	return -1
}

func removeElement[E comparable](t *testing.T, l eventlist.List[E], e E) {
	t.Helper()

	i := indexOf[E](l, e)
	require.GreaterOrEqual(t, i, 0, "element %v not found", e)

	_, err := l.Remove(context.Background(), i)
	require.NoError(t, err)
}

func change(kind eventlist.ChangeType, start, end int) eventlist.Change {
	return eventlist.Change{Type: kind, Start: start, End: end}
}
