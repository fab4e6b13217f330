package eventlist_test

import (
	"cmp"
	"context"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolsvik/glazedlists/eventlist"
	"github.com/stolsvik/glazedlists/testutil/helper"
)

// chain is a base list with every kind of view stacked on it.
type chain struct {
	base      *eventlist.BasicList[int]
	filtered  *eventlist.FilteredView[int]
	sorted    *eventlist.SortedView[int]
	window    *eventlist.WindowedView[int]
	selection *eventlist.SelectionTracker[int]
	mirrors   []*helper.ConsistencyListener[int]

	threshold  int
	descending bool
}

func givenChain(t *testing.T, rng *rand.Rand) *chain {
	t.Helper()
	ctx := context.Background()

	values := make([]int, 30)
	for i := range values {
		values[i] = rng.IntN(50)
	}

	c := &chain{base: givenList(t, values...), threshold: 10}

	var err error
	c.filtered, err = eventlist.NewFilteredView(ctx, c.base, c.predicate())
	require.NoError(t, err)
	c.sorted, err = eventlist.NewSortedView(ctx, c.filtered, c.comparator())
	require.NoError(t, err)
	c.window, err = eventlist.NewWindowedView(ctx, c.sorted, 3, 12)
	require.NoError(t, err)
	c.selection, err = eventlist.NewSelectionTracker(ctx, c.sorted, eventlist.WithSelectionMode(eventlist.SelectionMultipleRange))
	require.NoError(t, err)

	for _, l := range []eventlist.List[int]{
		c.base, c.filtered, c.sorted, c.window, c.selection.Selected(), c.selection.Deselected(),
	} {
		c.mirrors = append(c.mirrors, helper.NewConsistencyListener[int](t, l))
	}

	return c
}

func (c *chain) predicate() eventlist.Predicate[int] {
	threshold := c.threshold
	return func(v int) bool { return v >= threshold }
}

func (c *chain) comparator() eventlist.Comparator[int] {
	if c.descending {
		return func(a, b int) int { return cmp.Compare(b, a) }
	}

	return cmp.Compare[int]
}

func (c *chain) step(t *testing.T, rng *rand.Rand) {
	t.Helper()
	ctx := context.Background()

	n := c.base.Size()
	switch op := rng.IntN(14); {
	case op < 3 || n == 0:
		require.NoError(t, c.base.Add(ctx, rng.IntN(n+1), rng.IntN(50)))
	case op < 5:
		_, err := c.base.Remove(ctx, rng.IntN(n))
		require.NoError(t, err)
	case op < 7:
		_, err := c.base.Set(ctx, rng.IntN(n), rng.IntN(50))
		require.NoError(t, err)
	case op == 7:
		err := c.base.Update(ctx, func(ctx context.Context, view eventlist.Reader[int]) error {
			for range 1 + rng.IntN(6) {
				size := view.Size()
				switch {
				case size == 0 || rng.IntN(3) == 0:
					if err := c.base.Add(ctx, rng.IntN(size+1), rng.IntN(50)); err != nil {
						return err
					}
				case rng.IntN(2) == 0:
					if _, err := c.base.Remove(ctx, rng.IntN(size)); err != nil {
						return err
					}
				default:
					if _, err := c.base.Set(ctx, rng.IntN(size), rng.IntN(50)); err != nil {
						return err
					}
				}
			}

			return nil
		})
		require.NoError(t, err)
	case op == 8:
		c.threshold = rng.IntN(30)
		require.NoError(t, c.filtered.SetPredicate(ctx, c.predicate()))
	case op == 9:
		c.descending = !c.descending
		require.NoError(t, c.sorted.SetComparator(ctx, c.comparator()))
	case op == 10:
		if size := c.sorted.Size(); size > 0 {
			from := rng.IntN(size)
			require.NoError(t, c.selection.SelectRange(ctx, from, from+rng.IntN(size-from)))
		}
	case op == 11:
		if size := c.sorted.Size(); size > 0 {
			_, err := c.sorted.Remove(ctx, rng.IntN(size))
			require.NoError(t, err)
		}
	case op == 12:
		if size := c.filtered.Size(); size > 0 {
			_, err := c.filtered.Set(ctx, rng.IntN(size), rng.IntN(50))
			require.NoError(t, err)
		}
	default:
		size := c.sorted.Size()
		from := rng.IntN(size + 1)
		require.NoError(t, c.window.SetRange(ctx, from, from+rng.IntN(8)))
	}
}

func (c *chain) assertConsistent(t *testing.T) {
	t.Helper()

	for _, mirror := range c.mirrors {
		mirror.AssertConsistent(t)
	}

	var filtered []int
	for _, v := range c.base.Elements() {
		if v >= c.threshold {
			filtered = append(filtered, v)
		}
	}
	assert.Equal(t, filtered, nilIfEmpty(c.filtered.Elements()))

	sorted := slices.Clone(filtered)
	slices.SortStableFunc(sorted, c.comparator())
	assert.Equal(t, sorted, nilIfEmpty(c.sorted.Elements()))

	from, to := c.window.Range()
	require.LessOrEqual(t, to, len(sorted))
	assert.Equal(t, nilIfEmpty(sorted[from:to]), nilIfEmpty(c.window.Elements()))

	var selected []int
	for _, i := range c.selection.SelectedIndices() {
		selected = append(selected, sorted[i])
	}
	assert.Equal(t, selected, nilIfEmpty(c.selection.Selected().Elements()))
	assert.Equal(t, len(sorted)-len(selected), c.selection.Deselected().Size())
}

func nilIfEmpty(s []int) []int {
	if len(s) == 0 {
		return nil
	}

	return s
}

func Test_Chain_RandomWrites_KeepEveryViewConsistent(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3, 4, 5} {
		rng := rand.New(rand.NewPCG(seed, 42))
		c := givenChain(t, rng)

		for range 300 {
			c.step(t, rng)
		}

		c.assertConsistent(t)
	}
}

func Test_Chain_StepwiseConsistency(t *testing.T) {
	rng := rand.New(rand.NewPCG(99, 7))
	c := givenChain(t, rng)

	for range 150 {
		c.step(t, rng)
		c.assertConsistent(t)
	}
}
