package eventlist

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Assembler_NestedTransactions_PublishOnOutermostCommit(t *testing.T) {
	var a assembler

	a.begin(3)
	a.begin(3)
	a.addChange(Insert, 0, 1)

	_, _, ok := a.commit()
	assert.False(t, ok)
	assert.True(t, a.inTransaction())

	changes, reorder, ok := a.commit()
	require.True(t, ok)
	assert.Equal(t, []Change{{Type: Insert, Start: 0, End: 1}}, changes)
	assert.Nil(t, reorder)
	assert.False(t, a.inTransaction())
}

func Test_Assembler_EmptyTransaction_PublishesNothing(t *testing.T) {
	var a assembler

	a.begin(5)
	a.addChange(Insert, 2, 2)

	_, _, ok := a.commit()
	assert.False(t, ok)
}

func Test_Assembler_OutsideTransaction_Panics(t *testing.T) {
	var a assembler

	assert.PanicsWithValue(t, ErrNoTransaction, func() { a.addChange(Insert, 0, 1) })
	assert.PanicsWithValue(t, ErrNoTransaction, func() { a.addReorder([]int{0}) })
	assert.PanicsWithValue(t, ErrNoTransaction, func() { a.commit() })
}

func Test_Assembler_Reorder(t *testing.T) {
	t.Run("single_permutation", func(t *testing.T) {
		var a assembler
		a.begin(3)
		a.addReorder([]int{1, 0, 2})

		changes, reorder, ok := a.commit()
		require.True(t, ok)
		assert.Equal(t, []int{1, 0, 2}, reorder)
		assert.Equal(t, []Change{{Type: Update, Start: 0, End: 2}}, changes)
	})

	t.Run("permutations_compose", func(t *testing.T) {
		var a assembler
		a.begin(3)
		a.addReorder([]int{1, 2, 0})
		a.addReorder([]int{1, 2, 0})

		changes, reorder, ok := a.commit()
		require.True(t, ok)
		assert.Equal(t, []int{2, 0, 1}, reorder)
		assert.Equal(t, []Change{{Type: Update, Start: 0, End: 3}}, changes)
	})

	t.Run("inverse_permutations_cancel", func(t *testing.T) {
		var a assembler
		a.begin(3)
		a.addReorder([]int{1, 2, 0})
		a.addReorder([]int{2, 0, 1})

		_, _, ok := a.commit()
		assert.False(t, ok)
	})

	t.Run("flattened_by_a_later_change", func(t *testing.T) {
		var a assembler
		a.begin(4)
		a.addReorder([]int{1, 0, 2, 3})
		a.addChange(Delete, 3, 4)

		changes, reorder, ok := a.commit()
		require.True(t, ok)
		assert.Nil(t, reorder)
		assert.Equal(t, []Change{
			{Type: Update, Start: 0, End: 2},
			{Type: Delete, Start: 3, End: 4},
		}, changes)
	})

	t.Run("after_a_change_becomes_updates", func(t *testing.T) {
		var a assembler
		a.begin(3)
		a.addChange(Update, 2, 3)
		a.addReorder([]int{1, 0, 2})

		changes, reorder, ok := a.commit()
		require.True(t, ok)
		assert.Nil(t, reorder)
		assert.Equal(t, []Change{{Type: Update, Start: 0, End: 3}}, changes)
	})
}

// Replaying the resolved blocks onto the starting state must reproduce the final state.
func Test_Assembler_RandomTransactions_ReplayToTheFinalState(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	next := 1000

	for range 500 {
		initial := make([]int, rng.IntN(8))
		for i := range initial {
			initial[i] = i
		}
		current := slices.Clone(initial)

		var a assembler
		a.begin(len(current))

		for range 1 + rng.IntN(10) {
			switch op := rng.IntN(3); {
			case op == 0 || len(current) == 0:
				at, n := rng.IntN(len(current)+1), 1+rng.IntN(3)
				fresh := make([]int, n)
				for i := range fresh {
					fresh[i] = next
					next++
				}
				current = slices.Insert(current, at, fresh...)
				a.addChange(Insert, at, at+n)
			case op == 1:
				start := rng.IntN(len(current))
				end := start + 1 + rng.IntN(len(current)-start)
				current = slices.Delete(current, start, end)
				a.addChange(Delete, start, end)
			default:
				start := rng.IntN(len(current))
				end := start + 1 + rng.IntN(len(current)-start)
				for i := start; i < end; i++ {
					current[i] = next
					next++
				}
				a.addChange(Update, start, end)
			}
		}

		changes, reorder, ok := a.commit()
		if !ok {
			assert.Equal(t, initial, current)
			continue
		}
		require.Nil(t, reorder)

		prevStart := -1
		for _, c := range changes {
			require.Greater(t, c.End, c.Start)
			require.GreaterOrEqual(t, c.Start, prevStart)
			prevStart = c.Start
		}

		replayed, err := ApplyChanges(slices.Clone(initial), changes, nil, func(i int) int { return current[i] })
		require.NoError(t, err, "blocks %v", changes)
		assert.Equal(t, current, replayed, "blocks %v", changes)
	}
}

func Test_MovedUpdates(t *testing.T) {
	assert.Nil(t, movedUpdates([]int{0, 1, 2}))
	assert.Equal(t, []Change{
		{Type: Update, Start: 1, End: 3},
		{Type: Update, Start: 4, End: 6},
	}, movedUpdates([]int{0, 2, 1, 3, 5, 4}))
}
