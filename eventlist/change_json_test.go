package eventlist_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolsvik/glazedlists/eventlist"
)

func Test_MarshalChanges(t *testing.T) {
	data, err := eventlist.MarshalChanges([]eventlist.Change{
		change(eventlist.Insert, 0, 2),
		change(eventlist.Delete, 4, 5),
	})
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"changes":[{"type":"insert","start":0,"end":2},{"type":"delete","start":4,"end":5}]}`,
		string(data),
	)
}

func Test_MarshalChanges_UnknownType_Fails(t *testing.T) {
	_, err := eventlist.MarshalChanges([]eventlist.Change{{Type: eventlist.ChangeType(9), Start: 0, End: 1}})
	assert.ErrorIs(t, err, eventlist.ErrInvalidChangeJSON)
}

func Test_UnmarshalChanges(t *testing.T) {
	changes, reorder, err := eventlist.UnmarshalChanges(
		[]byte(`{"changes":[{"type":"update","start":0,"end":1},{"type":"update","start":2,"end":3}],"reorder":[2,1,0]}`),
	)
	require.NoError(t, err)

	assert.Equal(t, []eventlist.Change{
		change(eventlist.Update, 0, 1),
		change(eventlist.Update, 2, 3),
	}, changes)
	assert.Equal(t, []int{2, 1, 0}, reorder)
}

func Test_UnmarshalChanges_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "malformed_json", data: `{"changes":[`},
		{name: "unknown_type", data: `{"changes":[{"type":"move","start":0,"end":1}]}`},
		{name: "empty_block", data: `{"changes":[{"type":"insert","start":3,"end":3}]}`},
		{name: "negative_start", data: `{"changes":[{"type":"delete","start":-1,"end":1}]}`},
		{name: "out_of_order", data: `{"changes":[{"type":"insert","start":4,"end":5},{"type":"insert","start":1,"end":2}]}`},
		{name: "reorder_out_of_range", data: `{"changes":[],"reorder":[7]}`},
		{name: "reorder_repeats_an_index", data: `{"changes":[],"reorder":[1,1,0]}`},
		{name: "reorder_with_delete", data: `{"changes":[{"type":"delete","start":0,"end":1}],"reorder":[1,0]}`},
		{name: "reorder_update_outside", data: `{"changes":[{"type":"update","start":1,"end":3}],"reorder":[1,0]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := eventlist.UnmarshalChanges([]byte(tc.data))
			assert.ErrorIs(t, err, eventlist.ErrInvalidChangeJSON)
		})
	}
}

func Test_ListEvent_MarshalJSON_FeedsARemoteMirror(t *testing.T) {
	ctx := context.Background()
	source := givenList(t, "a", "b", "c", "d")

	type payload struct {
		data     []byte
		elements []string
	}

	remote := source.Elements()
	var payloads []payload
	source.AddListener(func(_ context.Context, event eventlist.ListEvent[string]) {
		data, err := event.MarshalJSON()
		require.NoError(t, err)
		payloads = append(payloads, payload{data: data, elements: event.List().Elements()})
	})

	err := source.Update(ctx, func(ctx context.Context, _ eventlist.Reader[string]) error {
		if err := source.Add(ctx, 1, "x"); err != nil {
			return err
		}
		_, err := source.Remove(ctx, 3)
		return err
	})
	require.NoError(t, err)
	_, err = source.Set(ctx, 0, "z")
	require.NoError(t, err)
	_, err = source.Remove(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, source.Add(ctx, 1, "y"))
	require.Len(t, payloads, 4)

	for _, p := range payloads {
		changes, reorder, err := eventlist.UnmarshalChanges(p.data)
		require.NoError(t, err)
		remote, err = eventlist.ApplyChanges(remote, changes, reorder, func(i int) string { return p.elements[i] })
		require.NoError(t, err)
		assert.Equal(t, p.elements, remote)
	}

	assert.Equal(t, []string{"z", "y", "b", "d"}, remote)
}

func Test_ApplyChanges_Reorder(t *testing.T) {
	mirror, err := eventlist.ApplyChanges([]string{"a", "b", "c"}, nil, []int{2, 0, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, mirror)
}

func Test_ApplyChanges_BatchNotFittingTheMirror_Fails(t *testing.T) {
	tests := []struct {
		name    string
		changes []eventlist.Change
		reorder []int
	}{
		{name: "delete_beyond_end", changes: []eventlist.Change{change(eventlist.Delete, 5, 9)}},
		{name: "update_beyond_end", changes: []eventlist.Change{change(eventlist.Update, 2, 4)}},
		{name: "insert_past_end", changes: []eventlist.Change{change(eventlist.Insert, 4, 5)}},
		{name: "second_block_after_shrink", changes: []eventlist.Change{change(eventlist.Delete, 0, 2), change(eventlist.Update, 1, 2)}},
		{name: "reorder_too_short", reorder: []int{1, 0}},
		{name: "reorder_repeats_an_index", reorder: []int{0, 0, 1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mirror := []string{"a", "b", "c"}

			got, err := eventlist.ApplyChanges(mirror, tc.changes, tc.reorder, func(int) string { return "n" })

			assert.ErrorIs(t, err, eventlist.ErrInvalidChangeJSON)
			assert.Equal(t, []string{"a", "b", "c"}, got)
		})
	}
}
