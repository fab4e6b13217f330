package helper

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolsvik/glazedlists/eventlist"
)

// RecordedEvent is one batch a ConsistencyListener received.
type RecordedEvent struct {
	Changes []eventlist.Change
	Reorder []int
}

// ConsistencyListener mirrors a list by replaying every published batch onto a shadow slice.
// When the list's change events are correct the mirror always equals the list.
type ConsistencyListener[E any] struct {
	list      eventlist.List[E]
	id        eventlist.ListenerID
	mu        sync.Mutex
	mirror    []E
	events    []RecordedEvent
	malformed []string
}

// NewConsistencyListener registers a listener on list, seeded with its current elements.
func NewConsistencyListener[E any](t testing.TB, list eventlist.List[E]) *ConsistencyListener[E] {
	t.Helper()

	c := &ConsistencyListener[E]{list: list, mirror: list.Elements()}
	c.id = list.AddListener(c.handle)

	return c
}

func (c *ConsistencyListener[E]) handle(_ context.Context, event eventlist.ListEvent[E]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	changes := event.Changes()
	reorder := event.Reorder()
	c.events = append(c.events, RecordedEvent{Changes: changes, Reorder: reorder})

	reader := event.List()
	mirror, err := eventlist.ApplyChanges(c.mirror, changes, reorder, func(i int) E {
		e, _ := reader.Get(i)
		return e
	})
	if err != nil {
		c.malformed = append(c.malformed, err.Error())
		c.mirror = reader.Elements()

		return
	}

	if len(mirror) != reader.Size() {
		c.malformed = append(c.malformed, "batch does not add up to the list size")
		mirror = reader.Elements()
	}
	c.mirror = mirror
}

// AssertConsistent checks that every batch was well-formed and that the mirror equals the list.
func (c *ConsistencyListener[E]) AssertConsistent(t testing.TB) {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	assert.Empty(t, c.malformed, "malformed batches")
	assert.Equal(t, c.list.Elements(), c.mirror, "mirror diverged from list")
}

// Events returns the batches received so far.
func (c *ConsistencyListener[E]) Events() []RecordedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]RecordedEvent, len(c.events))
	copy(out, c.events)

	return out
}

// LastEvent returns the most recent batch and fails the test when there is none.
func (c *ConsistencyListener[E]) LastEvent(t testing.TB) RecordedEvent {
	t.Helper()

	events := c.Events()
	require.NotEmpty(t, events, "no batch received")

	return events[len(events)-1]
}

// EventCount returns the number of batches received so far.
func (c *ConsistencyListener[E]) EventCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.events)
}

// Reset forgets the recorded batches. The mirror is kept.
func (c *ConsistencyListener[E]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = nil
}

// Detach unregisters the listener.
func (c *ConsistencyListener[E]) Detach() {
	c.list.RemoveListener(c.id)
}
