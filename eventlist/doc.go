// Package eventlist provides observable lists and live views stacked on them.
//
// A BasicList is a mutable sequence whose every structural change is published to listeners as one
// batch of coalesced change blocks. Views subscribe to a source and stay consistent with it:
//   - FilteredView: the elements matching a predicate
//   - SortedView: the elements ordered by a comparator
//   - WindowedView: the elements in an index range that tracks its contents
//   - SelectionTracker: selected flags plus the Selected and Deselected views
//
// All lists of a chain share one Lock. Writes take a context.Context which carries the write hold, so
// a view writing through to its source, or the callback of Update, re-enters the lock. Listeners run
// while the lock is held and see fully applied states only; they read through event.List().
//
// Precondition violations (bad indexes, disposed lists, unsupported writes) are returned as errors.
// Protocol violations (recording changes outside a transaction, writing from a listener) panic.
//
// Usage examples:
//
//	people, _ := eventlist.New[Person](eventlist.WithName("people"), eventlist.WithLogger(slog.Default()))
//	adults, _ := eventlist.NewFilteredView(ctx, people, func(p Person) bool { return p.Age >= 18 })
//	byName, _ := eventlist.NewSortedView(ctx, adults, func(a, b Person) int { return strings.Compare(a.Name, b.Name) })
//
//	byName.AddListener(func(ctx context.Context, event eventlist.ListEvent[Person]) {
//		for _, change := range event.Changes() {
//			// apply change to a widget, a cache, or a remote mirror
//		}
//	})
//
//	_ = people.Update(ctx, func(ctx context.Context, view eventlist.Reader[Person]) error {
//		_ = people.Append(ctx, alice, bob)
//		_, err := people.Remove(ctx, 0)
//		return err
//	})
package eventlist
