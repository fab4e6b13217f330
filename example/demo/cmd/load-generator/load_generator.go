package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stolsvik/glazedlists/eventlist"
)

const (
	scenarioWrites = iota
	scenarioViews
	scenarioSelection
	scenarioCount
)

var scenarioNames = [scenarioCount]string{"writes", "views", "selection"}

const (
	maxAmount      = 10_000
	readerInterval = 10 * time.Millisecond
	statsInterval  = 10 * time.Second
	jobQueueSize   = 1024
)

var customers = []string{"acme", "globex", "initech", "umbrella", "hooli", "vandelay", "stark", "wayne"}

type order struct {
	ID       int
	Customer string
	Amount   int
}

func byAmountDesc(a, b order) int { return cmp.Compare(b.Amount, a.Amount) }

func byAmountAsc(a, b order) int { return cmp.Compare(a.Amount, b.Amount) }

type scenarioCounters struct {
	runs     atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64
}

// LoadGenerator runs weighted write scenarios and concurrent readers against one chain:
// orders -> large orders -> sorted by amount -> top window, with a selection over the sorted orders.
type LoadGenerator struct {
	config Config

	orders    *eventlist.BasicList[order]
	large     *eventlist.FilteredView[order]
	sorted    *eventlist.SortedView[order]
	top       *eventlist.WindowedView[order]
	selection *eventlist.SelectionTracker[order]

	nextID    atomic.Int64
	ascending atomic.Bool

	scenarios [scenarioCount]scenarioCounters
	batches   map[string]*atomic.Int64
	reads     atomic.Int64
	dropped   atomic.Int64
	startTime time.Time
	elapsed   time.Duration
}

// NewLoadGenerator builds the chain and fills the base list with cfg.InitialOrders orders.
// options apply to the base list and are inherited by every view.
func NewLoadGenerator(ctx context.Context, cfg Config, options ...eventlist.Option) (*LoadGenerator, error) {
	lg := &LoadGenerator{config: cfg, batches: make(map[string]*atomic.Int64)}

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1)) //nolint:gosec // load data only
	initial := make([]order, cfg.InitialOrders)
	for i := range initial {
		initial[i] = lg.newOrder(rng)
	}

	var err error
	if lg.orders, err = eventlist.NewFrom(ctx, initial, append(options, eventlist.WithName("orders"))...); err != nil {
		return nil, err
	}
	if lg.large, err = eventlist.NewFilteredView(ctx, lg.orders, minAmount(maxAmount/2), eventlist.WithName("large-orders")); err != nil {
		return nil, err
	}
	if lg.sorted, err = eventlist.NewSortedView(ctx, lg.large, byAmountDesc, eventlist.WithName("by-amount")); err != nil {
		return nil, err
	}
	if lg.top, err = eventlist.NewWindowedView(ctx, lg.sorted, 0, cfg.WindowSize, eventlist.WithName("top-orders")); err != nil {
		return nil, err
	}
	if lg.selection, err = eventlist.NewSelectionTracker(ctx, lg.sorted,
		eventlist.WithName("picked"),
		eventlist.WithSelectionMode(eventlist.SelectionMultipleRange),
	); err != nil {
		return nil, err
	}

	countBatches(lg, "orders", lg.orders)
	countBatches(lg, "large-orders", lg.large)
	countBatches(lg, "by-amount", lg.sorted)
	countBatches(lg, "top-orders", lg.top)
	countBatches(lg, "picked.selected", lg.selection.Selected())
	countBatches(lg, "picked.deselected", lg.selection.Deselected())

	return lg, nil
}

func countBatches[E any](lg *LoadGenerator, name string, list eventlist.List[E]) {
	counter := &atomic.Int64{}
	lg.batches[name] = counter
	list.AddListener(func(context.Context, eventlist.ListEvent[E]) {
		counter.Add(1)
	})
}

func minAmount(threshold int) eventlist.Predicate[order] {
	return func(o order) bool { return o.Amount >= threshold }
}

func (lg *LoadGenerator) newOrder(rng *rand.Rand) order {
	return order{
		ID:       int(lg.nextID.Add(1)),
		Customer: customers[rng.IntN(len(customers))],
		Amount:   rng.IntN(maxAmount),
	}
}

// Run generates load until ctx is done.
func (lg *LoadGenerator) Run(ctx context.Context) {
	lg.startTime = time.Now()
	jobs := make(chan int, jobQueueSize)

	var wg sync.WaitGroup
	for w := range lg.config.Writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lg.writer(ctx, uint64(w), jobs)
		}()
	}
	for r := range lg.config.Readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lg.reader(ctx, uint64(r))
		}()
	}

	interval := time.Second / time.Duration(lg.config.Rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	log.Printf("Load generator starting with %d scenarios/second (interval: %v)", lg.config.Rate, interval)

	rng := rand.New(rand.NewPCG(uint64(lg.startTime.UnixNano()), 2)) //nolint:gosec // load data only

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-statsTicker.C:
			lg.logCurrentStats()
		case <-ticker.C:
			select {
			case jobs <- lg.selectScenario(rng):
			default:
				lg.dropped.Add(1)
			}
		}
	}

	close(jobs)
	wg.Wait()
	lg.elapsed = time.Since(lg.startTime)

	log.Printf("Load generator stopped")
}

// selectScenario picks a scenario by the configured weights.
func (lg *LoadGenerator) selectScenario(rng *rand.Rand) int {
	r := rng.IntN(100)
	for scenario, weight := range lg.config.ScenarioWeights {
		if r < weight {
			return scenario
		}
		r -= weight
	}

	return scenarioWrites
}

func (lg *LoadGenerator) writer(ctx context.Context, seed uint64, jobs <-chan int) {
	rng := rand.New(rand.NewPCG(seed, uint64(time.Now().UnixNano()))) //nolint:gosec // load data only

	for scenario := range jobs {
		var err error
		switch scenario {
		case scenarioWrites:
			err = lg.runWrites(ctx, rng)
		case scenarioViews:
			err = lg.runViews(ctx, rng)
		case scenarioSelection:
			err = lg.runSelection(ctx, rng)
		}

		counters := &lg.scenarios[scenario]
		counters.runs.Add(1)
		switch {
		case err == nil:
		case isRejection(err):
			// another writer changed the sizes between our read and our write
			counters.rejected.Add(1)
		default:
			counters.failed.Add(1)
			log.Printf("Scenario error (%s): %v", scenarioNames[scenario], err)
		}
	}
}

func isRejection(err error) bool {
	return errors.Is(err, eventlist.ErrIndexOutOfBounds) || errors.Is(err, eventlist.ErrInvalidRange)
}

// runWrites changes the base list, keeping its size around the initial size.
func (lg *LoadGenerator) runWrites(ctx context.Context, rng *rand.Rand) error {
	size := lg.orders.Size()
	grow := size < lg.config.InitialOrders || size == 0

	switch op := rng.IntN(4); {
	case op == 0 && grow:
		return lg.orders.Add(ctx, rng.IntN(size+1), lg.newOrder(rng))
	case op == 0:
		_, err := lg.orders.Remove(ctx, rng.IntN(size))
		return err
	case op == 1 || size == 0:
		return lg.orders.Append(ctx, lg.newOrder(rng))
	case op == 2:
		i := rng.IntN(size)
		o, err := lg.orders.Get(i)
		if err != nil {
			return err
		}
		o.Amount = rng.IntN(maxAmount)
		_, err = lg.orders.Set(ctx, i, o)
		return err
	default:
		return lg.orders.Update(ctx, func(ctx context.Context, view eventlist.Reader[order]) error {
			for range 1 + rng.IntN(8) {
				n := view.Size()
				if n > lg.config.InitialOrders && n > 0 {
					if _, err := lg.orders.Remove(ctx, rng.IntN(n)); err != nil {
						return err
					}
					continue
				}
				if err := lg.orders.Add(ctx, rng.IntN(n+1), lg.newOrder(rng)); err != nil {
					return err
				}
			}

			return nil
		})
	}
}

// runViews reconfigures the views: filter threshold, sort direction, or window position.
func (lg *LoadGenerator) runViews(ctx context.Context, rng *rand.Rand) error {
	switch rng.IntN(3) {
	case 0:
		return lg.large.SetPredicate(ctx, minAmount(maxAmount/4+rng.IntN(maxAmount/2)))
	case 1:
		ascending := !lg.ascending.Load()
		lg.ascending.Store(ascending)
		if ascending {
			return lg.sorted.SetComparator(ctx, byAmountAsc)
		}
		return lg.sorted.SetComparator(ctx, byAmountDesc)
	default:
		from := rng.IntN(lg.sorted.Size()/2 + 1)
		return lg.top.SetRange(ctx, from, from+lg.config.WindowSize)
	}
}

// runSelection changes the selection over the sorted orders.
func (lg *LoadGenerator) runSelection(ctx context.Context, rng *rand.Rand) error {
	size := lg.sorted.Size()
	if size == 0 {
		return nil
	}

	from := rng.IntN(size)
	to := min(size-1, from+rng.IntN(10))

	switch rng.IntN(5) {
	case 0, 1:
		return lg.selection.SelectRange(ctx, from, to)
	case 2:
		return lg.selection.DeselectRange(ctx, from, to)
	case 3:
		return lg.selection.InvertSelection(ctx)
	default:
		return lg.selection.SetSelection(ctx, from)
	}
}

func (lg *LoadGenerator) reader(ctx context.Context, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, 3)) //nolint:gosec // load data only
	ticker := time.NewTicker(readerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch rng.IntN(3) {
			case 0:
				_ = lg.top.Elements()
			case 1:
				_ = lg.selection.SelectedIndices()
			default:
				if n := lg.sorted.Size(); n > 0 {
					_, _ = lg.sorted.Get(rng.IntN(n))
				}
			}
			lg.reads.Add(1)
		}
	}
}

func (lg *LoadGenerator) logCurrentStats() {
	duration := time.Since(lg.startTime)

	var runs int64
	for i := range lg.scenarios {
		runs += lg.scenarios[i].runs.Load()
	}

	log.Printf("Stats: %d scenarios in %v (%.1f/s), %d reads, %d orders, %d large",
		runs, duration.Truncate(time.Second), float64(runs)/duration.Seconds(),
		lg.reads.Load(), lg.orders.Size(), lg.sorted.Size())
}

// Stats returns a snapshot of the counters.
func (lg *LoadGenerator) Stats() Stats {
	stats := Stats{
		Elapsed: lg.elapsed,
		Reads:   lg.reads.Load(),
		Dropped: lg.dropped.Load(),
		Batches: make(map[string]int64, len(lg.batches)),
		Sizes: map[string]int{
			"orders":            lg.orders.Size(),
			"large-orders":      lg.large.Size(),
			"top-orders":        lg.top.Size(),
			"picked.selected":   lg.selection.Selected().Size(),
			"picked.deselected": lg.selection.Deselected().Size(),
		},
	}

	for i, name := range scenarioNames {
		stats.Scenarios = append(stats.Scenarios, ScenarioStats{
			Name:     name,
			Runs:     lg.scenarios[i].runs.Load(),
			Rejected: lg.scenarios[i].rejected.Load(),
			Failed:   lg.scenarios[i].failed.Load(),
		})
	}
	for name, counter := range lg.batches {
		stats.Batches[name] = counter.Load()
	}

	return stats
}

// Close disposes the chain, views first.
func (lg *LoadGenerator) Close(ctx context.Context) error {
	var errs []error
	for _, dispose := range []func(context.Context) error{
		lg.selection.Dispose,
		lg.top.Dispose,
		lg.sorted.Dispose,
		lg.large.Dispose,
		lg.orders.Dispose,
	} {
		if err := dispose(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("dispose chain: %w", errors.Join(errs...))
	}

	return nil
}
