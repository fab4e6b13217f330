package main

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ScenarioStats counts the runs of one scenario.
type ScenarioStats struct {
	Name     string
	Runs     int64
	Rejected int64
	Failed   int64
}

// Stats is the outcome of one load generator run.
type Stats struct {
	Elapsed   time.Duration
	Scenarios []ScenarioStats
	Batches   map[string]int64
	Sizes     map[string]int
	Reads     int64
	Dropped   int64
}

func perSecond(count int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "-"
	}

	return humanize.CommafWithDigits(float64(count)/elapsed.Seconds(), 1) + "/s"
}

// printStats renders the scenario and list tables.
func printStats(w io.Writer, stats Stats) {
	scenarios := table.NewWriter()
	scenarios.SetOutputMirror(w)
	scenarios.SetStyle(table.StyleLight)
	scenarios.SetTitle("Scenarios (%s)", stats.Elapsed.Truncate(time.Millisecond))
	scenarios.AppendHeader(table.Row{"Scenario", "Runs", "Rate", "Rejected", "Failed"})

	var total ScenarioStats
	for _, s := range stats.Scenarios {
		scenarios.AppendRow(table.Row{
			s.Name,
			humanize.Comma(s.Runs),
			perSecond(s.Runs, stats.Elapsed),
			humanize.Comma(s.Rejected),
			humanize.Comma(s.Failed),
		})
		total.Runs += s.Runs
		total.Rejected += s.Rejected
		total.Failed += s.Failed
	}
	scenarios.AppendFooter(table.Row{
		"Total",
		humanize.Comma(total.Runs),
		perSecond(total.Runs, stats.Elapsed),
		humanize.Comma(total.Rejected),
		humanize.Comma(total.Failed),
	})
	scenarios.SetColumnConfigs(rightAligned("Runs", "Rate", "Rejected", "Failed"))
	scenarios.Render()

	lists := table.NewWriter()
	lists.SetOutputMirror(w)
	lists.SetStyle(table.StyleLight)
	lists.SetTitle("Lists")
	lists.AppendHeader(table.Row{"List", "Batches published", "Final size"})

	names := make([]string, 0, len(stats.Batches))
	for name := range stats.Batches {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		size := "-"
		if n, ok := stats.Sizes[name]; ok {
			size = humanize.Comma(int64(n))
		}
		lists.AppendRow(table.Row{name, humanize.Comma(stats.Batches[name]), size})
	}
	lists.SetColumnConfigs(rightAligned("Batches published", "Final size"))
	lists.Render()

	_, _ = fmt.Fprintf(w, "%s reads (%s), %s ticks dropped\n",
		humanize.Comma(stats.Reads), perSecond(stats.Reads, stats.Elapsed), humanize.Comma(stats.Dropped))
}

func rightAligned(columns ...string) []table.ColumnConfig {
	configs := make([]table.ColumnConfig, 0, len(columns))
	for _, name := range columns {
		configs = append(configs, table.ColumnConfig{Name: name, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}

	return configs
}
