// ABOUTME: Generator multiplexers xdup and xspread
// ABOUTME: xspread fans clones out across the available channel positions

package session

import (
	"fmt"

	"megra/dispatch"
	"megra/event"
	"megra/generator"
)

// XDup duplicates a generator n times with distinct id tags, so the copies
// run as independent schedulers.
func XDup(g *generator.Generator, n int) []*generator.Generator {
	if n < 1 {
		n = 1
	}

	out := make([]*generator.Generator, 0, n)

	for i := range n {
		clone := g.Clone()
		clone.AddIDTag(fmt.Sprintf("dup-%d", i))
		out = append(out, clone)
	}

	return out
}

// XSpread spreads the generators across the available channel positions by
// appending a pear processor that overwrites channel-position on every
// event.
func XSpread(gens []*generator.Generator, mode dispatch.OutputMode) {
	n := len(gens)
	if n == 0 {
		return
	}

	for i, g := range gens {
		pos := spreadPosition(i, n, mode)

		patch := event.NewEvent("spread").PutScalar(event.ChannelPosition, pos)
		g.Processors = append(g.Processors, generator.NewPear(100, []generator.FilteredEvents{
			{Mode: event.Replace, Events: []*event.Event{patch}},
		}))
	}
}

// spreadPosition places the ith of n generators: stereo spreads over
// [-1,1], the multichannel modes over the channel indices.
func spreadPosition(i, n int, mode dispatch.OutputMode) float64 {
	if n == 1 {
		return 0
	}

	frac := float64(i) / float64(n-1)

	if mode == dispatch.Stereo {
		return -1.0 + 2.0*frac
	}

	return frac * float64(mode.Channels()-1)
}
