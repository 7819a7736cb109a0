// ABOUTME: Bounded parallel batches for session housekeeping
// ABOUTME: Drives parallel scheduler teardown and sample directory loading

// Package pool runs batches of runtime chores concurrently. Two callers
// shape it: a replaced sync context stops all of its schedulers at once and
// waits for every join, and the sample scanner fans file loads out across
// cores. Both submit a burst of tasks and then block until the burst is
// done, so the pool is a counting semaphore rather than a long-lived worker
// set.
package pool

import (
	"runtime"
	"sync"
)

// Batch runs submitted tasks on their own goroutines, with at most width
// running at a time. A batch is reusable: Wait blocks until everything
// submitted so far has finished, after which more tasks may be submitted.
type Batch struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewBatch returns a batch admitting width concurrent tasks. Teardown passes
// the scheduler count so every stop overlaps; width <= 0 sizes the batch to
// the CPU count, which suits the sample loads.
func NewBatch(width int) *Batch {
	if width <= 0 {
		width = runtime.NumCPU()
	}

	return &Batch{sem: make(chan struct{}, width)}
}

// Go submits one task. It never blocks the caller; the task waits for an
// admission slot on its own goroutine.
func (b *Batch) Go(task func()) {
	b.wg.Add(1)

	go func() {
		b.sem <- struct{}{}

		defer func() {
			<-b.sem
			b.wg.Done()
		}()

		task()
	}()
}

// Wait blocks until every submitted task has finished. For scheduler
// teardown this is the all-joins barrier: it must not return while any
// generator is still rendering.
func (b *Batch) Wait() {
	b.wg.Wait()
}

// StopAll runs the given stop functions fully in parallel and waits for all
// of them, the shape context teardown needs.
func StopAll(stops []func()) {
	if len(stops) == 0 {
		return
	}

	batch := NewBatch(len(stops))
	for _, stop := range stops {
		batch.Go(stop)
	}

	batch.Wait()
}
