// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch schedules per-reference work across a reference set in
// fixed-size windows. Within a window every item is dispatched concurrently;
// the runner waits for the whole window before advancing, which bounds
// in-flight external calls to the window size.
package batch

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pdiddy/refcheck/pkg/types"
)

// ErrBusy is returned when a Run is invoked while another is in flight for
// the same Runner. The duplicate invocation is a no-op.
var ErrBusy = errors.New("batch run already in flight")

// ProgressEvent reports completion after each window.
type ProgressEvent struct {
	Completed int
	Total     int
}

// Fraction returns completed/total in [0, 1].
func (e ProgressEvent) Fraction() float64 {
	if e.Total == 0 {
		return 1
	}
	return float64(e.Completed) / float64(e.Total)
}

// ItemFunc processes one reference. The index is the item's position in the
// original input, which callers use for round-robin credential selection.
// ItemFunc returns the updated record and must not fail: item-level errors
// are folded into the reference's status so one bad item never aborts its
// window.
type ItemFunc func(ctx context.Context, index int, ref types.Reference) types.Reference

// Runner drives an ItemFunc across a reference set.
type Runner struct {
	// BatchSize is the window width (default 5).
	BatchSize int

	// WindowDelay is the pause inserted between windows, distinct from any
	// per-call retry backoff, to smooth call-rate spikes.
	WindowDelay time.Duration

	// Progress, when non-nil, receives an event after each window. The
	// consumer must drain the channel.
	Progress chan<- ProgressEvent

	running atomic.Bool
}

// Run processes items window by window and returns the accumulated results.
// The output has the same length as the input and result[i] corresponds to
// items[i]; completion order inside a window is unspecified but the merge
// is positional. If the context is cancelled between windows, the partial
// accumulation is returned together with ctx.Err(); items in unreached
// windows keep their input state.
func (r *Runner) Run(ctx context.Context, items []types.Reference, fn ItemFunc) ([]types.Reference, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer r.running.Store(false)

	size := r.BatchSize
	if size <= 0 {
		size = 5
	}

	out := slices.Clone(items)

	for start := 0; start < len(out); start += size {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		end := min(start+size, len(out))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i] = fn(ctx, i, out[i])
			}(i)
		}
		wg.Wait()

		if r.Progress != nil {
			r.Progress <- ProgressEvent{Completed: end, Total: len(out)}
		}

		if end < len(out) && r.WindowDelay > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(r.WindowDelay):
			}
		}
	}

	return out, nil
}
