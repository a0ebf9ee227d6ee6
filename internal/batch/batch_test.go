// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/refcheck/pkg/types"
)

func makeRefs(n int) []types.Reference {
	refs := make([]types.Reference, n)
	for i := range refs {
		refs[i] = types.Reference{
			ID:     fmt.Sprintf("ref-%d", i),
			Title:  fmt.Sprintf("Paper %d", i),
			Status: types.StatusPending,
		}
	}
	return refs
}

func TestRunPreservesCountAndOrder(t *testing.T) {
	refs := makeRefs(12)
	r := &Runner{BatchSize: 5}

	out, err := r.Run(context.Background(), refs, func(_ context.Context, i int, ref types.Reference) types.Reference {
		ref.Status = types.StatusVerified
		return ref
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 12 {
		t.Fatalf("len(out) = %d, want 12", len(out))
	}
	for i, ref := range out {
		if ref.ID != fmt.Sprintf("ref-%d", i) {
			t.Errorf("out[%d].ID = %q, positional order broken", i, ref.ID)
		}
		if ref.Status != types.StatusVerified {
			t.Errorf("out[%d].Status = %q", i, ref.Status)
		}
	}
}

func TestRunWindowsAndProgress(t *testing.T) {
	refs := makeRefs(12)
	progress := make(chan ProgressEvent, 8)
	r := &Runner{BatchSize: 5, Progress: progress}

	// Track the peak number of concurrently running items.
	var inFlight, peak int32
	_, err := r.Run(context.Background(), refs, func(_ context.Context, _ int, ref types.Reference) types.Reference {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return ref
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(progress)

	var events []ProgressEvent
	for e := range progress {
		events = append(events, e)
	}
	// 12 items, window 5 => windows of 5, 5, 2.
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	wantCompleted := []int{5, 10, 12}
	for i, e := range events {
		if e.Completed != wantCompleted[i] || e.Total != 12 {
			t.Errorf("events[%d] = %d/%d, want %d/12", i, e.Completed, e.Total, wantCompleted[i])
		}
	}
	if math.Abs(events[0].Fraction()-5.0/12.0) > 1e-9 {
		t.Errorf("Fraction = %f, want %f", events[0].Fraction(), 5.0/12.0)
	}
	if got := atomic.LoadInt32(&peak); got > 5 {
		t.Errorf("peak concurrency = %d, want <= 5", got)
	}
}

func TestRunReentrancyGuard(t *testing.T) {
	refs := makeRefs(4)
	r := &Runner{BatchSize: 2}

	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := r.Run(context.Background(), refs, func(_ context.Context, _ int, ref types.Reference) types.Reference {
			<-release
			return ref
		})
		if err != nil {
			t.Errorf("first Run: %v", err)
		}
	}()

	// Give the first run time to take the guard.
	time.Sleep(10 * time.Millisecond)

	_, err := r.Run(context.Background(), refs, func(_ context.Context, _ int, ref types.Reference) types.Reference {
		return ref
	})
	if !errors.Is(err, ErrBusy) {
		t.Errorf("second Run err = %v, want ErrBusy", err)
	}

	close(release)
	wg.Wait()

	// The guard is released once the first run completes.
	if _, err := r.Run(context.Background(), refs, func(_ context.Context, _ int, ref types.Reference) types.Reference {
		return ref
	}); err != nil {
		t.Errorf("third Run err = %v, want nil", err)
	}
}

func TestRunItemIsolation(t *testing.T) {
	refs := makeRefs(6)
	r := &Runner{BatchSize: 3}

	out, err := r.Run(context.Background(), refs, func(_ context.Context, i int, ref types.Reference) types.Reference {
		if i%2 == 0 {
			ref.Status = types.StatusError
			ref.Message = "collaborator failed"
		} else {
			ref.Status = types.StatusVerified
		}
		return ref
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, ref := range out {
		want := types.StatusVerified
		if i%2 == 0 {
			want = types.StatusError
		}
		if ref.Status != want {
			t.Errorf("out[%d].Status = %q, want %q", i, ref.Status, want)
		}
	}
}

func TestRunContextCancelledBetweenWindows(t *testing.T) {
	refs := makeRefs(10)
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{BatchSize: 5, WindowDelay: 200 * time.Millisecond}

	var processed int32
	out, err := r.Run(ctx, refs, func(_ context.Context, _ int, ref types.Reference) types.Reference {
		if atomic.AddInt32(&processed, 1) == 5 {
			cancel()
		}
		ref.Status = types.StatusVerified
		return ref
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	// First window settled; second never started.
	if len(out) != 10 {
		t.Fatalf("len(out) = %d, want 10", len(out))
	}
	for i := 0; i < 5; i++ {
		if out[i].Status != types.StatusVerified {
			t.Errorf("out[%d] should have settled before cancellation", i)
		}
	}
	for i := 5; i < 10; i++ {
		if out[i].Status != types.StatusPending {
			t.Errorf("out[%d].Status = %q, want pending", i, out[i].Status)
		}
	}
}

func TestRunEmptyInput(t *testing.T) {
	r := &Runner{BatchSize: 5}
	out, err := r.Run(context.Background(), nil, func(_ context.Context, _ int, ref types.Reference) types.Reference {
		return ref
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("len(out) = %d, want 0", len(out))
	}
}
