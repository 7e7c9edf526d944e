package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDispatcherRunsInSubmissionOrder(t *testing.T) {
	d := NewDispatcher(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []int
	)
	release := make(chan struct{})
	d.Submit(func(context.Context) { <-release })
	for i := 0; i < 5; i++ {
		i := i
		if !d.Submit(func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}) {
			t.Fatalf("submit %d rejected", i)
		}
	}
	go d.Run(ctx)
	close(release)
	d.Close()

	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatcher did not drain")
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if d.Submit(func(context.Context) {}) {
		t.Fatalf("submit after close must be rejected")
	}
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	d := NewDispatcher(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	ran := make(chan struct{})
	d.Submit(func(context.Context) { close(ran) })
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("command did not run")
	}

	cancel()
	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatcher ignored cancellation")
	}
}
