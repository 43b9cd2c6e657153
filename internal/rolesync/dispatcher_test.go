package rolesync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherExecutesEnqueuedTasks(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{Workers: 2, QueueSize: 8})

	var executed atomic.Int64
	for i := 0; i < 5; i++ {
		if _, err := dispatcher.Enqueue("count", func(context.Context) error {
			executed.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}
	dispatcher.Close()

	if got := executed.Load(); got != 5 {
		t.Fatalf("expected 5 executed tasks, got %d", got)
	}
}

func TestDispatcherCloseDrainsQueue(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{Workers: 1, QueueSize: 16})

	var executed atomic.Int64
	for i := 0; i < 10; i++ {
		if _, err := dispatcher.Enqueue("slow", func(context.Context) error {
			time.Sleep(5 * time.Millisecond)
			executed.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	// Close must wait for every accepted task, not just the in-flight one.
	dispatcher.Close()
	if got := executed.Load(); got != 10 {
		t.Fatalf("expected all 10 tasks drained on close, got %d", got)
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{})
	dispatcher.Close()

	_, err := dispatcher.Enqueue("late", func(context.Context) error { return nil })
	if !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("expected ErrDispatcherClosed, got %v", err)
	}
}

func TestDispatcherAssignsTaskIDs(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{})
	defer dispatcher.Close()

	first, err := dispatcher.Enqueue("a", func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	second, err := dispatcher.Enqueue("b", func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if first == "" || second == "" || first == second {
		t.Fatalf("expected distinct non-empty task ids, got %q and %q", first, second)
	}
}
