package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueue_PushPop(t *testing.T) {
	q := NewQueue[string](2)

	if err := q.Push("a"); err != nil {
		t.Fatalf("unexpected push error: %v", err)
	}
	if err := q.Push("b"); err != nil {
		t.Fatalf("unexpected push error: %v", err)
	}

	ctx := context.Background()
	for _, expected := range []string{"a", "b"} {
		got, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("unexpected pop error: %v", err)
		}
		if got != expected {
			t.Errorf("expected %q, got %q", expected, got)
		}
	}
}

func TestQueue_FullRejectsWithoutBlocking(t *testing.T) {
	q := NewQueue[int](1)

	if err := q.Push(1); err != nil {
		t.Fatalf("unexpected push error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- q.Push(2) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrQueueFull) {
			t.Errorf("expected ErrQueueFull, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Push blocked on a full queue")
	}
}

func TestQueue_CloseDrainsRemaining(t *testing.T) {
	q := NewQueue[int](4)
	for i := 0; i < 3; i++ {
		if err := q.Push(i); err != nil {
			t.Fatalf("unexpected push error: %v", err)
		}
	}
	q.Close()

	if err := q.Push(99); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed after close, got %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("unexpected pop error: %v", err)
		}
		if got != i {
			t.Errorf("expected %d, got %d", i, got)
		}
	}

	if _, err := q.Pop(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed after drain, got %v", err)
	}
}

func TestQueue_PopHonorsContext(t *testing.T) {
	q := NewQueue[int](1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Pop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}
