package mqadapter

import (
	"errors"
	"testing"
	"time"
)

func TestTimeoutQueuePopNonBlockingEmpty(t *testing.T) {
	q := NewTimeoutQueue()

	_, err := q.Pop(false, 0)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout on empty non-blocking pop, got %v", err)
	}
}

func TestTimeoutQueuePushThenPop(t *testing.T) {
	q := NewTimeoutQueue()
	want := newMessage([]byte(`{}`), Headers{"k": "v"}, "rh", "url", NewJSONCodec())

	q.Push(want)
	if q.Len() != 1 {
		t.Fatalf("expected len 1 after push, got %d", q.Len())
	}

	got, err := q.Pop(false, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected to get back the pushed message")
	}
	if q.Len() != 0 {
		t.Fatalf("expected len 0 after pop, got %d", q.Len())
	}
}

func TestTimeoutQueueBlockingPopWakesOnPush(t *testing.T) {
	q := NewTimeoutQueue()
	want := newMessage([]byte(`{}`), nil, "rh", "url", NewJSONCodec())

	done := make(chan *Message, 1)
	go func() {
		m, err := q.Pop(true, time.Second)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		done <- m
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(want)

	select {
	case got := <-done:
		if got != want {
			t.Fatalf("expected to receive the pushed message")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for blocking pop to wake")
	}
}

func TestTimeoutQueueBlockingPopExpires(t *testing.T) {
	q := NewTimeoutQueue()

	start := time.Now()
	_, err := q.Pop(true, 30*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed < 30*time.Millisecond {
		t.Fatalf("expected to wait at least the timeout, waited %v", elapsed)
	}
}

// TestTimeoutQueueSpuriousWakeupRecomputesDeadline guards the invariant that
// a spurious Broadcast (here simulated by broadcasting on the condition
// variable while the queue is still empty) never lets a waiter return early
// or miss the eventual element.
func TestTimeoutQueueSpuriousWakeupRecomputesDeadline(t *testing.T) {
	q := NewTimeoutQueue()
	want := newMessage([]byte(`{}`), nil, "real", "url", NewJSONCodec())

	done := make(chan *Message, 1)
	go func() {
		m, err := q.Pop(true, 200*time.Millisecond)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		done <- m
	}()

	// Force a Broadcast with the queue still empty, mimicking a spurious
	// wakeup; the waiter must keep waiting rather than return ErrTimeout
	// immediately.
	time.Sleep(10 * time.Millisecond)
	q.cond.Broadcast()

	time.Sleep(20 * time.Millisecond)
	q.Push(want)

	select {
	case got := <-done:
		if got != want {
			t.Fatalf("expected to receive the real message after the spurious wakeup")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out: spurious wakeup caused the waiter to give up early")
	}
}
