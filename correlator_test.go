package mqadapter

import (
	"testing"
	"time"
)

func TestCorrelatorRegisterAndTake(t *testing.T) {
	c := newCorrelator()

	q := c.register("req-1")
	if c.len() != 1 {
		t.Fatalf("expected 1 pending waiter, got %d", c.len())
	}

	got, ok := c.take("req-1")
	if !ok || got != q {
		t.Fatalf("expected to take back the registered queue")
	}
	if c.len() != 0 {
		t.Fatalf("expected 0 pending waiters after take, got %d", c.len())
	}
}

func TestCorrelatorTakeMissing(t *testing.T) {
	c := newCorrelator()
	if _, ok := c.take("absent"); ok {
		t.Fatalf("expected ok=false for an unregistered request id")
	}
}

func TestCorrelatorRemoveAfterTimeout(t *testing.T) {
	c := newCorrelator()
	c.register("req-1")
	c.remove("req-1")

	if _, ok := c.take("req-1"); ok {
		t.Fatalf("expected the waiter to be gone after remove")
	}
}

func TestCorrelatorDeliveryUnblocksWaiter(t *testing.T) {
	c := newCorrelator()
	q := c.register("req-1")

	msg := newMessage([]byte(`{}`), Headers{HeaderRequestID: "req-1"}, "rh", "url", NewJSONCodec())

	waiter, ok := c.take("req-1")
	if !ok {
		t.Fatal("expected waiter to be registered")
	}
	waiter.Push(msg)

	got, err := q.Pop(true, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != msg {
		t.Fatalf("expected to receive the delivered reply")
	}
}
