package mqadapter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/qhenkart/mqadapter"
	"github.com/qhenkart/mqadapter/mqtesting"
)

func TestConsumerAcksOnSuccess(t *testing.T) {
	qsvc := mqtesting.NewFakeQSVC()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := qsvc.CreateQueue(ctx, "q", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	handler := func(ctx context.Context, m *mqadapter.Message) error {
		wg.Done()
		return nil
	}

	c := mqadapter.NewConsumer(qsvc, "q", nil, handler)
	c.Start(ctx)
	defer c.Stop()

	if err := qsvc.SendMessage(ctx, "q", "{}", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitGroupOrFail(t, &wg, time.Second)
}

func TestConsumerNacksOnNACKError(t *testing.T) {
	qsvc := mqtesting.NewFakeQSVC()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	qsvc.CreateQueue(ctx, "q", "")

	var calls int32
	var mu sync.Mutex
	done := make(chan struct{})
	handler := func(ctx context.Context, m *mqadapter.Message) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return mqadapter.NACK(nil)
		}
		close(done)
		return nil
	}

	c := mqadapter.NewConsumer(qsvc, "q", nil, handler)
	c.Start(ctx)
	defer c.Stop()

	qsvc.SendMessage(ctx, "q", "{}", nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the nacked message to be redelivered and eventually succeed")
	}
}

func waitGroupOrFail(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for handler invocation")
	}
}
