package mqadapter_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/qhenkart/mqadapter"
	"github.com/qhenkart/mqadapter/mqtesting"
)

func newTestAdapter(t *testing.T, cfg mqadapter.Config) (*mqadapter.Adapter, *mqtesting.FakeQSVC, *mqtesting.FakeTSVC) {
	t.Helper()
	if cfg.Adapter == "" {
		cfg.Adapter = "test-adapter"
	}
	if cfg.DefaultQueryTimeout == 0 {
		cfg.DefaultQueryTimeout = 2
	}
	if cfg.AWSSQSReadTimeout == 0 {
		// Keeps Consumer.Stop's "wait out the in-flight long poll" phase short
		// during tests; production defaults to 20s (spec §6).
		cfg.AWSSQSReadTimeout = 1
	}

	adapter, err := mqadapter.New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	qsvc := mqtesting.NewFakeQSVC()
	tsvc := mqtesting.NewFakeTSVC(qsvc)

	if err := adapter.StartWithClients(context.Background(), qsvc, tsvc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return adapter, qsvc, tsvc
}

func TestAdapterCommandDeliversToProcessor(t *testing.T) {
	ctx := context.Background()
	adapter, _, _ := newTestAdapter(t, mqadapter.Config{})
	defer adapter.Stop(ctx)

	proc := mqtesting.NewStubProcessor()
	if err := adapter.StartRequestProcessor(ctx, "orders", proc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := adapter.Command(ctx, "orders/create", map[string]string{"id": "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitUntil(t, func() bool { return len(proc.Commands) == 1 }, time.Second)
	if proc.Commands[0] != "create" {
		t.Fatalf("got method %q", proc.Commands[0])
	}
}

func TestAdapterQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter, _, _ := newTestAdapter(t, mqadapter.Config{})
	defer adapter.Stop(ctx)

	proc := mqtesting.NewStubProcessor()
	proc.QueryReply = func(method string, msg *mqadapter.Message) (interface{}, error) {
		var req struct {
			ID string `json:"id"`
		}
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		return map[string]string{"id": req.ID, "status": "ok"}, nil
	}

	if err := adapter.StartRequestProcessor(ctx, "orders", proc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reply, err := adapter.Query(ctx, "orders/get", map[string]string{"id": "42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := reply.Decode(&out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ID != "42" || out.Status != "ok" {
		t.Fatalf("got %+v", out)
	}
}

func TestAdapterQueryTimesOutWithNoProcessor(t *testing.T) {
	ctx := context.Background()
	adapter, _, _ := newTestAdapter(t, mqadapter.Config{DefaultQueryTimeout: 1})
	defer adapter.Stop(ctx)

	_, err := adapter.Query(ctx, "nobody/get", map[string]string{})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if !errors.Is(err, mqadapter.ErrTimeout) {
		t.Fatalf("expected a timeout error, got %v", err)
	}
}

func TestAdapterEventFanOutToSubscribers(t *testing.T) {
	ctx := context.Background()
	adapter, _, _ := newTestAdapter(t, mqadapter.Config{})
	defer adapter.Stop(ctx)

	proc := mqtesting.NewStubProcessor()
	if err := adapter.StartEventProcessorWithQueue(ctx, "orders-events", "orders-events-sub", proc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := adapter.Event(ctx, "orders-events#created", map[string]string{"id": "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitUntil(t, func() bool { return len(proc.Events) == 1 }, time.Second)
	if proc.Events[0] != "created" {
		t.Fatalf("got event %q", proc.Events[0])
	}
}

func TestAdapterStartEventProcessorAutoQueueTeardown(t *testing.T) {
	ctx := context.Background()
	adapter, qsvc, _ := newTestAdapter(t, mqadapter.Config{ReplyQueuePrefix: "reply-"})

	proc := mqtesting.NewStubProcessor()
	if err := adapter.StartEventProcessor(ctx, "orders-events", proc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const prefix = "reply-evt-orders-events-"
	foundAutoQueue := false
	for _, name := range qsvc.QueueNames() {
		if strings.HasPrefix(name, prefix) {
			foundAutoQueue = true
		}
	}
	if !foundAutoQueue {
		t.Fatalf("expected an auto-created event queue, got %v", qsvc.QueueNames())
	}

	adapter.Stop(ctx)

	for _, name := range qsvc.QueueNames() {
		if strings.HasPrefix(name, prefix) {
			t.Fatalf("expected the auto-created queue %q to be torn down on Stop", name)
		}
	}
}

func waitUntil(t *testing.T, cond func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
