package mqadapter

import (
	"context"
	"testing"
	"time"
)

// fakeQSVCForRegistry is a minimal QSVCClient stub local to registry tests,
// recording every GetQueueURL call's owner argument.
type fakeQSVCForRegistry struct {
	existing map[string]string // fqn -> url
	lookups  []struct{ name, owner string }
}

func newFakeQSVCForRegistry() *fakeQSVCForRegistry {
	return &fakeQSVCForRegistry{existing: map[string]string{}}
}

func (f *fakeQSVCForRegistry) CreateQueue(ctx context.Context, name, kmsKeyID string) (string, error) {
	url := "https://queue/" + name
	f.existing[name] = url
	return url, nil
}

func (f *fakeQSVCForRegistry) GetQueueURL(ctx context.Context, name, ownerAccountID string) (string, error) {
	f.lookups = append(f.lookups, struct{ name, owner string }{name, ownerAccountID})
	url, ok := f.existing[name]
	if !ok {
		return "", ErrQueueNotFound
	}
	return url, nil
}

func (f *fakeQSVCForRegistry) DeleteQueue(ctx context.Context, url string) error { return nil }
func (f *fakeQSVCForRegistry) ReceiveMessage(ctx context.Context, url string, waitTime time.Duration) ([]QueueMessage, error) {
	return nil, nil
}
func (f *fakeQSVCForRegistry) SendMessage(ctx context.Context, url, body string, headers Headers) error {
	return nil
}
func (f *fakeQSVCForRegistry) DeleteMessage(ctx context.Context, url, receiptHandle string) error {
	return nil
}
func (f *fakeQSVCForRegistry) ChangeMessageVisibility(ctx context.Context, url, receiptHandle string, timeout time.Duration) error {
	return nil
}
func (f *fakeQSVCForRegistry) GetQueueArn(ctx context.Context, url string) (string, error) {
	return "arn:" + url, nil
}

func TestRegistryFQNAppliesNamespaceAndAlphabet(t *testing.T) {
	client := newFakeQSVCForRegistry()
	r := NewRegistry(client, nil, "svc.billing.", "", nil)

	if got, want := r.fqn("invoices"), "svc-billing-invoices"; got != want {
		t.Fatalf("got fqn %q, want %q", got, want)
	}
}

func TestRegistryQueueURLCachesAcrossCalls(t *testing.T) {
	client := newFakeQSVCForRegistry()
	r := NewRegistry(client, nil, "", "", nil)

	url, err := r.CreateQueue(context.Background(), "orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := r.QueueURL(context.Background(), "orders")
	if err != nil || !ok {
		t.Fatalf("unexpected result: ok=%v err=%v", ok, err)
	}
	if got != url {
		t.Fatalf("got %q, want %q", got, url)
	}
	if len(client.lookups) != 0 {
		t.Fatalf("expected the cache hit to skip GetQueueURL entirely, got %d calls", len(client.lookups))
	}
}

// TestRegistryCrossAccountLookupKeyedByOriginalName guards the regression
// flagged where a namespace-prefixing bug could key the cross-account map
// by the FQN instead of the original queue name. The owner account id must
// only be consulted, and only on a cache miss, keyed by the name the caller
// passed in before FQN translation.
func TestRegistryCrossAccountLookupKeyedByOriginalName(t *testing.T) {
	client := newFakeQSVCForRegistry()
	client.existing["svc-orders"] = "https://queue/svc-orders"

	crossAccount := map[string]string{"orders": "999999999999"}
	r := NewRegistry(client, nil, "svc.", "", crossAccount)

	url, ok, err := r.QueueURL(context.Background(), "orders")
	if err != nil || !ok {
		t.Fatalf("unexpected result: ok=%v err=%v", ok, err)
	}
	if url != "https://queue/svc-orders" {
		t.Fatalf("got url %q", url)
	}

	if len(client.lookups) != 1 {
		t.Fatalf("expected exactly one GetQueueURL call, got %d", len(client.lookups))
	}
	if client.lookups[0].name != "svc-orders" {
		t.Fatalf("expected the lookup to use the FQN %q, got %q", "svc-orders", client.lookups[0].name)
	}
	if client.lookups[0].owner != "999999999999" {
		t.Fatalf("expected the owner account id to be passed on cache miss, got %q", client.lookups[0].owner)
	}

	// Second call hits the cache: no further GetQueueURL call, so the owner
	// account id is never re-consulted on the cache-hit path.
	if _, _, err := r.QueueURL(context.Background(), "orders"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.lookups) != 1 {
		t.Fatalf("expected the cache hit to skip GetQueueURL, still got %d calls", len(client.lookups))
	}
}

func TestRegistryQueueURLNotFound(t *testing.T) {
	client := newFakeQSVCForRegistry()
	r := NewRegistry(client, nil, "", "", nil)

	_, ok, err := r.QueueURL(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for a queue that does not exist")
	}
}
