// Package mqtesting provides in-memory QSVC/TSVC fakes for exercising the
// adapter's Command/Query/Event round trip without a real AWS account,
// adapted from the teacher's sqstesting stub framework.
package mqtesting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/qhenkart/mqadapter"
)

// Lookup records a single GetQueueURL call, so cross-account regression
// tests can assert exactly which owner account id (if any) was passed.
type Lookup struct {
	Name  string
	Owner string
}

type fakeQueue struct {
	mu       sync.Mutex
	messages []fakeMessage
	notify   chan struct{}
}

type fakeMessage struct {
	id            string
	body          string
	headers       mqadapter.Headers
	receiptHandle string
	visibleAt     time.Time
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{notify: make(chan struct{})}
}

func (q *fakeQueue) wake() {
	close(q.notify)
	q.notify = make(chan struct{})
}

// FakeQSVC is an in-memory QSVCClient. Queue names are used as URLs
// directly, which keeps test assertions readable.
type FakeQSVC struct {
	mu      sync.Mutex
	queues  map[string]*fakeQueue
	seq     int
	Lookups []Lookup
}

// NewFakeQSVC returns an empty FakeQSVC.
func NewFakeQSVC() *FakeQSVC {
	return &FakeQSVC{queues: map[string]*fakeQueue{}}
}

func (f *FakeQSVC) CreateQueue(ctx context.Context, name, kmsKeyID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.queues[name]; !ok {
		f.queues[name] = newFakeQueue()
	}
	return name, nil
}

func (f *FakeQSVC) GetQueueURL(ctx context.Context, name, ownerAccountID string) (string, error) {
	f.mu.Lock()
	f.Lookups = append(f.Lookups, Lookup{Name: name, Owner: ownerAccountID})
	_, ok := f.queues[name]
	f.mu.Unlock()
	if !ok {
		return "", mqadapter.ErrQueueNotFound
	}
	return name, nil
}

func (f *FakeQSVC) DeleteQueue(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.queues, url)
	return nil
}

func (f *FakeQSVC) queue(url string) *fakeQueue {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[url]
	if !ok {
		q = newFakeQueue()
		f.queues[url] = q
	}
	return q
}

func (f *FakeQSVC) ReceiveMessage(ctx context.Context, url string, waitTime time.Duration) ([]mqadapter.QueueMessage, error) {
	// A received message stays hidden for this long unless it is deleted or
	// its visibility is changed, as with a QSVC queue's visibility timeout.
	const visibilityTimeout = 30 * time.Second

	q := f.queue(url)
	deadline := time.Now().Add(waitTime)

	for {
		q.mu.Lock()
		var nextVisible time.Time
		for i, m := range q.messages {
			if time.Now().Before(m.visibleAt) {
				if nextVisible.IsZero() || m.visibleAt.Before(nextVisible) {
					nextVisible = m.visibleAt
				}
				continue
			}
			out := mqadapter.QueueMessage{Body: m.body, Headers: m.headers, ReceiptHandle: m.receiptHandle}
			q.messages[i].visibleAt = time.Now().Add(visibilityTimeout)
			q.mu.Unlock()
			return []mqadapter.QueueMessage{out}, nil
		}
		notify := q.notify
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		// Wake when a hidden message becomes visible again, not only on send.
		if !nextVisible.IsZero() {
			if d := time.Until(nextVisible); d < remaining {
				remaining = d
			}
		}

		select {
		case <-notify:
		case <-time.After(remaining):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (f *FakeQSVC) SendMessage(ctx context.Context, url string, body string, headers mqadapter.Headers) error {
	q := f.queue(url)

	f.mu.Lock()
	f.seq++
	id := fmt.Sprintf("msg-%d", f.seq)
	f.mu.Unlock()

	q.mu.Lock()
	q.messages = append(q.messages, fakeMessage{
		id:            id,
		body:          body,
		headers:       headers,
		receiptHandle: id,
		visibleAt:     time.Now(),
	})
	q.wake()
	q.mu.Unlock()
	return nil
}

func (f *FakeQSVC) DeleteMessage(ctx context.Context, url, receiptHandle string) error {
	q := f.queue(url)
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, m := range q.messages {
		if m.receiptHandle == receiptHandle {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *FakeQSVC) ChangeMessageVisibility(ctx context.Context, url, receiptHandle string, timeout time.Duration) error {
	q := f.queue(url)
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.messages {
		if q.messages[i].receiptHandle == receiptHandle {
			q.messages[i].visibleAt = time.Now().Add(timeout)
			return nil
		}
	}
	return nil
}

func (f *FakeQSVC) GetQueueArn(ctx context.Context, url string) (string, error) {
	return "arn:fake:sqs::" + url, nil
}

// URLForArn reverses GetQueueArn's synthetic format, used by FakeTSVC to
// deliver raw messages into the subscribed queue.
func URLForArn(arn string) (string, bool) {
	const prefix = "arn:fake:sqs::"
	if !strings.HasPrefix(arn, prefix) {
		return "", false
	}
	return strings.TrimPrefix(arn, prefix), true
}

// QueueNames returns every known queue name, sorted, for test assertions.
func (f *FakeQSVC) QueueNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.queues))
	for name := range f.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
