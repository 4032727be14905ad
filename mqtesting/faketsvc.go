package mqtesting

import (
	"context"
	"fmt"
	"sync"

	"github.com/qhenkart/mqadapter"
)

type subscription struct {
	topicARN string
	queueARN string
}

// FakeTSVC is an in-memory TSVCClient. Publish forwards the raw body and
// headers directly into every subscribed queue, emulating SNS's raw message
// delivery mode (spec §4.5): no JSON envelope is introduced.
type FakeTSVC struct {
	mu            sync.Mutex
	topics        map[string]string // name -> arn
	subscriptions []subscription
	qsvc          *FakeQSVC
	seq           int
}

// NewFakeTSVC returns a FakeTSVC that delivers raw messages into qsvc.
func NewFakeTSVC(qsvc *FakeQSVC) *FakeTSVC {
	return &FakeTSVC{topics: map[string]string{}, qsvc: qsvc}
}

func (f *FakeTSVC) CreateTopic(ctx context.Context, name, kmsKeyID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if arn, ok := f.topics[name]; ok {
		return arn, nil
	}
	f.seq++
	arn := fmt.Sprintf("arn:fake:sns::%d:%s", f.seq, name)
	f.topics[name] = arn
	return arn, nil
}

func (f *FakeTSVC) ListTopics(ctx context.Context) ([]mqadapter.TopicSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mqadapter.TopicSummary, 0, len(f.topics))
	for _, arn := range f.topics {
		out = append(out, mqadapter.TopicSummary{ARN: arn})
	}
	return out, nil
}

func (f *FakeTSVC) Publish(ctx context.Context, topicARN, body string, headers mqadapter.Headers) error {
	f.mu.Lock()
	subs := make([]subscription, 0)
	for _, s := range f.subscriptions {
		if s.topicARN == topicARN {
			subs = append(subs, s)
		}
	}
	f.mu.Unlock()

	for _, s := range subs {
		url, ok := URLForArn(s.queueARN)
		if !ok {
			continue
		}
		if err := f.qsvc.SendMessage(ctx, url, body, headers); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeTSVC) Subscribe(ctx context.Context, topicARN, protocol, endpoint string, rawMessageDelivery bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions = append(f.subscriptions, subscription{topicARN: topicARN, queueARN: endpoint})
	return nil
}
