package mqtesting

import (
	"context"
	"sync"

	"github.com/qhenkart/mqadapter"
)

// StubProcessor is a mqadapter.Processor recording every call it received,
// with injectable handler funcs for CallQuery's reply body (adapted from
// the teacher's StubConsumer/StubPublisher recording pattern).
type StubProcessor struct {
	mu       sync.Mutex
	Commands []string
	Events   []string
	Queries  []string

	QueryReply func(method string, msg *mqadapter.Message) (interface{}, error)
}

// NewStubProcessor returns an empty StubProcessor whose CallQuery returns
// nil, nil unless QueryReply is set.
func NewStubProcessor() *StubProcessor {
	return &StubProcessor{}
}

func (p *StubProcessor) CallCommand(ctx context.Context, method string, msg *mqadapter.Message) error {
	p.mu.Lock()
	p.Commands = append(p.Commands, method)
	p.mu.Unlock()
	return nil
}

func (p *StubProcessor) CallQuery(ctx context.Context, method string, msg *mqadapter.Message) (interface{}, error) {
	p.mu.Lock()
	p.Queries = append(p.Queries, method)
	p.mu.Unlock()
	if p.QueryReply != nil {
		return p.QueryReply(method, msg)
	}
	return nil, nil
}

func (p *StubProcessor) CallEvent(ctx context.Context, eventType string, msg *mqadapter.Message) error {
	p.mu.Lock()
	p.Events = append(p.Events, eventType)
	p.mu.Unlock()
	return nil
}
