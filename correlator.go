package mqadapter

import (
	"context"
	"sync"
	"time"
)

// correlator maps an in-flight Query's request_id to the TimeoutQueue its
// caller is blocked popping from (spec §4.4).
type correlator struct {
	mu      sync.Mutex
	pending map[string]*TimeoutQueue
}

func newCorrelator() *correlator {
	return &correlator{pending: map[string]*TimeoutQueue{}}
}

// register installs a waiter for requestID, returning its TimeoutQueue.
func (c *correlator) register(requestID string) *TimeoutQueue {
	q := NewTimeoutQueue()
	c.mu.Lock()
	c.pending[requestID] = q
	c.mu.Unlock()
	return q
}

// remove evicts requestID's waiter, if any. Safe to call after a timeout or
// after a reply has already been delivered.
func (c *correlator) remove(requestID string) {
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
}

func (c *correlator) take(requestID string) (*TimeoutQueue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	return q, ok
}

func (c *correlator) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// ReplyConsumer owns the single ephemeral reply queue a process uses to
// receive Query responses (spec §4.4). It runs its own Consumer with a nil
// worker pool: reply dispatch must never be starved by a saturated pool
// processing unrelated Command/Event handlers.
type ReplyConsumer struct {
	corr      *correlator
	consumer  *Consumer
	registry  *Registry
	queueName string
	queueURL  string
	logger    Logger
}

func newReplyConsumer(ctx context.Context, registry *Registry, client QSVCClient, queueNamePrefix string, logger Logger, codec Codec, readTimeout time.Duration) (*ReplyConsumer, error) {
	queueName := queueNamePrefix + randomHex16()

	url, err := registry.CreateQueue(ctx, queueName)
	if err != nil {
		return nil, err
	}

	rc := &ReplyConsumer{
		corr:      newCorrelator(),
		registry:  registry,
		queueName: queueName,
		queueURL:  url,
		logger:    logger,
	}

	rc.consumer = NewConsumer(client, url, nil, rc.dispatch,
		withLogger(logger),
		withCodec(codec),
		withQueueName(queueName),
		withReadTimeout(readTimeout),
	)
	rc.consumer.Start(ctx)
	return rc, nil
}

// RegisterRequestID installs a waiter for a new outgoing Query's request_id
// and returns the queue for the caller to block on.
func (rc *ReplyConsumer) RegisterRequestID(requestID string) *TimeoutQueue {
	return rc.corr.register(requestID)
}

// Forget evicts requestID's waiter, used after a caller gives up on timeout.
func (rc *ReplyConsumer) Forget(requestID string) {
	rc.corr.remove(requestID)
}

// QueueURL is the reply queue's URL, set as __reply_queue_url on outgoing
// Query messages.
func (rc *ReplyConsumer) QueueURL() string { return rc.queueURL }

func (rc *ReplyConsumer) dispatch(ctx context.Context, m *Message) error {
	requestID := m.RequestID()
	if requestID == "" {
		rc.logger.Warnw("reply without request_id dropped", "queue", rc.queueName)
		return nil
	}

	q, ok := rc.corr.take(requestID)
	if !ok {
		// No one is waiting: either the caller already timed out, or this is
		// a duplicate redelivery. Either way the reply is dropped, not an
		// error: the message is still ACKed by the caller (Consumer.process).
		rc.logger.Warnw("reply with no waiter dropped", "request_id", requestID)
		return nil
	}

	q.Push(m)
	return nil
}

// Stop tears down the reply consumer and deletes its queue.
func (rc *ReplyConsumer) Stop(ctx context.Context) {
	rc.consumer.Stop()
	if err := rc.registry.DeleteQueue(ctx, rc.queueName); err != nil {
		rc.logger.Errorw("failed to delete reply queue", "queue", rc.queueName, "error", err)
	}
}
