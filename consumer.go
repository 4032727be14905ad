package mqadapter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Consumer long-polls a single queue and dispatches received messages to a
// handler, optionally through a shared WorkerPool (spec §4.3). A Consumer
// with a nil pool runs its handler inline on the receive goroutine; this is
// used for the reply consumer so a saturated worker pool never starves
// Query dispatch (spec §4.4).
type Consumer struct {
	client   QSVCClient
	queueURL string
	pool     *WorkerPool
	handler  HandlerFunc

	logger         Logger
	codec          Codec
	metrics        *Metrics
	queueName      string
	readTimeout    time.Duration
	nackVisibility time.Duration

	stopRequested int32
	done          chan struct{}
	wg            sync.WaitGroup
}

type consumerOption func(*Consumer)

func withLogger(l Logger) consumerOption          { return func(c *Consumer) { c.logger = l } }
func withCodec(cd Codec) consumerOption           { return func(c *Consumer) { c.codec = cd } }
func withQueueName(n string) consumerOption       { return func(c *Consumer) { c.queueName = n } }
func withMetrics(m *Metrics) consumerOption       { return func(c *Consumer) { c.metrics = m } }
func withReadTimeout(d time.Duration) consumerOption {
	return func(c *Consumer) { c.readTimeout = d }
}
func withNackVisibility(d time.Duration) consumerOption {
	return func(c *Consumer) { c.nackVisibility = d }
}

// NewConsumer constructs a Consumer. pool may be nil for inline dispatch.
func NewConsumer(client QSVCClient, queueURL string, pool *WorkerPool, handler HandlerFunc, opts ...consumerOption) *Consumer {
	c := &Consumer{
		client:         client,
		queueURL:       queueURL,
		pool:           pool,
		handler:        handler,
		logger:         NewNopLogger(),
		codec:          NewJSONCodec(),
		readTimeout:    20 * time.Second,
		nackVisibility: time.Second,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins the long-poll receive loop in a background goroutine.
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.loop(ctx)
}

// SignalStop requests the receive loop exit after its current long-poll
// call returns, without waiting. Part of the two-phase shutdown in spec
// §4.3/§9: StopAllProcessors signals every consumer first, then joins them,
// so total stop time is bounded by one long-poll interval rather than the
// sum of all consumers' intervals.
func (c *Consumer) SignalStop() {
	atomic.StoreInt32(&c.stopRequested, 1)
}

// Stop signals and waits for the receive loop to exit.
func (c *Consumer) Stop() {
	c.SignalStop()
	<-c.done
	c.wg.Wait()
}

func (c *Consumer) loop(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.done)

	for atomic.LoadInt32(&c.stopRequested) == 0 {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.client.ReceiveMessage(ctx, c.queueURL, c.readTimeout)
		if err != nil {
			c.logger.Errorw("receive message failed", "queue", c.queueName, "error", err)
			continue
		}

		// QSVC is asked for at most one message per call (spec §4.3); a
		// larger batch is handled defensively rather than dropped.
		for _, qm := range msgs {
			c.handle(ctx, qm)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, qm QueueMessage) {
	msg := newMessage([]byte(qm.Body), qm.Headers, qm.ReceiptHandle, c.queueURL, c.codec)

	run := func(ctx context.Context) {
		c.process(ctx, msg)
	}

	if c.pool == nil {
		run(ctx)
		return
	}

	if err := c.pool.Submit(ctx, run); err != nil {
		// Backlog full or pool closed: NACK immediately so QSVC redelivers
		// soon instead of waiting out the full visibility timeout.
		c.logger.Warnw("worker pool rejected message, nacking", "queue", c.queueName, "error", err)
		c.count("reject")
		c.nack(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg *Message) {
	err := c.handler(ctx, msg)
	switch {
	case err == nil:
		c.ack(ctx, msg)
	case IsNACK(err):
		c.nack(ctx, msg)
	default:
		// Neither ack nor nack: left for QSVC-side visibility-timeout
		// redelivery, avoiding a tight poison-message thrash loop.
		c.logger.Errorw("handler error, leaving for redelivery", "queue", c.queueName, "error", err)
		c.count("error")
	}
}

func (c *Consumer) ack(ctx context.Context, msg *Message) {
	if err := c.client.DeleteMessage(ctx, c.queueURL, msg.ReceiptHandle); err != nil {
		c.logger.Errorw("ack (delete) failed", "queue", c.queueName, "error", err)
		return
	}
	c.count("ack")
}

func (c *Consumer) nack(ctx context.Context, msg *Message) {
	if err := c.client.ChangeMessageVisibility(ctx, c.queueURL, msg.ReceiptHandle, c.nackVisibility); err != nil {
		c.logger.Errorw("nack (change visibility) failed", "queue", c.queueName, "error", err)
		return
	}
	c.count("nack")
}

func (c *Consumer) count(outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.messages.WithLabelValues(c.queueName, outcome).Inc()
}
