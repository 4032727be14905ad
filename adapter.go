package mqadapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sqs"
)

// Processor handles inbound traffic registered via StartRequestProcessor
// and StartEventProcessor(WithQueue): CallCommand and CallEvent are
// fire-and-forget, CallQuery returns a reply body (spec §4.3, §4.6).
type Processor interface {
	CallCommand(ctx context.Context, method string, msg *Message) error
	CallQuery(ctx context.Context, method string, msg *Message) (interface{}, error)
	CallEvent(ctx context.Context, eventType string, msg *Message) error
}

// CallOptions customizes a single Command/Query/Event call.
type CallOptions struct {
	// Timeout overrides Config.DefaultQueryTimeout for a single Query. Has
	// no effect on Command or Event.
	Timeout time.Duration
}

type processorOptions struct {
	middleware []Middleware
}

// ProcessorOption customizes a registered request/event processor.
type ProcessorOption func(*processorOptions)

// WithProcessorMiddleware adds middleware around a registered processor's
// handler invocation.
func WithProcessorMiddleware(mws ...Middleware) ProcessorOption {
	return func(o *processorOptions) { o.middleware = append(o.middleware, mws...) }
}

// Adapter is the top-level façade implementing Command/Query/Event over
// QSVC/TSVC (spec §4.6). One Adapter is built per process via New/Start.
type Adapter struct {
	cfg Config

	qsvc QSVCClient
	tsvc TSVCClient

	registry *Registry
	pool     *WorkerPool
	codec    Codec
	logger   Logger
	metrics  *Metrics

	mu         sync.Mutex
	started    bool
	reply      *ReplyConsumer
	consumers  []*Consumer
	autoQueues []string
}

// New validates cfg and constructs an unstarted Adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.Adapter == "" {
		return nil, ErrConfig.withDetail("Adapter (mq_adapter) is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	codec := cfg.Codec
	if codec == nil {
		codec = NewJSONCodec()
	}

	return &Adapter{
		cfg:    cfg,
		codec:  codec,
		logger: logger,
	}, nil
}

// Start opens the AWS session, builds QSVC/TSVC clients and the worker
// pool. The adapter's own reply consumer is not started here; it is created
// on the first Query. Start is not reentrant and must be called exactly once.
func (a *Adapter) Start(ctx context.Context) error {
	sessionProvider := a.cfg.SessionProvider
	if sessionProvider == nil {
		sessionProvider = NewSession
	}
	sess, err := sessionProvider(a.cfg)
	if err != nil {
		return ErrConfig.withDetail("aws session").Context(err)
	}

	sqsCfg := aws.NewConfig()
	if a.cfg.AWSSQSEndpoint != "" {
		sqsCfg = sqsCfg.WithEndpoint(a.cfg.AWSSQSEndpoint)
	}
	snsCfg := aws.NewConfig()
	if a.cfg.AWSSNSEndpoint != "" {
		snsCfg = snsCfg.WithEndpoint(a.cfg.AWSSNSEndpoint)
	}

	return a.StartWithClients(ctx, NewAWSQSVCClient(sqs.New(sess, sqsCfg)), NewAWSTSVCClient(sns.New(sess, snsCfg)))
}

// StartWithClients brings up the adapter against caller-supplied QSVC/TSVC
// clients, skipping AWS session construction entirely. This is the seam
// local emulator setups and tests use to inject in-memory or endpoint-bound
// clients instead of a real AWS account. Start is not reentrant and must be
// called exactly once.
func (a *Adapter) StartWithClients(ctx context.Context, qsvc QSVCClient, tsvc TSVCClient) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return ErrConfig.withDetail("adapter already started")
	}

	a.qsvc = qsvc
	a.tsvc = tsvc

	crossAccount, err := a.cfg.parseCrossAccountMapping()
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.registry = NewRegistry(a.qsvc, a.tsvc, a.cfg.Namespace, a.cfg.AWSKMSMasterKeyID, crossAccount)

	var metrics *Metrics
	if a.cfg.MetricsRegisterer != nil {
		metrics = NewMetrics(a.cfg.MetricsRegisterer)
	} else {
		metrics = NewMetrics(nil)
	}
	a.metrics = metrics

	a.pool = NewWorkerPool(a.cfg.WorkerPoolMinThreads, a.cfg.WorkerPoolMaxThreads, a.cfg.WorkerPoolMaxBacklog, metrics)

	a.started = true
	a.mu.Unlock()

	// Availability check: a no-op queue and topic lookup, so a misconfigured
	// endpoint or credentials surfaces here rather than on the first
	// Command/Query (spec §4.6).
	if err := a.Ping(ctx); err != nil {
		return err
	}
	return nil
}

// Ping performs the no-op queue and topic lookup spec §4.6 requires Start to
// run: listing topics exercises the TSVC connection, and resolving a queue
// name that need not exist exercises the QSVC connection, without mutating
// any state. Any failure other than ErrQueueNotFound (a well-formed "not
// found" response still proves QSVC answered) surfaces as a connection
// error.
func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.Lock()
	qsvc := a.qsvc
	tsvc := a.tsvc
	a.mu.Unlock()
	if qsvc == nil || tsvc == nil {
		return ErrConfig.withDetail("adapter not started")
	}

	if _, err := tsvc.ListTopics(ctx); err != nil {
		return ErrConnection.withDetail("ping: list topics").Context(err)
	}

	if _, err := qsvc.GetQueueURL(ctx, "__mqadapter_ping__", ""); err != nil && !errors.Is(err, ErrQueueNotFound) {
		return ErrConnection.withDetail("ping: get queue url").Context(err)
	}
	return nil
}

// StopAllProcessors signals and joins every registered request/event
// processor and the reply consumer, and tears down auto-created event
// queues (spec §2 item 6, §4.6, §9). It leaves the worker pool running, so
// it can also be used on its own to tear down processors without shutting
// the whole adapter down.
func (a *Adapter) StopAllProcessors(ctx context.Context) {
	a.mu.Lock()
	consumers := a.consumers
	reply := a.reply
	autoQueues := a.autoQueues
	registry := a.registry
	a.consumers = nil
	a.reply = nil
	a.autoQueues = nil
	a.mu.Unlock()

	// Signal every consumer before joining any of them: total stop latency
	// is then bounded by one long-poll interval, not the sum of all of them.
	for _, c := range consumers {
		c.SignalStop()
	}
	for _, c := range consumers {
		c.Stop()
	}

	for _, name := range autoQueues {
		if err := registry.DeleteQueue(ctx, name); err != nil {
			a.logger.Errorw("failed to delete auto-created queue", "queue", name, "error", err)
		}
	}

	if reply != nil {
		reply.Stop(ctx)
	}
}

// Stop stops all processors and shuts down the worker pool (spec §4.6, §9).
func (a *Adapter) Stop(ctx context.Context) {
	a.StopAllProcessors(ctx)

	a.mu.Lock()
	pool := a.pool
	a.mu.Unlock()
	if pool != nil {
		pool.Shutdown()
	}
}

func (a *Adapter) ensureReplyConsumer(ctx context.Context) (*ReplyConsumer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reply != nil {
		return a.reply, nil
	}

	rc, err := newReplyConsumer(ctx, a.registry, a.qsvc, a.cfg.replyQueuePrefix(), a.logger, a.codec, a.cfg.readTimeout())
	if err != nil {
		return nil, err
	}
	a.reply = rc
	return rc, nil
}

// Command sends a fire-and-forget message to "<queue>/<method>" (spec §3,
// §4.6). The queue is created on first use if it does not already exist.
func (a *Adapter) Command(ctx context.Context, target string, body interface{}) error {
	queue, method, err := splitCommandTarget(target)
	if err != nil {
		return err
	}

	encoded, err := a.codec.Marshal(body)
	if err != nil {
		return ErrConfig.withDetail("marshal command body").Context(err)
	}

	url, err := a.registry.EnsureQueue(ctx, queue)
	if err != nil {
		return err
	}

	headers := Headers{
		HeaderMethod:    method,
		headerMessageID: randomHex16(),
	}
	if err := a.qsvc.SendMessage(ctx, url, string(encoded), headers); err != nil {
		return ErrConnection.withDetail("send command: " + target).Context(err)
	}
	return nil
}

// Query sends a request to "<queue>/<method>" and blocks for a reply up to
// opts.Timeout (or Config.DefaultQueryTimeout), per spec §4.4.
func (a *Adapter) Query(ctx context.Context, target string, body interface{}, opts ...CallOptions) (*Message, error) {
	queue, method, err := splitCommandTarget(target)
	if err != nil {
		return nil, err
	}

	timeout := a.cfg.defaultQueryTimeout()
	for _, o := range opts {
		if o.Timeout > 0 {
			timeout = o.Timeout
		}
	}

	reply, err := a.ensureReplyConsumer(ctx)
	if err != nil {
		return nil, err
	}

	encoded, err := a.codec.Marshal(body)
	if err != nil {
		return nil, ErrConfig.withDetail("marshal query body").Context(err)
	}

	url, err := a.registry.EnsureQueue(ctx, queue)
	if err != nil {
		return nil, err
	}

	requestID := randomHex16()
	waiter := reply.RegisterRequestID(requestID)

	headers := Headers{
		HeaderMethod:        method,
		HeaderRequestID:     requestID,
		HeaderReplyQueueURL: reply.QueueURL(),
		headerMessageID:     randomHex16(),
	}
	if err := a.qsvc.SendMessage(ctx, url, string(encoded), headers); err != nil {
		reply.Forget(requestID)
		return nil, ErrConnection.withDetail("send query: " + target).Context(err)
	}

	msg, err := waiter.Pop(true, timeout)
	if err != nil {
		reply.Forget(requestID)
		if a.metrics != nil {
			a.metrics.queryTimeouts.Inc()
		}
		return nil, ErrTimeout.withDetail(target)
	}
	return msg, nil
}

// Event publishes to "<topic>#<event_type>" (spec §3, §4.5). The topic is
// created on first use if it does not already exist.
func (a *Adapter) Event(ctx context.Context, target string, body interface{}) error {
	topic, eventType, err := splitEventTarget(target)
	if err != nil {
		return err
	}

	encoded, err := a.codec.Marshal(body)
	if err != nil {
		return ErrConfig.withDetail("marshal event body").Context(err)
	}

	arn, err := a.registry.EnsureTopic(ctx, topic)
	if err != nil {
		return err
	}

	headers := Headers{
		HeaderEventType: eventType,
		headerMessageID: randomHex16(),
	}
	if err := a.tsvc.Publish(ctx, arn, string(encoded), headers); err != nil {
		return ErrConnection.withDetail("publish event: " + target).Context(err)
	}
	return nil
}

// StartRequestProcessor consumes queueName, dispatching each message to
// processor.CallCommand or processor.CallQuery depending on whether the
// message carries a __reply_queue_url header (spec §4.3).
func (a *Adapter) StartRequestProcessor(ctx context.Context, queueName string, processor Processor, opts ...ProcessorOption) error {
	var po processorOptions
	for _, o := range opts {
		o(&po)
	}

	url, err := a.registry.EnsureQueue(ctx, queueName)
	if err != nil {
		return err
	}

	handler := chain(func(ctx context.Context, m *Message) error {
		method := m.Method()
		if replyURL := m.Headers.Get(HeaderReplyQueueURL); replyURL != "" {
			result, err := processor.CallQuery(ctx, method, m)
			if err != nil {
				return err
			}
			a.deliverReply(ctx, replyURL, m.RequestID(), result)
			return nil
		}
		return processor.CallCommand(ctx, method, m)
	}, po.middleware...)

	c := NewConsumer(a.qsvc, url, a.pool, handler,
		withLogger(a.logger),
		withCodec(a.codec),
		withQueueName(queueName),
		withMetrics(a.metrics),
		withReadTimeout(a.cfg.readTimeout()),
		withNackVisibility(a.cfg.nackVisibility()),
	)

	a.mu.Lock()
	a.consumers = append(a.consumers, c)
	a.mu.Unlock()

	c.Start(ctx)
	return nil
}

// deliverReply always returns having logged any failure: a broken reply
// send must not prevent the original request from being ACKed, since the
// caller will simply observe a Query timeout (spec §7).
func (a *Adapter) deliverReply(ctx context.Context, replyURL, requestID string, result interface{}) {
	encoded, err := a.codec.Marshal(result)
	if err != nil {
		a.logger.Errorw("failed to marshal query reply", "error", err)
		return
	}

	headers := Headers{
		HeaderRequestID: requestID,
		headerMessageID: randomHex16(),
	}
	if err := a.qsvc.SendMessage(ctx, replyURL, string(encoded), headers); err != nil {
		a.logger.Errorw("failed to send query reply", "error", err)
	}
}

// StartEventProcessorWithQueue subscribes queueName to topicName and
// dispatches each delivered event to processor.CallEvent (spec §4.5).
func (a *Adapter) StartEventProcessorWithQueue(ctx context.Context, topicName, queueName string, processor Processor, opts ...ProcessorOption) error {
	var po processorOptions
	for _, o := range opts {
		o(&po)
	}

	arn, err := a.registry.EnsureTopic(ctx, topicName)
	if err != nil {
		return err
	}
	url, err := a.registry.EnsureQueue(ctx, queueName)
	if err != nil {
		return err
	}
	if err := a.registry.Subscribe(ctx, arn, url); err != nil {
		return err
	}

	handler := chain(func(ctx context.Context, m *Message) error {
		return processor.CallEvent(ctx, m.EventType(), m)
	}, po.middleware...)

	c := NewConsumer(a.qsvc, url, a.pool, handler,
		withLogger(a.logger),
		withCodec(a.codec),
		withQueueName(queueName),
		withMetrics(a.metrics),
		withReadTimeout(a.cfg.readTimeout()),
		withNackVisibility(a.cfg.nackVisibility()),
	)

	a.mu.Lock()
	a.consumers = append(a.consumers, c)
	a.mu.Unlock()

	c.Start(ctx)
	return nil
}

// StartEventProcessor subscribes to topicName via a private, auto-created
// queue, torn down on Stop (spec §9 open question: implemented rather than
// rejected). The queue name is derived from the topic plus a random 16-hex
// suffix, so repeated restarts within the same process don't collide.
func (a *Adapter) StartEventProcessor(ctx context.Context, topicName string, processor Processor, opts ...ProcessorOption) error {
	queueName := fmt.Sprintf("%sevt-%s-%s", a.cfg.replyQueuePrefix(), topicName, randomHex16())

	if err := a.StartEventProcessorWithQueue(ctx, topicName, queueName, processor, opts...); err != nil {
		return err
	}

	a.mu.Lock()
	a.autoQueues = append(a.autoQueues, queueName)
	a.mu.Unlock()
	return nil
}
