package mqadapter

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// sqsSnsAlphabetMap is the fixed substitution table applied after namespace
// prefixing, since QSVC/TSVC disallow '.' in names (spec §3).
var sqsSnsAlphabetMap = map[rune]rune{'.': '-'}

func translate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if rep, ok := sqsSnsAlphabetMap[r]; ok {
			b.WriteRune(rep)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Registry caches queue name→URL and topic name→ARN lookups, applies the
// namespace prefix and alphabet translation, and supports cross-account
// queue URL resolution (spec §3, §4.5). Entries are write-once within a
// process lifetime (invariant I1); registries are not reused across Stop.
type Registry struct {
	client  QSVCClient
	tclient TSVCClient

	namespace    string
	kmsKeyID     string
	crossAccount map[string]string // originalQueueName -> accountID

	mu        sync.Mutex
	queueURLs map[string]string // FQN -> URL
	topicARNs map[string]string // FQN -> ARN
}

// NewRegistry constructs a Registry. crossAccount maps original (pre-FQN)
// queue names to the AWS account ID that owns them, as parsed from
// mq_aws_sqs_cross_account_mapping (spec §6).
func NewRegistry(client QSVCClient, tclient TSVCClient, namespace, kmsKeyID string, crossAccount map[string]string) *Registry {
	if crossAccount == nil {
		crossAccount = map[string]string{}
	}
	return &Registry{
		client:       client,
		tclient:      tclient,
		namespace:    namespace,
		kmsKeyID:     kmsKeyID,
		crossAccount: crossAccount,
		queueURLs:    map[string]string{},
		topicARNs:    map[string]string{},
	}
}

// fqn computes the fully qualified name: sqsSnsFQN(name) = translate(namespace
// + name). Idempotent when namespace is empty (P7): translate is itself
// idempotent since it only ever maps '.' to '-', and '-' is not remapped.
func (r *Registry) fqn(name string) string {
	return translate(r.namespace + name)
}

// QueueURL resolves name's URL. ok is false on a cache-miss-and-not-found
// (the caller decides whether that's fatal); err is non-nil only for an
// actual connection failure.
func (r *Registry) QueueURL(ctx context.Context, name string) (url string, ok bool, err error) {
	fqn := r.fqn(name)

	r.mu.Lock()
	if u, cached := r.queueURLs[fqn]; cached {
		r.mu.Unlock()
		return u, true, nil
	}
	r.mu.Unlock()

	// The cross-account map is keyed by the ORIGINAL queue name, not the FQN
	// (spec §9 flags a historical fqn/fwn mix-up here; this must stay keyed
	// on `name`, consulted fresh on every miss, never on the cache-hit path).
	owner := r.crossAccount[name]

	resolved, err := r.client.GetQueueURL(ctx, fqn, owner)
	if err != nil {
		if errors.Is(err, ErrQueueNotFound) {
			return "", false, nil
		}
		return "", false, ErrConnection.withDetail("get queue url: " + name).Context(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, cached := r.queueURLs[fqn]; cached {
		return existing, true, nil
	}
	r.queueURLs[fqn] = resolved
	return resolved, true, nil
}

// CreateQueue creates name (applying the configured KMS key if any) and
// inserts the result into the cache.
func (r *Registry) CreateQueue(ctx context.Context, name string) (string, error) {
	fqn := r.fqn(name)

	url, err := r.client.CreateQueue(ctx, fqn, r.kmsKeyID)
	if err != nil {
		return "", ErrConnection.withDetail("create queue: " + name).Context(err)
	}

	r.mu.Lock()
	if existing, cached := r.queueURLs[fqn]; cached {
		r.mu.Unlock()
		return existing, nil
	}
	r.queueURLs[fqn] = url
	r.mu.Unlock()
	return url, nil
}

// EnsureQueue resolves name's URL, creating the queue if it does not exist.
func (r *Registry) EnsureQueue(ctx context.Context, name string) (string, error) {
	if url, ok, err := r.QueueURL(ctx, name); err != nil {
		return "", err
	} else if ok {
		return url, nil
	}
	return r.CreateQueue(ctx, name)
}

// DeleteQueue deletes name's queue (if known) and evicts it from the cache.
func (r *Registry) DeleteQueue(ctx context.Context, name string) error {
	fqn := r.fqn(name)

	r.mu.Lock()
	url, ok := r.queueURLs[fqn]
	delete(r.queueURLs, fqn)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := r.client.DeleteQueue(ctx, url); err != nil {
		return ErrConnection.withDetail("delete queue: " + name).Context(err)
	}
	return nil
}

// TopicARN resolves name's ARN via a paginated topic scan, matching the
// first ARN whose suffix after the last ':' equals the FQN (spec §4.5).
func (r *Registry) TopicARN(ctx context.Context, name string) (arn string, ok bool, err error) {
	fqn := r.fqn(name)

	r.mu.Lock()
	if a, cached := r.topicARNs[fqn]; cached {
		r.mu.Unlock()
		return a, true, nil
	}
	r.mu.Unlock()

	topics, err := r.tclient.ListTopics(ctx)
	if err != nil {
		return "", false, ErrConnection.withDetail("list topics: " + name).Context(err)
	}

	for _, t := range topics {
		idx := strings.LastIndex(t.ARN, ":")
		if idx < 0 || t.ARN[idx+1:] != fqn {
			continue
		}

		r.mu.Lock()
		if existing, cached := r.topicARNs[fqn]; cached {
			r.mu.Unlock()
			return existing, true, nil
		}
		r.topicARNs[fqn] = t.ARN
		r.mu.Unlock()
		return t.ARN, true, nil
	}

	return "", false, nil
}

// CreateTopic creates name (applying the configured KMS key if any) and
// inserts the result into the cache.
func (r *Registry) CreateTopic(ctx context.Context, name string) (string, error) {
	fqn := r.fqn(name)

	arn, err := r.tclient.CreateTopic(ctx, fqn, r.kmsKeyID)
	if err != nil {
		return "", ErrConnection.withDetail("create topic: " + name).Context(err)
	}

	r.mu.Lock()
	if existing, cached := r.topicARNs[fqn]; cached {
		r.mu.Unlock()
		return existing, nil
	}
	r.topicARNs[fqn] = arn
	r.mu.Unlock()
	return arn, nil
}

// EnsureTopic resolves name's ARN, creating the topic if it does not exist.
func (r *Registry) EnsureTopic(ctx context.Context, name string) (string, error) {
	if arn, ok, err := r.TopicARN(ctx, name); err != nil {
		return "", err
	} else if ok {
		return arn, nil
	}
	return r.CreateTopic(ctx, name)
}

// Subscribe wires queueURL to receive topicARN's messages with raw message
// delivery enabled (spec §4.5): SNS must not JSON-wrap the body, since the
// adapter expects body and attributes to arrive at QSVC intact.
func (r *Registry) Subscribe(ctx context.Context, topicARN, queueURL string) error {
	queueARN, err := r.client.GetQueueArn(ctx, queueURL)
	if err != nil {
		return ErrConnection.withDetail("get queue arn").Context(err)
	}
	if err := r.tclient.Subscribe(ctx, topicARN, "sqs", queueARN, true); err != nil {
		return ErrConnection.withDetail("subscribe").Context(err)
	}
	return nil
}
