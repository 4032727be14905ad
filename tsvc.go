package mqadapter

import "context"

// TopicSummary is one entry from a (possibly paginated) topic listing.
type TopicSummary struct {
	ARN string
}

// TSVCClient is the set of TSVC (topic fan-out) operations the adapter
// requires (spec §6). Production code backs this with AWS SNS (awssns.go),
// tests back it with an in-memory fake (mqtesting).
type TSVCClient interface {
	// CreateTopic creates a topic named name. kmsKeyID, if non-empty, enables
	// server-side encryption at rest.
	CreateTopic(ctx context.Context, name, kmsKeyID string) (arn string, err error)
	// ListTopics returns every topic, with pagination handled internally by
	// the implementation.
	ListTopics(ctx context.Context) ([]TopicSummary, error)
	// Publish sends body with the given headers as string-typed message
	// attributes to the topic at topicARN.
	Publish(ctx context.Context, topicARN, body string, headers Headers) error
	// Subscribe wires endpoint (a QSVC queue ARN) to receive topicARN's
	// messages via protocol (always "sqs" in this adapter), with
	// RawMessageDelivery enabled so TSVC forwards body and attributes intact
	// rather than JSON-wrapping them (spec §4.5).
	Subscribe(ctx context.Context, topicARN, protocol, endpoint string, rawMessageDelivery bool) error
}
