package mqadapter

import (
	"context"
	"time"
)

// QueueMessage is a single message as received from QSVC: body plus
// string-typed attributes plus a receipt handle.
type QueueMessage struct {
	Body          string
	Headers       Headers
	ReceiptHandle string
}

// QSVCClient is the set of QSVC (point-to-point queue) operations the
// adapter requires (spec §6). The QSVC client itself is an external
// collaborator; production code backs this with AWS SQS (awssqs.go), tests
// back it with an in-memory fake (mqtesting).
type QSVCClient interface {
	// CreateQueue creates a queue named name. kmsKeyID, if non-empty, enables
	// server-side encryption at rest.
	CreateQueue(ctx context.Context, name, kmsKeyID string) (url string, err error)
	// GetQueueURL resolves name to a URL. ownerAccountID, if non-empty, is
	// passed through for cross-account lookups. Returns an error wrapping
	// ErrQueueNotFound (checkable via errors.Is) when the queue does not
	// exist; any other error is a connection error.
	GetQueueURL(ctx context.Context, name, ownerAccountID string) (url string, err error)
	// DeleteQueue deletes the queue at url.
	DeleteQueue(ctx context.Context, url string) error
	// ReceiveMessage long-polls for at most one message, waiting up to
	// waitTime. Returns a nil/empty slice on long-poll expiry.
	ReceiveMessage(ctx context.Context, url string, waitTime time.Duration) ([]QueueMessage, error)
	// SendMessage sends body with the given headers as string-typed message
	// attributes.
	SendMessage(ctx context.Context, url string, body string, headers Headers) error
	// DeleteMessage ACKs a message by deleting it.
	DeleteMessage(ctx context.Context, url, receiptHandle string) error
	// ChangeMessageVisibility NACKs a message by resetting its visibility
	// timeout so it becomes available for redelivery sooner.
	ChangeMessageVisibility(ctx context.Context, url, receiptHandle string, timeout time.Duration) error
	// GetQueueArn resolves the ARN of the queue at url, needed for Subscribe.
	GetQueueArn(ctx context.Context, url string) (string, error)
}
