package mqadapter

import "strings"

// Reserved header keys (double-underscore prefix) that drive the protocol
// (spec §3). Header decoding uses plain strings rather than symbolized keys,
// per the Design Notes in spec §9.
const (
	HeaderMethod        = "__method"
	HeaderEventType     = "__event_type"
	HeaderRequestID     = "__request_id"
	HeaderReplyQueueURL = "__reply_queue_url"

	// headerMessageID is an internal, non-reserved tracing aid (SPEC_FULL §3):
	// it is not consulted by any component and callers may ignore it.
	headerMessageID = "__message_id"
)

// Headers is the wire-level mapping from short identifier keys to string
// values, transported as QSVC/TSVC message attributes (spec §3).
type Headers map[string]string

// Get returns the header value for key, or "" if absent.
func (h Headers) Get(key string) string {
	return h[key]
}

// Message is the envelope the adapter hands to handlers and processors: an
// opaque body (decodable via the injected Codec) plus headers.
type Message struct {
	Headers       Headers
	ReceiptHandle string
	QueueURL      string

	body  []byte
	codec Codec
}

func newMessage(body []byte, headers Headers, receiptHandle, queueURL string, codec Codec) *Message {
	if headers == nil {
		headers = Headers{}
	}
	return &Message{
		Headers:       headers,
		ReceiptHandle: receiptHandle,
		QueueURL:      queueURL,
		body:          body,
		codec:         codec,
	}
}

// Decode unmarshals the message body into out using the adapter's codec.
func (m *Message) Decode(out interface{}) error {
	if m.codec == nil {
		return NewError(KindConfig, "message has no codec attached")
	}
	return m.codec.Unmarshal(m.body, out)
}

// Method returns the __method header, set on Command/Query messages.
func (m *Message) Method() string { return m.Headers[HeaderMethod] }

// EventType returns the __event_type header, set on Event messages.
func (m *Message) EventType() string { return m.Headers[HeaderEventType] }

// RequestID returns the __request_id header, set on Query messages and their
// replies.
func (m *Message) RequestID() string { return m.Headers[HeaderRequestID] }

// splitCommandTarget parses a Command/Query target of the form
// "<queue>/<method>" (spec §3).
func splitCommandTarget(target string) (queue, method string, err error) {
	i := strings.IndexByte(target, '/')
	if i < 0 || i == 0 || i == len(target)-1 {
		return "", "", NewError(KindConfig, "invalid command/query target, expected <queue>/<method>").withDetail(target)
	}
	return target[:i], target[i+1:], nil
}

// splitEventTarget parses an Event target of the form "<topic>#<event_type>"
// (spec §3).
func splitEventTarget(target string) (topic, eventType string, err error) {
	i := strings.IndexByte(target, '#')
	if i < 0 || i == 0 || i == len(target)-1 {
		return "", "", NewError(KindConfig, "invalid event target, expected <topic>#<event_type>").withDetail(target)
	}
	return target[:i], target[i+1:], nil
}
