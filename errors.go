package mqadapter

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrorKind classifies the error taxonomy this adapter surfaces to callers.
type ErrorKind string

const (
	// KindConfig covers invalid target syntax and missing required configuration.
	KindConfig ErrorKind = "config"
	// KindConnection covers any QSVC/TSVC SDK-level failure: create, lookup, send,
	// receive, subscribe, delete.
	KindConnection ErrorKind = "connection"
	// KindTimeout covers a Query that exceeded its deadline.
	KindTimeout ErrorKind = "timeout"
	// KindHandler covers a request-processor or event-processor failure that is
	// neither a success nor an explicit NACK.
	KindHandler ErrorKind = "handler"
)

// Error is the adapter's typed error. It carries a Kind so callers can branch
// on the taxonomy in spec §7 with errors.As, and an optional detail string and
// wrapped cause for diagnostics.
type Error struct {
	Kind   ErrorKind
	Msg    string
	Detail string
	cause  error
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// NewError constructs a new Error of the given kind.
func NewError(kind ErrorKind, msg string) *Error {
	return newError(kind, msg)
}

func (e *Error) Error() string {
	s := fmt.Sprintf("mqadapter: %s: %s", e.Kind, e.Msg)
	if e.Detail != "" {
		s = fmt.Sprintf("%s (%s)", s, e.Detail)
	}
	if e.cause != nil {
		s = fmt.Sprintf("%s: %s", s, e.cause.Error())
	}
	return s
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause, including
// causes wrapped with github.com/pkg/errors upstream.
func (e *Error) Unwrap() error {
	return e.cause
}

// Context attaches the underlying SDK/codec error that triggered this Error,
// preserving a stack trace via pkg/errors so the cause remains inspectable.
// Mirrors the teacher's SQSError.Context pattern.
func (e *Error) Context(err error) *Error {
	if err == nil {
		return e
	}
	cp := *e
	cp.cause = pkgerrors.WithStack(err)
	return &cp
}

func (e *Error) withDetail(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithDetail attaches a detail string, e.g. a target or queue name, for
// callers outside the package constructing their own Error values.
func (e *Error) WithDetail(detail string) *Error {
	return e.withDetail(detail)
}

// Is lets errors.Is(err, ErrConnection) match any *Error sharing its Kind,
// without requiring identical Detail/cause.
func (e *Error) Is(target error) bool {
	var te *Error
	if !errors.As(target, &te) {
		return false
	}
	return e.Kind == te.Kind
}

// Sentinel errors for the taxonomy in spec §7.
var (
	ErrConfig      = newError(KindConfig, "configuration error")
	ErrConnection  = newError(KindConnection, "connection error")
	ErrTimeout     = newError(KindTimeout, "query timed out")
	ErrHandler     = newError(KindHandler, "handler error")
	ErrQueueNotFound = errors.New("mqadapter: queue does not exist")
	ErrPoolClosed    = errors.New("mqadapter: worker pool is shut down")
	ErrPoolSaturated = errors.New("mqadapter: worker pool backlog is full")
)

// nackError is the typed sentinel a handler returns to request redelivery
// instead of deletion (ACK) or silent retry-after-visibility-timeout.
type nackError struct {
	cause error
}

// NACK wraps err (which may be nil) as a request to redeliver the message.
// A Consumer observing a NACK resets the message's visibility timeout rather
// than deleting it or leaving it untouched.
func NACK(err error) error {
	return &nackError{cause: err}
}

func (e *nackError) Error() string {
	if e.cause == nil {
		return "mqadapter: handler requested redelivery (nack)"
	}
	return fmt.Sprintf("mqadapter: handler requested redelivery (nack): %s", e.cause.Error())
}

func (e *nackError) Unwrap() error {
	return e.cause
}

// IsNACK reports whether err (or something it wraps) was produced by NACK.
func IsNACK(err error) bool {
	var n *nackError
	return errors.As(err, &n)
}
