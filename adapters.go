package mqadapter

import "context"

// HandlerFunc is the shape every Processor's underlying callback is reduced
// to for middleware purposes: act on a received Message, return nil to ACK,
// NACK(err) to request redelivery, or any other error to leave the message
// for QSVC-side visibility-timeout redelivery.
type HandlerFunc func(context.Context, *Message) error

// Middleware wraps a HandlerFunc with cross-cutting behavior, applied in the
// order passed to WithProcessorMiddleware (first listed runs outermost).
type Middleware func(HandlerFunc) HandlerFunc

func chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// WithRecovery recovers a panicking handler, logging via logger and turning
// the panic into a generic handler error so the triggering message is left
// for redelivery rather than crashing the worker.
func WithRecovery(logger Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, m *Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorw("handler panic recovered", "panic", r)
					err = ErrHandler.withDetail("panic")
				}
			}()
			return next(ctx, m)
		}
	}
}

// WithLogging logs the outcome of every handler invocation.
func WithLogging(logger Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, m *Message) error {
			err := next(ctx, m)
			switch {
			case err == nil:
				logger.Debugw("message handled", "queue", m.QueueURL)
			case IsNACK(err):
				logger.Warnw("message nacked", "queue", m.QueueURL, "error", err)
			default:
				logger.Errorw("message handler error", "queue", m.QueueURL, "error", err)
			}
			return err
		}
	}
}
