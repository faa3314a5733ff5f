package runtime

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
	"github.com/bookmycomics/messaging/internal/runtime/jsoncodec"
	loggingpkg "github.com/bookmycomics/messaging/internal/runtime/logging"
)

// HandlerMiddleware wraps handler execution.
type HandlerMiddleware func(HandleFunc) HandleFunc

// MiddlewareBuilder constructs a handler middleware using the provided router.
// Returning a nil middleware skips the registration.
type MiddlewareBuilder func(*Router) (HandlerMiddleware, error)

// MiddlewareRegistration captures how a middleware should be registered on a Router.
type MiddlewareRegistration struct {
	Name       string
	Middleware HandlerMiddleware
	Builder    MiddlewareBuilder
}

// DefaultMiddlewares returns the standard middleware chain used by NewRouter.
// The first registration is the outermost wrapper.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		LogMessagesMiddleware(nil),
		TracerMiddleware(),
		MetricsMiddleware(),
		RecovererMiddleware(),
	}
}

// MetricsMiddleware records handler outcomes and durations on the router's
// RouterMetrics. It is skipped when the router has no metrics.
func MetricsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "metrics",
		Builder: func(r *Router) (HandlerMiddleware, error) {
			if r.metrics == nil {
				return nil, nil
			}
			return metricsMiddleware(r.metrics), nil
		},
	}
}

// LogMessagesMiddleware logs the payload of every handled event at debug level.
func LogMessagesMiddleware(logger loggingpkg.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_messages",
		Builder: func(r *Router) (HandlerMiddleware, error) {
			l := logger
			if l == nil {
				l = r.logger
			}
			if l == nil {
				return nil, errors.New("log messages middleware requires a logger")
			}
			return logMessagesMiddleware(l), nil
		},
	}
}

// TracerMiddleware wraps handler execution in an OpenTelemetry span. It is
// skipped unless tracing is enabled in the router configuration.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "tracer",
		Builder: func(r *Router) (HandlerMiddleware, error) {
			if !r.conf.TracingEnabled {
				return nil, nil
			}
			return tracerMiddleware(), nil
		},
	}
}

// RecovererMiddleware converts handler panics into HandlerPanicError values
// so the remaining handlers still run.
func RecovererMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "recoverer",
		Middleware: recovererMiddleware,
	}
}

// RegisterMiddleware attaches the supplied middleware to the router. It
// applies to invocations dispatched after the call returns.
func (r *Router) RegisterMiddleware(cfg MiddlewareRegistration) error {
	if r == nil {
		return errspkg.ErrRouterRequired
	}

	var mw HandlerMiddleware
	switch {
	case cfg.Middleware != nil:
		mw = cfg.Middleware
	case cfg.Builder != nil:
		var err error
		mw, err = cfg.Builder(r)
		if err != nil {
			return fmt.Errorf("middleware %s: %w", cfg.Name, err)
		}
	default:
		return errors.New("middleware registration requires Middleware or Builder")
	}

	if mw == nil {
		return nil
	}

	r.mwMu.Lock()
	r.middlewares = append(r.middlewares, mw)
	r.mwMu.Unlock()
	return nil
}

func recovererMiddleware(h HandleFunc) HandleFunc {
	return func(ev *Event) (reply any, err error) {
		defer func() {
			if p := recover(); p != nil {
				reply = nil
				err = &errspkg.HandlerPanicError{Value: p, Stack: string(debug.Stack())}
			}
		}()
		return h(ev)
	}
}

func logMessagesMiddleware(logger loggingpkg.ServiceLogger) HandlerMiddleware {
	return func(h HandleFunc) HandleFunc {
		return func(ev *Event) (any, error) {
			fields := loggingpkg.LogFields{
				"event_id": ev.ID,
				"channel":  ev.Channel,
				"tag":      ev.HandlerTag(),
			}
			if ev.Origin != "" {
				fields["origin"] = ev.Origin
			}
			if ev.Payload != nil {
				fields["payload"] = jsoncodec.Stringify(ev.Payload.Fields())
			}
			logger.Debug("Processing message", fields)
			return h(ev)
		}
	}
}

func metricsMiddleware(m *RouterMetrics) HandlerMiddleware {
	return func(h HandleFunc) HandleFunc {
		return func(ev *Event) (any, error) {
			start := time.Now()
			reply, err := h(ev)
			m.RecordHandler(ev.HandlerTag(), time.Since(start), err)
			return reply, err
		}
	}
}

func tracerMiddleware() HandlerMiddleware {
	return func(h HandleFunc) HandleFunc {
		return func(ev *Event) (any, error) {
			tracer := otel.Tracer("bmc-messaging")
			ctx, span := tracer.Start(
				ev.Context(),
				"HandleMessage",
				trace.WithSpanKind(trace.SpanKindConsumer),
			)
			defer span.End()
			ev.SetContext(ctx)

			span.SetAttributes(
				attribute.String("message.id", ev.ID),
				attribute.String("message.channel", string(ev.Channel)),
				attribute.String("message.origin", ev.Origin),
				attribute.String("handler.tag", ev.HandlerTag()),
			)
			if ev.Payload != nil {
				span.SetAttributes(attribute.String("message.type", ev.Payload.Type()))
			}

			reply, err := h(ev)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return reply, err
		}
	}
}
