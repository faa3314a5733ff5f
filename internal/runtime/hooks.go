package runtime

import (
	"context"
	"time"

	loggingpkg "github.com/bookmycomics/messaging/internal/runtime/logging"
)

// HandlerContext provides information about one handler invocation to hooks.
type HandlerContext struct {
	// HandlerTag is the tag the handler was registered with.
	HandlerTag string
	// EventID is the identifier assigned to the inbound event.
	EventID string
	// Channel is the transport the event arrived on.
	Channel Channel
	// Origin is the frame origin, empty for runtime events.
	Origin string
	// Context is the event context.
	Context context.Context
	// StartedAt is when the handler started.
	StartedAt time.Time
	// Duration is how long the handler took (only set in OnHandlerDone and OnHandlerError).
	Duration time.Duration
}

// DispatchHooks defines callbacks for handler and event lifecycle events.
// All hooks are optional - nil hooks are simply not called.
type DispatchHooks struct {
	// OnHandlerStart is called before a matching handler is invoked.
	OnHandlerStart func(ctx HandlerContext)

	// OnHandlerDone is called when a handler returns without error.
	OnHandlerDone func(ctx HandlerContext)

	// OnHandlerError is called when a handler returns an error or panics.
	OnHandlerError func(ctx HandlerContext, err error)

	// OnDelivered is called once per event that reached the handler stage.
	OnDelivered func(result DeliveryResult)

	// OnRejected is called once per event dropped before the handler stage.
	OnRejected func(result DeliveryResult)
}

// Merge combines two DispatchHooks. The hooks from 'other' are called after
// the hooks from 'h'.
func (h DispatchHooks) Merge(other DispatchHooks) DispatchHooks {
	return DispatchHooks{
		OnHandlerStart: chainHooks(h.OnHandlerStart, other.OnHandlerStart),
		OnHandlerDone:  chainHooks(h.OnHandlerDone, other.OnHandlerDone),
		OnHandlerError: chainErrorHooks(h.OnHandlerError, other.OnHandlerError),
		OnDelivered:    chainHooks(h.OnDelivered, other.OnDelivered),
		OnRejected:     chainHooks(h.OnRejected, other.OnRejected),
	}
}

func (h DispatchHooks) hasHandlerHooks() bool {
	return h.OnHandlerStart != nil || h.OnHandlerDone != nil || h.OnHandlerError != nil
}

func chainHooks[T any](a, b func(T)) func(T) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(v T) {
		a(v)
		b(v)
	}
}

func chainErrorHooks(a, b func(HandlerContext, error)) func(HandlerContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx HandlerContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// DispatchHooksMiddleware creates a middleware that invokes the handler
// hooks around every handler invocation.
func DispatchHooksMiddleware(hooks DispatchHooks) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "dispatch_hooks",
		Builder: func(*Router) (HandlerMiddleware, error) {
			if !hooks.hasHandlerHooks() {
				return nil, nil
			}
			return dispatchHooksMiddleware(hooks), nil
		},
	}
}

func dispatchHooksMiddleware(hooks DispatchHooks) HandlerMiddleware {
	return func(h HandleFunc) HandleFunc {
		return func(ev *Event) (any, error) {
			hctx := HandlerContext{
				HandlerTag: ev.HandlerTag(),
				EventID:    ev.ID,
				Channel:    ev.Channel,
				Origin:     ev.Origin,
				Context:    ev.Context(),
				StartedAt:  time.Now(),
			}

			if hooks.OnHandlerStart != nil {
				hooks.OnHandlerStart(hctx)
			}

			reply, err := h(ev)
			hctx.Duration = time.Since(hctx.StartedAt)

			if err != nil {
				if hooks.OnHandlerError != nil {
					hooks.OnHandlerError(hctx, err)
				}
			} else if hooks.OnHandlerDone != nil {
				hooks.OnHandlerDone(hctx)
			}
			return reply, err
		}
	}
}

// LoggingHooks returns pre-built hooks that log handler and event lifecycle
// events.
func LoggingHooks(logger loggingpkg.ServiceLogger) DispatchHooks {
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	return DispatchHooks{
		OnHandlerStart: func(ctx HandlerContext) {
			logger.Debug("Handler started", loggingpkg.LogFields{
				"tag":      ctx.HandlerTag,
				"channel":  ctx.Channel,
				"event_id": ctx.EventID,
			})
		},
		OnHandlerDone: func(ctx HandlerContext) {
			logger.Debug("Handler completed", loggingpkg.LogFields{
				"tag":         ctx.HandlerTag,
				"channel":     ctx.Channel,
				"event_id":    ctx.EventID,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
		OnHandlerError: func(ctx HandlerContext, err error) {
			logger.Error("Handler failed", err, loggingpkg.LogFields{
				"tag":         ctx.HandlerTag,
				"channel":     ctx.Channel,
				"event_id":    ctx.EventID,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
		OnRejected: func(result DeliveryResult) {
			logger.Debug("Event rejected", loggingpkg.LogFields{
				"channel":  result.Channel,
				"event_id": result.EventID,
				"origin":   result.Origin,
				"reason":   result.Reason,
			})
		},
	}
}

// MetricsHooks returns pre-built hooks that report handler outcomes.
func MetricsHooks(onStart, onDone, onError func(tag string, ch Channel)) DispatchHooks {
	return DispatchHooks{
		OnHandlerStart: func(ctx HandlerContext) {
			if onStart != nil {
				onStart(ctx.HandlerTag, ctx.Channel)
			}
		},
		OnHandlerDone: func(ctx HandlerContext) {
			if onDone != nil {
				onDone(ctx.HandlerTag, ctx.Channel)
			}
		},
		OnHandlerError: func(ctx HandlerContext, _ error) {
			if onError != nil {
				onError(ctx.HandlerTag, ctx.Channel)
			}
		},
	}
}

// AlertingHooks returns pre-built hooks that trigger alerts on handler errors.
func AlertingHooks(alertFunc func(ctx HandlerContext, err error)) DispatchHooks {
	return DispatchHooks{
		OnHandlerError: alertFunc,
	}
}
