package runtime

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	configpkg "github.com/bookmycomics/messaging/internal/runtime/config"
	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
	idspkg "github.com/bookmycomics/messaging/internal/runtime/ids"
	"github.com/bookmycomics/messaging/internal/runtime/jsoncodec"
	loggingpkg "github.com/bookmycomics/messaging/internal/runtime/logging"
	"github.com/bookmycomics/messaging/internal/runtime/payload"
	"github.com/bookmycomics/messaging/internal/runtime/transport"
)

// RouterDependencies carries the collaborators of a Router.
type RouterDependencies struct {
	// Host provides the frame and runtime channels. Required.
	Host transport.Host
	// Middlewares are registered after the defaults, so they run inside them.
	Middlewares []MiddlewareRegistration
	// Hooks observe handler invocations and event outcomes.
	Hooks DispatchHooks
	// Metrics overrides the collector created when MetricsEnabled is set.
	Metrics *RouterMetrics
	// DisableDefaultMiddlewares skips DefaultMiddlewares.
	DisableDefaultMiddlewares bool
}

// Router dispatches inbound frame and runtime messages to the handlers of
// its Registry. It attaches to the host lazily, on the first registration,
// and never more than once.
type Router struct {
	conf      *configpkg.Config
	logger    loggingpkg.ServiceLogger
	codes     *loggingpkg.CodeLogger
	host      transport.Host
	registry  *Registry
	validator OriginValidator
	hooks     DispatchHooks
	metrics   *RouterMetrics

	mwMu        sync.RWMutex
	middlewares []HandlerMiddleware

	subscribeOnce sync.Once
	subscribeErr  error
	subscribed    atomic.Bool

	unsubMu     sync.Mutex
	unsubscribe []transport.Unsubscribe
}

// NewRouter validates conf and builds a router over deps.Host.
func NewRouter(conf *configpkg.Config, logger loggingpkg.ServiceLogger, deps RouterDependencies) (*Router, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if deps.Host == nil {
		return nil, errspkg.ErrHostRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	r := &Router{
		conf:      conf,
		logger:    logger.With(loggingpkg.LogFields{"component": "router"}),
		host:      deps.Host,
		registry:  NewRegistry(),
		validator: NewOriginValidator(conf.ExtensionBaseURL, conf.TrustedFrameOrigin),
		hooks:     deps.Hooks,
		metrics:   deps.Metrics,
	}
	r.codes = loggingpkg.NewCodeLogger(r.logger)

	if r.metrics == nil && conf.MetricsEnabled {
		r.metrics = NewRouterMetrics(nil)
	}
	if r.metrics != nil {
		if err := r.metrics.Register(); err != nil {
			return nil, fmt.Errorf("register router metrics: %w", err)
		}
	}

	var registrations []MiddlewareRegistration
	if r.hooks.hasHandlerHooks() {
		registrations = append(registrations, DispatchHooksMiddleware(r.hooks))
	}
	if !deps.DisableDefaultMiddlewares {
		registrations = append(registrations, DefaultMiddlewares()...)
	}
	registrations = append(registrations, deps.Middlewares...)
	for _, reg := range registrations {
		if err := r.RegisterMiddleware(reg); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// RegisterHandler adds a handler and, on the first call, attaches the router
// to both host channels. The handler stays registered when attaching fails.
func (r *Router) RegisterHandler(tag string, sel SelectFunc, handle HandleFunc) error {
	if _, err := r.registry.Add(tag, sel, handle); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.SetRegisteredHandlers(r.registry.Len())
	}
	return r.subscribe()
}

// UnregisterByTag removes every handler registered under tag and reports how
// many were removed. The host subscription is kept.
func (r *Router) UnregisterByTag(tag string) int {
	removed := r.registry.RemoveByTag(tag)
	if removed > 0 && r.metrics != nil {
		r.metrics.SetRegisteredHandlers(r.registry.Len())
	}
	return removed
}

func (r *Router) subscribe() error {
	r.subscribeOnce.Do(func() {
		stopFrames, err := r.host.Frames().Listen(r.onFrame)
		if err != nil {
			r.subscribeErr = fmt.Errorf("listen on frame channel: %w", err)
			return
		}
		stopRuntime, err := r.host.Runtime().Listen(r.onRuntime)
		if err != nil {
			stopFrames()
			r.subscribeErr = fmt.Errorf("listen on runtime channel: %w", err)
			return
		}

		r.unsubMu.Lock()
		r.unsubscribe = append(r.unsubscribe, stopFrames, stopRuntime)
		r.unsubMu.Unlock()
		r.subscribed.Store(true)
		r.logger.Debug("Router attached to host", nil)
	})
	return r.subscribeErr
}

func (r *Router) onFrame(ev transport.FrameEvent) {
	r.DispatchFrame(ev)
}

func (r *Router) onRuntime(ev transport.RuntimeEvent, responder transport.Responder) bool {
	return r.DispatchRuntime(ev, responder).Reply != nil
}

// DispatchFrame runs a frame event through the event type, transport error,
// origin and payload checks, then invokes every matching handler. Handler
// return values are ignored on this channel.
func (r *Router) DispatchFrame(fe transport.FrameEvent) DeliveryResult {
	ev := r.newEvent(ChannelFrame, fe.Origin, nil)

	if fe.Type != transport.EventTypeMessage {
		return r.finish(rejected(ev, ReasonNotDeliverable, nil))
	}
	if fe.Err != nil {
		r.codes.Log(loggingpkg.CodeFrameTransportError, loggingpkg.LogFields{
			"data": jsoncodec.Stringify(map[string]any{
				"message": fe.Err.Error(),
				"type":    fe.Type,
				"name":    fmt.Sprintf("%T", fe.Err),
			}),
		})
		return r.finish(rejected(ev, ReasonTransportError, fe.Err))
	}
	if !r.validator.IsTrusted(fe.Origin) {
		return r.finish(rejected(ev, ReasonUntrustedOrigin, nil))
	}

	msg, err := payload.Decode(fe.Data)
	if err != nil {
		r.codes.Warn(loggingpkg.CodeFrameMalformed, loggingpkg.LogFields{"origin": fe.Origin})
		return r.finish(rejected(ev, ReasonMalformedPayload, err))
	}

	return r.finish(r.deliver(ev, msg))
}

// DispatchRuntime invokes every handler matching a runtime message and
// closes the reply channel exactly once. The last non-nil handler return
// value becomes the reply; without one the channel is closed empty.
func (r *Router) DispatchRuntime(re transport.RuntimeEvent, responder transport.Responder) DeliveryResult {
	r.codes.Log(loggingpkg.CodeRuntimeReceived, loggingpkg.LogFields{"msg": jsoncodec.Stringify(re.Data)})

	ev := r.newEvent(ChannelRuntime, "", re.Sender)

	msg, err := payload.Decode(re.Data)
	if err != nil {
		r.codes.Warn(loggingpkg.CodeRuntimeMalformed, nil)
		transport.SendResponse(responder, nil)
		return r.finish(rejected(ev, ReasonMalformedPayload, err))
	}

	result := r.deliver(ev, msg)
	transport.SendResponse(responder, result.Reply)
	return r.finish(result)
}

func (r *Router) newEvent(ch Channel, origin string, sender *transport.Sender) *Event {
	return &Event{
		ID:         idspkg.NewEventID(),
		Channel:    ch,
		Origin:     origin,
		Sender:     sender,
		ReceivedAt: time.Now(),
		ctx:        context.Background(),
	}
}

func (r *Router) deliver(ev *Event, msg payload.Message) DeliveryResult {
	ev.Payload = msg
	result := DeliveryResult{
		EventID: ev.ID,
		Channel: ev.Channel,
		Origin:  ev.Origin,
		Status:  StatusDelivered,
	}

	middlewares := r.middlewareSnapshot()
	selectFaults := r.registry.ForEachMatching(msg, func(index int, entry *HandlerEntry) {
		result.Matched++
		reply, err := r.invoke(entry, ev.forHandler(entry.Tag), middlewares)
		if err != nil {
			result.Faults = append(result.Faults, DeliveryFault{Tag: entry.Tag, Index: index, Err: err})
			r.logger.Error("Handler failed", err, loggingpkg.LogFields{
				"tag":      entry.Tag,
				"index":    index,
				"event_id": ev.ID,
				"channel":  ev.Channel,
			})
			return
		}
		if reply != nil {
			result.Reply = reply
		}
	})
	for _, fault := range selectFaults {
		r.logger.Error("Handler selector failed", fault.Err, loggingpkg.LogFields{
			"tag":      fault.Tag,
			"index":    fault.Index,
			"event_id": ev.ID,
			"channel":  ev.Channel,
		})
	}
	result.Faults = append(result.Faults, selectFaults...)
	return result
}

// invoke runs one handler through the middleware chain. It recovers panics
// itself as well, so isolation holds even without the recoverer middleware.
func (r *Router) invoke(entry *HandlerEntry, ev *Event, middlewares []HandlerMiddleware) (reply any, err error) {
	defer func() {
		if p := recover(); p != nil {
			reply = nil
			err = &errspkg.HandlerPanicError{Value: p, Stack: string(debug.Stack())}
		}
	}()

	h := entry.Handle
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h(ev)
}

func (r *Router) middlewareSnapshot() []HandlerMiddleware {
	r.mwMu.RLock()
	defer r.mwMu.RUnlock()
	out := make([]HandlerMiddleware, len(r.middlewares))
	copy(out, r.middlewares)
	return out
}

func (r *Router) finish(result DeliveryResult) DeliveryResult {
	if r.metrics != nil {
		r.metrics.RecordDelivery(result)
	}
	switch result.Status {
	case StatusDelivered:
		if r.hooks.OnDelivered != nil {
			r.hooks.OnDelivered(result)
		}
	case StatusRejected:
		if r.hooks.OnRejected != nil {
			r.hooks.OnRejected(result)
		}
	}
	return result
}

// Subscribed reports whether the router is attached to its host.
func (r *Router) Subscribed() bool { return r.subscribed.Load() }

// SelfOrigin is the extension base URL the router trusts.
func (r *Router) SelfOrigin() string { return r.conf.ExtensionBaseURL }

// TrustedFrameOrigin is the additionally trusted host page origin, if any.
func (r *Router) TrustedFrameOrigin() string { return r.conf.TrustedFrameOrigin }

// Handlers exposes the router's registry.
func (r *Router) Handlers() *Registry { return r.registry }

// Config returns the router configuration.
func (r *Router) Config() *configpkg.Config { return r.conf }

// Metrics returns the router's collector, nil when metrics are disabled.
func (r *Router) Metrics() *RouterMetrics { return r.metrics }

// Close detaches the router from its host. Handlers stay registered but no
// longer receive events, and the router does not attach again.
func (r *Router) Close() error {
	r.subscribeOnce.Do(func() {})

	r.unsubMu.Lock()
	stops := r.unsubscribe
	r.unsubscribe = nil
	r.unsubMu.Unlock()

	for _, stop := range stops {
		stop()
	}
	r.subscribed.Store(false)
	return nil
}
