/*
Package runtime provides the message routing core of the bookmycomics
extension messaging layer.

# Architecture Overview

A Router owns a Registry of handlers and listens on the two inbound channels
of a transport.Host: the cross-frame message channel used between the host
page, content scripts and the embedded side panel, and the extension runtime
channel used between extension contexts. Each handler is a tagged pair of a
selector and a handle function; every handler whose selector accepts a
payload is invoked, in registration order.

# Package Structure

## Router (router.go)

The Router attaches to its host on the first RegisterHandler call and never
more than once. Frame events pass four checks before dispatch:
  - the event type must be a message delivery
  - the event must not carry a transport error (logged as S26)
  - the sender origin must be trusted by the OriginValidator
  - the payload must be a structured object (logged as E0008 otherwise)

Runtime events are logged (S28), rejected when malformed (E0004), and always
close their reply channel exactly once. The last non-nil handler result is the
reply.

Every dispatch returns a DeliveryResult describing whether the event was
delivered, why it was rejected, and which handlers failed. Handler failures
are isolated: an error or panic is recorded as a DeliveryFault and the
remaining handlers still run.

## Registry (registry.go)

Insertion-ordered handler list guarded by a RWMutex. Iteration walks a
snapshot so handlers may register or unregister while an event is dispatched.

## Origin checks (origin.go)

OriginValidator trusts the extension's own base URL and an optional host page
origin.

## Middleware (middleware.go)

Handler invocations pass through a middleware chain:
  - LogMessages: Debug logging of event payloads
  - Tracer: OpenTelemetry spans, when tracing is enabled
  - Metrics: Prometheus handler counters and latency
  - Recoverer: Panic recovery

## Hooks & Metrics (hooks.go, metrics.go)

DispatchHooks observe handler invocations and event outcomes. RouterMetrics
exports per-channel delivery and rejection counts.

# Sub-packages

  - config/: Router configuration with validation and environment loading
  - errors/: Sentinel errors and error types
  - ids/: ULID generation for event IDs
  - jsoncodec/: JSON marshaling utilities
  - logging/: Logger interface, Watermill adapter and message codes
  - metadata/: Transport header utilities
  - payload/: Typed payload variants and selector patterns
  - transport/: Host implementations (in-process and Watermill Go channel)

# Usage Example

	cfg := &messaging.Config{
		ExtensionBaseURL:   "moz-extension://1f2e3d4c/",
		TrustedFrameOrigin: "https://manga.example",
	}

	host := messaging.NewLocalHost("moz-extension://1f2e3d4c")
	router, err := messaging.NewRouter(cfg, logger, messaging.RouterDependencies{Host: host})
	if err != nil {
		return err
	}

	err = router.RegisterHandler("panel-1", messaging.IsAction("toggle"), func(ev *messaging.Event) (any, error) {
		return nil, togglePanel(ev.Payload)
	})
*/
package runtime
