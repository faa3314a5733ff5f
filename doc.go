// Package messaging is the message routing layer of the bookmycomics browser
// extension. It connects the background context, the content script running
// on a tracked reader page, and the side panel frame the content script
// injects into that page.
//
// A Router owns an ordered registry of tagged handlers. Each handler pairs a
// selector with a handle function, and every handler whose selector accepts a
// payload is invoked. The router listens on two channels of its Host: frame
// messages, which are only dispatched when their origin is trusted, and
// runtime messages, which always get exactly one reply or an empty close.
// Every dispatch returns a DeliveryResult naming the rejection reason, if any,
// and the handlers that failed.
//
// # Hosts
//
// Two hosts are built in and selected through Config.HostTransport:
//   - local: synchronous in-process delivery, used by tests and by contexts
//     that share a goroutine
//   - channel: a Watermill Go channel pub/sub carrying JSON-encoded payloads,
//     with request/reply correlation for runtime messages
//
// # Middleware
//
// The default middleware chain includes structured logging, OpenTelemetry
// tracing, Prometheus metrics, and panic recovery. Custom middleware can be
// added via RouterDependencies.Middlewares.
//
// # Dispatch Hooks
//
// DispatchHooks provide OnHandlerStart, OnHandlerDone and OnHandlerError
// callbacks around each handler, plus OnDelivered and OnRejected per event.
//
// # Side panel
//
// Bridge runs in the content script: it attaches the side panel frame, keeps
// the panel's open/closed state in a Store and posts toggle, register and
// notification actions into it. Panel runs inside the frame and turns those
// actions into PanelView updates.
package messaging
