// Package transport models the two inbound channels a router listens on: the
// cross-frame message channel (window message events) and the extension
// runtime message channel. A Host bundles both for one execution context.
package transport

// EventTypeMessage is the frame event type that carries a delivery. Other
// event types (for example "messageerror") never reach handlers.
const EventTypeMessage = "message"

// TargetAny is the permissive target origin used when posting to frames.
const TargetAny = "*"

// FrameEvent is one inbound cross-frame message.
type FrameEvent struct {
	// Type is the DOM event type, normally EventTypeMessage.
	Type string
	// Origin is the sender's scheme+host+port as reported by the host.
	Origin string
	// Data is the posted value. Only structured objects are dispatched.
	Data any
	// Err is set when the host surfaced an error-shaped event.
	Err error
}

// Sender describes the context that sent a runtime message.
type Sender struct {
	ID      string
	URL     string
	FrameID int
	TabID   int
}

// RuntimeEvent is one inbound runtime message.
type RuntimeEvent struct {
	Sender *Sender
	Data   any
}

// Responder is the reply side of a runtime message. Respond(nil) closes the
// channel without a value.
type Responder interface {
	Respond(reply any) error
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(reply any) error

func (f ResponderFunc) Respond(reply any) error { return f(reply) }

// FrameListener receives frame events.
type FrameListener func(FrameEvent)

// RuntimeListener receives runtime events. The returned value is the
// continuation signal handed back to the host: true keeps the reply channel
// open.
type RuntimeListener func(RuntimeEvent, Responder) bool

// Unsubscribe detaches a listener. It is safe to call more than once.
type Unsubscribe func()

// FrameChannel is the window-level cross-document messaging primitive.
type FrameChannel interface {
	Listen(FrameListener) (Unsubscribe, error)
}

// RuntimeChannel is the extension-internal messaging primitive.
type RuntimeChannel interface {
	Listen(RuntimeListener) (Unsubscribe, error)
}

// Host exposes the inbound channels of one execution context.
type Host interface {
	Frames() FrameChannel
	Runtime() RuntimeChannel
}

// Frame is a handle on a window that accepts posted messages.
type Frame interface {
	PostMessage(msg any, targetOrigin string) error
}
