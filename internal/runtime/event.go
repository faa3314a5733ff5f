package runtime

import (
	"context"
	"time"

	"github.com/bookmycomics/messaging/internal/runtime/payload"
	"github.com/bookmycomics/messaging/internal/runtime/transport"
)

// Channel identifies which transport an event arrived on.
type Channel string

const (
	ChannelFrame   Channel = "frame"
	ChannelRuntime Channel = "runtime"
)

// Event is the view of an inbound message handed to handlers. Each handler
// receives its own copy.
type Event struct {
	ID         string
	Channel    Channel
	Origin     string
	Sender     *transport.Sender
	Payload    payload.Message
	ReceivedAt time.Time

	handlerTag string
	ctx        context.Context
}

// Context returns the event context, never nil.
func (e *Event) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

// SetContext replaces the event context.
func (e *Event) SetContext(ctx context.Context) {
	e.ctx = ctx
}

// HandlerTag is the tag of the handler currently processing the event.
func (e *Event) HandlerTag() string {
	return e.handlerTag
}

func (e *Event) forHandler(tag string) *Event {
	clone := *e
	clone.handlerTag = tag
	return &clone
}
