package transport

import (
	"sync"

	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
)

// SendResponse closes the reply side of a runtime message, delivering reply
// when it is non-nil. Hosts differ in whether an unanswered listener releases
// the caller, so the responder is always invoked, even without a value.
//
// The returned bool is the listener's continuation signal: true when a value
// was sent, which callback-style hosts require to keep the channel open.
func SendResponse(r Responder, reply any) bool {
	if r == nil {
		return false
	}
	_ = r.Respond(reply)
	return reply != nil
}

// Once wraps r so that only the first Respond call reaches it; later calls
// return ErrReplyAlreadySent.
func Once(r Responder) Responder {
	if r == nil {
		return nil
	}
	if _, ok := r.(*onceResponder); ok {
		return r
	}
	return &onceResponder{inner: r}
}

type onceResponder struct {
	mu    sync.Mutex
	done  bool
	inner Responder
}

func (o *onceResponder) Respond(reply any) error {
	o.mu.Lock()
	if o.done {
		o.mu.Unlock()
		return errspkg.ErrReplyAlreadySent
	}
	o.done = true
	o.mu.Unlock()
	return o.inner.Respond(reply)
}
