package transport

import (
	"sync"
)

// LocalHost delivers events synchronously on the caller's goroutine, the way
// a browser event loop runs listeners for one context. It is the default
// host and the one used by tests.
type LocalHost struct {
	origin string

	mu       sync.RWMutex
	nextID   int
	frames   map[int]FrameListener
	runtimes map[int]RuntimeListener
	order    []int
}

// NewLocalHost creates a host for a context whose own origin is origin.
// Frames posting with a specific target origin only reach it when that
// target equals origin.
func NewLocalHost(origin string) *LocalHost {
	return &LocalHost{
		origin:   origin,
		frames:   make(map[int]FrameListener),
		runtimes: make(map[int]RuntimeListener),
	}
}

// Origin returns the host's own origin.
func (h *LocalHost) Origin() string { return h.origin }

func (h *LocalHost) Frames() FrameChannel    { return localFrames{h} }
func (h *LocalHost) Runtime() RuntimeChannel { return localRuntime{h} }

// Capabilities reports the local host's delivery guarantees.
func (h *LocalHost) Capabilities() Capabilities { return LocalCapabilities }

type localFrames struct{ h *LocalHost }

func (l localFrames) Listen(fn FrameListener) (Unsubscribe, error) {
	l.h.mu.Lock()
	defer l.h.mu.Unlock()
	id := l.h.add()
	l.h.frames[id] = fn
	return l.h.remover(id), nil
}

type localRuntime struct{ h *LocalHost }

func (l localRuntime) Listen(fn RuntimeListener) (Unsubscribe, error) {
	l.h.mu.Lock()
	defer l.h.mu.Unlock()
	id := l.h.add()
	l.h.runtimes[id] = fn
	return l.h.remover(id), nil
}

func (h *LocalHost) add() int {
	h.nextID++
	h.order = append(h.order, h.nextID)
	return h.nextID
}

func (h *LocalHost) remover(id int) Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.frames, id)
			delete(h.runtimes, id)
		})
	}
}

func (h *LocalHost) frameListeners() []FrameListener {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]FrameListener, 0, len(h.frames))
	for _, id := range h.order {
		if fn, ok := h.frames[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (h *LocalHost) runtimeListeners() []RuntimeListener {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]RuntimeListener, 0, len(h.runtimes))
	for _, id := range h.order {
		if fn, ok := h.runtimes[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// DeliverFrame hands ev to every frame listener.
func (h *LocalHost) DeliverFrame(ev FrameEvent) {
	for _, fn := range h.frameListeners() {
		fn(ev)
	}
}

// PostFrame delivers a message event carrying data from origin.
func (h *LocalHost) PostFrame(origin string, data any) {
	h.DeliverFrame(FrameEvent{Type: EventTypeMessage, Origin: origin, Data: data})
}

// SendRuntime delivers a runtime message to every runtime listener. Only the
// first reply is kept; replied reports whether any listener closed the
// channel, with or without a value.
func (h *LocalHost) SendRuntime(sender *Sender, data any) (reply any, replied bool) {
	var mu sync.Mutex
	responder := Once(ResponderFunc(func(v any) error {
		mu.Lock()
		defer mu.Unlock()
		reply, replied = v, true
		return nil
	}))

	for _, fn := range h.runtimeListeners() {
		fn(RuntimeEvent{Sender: sender, Data: data}, responder)
	}

	mu.Lock()
	defer mu.Unlock()
	return reply, replied
}

// Window returns a Frame handle that posts into h as if sent from
// senderOrigin.
func (h *LocalHost) Window(senderOrigin string) Frame {
	return &LocalWindow{target: h, senderOrigin: senderOrigin}
}

// LocalWindow posts messages into a LocalHost.
type LocalWindow struct {
	target       *LocalHost
	senderOrigin string
}

// PostMessage delivers msg when targetOrigin is "*" or matches the target
// host's origin; other targets are dropped silently, like a browser does.
func (w *LocalWindow) PostMessage(msg any, targetOrigin string) error {
	if targetOrigin != TargetAny && targetOrigin != w.target.origin {
		return nil
	}
	w.target.PostFrame(w.senderOrigin, msg)
	return nil
}
