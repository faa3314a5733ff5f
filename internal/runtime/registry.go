package runtime

import (
	"runtime/debug"
	"sync"

	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
	"github.com/bookmycomics/messaging/internal/runtime/payload"
)

// SelectFunc decides whether a handler wants an inbound payload.
type SelectFunc func(payload.Message) bool

// HandleFunc processes an event. The returned value is only used as a reply
// on the runtime channel; frame deliveries ignore it.
type HandleFunc func(*Event) (any, error)

// HandlerEntry is one registered handler. Entries are immutable once added.
type HandlerEntry struct {
	Tag    string
	Select SelectFunc
	Handle HandleFunc
}

// Registry keeps handlers in insertion order. Every matching entry is
// invoked, so order only matters for side effects and for which reply wins.
type Registry struct {
	mu      sync.RWMutex
	entries []*HandlerEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a handler. Tags may repeat; removal is by tag.
func (r *Registry) Add(tag string, sel SelectFunc, handle HandleFunc) (*HandlerEntry, error) {
	if sel == nil {
		return nil, errspkg.ErrSelectorRequired
	}
	if handle == nil {
		return nil, errspkg.ErrHandlerRequired
	}

	entry := &HandlerEntry{Tag: tag, Select: sel, Handle: handle}
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return entry, nil
}

// RemoveByTag drops every entry carrying tag in a single pass and reports how
// many were removed. Remaining entries keep their relative order.
func (r *Registry) RemoveByTag(tag string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]*HandlerEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.Tag != tag {
			kept = append(kept, entry)
		}
	}
	removed := len(r.entries) - len(kept)
	if removed > 0 {
		r.entries = kept
	}
	return removed
}

// Snapshot returns the current entries. Later mutations of the registry do
// not affect the returned slice.
func (r *Registry) Snapshot() []*HandlerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*HandlerEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// ForEachMatching evaluates every entry's selector against msg, in insertion
// order, and calls fn for each match. Handlers may add or remove entries from
// within fn; the iteration keeps walking the snapshot taken on entry. A
// selector that panics counts as not matching and is reported as a fault.
func (r *Registry) ForEachMatching(msg payload.Message, fn func(index int, entry *HandlerEntry)) []DeliveryFault {
	var faults []DeliveryFault
	for i, entry := range r.Snapshot() {
		ok, err := selects(entry, msg)
		if err != nil {
			faults = append(faults, DeliveryFault{Tag: entry.Tag, Index: i, Err: err})
			continue
		}
		if ok {
			fn(i, entry)
		}
	}
	return faults
}

func selects(entry *HandlerEntry, msg payload.Message) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
			err = &errspkg.HandlerPanicError{Value: p, Stack: string(debug.Stack())}
		}
	}()
	return entry.Select(msg), nil
}

// Len reports the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Tags lists the tag of every entry in insertion order, duplicates included.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, len(r.entries))
	for i, entry := range r.entries {
		tags[i] = entry.Tag
	}
	return tags
}
