package store

import (
	"fmt"

	gocache "github.com/patrickmn/go-cache"

	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
	loggingpkg "github.com/bookmycomics/messaging/internal/runtime/logging"
)

// Memory is an in-process Store backed by go-cache. Entries never expire.
type Memory struct {
	cache  *gocache.Cache
	logger loggingpkg.ServiceLogger
}

// NewMemory creates an empty store. A nil logger discards diagnostics.
func NewMemory(logger loggingpkg.ServiceLogger) *Memory {
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	return &Memory{
		cache:  gocache.New(gocache.NoExpiration, 0),
		logger: logger.With(loggingpkg.LogFields{"component": "store"}),
	}
}

// Get calls cb synchronously with the stored value.
func (m *Memory) Get(key string, cb func(err error, value string)) {
	if cb == nil {
		return
	}
	value, found := m.cache.Get(key)
	if !found {
		cb(nil, "")
		return
	}
	s, ok := value.(string)
	if !ok {
		cb(fmt.Errorf("store: value for %q is %T, not a string", key, value), "")
		return
	}
	m.logger.Trace("store hit", loggingpkg.LogFields{"key": key})
	cb(nil, s)
}

// Set stores every pair of values. Nothing is written when a key is empty.
func (m *Memory) Set(values map[string]string) error {
	for key := range values {
		if key == "" {
			return errspkg.ErrStoreKeyRequired
		}
	}
	for key, value := range values {
		m.cache.Set(key, value, gocache.NoExpiration)
	}
	return nil
}

// Delete removes keys; missing keys are ignored.
func (m *Memory) Delete(keys ...string) {
	for _, key := range keys {
		m.cache.Delete(key)
	}
}

// Snapshot copies the current contents.
func (m *Memory) Snapshot() map[string]string {
	items := m.cache.Items()
	out := make(map[string]string, len(items))
	for key, item := range items {
		if s, ok := item.Object.(string); ok {
			out[key] = s
		}
	}
	return out
}
