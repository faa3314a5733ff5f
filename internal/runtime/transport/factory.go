package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/bookmycomics/messaging/internal/runtime/config"
	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
	loggingpkg "github.com/bookmycomics/messaging/internal/runtime/logging"
)

// Builder creates a Host for a configuration.
type Builder func(ctx context.Context, conf *config.Config, logger loggingpkg.ServiceLogger) (Host, error)

// Factory abstracts how routers obtain their host transport.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger loggingpkg.ServiceLogger) (Host, error)
}

// Registry maps transport names to builders and their capabilities.
type Registry struct {
	mu           sync.RWMutex
	builders     map[string]Builder
	capabilities map[string]Capabilities
}

// DefaultRegistry holds the built-in "local" and "channel" hosts.
var DefaultRegistry = NewDefaultRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		builders:     make(map[string]Builder),
		capabilities: make(map[string]Capabilities),
	}
}

// NewDefaultRegistry creates a registry with the built-in hosts registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(config.TransportLocal, buildLocal, LocalCapabilities)
	r.Register(config.TransportChannel, buildChannel, ChannelCapabilities)
	return r
}

// Register adds or replaces a builder.
func (r *Registry) Register(name string, builder Builder, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = builder
	r.capabilities[name] = caps
}

// Capabilities returns the capabilities registered for name, or a zero value
// carrying only the name when it is unknown.
func (r *Registry) Capabilities(name string) Capabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caps, ok := r.capabilities[name]; ok {
		return caps
	}
	return Capabilities{Name: name}
}

// Build creates the host selected by conf.HostTransport.
func (r *Registry) Build(ctx context.Context, conf *config.Config, logger loggingpkg.ServiceLogger) (Host, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	name := conf.Transport()

	r.mu.RLock()
	builder, ok := r.builders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", errspkg.ErrUnknownTransport, name)
	}
	return builder(ctx, conf, logger)
}

// DefaultFactory returns the factory backed by DefaultRegistry.
func DefaultFactory() Factory {
	return DefaultRegistry
}

func buildLocal(_ context.Context, conf *config.Config, _ loggingpkg.ServiceLogger) (Host, error) {
	return NewLocalHost(conf.ExtensionBaseURL), nil
}

func buildChannel(ctx context.Context, conf *config.Config, logger loggingpkg.ServiceLogger) (Host, error) {
	return NewChannelHost(ctx, ChannelConfig{
		BufferSize:   conf.ChannelBufferSize,
		ReplyTimeout: conf.ReplyTimeout,
	}, logger), nil
}
