package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
)

// Host transport names understood by the default transport factory.
const (
	TransportLocal   = "local"
	TransportChannel = "channel"
)

// Config groups the settings a Router needs in one execution context
// (background page, content script, or side panel).
type Config struct {
	// ExtensionBaseURL is the extension's canonical base URL, as reported by
	// runtime.getURL(""). It is the router's own origin.
	ExtensionBaseURL string `envconfig:"EXTENSION_BASE_URL"`

	// TrustedFrameOrigin is the origin of the host page embedding the
	// extension frames. Empty means no outer page is trusted.
	TrustedFrameOrigin string `envconfig:"TRUSTED_FRAME_ORIGIN"`

	// HostTransport selects how inbound events reach the router: "local"
	// delivers synchronously in-process, "channel" pumps them through a
	// Watermill Go channel pub/sub.
	HostTransport string `envconfig:"HOST_TRANSPORT" default:"local"`

	// ChannelBufferSize sizes the Watermill output channels of the channel host.
	ChannelBufferSize int64 `envconfig:"CHANNEL_BUFFER_SIZE" default:"16"`

	// ReplyTimeout bounds how long a runtime request waits for its reply on
	// the channel host. Zero waits until the context is done.
	ReplyTimeout time.Duration `envconfig:"REPLY_TIMEOUT" default:"5s"`

	// SidePanelResource is the extension-relative page loaded in the side panel.
	SidePanelResource string `envconfig:"SIDEPANEL_RESOURCE" default:"sidebar.html"`

	// MetricsEnabled registers the router's Prometheus collectors.
	MetricsEnabled bool `envconfig:"METRICS_ENABLED"`

	// TracingEnabled wraps handler invocations in OpenTelemetry spans.
	TracingEnabled bool `envconfig:"TRACING_ENABLED"`
}

// LoadFromEnv fills a Config from environment variables, each prefixed with
// prefix (for example BMC_EXTENSION_BASE_URL), and validates it.
func LoadFromEnv(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}
	return &cfg, nil
}

// Transport returns the normalised host transport name.
func (c *Config) Transport() string {
	name := strings.ToLower(strings.TrimSpace(c.HostTransport))
	if name == "" {
		return TransportLocal
	}
	return name
}

// ResourceURL resolves an extension-relative resource against the base URL.
func (c *Config) ResourceURL(resource string) string {
	base := c.ExtensionBaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.TrimPrefix(resource, "/")
}

// Validate checks that the configuration is usable. Transport names are not
// checked here so custom factories can register their own.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateOrigins()...)
	errs = append(errs, c.validateChannel()...)

	return errors.Join(errs...)
}

func (c *Config) validateOrigins() []error {
	var errs []error
	if c.ExtensionBaseURL == "" {
		errs = append(errs, errors.New("origin: extension base URL is required"))
	} else if err := checkAbsolute(c.ExtensionBaseURL); err != nil {
		errs = append(errs, fmt.Errorf("origin: extension base URL: %w", err))
	}

	if c.TrustedFrameOrigin != "" {
		if err := checkAbsolute(c.TrustedFrameOrigin); err != nil {
			errs = append(errs, fmt.Errorf("origin: trusted frame origin: %w", err))
		} else if u, _ := url.Parse(c.TrustedFrameOrigin); u.Path != "" || u.RawQuery != "" {
			errs = append(errs, errors.New("origin: trusted frame origin must not carry a path or query"))
		}
	}
	return errs
}

func (c *Config) validateChannel() []error {
	var errs []error
	if c.ChannelBufferSize < 0 {
		errs = append(errs, errors.New("channel: buffer size cannot be negative"))
	}
	if c.ReplyTimeout < 0 {
		errs = append(errs, errors.New("channel: reply timeout cannot be negative"))
	}
	return errs
}

func checkAbsolute(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}
	return nil
}

// ValidateConfig is a convenience function to validate a config pointer.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errspkg.ErrConfigRequired
	}
	return c.Validate()
}
