package messaging

import (
	runtimepkg "github.com/bookmycomics/messaging/internal/runtime"
	configpkg "github.com/bookmycomics/messaging/internal/runtime/config"
	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
	idspkg "github.com/bookmycomics/messaging/internal/runtime/ids"
	"github.com/bookmycomics/messaging/internal/runtime/jsoncodec"
	loggingpkg "github.com/bookmycomics/messaging/internal/runtime/logging"
	metadatapkg "github.com/bookmycomics/messaging/internal/runtime/metadata"
	payloadpkg "github.com/bookmycomics/messaging/internal/runtime/payload"
	transportpkg "github.com/bookmycomics/messaging/internal/runtime/transport"
	storepkg "github.com/bookmycomics/messaging/internal/store"
	uipkg "github.com/bookmycomics/messaging/internal/ui"
)

type (
	Config             = configpkg.Config
	Router             = runtimepkg.Router
	RouterDependencies = runtimepkg.RouterDependencies
	Registry           = runtimepkg.Registry
	HandlerEntry       = runtimepkg.HandlerEntry
	SelectFunc         = runtimepkg.SelectFunc
	HandleFunc         = runtimepkg.HandleFunc
	OriginValidator    = runtimepkg.OriginValidator
	Event              = runtimepkg.Event
	Channel            = runtimepkg.Channel

	DeliveryResult  = runtimepkg.DeliveryResult
	DeliveryStatus  = runtimepkg.DeliveryStatus
	DeliveryFault   = runtimepkg.DeliveryFault
	RejectionReason = runtimepkg.RejectionReason

	HandlerMiddleware      = runtimepkg.HandlerMiddleware
	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration

	// Dispatch hooks
	HandlerContext = runtimepkg.HandlerContext
	DispatchHooks  = runtimepkg.DispatchHooks

	// Router metrics
	RouterMetrics         = runtimepkg.RouterMetrics
	ChannelMetrics        = runtimepkg.ChannelMetrics
	RouterMetricsSnapshot = runtimepkg.RouterMetricsSnapshot

	// Payloads
	Message = payloadpkg.Message
	Action  = payloadpkg.Action
	Opaque  = payloadpkg.Opaque
	Pattern = payloadpkg.Pattern

	// Host transports
	Host             = transportpkg.Host
	Frame            = transportpkg.Frame
	FrameEvent       = transportpkg.FrameEvent
	RuntimeEvent     = transportpkg.RuntimeEvent
	Sender           = transportpkg.Sender
	Responder        = transportpkg.Responder
	ResponderFunc    = transportpkg.ResponderFunc
	LocalHost        = transportpkg.LocalHost
	ChannelHost      = transportpkg.ChannelHost
	ChannelConfig    = transportpkg.ChannelConfig
	Capabilities     = transportpkg.Capabilities
	TransportBuilder = transportpkg.Builder
	TransportFactory = transportpkg.Factory

	Metadata = metadatapkg.Metadata

	LogFields             = loggingpkg.LogFields
	ServiceLogger         = loggingpkg.ServiceLogger
	CodeLogger            = loggingpkg.CodeLogger
	ConfigValidationError = errspkg.ConfigValidationError

	// Storage
	Store       = storepkg.Store
	MemoryStore = storepkg.Memory

	// Side panel
	Bridge             = uipkg.Bridge
	BridgeDependencies = uipkg.BridgeDependencies
	Panel              = uipkg.Panel
	PanelDependencies  = uipkg.PanelDependencies
	PanelView          = uipkg.PanelView
	PanelState         = uipkg.PanelState
	FrameDefinition    = uipkg.FrameDefinition
	FrameSpec          = uipkg.FrameSpec
	FrameFinder        = uipkg.FrameFinder
	Document           = uipkg.Document
	MemoryDocument     = uipkg.MemoryDocument
)

var (
	NewRouter          = runtimepkg.NewRouter
	NewRegistry        = runtimepkg.NewRegistry
	NewOriginValidator = runtimepkg.NewOriginValidator
	PostMessage        = runtimepkg.PostMessage
	LoadConfigFromEnv  = configpkg.LoadFromEnv
	ValidateConfig     = configpkg.ValidateConfig

	DefaultMiddlewares    = runtimepkg.DefaultMiddlewares
	LogMessagesMiddleware = runtimepkg.LogMessagesMiddleware
	TracerMiddleware      = runtimepkg.TracerMiddleware
	MetricsMiddleware     = runtimepkg.MetricsMiddleware
	RecovererMiddleware   = runtimepkg.RecovererMiddleware

	// Dispatch hooks
	DispatchHooksMiddleware = runtimepkg.DispatchHooksMiddleware
	LoggingHooks            = runtimepkg.LoggingHooks
	MetricsHooks            = runtimepkg.MetricsHooks
	AlertingHooks           = runtimepkg.AlertingHooks

	NewRouterMetrics = runtimepkg.NewRouterMetrics

	// Payload helpers
	DecodePayload = payloadpkg.Decode
	NewOpaque     = payloadpkg.NewOpaque
	IsAction      = payloadpkg.IsAction
	AnyPayload    = payloadpkg.Any

	// Host transports
	NewLocalHost            = transportpkg.NewLocalHost
	NewChannelHost          = transportpkg.NewChannelHost
	NewTransportRegistry    = transportpkg.NewRegistry
	DefaultTransportFactory = transportpkg.DefaultFactory
	SendResponse            = transportpkg.SendResponse

	NewMemoryStore    = storepkg.NewMemory
	NewBridge         = uipkg.NewBridge
	NewPanel          = uipkg.NewPanel
	NewMemoryDocument = uipkg.NewMemoryDocument
	SidePanelURL      = uipkg.SidePanelURL
	HostOriginFromURL = uipkg.HostOriginFromURL

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal

	ErrRouterRequired     = errspkg.ErrRouterRequired
	ErrHandlerRequired    = errspkg.ErrHandlerRequired
	ErrSelectorRequired   = errspkg.ErrSelectorRequired
	ErrHostRequired       = errspkg.ErrHostRequired
	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired
	ErrMalformedPayload   = errspkg.ErrMalformedPayload
	ErrUnknownTransport   = errspkg.ErrUnknownTransport
	ErrChannelClosed      = errspkg.ErrChannelClosed
	ErrNoReply            = errspkg.ErrNoReply
	ErrFrameAlreadyExists = errspkg.ErrFrameAlreadyExists

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewCodeLogger        = loggingpkg.NewCodeLogger
	NopLogger            = loggingpkg.NopLogger

	NewMetadata = metadatapkg.New

	// NewEventID generates a unique event ID using ULID.
	NewEventID = idspkg.NewEventID
)

// SidePanel is the side panel frame definition.
var SidePanel = uipkg.SidePanel

// Inbound channels.
const (
	ChannelFrame   = runtimepkg.ChannelFrame
	ChannelRuntime = runtimepkg.ChannelRuntime
)

// Rejection reasons reported on DeliveryResult.
const (
	ReasonNotDeliverable   = runtimepkg.ReasonNotDeliverable
	ReasonTransportError   = runtimepkg.ReasonTransportError
	ReasonUntrustedOrigin  = runtimepkg.ReasonUntrustedOrigin
	ReasonMalformedPayload = runtimepkg.ReasonMalformedPayload
)

// Host transport names.
const (
	TransportLocal   = configpkg.TransportLocal
	TransportChannel = configpkg.TransportChannel
)

// Match returns a selector accepting messages that carry every non-empty
// field of p.
func Match(p Pattern) SelectFunc {
	return p.Match
}
