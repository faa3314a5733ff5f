package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
	idspkg "github.com/bookmycomics/messaging/internal/runtime/ids"
	"github.com/bookmycomics/messaging/internal/runtime/jsoncodec"
	loggingpkg "github.com/bookmycomics/messaging/internal/runtime/logging"
	"github.com/bookmycomics/messaging/internal/runtime/metadata"
)

// Topics used on the channel host's pub/sub.
const (
	TopicFrame   = "bmc.frame-message"
	TopicRuntime = "bmc.runtime-message"
	TopicReply   = "bmc.runtime-reply"
)

// ChannelConfig tunes a ChannelHost.
type ChannelConfig struct {
	BufferSize   int64
	ReplyTimeout time.Duration
}

// PubSubFactory allows overriding the pub/sub creation in tests.
var PubSubFactory = func(cfg gochannel.Config, logger loggingpkg.ServiceLogger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(cfg, loggingpkg.NewWatermillAdapter(logger))
}

// ChannelHost carries frame and runtime messages over a Watermill Go channel
// pub/sub. Payloads travel JSON-encoded, so a context on one goroutine can
// talk to a router pumping on another. Each channel is pumped by a single
// goroutine and publishing blocks until the pump has acked, which keeps
// per-channel FIFO order. A listener must therefore not publish onto the
// channel it is being pumped from.
type ChannelHost struct {
	ctx    context.Context
	pubsub *gochannel.GoChannel
	logger loggingpkg.ServiceLogger
	conf   ChannelConfig
	closed atomic.Bool

	replyOnce sync.Once
	replyErr  error
	pendingMu sync.Mutex
	pending   map[string]chan replyEnvelope
}

type replyEnvelope struct {
	value   any
	noValue bool
	err     error
}

// NewChannelHost creates a host whose subscriptions live until ctx is done or
// Close is called.
func NewChannelHost(ctx context.Context, conf ChannelConfig, logger loggingpkg.ServiceLogger) *ChannelHost {
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	return &ChannelHost{
		ctx: ctx,
		pubsub: PubSubFactory(gochannel.Config{
			OutputChannelBuffer:            conf.BufferSize,
			BlockPublishUntilSubscriberAck: true,
		}, logger),
		logger:  logger.With(loggingpkg.LogFields{"host": "channel"}),
		conf:    conf,
		pending: make(map[string]chan replyEnvelope),
	}
}

func (h *ChannelHost) Frames() FrameChannel    { return channelFrames{h} }
func (h *ChannelHost) Runtime() RuntimeChannel { return channelRuntime{h} }

// Capabilities reports the channel host's delivery guarantees.
func (h *ChannelHost) Capabilities() Capabilities { return ChannelCapabilities }

// Close shuts the pub/sub down; pumps exit once their channels drain.
// Publishing afterwards fails with ErrChannelClosed.
func (h *ChannelHost) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return h.pubsub.Close()
}

func (h *ChannelHost) publish(topic string, msg *message.Message) error {
	if h.closed.Load() {
		return errspkg.ErrChannelClosed
	}
	return h.pubsub.Publish(topic, msg)
}

type channelFrames struct{ h *ChannelHost }

func (c channelFrames) Listen(fn FrameListener) (Unsubscribe, error) {
	return c.h.pump(TopicFrame, func(msg *message.Message) {
		fn(decodeFrame(msg))
	})
}

type channelRuntime struct{ h *ChannelHost }

func (c channelRuntime) Listen(fn RuntimeListener) (Unsubscribe, error) {
	return c.h.pump(TopicRuntime, func(msg *message.Message) {
		ev, responder := c.h.decodeRuntime(msg)
		fn(ev, responder)
	})
}

func (h *ChannelHost) pump(topic string, handle func(*message.Message)) (Unsubscribe, error) {
	ctx, cancel := context.WithCancel(h.ctx)
	messages, err := h.pubsub.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			handle(msg)
			msg.Ack()
		}
		h.logger.Debug("Channel pump stopped", loggingpkg.LogFields{"topic": topic})
	}()

	return Unsubscribe(cancel), nil
}

// PostFrame publishes data as a message event sent from origin.
func (h *ChannelHost) PostFrame(origin string, data any) error {
	payload, err := jsoncodec.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode frame payload: %w", err)
	}
	msg := message.NewMessage(idspkg.NewEventID(), payload)
	metadata.New(
		metadata.KeyOrigin, origin,
		metadata.KeyEventType, EventTypeMessage,
	).Apply(msg)
	return h.publish(TopicFrame, msg)
}

// PostFrameError publishes an error-shaped frame event.
func (h *ChannelHost) PostFrameError(origin string, cause error) error {
	msg := message.NewMessage(idspkg.NewEventID(), nil)
	metadata.New(
		metadata.KeyOrigin, origin,
		metadata.KeyEventType, EventTypeMessage,
		metadata.KeyTransportErr, cause.Error(),
	).Apply(msg)
	return h.publish(TopicFrame, msg)
}

// Window returns a Frame handle that publishes frame messages as senderOrigin.
func (h *ChannelHost) Window(senderOrigin string) Frame {
	return channelWindow{h: h, senderOrigin: senderOrigin}
}

type channelWindow struct {
	h            *ChannelHost
	senderOrigin string
}

func (w channelWindow) PostMessage(msg any, _ string) error {
	return w.h.PostFrame(w.senderOrigin, msg)
}

// Send publishes a runtime message without waiting for a reply.
func (h *ChannelHost) Send(sender *Sender, data any) error {
	msg, err := newRuntimeMessage(sender, data)
	if err != nil {
		return err
	}
	return h.publish(TopicRuntime, msg)
}

// Request publishes a runtime message and waits for its reply. A listener
// that closes the channel without a value yields ErrNoReply.
func (h *ChannelHost) Request(ctx context.Context, sender *Sender, data any) (any, error) {
	if h.closed.Load() {
		return nil, errspkg.ErrChannelClosed
	}
	if err := h.ensureReplies(); err != nil {
		return nil, err
	}

	msg, err := newRuntimeMessage(sender, data)
	if err != nil {
		return nil, err
	}
	correlationID := idspkg.NewEventID()
	msg.Metadata.Set(metadata.KeyReplyTo, TopicReply)
	msg.Metadata.Set(metadata.KeyCorrelationID, correlationID)

	wait := make(chan replyEnvelope, 1)
	h.pendingMu.Lock()
	h.pending[correlationID] = wait
	h.pendingMu.Unlock()
	defer func() {
		h.pendingMu.Lock()
		delete(h.pending, correlationID)
		h.pendingMu.Unlock()
	}()

	if err := h.publish(TopicRuntime, msg); err != nil {
		return nil, err
	}

	if h.conf.ReplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.conf.ReplyTimeout)
		defer cancel()
	}

	select {
	case env := <-wait:
		switch {
		case env.err != nil:
			return nil, env.err
		case env.noValue:
			return nil, errspkg.ErrNoReply
		default:
			return env.value, nil
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("await runtime reply: %w", ctx.Err())
	}
}

func (h *ChannelHost) ensureReplies() error {
	h.replyOnce.Do(func() {
		_, h.replyErr = h.pump(TopicReply, h.routeReply)
	})
	return h.replyErr
}

func (h *ChannelHost) routeReply(msg *message.Message) {
	correlationID := msg.Metadata.Get(metadata.KeyCorrelationID)

	h.pendingMu.Lock()
	wait, ok := h.pending[correlationID]
	h.pendingMu.Unlock()
	if !ok {
		h.logger.Debug("Dropping reply without a waiting request", loggingpkg.LogFields{"correlation_id": correlationID})
		return
	}

	env := replyEnvelope{noValue: msg.Metadata.Get(metadata.KeyNoReply) == "true"}
	if !env.noValue {
		env.value, env.err = jsoncodec.DecodeValue(msg.Payload)
	}
	select {
	case wait <- env:
	default:
	}
}

func newRuntimeMessage(sender *Sender, data any) (*message.Message, error) {
	payload, err := jsoncodec.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode runtime payload: %w", err)
	}
	msg := message.NewMessage(idspkg.NewEventID(), payload)
	if sender != nil {
		md := metadata.Metadata{}.
			With(metadata.KeySenderID, sender.ID).
			With(metadata.KeySenderURL, sender.URL).
			With(metadata.KeySenderFrameID, strconv.Itoa(sender.FrameID)).
			With(metadata.KeyTabID, strconv.Itoa(sender.TabID))
		md.Apply(msg)
	}
	return msg, nil
}

func decodeFrame(msg *message.Message) FrameEvent {
	md := metadata.FromWatermill(msg.Metadata)
	ev := FrameEvent{
		Type:   md.Get(metadata.KeyEventType),
		Origin: md.Get(metadata.KeyOrigin),
	}
	if ev.Type == "" {
		ev.Type = EventTypeMessage
	}
	if cause := md.Get(metadata.KeyTransportErr); cause != "" {
		ev.Err = errors.New(cause)
		return ev
	}
	data, err := jsoncodec.DecodeValue(msg.Payload)
	if err != nil {
		ev.Err = fmt.Errorf("decode frame payload: %w", err)
		return ev
	}
	ev.Data = data
	return ev
}

func (h *ChannelHost) decodeRuntime(msg *message.Message) (RuntimeEvent, Responder) {
	md := metadata.FromWatermill(msg.Metadata)
	ev := RuntimeEvent{}
	if id := md.Get(metadata.KeySenderID); id != "" || md.Get(metadata.KeySenderURL) != "" {
		frameID, _ := strconv.Atoi(md.Get(metadata.KeySenderFrameID))
		tabID, _ := strconv.Atoi(md.Get(metadata.KeyTabID))
		ev.Sender = &Sender{ID: id, URL: md.Get(metadata.KeySenderURL), FrameID: frameID, TabID: tabID}
	}

	data, err := jsoncodec.DecodeValue(msg.Payload)
	if err != nil {
		// Undecodable bytes are surfaced as a primitive so the router rejects
		// them as malformed and still closes the reply channel.
		data = string(msg.Payload)
	}
	ev.Data = data

	replyTo := md.Get(metadata.KeyReplyTo)
	if replyTo == "" {
		return ev, Once(ResponderFunc(func(any) error { return nil }))
	}
	correlationID := md.Get(metadata.KeyCorrelationID)
	return ev, Once(ResponderFunc(func(reply any) error {
		out := message.NewMessage(idspkg.NewEventID(), nil)
		out.Metadata.Set(metadata.KeyCorrelationID, correlationID)
		if reply == nil {
			out.Metadata.Set(metadata.KeyNoReply, "true")
		} else {
			payload, err := jsoncodec.Marshal(reply)
			if err != nil {
				h.logger.Error("Failed to encode runtime reply", err, loggingpkg.LogFields{"correlation_id": correlationID})
				out.Metadata.Set(metadata.KeyNoReply, "true")
			} else {
				out.Payload = payload
			}
		}
		return h.publish(replyTo, out)
	}))
}
