package runtime

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/bookmycomics/messaging/internal/runtime/config"
	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
	loggingpkg "github.com/bookmycomics/messaging/internal/runtime/logging"
	"github.com/bookmycomics/messaging/internal/runtime/payload"
	"github.com/bookmycomics/messaging/internal/runtime/transport"
)

func TestNewRouterValidatesInputs(t *testing.T) {
	t.Parallel()

	host := transport.NewLocalHost(testSelfOrigin)
	logger := newRecordingLogger()

	_, err := NewRouter(nil, logger, RouterDependencies{Host: host})
	assert.ErrorIs(t, err, errspkg.ErrConfigRequired)

	_, err = NewRouter(testConfig(), nil, RouterDependencies{Host: host})
	assert.ErrorIs(t, err, errspkg.ErrLoggerRequired)

	_, err = NewRouter(testConfig(), logger, RouterDependencies{})
	assert.ErrorIs(t, err, errspkg.ErrHostRequired)

	_, err = NewRouter(&configpkg.Config{}, logger, RouterDependencies{Host: host})
	var cfgErr errspkg.ConfigValidationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRouterSubscribesOnce(t *testing.T) {
	host := newCountingHost()
	r, _ := newTestRouter(t, host, RouterDependencies{})

	assert.False(t, r.Subscribed())
	frames, runtimes := host.listens()
	assert.Zero(t, frames)
	assert.Zero(t, runtimes)

	require.NoError(t, r.RegisterHandler("a", payload.Any, noopHandle))
	require.NoError(t, r.RegisterHandler("b", payload.Any, noopHandle))
	require.NoError(t, r.RegisterHandler("a", payload.Any, noopHandle))

	assert.True(t, r.Subscribed())
	frames, runtimes = host.listens()
	assert.Equal(t, 1, frames)
	assert.Equal(t, 1, runtimes)
	assert.Equal(t, 3, r.Handlers().Len())
}

func TestRouterSubscribeFailureIsReported(t *testing.T) {
	host := newCountingHost()
	host.runtimeErr = errors.New("runtime unavailable")
	r, _ := newTestRouter(t, host, RouterDependencies{})

	err := r.RegisterHandler("a", payload.Any, noopHandle)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime unavailable")
	assert.False(t, r.Subscribed())

	// The frame listener attached before the failure must have been detached.
	calls := 0
	require.ErrorContains(t, r.RegisterHandler("b", payload.Any, func(*Event) (any, error) {
		calls++
		return nil, nil
	}), "runtime unavailable")
	host.PostFrame(testSelfOrigin, actionPayload("toggle"))
	assert.Zero(t, calls)
}

func TestRouterFrameEndToEnd(t *testing.T) {
	host := transport.NewLocalHost(testSelfOrigin)
	r, _ := newTestRouter(t, host, RouterDependencies{})

	fired := 0
	require.NoError(t, r.RegisterHandler("panel-1", payload.Pattern{Type: payload.TypeAction, Action: payload.ActionToggle}.Match, func(ev *Event) (any, error) {
		fired++
		assert.Equal(t, ChannelFrame, ev.Channel)
		assert.Equal(t, testHostOrigin, ev.Origin)
		assert.Equal(t, "panel-1", ev.HandlerTag())
		return "ignored", nil
	}))

	host.Window(testHostOrigin).PostMessage(actionPayload("toggle"), transport.TargetAny)
	assert.Equal(t, 1, fired)

	host.Window("https://evil.example").PostMessage(actionPayload("toggle"), transport.TargetAny)
	assert.Equal(t, 1, fired)

	host.Window(testHostOrigin).PostMessage(actionPayload("refresh"), transport.TargetAny)
	assert.Equal(t, 1, fired)
}

func TestDispatchFrameRejections(t *testing.T) {
	host := transport.NewLocalHost(testSelfOrigin)
	r, logger := newTestRouter(t, host, RouterDependencies{})

	selected := 0
	handled := 0
	require.NoError(t, r.RegisterHandler("all", func(payload.Message) bool {
		selected++
		return true
	}, func(*Event) (any, error) {
		handled++
		return nil, nil
	}))

	res := r.DispatchFrame(transport.FrameEvent{Type: "messageerror", Origin: testSelfOrigin, Data: actionPayload("toggle")})
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonNotDeliverable, res.Reason)

	res = r.DispatchFrame(transport.FrameEvent{Type: transport.EventTypeMessage, Origin: testSelfOrigin, Err: errors.New("DataCloneError")})
	assert.Equal(t, ReasonTransportError, res.Reason)
	assert.EqualError(t, res.Err, "DataCloneError")

	res = r.DispatchFrame(transport.FrameEvent{Type: transport.EventTypeMessage, Origin: "https://evil.example", Data: actionPayload("toggle")})
	assert.Equal(t, ReasonUntrustedOrigin, res.Reason)

	res = r.DispatchFrame(transport.FrameEvent{Type: transport.EventTypeMessage, Origin: "", Data: actionPayload("toggle")})
	assert.Equal(t, ReasonUntrustedOrigin, res.Reason)

	res = r.DispatchFrame(transport.FrameEvent{Type: transport.EventTypeMessage, Origin: testSelfOrigin, Data: "a string"})
	assert.Equal(t, ReasonMalformedPayload, res.Reason)
	assert.ErrorIs(t, res.Err, errspkg.ErrMalformedPayload)

	assert.Zero(t, selected)
	assert.Zero(t, handled)
	assert.Equal(t, []string{loggingpkg.CodeFrameTransportError, loggingpkg.CodeFrameMalformed}, logger.codes())

	s26 := logger.withCode(loggingpkg.CodeFrameTransportError)
	require.Len(t, s26, 1)
	assert.Contains(t, s26[0].fields["data"], "DataCloneError")
	e0008 := logger.withCode(loggingpkg.CodeFrameMalformed)
	require.Len(t, e0008, 1)
	assert.Equal(t, "warn", e0008[0].level)

	res = r.DispatchFrame(transport.FrameEvent{Type: transport.EventTypeMessage, Origin: testSelfOrigin, Data: actionPayload("toggle")})
	assert.True(t, res.Delivered())
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, handled)
}

func TestDispatchFrameIgnoresReplies(t *testing.T) {
	host := transport.NewLocalHost(testSelfOrigin)
	r, _ := newTestRouter(t, host, RouterDependencies{})

	require.NoError(t, r.RegisterHandler("a", payload.Any, func(*Event) (any, error) { return "value", nil }))

	res := r.DispatchFrame(transport.FrameEvent{Type: transport.EventTypeMessage, Origin: testSelfOrigin, Data: actionPayload("toggle")})
	assert.True(t, res.Delivered())
	assert.Equal(t, "value", res.Reply)
}

func TestRuntimeLastReplyWins(t *testing.T) {
	host := transport.NewLocalHost(testSelfOrigin)
	r, _ := newTestRouter(t, host, RouterDependencies{})

	require.NoError(t, r.RegisterHandler("first", payload.Any, func(*Event) (any, error) { return "first", nil }))
	require.NoError(t, r.RegisterHandler("second", payload.Any, func(*Event) (any, error) { return "second", nil }))
	require.NoError(t, r.RegisterHandler("silent", payload.Any, func(*Event) (any, error) { return nil, nil }))

	reply, replied := host.SendRuntime(&transport.Sender{ID: "ext"}, map[string]any{"type": "computation"})
	assert.True(t, replied)
	assert.Equal(t, "second", reply)
}

func TestRuntimeClosesChannelWithoutMatch(t *testing.T) {
	host := transport.NewLocalHost(testSelfOrigin)
	r, logger := newTestRouter(t, host, RouterDependencies{})

	require.NoError(t, r.RegisterHandler("toggle", payload.IsAction(payload.ActionToggle), func(*Event) (any, error) {
		return "unexpected", nil
	}))

	reply, replied := host.SendRuntime(nil, actionPayload("refresh"))
	assert.True(t, replied)
	assert.Nil(t, reply)

	s28 := logger.withCode(loggingpkg.CodeRuntimeReceived)
	require.Len(t, s28, 1)
	assert.Equal(t, "info", s28[0].level)
	assert.Contains(t, s28[0].fields["msg"], "refresh")
}

func TestRuntimeMalformedPayload(t *testing.T) {
	host := transport.NewLocalHost(testSelfOrigin)
	r, logger := newTestRouter(t, host, RouterDependencies{})

	selected := 0
	require.NoError(t, r.RegisterHandler("all", func(payload.Message) bool {
		selected++
		return true
	}, func(*Event) (any, error) { return "reply", nil }))

	var closed int
	res := r.DispatchRuntime(transport.RuntimeEvent{Data: 42}, transport.ResponderFunc(func(v any) error {
		closed++
		assert.Nil(t, v)
		return nil
	}))

	assert.Equal(t, ReasonMalformedPayload, res.Reason)
	assert.Equal(t, 1, closed)
	assert.Zero(t, selected)
	assert.Equal(t, []string{loggingpkg.CodeRuntimeReceived, loggingpkg.CodeRuntimeMalformed}, logger.codes())
}

func TestRuntimeHandlerReceivesSender(t *testing.T) {
	host := transport.NewLocalHost(testSelfOrigin)
	r, _ := newTestRouter(t, host, RouterDependencies{})

	var got *transport.Sender
	require.NoError(t, r.RegisterHandler("sender", payload.Any, func(ev *Event) (any, error) {
		got = ev.Sender
		assert.Equal(t, ChannelRuntime, ev.Channel)
		return nil, nil
	}))

	sender := &transport.Sender{ID: "ext", URL: testExtensionURL + "sidebar.html", TabID: 7}
	host.SendRuntime(sender, map[string]any{"type": "ping"})
	assert.Same(t, sender, got)
}

func TestHandlerFailuresAreIsolated(t *testing.T) {
	host := transport.NewLocalHost(testSelfOrigin)
	r, logger := newTestRouter(t, host, RouterDependencies{})

	boom := errors.New("boom")
	var order []string
	require.NoError(t, r.RegisterHandler("errors", payload.Any, func(*Event) (any, error) {
		order = append(order, "errors")
		return nil, boom
	}))
	require.NoError(t, r.RegisterHandler("panics", payload.Any, func(*Event) (any, error) {
		order = append(order, "panics")
		panic("kaboom")
	}))
	require.NoError(t, r.RegisterHandler("replies", payload.Any, func(*Event) (any, error) {
		order = append(order, "replies")
		return "ok", nil
	}))

	var reply any
	res := r.DispatchRuntime(transport.RuntimeEvent{Data: map[string]any{"type": "x"}}, transport.ResponderFunc(func(v any) error {
		reply = v
		return nil
	}))

	assert.Equal(t, []string{"errors", "panics", "replies"}, order)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, 3, res.Matched)
	require.Len(t, res.Faults, 2)
	assert.Equal(t, "errors", res.Faults[0].Tag)
	assert.ErrorIs(t, res.Faults[0], boom)
	assert.Equal(t, "panics", res.Faults[1].Tag)
	assert.Equal(t, 1, res.Faults[1].Index)
	var panicErr *errspkg.HandlerPanicError
	require.ErrorAs(t, res.Faults[1].Err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
	assert.Len(t, logger.byMessage("Handler failed"), 2)
}

func TestHandlerPanicsAreIsolatedWithoutDefaultMiddlewares(t *testing.T) {
	host := transport.NewLocalHost(testSelfOrigin)
	r, _ := newTestRouter(t, host, RouterDependencies{DisableDefaultMiddlewares: true})

	ran := false
	require.NoError(t, r.RegisterHandler("panics", payload.Any, func(*Event) (any, error) { panic("kaboom") }))
	require.NoError(t, r.RegisterHandler("after", payload.Any, func(*Event) (any, error) {
		ran = true
		return nil, nil
	}))

	assert.NotPanics(t, func() {
		host.PostFrame(testSelfOrigin, actionPayload("toggle"))
	})
	assert.True(t, ran)
}

func TestUnregisterByTagDuringDispatch(t *testing.T) {
	host := transport.NewLocalHost(testSelfOrigin)
	r, _ := newTestRouter(t, host, RouterDependencies{})

	var calls []string
	require.NoError(t, r.RegisterHandler("closer", payload.Any, func(*Event) (any, error) {
		calls = append(calls, "closer")
		r.UnregisterByTag("panel")
		return nil, nil
	}))
	require.NoError(t, r.RegisterHandler("panel", payload.Any, func(*Event) (any, error) {
		calls = append(calls, "panel")
		return nil, nil
	}))

	host.PostFrame(testSelfOrigin, actionPayload("remove"))
	host.PostFrame(testSelfOrigin, actionPayload("remove"))

	assert.Equal(t, []string{"closer", "panel", "closer"}, calls)
	assert.Equal(t, 0, r.UnregisterByTag("panel"))
}

func TestRouterHooksAndMetrics(t *testing.T) {
	host := transport.NewLocalHost(testSelfOrigin)
	metrics := NewRouterMetrics(prometheus.NewRegistry())

	var delivered, rejectedResults []DeliveryResult
	var started, failed []string
	r, _ := newTestRouter(t, host, RouterDependencies{
		Metrics: metrics,
		Hooks: DispatchHooks{
			OnHandlerStart: func(ctx HandlerContext) { started = append(started, ctx.HandlerTag) },
			OnHandlerError: func(ctx HandlerContext, _ error) { failed = append(failed, ctx.HandlerTag) },
			OnDelivered:    func(res DeliveryResult) { delivered = append(delivered, res) },
			OnRejected:     func(res DeliveryResult) { rejectedResults = append(rejectedResults, res) },
		},
	})
	assert.Same(t, metrics, r.Metrics())

	require.NoError(t, r.RegisterHandler("ok", payload.Any, noopHandle))
	require.NoError(t, r.RegisterHandler("bad", payload.Any, func(*Event) (any, error) { panic("boom") }))

	host.PostFrame(testSelfOrigin, actionPayload("toggle"))
	host.PostFrame("https://evil.example", actionPayload("toggle"))
	host.SendRuntime(nil, "not an object")

	assert.Equal(t, []string{"ok", "bad"}, started)
	assert.Equal(t, []string{"bad"}, failed)
	require.Len(t, delivered, 1)
	require.Len(t, rejectedResults, 2)
	assert.Equal(t, ReasonUntrustedOrigin, rejectedResults[0].Reason)
	assert.Equal(t, ReasonMalformedPayload, rejectedResults[1].Reason)

	frame := metrics.GetChannelMetrics(ChannelFrame)
	require.NotNil(t, frame)
	assert.Equal(t, uint64(1), frame.Delivered)
	assert.Equal(t, uint64(1), frame.Rejected)
	assert.Equal(t, uint64(1), frame.Faults)
	assert.Equal(t, uint64(1), frame.Rejections[ReasonUntrustedOrigin])

	runtimeMetrics := metrics.GetChannelMetrics(ChannelRuntime)
	require.NotNil(t, runtimeMetrics)
	assert.Equal(t, uint64(1), runtimeMetrics.Rejections[ReasonMalformedPayload])
}

func TestRouterAccessorsAndClose(t *testing.T) {
	host := newCountingHost()
	r, _ := newTestRouter(t, host, RouterDependencies{})

	assert.Equal(t, testExtensionURL, r.SelfOrigin())
	assert.Equal(t, testHostOrigin, r.TrustedFrameOrigin())
	assert.Nil(t, r.Metrics())

	calls := 0
	require.NoError(t, r.RegisterHandler("a", payload.Any, func(*Event) (any, error) {
		calls++
		return nil, nil
	}))
	host.PostFrame(testSelfOrigin, actionPayload("toggle"))
	require.NoError(t, r.Close())
	assert.False(t, r.Subscribed())

	host.PostFrame(testSelfOrigin, actionPayload("toggle"))
	require.NoError(t, r.RegisterHandler("b", payload.Any, noopHandle))
	frames, _ := host.listens()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, frames)
}
