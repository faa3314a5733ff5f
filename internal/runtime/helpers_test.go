package runtime

import (
	"sync"
	"testing"

	configpkg "github.com/bookmycomics/messaging/internal/runtime/config"
	loggingpkg "github.com/bookmycomics/messaging/internal/runtime/logging"
	"github.com/bookmycomics/messaging/internal/runtime/transport"
)

const (
	testExtensionURL = "moz-extension://1f2e3d4c/"
	testSelfOrigin   = "moz-extension://1f2e3d4c"
	testHostOrigin   = "https://manga.example"
)

type logEntry struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	fields  loggingpkg.LogFields
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (l *recordingLogger) record(level, msg string, err error, fields loggingpkg.LogFields) {
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, err: err, fields: merged})
}

func (l *recordingLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger {
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &recordingLogger{mu: l.mu, entries: l.entries, fields: merged}
}

func (l *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.record("debug", msg, nil, fields)
}

func (l *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.record("info", msg, nil, fields)
}

func (l *recordingLogger) Warn(msg string, fields loggingpkg.LogFields) {
	l.record("warn", msg, nil, fields)
}

func (l *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.record("error", msg, err, fields)
}

func (l *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	l.record("trace", msg, nil, fields)
}

// codes returns the message codes logged so far, in order.
func (l *recordingLogger) codes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range *l.entries {
		if code, ok := e.fields["code"].(string); ok {
			out = append(out, code)
		}
	}
	return out
}

func (l *recordingLogger) withCode(code string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range *l.entries {
		if e.fields["code"] == code {
			out = append(out, e)
		}
	}
	return out
}

func (l *recordingLogger) byMessage(msg string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range *l.entries {
		if e.msg == msg {
			out = append(out, e)
		}
	}
	return out
}

// countingHost wraps a LocalHost and counts Listen calls per channel.
type countingHost struct {
	*transport.LocalHost

	mu             sync.Mutex
	frameListens   int
	runtimeListens int
	frameErr       error
	runtimeErr     error
}

func newCountingHost() *countingHost {
	return &countingHost{LocalHost: transport.NewLocalHost(testSelfOrigin)}
}

func (h *countingHost) Frames() transport.FrameChannel {
	return countingFrames{h}
}

func (h *countingHost) Runtime() transport.RuntimeChannel {
	return countingRuntime{h}
}

type countingFrames struct{ h *countingHost }

func (c countingFrames) Listen(fn transport.FrameListener) (transport.Unsubscribe, error) {
	c.h.mu.Lock()
	c.h.frameListens++
	err := c.h.frameErr
	c.h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.h.LocalHost.Frames().Listen(fn)
}

type countingRuntime struct{ h *countingHost }

func (c countingRuntime) Listen(fn transport.RuntimeListener) (transport.Unsubscribe, error) {
	c.h.mu.Lock()
	c.h.runtimeListens++
	err := c.h.runtimeErr
	c.h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.h.LocalHost.Runtime().Listen(fn)
}

func (h *countingHost) listens() (frames, runtimes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frameListens, h.runtimeListens
}

func testConfig() *configpkg.Config {
	return &configpkg.Config{
		ExtensionBaseURL:   testExtensionURL,
		TrustedFrameOrigin: testHostOrigin,
	}
}

func newTestRouter(t *testing.T, host transport.Host, deps RouterDependencies) (*Router, *recordingLogger) {
	t.Helper()
	logger := newRecordingLogger()
	deps.Host = host
	r, err := NewRouter(testConfig(), logger, deps)
	if err != nil {
		t.Fatalf("unexpected router error: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r, logger
}

func actionPayload(action string) map[string]any {
	return map[string]any{"type": "action", "action": action}
}
