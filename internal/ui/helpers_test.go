package ui

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookmycomics/messaging/internal/runtime"
	configpkg "github.com/bookmycomics/messaging/internal/runtime/config"
	loggingpkg "github.com/bookmycomics/messaging/internal/runtime/logging"
	"github.com/bookmycomics/messaging/internal/runtime/transport"
	"github.com/bookmycomics/messaging/internal/store"
)

const (
	testExtensionURL = "moz-extension://1f2e3d4c/"
	testSelfOrigin   = "moz-extension://1f2e3d4c"
	testHostOrigin   = "https://manga.example"
)

type logEntry struct {
	level  string
	msg    string
	fields loggingpkg.LogFields
}

type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (l *recordingLogger) record(level, msg string, fields loggingpkg.LogFields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) With(loggingpkg.LogFields) loggingpkg.ServiceLogger { return l }
func (l *recordingLogger) Debug(msg string, f loggingpkg.LogFields) { l.record("debug", msg, f) }
func (l *recordingLogger) Info(msg string, f loggingpkg.LogFields) { l.record("info", msg, f) }
func (l *recordingLogger) Warn(msg string, f loggingpkg.LogFields) { l.record("warn", msg, f) }
func (l *recordingLogger) Trace(msg string, f loggingpkg.LogFields) { l.record("trace", msg, f) }
func (l *recordingLogger) Error(msg string, _ error, f loggingpkg.LogFields) {
	l.record("error", msg, f)
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

type notification struct {
	operation string
	errText   string
}

type recordingView struct {
	mu            sync.Mutex
	renders       []PanelState
	notifications []notification
	refreshes     int
}

func (v *recordingView) Render(state PanelState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.renders = append(v.renders, state)
}

func (v *recordingView) Notify(operation, errText string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notifications = append(v.notifications, notification{operation, errText})
}

func (v *recordingView) RefreshList() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refreshes++
}

type recordingFrame struct {
	mu     sync.Mutex
	posted []map[string]any
	err    error
}

func (f *recordingFrame) PostMessage(msg any, targetOrigin string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fields, _ := msg.(map[string]any)
	f.posted = append(f.posted, fields)
	return nil
}

func (f *recordingFrame) last(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.posted, "nothing was posted")
	return f.posted[len(f.posted)-1]
}

func newRouter(t *testing.T, host transport.Host, trusted string, logger loggingpkg.ServiceLogger) *runtime.Router {
	t.Helper()
	conf := &configpkg.Config{
		ExtensionBaseURL:   testExtensionURL,
		TrustedFrameOrigin: trusted,
		SidePanelResource:  "sidebar.html",
	}
	r, err := runtime.NewRouter(conf, logger, runtime.RouterDependencies{Host: host})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// sidePanelRig connects a content script context and a side panel context
// through two local hosts, the way the browser links a page and its frame.
type sidePanelRig struct {
	contentLogger *recordingLogger
	panelLogger   *recordingLogger
	contentRouter *runtime.Router
	panelRouter   *runtime.Router
	doc           *MemoryDocument
	store         *store.Memory
	bridge        *Bridge
	panel         *Panel
	view          *recordingView
}

func newSidePanelRig(t *testing.T) *sidePanelRig {
	t.Helper()
	contentHost := transport.NewLocalHost(testHostOrigin)
	panelHost := transport.NewLocalHost(testSelfOrigin)

	rig := &sidePanelRig{
		contentLogger: newRecordingLogger(),
		panelLogger:   newRecordingLogger(),
		store:         store.NewMemory(nil),
		view:          &recordingView{},
	}
	rig.contentRouter = newRouter(t, contentHost, "", rig.contentLogger)
	rig.panelRouter = newRouter(t, panelHost, testHostOrigin, rig.panelLogger)

	var err error
	rig.panel, err = NewPanel(PanelDependencies{
		Router: rig.panelRouter,
		Top:    contentHost.Window(testSelfOrigin),
		View:   rig.view,
		Logger: rig.panelLogger,
	})
	require.NoError(t, err)
	require.NoError(t, rig.panel.Start())

	rig.doc = NewMemoryDocument(func(FrameSpec) (transport.Frame, error) {
		return panelHost.Window(testHostOrigin), nil
	})
	rig.bridge, err = NewBridge(BridgeDependencies{
		Router:   rig.contentRouter,
		Document: rig.doc,
		Store:    rig.store,
		Logger:   rig.contentLogger,
	})
	require.NoError(t, err)
	return rig
}

func (rig *sidePanelRig) stored(t *testing.T, key string) string {
	t.Helper()
	var value string
	rig.store.Get(key, func(err error, v string) {
		require.NoError(t, err)
		value = v
	})
	return value
}
