package ui

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/bookmycomics/messaging/internal/runtime"
	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
	loggingpkg "github.com/bookmycomics/messaging/internal/runtime/logging"
	"github.com/bookmycomics/messaging/internal/runtime/payload"
	"github.com/bookmycomics/messaging/internal/runtime/transport"
)

// Notification operations after which the panel knows whether the current
// page is bookmarked.
const (
	OperationAliasComic        = "Alias Comic"
	OperationRegisterComic     = "Register Comic"
	OperationDeleteComicSource = "Delete Comic Source"
	OperationDeleteComic       = "Delete Comic"
)

// Source URL computation understood by the background context.
const (
	ModuleSources          = "sources"
	ComputationGenerateURL = "URL:Generate:Request"
)

// Registration is what the panel knows about the current page's bookmark.
type Registration int

const (
	RegistrationUnknown Registration = iota
	Registered
	Unregistered
)

func (r Registration) String() string {
	switch r {
	case Registered:
		return "registered"
	case Unregistered:
		return "unregistered"
	default:
		return "unknown"
	}
}

// Comic identifies the comic shown on the tracked page.
type Comic struct {
	ID     string
	Source string
	Name   string
}

// PanelState is everything the panel view renders.
type PanelState struct {
	Visible        bool
	Registration   Registration
	RegisterPrompt bool
	Comic          *Comic
}

// PanelView renders the panel. Calls happen on the dispatching goroutine.
type PanelView interface {
	Render(state PanelState)
	Notify(operation, errText string)
	RefreshList()
}

// Requester sends a runtime message and waits for its reply.
// transport.ChannelHost satisfies it.
type Requester interface {
	Request(ctx context.Context, sender *transport.Sender, data any) (any, error)
}

// PanelDependencies carries the collaborators of a Panel.
type PanelDependencies struct {
	Router *runtime.Router
	// Top is the window embedding the panel.
	Top transport.Frame
	// Runtime resolves source URLs. Optional; OpenSource fails without it.
	Runtime Requester
	View    PanelView
	Logger  loggingpkg.ServiceLogger
}

// Panel is the handler group running inside the side panel frame.
type Panel struct {
	router  *runtime.Router
	top     transport.Frame
	runtime Requester
	view    PanelView
	logger  loggingpkg.ServiceLogger
	codes   *loggingpkg.CodeLogger

	mu    sync.Mutex
	state PanelState
}

// NewPanel validates deps.
func NewPanel(deps PanelDependencies) (*Panel, error) {
	if deps.Router == nil {
		return nil, errspkg.ErrRouterRequired
	}
	if deps.View == nil {
		return nil, errspkg.ErrViewRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	logger = logger.With(loggingpkg.LogFields{"component": "ui-panel"})

	return &Panel{
		router:  deps.Router,
		top:     deps.Top,
		runtime: deps.Runtime,
		view:    deps.View,
		logger:  logger,
		codes:   loggingpkg.NewCodeLogger(logger),
	}, nil
}

// Start registers the panel handlers and asks the top window whether the
// panel should open.
func (p *Panel) Start() error {
	handlers := []struct {
		sel    runtime.SelectFunc
		handle runtime.HandleFunc
	}{
		{payload.IsAction(payload.ActionNotification), p.onNotification},
		{payload.Pattern{Type: payload.TypeAction, Action: payload.ActionSetup, Operation: payload.OperationRegister}.Match, p.onRegisterPrompt},
		{payload.Pattern{Type: payload.TypeAction, Action: payload.ActionRemove, Operation: payload.OperationRegister}.Match, p.onRegisterWithdrawn},
		{payload.Pattern{Type: payload.TypeAction, Action: payload.ActionNotification, Operation: payload.OperationTrack}.Match, p.onTrack},
		{payload.Pattern{Type: payload.TypeAction, Action: payload.ActionToggle, Module: payload.ModuleSidebar}.Match, p.onToggle},
		{payload.Pattern{Type: payload.TypeAction, Action: payload.ActionRefresh, Module: payload.ModuleSidebar}.Match, p.onRefresh},
		{isBookmarkOutcome, p.onBookmarkOutcome},
	}
	for _, h := range handlers {
		if err := p.router.RegisterHandler(SidePanel.ID, h.sel, h.handle); err != nil {
			return err
		}
	}
	return p.postTop(payload.Action{Action: payload.ActionCheckSidebar})
}

// Close unregisters the panel handlers.
func (p *Panel) Close() int {
	return p.router.UnregisterByTag(SidePanel.ID)
}

// State returns a copy of the current state.
func (p *Panel) State() PanelState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// SetVisible shows or hides the panel and tells the top window so it can
// remember the choice.
func (p *Panel) SetVisible(visible bool) error {
	state := p.update(func(s *PanelState) { s.Visible = visible })
	p.view.Render(state)

	action := payload.ActionHideSidePanel
	if visible {
		action = payload.ActionShowSidePanel
	}
	return p.postTop(payload.Action{Action: action})
}

// Toggle flips visibility.
func (p *Panel) Toggle() error {
	return p.SetVisible(!p.State().Visible)
}

// Register asks the top window to bookmark the current page under label.
func (p *Panel) Register(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return errspkg.ErrLabelRequired
	}
	return p.postTop(payload.Action{
		Action: payload.ActionRegister,
		Extras: map[string]any{"label": label},
	})
}

// SourceRef names one reader site a comic is tracked on.
type SourceRef struct {
	Reader string
	Name   string
	// Info carries reader specific fields merged into the URL request.
	Info map[string]any
}

// Delete asks the top window to delete a comic, or only one of its sources
// when source is set.
func (p *Panel) Delete(comicID string, source *SourceRef) error {
	extras := map[string]any{"comic": map[string]any{"id": comicID}}
	fields := loggingpkg.LogFields{"id": comicID}
	if source != nil {
		extras["source"] = map[string]any{"reader": source.Reader, "name": source.Name}
		fields["reader"] = source.Reader
		fields["name"] = source.Name
	}
	p.logger.Debug("Requesting bookmark deletion", fields)
	return p.postTop(payload.Action{Action: payload.ActionDelete, Extras: extras})
}

// DeleteCurrent deletes the comic the tracked page shows.
func (p *Panel) DeleteCurrent() error {
	comic := p.State().Comic
	if comic == nil {
		return errors.New("no current comic information available")
	}
	return p.Delete(comic.ID, &SourceRef{Reader: comic.Source, Name: comic.Name})
}

// Alias asks the top window to attach the current page to comic id.
func (p *Panel) Alias(comicID string) error {
	p.logger.Info("Requesting alias", loggingpkg.LogFields{"id": comicID})
	return p.postTop(payload.Action{Action: payload.ActionAlias, Extras: map[string]any{"id": comicID}})
}

// Progress is a reading position.
type Progress struct {
	Chapter int
	Page    int
}

// OpenSource resolves the reader URL for a comic at progress through the
// runtime channel, then asks the top window to open it. The resolved URL is
// returned.
func (p *Panel) OpenSource(ctx context.Context, origin string, progress Progress, source SourceRef) (string, error) {
	if p.runtime == nil {
		return "", fmt.Errorf("open source: %w", errspkg.ErrHostRequired)
	}

	comic := map[string]any{
		"common": map[string]any{
			"name":    source.Name,
			"chapter": progress.Chapter,
			"page":    progress.Page,
		},
	}
	maps.Copy(comic, source.Info)
	request := map[string]any{
		payload.FieldType:   payload.TypeComputation,
		payload.FieldModule: ModuleSources,
		"computation":       ComputationGenerateURL,
		"resource": map[string]any{
			"origin": origin,
			"reader": source.Reader,
			"comic":  comic,
		},
	}

	reply, err := p.runtime.Request(ctx, &transport.Sender{URL: origin}, request)
	if err == nil {
		var target string
		target, err = resourceURL(reply)
		if err == nil {
			return target, p.postTop(payload.Action{
				Action: payload.ActionURLOpen,
				Extras: map[string]any{"url": target},
			})
		}
	}
	p.codes.Warn(loggingpkg.CodeSourceURLFailed, loggingpkg.LogFields{"err": err.Error()})
	return "", fmt.Errorf("open source: %w", err)
}

func (p *Panel) onNotification(ev *runtime.Event) (any, error) {
	op := stringField(ev.Payload, payload.FieldOperation)
	errText := stringField(ev.Payload, payload.FieldError)
	p.codes.Log(loggingpkg.CodePanelNotified, loggingpkg.LogFields{"op": op, "error": errText})

	p.view.Notify(op, errText)
	if errText != "" {
		p.codes.Error(loggingpkg.CodePanelNotifyFailed, errors.New(errText), loggingpkg.LogFields{"operation": op})
	}
	return nil, nil
}

func (p *Panel) onRegisterPrompt(*runtime.Event) (any, error) {
	p.view.Render(p.update(func(s *PanelState) {
		s.Registration = Unregistered
		s.RegisterPrompt = true
	}))
	p.codes.Log(loggingpkg.CodePanelRegisterPrompt, nil)
	return nil, nil
}

func (p *Panel) onRegisterWithdrawn(*runtime.Event) (any, error) {
	p.view.Render(p.update(func(s *PanelState) { s.RegisterPrompt = false }))
	return nil, nil
}

func (p *Panel) onTrack(ev *runtime.Event) (any, error) {
	if errText := stringField(ev.Payload, payload.FieldError); errText != "" {
		p.logger.Warn("Tracking failed", loggingpkg.LogFields{"error": errText})
		return nil, nil
	}
	comic, ok := comicFrom(ev.Payload)
	if !ok {
		p.logger.Warn("Missing information for current comic", loggingpkg.LogFields{"payload": ev.Payload.Fields()})
		return nil, nil
	}
	p.view.Render(p.update(func(s *PanelState) {
		s.Registration = Registered
		s.RegisterPrompt = false
		s.Comic = comic
	}))
	return nil, nil
}

func (p *Panel) onToggle(*runtime.Event) (any, error) {
	return nil, p.Toggle()
}

func (p *Panel) onRefresh(*runtime.Event) (any, error) {
	p.view.RefreshList()
	return nil, nil
}

func (p *Panel) onBookmarkOutcome(ev *runtime.Event) (any, error) {
	op := stringField(ev.Payload, payload.FieldOperation)
	p.view.Render(p.update(func(s *PanelState) {
		if strings.HasPrefix(op, "Delete") {
			s.Registration = Unregistered
			s.Comic = nil
			return
		}
		s.Registration = Registered
		s.RegisterPrompt = false
		comic, _ := comicFrom(ev.Payload)
		s.Comic = comic
	}))
	return nil, nil
}

func isBookmarkOutcome(msg payload.Message) bool {
	if !payload.IsAction(payload.ActionNotification)(msg) {
		return false
	}
	switch stringField(msg, payload.FieldOperation) {
	case OperationAliasComic, OperationRegisterComic, OperationDeleteComicSource, OperationDeleteComic:
		return true
	}
	return false
}

func (p *Panel) update(fn func(*PanelState)) PanelState {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.state)
	return p.snapshotLocked()
}

func (p *Panel) snapshotLocked() PanelState {
	state := p.state
	if state.Comic != nil {
		comic := *state.Comic
		state.Comic = &comic
	}
	return state
}

func (p *Panel) postTop(msg payload.Message) error {
	_, err := runtime.PostMessage(p.top, msg)
	return err
}

// comicFrom reads comicId, comicSource and comicName. It reports false when
// any of them is absent.
func comicFrom(msg payload.Message) (*Comic, bool) {
	id, okID := msg.Get("comicId")
	source, okSource := msg.Get("comicSource")
	name, okName := msg.Get("comicName")
	if !okID || !okSource || !okName {
		return nil, false
	}
	return &Comic{ID: fmt.Sprint(id), Source: fmt.Sprint(source), Name: fmt.Sprint(name)}, true
}

func stringField(msg payload.Message, key string) string {
	v, ok := msg.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func resourceURL(reply any) (string, error) {
	obj, ok := reply.(map[string]any)
	if !ok {
		return "", fmt.Errorf("unexpected reply %T", reply)
	}
	resource, ok := obj["resource"].(map[string]any)
	if !ok {
		return "", errors.New("reply carries no resource")
	}
	target, ok := resource["url"].(string)
	if !ok || target == "" {
		return "", errors.New("reply resource carries no url")
	}
	return target, nil
}
