package ui

import (
	"github.com/bookmycomics/messaging/internal/runtime"
	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
	loggingpkg "github.com/bookmycomics/messaging/internal/runtime/logging"
	"github.com/bookmycomics/messaging/internal/runtime/payload"
	"github.com/bookmycomics/messaging/internal/store"
)

// SidebarDisplayedKey is the store key remembering whether the panel was
// left open.
const SidebarDisplayedKey = "sidebar-displayed"

// BridgeDependencies carries the collaborators of a Bridge.
type BridgeDependencies struct {
	Router   *runtime.Router
	Document Document
	Store    store.Store
	Logger   loggingpkg.ServiceLogger
}

// Bridge drives the side panel from the content script: it injects the
// frame, reacts to the panel's show/hide requests and posts actions into it.
type Bridge struct {
	router *runtime.Router
	doc    Document
	store  store.Store
	logger loggingpkg.ServiceLogger
	codes  *loggingpkg.CodeLogger
}

// NewBridge validates deps. A nil logger discards output.
func NewBridge(deps BridgeDependencies) (*Bridge, error) {
	if deps.Router == nil {
		return nil, errspkg.ErrRouterRequired
	}
	if deps.Document == nil {
		return nil, errspkg.ErrDocumentRequired
	}
	if deps.Store == nil {
		return nil, errspkg.ErrStoreRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	logger = logger.With(loggingpkg.LogFields{"component": "ui-bridge"})

	return &Bridge{
		router: deps.Router,
		doc:    deps.Document,
		store:  deps.Store,
		logger: logger,
		codes:  loggingpkg.NewCodeLogger(logger),
	}, nil
}

// BuildSidePanel attaches the side panel frame loading resourcePath and
// registers the show/hide handlers under the panel's id. setupTracker runs
// whenever the panel is hidden. The panel is reopened when the store says it
// was left open.
func (b *Bridge) BuildSidePanel(setupTracker func(), resourcePath string) error {
	if err := b.doc.AttachFrame(FrameSpec{
		ID:    SidePanel.ID,
		Src:   resourcePath,
		Style: sidePanelStyle(),
	}); err != nil {
		return err
	}
	b.codes.Log(loggingpkg.CodeSidePanelBuilt, loggingpkg.LogFields{"src": resourcePath})

	if err := b.router.RegisterHandler(SidePanel.ID, payload.IsAction(payload.ActionHideSidePanel),
		func(*runtime.Event) (any, error) {
			b.codes.Log(loggingpkg.CodeSidePanelHidden, nil)
			b.persistDisplayed("false")
			if setupTracker != nil {
				setupTracker()
			}
			return nil, nil
		}); err != nil {
		return err
	}

	if err := b.router.RegisterHandler(SidePanel.ID, payload.IsAction(payload.ActionShowSidePanel),
		func(*runtime.Event) (any, error) {
			b.codes.Log(loggingpkg.CodeSidePanelShown, nil)
			b.persistDisplayed("true")
			return nil, b.RemoveRegisterDialog()
		}); err != nil {
		return err
	}

	b.store.Get(SidebarDisplayedKey, func(err error, value string) {
		if err != nil {
			b.logger.Warn("Failed to read side panel state", loggingpkg.LogFields{"error": err.Error()})
			return
		}
		if value == "true" {
			if err := b.ToggleSidePanel(); err != nil {
				b.logger.Error("Failed to reopen side panel", err, nil)
			}
		}
	})
	return nil
}

// MakeSidePanel builds the side panel for a page on hostOrigin using the
// configured panel resource.
func (b *Bridge) MakeSidePanel(setupTracker func(), hostOrigin string) error {
	conf := b.router.Config()
	return b.BuildSidePanel(setupTracker, SidePanelURL(conf.ResourceURL(conf.SidePanelResource), hostOrigin))
}

// ToggleSidePanel asks the panel to flip its visibility.
func (b *Bridge) ToggleSidePanel() error {
	return b.post(payload.Action{Action: payload.ActionToggle, Module: payload.ModuleSidebar})
}

// MakeRegisterDialog asks the panel to offer registering the current comic.
func (b *Bridge) MakeRegisterDialog() error {
	return b.post(payload.Action{Action: payload.ActionSetup, Operation: payload.OperationRegister})
}

// RemoveRegisterDialog withdraws the registration offer.
func (b *Bridge) RemoveRegisterDialog() error {
	return b.post(payload.Action{Action: payload.ActionRemove, Operation: payload.OperationRegister})
}

// RefreshSidePanel asks the panel to rebuild its bookmark list.
func (b *Bridge) RefreshSidePanel() error {
	return b.post(payload.Action{Action: payload.ActionRefresh, Module: payload.ModuleSidebar})
}

// MakeNotification reports the outcome of operation to the panel. extras
// only fill keys the notification does not already carry.
func (b *Bridge) MakeNotification(operation string, err error, extras map[string]any) error {
	if operation == "" {
		operation = "undefined"
	}
	fields := map[string]any{
		payload.FieldType:      payload.TypeAction,
		payload.FieldAction:    payload.ActionNotification,
		payload.FieldOperation: operation,
	}
	if err != nil {
		fields[payload.FieldError] = err.Error()
	}
	for k, v := range extras {
		if _, taken := fields[k]; !taken {
			fields[k] = v
		}
	}

	frame := b.doc.FindWindow(SidePanel)
	if frame == nil {
		return nil
	}
	msg, decodeErr := payload.Decode(fields)
	if decodeErr != nil {
		return decodeErr
	}
	b.codes.Log(loggingpkg.CodeNotificationSent, nil)
	_, postErr := runtime.PostMessage(frame, msg)
	return postErr
}

// RemoveSidePanel detaches the panel frame and drops every handler it
// registered. It reports false when there was no panel.
func (b *Bridge) RemoveSidePanel() bool {
	if b.doc.FindWindow(SidePanel) == nil {
		return false
	}
	b.doc.DetachFrame(SidePanel.ID)
	b.router.UnregisterByTag(SidePanel.ID)
	return true
}

func (b *Bridge) post(msg payload.Message) error {
	_, err := runtime.PostMessage(b.doc.FindWindow(SidePanel), msg)
	return err
}

func (b *Bridge) persistDisplayed(value string) {
	if err := b.store.Set(map[string]string{SidebarDisplayedKey: value}); err != nil {
		b.logger.Warn("Failed to persist side panel state", loggingpkg.LogFields{"error": err.Error()})
	}
}
