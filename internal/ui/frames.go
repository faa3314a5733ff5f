// Package ui wires the extension's side panel to the messaging router. The
// Bridge runs in the content script of the tracked page and owns the panel
// frame; the Panel runs inside that frame and reacts to what the bridge posts.
package ui

import (
	"fmt"
	"maps"
	"net/url"
	"sort"
	"sync"

	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
	"github.com/bookmycomics/messaging/internal/runtime/transport"
)

// FrameDefinition identifies a frame the extension injects into a page.
type FrameDefinition struct {
	ID string
}

// SidePanel is the bookmark side panel frame. Its id doubles as the handler
// tag for everything registered on its behalf.
var SidePanel = FrameDefinition{ID: "BmcSidePanel"}

// FrameSpec describes a frame to attach.
type FrameSpec struct {
	ID    string
	Src   string
	Style map[string]string
}

// FrameFinder locates the window of an attached frame. FindWindow returns
// nil when the frame is not in the document.
type FrameFinder interface {
	FindWindow(def FrameDefinition) transport.Frame
}

// Document is the part of the page DOM the bridge manipulates.
type Document interface {
	FrameFinder
	AttachFrame(spec FrameSpec) error
	DetachFrame(id string) bool
}

// FrameOpener produces the window handle of a newly attached frame.
type FrameOpener func(spec FrameSpec) (transport.Frame, error)

type attachedFrame struct {
	spec   FrameSpec
	window transport.Frame
}

// MemoryDocument is an in-process Document. Frames are opened through the
// FrameOpener supplied at construction.
type MemoryDocument struct {
	open FrameOpener

	mu     sync.RWMutex
	frames map[string]attachedFrame
}

// NewMemoryDocument creates an empty document. A nil opener attaches frames
// that have no window, so FindWindow never locates them.
func NewMemoryDocument(open FrameOpener) *MemoryDocument {
	return &MemoryDocument{
		open:   open,
		frames: make(map[string]attachedFrame),
	}
}

func (d *MemoryDocument) AttachFrame(spec FrameSpec) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.frames[spec.ID]; exists {
		return fmt.Errorf("attach frame %q: %w", spec.ID, errspkg.ErrFrameAlreadyExists)
	}

	var window transport.Frame
	if d.open != nil {
		w, err := d.open(spec)
		if err != nil {
			return fmt.Errorf("attach frame %q: %w", spec.ID, err)
		}
		window = w
	}
	spec.Style = maps.Clone(spec.Style)
	d.frames[spec.ID] = attachedFrame{spec: spec, window: window}
	return nil
}

func (d *MemoryDocument) DetachFrame(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.frames[id]; !exists {
		return false
	}
	delete(d.frames, id)
	return true
}

func (d *MemoryDocument) FindWindow(def FrameDefinition) transport.Frame {
	d.mu.RLock()
	defer d.mu.RUnlock()

	f, ok := d.frames[def.ID]
	if !ok || f.window == nil {
		return nil
	}
	return f.window
}

// Frame returns the FrameSpec an attached frame was created with.
func (d *MemoryDocument) Frame(id string) (FrameSpec, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	f, ok := d.frames[id]
	if !ok {
		return FrameSpec{}, false
	}
	spec := f.spec
	spec.Style = maps.Clone(f.spec.Style)
	return spec, true
}

// FrameIDs lists attached frames in lexical order.
func (d *MemoryDocument) FrameIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.frames))
	for id := range d.frames {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HostOriginParam is the query parameter carrying the tracked page's origin
// into the side panel.
const HostOriginParam = "hostOrigin"

// SidePanelURL appends the escaped host origin to the panel resource URL.
func SidePanelURL(resourceURL, hostOrigin string) string {
	return resourceURL + "?" + HostOriginParam + "=" + url.QueryEscape(hostOrigin)
}

// HostOriginFromURL recovers the host origin a side panel was opened for.
func HostOriginFromURL(panelURL string) (string, error) {
	u, err := url.Parse(panelURL)
	if err != nil {
		return "", fmt.Errorf("parse side panel url: %w", err)
	}
	origin := u.Query().Get(HostOriginParam)
	if origin == "" {
		return "", fmt.Errorf("side panel url %q carries no %s", panelURL, HostOriginParam)
	}
	return origin, nil
}

func sidePanelStyle() map[string]string {
	return map[string]string{
		"width":    "200px",
		"height":   "100vh",
		"position": "fixed",
		"top":      "0",
		"left":     "0",
		"zIndex":   "1000000",
		"border":   "none",
	}
}
