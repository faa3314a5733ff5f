// Package payload gives typed shapes to the structured objects exchanged over
// the frame and runtime channels.
//
// Messages are discriminated by their "type" field. Objects whose type is
// "action" decode into Action; every other object decodes into Opaque so that
// unknown shapes still flow through the router untouched.
package payload

import (
	"maps"

	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
)

// Discriminator values for the "type" field.
const (
	TypeAction      = "action"
	TypeComputation = "computation"
)

// Well-known action names.
const (
	ActionToggle        = "toggle"
	ActionSetup         = "setup"
	ActionRemove        = "remove"
	ActionRefresh       = "refresh"
	ActionNotification  = "notification"
	ActionShowSidePanel = "ShowSidePanel"
	ActionHideSidePanel = "HideSidePanel"
	ActionCheckSidebar  = "CheckSidebar"
	ActionIFrameResize  = "IFrameResize"
	ActionURLOpen       = "urlopen"
	ActionAlias         = "alias"
	ActionDelete        = "delete"
	ActionRegister      = "register"
)

const (
	ModuleSidebar     = "sidebar"
	OperationRegister = "register"
	OperationTrack    = "track"
)

// Field names with a dedicated slot on Action.
const (
	FieldType      = "type"
	FieldAction    = "action"
	FieldModule    = "module"
	FieldOperation = "operation"
	FieldError     = "error"
)

// Message is a decoded structured payload.
type Message interface {
	// Type returns the "type" discriminator, or "" when absent.
	Type() string
	// Get looks up a top-level field.
	Get(key string) (any, bool)
	// Fields returns a fresh copy of the whole object, suitable for posting.
	Fields() map[string]any
}

// Action is the {type: "action", action, module?, operation?, error?} shape.
// Extras holds every other field.
type Action struct {
	Action    string
	Module    string
	Operation string
	Error     string
	Extras    map[string]any
}

func (a Action) Type() string { return TypeAction }

func (a Action) Get(key string) (any, bool) {
	switch key {
	case FieldType:
		return TypeAction, true
	case FieldAction:
		if a.Action != "" {
			return a.Action, true
		}
	case FieldModule:
		if a.Module != "" {
			return a.Module, true
		}
	case FieldOperation:
		if a.Operation != "" {
			return a.Operation, true
		}
	case FieldError:
		if a.Error != "" {
			return a.Error, true
		}
	}
	v, ok := a.Extras[key]
	return v, ok
}

// Fields renders the action as a plain object. Extras never override the
// dedicated fields.
func (a Action) Fields() map[string]any {
	out := make(map[string]any, len(a.Extras)+5)
	for k, v := range a.Extras {
		out[k] = v
	}
	out[FieldType] = TypeAction
	setIfNotEmpty(out, FieldAction, a.Action)
	setIfNotEmpty(out, FieldModule, a.Module)
	setIfNotEmpty(out, FieldOperation, a.Operation)
	setIfNotEmpty(out, FieldError, a.Error)
	return out
}

// Opaque carries any object that is not an action.
type Opaque struct {
	fields map[string]any
}

// NewOpaque wraps fields without copying them.
func NewOpaque(fields map[string]any) Opaque {
	return Opaque{fields: fields}
}

func (o Opaque) Type() string {
	t, _ := o.fields[FieldType].(string)
	return t
}

func (o Opaque) Get(key string) (any, bool) {
	v, ok := o.fields[key]
	return v, ok
}

func (o Opaque) Fields() map[string]any {
	out := make(map[string]any, len(o.fields))
	maps.Copy(out, o.fields)
	return out
}

// Decode converts an inbound value into a Message. Only structured objects
// are accepted: primitives, slices and nil yield ErrMalformedPayload.
func Decode(v any) (Message, error) {
	switch t := v.(type) {
	case Message:
		return t, nil
	case map[string]any:
		return fromObject(t), nil
	default:
		return nil, errspkg.ErrMalformedPayload
	}
}

func fromObject(obj map[string]any) Message {
	if kind, _ := obj[FieldType].(string); kind != TypeAction {
		return NewOpaque(obj)
	}

	a := Action{}
	for k, v := range obj {
		s, isString := v.(string)
		switch {
		case k == FieldType:
		case k == FieldAction && isString:
			a.Action = s
		case k == FieldModule && isString:
			a.Module = s
		case k == FieldOperation && isString:
			a.Operation = s
		case k == FieldError && isString:
			a.Error = s
		default:
			if a.Extras == nil {
				a.Extras = make(map[string]any)
			}
			a.Extras[k] = v
		}
	}
	return a
}

func setIfNotEmpty(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}
