package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrRouterRequired     = sterrors.New("bmc: message router is required")
	ErrHandlerRequired    = sterrors.New("bmc: handler function is required")
	ErrSelectorRequired   = sterrors.New("bmc: selector function is required")
	ErrHostRequired       = sterrors.New("bmc: host transport is required")
	ErrConfigRequired     = sterrors.New("bmc: configuration is required")
	ErrLoggerRequired     = sterrors.New("bmc: logger is required")
	ErrMalformedPayload   = sterrors.New("bmc: payload is not a structured object")
	ErrUnknownTransport   = sterrors.New("bmc: unknown host transport")
	ErrChannelClosed      = sterrors.New("bmc: channel is closed")
	ErrReplyAlreadySent   = sterrors.New("bmc: reply channel already closed")
	ErrNoReply            = sterrors.New("bmc: no reply received")
	ErrFrameAlreadyExists = sterrors.New("bmc: frame already attached")
	ErrMessageRequired    = sterrors.New("bmc: message is required")
	ErrDocumentRequired   = sterrors.New("bmc: document is required")
	ErrStoreRequired      = sterrors.New("bmc: store is required")
	ErrStoreKeyRequired   = sterrors.New("bmc: store key is required")
	ErrViewRequired       = sterrors.New("bmc: panel view is required")
	ErrLabelRequired      = sterrors.New("bmc: comic label is required")
)

// ConfigValidationError marks a configuration rejected by Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("bmc: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

// HandlerPanicError carries a value recovered from a panicking handler.
type HandlerPanicError struct {
	Value any
	Stack string
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("bmc: handler panicked: %v", e.Value)
}
