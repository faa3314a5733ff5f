package logging

// Message codes emitted by the messaging layer. Codes starting with S are
// status traces, codes starting with E are recoverable errors.
const (
	CodeFrameTransportError = "S26"
	CodeRuntimeReceived     = "S28"
	CodeSidePanelBuilt      = "S31"
	CodeSidePanelHidden     = "S32"
	CodeSidePanelShown      = "S33"
	CodeNotificationSent    = "S34"
	CodePanelNotified       = "S53"
	CodePanelRegisterPrompt = "S54"
	CodeRuntimeMalformed    = "E0004"
	CodeFrameMalformed      = "E0008"
	CodeSourceURLFailed     = "E0013"
	CodePanelNotifyFailed   = "E0016"
)

var codeMessages = map[string]string{
	CodeFrameTransportError: "frame channel delivered an error event",
	CodeRuntimeReceived:     "runtime message received",
	CodeSidePanelBuilt:      "side panel frame attached",
	CodeSidePanelHidden:     "side panel hidden",
	CodeSidePanelShown:      "side panel shown",
	CodeNotificationSent:    "notification posted to side panel",
	CodePanelNotified:       "side panel received a notification",
	CodePanelRegisterPrompt: "side panel prompting for registration",
	CodeRuntimeMalformed:    "runtime message payload is not an object",
	CodeFrameMalformed:      "frame message payload is not an object",
	CodeSourceURLFailed:     "could not resolve the comic source URL",
	CodePanelNotifyFailed:   "side panel notification reported an error",
}

// Describe returns the human readable text registered for code, or the code
// itself when it is unknown.
func Describe(code string) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return code
}

// CodeLogger tags every entry with a message code so log consumers can key on
// stable identifiers instead of free text.
type CodeLogger struct {
	base ServiceLogger
}

// NewCodeLogger wraps base. A nil base discards all entries.
func NewCodeLogger(base ServiceLogger) *CodeLogger {
	if base == nil {
		base = NopLogger()
	}
	return &CodeLogger{base: base}
}

func (c *CodeLogger) Log(code string, fields LogFields) {
	c.base.Info(Describe(code), withCode(code, fields))
}

func (c *CodeLogger) Warn(code string, fields LogFields) {
	c.base.Warn(Describe(code), withCode(code, fields))
}

func (c *CodeLogger) Error(code string, err error, fields LogFields) {
	c.base.Error(Describe(code), err, withCode(code, fields))
}

func (c *CodeLogger) Debug(code string, fields LogFields) {
	c.base.Debug(Describe(code), withCode(code, fields))
}

// Base exposes the wrapped logger.
func (c *CodeLogger) Base() ServiceLogger {
	return c.base
}

func withCode(code string, fields LogFields) LogFields {
	out := make(LogFields, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["code"] = code
	return out
}
