package runtime

import "fmt"

// DeliveryStatus is the outcome of dispatching one inbound event.
type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "delivered"
	StatusRejected  DeliveryStatus = "rejected"
)

// RejectionReason explains why an event never reached the handlers.
type RejectionReason string

const (
	ReasonNone             RejectionReason = ""
	ReasonNotDeliverable   RejectionReason = "not_deliverable"
	ReasonTransportError   RejectionReason = "transport_error"
	ReasonUntrustedOrigin  RejectionReason = "untrusted_origin"
	ReasonMalformedPayload RejectionReason = "malformed_payload"
)

// DeliveryFault records a handler that failed while the remaining handlers
// kept running.
type DeliveryFault struct {
	Tag   string
	Index int
	Err   error
}

func (f DeliveryFault) Error() string {
	return fmt.Sprintf("handler %q (#%d): %v", f.Tag, f.Index, f.Err)
}

func (f DeliveryFault) Unwrap() error {
	return f.Err
}

// DeliveryResult summarises one dispatch.
type DeliveryResult struct {
	EventID string
	Channel Channel
	Origin  string
	Status  DeliveryStatus
	Reason  RejectionReason
	// Err carries the transport or decode error behind a rejection.
	Err error
	// Matched counts handlers whose selector accepted the payload.
	Matched int
	// Reply is the value sent back on the runtime channel, if any.
	Reply  any
	Faults []DeliveryFault
}

// Delivered reports whether the event reached the handler stage.
func (r DeliveryResult) Delivered() bool {
	return r.Status == StatusDelivered
}

func rejected(ev *Event, reason RejectionReason, err error) DeliveryResult {
	return DeliveryResult{
		EventID: ev.ID,
		Channel: ev.Channel,
		Origin:  ev.Origin,
		Status:  StatusRejected,
		Reason:  reason,
		Err:     err,
	}
}
