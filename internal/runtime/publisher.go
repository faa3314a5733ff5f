package runtime

import (
	"fmt"

	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
	"github.com/bookmycomics/messaging/internal/runtime/payload"
	"github.com/bookmycomics/messaging/internal/runtime/transport"
)

// PostMessage sends msg to frame using the permissive target origin; the
// receiving router enforces origin trust. A nil frame is a missing target,
// which is expected during UI teardown: nothing is sent and PostMessage
// reports false without an error.
func PostMessage(frame transport.Frame, msg payload.Message) (bool, error) {
	if frame == nil {
		return false, nil
	}
	if msg == nil {
		return false, fmt.Errorf("post message: %w", errspkg.ErrMessageRequired)
	}
	if err := frame.PostMessage(msg.Fields(), transport.TargetAny); err != nil {
		return false, fmt.Errorf("post message: %w", err)
	}
	return true, nil
}
