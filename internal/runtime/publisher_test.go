package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/bookmycomics/messaging/internal/runtime/errors"
	"github.com/bookmycomics/messaging/internal/runtime/payload"
)

type recordingFrame struct {
	posts   []any
	targets []string
	err     error
}

func (f *recordingFrame) PostMessage(msg any, targetOrigin string) error {
	if f.err != nil {
		return f.err
	}
	f.posts = append(f.posts, msg)
	f.targets = append(f.targets, targetOrigin)
	return nil
}

func TestPostMessage(t *testing.T) {
	frame := &recordingFrame{}

	sent, err := PostMessage(frame, payload.Action{Action: payload.ActionRefresh})
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, []string{"*"}, frame.targets)
	assert.Equal(t, map[string]any{"type": "action", "action": "refresh"}, frame.posts[0])
}

func TestPostMessageMissingFrameIsSilent(t *testing.T) {
	sent, err := PostMessage(nil, payload.Action{Action: payload.ActionRefresh})
	assert.NoError(t, err)
	assert.False(t, sent)
}

func TestPostMessageErrors(t *testing.T) {
	_, err := PostMessage(&recordingFrame{}, nil)
	assert.ErrorIs(t, err, errspkg.ErrMessageRequired)

	boom := errors.New("detached")
	_, err = PostMessage(&recordingFrame{err: boom}, payload.Action{Action: payload.ActionToggle})
	assert.ErrorIs(t, err, boom)
}
