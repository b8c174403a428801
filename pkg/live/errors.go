package live

import (
	"errors"

	"github.com/lokutor-ai/lingua-voice/pkg/capture"
)

var (
	// ErrPermission is returned when the microphone is denied or unavailable
	ErrPermission = capture.ErrPermission

	// ErrOutput is returned when no audio output context can be opened
	ErrOutput = errors.New("audio output unavailable")

	// ErrConnect is returned when the remote channel fails to open
	ErrConnect = errors.New("failed to connect to tutoring service")

	// ErrChannel is reported when an open channel fails
	ErrChannel = errors.New("tutoring channel failed")

	// ErrNoChannel is returned when sending on a channel that has been closed
	ErrNoChannel = errors.New("channel closed")

	// ErrSessionClosed is returned when starting a session after Close
	ErrSessionClosed = errors.New("session closed")
)
