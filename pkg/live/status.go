package live

type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusConnecting Status = "CONNECTING"
	StatusListening  Status = "LISTENING"
	StatusSpeaking   Status = "SPEAKING"
	StatusError      Status = "ERROR"
)

// Text is the message shown to the learner for each status.
func (s Status) Text() string {
	switch s {
	case StatusConnecting:
		return "Connecting to Toby..."
	case StatusListening:
		return "Listening..."
	case StatusSpeaking:
		return "Toby is speaking..."
	case StatusError:
		return "An error occurred. Please try again."
	default:
		return "Tap the mic to start your lesson."
	}
}

// Active reports whether a session is running or being set up. The mic
// button stops an active session and starts an inactive one.
func (s Status) Active() bool {
	return s == StatusConnecting || s == StatusListening || s == StatusSpeaking
}
