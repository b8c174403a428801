package live

import (
	"strings"
	"sync"
)

// Turn is one exchange: what the learner said and what the tutor answered.
type Turn struct {
	UserInput   string `json:"userInput"`
	ModelOutput string `json:"modelOutput"`
}

// IsEmpty reports whether both sides are blank.
func (t Turn) IsEmpty() bool {
	return strings.TrimSpace(t.UserInput) == "" && strings.TrimSpace(t.ModelOutput) == ""
}

// Transcript holds the finalized history and the open turn being accumulated
// from streaming fragments.
type Transcript struct {
	mu      sync.RWMutex
	history []Turn
	input   strings.Builder
	output  strings.Builder
}

func NewTranscript() *Transcript {
	return &Transcript{history: []Turn{}}
}

// AppendInput adds a partial transcription of the learner's speech.
func (t *Transcript) AppendInput(fragment string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input.WriteString(fragment)
}

// AppendOutput adds a partial transcription of the tutor's speech.
func (t *Transcript) AppendOutput(fragment string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.output.WriteString(fragment)
}

// Finalize closes the open turn. The turn is appended to history only when
// one side is non-blank; the open buffers are cleared either way.
func (t *Transcript) Finalize() (Turn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	turn := Turn{UserInput: t.input.String(), ModelOutput: t.output.String()}
	t.input.Reset()
	t.output.Reset()
	if turn.IsEmpty() {
		return turn, false
	}
	t.history = append(t.history, turn)
	return turn, true
}

// Current returns the open turn.
func (t *Transcript) Current() Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Turn{UserInput: t.input.String(), ModelOutput: t.output.String()}
}

// History returns a copy of the finalized turns in order.
func (t *Transcript) History() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Turn, len(t.history))
	copy(out, t.history)
	return out
}

// Clear drops history and the open turn.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = []Turn{}
	t.input.Reset()
	t.output.Reset()
}
