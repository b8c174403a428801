package live

import (
	"strings"
	"testing"
)

func TestTranscript_FinalizeJoinsFragments(t *testing.T) {
	tr := NewTranscript()
	tr.AppendOutput("Hello")
	tr.AppendOutput(" world")
	tr.AppendInput("Hi")

	turn, ok := tr.Finalize()
	if !ok {
		t.Fatal("expected turn appended")
	}
	if turn.ModelOutput != "Hello world" || turn.UserInput != "Hi" {
		t.Errorf("unexpected turn %+v", turn)
	}
	if cur := tr.Current(); cur.UserInput != "" || cur.ModelOutput != "" {
		t.Errorf("expected buffers reset, got %+v", cur)
	}
	if len(tr.History()) != 1 {
		t.Errorf("expected 1 turn, got %d", len(tr.History()))
	}
}

func TestTranscript_EmptyTurnsSkipped(t *testing.T) {
	tr := NewTranscript()
	if _, ok := tr.Finalize(); ok {
		t.Error("empty turn must not be appended")
	}

	tr.AppendInput(" \n\t")
	if _, ok := tr.Finalize(); ok {
		t.Error("whitespace turn must not be appended")
	}
	if cur := tr.Current(); cur.UserInput != "" {
		t.Error("buffers must be cleared even when nothing is appended")
	}
	if len(tr.History()) != 0 {
		t.Errorf("expected empty history, got %d", len(tr.History()))
	}
}

func TestTranscript_HistoryIsCopy(t *testing.T) {
	tr := NewTranscript()
	tr.AppendOutput("one")
	tr.Finalize()

	h := tr.History()
	h[0].ModelOutput = "changed"
	if tr.History()[0].ModelOutput != "one" {
		t.Error("history must not be mutable through the returned slice")
	}

	tr.Clear()
	if len(tr.History()) != 0 {
		t.Error("expected history cleared")
	}
}

func TestRenderInstruction(t *testing.T) {
	got := RenderInstruction("", "Portuguese")
	if strings.Contains(got, languagePlaceholder) {
		t.Error("placeholder left in rendered instruction")
	}
	if strings.Count(got, "Portuguese") < 3 {
		t.Errorf("expected language substituted throughout, got %q", got)
	}

	if got := RenderInstruction("Teach in {language}.", "Korean"); got != "Teach in Korean." {
		t.Errorf("unexpected custom render %q", got)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		status Status
		active bool
		text   string
	}{
		{StatusIdle, false, "Tap the mic to start your lesson."},
		{StatusConnecting, true, "Connecting to Toby..."},
		{StatusListening, true, "Listening..."},
		{StatusSpeaking, true, "Toby is speaking..."},
		{StatusError, false, "An error occurred. Please try again."},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if tt.status.Active() != tt.active {
				t.Errorf("Active() = %v, want %v", tt.status.Active(), tt.active)
			}
			if tt.status.Text() != tt.text {
				t.Errorf("Text() = %q, want %q", tt.status.Text(), tt.text)
			}
		})
	}
}

func TestSession_ClearHistory(t *testing.T) {
	dialer := newFakeDialer()
	dev := &devices{}
	s := newTestSession(dialer, dev)
	defer s.Close()

	h := startOpen(t, s, dialer)
	h.OnMessage(ServerMessage{OutputTranscription: "Hi", TurnComplete: true})
	h.OnMessage(ServerMessage{InputTranscription: "partial"})

	s.ClearHistory()
	snap := s.Snapshot()
	if len(snap.History) != 0 || snap.Current.UserInput != "" {
		t.Errorf("expected cleared transcript, got %+v", snap)
	}
}
