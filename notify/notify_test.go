package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"dictate/dictation"
)

func TestMessage(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		out  dictation.Outcome
		want string
	}{
		{"completed", dictation.Outcome{Kind: dictation.Completed}, ""},
		{"discarded", dictation.Outcome{Kind: dictation.Discarded, Reason: dictation.ReasonTooShort}, ""},
		{"capture", dictation.Outcome{Kind: dictation.Failed, Err: &dictation.CaptureError{Err: boom}}, "Microphone unavailable: boom"},
		{"transcribe", dictation.Outcome{Kind: dictation.Failed, Err: &dictation.TranscriptionError{Provider: "groq", Err: boom}}, "Transcription failed (groq)"},
		{"format", dictation.Outcome{Kind: dictation.Failed, Err: &dictation.FormattingError{Provider: "gemini", Err: boom}}, "Formatting failed (gemini)"},
		{"inject", dictation.Outcome{Kind: dictation.Completed, Err: &dictation.InjectionError{Err: boom}}, "Could not type"},
		{"other", dictation.Outcome{Kind: dictation.Failed, Err: boom}, "Dictation failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Message(tt.out)
			if tt.want == "" && got != "" {
				t.Fatalf("Message = %q, want empty", got)
			}
			if !strings.HasPrefix(got, tt.want) {
				t.Fatalf("Message = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestRecordOutcome(t *testing.T) {
	sent := make(chan string, 4)
	n := newNotifier(func(title, msg string) error {
		sent <- title + ": " + msg
		return errors.New("no notification daemon")
	})
	n.RecordOutcome(dictation.Outcome{Kind: dictation.Completed})
	n.RecordOutcome(dictation.Outcome{Kind: dictation.Failed, Err: &dictation.TranscriptionError{Provider: "openai", Err: errors.New("401")}})
	select {
	case got := <-sent:
		if got != "dictate: Transcription failed (openai)" {
			t.Fatalf("sent %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never sent")
	}
	select {
	case got := <-sent:
		t.Fatalf("completed outcome sent %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

// A stuck notification daemon must not hold up the orchestrator worker.
func TestRecordOutcomeDoesNotBlock(t *testing.T) {
	unblock := make(chan struct{})
	defer close(unblock)
	calls := make(chan struct{}, queueSize+2)
	n := newNotifier(func(string, string) error {
		calls <- struct{}{}
		<-unblock
		return nil
	})

	failed := dictation.Outcome{Kind: dictation.Failed, Err: errors.New("boom")}
	start := time.Now()
	for i := 0; i < queueSize+3; i++ {
		n.RecordOutcome(failed)
	}
	if d := time.Since(start); d > 100*time.Millisecond {
		t.Fatalf("RecordOutcome took %v with a blocked sender", d)
	}
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("send never called")
	}
}
