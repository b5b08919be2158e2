// Package notify shows desktop notifications when a cycle fails.
package notify

import (
	"errors"

	"github.com/gen2brain/beeep"

	"dictate/dictation"
	"dictate/log"
)

const title = "dictate"

const queueSize = 4

// Notifier turns failed outcomes into desktop notifications. Delivery
// happens on its own goroutine; when the queue is full new messages are
// dropped.
type Notifier struct {
	send  func(title, message string) error
	queue chan string
}

func New() *Notifier {
	return newNotifier(func(t, m string) error { return beeep.Notify(t, m, "") })
}

func newNotifier(send func(title, message string) error) *Notifier {
	n := &Notifier{send: send, queue: make(chan string, queueSize)}
	go n.deliver()
	return n
}

func (n *Notifier) deliver() {
	for msg := range n.queue {
		if err := n.send(title, msg); err != nil {
			log.Warnf("notification: %v", err)
		}
	}
}

// RecordOutcome is an orchestrator outcome hook. It never blocks.
func (n *Notifier) RecordOutcome(out dictation.Outcome) {
	msg := Message(out)
	if msg == "" {
		return
	}
	select {
	case n.queue <- msg:
	default:
		log.Warnf("notification dropped: %s", msg)
	}
}

// Message is the notification text for an outcome, or "" when there is
// nothing to report.
func Message(out dictation.Outcome) string {
	var (
		capErr *dictation.CaptureError
		trErr  *dictation.TranscriptionError
		fmtErr *dictation.FormattingError
		injErr *dictation.InjectionError
	)
	switch {
	case out.Err == nil:
		return ""
	case errors.As(out.Err, &capErr):
		return "Microphone unavailable: " + capErr.Err.Error()
	case errors.As(out.Err, &trErr):
		return "Transcription failed (" + trErr.Provider + ")"
	case errors.As(out.Err, &fmtErr):
		return "Formatting failed (" + fmtErr.Provider + ")"
	case errors.As(out.Err, &injErr):
		return "Could not type the transcript. It is still in the dashboard history."
	}
	return "Dictation failed: " + out.Err.Error()
}
