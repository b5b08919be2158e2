package transcriber

import (
	"context"
	"sync"

	"dictate/audio"
)

// Fake returns a fixed transcript and records every buffer it was given.
type Fake struct {
	Text  string
	Err   error
	Block chan struct{}

	mu      sync.Mutex
	buffers []audio.Buffer
}

func NewFake(text string, err error) *Fake {
	return &Fake{Text: text, Err: err}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	f.mu.Lock()
	f.buffers = append(f.buffers, buf)
	f.mu.Unlock()

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

// Calls is the number of Transcribe invocations so far.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buffers)
}

func (f *Fake) Buffers() []audio.Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audio.Buffer(nil), f.buffers...)
}
