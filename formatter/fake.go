package formatter

import (
	"context"
	"sync"
)

// Fake streams a fixed token list, or fails with Err.
type Fake struct {
	Tokens []string
	Err    error
	// Block, when set, is waited on before the first token.
	Block chan struct{}

	mu    sync.Mutex
	calls []FakeCall
}

type FakeCall struct {
	Text string
	Mode Mode
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Format(ctx context.Context, text string, mode Mode, onToken TokenFunc) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Text: text, Mode: mode})
	f.mu.Unlock()

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	var out string
	for _, tok := range f.Tokens {
		out += tok
		if onToken != nil {
			onToken(tok)
		}
	}
	if f.Err != nil {
		return out, f.Err
	}
	if f.Tokens == nil {
		out = text
		if onToken != nil && text != "" {
			onToken(text)
		}
	}
	return out, nil
}

func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
