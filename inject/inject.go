// Package inject delivers text to whichever application has keyboard focus.
package inject

import (
	"sync"

	cb "github.com/atotto/clipboard"
)

// Typer types text into the focused window. An empty string is a no-op.
type Typer interface {
	Type(text string) error
}

// Copy places text on the system clipboard.
func Copy(text string) error {
	return cb.WriteAll(text)
}

func Read() (string, error) {
	return cb.ReadAll()
}

// Recorder is a Typer that remembers every call. Err, when set, is
// returned after recording.
type Recorder struct {
	mu    sync.Mutex
	calls []string
	Err   error
}

func (r *Recorder) Type(text string) error {
	if text == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, text)
	return r.Err
}

func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *Recorder) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, c := range r.calls {
		n += len(c)
	}
	b := make([]byte, 0, n)
	for _, c := range r.calls {
		b = append(b, c...)
	}
	return string(b)
}
