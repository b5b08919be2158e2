package hotkey

import "context"

// Source delivers raw key events from the OS keyboard hook.
type Source interface {
	Register() error
	Unregister()
	Events() <-chan Event
}

// Listen feeds every event from src into d until ctx is done or the
// source closes its channel. It is the only goroutine touching d.
func Listen(ctx context.Context, src Source, d *Detector) {
	events := src.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.Handle(ev)
		}
	}
}

const eventBuffer = 64
