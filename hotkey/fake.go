package hotkey

// Fake is a Source driven by tests and the stdin test mode.
type Fake struct {
	events chan Event
}

func NewFake() *Fake {
	return &Fake{events: make(chan Event, eventBuffer)}
}

func (f *Fake) Register() error      { return nil }
func (f *Fake) Unregister()          {}
func (f *Fake) Events() <-chan Event { return f.events }

func (f *Fake) Press(k Key)   { f.events <- Event{Key: k, Edge: Pressed} }
func (f *Fake) Release(k Key) { f.events <- Event{Key: k, Edge: Released} }

// Close ends Listen once the queued events are drained.
func (f *Fake) Close() { close(f.events) }
