//go:build darwin || windows

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

var letterKeys = [26]hotkey.Key{
	hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE, hotkey.KeyF,
	hotkey.KeyG, hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ, hotkey.KeyK, hotkey.KeyL,
	hotkey.KeyM, hotkey.KeyN, hotkey.KeyO, hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR,
	hotkey.KeyS, hotkey.KeyT, hotkey.KeyU, hotkey.KeyV, hotkey.KeyW, hotkey.KeyX,
	hotkey.KeyY, hotkey.KeyZ,
}

// xSource registers the combo with the OS and reports it as synthetic key
// events: modifier and key pressed on keydown, key released on keyup.
type xSource struct {
	spec   Spec
	hk     *hotkey.Hotkey
	events chan Event
	stop   chan struct{}
	once   sync.Once
}

func New(spec Spec) (Source, error) {
	if !spec.IsCombo() {
		return nil, fmt.Errorf("%w: single-key trigger %q needs the Linux input reader, use a combo such as ctrl+a", ErrUnknownHotkey, spec)
	}
	mod, ok := osModifier(spec.Mod)
	if !ok {
		return nil, fmt.Errorf("%w: modifier %q not available on this platform", ErrUnknownHotkey, spec.Mod)
	}
	var key hotkey.Key
	switch {
	case spec.Key == KeySpace:
		key = hotkey.KeySpace
	case spec.Key.IsLetter():
		key = letterKeys[spec.Key-KeyA]
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHotkey, spec)
	}
	return &xSource{
		spec:   spec,
		hk:     hotkey.New([]hotkey.Modifier{mod}, key),
		events: make(chan Event, eventBuffer),
		stop:   make(chan struct{}),
	}, nil
}

func (h *xSource) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-h.stop:
				return
			case <-h.hk.Keydown():
				h.send(Event{Key: h.spec.Mod.Key(), Edge: Pressed})
				h.send(Event{Key: h.spec.Key, Edge: Pressed})
			case <-h.hk.Keyup():
				h.send(Event{Key: h.spec.Key, Edge: Released})
			}
		}
	}()
	return nil
}

func (h *xSource) send(ev Event) {
	select {
	case h.events <- ev:
	case <-h.stop:
	}
}

func (h *xSource) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		h.hk.Unregister()
	})
}

func (h *xSource) Events() <-chan Event {
	return h.events
}

func Diagnose() (string, error) {
	return "hotkey support available (combo triggers only)", nil
}
