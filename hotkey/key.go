package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// Key identifies a physical key independent of the OS key code.
type Key int

const (
	KeyUnknown Key = iota
	KeyCtrlL
	KeyCtrlR
	KeyShiftL
	KeyShiftR
	KeyAltL
	KeyAltR
	KeySuperL
	KeySuperR
	KeyCapsLock
	KeyScrollLock
	KeyPause
	KeyF13
	KeyF14
	KeyF15
	KeySpace
	KeyA
	// KeyB..KeyZ follow KeyA contiguously.
)

const KeyZ = KeyA + 25

// Letter returns the key for an ASCII letter, or KeyUnknown.
func Letter(r rune) Key {
	switch {
	case r >= 'a' && r <= 'z':
		return KeyA + Key(r-'a')
	case r >= 'A' && r <= 'Z':
		return KeyA + Key(r-'A')
	}
	return KeyUnknown
}

func (k Key) IsLetter() bool { return k >= KeyA && k <= KeyZ }

var specialNames = map[string]Key{
	"ctrl_l":      KeyCtrlL,
	"ctrl_r":      KeyCtrlR,
	"shift_l":     KeyShiftL,
	"shift_r":     KeyShiftR,
	"alt_l":       KeyAltL,
	"alt_r":       KeyAltR,
	"super_l":     KeySuperL,
	"super_r":     KeySuperR,
	"caps_lock":   KeyCapsLock,
	"scroll_lock": KeyScrollLock,
	"pause":       KeyPause,
	"f13":         KeyF13,
	"f14":         KeyF14,
	"f15":         KeyF15,
	"space":       KeySpace,
}

func (k Key) String() string {
	if k.IsLetter() {
		return string(rune('a' + int(k-KeyA)))
	}
	for name, key := range specialNames {
		if key == k {
			return name
		}
	}
	return "unknown"
}

// Modifier is a modifier family; either side of the keyboard satisfies it.
type Modifier int

const (
	ModNone Modifier = iota
	ModCtrl
	ModShift
	ModAlt
	ModSuper
)

var modifierNames = map[string]Modifier{
	"ctrl":  ModCtrl,
	"shift": ModShift,
	"alt":   ModAlt,
	"super": ModSuper,
	"cmd":   ModSuper,
}

func (m Modifier) String() string {
	switch m {
	case ModCtrl:
		return "ctrl"
	case ModShift:
		return "shift"
	case ModAlt:
		return "alt"
	case ModSuper:
		return "super"
	}
	return ""
}

// Matches reports whether k is the left or right key of the modifier.
func (m Modifier) Matches(k Key) bool {
	switch m {
	case ModCtrl:
		return k == KeyCtrlL || k == KeyCtrlR
	case ModShift:
		return k == KeyShiftL || k == KeyShiftR
	case ModAlt:
		return k == KeyAltL || k == KeyAltR
	case ModSuper:
		return k == KeySuperL || k == KeySuperR
	}
	return false
}

// Key returns the left-hand key of the modifier, used when a source can
// only report the family.
func (m Modifier) Key() Key {
	switch m {
	case ModCtrl:
		return KeyCtrlL
	case ModShift:
		return KeyShiftL
	case ModAlt:
		return KeyAltL
	case ModSuper:
		return KeySuperL
	}
	return KeyUnknown
}

// Spec is the configured trigger: a single key, or a modifier plus a key.
type Spec struct {
	Mod Modifier
	Key Key
}

func Single(k Key) Spec { return Spec{Key: k} }
func Combo(m Modifier, k Key) Spec { return Spec{Mod: m, Key: k} }
func (s Spec) IsCombo() bool { return s.Mod != ModNone }

func (s Spec) String() string {
	if s.IsCombo() {
		return s.Mod.String() + "+" + s.Key.String()
	}
	return s.Key.String()
}

var ErrUnknownHotkey = errors.New("unknown hotkey")

// ParseKey names one physical key: a special key, a single letter or a
// modifier family ("ctrl" is the left control key).
func ParseKey(s string) (Key, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if k, ok := specialNames[name]; ok {
		return k, nil
	}
	if m, ok := modifierNames[name]; ok {
		return m.Key(), nil
	}
	if len(name) == 1 {
		if k := Letter(rune(name[0])); k != KeyUnknown {
			return k, nil
		}
	}
	return KeyUnknown, fmt.Errorf("%w: %q", ErrUnknownHotkey, s)
}

// Parse accepts a single special key ("caps_lock", "ctrl_r", "f13") or a
// combo of modifier and letter ("ctrl_a", "ctrl+a", "alt+space").
func Parse(s string) (Spec, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if k, ok := specialNames[name]; ok {
		return Single(k), nil
	}

	sep := strings.IndexAny(name, "_+")
	if sep <= 0 || sep == len(name)-1 {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownHotkey, s)
	}
	mod, ok := modifierNames[name[:sep]]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q (unknown modifier %q)", ErrUnknownHotkey, s, name[:sep])
	}
	rest := name[sep+1:]
	var key Key
	switch {
	case rest == "space":
		key = KeySpace
	case len(rest) == 1:
		key = Letter(rune(rest[0]))
	}
	if key == KeyUnknown {
		return Spec{}, fmt.Errorf("%w: %q (combo key must be a letter or space)", ErrUnknownHotkey, s)
	}
	return Combo(mod, key), nil
}
