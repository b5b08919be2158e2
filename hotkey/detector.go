package hotkey

// Edge is the direction of a raw key transition.
type Edge int

const (
	Pressed Edge = iota + 1
	Released
)

func (e Edge) String() string {
	if e == Pressed {
		return "pressed"
	}
	return "released"
}

// Event is one raw key transition. Auto-repeat arrives as another Pressed.
type Event struct {
	Key  Key
	Edge Edge
}

type State int

const (
	Idle State = iota
	ModifierHeld
	Active
)

func (s State) String() string {
	switch s {
	case ModifierHeld:
		return "modifier_held"
	case Active:
		return "active"
	}
	return "idle"
}

// Detector turns raw key events into gesture edges for one Spec.
// onPress and onRelease are each called exactly once per physical hold.
// A Detector is owned by a single goroutine and does no locking.
type Detector struct {
	spec      Spec
	onPress   func()
	onRelease func()

	modHeld bool
	active  bool
}

func NewDetector(spec Spec, onPress, onRelease func()) *Detector {
	if onPress == nil {
		onPress = func() {}
	}
	if onRelease == nil {
		onRelease = func() {}
	}
	return &Detector{spec: spec, onPress: onPress, onRelease: onRelease}
}

func (d *Detector) State() State {
	switch {
	case d.active:
		return Active
	case d.modHeld:
		return ModifierHeld
	}
	return Idle
}

func (d *Detector) Handle(ev Event) {
	if d.spec.IsCombo() {
		d.handleCombo(ev)
		return
	}
	if ev.Key != d.spec.Key {
		return
	}
	switch {
	case ev.Edge == Pressed && !d.active:
		d.active = true
		d.onPress()
	case ev.Edge == Released && d.active:
		d.active = false
		d.onRelease()
	}
}

func (d *Detector) handleCombo(ev Event) {
	isMod := d.spec.Mod.Matches(ev.Key)
	isKey := ev.Key == d.spec.Key

	switch {
	case isMod && ev.Edge == Pressed:
		d.modHeld = true
	case isKey && ev.Edge == Pressed:
		if d.modHeld && !d.active {
			d.active = true
			d.onPress()
		}
	case isMod && ev.Edge == Released:
		// Sides are not tracked separately: releasing ctrl_r while ctrl_l
		// is still down ends the gesture, and the chord must be pressed
		// again to start the next one.
		d.modHeld = false
		if d.active {
			d.active = false
			d.onRelease()
		}
	case isKey && ev.Edge == Released:
		if d.active {
			d.active = false
			d.onRelease()
		}
	}
}
