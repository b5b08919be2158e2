//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"dictate/inject"
)

const (
	evKey      = 1
	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2
)

const inputEventSize = 24

// evdev key codes from linux/input-event-codes.h
var evdevKeys = map[uint16]Key{
	29:  KeyCtrlL,
	97:  KeyCtrlR,
	42:  KeyShiftL,
	54:  KeyShiftR,
	56:  KeyAltL,
	100: KeyAltR,
	125: KeySuperL,
	126: KeySuperR,
	58:  KeyCapsLock,
	70:  KeyScrollLock,
	119: KeyPause,
	183: KeyF13,
	184: KeyF14,
	185: KeyF15,
	57:  KeySpace,
}

func init() {
	rows := []struct {
		first   uint16
		letters string
	}{
		{16, "qwertyuiop"},
		{30, "asdfghjkl"},
		{44, "zxcvbnm"},
	}
	for _, row := range rows {
		for i, r := range row.letters {
			evdevKeys[row.first+uint16(i)] = Letter(r)
		}
	}
}

type evdevSource struct {
	events chan Event
	files  []*os.File
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New returns a source reading every keyboard under /dev/input. Keys are
// observed, not grabbed, so the focused application still sees them.
func New(spec Spec) (Source, error) {
	if spec.Key == KeyUnknown {
		return nil, fmt.Errorf("%w: empty key", ErrUnknownHotkey)
	}
	return &evdevSource{
		events: make(chan Event, eventBuffer),
		stop:   make(chan struct{}),
	}, nil
}

func (h *evdevSource) Register() error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
	}
	if len(h.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}

	for _, f := range h.files {
		h.wg.Add(1)
		go h.readEvents(f)
	}
	go func() {
		h.wg.Wait()
		close(h.events)
	}()
	return nil
}

func (h *evdevSource) readEvents(f *os.File) {
	defer h.wg.Done()
	buf := make([]byte, inputEventSize*16)

	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}

		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			ev, ok := decodeEvent(buf[i : i+inputEventSize])
			if !ok {
				continue
			}
			select {
			case h.events <- ev:
			case <-h.stop:
				return
			}
		}
	}
}

func decodeEvent(b []byte) (Event, bool) {
	if binary.LittleEndian.Uint16(b[16:]) != evKey {
		return Event{}, false
	}
	key, ok := evdevKeys[binary.LittleEndian.Uint16(b[18:])]
	if !ok {
		return Event{}, false
	}
	switch int32(binary.LittleEndian.Uint32(b[20:])) {
	case keyPress, keyRepeat:
		return Event{Key: key, Edge: Pressed}, true
	case keyRelease:
		return Event{Key: key, Edge: Released}, true
	}
	return Event{}, false
}

func (h *evdevSource) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *evdevSource) Events() <-chan Event {
	return h.events
}

const (
	devInput      = "/dev/input"
	sysClassInput = "/sys/class/input"
)

func findKeyboards() ([]string, error) {
	return scanKeyboards(devInput, sysClassInput)
}

func scanKeyboards(devDir, sysDir string) ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		if isKeyboard(sysDir, e.Name()) {
			keyboards = append(keyboards, filepath.Join(devDir, e.Name()))
		}
	}
	return keyboards, nil
}

// isKeyboard reports whether the device has a full key bitmap. Our own
// uinput keyboard is excluded.
func isKeyboard(sysDir, eventName string) bool {
	dev := filepath.Join(sysDir, eventName, "device")
	if name, err := os.ReadFile(filepath.Join(dev, "name")); err == nil && strings.TrimSpace(string(name)) == inject.DeviceName {
		return false
	}
	data, err := os.ReadFile(filepath.Join(dev, "capabilities", "key"))
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 10
}

func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	for _, path := range keyboards {
		if f, err := os.Open(path); err == nil {
			f.Close()
			return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), path), nil
		}
	}
	return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
}
