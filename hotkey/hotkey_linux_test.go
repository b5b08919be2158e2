//go:build linux

package hotkey

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"dictate/inject"
)

func fakeInputDevice(t *testing.T, devDir, sysDir, event, name, keys string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(devDir, event), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	caps := filepath.Join(sysDir, event, "device", "capabilities")
	if err := os.MkdirAll(caps, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sysDir, event, "device", "name"), []byte(name+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(caps, "key"), []byte(keys+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanKeyboardsSkipsOwnDevice(t *testing.T) {
	devDir, sysDir := t.TempDir(), t.TempDir()
	const fullBitmap = "1000000000007 ff9f207ac14057ff febeffdfffefffff fffffffffffffffe"
	fakeInputDevice(t, devDir, sysDir, "event0", "AT Translated Set 2 keyboard", fullBitmap)
	fakeInputDevice(t, devDir, sysDir, "event1", "Power Button", "10000000000000 0")
	fakeInputDevice(t, devDir, sysDir, "event2", inject.DeviceName, fullBitmap)
	if err := os.WriteFile(filepath.Join(devDir, "mouse0"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := scanKeyboards(devDir, sysDir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(devDir, "event0")}
	if !slices.Equal(got, want) {
		t.Errorf("keyboards = %v, want %v", got, want)
	}
}

func TestDecodeEvent(t *testing.T) {
	raw := func(typ, code uint16, value int32) []byte {
		b := make([]byte, inputEventSize)
		b[16], b[17] = byte(typ), byte(typ>>8)
		b[18], b[19] = byte(code), byte(code>>8)
		v := uint32(value)
		b[20], b[21], b[22], b[23] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
		return b
	}
	for _, tt := range []struct {
		name string
		in   []byte
		want Event
		ok   bool
	}{
		{"press", raw(evKey, 30, keyPress), Event{Key: KeyA, Edge: Pressed}, true},
		{"repeat", raw(evKey, 57, keyRepeat), Event{Key: KeySpace, Edge: Pressed}, true},
		{"release", raw(evKey, 97, keyRelease), Event{Key: KeyCtrlR, Edge: Released}, true},
		{"sync event", raw(0, 0, 0), Event{}, false},
		{"unmapped key", raw(evKey, 2, keyPress), Event{}, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decodeEvent(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("decodeEvent = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
