//go:build linux

package inject

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// ioctl requests from linux/uinput.h
const (
	uiSetEvbit   = 0x40045564
	uiSetKeybit  = 0x40045565
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
)

const (
	evSyn  = 0x00
	evKey  = 0x01
	busUSB = 0x03
)

// DeviceName is the name of the virtual keyboard. Key readers skip it so
// typed text does not come back as input.
const DeviceName = "dictate-keyboard"

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type uinputUserDev struct {
	Name         [80]byte
	Bustype      uint16
	Vendor       uint16
	Product      uint16
	Version      uint16
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

// Keyboard types through a virtual uinput keyboard. Text with runes the
// US layout cannot produce is pasted through the clipboard instead.
type Keyboard struct {
	mu      sync.Mutex
	f       *os.File
	keyWait time.Duration
	capsLED func() bool
}

func uinputPath() (string, error) {
	for _, p := range []string{"/dev/uinput", "/dev/input/uinput"} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.New("uinput device not found, try: sudo modprobe uinput")
}

// New creates the virtual keyboard. The caller needs write access to
// /dev/uinput.
func New() (*Keyboard, error) {
	path, err := uinputPath()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, os.ModeDevice)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	fd := int(f.Fd())

	setup := func() error {
		if err := unix.IoctlSetInt(fd, uiSetEvbit, evKey); err != nil {
			return fmt.Errorf("UI_SET_EVBIT key: %w", err)
		}
		if err := unix.IoctlSetInt(fd, uiSetEvbit, evSyn); err != nil {
			return fmt.Errorf("UI_SET_EVBIT syn: %w", err)
		}
		// all standard keys, so udev classifies the device as a keyboard
		for code := 0; code < 256; code++ {
			if err := unix.IoctlSetInt(fd, uiSetKeybit, code); err != nil {
				return fmt.Errorf("UI_SET_KEYBIT %d: %w", code, err)
			}
		}
		dev := uinputUserDev{Bustype: busUSB, Vendor: 0x1d6b, Product: 0x0104, Version: 1}
		copy(dev.Name[:], DeviceName)
		if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
			return fmt.Errorf("write device: %w", err)
		}
		if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
			return fmt.Errorf("UI_DEV_CREATE: %w", err)
		}
		return nil
	}
	if err := setup(); err != nil {
		f.Close()
		return nil, err
	}

	// compositors need a moment to pick up a new input device
	time.Sleep(200 * time.Millisecond)
	return &Keyboard{f: f, keyWait: 2 * time.Millisecond, capsLED: capsLockOn}, nil
}

func (k *Keyboard) write(typ, code uint16, value int32) error {
	return binary.Write(k.f, binary.LittleEndian, &inputEvent{Type: typ, Code: code, Value: value})
}

func (k *Keyboard) key(code uint16, value int32) error {
	if err := k.write(evKey, code, value); err != nil {
		return err
	}
	return k.write(evSyn, 0, 0)
}

func (k *Keyboard) tap(ks keystroke) error {
	if ks.shift {
		if err := k.key(keyLeftShift, 1); err != nil {
			return err
		}
	}
	if err := k.key(ks.code, 1); err != nil {
		return err
	}
	if err := k.key(ks.code, 0); err != nil {
		return err
	}
	if ks.shift {
		if err := k.key(keyLeftShift, 0); err != nil {
			return err
		}
	}
	if k.keyWait > 0 {
		time.Sleep(k.keyWait)
	}
	return nil
}

// capsLockOn reads the keyboard LEDs exported by the kernel.
func capsLockOn() bool {
	leds, _ := filepath.Glob("/sys/class/leds/*capslock*/brightness")
	for _, p := range leds {
		data, err := os.ReadFile(p)
		if err == nil && strings.TrimSpace(string(data)) != "0" {
			return true
		}
	}
	return false
}

func (k *Keyboard) paste(text string) error {
	if err := Copy(text); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	if err := k.key(keyLeftCtrl, 1); err != nil {
		return err
	}
	time.Sleep(5 * time.Millisecond)
	if err := k.tap(keystroke{code: keyV}); err != nil {
		return err
	}
	return k.key(keyLeftCtrl, 0)
}

// Type turns caps lock off first so shifted letters come out as written.
func (k *Keyboard) Type(text string) error {
	if text == "" {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.capsLED != nil && k.capsLED() {
		if err := k.tap(keystroke{code: keyCapsLock}); err != nil {
			return fmt.Errorf("caps lock: %w", err)
		}
	}

	keys, ok := plan(text)
	if !ok {
		return k.paste(text)
	}
	for _, ks := range keys {
		if err := k.tap(ks); err != nil {
			return err
		}
	}
	return nil
}

func (k *Keyboard) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.f == nil {
		return nil
	}
	_ = unix.IoctlSetInt(int(k.f.Fd()), uiDevDestroy, 0)
	err := k.f.Close()
	k.f = nil
	return err
}

// Verify creates the device, taps Shift and reads the events back from
// the kernel input layer.
func Verify() (string, error) {
	k, err := New()
	if err != nil {
		return "", fmt.Errorf("uinput init: %w", err)
	}
	defer k.Close()

	entries, err := os.ReadDir("/sys/class/input")
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	var evdevPath string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/sys/class/input", e.Name(), "device", "name"))
		if err == nil && strings.TrimSpace(string(data)) == DeviceName {
			evdevPath = filepath.Join("/dev/input", e.Name())
			break
		}
	}
	if evdevPath == "" {
		return "", errors.New(DeviceName + " evdev device not found")
	}

	evdev, err := os.Open(evdevPath)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", evdevPath, err)
	}
	defer evdev.Close()

	if err := k.tap(keystroke{code: keyLeftShift}); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}

	seen := make(chan error, 1)
	go func() {
		buf := make([]byte, 24*32)
		n, err := evdev.Read(buf)
		if err != nil {
			seen <- err
			return
		}
		for i := 0; i+24 <= n; i += 24 {
			if binary.LittleEndian.Uint16(buf[i+16:]) == evKey && binary.LittleEndian.Uint16(buf[i+18:]) == keyLeftShift {
				seen <- nil
				return
			}
		}
		seen <- errors.New("shift event missing")
	}()

	select {
	case err := <-seen:
		if err != nil {
			return "", err
		}
		return "keystroke verified via " + evdevPath, nil
	case <-time.After(500 * time.Millisecond):
		return "", errors.New("timed out waiting for keystroke events")
	}
}
