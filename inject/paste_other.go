//go:build !linux

package inject

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

// Keyboard pastes through the clipboard with the platform paste shortcut.
// Pasting is independent of caps lock, so no normalization is needed.
type Keyboard struct {
	mu sync.Mutex
	kb keybd_event.KeyBonding
}

func New() (*Keyboard, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("keyboard events: %w", err)
	}
	return &Keyboard{kb: kb}, nil
}

func (k *Keyboard) paste() error {
	k.kb.Clear()
	k.kb.SetKeys(keybd_event.VK_V)
	if runtime.GOOS == "darwin" {
		k.kb.HasSuper(true)
	} else {
		k.kb.HasCTRL(true)
	}
	return k.kb.Launching()
}

func (k *Keyboard) Type(text string) error {
	if text == "" {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := Copy(text); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	if err := k.paste(); err != nil {
		return err
	}
	// the target app reads the clipboard asynchronously
	time.Sleep(20 * time.Millisecond)
	return nil
}

func (k *Keyboard) Close() error { return nil }

func Verify() (string, error) {
	if _, err := New(); err != nil {
		return "", err
	}
	if runtime.GOOS == "darwin" {
		return "keyboard event binding OK (Cmd+V)", nil
	}
	return "keyboard event binding OK (Ctrl+V)", nil
}
