//go:build darwin

package tray

import (
	"fyne.io/systray"
	"golang.design/x/hotkey/mainthread"
)

// Start shows the icon. The Cocoa status item must be created on the main
// thread.
func (t *Tray) Start() {
	start, _ := systray.RunWithExternalLoop(t.onReady, t.stop)
	done := make(chan struct{})
	mainthread.Call(func() {
		start()
		close(done)
	})
	<-done
}
