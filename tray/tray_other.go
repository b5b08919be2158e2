//go:build !darwin

package tray

import "fyne.io/systray"

// Start shows the icon. On Linux this needs a StatusNotifierItem host on
// the session bus; without one the menu never appears.
func (t *Tray) Start() {
	start, _ := systray.RunWithExternalLoop(t.onReady, t.stop)
	start()
}
