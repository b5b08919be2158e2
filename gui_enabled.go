//go:build gui

package main

import (
	"runtime"

	"dictate/gui"
)

// initGUI runs the fyne window on the calling (main) thread and the
// dictation loop on a goroutine. Closing the loop quits the window.
func initGUI(a *app) int {
	runtime.LockOSThread()

	win := gui.New(gui.Actions{CopyLast: a.copyLast, SetMode: a.setMode}, a.sink.Snapshot())
	code := 0
	win.Run(func() {
		code = a.serve(win, nil)
		win.Quit()
	})
	return code
}
