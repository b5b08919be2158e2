//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	cfg := loadConfig()
	// Set up crash logging early, before any CGO code runs
	initCrashLog(cfg)

	// fyne takes the main thread itself
	if cfg.GUI {
		os.Exit(run(cfg))
	}
	code := 0
	mainthread.Init(func() { code = run(cfg) })
	os.Exit(code)
}
