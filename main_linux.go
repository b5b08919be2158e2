//go:build linux

package main

import "os"

func main() {
	cfg := loadConfig()
	// Set up crash logging early, before any CGO code runs
	initCrashLog(cfg)
	os.Exit(run(cfg))
}
