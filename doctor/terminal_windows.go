//go:build windows

package doctor

// The console restores its own mode on exit.
func resetTerminal() {}
