//go:build !windows

package doctor

import (
	"os"
	"os/exec"
)

// resetTerminal undoes raw mode left behind by the device picker or an
// interrupted check.
func resetTerminal() {
	cmd := exec.Command("stty", "sane")
	cmd.Stdin = os.Stdin
	_ = cmd.Run()
}
