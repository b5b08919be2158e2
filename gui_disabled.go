//go:build !gui

package main

import (
	"fmt"
	"os"
)

func initGUI(*app) int {
	fmt.Fprintln(os.Stderr, "dictate: built without GUI support (rebuild with -tags gui)")
	return 1
}
