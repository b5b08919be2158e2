package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var (
	ErrNoDevices = errors.New("no capture devices found")
	ErrAborted   = errors.New("device selection aborted")
)

// FindDevice returns the first device whose name contains query,
// case-insensitively. An empty query selects the system default (nil).
func FindDevice(ctx Context, query string) (*DeviceInfo, error) {
	if query == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	q := strings.ToLower(query)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), q) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matches %q", query)
}

// picker holds the cursor state of the interactive device list.
type picker struct {
	devices []DeviceInfo
	cursor  int
}

func (p *picker) render(w io.Writer) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select microphone (↑/↓ or j/k, Enter to confirm):\r\n\r\n")
	for i, d := range p.devices {
		tag := ""
		if IsBluetooth(d.Name) {
			tag = " \x1b[33m[headset, narrowband]\x1b[0m"
		}
		if i == p.cursor {
			fmt.Fprintf(w, "  \x1b[1;36m> %s%s\x1b[0m\r\n", d.Name, tag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Name, tag)
		}
	}
}

// key applies one read from the terminal. done reports Enter, err reports Ctrl+C.
func (p *picker) key(b []byte) (done bool, err error) {
	switch {
	case len(b) == 1 && (b[0] == '\r' || b[0] == '\n'):
		return true, nil
	case len(b) == 1 && b[0] == 3:
		return false, ErrAborted
	case len(b) == 1 && b[0] == 'k', len(b) == 3 && b[0] == 0x1b && b[1] == '[' && b[2] == 'A':
		p.cursor = max(0, p.cursor-1)
	case len(b) == 1 && b[0] == 'j', len(b) == 3 && b[0] == 0x1b && b[1] == '[' && b[2] == 'B':
		p.cursor = min(len(p.devices)-1, p.cursor+1)
	}
	return false, nil
}

// SelectDevice shows an interactive picker on the terminal. A single
// device is returned without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, ErrNoDevices
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	p := &picker{devices: devices}
	p.render(os.Stdout)

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		done, err := p.key(buf[:n])
		if err != nil {
			fmt.Print("\r\n")
			return nil, err
		}
		if done {
			fmt.Print("\r\n")
			return &devices[p.cursor], nil
		}
		fmt.Printf("\x1b[%dA", len(devices)+2)
		p.render(os.Stdout)
	}
}
