// Package tray shows the pipeline status as a colored system tray icon.
package tray

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"fyne.io/systray"

	"dictate/formatter"
	"dictate/status"
)

// Actions are the menu callbacks. Nil entries hide their menu item.
type Actions struct {
	CopyLast     func()
	SetMode      func(formatter.Mode)
	DashboardURL string
	ToggleWindow func()
}

type Tray struct {
	actions Actions

	mu     sync.Mutex
	ready  bool
	status status.Status
	mode   string
	last   string

	mCopy     *systray.MenuItem
	mSingle   *systray.MenuItem
	mDocument *systray.MenuItem

	quit      chan struct{}
	closeOnce sync.Once
}

func New(a Actions, mode formatter.Mode) *Tray {
	return &Tray{actions: a, status: status.Idle, mode: string(mode), quit: make(chan struct{})}
}

// Done is closed when the user picks Quit or the tray shuts down.
func (t *Tray) Done() <-chan struct{} { return t.quit }

// Tooltip renders the hover text for a snapshot.
func Tooltip(st status.Status, mode string) string {
	return fmt.Sprintf("dictate: %s (%s)", st, mode)
}

// Observe implements status.Observer.
func (t *Tray) Observe(ev status.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = ev.Snapshot.Status
	t.mode = ev.Snapshot.FormatMode
	if ev.Kind == status.TranscriptAdded {
		t.last = ev.Record.Text
	}
	if t.ready {
		t.applyLocked()
	}
}

func (t *Tray) applyLocked() {
	systray.SetIcon(iconFor(t.status))
	systray.SetTooltip(Tooltip(t.status, t.mode))
	if t.mCopy != nil && t.last != "" {
		t.mCopy.Enable()
	}
	if t.mSingle != nil {
		check(t.mSingle, t.mode == string(formatter.SingleLine))
		check(t.mDocument, t.mode == string(formatter.Document))
	}
}

func check(item *systray.MenuItem, on bool) {
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}

func (t *Tray) onReady() {
	systray.SetTitle("dictate")

	if t.actions.CopyLast != nil {
		t.mCopy = systray.AddMenuItem("Copy Last Transcript", "Copy the newest transcript to the clipboard")
		t.mCopy.Disable()
		go t.loop(t.mCopy.ClickedCh, t.actions.CopyLast)
	}

	if t.actions.SetMode != nil {
		mMode := systray.AddMenuItem("Format Mode", "Formatting applied to the next dictation")
		t.mSingle = mMode.AddSubMenuItemCheckbox("Single line", "One line, no breaks", false)
		t.mDocument = mMode.AddSubMenuItemCheckbox("Document", "Paragraphs and lists", false)
		go t.loop(t.mSingle.ClickedCh, func() { t.actions.SetMode(formatter.SingleLine) })
		go t.loop(t.mDocument.ClickedCh, func() { t.actions.SetMode(formatter.Document) })
	}

	if t.actions.DashboardURL != "" {
		mDash := systray.AddMenuItem("Open Dashboard", t.actions.DashboardURL)
		go t.loop(mDash.ClickedCh, func() { _ = openURL(t.actions.DashboardURL) })
	}
	if t.actions.ToggleWindow != nil {
		mWin := systray.AddMenuItem("Show Window", "Show or hide the status window")
		go t.loop(mWin.ClickedCh, t.actions.ToggleWindow)
	}

	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit dictate")
	go t.loop(mQuit.ClickedCh, t.stop)

	t.mu.Lock()
	t.ready = true
	t.applyLocked()
	t.mu.Unlock()
}

func (t *Tray) loop(ch <-chan struct{}, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-t.quit:
			return
		}
	}
}

func (t *Tray) stop() {
	t.closeOnce.Do(func() { close(t.quit) })
}

// Close removes the icon.
func (t *Tray) Close() {
	t.stop()
	t.mu.Lock()
	ready := t.ready
	t.mu.Unlock()
	if ready {
		systray.Quit()
	}
}

func openURL(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	}
	return exec.Command("xdg-open", url).Start()
}
