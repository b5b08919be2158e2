//go:build gui

// Package gui is a small always-on-top status window built with fyne.
package gui

import (
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"dictate/formatter"
	"dictate/status"
	"dictate/tray"
)

type Actions struct {
	CopyLast func()
	SetMode  func(formatter.Mode)
}

type App struct {
	actions Actions

	fyneApp fyne.App
	window  fyne.Window
	dot     *canvas.Circle
	label   *widget.Label
	mode    *widget.RadioGroup
	list    *widget.List

	mu      sync.Mutex
	snap    status.Snapshot
	visible bool
	// set while the radio group is updated from a snapshot
	syncing bool
}

func New(a Actions, initial status.Snapshot) *App {
	return &App{actions: a, snap: initial}
}

// Run builds the window and blocks in the fyne event loop. It must be
// called on the main thread; onReady runs on a new goroutine.
func (a *App) Run(onReady func()) {
	a.fyneApp = app.NewWithID("io.dictate.gui")
	a.fyneApp.Settings().SetTheme(&darkTheme{})
	a.window = a.fyneApp.NewWindow("dictate")

	a.dot = canvas.NewCircle(tray.ColorFor(status.Idle))
	a.label = widget.NewLabel(string(status.Idle))
	a.mode = widget.NewRadioGroup([]string{string(formatter.SingleLine), string(formatter.Document)}, func(v string) {
		a.mu.Lock()
		syncing := a.syncing
		a.mu.Unlock()
		if syncing || v == "" || a.actions.SetMode == nil {
			return
		}
		a.actions.SetMode(formatter.Mode(v))
	})
	a.mode.Horizontal = true

	a.list = widget.NewList(
		func() int {
			a.mu.Lock()
			defer a.mu.Unlock()
			return len(a.snap.History)
		},
		func() fyne.CanvasObject {
			l := widget.NewLabel("")
			l.Wrapping = fyne.TextWrapWord
			return l
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			a.mu.Lock()
			var text string
			if i < len(a.snap.History) {
				rec := a.snap.History[i]
				text = fmt.Sprintf("%s  %s", rec.Timestamp.Format("15:04:05"), rec.Text)
			}
			a.mu.Unlock()
			o.(*widget.Label).SetText(text)
		},
	)

	copyBtn := widget.NewButton("Copy last", func() {
		if a.actions.CopyLast != nil {
			a.actions.CopyLast()
		}
	})

	dot := container.NewGridWrap(fyne.NewSize(14, 14), a.dot)
	header := container.NewHBox(dot, a.label, a.mode, copyBtn)
	a.window.SetContent(container.NewBorder(header, nil, nil, nil, a.list))
	a.window.Resize(fyne.NewSize(520, 360))
	a.window.SetCloseIntercept(func() { a.Hide() })

	a.render()
	a.window.Show()
	a.visible = true
	go onReady()
	a.fyneApp.Run()
}

// Observe implements status.Observer.
func (a *App) Observe(ev status.Event) {
	a.mu.Lock()
	a.snap = ev.Snapshot
	a.mu.Unlock()
	if a.fyneApp != nil {
		fyne.Do(a.render)
	}
}

func (a *App) render() {
	a.mu.Lock()
	snap := a.snap
	a.syncing = true
	a.mu.Unlock()

	a.dot.FillColor = tray.ColorFor(snap.Status)
	a.dot.Refresh()
	a.label.SetText(string(snap.Status))
	a.mode.SetSelected(snap.FormatMode)
	a.list.Refresh()

	a.mu.Lock()
	a.syncing = false
	a.mu.Unlock()
}

func (a *App) Show() {
	fyne.Do(func() {
		a.window.Show()
		a.mu.Lock()
		a.visible = true
		a.mu.Unlock()
	})
}

func (a *App) Hide() {
	fyne.Do(func() {
		a.window.Hide()
		a.mu.Lock()
		a.visible = false
		a.mu.Unlock()
	})
}

func (a *App) Toggle() {
	a.mu.Lock()
	visible := a.visible
	a.mu.Unlock()
	if visible {
		a.Hide()
	} else {
		a.Show()
	}
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		fyne.Do(a.fyneApp.Quit)
	}
}
