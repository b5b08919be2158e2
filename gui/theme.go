//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"

	"dictate/status"
	"dictate/tray"
)

// darkTheme matches the dashboard page colors.
type darkTheme struct{}

func (d *darkTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.RGBA{30, 30, 30, 255}
	case theme.ColorNameInputBackground, theme.ColorNameButton:
		return color.RGBA{51, 51, 51, 255}
	case theme.ColorNameForeground:
		return color.RGBA{221, 221, 221, 255}
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		// radio and selection accents follow the recording color
		return tray.ColorFor(status.Recording)
	case theme.ColorNameDisabled:
		return tray.ColorFor(status.Idle)
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (d *darkTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (d *darkTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (d *darkTheme) Size(name fyne.ThemeSizeName) float32 {
	return theme.DefaultTheme().Size(name)
}
