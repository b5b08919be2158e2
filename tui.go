package main

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dictate/dictation"
	"dictate/status"
)

// TUI message types
type statusMsg status.Event
type levelMsg float64
type outcomeMsg dictation.Outcome
type tickMsg time.Time

const statsWindow = 100

type tuiModel struct {
	status        status.Status
	mode          string
	history       []status.Record
	frame         int
	recStart      time.Time
	now           time.Time
	audioLevel    float64
	peakLevel     float64
	width, height int
	infoLine      string // "openai → gpt-4o-mini"
	hotkeyLabel   string
	lastOutcome   string
	toggleMode    func()

	totals, transcribes []float64 // ms, newest last
}

// Pre-computed pixel styles per status
var statusPalettes = map[status.Status][]string{
	status.Idle:         {"", "231", "224", "217", "210", "160", "124", "88", "52", "236", "236", "236", "236", "236", "255", "249"},
	status.Recording:    {"", "226", "220", "214", "208", "196", "160", "124", "88", "52", "236", "236", "236", "236", "255", "249"},
	status.Transcribing: {"", "230", "229", "228", "214", "208", "172", "136", "94", "58", "236", "236", "236", "236", "255", "249"},
	status.Formatting:   {"", "194", "157", "120", "83", "46", "40", "34", "28", "22", "236", "236", "236", "236", "255", "249"},
}

var (
	pixelStyles = map[status.Status]*[16]lipgloss.Style{}
	pixelBg     = map[status.Status]*[16][16]lipgloss.Style{}
)

func init() {
	for st, colors := range statusPalettes {
		var fg [16]lipgloss.Style
		var bg [16][16]lipgloss.Style
		for i, c := range colors {
			if c == "" {
				continue
			}
			fg[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
			for j, b := range colors {
				if b != "" {
					bg[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Background(lipgloss.Color(b))
				}
			}
		}
		pixelStyles[st] = &fg
		pixelBg[st] = &bg
	}
}

func newTUIModel(snap status.Snapshot, infoLine, hotkeyLabel string, toggleMode func()) tuiModel {
	return tuiModel{
		status:      snap.Status,
		mode:        snap.FormatMode,
		history:     snap.History,
		infoLine:    infoLine,
		hotkeyLabel: hotkeyLabel,
		toggleMode:  toggleMode,
	}
}

// tuiObserver forwards sink events and orchestrator outcomes into the
// bubbletea program.
type tuiObserver struct {
	p *tea.Program
}

func (o tuiObserver) Observe(ev status.Event)             { o.p.Send(statusMsg(ev)) }
func (o tuiObserver) RecordOutcome(out dictation.Outcome) { o.p.Send(outcomeMsg(out)) }
func (o tuiObserver) Level(rms float64)                   { o.p.Send(levelMsg(rms)) }

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "m", "tab":
			if m.toggleMode != nil {
				m.toggleMode()
			}
		}

	case tickMsg:
		m.frame++
		m.now = time.Time(msg)
		return m, tuiTick()

	case statusMsg:
		if msg.Snapshot.Status == status.Recording && m.status != status.Recording {
			m.recStart = time.Now()
			m.now = m.recStart
			m.audioLevel = 0
			m.peakLevel = 0
		}
		if msg.Snapshot.Status != status.Recording {
			m.audioLevel = 0
		}
		m.status = msg.Snapshot.Status
		m.mode = msg.Snapshot.FormatMode
		m.history = msg.Snapshot.History

	case levelMsg:
		if m.status == status.Recording {
			lvl := float64(msg)
			m.audioLevel = m.audioLevel*0.6 + lvl*0.4
			m.peakLevel = max(m.peakLevel, lvl)
		}

	case outcomeMsg:
		m.lastOutcome = describeOutcome(dictation.Outcome(msg))
		if msg.Kind == dictation.Completed {
			m.totals = appendWindow(m.totals, float64(msg.Total.Milliseconds()))
			m.transcribes = appendWindow(m.transcribes, float64(msg.Transcribe.Milliseconds()))
		}
	}
	return m, nil
}

func appendWindow(xs []float64, v float64) []float64 {
	xs = append(xs, v)
	if len(xs) > statsWindow {
		xs = xs[len(xs)-statsWindow:]
	}
	return xs
}

func describeOutcome(out dictation.Outcome) string {
	switch out.Kind {
	case dictation.Discarded:
		return "discarded: " + strings.ReplaceAll(out.Reason, "_", " ")
	case dictation.Failed:
		return "failed: " + out.Err.Error()
	}
	quick := ""
	if out.Quick {
		quick = ", quick"
	}
	s := fmt.Sprintf("%.1fs audio → %dms (transcribe %dms, format %dms%s)",
		out.Audio.Seconds(), out.Total.Milliseconds(), out.Transcribe.Milliseconds(), out.Format.Milliseconds(), quick)
	if out.Err != nil {
		s += "; " + out.Err.Error()
	}
	return s
}

var statusLabels = map[status.Status]struct{ text, color string }{
	status.Idle:         {"○ STANDBY", "241"},
	status.Recording:    {"● REC", "196"},
	status.Transcribing: {"◐ TRANSCRIBING", "214"},
	status.Formatting:   {"◑ FORMATTING", "42"},
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const eyeWidth = 45
	level := 0.0
	if m.status == status.Recording {
		level = m.audioLevel
	}
	eye := renderHALEye(m.frame, level, m.status)

	var infoLines []string
	label := statusLabels[m.status]
	line := label.text
	if m.status == status.Recording {
		line = fmt.Sprintf("%s %.1fs", line, m.now.Sub(m.recStart).Seconds())
	}
	infoLines = append(infoLines, lipgloss.NewStyle().Foreground(lipgloss.Color(label.color)).Bold(true).Render(line))
	if m.status == status.Recording && m.now.Sub(m.recStart) > time.Second && m.peakLevel < 0.02 {
		infoLines = append(infoLines, lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render("  ⚠ no voice detected"))
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	infoLines = append(infoLines, dim.Render("mode: "+m.mode))
	if m.infoLine != "" {
		infoLines = append(infoLines, dim.Render(m.infoLine))
	}
	if m.lastOutcome != "" {
		infoLines = append(infoLines, dim.Render(m.lastOutcome))
	}

	if table := renderPercentileTable(m.totals, m.transcribes); table != "" {
		infoLines = append(infoLines, "")
		tableStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
		for _, l := range strings.Split(table, "\n") {
			infoLines = append(infoLines, tableStyle.Render(l))
		}
	}

	infoLines = append(infoLines, "")
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldStyle := helpStyle.Bold(true)
	infoLines = append(infoLines,
		boldStyle.Render("hold "+m.hotkeyLabel)+helpStyle.Render(" to dictate"),
		boldStyle.Render("m")+helpStyle.Render(" mode  ")+boldStyle.Render("q")+helpStyle.Render(" quit"),
		helpStyle.Render("dictate "+version))

	for _, l := range infoLines {
		eye += l + "\n"
	}
	eyeLines := strings.Split(eye, "\n")

	logWidth := max(m.width-eyeWidth-1, 20)
	wrapWidth := max(logWidth-2, 10)

	var logContent strings.Builder
	if len(m.history) == 0 {
		logContent.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("No transcripts yet"))
	}
	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	textStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	used := 0
	for _, rec := range m.history {
		lines := wrapText(rec.Text, wrapWidth)
		if used+len(lines)+2 > m.height && used > 0 {
			break
		}
		logContent.WriteString(titleStyle.Render(rec.Timestamp.Format("15:04:05")) + "\n")
		for _, l := range lines {
			logContent.WriteString(textStyle.Render(l) + "\n")
		}
		logContent.WriteString("\n")
		used += len(lines) + 2
	}

	logPanel := lipgloss.NewStyle().
		Width(logWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(logContent.String())

	eyePadded := make([]string, m.height)
	for i := range eyePadded {
		if i < len(eyeLines) {
			eyePadded[i] = eyeLines[i]
		} else {
			eyePadded[i] = strings.Repeat(" ", eyeWidth-1)
		}
	}
	eyePanel := lipgloss.NewStyle().
		Width(eyeWidth - 1).
		Height(m.height).
		Render(strings.Join(eyePadded, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, eyePanel, logPanel)
}

func renderHALEye(frame int, level float64, st status.Status) string {
	const charsW = 44
	const charsH = 15
	const pixW = charsW
	const pixH = charsH * 2

	centerX := float64(pixW) / 2
	centerY := float64(pixH) / 2

	// Voice-reactive breathing
	var breathe float64
	switch st {
	case status.Recording:
		breathe = math.Sin(float64(frame)*0.10)*0.03 + level*10.0 - 0.05
	case status.Transcribing, status.Formatting:
		breathe = math.Sin(float64(frame)*0.25)*0.05 - 0.03
	default:
		breathe = math.Sin(float64(frame)*0.08)*0.02 - 0.05
	}

	pixels := make([][]int, pixH)
	for i := range pixels {
		pixels[i] = make([]int, pixW)
	}

	type ring struct {
		radius     float64
		breatheAmt float64
		colorIdx   int
	}
	rings := []ring{
		{0.6, 0.10, 1},
		{1.3, 0.12, 2},
		{2.0, 0.15, 3},
		{2.8, 0.35, 4},
		{3.5, 0.40, 5},
		{4.2, 0.38, 6},
		{5.0, 0.30, 7},
		{5.8, 0.15, 8},
		{6.5, 0.03, 9},
		{7.2, 0.0, 10},
		{8.0, 0.0, 11},
		{10.0, 0.0, 12},
		{12.0, 0.0, 13},
	}
	for y := 0; y < pixH; y++ {
		for x := 0; x < pixW; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			dist := math.Sqrt(dx*dx + dy*dy)
			for _, r := range rings {
				radius := min(r.radius+breathe*r.breatheAmt*20, 10.0)
				if dist < radius {
					pixels[y][x] = r.colorIdx
					break
				}
			}
		}
	}

	styles, ok := pixelStyles[st]
	if !ok {
		styles = pixelStyles[status.Idle]
	}
	bgStyles, ok := pixelBg[st]
	if !ok {
		bgStyles = pixelBg[status.Idle]
	}

	var result strings.Builder
	for cy := 0; cy < charsH; cy++ {
		for cx := 0; cx < charsW; cx++ {
			top := pixels[cy*2][cx]
			bot := pixels[cy*2+1][cx]
			switch {
			case top == 0 && bot == 0:
				result.WriteString(" ")
			case top == bot:
				result.WriteString(styles[top].Render("█"))
			case bot == 0:
				result.WriteString(styles[top].Render("▀"))
			case top == 0:
				result.WriteString(styles[bot].Render("▄"))
			default:
				result.WriteString(bgStyles[top][bot].Render("▀"))
			}
		}
		result.WriteString("\n")
	}
	return result.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		for len(para) > width {
			// Find last space within width
			splitAt := width
			for i := width; i > 0; i-- {
				if para[i] == ' ' {
					splitAt = i
					break
				}
			}
			lines = append(lines, para[:splitAt])
			para = strings.TrimLeft(para[splitAt:], " ")
		}
		lines = append(lines, para)
	}
	return lines
}

// percentiles returns min, p50, p90, p95 and max.
func percentiles(xs []float64) [5]float64 {
	var out [5]float64
	if len(xs) == 0 {
		return out
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	at := func(p float64) float64 {
		return s[int(math.Ceil(p*float64(len(s))))-1]
	}
	return [5]float64{s[0], at(0.5), at(0.9), at(0.95), s[len(s)-1]}
}

func renderPercentileTable(totals, transcribes []float64) string {
	if len(totals) == 0 {
		return ""
	}
	ts := percentiles(totals)
	tr := percentiles(transcribes)
	return fmt.Sprintf(
		"        %5s %5s %5s %5s %5s\n"+
			"total   %5.0f %5.0f %5.0f %5.0f %5.0f\n"+
			"stt     %5.0f %5.0f %5.0f %5.0f %5.0f",
		"min", "p50", "p90", "p95", "max",
		ts[0], ts[1], ts[2], ts[3], ts[4],
		tr[0], tr[1], tr[2], tr[3], tr[4],
	)
}
