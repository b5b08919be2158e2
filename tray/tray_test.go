package tray

import (
	"bytes"
	"image/png"
	"testing"

	"dictate/formatter"
	"dictate/status"
)

func TestColorFor(t *testing.T) {
	tests := []struct {
		st   status.Status
		want string
	}{
		{status.Idle, "808080"},
		{status.Recording, "ff4444"},
		{status.Transcribing, "ffaa00"},
		{status.Formatting, "44ff44"},
		{status.Status("bogus"), "808080"},
	}
	for _, tt := range tests {
		c := ColorFor(tt.st)
		got := hex(c.R) + hex(c.G) + hex(c.B)
		if got != tt.want {
			t.Errorf("ColorFor(%s) = %s, want %s", tt.st, got, tt.want)
		}
	}
}

func hex(b uint8) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xf]})
}

func TestIconsRenderStatusColor(t *testing.T) {
	for _, st := range []status.Status{status.Idle, status.Recording, status.Transcribing, status.Formatting} {
		img, err := png.Decode(bytes.NewReader(iconFor(st)))
		if err != nil {
			t.Fatalf("%s: %v", st, err)
		}
		if img.Bounds().Dx() != iconSize {
			t.Errorf("%s: size %d", st, img.Bounds().Dx())
		}
		r, g, b, _ := img.At(iconSize/2, iconSize/2).RGBA()
		want := ColorFor(st)
		if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(b>>8) != want.B {
			t.Errorf("%s: center pixel = %d,%d,%d", st, r>>8, g>>8, b>>8)
		}
	}
	if !bytes.Equal(iconFor("bogus"), iconFor(status.Idle)) {
		t.Error("unknown status should use the idle icon")
	}
}

func TestObserveBeforeReady(t *testing.T) {
	tr := New(Actions{}, formatter.SingleLine)
	tr.Observe(status.Event{Kind: status.TranscriptAdded, Record: status.Record{Text: "hi"},
		Snapshot: status.Snapshot{Status: status.Formatting, FormatMode: "document"}})
	if tr.status != status.Formatting || tr.mode != "document" || tr.last != "hi" {
		t.Errorf("tray state = %s %s %q", tr.status, tr.mode, tr.last)
	}
	if got := Tooltip(tr.status, tr.mode); got != "dictate: formatting (document)" {
		t.Errorf("Tooltip = %q", got)
	}
}

func TestCloseBeforeStart(t *testing.T) {
	tr := New(Actions{}, formatter.SingleLine)
	tr.Close()
	tr.Close()
	select {
	case <-tr.Done():
	default:
		t.Fatal("Done not closed")
	}
}
