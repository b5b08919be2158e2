package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"dictate/status"
)

const iconSize = 44

var (
	colorIdle         = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 255}
	colorRecording    = color.RGBA{R: 0xff, G: 0x44, B: 0x44, A: 255}
	colorTranscribing = color.RGBA{R: 0xff, G: 0xaa, B: 0x00, A: 255}
	colorFormatting   = color.RGBA{R: 0x44, G: 0xff, B: 0x44, A: 255}
)

var icons = map[status.Status][]byte{}

func init() {
	for _, st := range []status.Status{status.Idle, status.Recording, status.Transcribing, status.Formatting} {
		icons[st] = renderIcon(iconSize, ColorFor(st))
	}
}

// ColorFor is the tray dot color for a status.
func ColorFor(st status.Status) color.RGBA {
	switch st {
	case status.Recording:
		return colorRecording
	case status.Transcribing:
		return colorTranscribing
	case status.Formatting:
		return colorFormatting
	}
	return colorIdle
}

func iconFor(st status.Status) []byte {
	if b, ok := icons[st]; ok {
		return b
	}
	return icons[status.Idle]
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("encodePNG: " + err.Error())
	}
	return buf.Bytes()
}

// renderIcon draws a filled dot inside a dark ring.
func renderIcon(size int, dot color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cx, cy := float64(size)/2, float64(size)/2
	r := float64(size)/2 - 1
	dotR := r * 0.7
	for y := range size {
		for x := range size {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			if d <= dotR {
				img.Set(x, y, dot)
			} else if d <= r {
				img.Set(x, y, color.Black)
			}
		}
	}
	return encodePNG(img)
}
