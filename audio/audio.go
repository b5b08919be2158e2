package audio

import (
	"math"
	"strings"
	"time"
)

const (
	SampleRate = 16000
	Channels   = 1
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether it is a headset mic,
// which usually drops to 8-16 kHz narrowband while capturing.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives little-endian 16-bit mono PCM.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// Buffer is one recording as normalized float samples in [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
}

func (b Buffer) Len() int { return len(b.Samples) }

func (b Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// PCM16 converts to clamped 16-bit samples for encoders.
func (b Buffer) PCM16() []int16 {
	out := make([]int16, len(b.Samples))
	for i, s := range b.Samples {
		v := math.Round(float64(s) * 32767)
		out[i] = int16(max(-32768, min(32767, v)))
	}
	return out
}

// RMS is the root mean square level of the buffer.
func (b Buffer) RMS() float64 {
	if len(b.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range b.Samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(b.Samples)))
}

// FromPCM16 wraps 16-bit samples, for WAV files and tests.
func FromPCM16(pcm []int16, sampleRate int) Buffer {
	out := make([]float32, len(pcm))
	for i, v := range pcm {
		out[i] = float32(v) / 32768
	}
	return Buffer{Samples: out, SampleRate: sampleRate}
}
