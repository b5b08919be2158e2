// Package vad decides whether a finished recording contains any speech.
package vad

import (
	"encoding/binary"
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"dictate/audio"
)

const (
	DefaultMode = 2
	FrameMs     = 30
	frameBytes  = audio.SampleRate * FrameMs / 1000 * 2 // 960 bytes
)

// Stats summarizes one classified buffer.
type Stats struct {
	Frames       int
	VoicedFrames int
	LongestRun   int
}

// Ratio is the fraction of voiced frames.
func (s Stats) Ratio() float64 {
	if s.Frames == 0 {
		return 0
	}
	return float64(s.VoicedFrames) / float64(s.Frames)
}

// Gate classifies whole buffers with the webrtc detector.
type Gate struct {
	minVoiced int

	mu  sync.Mutex
	vad *webrtcvad.VAD
}

// New returns a gate that passes buffers with at least minVoiced voiced
// frames. mode is the webrtc aggressiveness, 0 to 3.
func New(mode, minVoiced int) (*Gate, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtcvad: %w", err)
	}
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("webrtcvad mode %d: %w", mode, err)
	}
	return &Gate{vad: v, minVoiced: max(1, minVoiced)}, nil
}

// Analyze classifies buf in 30 ms frames. A trailing partial frame is ignored.
func (g *Gate) Analyze(buf audio.Buffer) Stats {
	pcm := buf.PCM16()
	frame := make([]byte, frameBytes)
	samplesPerFrame := frameBytes / 2

	g.mu.Lock()
	defer g.mu.Unlock()

	var st Stats
	run := 0
	for off := 0; off+samplesPerFrame <= len(pcm); off += samplesPerFrame {
		for i, s := range pcm[off : off+samplesPerFrame] {
			binary.LittleEndian.PutUint16(frame[i*2:], uint16(s))
		}
		active, err := g.vad.Process(audio.SampleRate, frame)
		if err != nil {
			continue
		}
		st.Frames++
		if active {
			st.VoicedFrames++
			run++
			st.LongestRun = max(st.LongestRun, run)
		} else {
			run = 0
		}
	}
	return st
}

// HasSpeech reports whether buf clears the voiced-frame threshold.
func (g *Gate) HasSpeech(buf audio.Buffer) bool {
	return g.Analyze(buf).VoicedFrames >= g.minVoiced
}
