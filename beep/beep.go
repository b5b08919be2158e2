// Package beep plays short ticks when recording starts and stops.
package beep

import (
	"math"
	"sync"

	"dictate/dictation"
	"dictate/status"
)

const (
	sampleRate = 44100

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End beep: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// generateTick renders an exponentially decaying sine, interleaved for the
// given channel count.
func generateTick(freq, duration, volume, decay float64, channels int) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n*channels)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		s := int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
		for c := 0; c < channels; c++ {
			samples[i*channels+c] = s
		}
	}
	return samples
}

func generateDoubleBeep(freq, beepDur, gapDur, volume, decay float64, channels int) []int16 {
	beep := generateTick(freq, beepDur, volume, decay, channels)
	gap := make([]int16, int(float64(sampleRate)*gapDur)*channels)
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}

// Player reacts to status changes: a start tick on Recording, an end tick
// when recording gives way to transcription and a double beep on failure.
type Player struct {
	play func([]int16)

	once                 sync.Once
	start, end, errSound []int16

	mu   sync.Mutex
	prev status.Status
}

func New() *Player {
	return &Player{play: playSamples, prev: status.Idle}
}

func (p *Player) load() {
	p.once.Do(func() {
		p.start = generateTick(startFreq, startDur, startVolume, startDecay, channels)
		p.end = generateTick(endFreq, endDur, endVolume, endDecay, channels)
		p.errSound = generateDoubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay, channels)
	})
}

// Observe implements status.Observer.
func (p *Player) Observe(ev status.Event) {
	if ev.Kind != status.StatusChanged {
		return
	}
	p.mu.Lock()
	prev := p.prev
	p.prev = ev.Snapshot.Status
	p.mu.Unlock()

	p.load()
	switch {
	case ev.Snapshot.Status == status.Recording && prev != status.Recording:
		go p.play(p.start)
	case ev.Snapshot.Status == status.Transcribing && prev == status.Recording:
		go p.play(p.end)
	}
}

// RecordOutcome is an orchestrator outcome hook.
func (p *Player) RecordOutcome(out dictation.Outcome) {
	if out.Kind != dictation.Failed {
		return
	}
	p.load()
	go p.play(p.errSound)
}
