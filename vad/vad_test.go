package vad

import (
	"math"
	"math/rand"
	"testing"

	"dictate/audio"
)

func silence(ms int) audio.Buffer {
	return audio.Buffer{Samples: make([]float32, audio.SampleRate*ms/1000), SampleRate: audio.SampleRate}
}

// voiceLike mixes harmonics with a syllable-rate envelope and a little noise.
func voiceLike(ms int) audio.Buffer {
	n := audio.SampleRate * ms / 1000
	r := rand.New(rand.NewSource(1))
	s := make([]float32, n)
	for i := range s {
		t := float64(i) / audio.SampleRate
		env := 0.5 + 0.5*math.Sin(2*math.Pi*4*t)
		v := 0.0
		for h := 1; h <= 8; h++ {
			v += math.Sin(2*math.Pi*140*float64(h)*t) / float64(h)
		}
		s[i] = float32(0.3*env*v + 0.02*(r.Float64()-0.5))
	}
	return audio.Buffer{Samples: s, SampleRate: audio.SampleRate}
}

func TestSilenceHasNoSpeech(t *testing.T) {
	g, err := New(DefaultMode, 1)
	if err != nil {
		t.Fatal(err)
	}
	buf := silence(600)
	st := g.Analyze(buf)
	if st.Frames != 20 {
		t.Errorf("Frames = %d, want 20", st.Frames)
	}
	if st.VoicedFrames != 0 || g.HasSpeech(buf) {
		t.Errorf("silence classified as speech: %+v", st)
	}
	if st.Ratio() != 0 {
		t.Errorf("Ratio = %v", st.Ratio())
	}
}

func TestPartialFrameIgnored(t *testing.T) {
	g, err := New(DefaultMode, 1)
	if err != nil {
		t.Fatal(err)
	}
	if st := g.Analyze(silence(20)); st.Frames != 0 {
		t.Errorf("Frames = %d for a 20 ms buffer", st.Frames)
	}
}

func TestVoiceLikeSignal(t *testing.T) {
	g, err := New(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	st := g.Analyze(voiceLike(1000))
	if st.VoicedFrames == 0 {
		t.Skip("synthetic signal not classified as voice by this webrtc build")
	}
	if st.LongestRun == 0 || st.LongestRun > st.VoicedFrames {
		t.Errorf("stats inconsistent: %+v", st)
	}
}

func TestInvalidMode(t *testing.T) {
	if _, err := New(7, 1); err == nil {
		t.Error("expected error for mode 7")
	}
}
