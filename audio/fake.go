package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
)

const fakeChunkFrames = 1024

// LoadWAV reads a 16-bit mono WAV file into PCM samples.
func LoadWAV(path string) ([]int16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if dec.NumChans != Channels || dec.BitDepth != 16 {
		return nil, fmt.Errorf("%s: want 16-bit mono, got %d-bit %d ch", path, dec.BitDepth, dec.NumChans)
	}
	out := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = int16(v)
	}
	return out, nil
}

// FakeContext serves captures that replay fixed samples.
type FakeContext struct {
	samples  []int16
	realtime bool
}

func NewFakeContext(samples []int16, realtime bool) *FakeContext {
	return &FakeContext{samples: samples, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return NewFakeCapture(f.samples, f.realtime), nil
}

// FakeCapture replays its samples on every Start. Without realtime the
// whole clip is delivered synchronously inside Start.
type FakeCapture struct {
	pcm      []byte
	realtime bool

	mu       sync.Mutex
	cb       DataCallback
	starts   int
	startErr error
	stopCh   chan struct{}
	feedDone chan struct{}
}

func NewFakeCapture(samples []int16, realtime bool) *FakeCapture {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return &FakeCapture{pcm: pcm, realtime: realtime}
}

// FailStart makes subsequent Start calls return err.
func (f *FakeCapture) FailStart(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

// Starts counts successful Start calls.
func (f *FakeCapture) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) feedChunk(cb DataCallback, pos int) int {
	end := min(pos+fakeChunkFrames*2, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/2))
	return end
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	if f.startErr != nil {
		err := f.startErr
		f.mu.Unlock()
		return err
	}
	f.starts++
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	stop, done := f.stopCh, f.feedDone
	f.mu.Unlock()

	if !f.realtime {
		if cb := f.callback(); cb != nil {
			for pos := 0; pos < len(f.pcm); {
				pos = f.feedChunk(cb, pos)
			}
		}
		close(done)
		return nil
	}

	interval := time.Duration(fakeChunkFrames) * time.Second / SampleRate
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for pos := 0; pos < len(f.pcm); {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			cb := f.callback()
			if cb == nil {
				continue
			}
			pos = f.feedChunk(cb, pos)
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stop, done := f.stopCh, f.feedDone
	f.stopCh = nil
	f.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (f *FakeCapture) Close() { f.Stop() }
