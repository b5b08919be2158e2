package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var ErrSessionOpen = errors.New("capture session already open")

// Recorder hands out one capture Session at a time on a device.
type Recorder struct {
	mu      sync.Mutex
	dev     CaptureDevice
	active  *Session
	onLevel func(rms float64)
}

func NewRecorder(dev CaptureDevice) *Recorder {
	return &Recorder{dev: dev}
}

// OnLevel registers a callback fed with the RMS of each captured chunk.
func (r *Recorder) OnLevel(fn func(rms float64)) {
	r.mu.Lock()
	r.onLevel = fn
	r.mu.Unlock()
}

// SetDevice swaps the capture device and returns the previous one so the
// caller can close it. It fails while a session is open.
func (r *Recorder) SetDevice(dev CaptureDevice) (CaptureDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return nil, ErrSessionOpen
	}
	old := r.dev
	r.dev = dev
	return old, nil
}

func (r *Recorder) DeviceName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dev.DeviceName()
}

// Open starts the device and buffers every sample until Session.Close.
func (r *Recorder) Open() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return nil, ErrSessionOpen
	}

	s := &Session{
		rec:     r,
		dev:     r.dev,
		start:   time.Now(),
		onLevel: r.onLevel,
		samples: make([]float32, 0, SampleRate*4),
	}
	r.dev.SetCallback(s.feed)
	if err := r.dev.Start(); err != nil {
		r.dev.ClearCallback()
		return nil, fmt.Errorf("start capture on %s: %w", r.dev.DeviceName(), err)
	}
	r.active = s
	return s, nil
}

func (r *Recorder) release(s *Session) {
	r.mu.Lock()
	if r.active == s {
		r.active = nil
	}
	r.mu.Unlock()
}

// Session is one open recording.
type Session struct {
	rec     *Recorder
	dev     CaptureDevice
	start   time.Time
	onLevel func(rms float64)

	mu      sync.Mutex
	samples []float32
	closed  bool
	once    sync.Once
	buf     Buffer
}

func (s *Session) Started() time.Time { return s.start }

// SampleCount is the number of samples buffered so far.
func (s *Session) SampleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func (s *Session) feed(data []byte, _ uint32) {
	n := len(data) / 2
	if n == 0 {
		return
	}
	var sum float64
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for i := 0; i < n; i++ {
		v := float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768
		s.samples = append(s.samples, v)
		sum += float64(v) * float64(v)
	}
	s.mu.Unlock()

	if s.onLevel != nil {
		s.onLevel(math.Sqrt(sum / float64(n)))
	}
}

// Close stops the device and returns everything captured. Closing before
// any data arrived yields an empty buffer. Close is idempotent.
func (s *Session) Close() Buffer {
	s.once.Do(func() {
		s.dev.Stop()
		s.dev.ClearCallback()

		s.mu.Lock()
		s.closed = true
		s.buf = Buffer{Samples: s.samples, SampleRate: SampleRate}
		s.samples = nil
		s.mu.Unlock()

		s.rec.release(s)
	})
	return s.buf
}
