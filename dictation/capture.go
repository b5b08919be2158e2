package dictation

import "dictate/audio"

// Capture opens one recording at a time.
type Capture interface {
	Open() (CaptureSession, error)
}

// CaptureSession buffers audio until Close. Closing a session that never
// received data yields an empty buffer.
type CaptureSession interface {
	Close() audio.Buffer
}

type recorderCapture struct {
	rec *audio.Recorder
}

// RecorderCapture adapts an audio.Recorder.
func RecorderCapture(rec *audio.Recorder) Capture {
	return recorderCapture{rec: rec}
}

func (c recorderCapture) Open() (CaptureSession, error) {
	s, err := c.rec.Open()
	if err != nil {
		return nil, err
	}
	return s, nil
}
