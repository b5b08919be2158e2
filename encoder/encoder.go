package encoder

import (
	"fmt"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Format string

const (
	WAV  Format = "wav"
	FLAC Format = "flac"
)

func (f Format) ContentType() string {
	if f == FLAC {
		return "audio/flac"
	}
	return "audio/wav"
}

// Encoded is an upload-ready audio file.
type Encoded struct {
	Format  Format
	Data    []byte
	Frames  int
	Elapsed time.Duration
}

// RawSize is the size of the same audio as bare 16-bit PCM.
func (e Encoded) RawSize() int { return e.Frames * BitsPerSample / 8 }

// Encode packs mono 16 kHz samples into the given container.
func Encode(format Format, samples []int16) (Encoded, error) {
	start := time.Now()
	var data []byte
	var err error
	switch format {
	case WAV:
		data, err = EncodeWAV(samples)
	case FLAC:
		data, err = EncodeFLAC(samples)
	default:
		return Encoded{}, fmt.Errorf("unknown audio format %q", format)
	}
	if err != nil {
		return Encoded{}, err
	}
	return Encoded{Format: format, Data: data, Frames: len(samples), Elapsed: time.Since(start)}, nil
}
