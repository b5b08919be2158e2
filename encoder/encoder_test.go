package encoder

import (
	"bytes"
	"math"
	"testing"

	"github.com/go-audio/wav"
)

func sine(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/SampleRate))
	}
	return out
}

func TestEncodeWAVRoundTrip(t *testing.T) {
	samples := sine(SampleRate / 2)

	data, err := EncodeWAV(samples)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("bad header %q", data[:12])
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		t.Fatal("decoder rejects encoded file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if dec.SampleRate != SampleRate || dec.NumChans != Channels || dec.BitDepth != BitsPerSample {
		t.Errorf("format = %d Hz %d ch %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if len(buf.Data) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(samples))
	}
	for i := range samples {
		if buf.Data[i] != int(samples[i]) {
			t.Fatalf("sample %d = %d, want %d", i, buf.Data[i], samples[i])
		}
	}
}

func TestFlacEncoder(t *testing.T) {
	samples := sine(SampleRate)

	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}

	var totalFed uint64
	for i := 0; i < len(samples); i += BlockSize {
		block := samples[i:min(i+BlockSize, len(samples))]
		if err := enc.EncodeBlock(block); err != nil {
			t.Fatalf("EncodeBlock at offset %d: %v", i, err)
		}
		totalFed += uint64(len(block))
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if enc.TotalFrames() != totalFed {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), totalFed)
	}
	if flacData := enc.Bytes(); len(flacData) < 4 || string(flacData[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	data, err := EncodeFLAC(nil)
	if err != nil {
		t.Fatalf("EncodeFLAC(nil): %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestEncode(t *testing.T) {
	samples := sine(BlockSize + 100)
	for _, tt := range []struct {
		format Format
		magic  string
		ctype  string
	}{
		{WAV, "RIFF", "audio/wav"},
		{FLAC, "fLaC", "audio/flac"},
	} {
		t.Run(string(tt.format), func(t *testing.T) {
			enc, err := Encode(tt.format, samples)
			if err != nil {
				t.Fatal(err)
			}
			if string(enc.Data[:4]) != tt.magic {
				t.Errorf("magic = %q", enc.Data[:4])
			}
			if enc.Format.ContentType() != tt.ctype {
				t.Errorf("content type = %q", enc.Format.ContentType())
			}
			if enc.RawSize() != len(samples)*2 {
				t.Errorf("RawSize = %d", enc.RawSize())
			}
		})
	}
	if _, err := Encode("ogg", samples); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestMemWriteSeeker(t *testing.T) {
	var m memWriteSeeker
	m.Write([]byte("hello world"))
	if _, err := m.Seek(0, 0); err != nil {
		t.Fatal(err)
	}
	m.Write([]byte("J"))
	if _, err := m.Seek(-1, 2); err != nil {
		t.Fatal(err)
	}
	m.Write([]byte("D!"))
	if got := string(m.buf); got != "Jello worlD!" {
		t.Errorf("buf = %q", got)
	}
	if _, err := m.Seek(-100, 1); err == nil {
		t.Error("expected error for negative position")
	}
}
