//go:build !linux

package beep

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"dictate/log"
)

const (
	channels = 1
	startDur = 0.03
	endDur   = 0.05
)

var (
	otoCtx  *oto.Context
	otoOnce sync.Once
)

func initOto() {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   50 * time.Millisecond,
	})
	if err != nil {
		log.Errorf("oto init: %v", err)
		return
	}
	<-ready
	otoCtx = ctx
}

func playSamples(samples []int16) {
	otoOnce.Do(initOto)
	if otoCtx == nil || len(samples) == 0 {
		return
	}
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, samples)
	player := otoCtx.NewPlayer(bytes.NewReader(buf.Bytes()))
	player.Play()
	for player.IsPlaying() {
		time.Sleep(5 * time.Millisecond)
	}
	player.Close()
}
