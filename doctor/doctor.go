// Package doctor runs interactive checks of every outside dependency:
// keyboard access, microphone, API keys, the transcription provider and
// keystroke injection.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"dictate/audio"
	"dictate/hotkey"
	"dictate/inject"
	"dictate/shutdown"
	"dictate/transcriber"
)

type Options struct {
	Hotkey      hotkey.Spec
	Device      string
	Transcriber transcriber.Transcriber
	// TranscriberErr is why Transcriber is nil, usually a missing key.
	TranscriberErr error
	// Keys maps credential env vars to whether they are set.
	Keys map[string]bool
	// WAV, when set, is transcribed instead of the microphone sample.
	WAV string
}

type check struct {
	name string
	run  func(w io.Writer) (string, error)
}

var errSkipped = errors.New("skipped")

// Run executes the checks and returns an exit code (0=all pass, 1=any fail).
func Run(opts Options) int {
	resetTerminal()
	done := make(chan struct{})
	defer close(done)
	go exitOnInterrupt(done)

	fmt.Println("dictate doctor - interactive system diagnostics")
	fmt.Println("===============================================")

	var recorded audio.Buffer
	checks := []check{
		{"Hotkey", func(w io.Writer) (string, error) { return checkHotkey(w, opts.Hotkey) }},
		{"Microphone", func(w io.Writer) (string, error) {
			buf, msg, err := checkMicrophone(w, opts.Device)
			recorded = buf
			return msg, err
		}},
		{"API keys", func(io.Writer) (string, error) { return checkKeys(opts.Keys, opts.TranscriberErr) }},
		{"Transcription", func(w io.Writer) (string, error) {
			return checkTranscription(w, opts.Transcriber, opts.WAV, recorded)
		}},
		{"Keystroke output", func(io.Writer) (string, error) { return checkInjection() }},
	}

	ok := runChecks(os.Stdout, checks)
	fmt.Println()
	if ok {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

// exitOnInterrupt ends the process on Ctrl+C, restoring the terminal
// first. It returns once done is closed.
func exitOnInterrupt(done <-chan struct{}) {
	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	select {
	case <-ctx.Done():
		resetTerminal()
		fmt.Fprintln(os.Stderr, "\nInterrupted")
		os.Exit(1)
	case <-done:
	}
}

func runChecks(w io.Writer, checks []check) bool {
	allPass := true
	for i, c := range checks {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.name)
		msg, err := c.run(w)
		switch {
		case errors.Is(err, errSkipped):
			fmt.Fprintf(w, "  SKIP: %s\n", msg)
		case err != nil:
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			allPass = false
		default:
			fmt.Fprintf(w, "  PASS: %s\n", msg)
		}
	}
	return allPass
}

func checkHotkey(w io.Writer, spec hotkey.Spec) (string, error) {
	access, err := hotkey.Diagnose()
	if err != nil {
		return "", err
	}
	fmt.Fprintf(w, "  %s\n", access)

	src, err := hotkey.New(spec)
	if err != nil {
		return "", err
	}
	if err := src.Register(); err != nil {
		return "", fmt.Errorf("could not register hotkey: %w", err)
	}
	defer src.Unregister()

	pressed := make(chan struct{}, 1)
	released := make(chan struct{}, 1)
	d := hotkey.NewDetector(spec,
		func() { notifyOnce(pressed) },
		func() { notifyOnce(released) })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hotkey.Listen(ctx, src, d)

	fmt.Fprintf(w, "  Press and release %s...\n", spec)
	select {
	case <-pressed:
	case <-time.After(10 * time.Second):
		return "", errors.New("timeout waiting for hotkey")
	}
	select {
	case <-released:
	case <-time.After(5 * time.Second):
		return "", errors.New("hotkey press seen but no release")
	}
	// the key reader may leave the terminal in raw mode
	resetTerminal()
	return "hotkey press and release detected", nil
}

func notifyOnce(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func checkMicrophone(w io.Writer, device string) (audio.Buffer, string, error) {
	actx, err := audio.NewContext()
	if err != nil {
		return audio.Buffer{}, "", fmt.Errorf("cannot connect to audio: %w", err)
	}
	defer actx.Close()

	dev, err := audio.FindDevice(actx, device)
	if err != nil {
		return audio.Buffer{}, "", err
	}
	capture, err := actx.NewCapture(dev, audio.CaptureConfig{SampleRate: audio.SampleRate, Channels: audio.Channels})
	if err != nil {
		return audio.Buffer{}, "", err
	}
	defer capture.Close()
	return recordSample(w, capture, 3*time.Second)
}

func recordSample(w io.Writer, capture audio.CaptureDevice, d time.Duration) (audio.Buffer, string, error) {
	fmt.Fprintf(w, "  Recording %s from %s, say something...\n", d, capture.DeviceName())
	sess, err := audio.NewRecorder(capture).Open()
	if err != nil {
		return audio.Buffer{}, "", err
	}
	time.Sleep(d)
	buf := sess.Close()
	msg, err := micVerdict(buf, capture.DeviceName())
	return buf, msg, err
}

func micVerdict(buf audio.Buffer, name string) (string, error) {
	if buf.Len() == 0 {
		return "", errors.New("no audio captured")
	}
	msg := fmt.Sprintf("%.1fs captured, level %.3f", buf.Duration().Seconds(), buf.RMS())
	if buf.RMS() < 0.001 {
		return "", fmt.Errorf("%s: microphone muted or silent", msg)
	}
	if audio.IsBluetooth(name) {
		msg += " (bluetooth headset: expect lower accuracy)"
	}
	return msg, nil
}

func checkKeys(keys map[string]bool, selectedErr error) (string, error) {
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)
	var set, missing []string
	for _, k := range names {
		if keys[k] {
			set = append(set, k)
		} else {
			missing = append(missing, k)
		}
	}
	if selectedErr != nil {
		return "", selectedErr
	}
	msg := "set: " + strings.Join(set, ", ")
	if len(set) == 0 {
		msg = "no API keys set"
	}
	if len(missing) > 0 {
		msg += "; missing: " + strings.Join(missing, ", ")
	}
	return msg, nil
}

func checkTranscription(w io.Writer, t transcriber.Transcriber, wavPath string, recorded audio.Buffer) (string, error) {
	if t == nil {
		return "no transcriber configured", errSkipped
	}
	buf := recorded
	if wavPath != "" {
		pcm, err := audio.LoadWAV(wavPath)
		if err != nil {
			return "", err
		}
		buf = audio.FromPCM16(pcm, audio.SampleRate)
	}
	if buf.Len() == 0 {
		return "nothing recorded to transcribe", errSkipped
	}

	fmt.Fprintf(w, "  Sending %.1fs to %s...\n", buf.Duration().Seconds(), t.Name())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	start := time.Now()
	text, err := t.Transcribe(ctx, buf)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(no speech detected)"
	}
	return fmt.Sprintf("%q in %dms", text, time.Since(start).Milliseconds()), nil
}

func checkInjection() (string, error) {
	msg, err := inject.Verify()
	if err != nil {
		return "", fmt.Errorf("%w (Linux needs write access to /dev/uinput: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput)", err)
	}
	return msg, nil
}
