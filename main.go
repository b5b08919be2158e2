package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"dictate/audio"
	"dictate/beep"
	"dictate/config"
	"dictate/dashboard"
	"dictate/dictation"
	"dictate/doctor"
	"dictate/events"
	"dictate/formatter"
	"dictate/hotkey"
	"dictate/inject"
	"dictate/log"
	"dictate/metrics"
	"dictate/notify"
	"dictate/shutdown"
	"dictate/status"
	"dictate/transcriber"
	"dictate/tray"
	"dictate/vad"
)

var version = "dev"

const fakeTranscript = "hello from the fake transcriber"

// desktop is the status window of -gui builds.
type desktop interface {
	status.Observer
	Toggle()
}

// loadConfig parses the command line or exits: 0 after -h, 2 on a bad
// setting.
func loadConfig() config.Config {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	return cfg
}

// initCrashLog resolves the log directory and routes fatal runtime errors
// to crash_log.txt there.
func initCrashLog(cfg config.Config) {
	dir, err := log.ResolveDir(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(dir)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
		return
	}

	f, err := os.OpenFile(filepath.Join(dir, "crash_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
}

func run(cfg config.Config) int {
	if cfg.Version {
		fmt.Printf("dictate %s\n", version)
		return 0
	}
	if cfg.Doctor {
		return runDoctor(cfg)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if cfg.Test {
		return runTestMode(cfg, cfg.Args[0])
	}

	p, err := livePlatform(cfg)
	if err != nil {
		log.Errorf("platform init: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer p.close()

	a, err := newApp(context.Background(), cfg, p)
	if err != nil {
		log.Errorf("init: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	if cfg.GUI {
		return initGUI(a)
	}
	return a.serve(nil, nil)
}

func runDoctor(cfg config.Config) int {
	opts := doctor.Options{Hotkey: cfg.Hotkey, Device: cfg.Device, Keys: config.Keys()}
	opts.Transcriber, opts.TranscriberErr = transcriber.New(context.Background(), cfg.Transcriber)
	if c, ok := opts.Transcriber.(io.Closer); ok {
		defer c.Close()
	}
	if len(cfg.Args) > 0 {
		opts.WAV = cfg.Args[0]
	}
	return doctor.Run(opts)
}

// platform bundles what differs between a live session and -test mode.
type platform struct {
	audio   audio.Context
	keys    hotkey.Source
	typer   inject.Typer
	closers []func()
}

func (p *platform) close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

func livePlatform(cfg config.Config) (*platform, error) {
	actx, err := audio.NewContext()
	if err != nil {
		return nil, fmt.Errorf("initializing audio: %w", err)
	}
	p := &platform{audio: actx, closers: []func(){actx.Close}}

	p.keys, err = hotkey.New(cfg.Hotkey)
	if err != nil {
		p.close()
		return nil, fmt.Errorf("hotkey %s: %w", cfg.Hotkey, err)
	}

	kb, err := inject.New()
	if err != nil {
		log.Warnf("keystroke output unavailable: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: keystroke output unavailable: %v\n", err)
		fmt.Fprintln(os.Stderr, "Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		p.typer = clipboardTyper{}
	} else {
		p.typer = kb
		p.closers = append(p.closers, func() { kb.Close() })
	}
	return p, nil
}

// clipboardTyper leaves text on the clipboard when keystrokes cannot be
// synthesized.
type clipboardTyper struct{}

func (clipboardTyper) Type(text string) error {
	if text == "" {
		return nil
	}
	return inject.Copy(text)
}

type app struct {
	cfg     config.Config
	p       *platform
	capture audio.CaptureDevice
	rec     *audio.Recorder
	trans   transcriber.Transcriber
	format  formatter.Formatter
	sink    *status.Sink
	orch    *dictation.Orchestrator
}

func newApp(ctx context.Context, cfg config.Config, p *platform) (*app, error) {
	var (
		dev *audio.DeviceInfo
		err error
	)
	if cfg.Setup && cfg.Device == "" {
		dev, err = audio.SelectDevice(p.audio)
	} else {
		dev, err = audio.FindDevice(p.audio, cfg.Device)
	}
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: %v, using the default device\n", err)
		dev = nil
	}

	capture, err := p.audio.NewCapture(dev, audio.CaptureConfig{SampleRate: audio.SampleRate, Channels: audio.Channels})
	if err != nil {
		return nil, fmt.Errorf("initializing capture device: %w", err)
	}
	if dev != nil && audio.IsBluetooth(dev.Name) {
		log.Warn("bluetooth microphone selected: " + dev.Name)
	}

	a := &app{cfg: cfg, p: p, capture: capture, rec: audio.NewRecorder(capture)}
	a.trans, a.format, err = providers(ctx, cfg)
	if err != nil {
		capture.Close()
		return nil, err
	}

	a.sink = status.NewSink(string(cfg.FormatMode))
	deps := dictation.Deps{
		Capture:     dictation.RecorderCapture(a.rec),
		Transcriber: a.trans,
		Formatter:   a.format,
		Typer:       p.typer,
		Sink:        a.sink,
	}
	if cfg.VAD {
		gate, err := vad.New(2, 1)
		if err != nil {
			a.close()
			return nil, err
		}
		deps.Gate = gate
	}
	a.orch = dictation.New(cfg.Dictation, deps)
	return a, nil
}

func providers(ctx context.Context, cfg config.Config) (transcriber.Transcriber, formatter.Formatter, error) {
	if cfg.Fake {
		text := os.Getenv("DICTATE_FAKE_TEXT")
		if text == "" {
			text = fakeTranscript
		}
		return transcriber.NewFake(text, nil), formatter.Passthrough{}, nil
	}
	t, err := transcriber.New(ctx, cfg.Transcriber)
	if err != nil {
		return nil, nil, err
	}
	f, err := formatter.New(cfg.Formatter)
	if err != nil {
		if c, ok := t.(io.Closer); ok {
			c.Close()
		}
		return nil, nil, err
	}
	return t, f, nil
}

func (a *app) close() {
	a.sink.Close()
	a.capture.Close()
	if c, ok := a.trans.(io.Closer); ok {
		c.Close()
	}
}

func (a *app) copyLast() {
	rec, ok := a.sink.Last()
	if !ok {
		return
	}
	if err := inject.Copy(rec.Text); err != nil {
		log.Warnf("copy last: %v", err)
	}
}

func (a *app) setMode(m formatter.Mode) {
	if err := a.orch.SetMode(m); err != nil {
		log.Warnf("set mode: %v", err)
	}
}

func (a *app) infoLine() string {
	dev := a.rec.DeviceName()
	if audio.IsBluetooth(dev) {
		dev += " (BT!)"
	}
	return fmt.Sprintf("%s → %s | mic: %s", a.trans.Name(), a.format.Name(), dev)
}

// serve wires the observers, registers the hotkey and blocks until a
// signal, Quit from the tray or TUI, or driver returning. win is nil
// outside -gui.
func (a *app) serve(win desktop, driver func(ctx context.Context)) int {
	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	m := metrics.New()
	a.orch.OnOutcome(m.RecordOutcome)
	a.orch.OnDrop(m.RecordDrop)
	defer a.sink.Subscribe(m)()

	host, _ := os.Hostname()
	pub := events.New(events.Config{Brokers: a.cfg.KafkaBrokers, Topic: a.cfg.KafkaTopic, Source: host}, m)
	a.orch.OnOutcome(pub.RecordOutcome)

	if a.cfg.Notify {
		a.orch.OnOutcome(notify.New().RecordOutcome)
	}
	if a.cfg.Beep {
		b := beep.New()
		defer a.sink.Subscribe(b)()
		a.orch.OnOutcome(b.RecordOutcome)
	}
	if win != nil {
		defer a.sink.Subscribe(win)()
	}

	var dashURL string
	if a.cfg.DashboardAddr != "" {
		dash := dashboard.New(a.sink, a.orch, m.Handler())
		defer dash.Close()
		dashURL = "http://" + a.cfg.DashboardAddr
		go func() {
			if err := dash.ListenAndServe(ctx, a.cfg.DashboardAddr); err != nil {
				log.Errorf("dashboard: %v", err)
				fmt.Fprintf(os.Stderr, "Warning: dashboard unavailable: %v\n", err)
			}
		}()
	}

	if a.cfg.Tray && win == nil {
		t := tray.New(tray.Actions{CopyLast: a.copyLast, SetMode: a.setMode, DashboardURL: dashURL}, a.orch.Mode())
		defer a.sink.Subscribe(t)()
		t.Start()
		defer t.Close()
		go func() {
			select {
			case <-t.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	var tuiDone chan struct{}
	if a.cfg.TUI {
		model := newTUIModel(a.sink.Snapshot(), a.infoLine(), a.cfg.Hotkey.String(), func() {
			a.setMode(a.orch.Mode().Next())
		})
		prog := tea.NewProgram(model, tea.WithAltScreen())
		obs := tuiObserver{p: prog}
		defer a.sink.Subscribe(obs)()
		a.orch.OnOutcome(obs.RecordOutcome)
		a.rec.OnLevel(obs.Level)

		tuiDone = make(chan struct{})
		go func() {
			defer close(tuiDone)
			if _, err := prog.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			cancel()
		}()
		defer func() {
			prog.Quit()
			<-tuiDone
		}()
	} else if driver == nil {
		fmt.Printf("dictate %s: hold %s to dictate (%s, %s mode)\n", version, a.cfg.Hotkey, a.infoLine(), a.orch.Mode())
		if dashURL != "" {
			fmt.Printf("dashboard: %s\n", dashURL)
		}
	}

	if err := a.p.keys.Register(); err != nil {
		log.Errorf("hotkey register: %v", err)
		fmt.Fprintf(os.Stderr, "Error: hotkey: %v\n", err)
		return 1
	}
	defer a.p.keys.Unregister()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.orch.Run(ctx)
	}()
	det := hotkey.NewDetector(a.cfg.Hotkey, a.orch.GestureStarted, a.orch.GestureEnded)
	go func() {
		defer wg.Done()
		hotkey.Listen(ctx, a.p.keys, det)
	}()

	log.SessionStart(a.trans.Name(), a.format.Name(), string(a.orch.Mode()), a.cfg.Hotkey.String())
	if driver != nil {
		go func() {
			driver(ctx)
			cancel()
		}()
	}

	<-ctx.Done()
	wg.Wait()
	if err := pub.Close(); err != nil {
		log.Warnf("events close: %v", err)
	}
	log.SessionEnd(a.orch.Cycles())
	return 0
}
