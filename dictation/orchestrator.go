// Package dictation runs the hold-to-talk cycle: capture while the hotkey
// is held, then transcribe, format and type the result.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dictate/audio"
	"dictate/formatter"
	"dictate/inject"
	"dictate/log"
	"dictate/status"
	"dictate/transcriber"
)

const (
	DefaultMinSamples       = 1600 // 0.1 s at 16 kHz
	DefaultQuickFormatWords = 15
)

// BusyPolicy decides what a gesture start does while a cycle is running.
type BusyPolicy string

const (
	BusyDrop  BusyPolicy = "drop"
	BusyQueue BusyPolicy = "queue"
)

func ParseBusyPolicy(s string) (BusyPolicy, error) {
	switch p := BusyPolicy(s); p {
	case BusyDrop, BusyQueue:
		return p, nil
	}
	return "", fmt.Errorf("unknown busy policy %q", s)
}

type Config struct {
	// MinSamples is the shortest buffer worth transcribing.
	MinSamples int
	// QuickFormatWords: transcripts with fewer words skip the formatter.
	// Zero disables the bypass.
	QuickFormatWords int
	Busy             BusyPolicy
	Mode             formatter.Mode
}

func DefaultConfig() Config {
	return Config{
		MinSamples:       DefaultMinSamples,
		QuickFormatWords: DefaultQuickFormatWords,
		Busy:             BusyDrop,
		Mode:             formatter.SingleLine,
	}
}

// SpeechGate rejects buffers with no voiced audio before transcription.
type SpeechGate interface {
	HasSpeech(buf audio.Buffer) bool
}

type Deps struct {
	Capture     Capture
	Transcriber transcriber.Transcriber
	Formatter   formatter.Formatter
	Typer       inject.Typer
	Sink        *status.Sink
	Gate        SpeechGate // optional
}

type OutcomeKind int

const (
	Discarded OutcomeKind = iota
	Completed
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Discarded:
		return "discarded"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Discard reasons.
const (
	ReasonTooShort = "too_short"
	ReasonNoSpeech = "no_speech"
	ReasonBlank    = "blank_transcript"
)

// Outcome describes how one cycle ended.
type Outcome struct {
	Kind       OutcomeKind
	CycleID    string
	Reason     string // Discarded
	Err        error  // Failed, or the InjectionError of a Completed cycle
	RawText    string
	Text       string
	Mode       formatter.Mode
	Quick      bool
	Samples    int
	Tokens     int
	Audio      time.Duration
	Transcribe time.Duration
	Format     time.Duration
	Total      time.Duration
	Timestamp  time.Time
}

type cycle struct {
	id      string
	buf     audio.Buffer
	mode    formatter.Mode
	started time.Time
	ended   time.Time
}

// Orchestrator serializes cycles: at most one capture session or
// background task is alive at a time. GestureStarted and GestureEnded are
// safe to call from the key-event goroutine; neither waits on the network.
type Orchestrator struct {
	cfg  Config
	deps Deps

	mu      sync.Mutex
	state   status.Status
	mode    formatter.Mode
	session CaptureSession
	started time.Time
	held    bool
	pending bool
	cycles  int

	work chan cycle

	hookMu    sync.Mutex
	onOutcome []func(Outcome)
	onDrop    []func(status.Status)
}

func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultMinSamples
	}
	if cfg.QuickFormatWords < 0 {
		cfg.QuickFormatWords = 0
	}
	if cfg.Busy == "" {
		cfg.Busy = BusyDrop
	}
	if cfg.Mode == "" {
		cfg.Mode = formatter.SingleLine
	}
	if deps.Formatter == nil {
		deps.Formatter = formatter.Passthrough{}
	}
	deps.Sink.SetFormatMode(string(cfg.Mode))
	return &Orchestrator{
		cfg:   cfg,
		deps:  deps,
		state: status.Idle,
		mode:  cfg.Mode,
		work:  make(chan cycle, 1),
	}
}

// OnOutcome registers fn to run on the worker goroutine after each cycle.
// fn must not block.
func (o *Orchestrator) OnOutcome(fn func(Outcome)) {
	o.hookMu.Lock()
	o.onOutcome = append(o.onOutcome, fn)
	o.hookMu.Unlock()
}

// OnDrop registers fn to run when a gesture start is ignored while busy.
func (o *Orchestrator) OnDrop(fn func(status.Status)) {
	o.hookMu.Lock()
	o.onDrop = append(o.onDrop, fn)
	o.hookMu.Unlock()
}

func (o *Orchestrator) emit(out Outcome) {
	o.hookMu.Lock()
	hooks := append([]func(Outcome){}, o.onOutcome...)
	o.hookMu.Unlock()
	for _, fn := range hooks {
		fn(out)
	}
}

func (o *Orchestrator) dropped(st status.Status) {
	log.GestureDropped(string(st))
	o.hookMu.Lock()
	hooks := append([]func(status.Status){}, o.onDrop...)
	o.hookMu.Unlock()
	for _, fn := range hooks {
		fn(st)
	}
}

// Mode is the format mode the next cycle will use.
func (o *Orchestrator) Mode() formatter.Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// SetMode changes the format mode. A cycle already in flight keeps the
// mode it started with.
func (o *Orchestrator) SetMode(m formatter.Mode) error {
	if _, err := formatter.ParseMode(string(m)); err != nil {
		return err
	}
	o.mu.Lock()
	o.mode = m
	o.deps.Sink.SetFormatMode(string(m))
	o.mu.Unlock()
	log.Info("format mode: " + string(m))
	return nil
}

func (o *Orchestrator) State() status.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Cycles counts cycles that reached the worker.
func (o *Orchestrator) Cycles() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cycles
}

func (o *Orchestrator) setLocked(st status.Status) {
	o.state = st
	o.deps.Sink.Notify(st)
}

// GestureStarted opens a capture session when idle.
func (o *Orchestrator) GestureStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.held = true
	if o.state != status.Idle || o.session != nil {
		if o.cfg.Busy == BusyQueue && o.state != status.Recording {
			o.pending = true
		}
		go o.dropped(o.state)
		return
	}
	o.startLocked()
}

func (o *Orchestrator) startLocked() {
	s, err := o.deps.Capture.Open()
	if err != nil {
		cerr := &CaptureError{Err: err}
		id := uuid.NewString()
		log.CycleFailed(id, stage(cerr), cerr)
		go o.emit(Outcome{Kind: Failed, CycleID: id, Err: cerr, Mode: o.mode, Timestamp: time.Now()})
		return
	}
	o.session = s
	o.started = time.Now()
	o.setLocked(status.Recording)

	if w, ok := o.deps.Transcriber.(transcriber.Warmer); ok {
		go w.Warm()
	}
	if w, ok := o.deps.Formatter.(interface{ Warm() }); ok {
		go w.Warm()
	}
}

// GestureEnded closes the session and hands the buffer to the worker.
// Buffers under MinSamples are discarded here.
func (o *Orchestrator) GestureEnded() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.held = false
	o.pending = false
	if o.state != status.Recording || o.session == nil {
		return
	}

	o.setLocked(status.Transcribing)
	buf := o.session.Close()
	o.session = nil

	c := cycle{
		id:      uuid.NewString(),
		buf:     buf,
		mode:    o.mode,
		started: o.started,
		ended:   time.Now(),
	}

	if buf.Len() < o.cfg.MinSamples {
		log.CycleDiscarded(c.id, ReasonTooShort, buf.Len())
		o.setLocked(status.Idle)
		out := Outcome{Kind: Discarded, CycleID: c.id, Reason: ReasonTooShort, Mode: c.mode,
			Samples: buf.Len(), Audio: buf.Duration(), Timestamp: c.ended}
		go o.emit(out)
		return
	}

	select {
	case o.work <- c:
	default:
		// unreachable while cycles are serialized; fail rather than block
		log.CycleFailed(c.id, "internal", errors.New("work slot occupied"))
		o.setLocked(status.Idle)
	}
}

// Run drains the work slot until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			o.abandon()
			return
		case c := <-o.work:
			o.process(ctx, c)
		}
	}
}

// abandon closes a session left open at shutdown.
func (o *Orchestrator) abandon() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != nil {
		o.session.Close()
		o.session = nil
	}
	if o.state != status.Idle {
		o.setLocked(status.Idle)
	}
}

func (o *Orchestrator) finish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setLocked(status.Idle)
	if o.pending && o.held {
		o.pending = false
		o.startLocked()
	}
	o.pending = false
}

func (o *Orchestrator) process(ctx context.Context, c cycle) {
	o.mu.Lock()
	o.cycles++
	o.mu.Unlock()

	out := Outcome{
		CycleID: c.id,
		Mode:    c.mode,
		Samples: c.buf.Len(),
		Audio:   c.buf.Duration(),
	}
	defer func() {
		if r := recover(); r != nil {
			out.Kind = Failed
			out.Err = fmt.Errorf("panic: %v", r)
		}
		out.Total = time.Since(c.ended)
		out.Timestamp = time.Now()
		o.record(out)
		o.finish()
		o.emit(out)
	}()
	o.run(ctx, c, &out)
}

func (o *Orchestrator) record(out Outcome) {
	switch out.Kind {
	case Discarded:
		log.CycleDiscarded(out.CycleID, out.Reason, out.Samples)
	case Failed:
		log.CycleFailed(out.CycleID, stage(out.Err), out.Err)
	case Completed:
		if out.Err != nil {
			log.Warnf("cycle %s: %v", out.CycleID, out.Err)
		}
		log.CycleCompleted(log.CycleMetrics{
			ID:           out.CycleID,
			AudioS:       out.Audio.Seconds(),
			TranscribeMs: float64(out.Transcribe.Microseconds()) / 1000,
			FormatMs:     float64(out.Format.Microseconds()) / 1000,
			TotalMs:      float64(out.Total.Microseconds()) / 1000,
			Tokens:       out.Tokens,
			Words:        formatter.WordCount(out.Text),
			Quick:        out.Quick,
			Mode:         string(out.Mode),
		})
		log.TranscriptionText(out.Text)
	}
}

func (o *Orchestrator) run(ctx context.Context, c cycle, out *Outcome) {
	if o.deps.Gate != nil && !o.deps.Gate.HasSpeech(c.buf) {
		out.Kind, out.Reason = Discarded, ReasonNoSpeech
		return
	}

	t0 := time.Now()
	raw, err := o.deps.Transcriber.Transcribe(ctx, c.buf)
	out.Transcribe = time.Since(t0)
	if err != nil {
		out.Kind = Failed
		out.Err = &TranscriptionError{Provider: o.deps.Transcriber.Name(), Err: err}
		return
	}
	raw = strings.TrimSpace(raw)
	out.RawText = raw
	if raw == "" {
		out.Kind, out.Reason = Discarded, ReasonBlank
		return
	}

	o.mu.Lock()
	o.setLocked(status.Formatting)
	o.mu.Unlock()

	typed := o.typer(c.mode, out)

	t1 := time.Now()
	var text string
	if o.cfg.QuickFormatWords > 0 && formatter.WordCount(raw) < o.cfg.QuickFormatWords {
		out.Quick = true
		text = formatter.Quick(raw)
		typed(text)
	} else {
		text, err = o.deps.Formatter.Format(ctx, raw, c.mode, typed)
		if err != nil {
			out.Format = time.Since(t1)
			out.Kind = Failed
			out.Err = &FormattingError{Provider: o.deps.Formatter.Name(), Err: err}
			return
		}
	}
	out.Format = time.Since(t1)

	if c.mode == formatter.SingleLine {
		text = formatter.FlattenLine(text)
	}
	text = strings.TrimSpace(text)
	out.Text = text
	out.Kind = Completed
	if text != "" {
		o.deps.Sink.NotifyTranscript(text)
	}
}

// typer returns the per-token callback. In single-line mode every token is
// flattened before it reaches the keyboard. After the first injection
// error the rest of the cycle is not typed.
func (o *Orchestrator) typer(mode formatter.Mode, out *Outcome) formatter.TokenFunc {
	var line formatter.LineSanitizer
	return func(tok string) {
		out.Tokens++
		if mode == formatter.SingleLine {
			tok = line.Token(tok)
		}
		if tok == "" || out.Err != nil {
			return
		}
		if err := o.deps.Typer.Type(tok); err != nil {
			out.Err = &InjectionError{Err: err}
		}
	}
}
