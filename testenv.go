package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"dictate/audio"
	"dictate/config"
	"dictate/dictation"
	"dictate/formatter"
	"dictate/hotkey"
	"dictate/status"
)

const waitTimeout = 30 * time.Second

// stdoutTyper echoes typed text so a test harness can read it back.
type stdoutTyper struct {
	mu sync.Mutex
	w  io.Writer
}

func (t *stdoutTyper) Type(text string) error {
	if text == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.w, "TYPED %s\n", strconv.Quote(text))
	return err
}

func runTestMode(cfg config.Config, wavPath string) int {
	samples, err := audio.LoadWAV(wavPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		return 1
	}

	keys := hotkey.NewFake()
	p := &platform{
		audio: audio.NewFakeContext(samples, false),
		keys:  keys,
		typer: &stdoutTyper{w: os.Stdout},
	}
	defer p.close()

	cfg.Tray, cfg.TUI, cfg.Beep, cfg.Notify = false, false, false, false
	cfg.DashboardAddr = ""
	a, err := newApp(context.Background(), cfg, p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	d := newDriver(a.orch, keys, os.Stdout)
	defer a.sink.Subscribe(d)()
	a.orch.OnOutcome(d.RecordOutcome)

	return a.serve(nil, func(ctx context.Context) {
		if err := d.run(ctx, os.Stdin); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	})
}

// driver executes the stdin script of -test mode:
//
//	PRESS <key> | RELEASE <key>  synthetic key edges
//	WAIT <status>                block until the pipeline enters status
//	WAIT                         block until the next cycle ends
//	SLEEP <ms>
//	MODE <mode>
//	QUIT
type driver struct {
	orch *dictation.Orchestrator
	keys *hotkey.Fake
	out  io.Writer

	statuses chan status.Status
	outcomes chan dictation.Outcome
}

func newDriver(orch *dictation.Orchestrator, keys *hotkey.Fake, out io.Writer) *driver {
	return &driver{
		orch:     orch,
		keys:     keys,
		out:      out,
		statuses: make(chan status.Status, 256),
		outcomes: make(chan dictation.Outcome, 64),
	}
}

func (d *driver) Observe(ev status.Event) {
	if ev.Kind != status.StatusChanged {
		return
	}
	select {
	case d.statuses <- ev.Snapshot.Status:
	default:
	}
}

func (d *driver) RecordOutcome(out dictation.Outcome) {
	select {
	case d.outcomes <- out:
	default:
	}
}

func (d *driver) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		var err error
		switch strings.ToUpper(cmd) {
		case "PRESS", "RELEASE":
			var k hotkey.Key
			if k, err = hotkey.ParseKey(arg); err == nil {
				if strings.EqualFold(cmd, "PRESS") {
					d.keys.Press(k)
				} else {
					d.keys.Release(k)
				}
			}
		case "WAIT":
			if arg == "" {
				err = d.waitOutcome(ctx)
			} else {
				err = d.waitStatus(ctx, status.Status(strings.ToLower(arg)))
			}
		case "SLEEP":
			var ms int
			if ms, err = strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "MODE":
			err = d.orch.SetMode(formatter.Mode(arg))
		case "QUIT":
			return nil
		default:
			err = fmt.Errorf("unknown command %q", cmd)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", line, err)
		}
	}
	return scanner.Err()
}

func (d *driver) waitStatus(ctx context.Context, want status.Status) error {
	timeout := time.After(waitTimeout)
	for {
		select {
		case st := <-d.statuses:
			if st == want {
				return nil
			}
		case <-timeout:
			return fmt.Errorf("timed out waiting for %s", want)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *driver) waitOutcome(ctx context.Context) error {
	select {
	case out := <-d.outcomes:
		fmt.Fprintf(d.out, "OUTCOME %s %s\n", out.Kind, outcomeDetail(out))
		return nil
	case <-time.After(waitTimeout):
		return fmt.Errorf("timed out waiting for a cycle to end")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func outcomeDetail(out dictation.Outcome) string {
	switch out.Kind {
	case dictation.Discarded:
		return out.Reason
	case dictation.Failed:
		return out.Err.Error()
	}
	return strconv.Quote(out.Text)
}
