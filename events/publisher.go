// Package events publishes completed transcripts to Kafka.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"dictate/dictation"
	"dictate/log"
)

const queueSize = 32

// TranscriptEvent is the JSON payload of one message.
type TranscriptEvent struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	RawText   string    `json:"raw_text"`
	Mode      string    `json:"mode"`
	Quick     bool      `json:"quick"`
	Timestamp time.Time `json:"timestamp"`
}

type Config struct {
	Brokers []string
	Topic   string
	Source  string // sent as a header, usually the hostname
}

// Recorder receives one call per publish attempt.
type Recorder interface {
	RecordPublish(topic string, err error, latencySeconds float64)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends transcript events in the background. Without brokers it
// only logs them.
type Publisher struct {
	writer  messageWriter
	topic   string
	source  string
	metrics Recorder

	queue chan TranscriptEvent
	wg    sync.WaitGroup
	once  sync.Once
}

func New(cfg Config, metrics Recorder) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = "dictation.transcripts"
	}
	p := &Publisher{topic: cfg.Topic, source: cfg.Source, metrics: metrics}
	if len(cfg.Brokers) == 0 {
		log.Info("kafka disabled, transcript events are log-only")
	} else {
		dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
		p.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    &kafka.Transport{Dial: dialer.DialFunc},
		}
		log.Debugf("kafka publisher: brokers=%v topic=%s", cfg.Brokers, cfg.Topic)
	}
	p.start()
	return p
}

func newWithWriter(w messageWriter, topic string, metrics Recorder) *Publisher {
	p := &Publisher{writer: w, topic: topic, metrics: metrics}
	p.start()
	return p
}

func (p *Publisher) start() {
	p.queue = make(chan TranscriptEvent, queueSize)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for ev := range p.queue {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			_ = p.Publish(ctx, ev)
			cancel()
		}
	}()
}

// Enabled reports whether events reach a broker.
func (p *Publisher) Enabled() bool { return p.writer != nil }

// RecordOutcome is an orchestrator outcome hook. Only completed cycles with
// text are published. It never blocks; a full queue drops the event.
func (p *Publisher) RecordOutcome(out dictation.Outcome) {
	if out.Kind != dictation.Completed || out.Text == "" {
		return
	}
	ev := TranscriptEvent{
		ID:        out.CycleID,
		Text:      out.Text,
		RawText:   out.RawText,
		Mode:      string(out.Mode),
		Quick:     out.Quick,
		Timestamp: out.Timestamp,
	}
	select {
	case p.queue <- ev:
	default:
		log.Warnf("event queue full, dropping transcript %s", out.CycleID)
	}
}

// Publish writes one event synchronously.
func (p *Publisher) Publish(ctx context.Context, ev TranscriptEvent) error {
	start := time.Now()
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	log.Debugf("publish topic=%s key=%s payload=%s", p.topic, ev.ID, payload)

	if p.writer == nil {
		p.record(nil, start)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(ev.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte("transcript")},
			{Key: "source", Value: []byte(p.source)},
		},
	}
	err = p.writer.WriteMessages(ctx, msg)
	if err != nil {
		log.Errorf("kafka write %s: %v", ev.ID, err)
	}
	p.record(err, start)
	return err
}

func (p *Publisher) record(err error, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordPublish(p.topic, err, time.Since(start).Seconds())
	}
}

// Close drains queued events and closes the writer.
func (p *Publisher) Close() error {
	var err error
	p.once.Do(func() {
		close(p.queue)
		p.wg.Wait()
		if p.writer != nil {
			err = p.writer.Close()
		}
	})
	return err
}
