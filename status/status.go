package status

import (
	"sync"
	"time"
)

// Status is the pipeline state broadcast to observers.
type Status string

const (
	Idle         Status = "idle"
	Recording    Status = "recording"
	Transcribing Status = "transcribing"
	Formatting   Status = "formatting"
)

const HistoryCap = 50

// Record is one completed transcript kept in history.
type Record struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is an immutable copy of the sink state. History is newest-first.
type Snapshot struct {
	Status     Status   `json:"status"`
	FormatMode string   `json:"format_mode"`
	History    []Record `json:"history"`
}

// Kind tells an observer what changed.
type Kind int

const (
	StatusChanged Kind = iota
	TranscriptAdded
	ModeChanged
)

type Event struct {
	Kind     Kind
	Record   Record // set for TranscriptAdded
	Snapshot Snapshot
}

// Observer receives events on its own goroutine, in order.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

const observerQueue = 16

type subscription struct {
	obs  Observer
	ch   chan Event
	done chan struct{}
}

// Sink owns the current status, format mode and bounded history. Notify
// calls never block on observers: each observer has its own queue and a
// full queue drops its oldest pending event.
type Sink struct {
	mu      sync.Mutex
	status  Status
	mode    string
	history []Record
	subs    []*subscription
	closed  bool
	now     func() time.Time
}

func NewSink(mode string) *Sink {
	return &Sink{status: Idle, mode: mode, now: time.Now}
}

// Subscribe registers obs and returns a function that removes it.
func (s *Sink) Subscribe(obs Observer) (unsubscribe func()) {
	sub := &subscription{
		obs:  obs,
		ch:   make(chan Event, observerQueue),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(sub.done)
		return func() {}
	}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	go func() {
		defer close(sub.done)
		for ev := range sub.ch {
			sub.obs.Observe(ev)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			for i, x := range s.subs {
				if x == sub {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					close(sub.ch)
					break
				}
			}
			s.mu.Unlock()
			<-sub.done
		})
	}
}

func (s *Sink) Notify(st Status) {
	s.mu.Lock()
	s.status = st
	s.publishLocked(Event{Kind: StatusChanged, Snapshot: s.snapshotLocked()})
	s.mu.Unlock()
}

func (s *Sink) NotifyTranscript(text string) Record {
	s.mu.Lock()
	rec := Record{Text: text, Timestamp: s.now()}
	s.history = append([]Record{rec}, s.history...)
	if len(s.history) > HistoryCap {
		s.history = s.history[:HistoryCap]
	}
	s.publishLocked(Event{Kind: TranscriptAdded, Record: rec, Snapshot: s.snapshotLocked()})
	s.mu.Unlock()
	return rec
}

func (s *Sink) SetFormatMode(mode string) {
	s.mu.Lock()
	if s.mode != mode {
		s.mode = mode
		s.publishLocked(Event{Kind: ModeChanged, Snapshot: s.snapshotLocked()})
	}
	s.mu.Unlock()
}

func (s *Sink) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Sink) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Last returns the newest history record.
func (s *Sink) Last() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return Record{}, false
	}
	return s.history[0], true
}

// Close stops every observer after it drains its queue.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	for _, sub := range subs {
		close(sub.ch)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		<-sub.done
	}
}

func (s *Sink) snapshotLocked() Snapshot {
	return Snapshot{
		Status:     s.status,
		FormatMode: s.mode,
		History:    append([]Record(nil), s.history...),
	}
}

func (s *Sink) publishLocked(ev Event) {
	for _, sub := range s.subs {
		for {
			select {
			case sub.ch <- ev:
			default:
				select {
				case <-sub.ch:
				default:
				}
				continue
			}
			break
		}
	}
}
