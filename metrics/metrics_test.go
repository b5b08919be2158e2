package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"dictate/dictation"
	"dictate/status"
)

func TestRecordOutcome(t *testing.T) {
	m := New()
	m.RecordOutcome(dictation.Outcome{Kind: dictation.Completed, Tokens: 4, Transcribe: time.Second, Format: 200 * time.Millisecond, Total: 2 * time.Second})
	m.RecordOutcome(dictation.Outcome{Kind: dictation.Discarded})
	m.RecordOutcome(dictation.Outcome{Kind: dictation.Completed, Tokens: 1})

	if got := testutil.ToFloat64(m.Cycles.WithLabelValues("completed")); got != 2 {
		t.Errorf("completed = %v", got)
	}
	if got := testutil.ToFloat64(m.Cycles.WithLabelValues("discarded")); got != 1 {
		t.Errorf("discarded = %v", got)
	}
	if got := testutil.ToFloat64(m.Tokens); got != 5 {
		t.Errorf("tokens = %v", got)
	}
	if n := testutil.CollectAndCount(m.StageSeconds); n != 4 {
		t.Errorf("stage series = %d, want 4", n)
	}
}

func TestDropAndStatus(t *testing.T) {
	m := New()
	m.RecordDrop(status.Formatting)
	m.RecordDrop(status.Transcribing)
	if got := testutil.ToFloat64(m.GesturesDropped); got != 2 {
		t.Errorf("dropped = %v", got)
	}

	m.Observe(status.Event{Kind: status.StatusChanged, Snapshot: status.Snapshot{Status: status.Recording}})
	if testutil.ToFloat64(m.Status.WithLabelValues("recording")) != 1 || testutil.ToFloat64(m.Status.WithLabelValues("idle")) != 0 {
		t.Error("status gauge not updated")
	}
	m.Observe(status.Event{Kind: status.TranscriptAdded, Snapshot: status.Snapshot{Status: status.Idle}})
	if testutil.ToFloat64(m.Status.WithLabelValues("recording")) != 1 {
		t.Error("non-status events must not move the gauge")
	}
}

func TestRecordPublish(t *testing.T) {
	m := New()
	m.RecordPublish("t", nil, 0.01)
	m.RecordPublish("t", errors.New("broker down"), 0.5)
	if testutil.ToFloat64(m.PublishTotal.WithLabelValues("t")) != 2 || testutil.ToFloat64(m.PublishErrors.WithLabelValues("t")) != 1 {
		t.Error("publish counters wrong")
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordDrop(status.Idle)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "dictate_gestures_dropped_total 1") {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
}
