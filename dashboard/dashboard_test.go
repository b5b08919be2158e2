package dashboard

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"dictate/formatter"
	"dictate/status"
)

type fakeModes struct {
	mu   sync.Mutex
	mode formatter.Mode
	sink *status.Sink
}

func (f *fakeModes) Mode() formatter.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

func (f *fakeModes) SetMode(m formatter.Mode) error {
	f.mu.Lock()
	f.mode = m
	f.mu.Unlock()
	f.sink.SetFormatMode(string(m))
	return nil
}

type fixture struct {
	sink   *status.Sink
	modes  *fakeModes
	server *Server
	http   *httptest.Server
	copied []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sink := status.NewSink(string(formatter.SingleLine))
	f := &fixture{sink: sink, modes: &fakeModes{mode: formatter.SingleLine, sink: sink}}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("dictate_cycles_total 0\n"))
	})
	f.server = New(sink, f.modes, metrics)
	f.server.copy = func(s string) error {
		f.copied = append(f.copied, s)
		return nil
	}
	f.http = httptest.NewServer(f.server.Handler())
	t.Cleanup(func() {
		f.server.Close()
		f.http.Close()
		sink.Close()
	})
	return f
}

func (f *fixture) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(f.http.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func (f *fixture) post(t *testing.T, path, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(f.http.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(out)
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.http.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, pred func(status.Snapshot) bool) status.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var snap status.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read snapshot: %v", err)
		}
		if pred(snap) {
			return snap
		}
	}
}

func TestHealthzAndStatic(t *testing.T) {
	f := newFixture(t)
	if code, body := f.get(t, "/healthz"); code != 200 || body != "ok" {
		t.Errorf("healthz = %d %q", code, body)
	}
	if code, body := f.get(t, "/"); code != 200 || !strings.Contains(body, "<title>dictate</title>") {
		t.Errorf("index = %d", code)
	}
	if code, body := f.get(t, "/app.js"); code != 200 || !strings.Contains(body, "set_mode") {
		t.Errorf("app.js = %d", code)
	}
	if code, body := f.get(t, "/metrics"); code != 200 || !strings.Contains(body, "dictate_cycles_total") {
		t.Errorf("metrics = %d %q", code, body)
	}
}

func TestState(t *testing.T) {
	f := newFixture(t)
	f.sink.Notify(status.Recording)
	f.sink.NotifyTranscript("Hello, world!")

	code, body := f.get(t, "/api/state")
	if code != 200 {
		t.Fatalf("state = %d", code)
	}
	var snap status.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Status != status.Recording || snap.FormatMode != "single-line" {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(snap.History) != 1 || snap.History[0].Text != "Hello, world!" {
		t.Errorf("history = %+v", snap.History)
	}
}

func TestMode(t *testing.T) {
	f := newFixture(t)
	code, body := f.post(t, "/api/mode", `{"mode":"document"}`)
	if code != 200 || !strings.Contains(body, `"document"`) {
		t.Fatalf("mode = %d %q", code, body)
	}
	if f.modes.Mode() != formatter.Document {
		t.Errorf("mode not applied: %s", f.modes.Mode())
	}
	for _, bad := range []string{`{"mode":"poem"}`, `not json`} {
		if code, _ := f.post(t, "/api/mode", bad); code != http.StatusBadRequest {
			t.Errorf("%s: code = %d, want 400", bad, code)
		}
	}
	if f.modes.Mode() != formatter.Document {
		t.Error("invalid request changed the mode")
	}
}

func TestCopyLast(t *testing.T) {
	f := newFixture(t)
	if code, _ := f.post(t, "/api/copy-last", ""); code != http.StatusNotFound {
		t.Errorf("empty history: code = %d", code)
	}
	f.sink.NotifyTranscript("first")
	f.sink.NotifyTranscript("second")
	if code, _ := f.post(t, "/api/copy-last", ""); code != 200 {
		t.Fatalf("copy-last = %d", code)
	}
	if len(f.copied) != 1 || f.copied[0] != "second" {
		t.Errorf("copied = %v", f.copied)
	}

	f.server.copy = func(string) error { return errors.New("no clipboard") }
	if code, _ := f.post(t, "/api/copy-last", ""); code != http.StatusInternalServerError {
		t.Errorf("clipboard failure: code = %d", code)
	}
}

func TestWebSocketPush(t *testing.T) {
	f := newFixture(t)
	f.sink.NotifyTranscript("earlier")
	conn := f.dial(t)

	first := readUntil(t, conn, func(status.Snapshot) bool { return true })
	if len(first.History) != 1 || first.History[0].Text != "earlier" {
		t.Fatalf("initial snapshot = %+v", first)
	}

	f.sink.Notify(status.Recording)
	readUntil(t, conn, func(s status.Snapshot) bool { return s.Status == status.Recording })
	f.sink.Notify(status.Idle)
	readUntil(t, conn, func(s status.Snapshot) bool { return s.Status == status.Idle })
}

func TestWebSocketSetMode(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readUntil(t, conn, func(status.Snapshot) bool { return true })

	if err := conn.WriteJSON(clientMessage{Type: "set_mode", Mode: "document"}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, func(s status.Snapshot) bool { return s.FormatMode == "document" })
	if f.modes.Mode() != formatter.Document {
		t.Errorf("mode = %s", f.modes.Mode())
	}

	// invalid mode is ignored and the connection stays open
	_ = conn.WriteJSON(clientMessage{Type: "set_mode", Mode: "poem"})
	_ = conn.WriteJSON(clientMessage{Type: "set_mode", Mode: "single-line"})
	readUntil(t, conn, func(s status.Snapshot) bool { return s.FormatMode == "single-line" })
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	f := newFixture(t)
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.http.URL, "http")+"/ws", header)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resp = %v", resp)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readUntil(t, conn, func(status.Snapshot) bool { return true })
	if n := f.server.hub.count(); n != 1 {
		t.Fatalf("clients = %d", n)
	}
	conn.Close()
	deadline := time.After(2 * time.Second)
	for f.server.hub.count() != 0 {
		select {
		case <-deadline:
			t.Fatal("client never unregistered")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// A change broadcast while the first snapshot is being read must still
// reach the new client.
func TestRegisterSeesConcurrentChange(t *testing.T) {
	h := newHub()
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := h.register(conn, func() status.Snapshot {
			h.broadcast(status.Snapshot{Status: status.Recording})
			return status.Snapshot{Status: status.Idle}
		})
		defer h.unregister(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(func() {
		h.closeAll()
		srv.Close()
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readUntil(t, conn, func(s status.Snapshot) bool { return s.Status == status.Recording })
	readUntil(t, conn, func(s status.Snapshot) bool { return s.Status == status.Idle })
}
