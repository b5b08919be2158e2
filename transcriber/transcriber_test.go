package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"

	"dictate/audio"
)

func testBuffer(n int) audio.Buffer {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i%200-100) / 400
	}
	return audio.Buffer{Samples: s, SampleRate: audio.SampleRate}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func TestAPIErrorTruncates(t *testing.T) {
	err := apiError("openai", 500, []byte(strings.Repeat("x", 1000)))
	if !strings.Contains(err.Error(), "500") || len(err.Error()) > 400 {
		t.Errorf("err = %q", err)
	}
}

type upload struct {
	model, format, lang, auth string
	file                      []byte
}

func whisperServer(t *testing.T, reply string, status int) (*httptest.Server, chan upload) {
	t.Helper()
	got := make(chan upload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		got <- upload{
			model:  r.FormValue("model"),
			format: r.FormValue("response_format"),
			lang:   r.FormValue("language"),
			auth:   r.Header.Get("Authorization"),
			file:   data,
		}
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestWhisperUploads(t *testing.T) {
	for _, tt := range []struct {
		name   string
		new    func(Config) *Whisper
		model  string
		format string
		magic  string
	}{
		{"openai", NewOpenAI, "whisper-1", "json", "RIFF"},
		{"groq", NewGroq, "whisper-large-v3-turbo", "verbose_json", "fLaC"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := whisperServer(t, `{"text":"  hello world  "}`, http.StatusOK)
			w := tt.new(Config{APIKey: "k", BaseURL: srv.URL, Language: "en"})

			text, err := w.Transcribe(context.Background(), testBuffer(4000))
			if err != nil {
				t.Fatal(err)
			}
			if text != "hello world" {
				t.Errorf("text = %q", text)
			}
			u := <-got
			if u.model != tt.model || u.format != tt.format || u.lang != "en" || u.auth != "Bearer k" {
				t.Errorf("upload = %+v", u)
			}
			if len(u.file) < 4 || string(u.file[:4]) != tt.magic {
				t.Errorf("file magic = %q", u.file[:4])
			}
		})
	}
}

func TestWhisperNoSpeech(t *testing.T) {
	srv, _ := whisperServer(t, `{"text":"Thank you.","segments":[{"no_speech_prob":0.97},{"no_speech_prob":0.95}]}`, http.StatusOK)
	text, err := NewGroq(Config{APIKey: "k", BaseURL: srv.URL}).Transcribe(context.Background(), testBuffer(2000))
	if err != nil || text != "" {
		t.Errorf("text = %q, err = %v", text, err)
	}

	srv, _ = whisperServer(t, `{"text":"real words","segments":[{"no_speech_prob":0.97},{"no_speech_prob":0.1}]}`, http.StatusOK)
	text, _ = NewGroq(Config{APIKey: "k", BaseURL: srv.URL}).Transcribe(context.Background(), testBuffer(2000))
	if text != "real words" {
		t.Errorf("text = %q", text)
	}
}

func TestWhisperErrorStatus(t *testing.T) {
	srv, _ := whisperServer(t, `{"error":"quota"}`, http.StatusTooManyRequests)
	_, err := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL}).Transcribe(context.Background(), testBuffer(2000))
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "quota") {
		t.Errorf("err = %v", err)
	}
}

func TestDeepgram(t *testing.T) {
	reqs := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		reqs <- r
		bodies <- b
		io.WriteString(w, `{"results":{"channels":[{"alternatives":[{"transcript":"hi there","confidence":0.98}]}]}}`)
	}))
	defer srv.Close()

	d := NewDeepgram(Config{APIKey: "dg", BaseURL: srv.URL, Language: "en"})
	text, err := d.Transcribe(context.Background(), testBuffer(3200))
	if err != nil {
		t.Fatal(err)
	}
	if text != "hi there" {
		t.Errorf("text = %q", text)
	}
	r := <-reqs
	if r.URL.Path != "/v1/listen" || r.URL.Query().Get("model") != "nova-3" || r.URL.Query().Get("language") != "en" {
		t.Errorf("url = %s", r.URL)
	}
	if r.Header.Get("Authorization") != "Token dg" || r.Header.Get("Content-Type") != "audio/wav" {
		t.Errorf("headers = %v", r.Header)
	}
	if b := <-bodies; string(b[:4]) != "RIFF" {
		t.Errorf("body magic = %q", b[:4])
	}
}

func TestDeepgramEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results":{"channels":[]}}`)
	}))
	defer srv.Close()

	text, err := NewDeepgram(Config{APIKey: "dg", BaseURL: srv.URL}).Transcribe(context.Background(), testBuffer(2000))
	if err != nil || text != "" {
		t.Errorf("text = %q, err = %v", text, err)
	}
}

type fakeRecognizer struct {
	req    *speechpb.RecognizeRequest
	resp   *speechpb.RecognizeResponse
	err    error
	closed bool
}

func (f *fakeRecognizer) Recognize(_ context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeRecognizer) Close() error {
	f.closed = true
	return nil
}

func TestGoogle(t *testing.T) {
	rec := &fakeRecognizer{resp: &speechpb.RecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "first part"}}},
			{},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " second "}}},
		},
	}}
	g, err := NewGoogle(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	dials := 0
	g.dial = func(context.Context) (recognizer, error) {
		dials++
		return rec, nil
	}

	buf := testBuffer(1600)
	for range 2 {
		text, err := g.Transcribe(context.Background(), buf)
		if err != nil {
			t.Fatal(err)
		}
		if text != "first part second" {
			t.Errorf("text = %q", text)
		}
	}
	if dials != 1 {
		t.Errorf("dialed %d times", dials)
	}
	cfg := rec.req.GetConfig()
	if cfg.GetEncoding() != speechpb.RecognitionConfig_LINEAR16 || cfg.GetSampleRateHertz() != audio.SampleRate || cfg.GetLanguageCode() != "en-US" {
		t.Errorf("config = %v", cfg)
	}
	if n := len(rec.req.GetAudio().GetContent()); n != 3200 {
		t.Errorf("content = %d bytes, want 3200", n)
	}

	if err := g.Close(); err != nil || !rec.closed {
		t.Errorf("Close err = %v closed = %v", err, rec.closed)
	}
}

func TestGoogleDialError(t *testing.T) {
	g, _ := NewGoogle(context.Background(), Config{Language: "de-DE"})
	g.dial = func(context.Context) (recognizer, error) { return nil, errors.New("no credentials") }
	if _, err := g.Transcribe(context.Background(), testBuffer(1600)); err == nil || !strings.Contains(err.Error(), "no credentials") {
		t.Errorf("err = %v", err)
	}
}

func TestNew(t *testing.T) {
	for _, provider := range []string{"", "openai", "groq", "deepgram", "google"} {
		tr, err := New(context.Background(), Config{Provider: provider, APIKey: "k"})
		if err != nil {
			t.Fatalf("New(%q): %v", provider, err)
		}
		want := provider
		if want == "" {
			want = "openai"
		}
		if tr.Name() != want {
			t.Errorf("New(%q).Name() = %q", provider, tr.Name())
		}
	}
	for _, provider := range []string{"openai", "groq", "deepgram"} {
		if _, err := New(context.Background(), Config{Provider: provider}); !errors.Is(err, ErrMissingKey) {
			t.Errorf("New(%q) without key err = %v", provider, err)
		}
	}
	if _, err := New(context.Background(), Config{Provider: "bogus"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFake(t *testing.T) {
	f := NewFake("text", nil)
	if got, _ := f.Transcribe(context.Background(), testBuffer(10)); got != "text" || f.Calls() != 1 {
		t.Errorf("got %q calls %d", got, f.Calls())
	}
	f.Err = fmt.Errorf("boom")
	if _, err := f.Transcribe(context.Background(), testBuffer(10)); err == nil {
		t.Error("expected error")
	}
}
