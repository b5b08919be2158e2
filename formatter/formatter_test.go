package formatter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestQuick(t *testing.T) {
	for _, tt := range []struct {
		in, want string
	}{
		{"hello world how are you", "Hello world how are you."},
		{"is it done?", "Is it done?"},
		{"wow!", "Wow!"},
		{"already.", "Already."},
		{"  padded  ", "Padded."},
		{"élan vital", "Élan vital."},
		{"", ""},
		{"   ", ""},
	} {
		if got := Quick(tt.in); got != tt.want {
			t.Errorf("Quick(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWordCount(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want int
	}{
		{"hello world how are you", 5},
		{"  spaced\tout\nwords ", 3},
		{"", 0},
	} {
		if got := WordCount(tt.in); got != tt.want {
			t.Errorf("WordCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLineSanitizerTokens(t *testing.T) {
	for _, tt := range []struct {
		name string
		in   []string
		want []string
	}{
		{"trailing newline", []string{"Hello", ", world", "!\n"}, []string{"Hello", ", world", "! "}},
		{"crlf", []string{"a\r\nb"}, []string{"a b"}},
		{"lone cr", []string{"a\rb"}, []string{"a b"}},
		{"crlf split across tokens", []string{"a\r", "\nb"}, []string{"a ", "b"}},
		{"paragraph break", []string{"one.\n\ntwo."}, []string{"one. two."}},
		{"space run across tokens", []string{"a ", " ", "  b"}, []string{"a ", "", "b"}},
		{"newline after space", []string{"end. ", "\nNext"}, []string{"end. ", "Next"}},
		{"doubled spaces inside", []string{"a   b"}, []string{"a b"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var s LineSanitizer
			for i, tok := range tt.in {
				if got := s.Token(tok); got != tt.want[i] {
					t.Errorf("token %d: got %q, want %q", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestFlattenLine(t *testing.T) {
	for _, tt := range []struct {
		in, want string
	}{
		{"Hello, world!\n", "Hello, world!"},
		{"- one\r\n- two\r\n", "- one - two"},
		{"\n\nlead", "lead"},
		{"a  \n  b", "a b"},
	} {
		got := FlattenLine(tt.in)
		if got != tt.want {
			t.Errorf("FlattenLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if strings.ContainsAny(got, "\r\n") || strings.Contains(got, "  ") {
			t.Errorf("FlattenLine(%q) left breaks or doubled spaces: %q", tt.in, got)
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"single-line", "document"} {
		m, err := ParseMode(s)
		if err != nil || string(m) != s {
			t.Errorf("ParseMode(%q) = %q, %v", s, m, err)
		}
	}
	if _, err := ParseMode("markdown"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("err = %v, want ErrUnknownMode", err)
	}
	if SingleLine.Next() != Document || Document.Next() != SingleLine {
		t.Error("Next does not toggle")
	}
}

func TestPromptsDiffer(t *testing.T) {
	if !strings.Contains(Prompt(SingleLine), "single line") {
		t.Error("single-line prompt should forbid line breaks")
	}
	if !strings.Contains(Prompt(Document), "paragraphs") {
		t.Error("document prompt should allow paragraphs")
	}
}

func sseServer(t *testing.T, check func(chatRequest), lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			http.Error(w, "bad auth "+got, http.StatusUnauthorized)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if check != nil {
			check(req)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		for _, l := range lines {
			fmt.Fprintf(w, "%s\n\n", l)
			fl.Flush()
		}
	}))
}

func deltaLine(tok string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"delta": map[string]string{"content": tok}}},
	})
	return "data: " + string(b)
}

func TestOpenAIStreamsTokens(t *testing.T) {
	reqs := make(chan chatRequest, 1)
	srv := sseServer(t, func(r chatRequest) { reqs <- r },
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		deltaLine("Hello"),
		deltaLine(", world"),
		deltaLine("!"),
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		"data: [DONE]",
	)
	defer srv.Close()

	f := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL})
	var toks []string
	out, err := f.Format(context.Background(), "hello world", Document, func(tok string) { toks = append(toks, tok) })
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hello, world!" {
		t.Errorf("out = %q", out)
	}
	if strings.Join(toks, "") != out || len(toks) != 3 {
		t.Errorf("tokens = %q", toks)
	}
	gotReq := <-reqs
	if !gotReq.Stream || gotReq.Model != "gpt-4o-mini" || gotReq.Temperature != DefaultTemperature || gotReq.MaxTokens != DefaultMaxTokens {
		t.Errorf("request = %+v", gotReq)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Content != Prompt(Document) || gotReq.Messages[1].Content != "hello world" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestOpenAIStreamWithoutDone(t *testing.T) {
	srv := sseServer(t, nil, deltaLine("a"), deltaLine("b"))
	defer srv.Close()

	out, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL}).Format(context.Background(), "x", SingleLine, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != "ab" {
		t.Errorf("out = %q", out)
	}
}

func TestOpenAIErrors(t *testing.T) {
	srv := sseServer(t, nil, deltaLine("partial"), `data: {"error":{"message":"overloaded"}}`)
	defer srv.Close()

	var toks []string
	out, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: srv.URL}).Format(context.Background(), "x", SingleLine, func(s string) { toks = append(toks, s) })
	if err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("err = %v", err)
	}
	if out != "partial" || len(toks) != 1 {
		t.Errorf("out = %q toks = %q", out, toks)
	}

	_, err = NewOpenAI(Config{APIKey: "wrong", BaseURL: srv.URL}).Format(context.Background(), "x", SingleLine, nil)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v, want 401", err)
	}
}

func TestNew(t *testing.T) {
	for _, tt := range []struct {
		provider string
		name     string
	}{
		{"", "openai"},
		{"openai", "openai"},
		{"groq", "groq"},
		{"gemini", "gemini"},
		{"none", "none"},
	} {
		f, err := New(Config{Provider: tt.provider, APIKey: "k"})
		if err != nil {
			t.Fatalf("New(%q): %v", tt.provider, err)
		}
		if f.Name() != tt.name {
			t.Errorf("New(%q).Name() = %q", tt.provider, f.Name())
		}
	}
	if _, err := New(Config{Provider: "bogus"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestPassthrough(t *testing.T) {
	var toks []string
	out, err := Passthrough{}.Format(context.Background(), "as is\n", Document, func(s string) { toks = append(toks, s) })
	if err != nil || out != "as is\n" || len(toks) != 1 {
		t.Errorf("out = %q toks = %q err = %v", out, toks, err)
	}
}
