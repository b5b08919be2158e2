package formatter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Mode selects the instruction set and whether line breaks are allowed.
type Mode string

const (
	SingleLine Mode = "single-line"
	Document   Mode = "document"
)

var ErrUnknownMode = errors.New("unknown format mode")

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case SingleLine, Document:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q (use single-line or document)", ErrUnknownMode, s)
}

// Next returns the other mode, used by toggles.
func (m Mode) Next() Mode {
	if m == Document {
		return SingleLine
	}
	return Document
}

// TokenFunc receives each incremental chunk in arrival order.
type TokenFunc func(token string)

// Formatter rewrites a raw transcript. When onToken is non-nil it is called
// for every chunk and the chunks concatenate to the returned text.
type Formatter interface {
	Name() string
	Format(ctx context.Context, text string, mode Mode, onToken TokenFunc) (string, error)
}

const singleLinePrompt = `You are a dictation cleanup assistant. Rewrite the user's transcribed speech:
- fix grammar and spelling
- add punctuation and capitalization
- keep everything on a single line with no line breaks
- preserve the original meaning and wording as much as possible
- do not add commentary, explanations or quotes
Return only the cleaned text.`

const documentPrompt = `You are a dictation cleanup assistant. Rewrite the user's transcribed speech:
- fix grammar and spelling
- add punctuation and capitalization
- split into paragraphs where the topic changes
- use bullet points when the speaker lists items
- preserve the original meaning and wording as much as possible
- do not add commentary, explanations or quotes
Return only the cleaned text.`

func Prompt(mode Mode) string {
	if mode == Document {
		return documentPrompt
	}
	return singleLinePrompt
}

const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 2000
	defaultTimeout     = 60 * time.Second
)

type Config struct {
	Provider string // openai, groq, gemini, none
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

func New(cfg Config) (Formatter, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAI(cfg), nil
	case "groq":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.groq.com/openai/v1"
		}
		if cfg.Model == "" {
			cfg.Model = "llama-3.1-8b-instant"
		}
		f := NewOpenAI(cfg)
		f.name = "groq"
		return f, nil
	case "gemini":
		return NewGemini(cfg), nil
	case "none":
		return Passthrough{}, nil
	}
	return nil, fmt.Errorf("unknown formatter %q", cfg.Provider)
}

// Passthrough returns the text unchanged as a single token.
type Passthrough struct{}

func (Passthrough) Name() string { return "none" }

func (Passthrough) Format(_ context.Context, text string, _ Mode, onToken TokenFunc) (string, error) {
	if onToken != nil && text != "" {
		onToken(text)
	}
	return text, nil
}
