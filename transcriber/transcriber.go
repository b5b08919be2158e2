package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"dictate/audio"
)

var ErrMissingKey = errors.New("missing API key")

// Transcriber turns one recorded buffer into plain text. A silent buffer
// yields an empty string, not an error.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, buf audio.Buffer) (string, error)
}

// Warmer is implemented by transcribers that can open their connection
// before audio is ready.
type Warmer interface {
	Warm()
}

type Config struct {
	Provider        string
	APIKey          string
	Language        string
	Model           string
	BaseURL         string
	CredentialsFile string
	Timeout         time.Duration
}

const defaultTimeout = 30 * time.Second

// New builds the transcriber named by cfg.Provider. An empty provider
// selects openai.
func New(ctx context.Context, cfg Config) (Transcriber, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	switch cfg.Provider {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: %w", ErrMissingKey)
		}
		return NewOpenAI(cfg), nil
	case "groq":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("groq: %w", ErrMissingKey)
		}
		return NewGroq(cfg), nil
	case "deepgram":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("deepgram: %w", ErrMissingKey)
		}
		return NewDeepgram(cfg), nil
	case "google":
		return NewGoogle(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown transcriber %q", cfg.Provider)
	}
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// apiError formats a non-2xx response, truncating long bodies.
func apiError(provider string, status int, body []byte) error {
	const limit = 300
	if len(body) > limit {
		body = append(body[:limit:limit], "..."...)
	}
	return fmt.Errorf("%s API error %d: %s", provider, status, body)
}
