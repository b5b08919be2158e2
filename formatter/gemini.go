package formatter

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// Gemini streams through the Gemini API. The client is created lazily on
// first use so startup does not dial out.
type Gemini struct {
	apiKey string
	model  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGemini(cfg Config) *Gemini {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{apiKey: cfg.APIKey, model: model}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) init(ctx context.Context) error {
	g.once.Do(func() {
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return g.initErr
}

func (g *Gemini) Format(ctx context.Context, text string, mode Mode, onToken TokenFunc) (string, error) {
	if err := g.init(ctx); err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(Prompt(mode), genai.RoleUser),
		Temperature:       genai.Ptr[float32](DefaultTemperature),
		MaxOutputTokens:   DefaultMaxTokens,
	}

	var out []byte
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(text), cfg) {
		if err != nil {
			return string(out), fmt.Errorf("gemini stream: %w", err)
		}
		tok := resp.Text()
		if tok == "" {
			continue
		}
		out = append(out, tok...)
		if onToken != nil {
			onToken(tok)
		}
	}
	return string(out), nil
}
