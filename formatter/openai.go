package formatter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dictate/nettrace"
)

// OpenAI streams a chat completion from any OpenAI-compatible endpoint.
type OpenAI struct {
	name    string
	client  *nettrace.Client
	baseURL string
	apiKey  string
	model   string
}

func NewOpenAI(cfg Config) *OpenAI {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{
		name:    "openai",
		client:  nettrace.New(base+"/models", cfg.Timeout),
		baseURL: base,
		apiKey:  cfg.APIKey,
		model:   model,
	}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Warm() { o.client.Warm() }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// chatChunk is one streamed delta.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (o *OpenAI) Format(ctx context.Context, text string, mode Mode, onToken TokenFunc) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: Prompt(mode)},
			{Role: "user", Content: text},
		},
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Stream:      true,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, metrics, err := o.client.Stream(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%s API error %d: %s", o.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	out, err := readChatStream(resp.Body, onToken)
	metrics().Log(o.name + "_format")
	return out, err
}

// readChatStream parses "data: {json}" lines until [DONE] or EOF.
func readChatStream(r io.Reader, onToken TokenFunc) (string, error) {
	var full strings.Builder
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return full.String(), err
		}

		line = strings.TrimSpace(line)
		if data, ok := strings.CutPrefix(line, "data:"); ok {
			data = strings.TrimSpace(data)
			if data == "[DONE]" {
				return full.String(), nil
			}
			var chunk chatChunk
			if jerr := json.Unmarshal([]byte(data), &chunk); jerr != nil {
				return full.String(), fmt.Errorf("stream chunk parse error: %w", jerr)
			}
			if chunk.Error != nil {
				return full.String(), fmt.Errorf("stream error: %s", chunk.Error.Message)
			}
			if len(chunk.Choices) > 0 {
				if tok := chunk.Choices[0].Delta.Content; tok != "" {
					full.WriteString(tok)
					if onToken != nil {
						onToken(tok)
					}
				}
			}
		}

		if err == io.EOF {
			return full.String(), nil
		}
	}
}
