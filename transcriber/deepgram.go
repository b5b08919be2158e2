package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"dictate/audio"
	"dictate/encoder"
	"dictate/log"
	"dictate/nettrace"
)

const deepgramBaseURL = "https://api.deepgram.com"

// Deepgram posts the WAV body straight to the prerecorded /v1/listen API.
type Deepgram struct {
	client *nettrace.Client
	apiURL string
	apiKey string
}

func NewDeepgram(cfg Config) *Deepgram {
	base := deepgramBaseURL
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = "nova-3"
	}
	q := url.Values{}
	q.Set("model", model)
	q.Set("smart_format", "true")
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	} else {
		q.Set("detect_language", "true")
	}
	return &Deepgram{
		client: nettrace.New(base, cfg.Timeout),
		apiURL: base + "/v1/listen?" + q.Encode(),
		apiKey: cfg.APIKey,
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) Warm() { d.client.Warm() }

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) Transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	wav, err := encoder.EncodeWAV(buf.PCM16())
	if err != nil {
		return "", fmt.Errorf("deepgram encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL, bytes.NewReader(wav))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", encoder.WAV.ContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram request: %w", err)
	}
	resp.Metrics.Log("deepgram_transcribe")

	if resp.StatusCode != http.StatusOK {
		return "", apiError("deepgram", resp.StatusCode, resp.Body)
	}

	var dr deepgramResponse
	if err := json.Unmarshal(resp.Body, &dr); err != nil {
		return "", fmt.Errorf("deepgram response parse error: %w", err)
	}

	log.Debugf("deepgram rate limit %s/%s",
		firstNonEmpty(resp.Header, "x-dg-ratelimit-remaining", "x-ratelimit-remaining", "ratelimit-remaining"),
		firstNonEmpty(resp.Header, "x-dg-ratelimit-limit", "x-ratelimit-limit", "ratelimit-limit"))

	if len(dr.Results.Channels) == 0 || len(dr.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return strings.TrimSpace(dr.Results.Channels[0].Alternatives[0].Transcript), nil
}
