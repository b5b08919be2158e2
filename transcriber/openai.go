package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"dictate/audio"
	"dictate/encoder"
	"dictate/log"
	"dictate/nettrace"
)

// Whisper uploads the recording to an OpenAI-compatible
// /audio/transcriptions endpoint.
type Whisper struct {
	name    string
	client  *nettrace.Client
	apiURL  string
	apiKey  string
	model   string
	lang    string
	format  encoder.Format
	verbose bool
}

func NewOpenAI(cfg Config) *Whisper {
	return newWhisper("openai", "https://api.openai.com/v1", "whisper-1", encoder.WAV, false, cfg)
}

// NewGroq uploads FLAC, which keeps requests small on slow uplinks.
func NewGroq(cfg Config) *Whisper {
	return newWhisper("groq", "https://api.groq.com/openai/v1", "whisper-large-v3-turbo", encoder.FLAC, true, cfg)
}

func newWhisper(name, base, model string, format encoder.Format, verbose bool, cfg Config) *Whisper {
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Model != "" {
		model = cfg.Model
	}
	return &Whisper{
		name:    name,
		client:  nettrace.New(base+"/models", cfg.Timeout),
		apiURL:  base + "/audio/transcriptions",
		apiKey:  cfg.APIKey,
		model:   model,
		lang:    cfg.Language,
		format:  format,
		verbose: verbose,
	}
}

func (w *Whisper) Name() string { return w.name }

func (w *Whisper) Warm() { w.client.Warm() }

type whisperResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

// noSpeechThreshold drops transcripts the model itself flags as silence.
const noSpeechThreshold = 0.9

func (w *Whisper) Transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	enc, err := encoder.Encode(w.format, buf.PCM16())
	if err != nil {
		return "", fmt.Errorf("%s encode: %w", w.name, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "audio."+string(w.format))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(enc.Data); err != nil {
		return "", err
	}
	mw.WriteField("model", w.model)
	if w.verbose {
		mw.WriteField("response_format", "verbose_json")
	} else {
		mw.WriteField("response_format", "json")
	}
	if w.lang != "" {
		mw.WriteField("language", w.lang)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.apiURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", w.name, err)
	}
	resp.Metrics.Log(w.name + "_transcribe")

	if resp.StatusCode != http.StatusOK {
		return "", apiError(w.name, resp.StatusCode, resp.Body)
	}

	var wr whisperResponse
	if err := json.Unmarshal(resp.Body, &wr); err != nil {
		return "", fmt.Errorf("%s response parse error: %w", w.name, err)
	}

	if len(wr.Segments) > 0 {
		silent := true
		for _, seg := range wr.Segments {
			if seg.NoSpeechProb < noSpeechThreshold {
				silent = false
				break
			}
		}
		if silent {
			log.Info("transcript dropped: all segments flagged as no speech")
			return "", nil
		}
	}

	log.Debugf("%s rate limit %s/%s", w.name,
		firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests"),
		firstNonEmpty(resp.Header, "x-ratelimit-limit-requests"))

	return strings.TrimSpace(wr.Text), nil
}
