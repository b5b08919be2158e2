package transcriber

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"google.golang.org/api/option"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"

	"dictate/audio"
)

// recognizer is the slice of the Speech client this package calls.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	Close() error
}

type speechClient struct{ c *speech.Client }

func (s speechClient) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return s.c.Recognize(ctx, req)
}

func (s speechClient) Close() error { return s.c.Close() }

// Google sends raw LINEAR16 audio to Cloud Speech-to-Text synchronous
// recognition. Credentials come from CredentialsFile or the ambient
// GOOGLE_APPLICATION_CREDENTIALS.
type Google struct {
	lang  string
	model string

	mu     sync.Mutex
	client recognizer
	dial   func(ctx context.Context) (recognizer, error)
}

func NewGoogle(_ context.Context, cfg Config) (*Google, error) {
	lang := cfg.Language
	if lang == "" {
		lang = "en-US"
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return &Google{
		lang:  lang,
		model: cfg.Model,
		dial: func(ctx context.Context) (recognizer, error) {
			c, err := speech.NewClient(ctx, opts...)
			if err != nil {
				return nil, err
			}
			return speechClient{c}, nil
		},
	}, nil
}

func (g *Google) Name() string { return "google" }

func (g *Google) connect(ctx context.Context) (recognizer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	c, err := g.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("google speech client: %w", err)
	}
	g.client = c
	return c, nil
}

func linear16(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func (g *Google) Transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	c, err := g.connect(ctx)
	if err != nil {
		return "", err
	}
	resp, err := c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            audio.SampleRate,
			LanguageCode:               g.lang,
			Model:                      g.model,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: linear16(buf.PCM16())},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google recognize: %w", err)
	}

	var parts []string
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

func (g *Google) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}
