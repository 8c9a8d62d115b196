// Package transcribe turns recordings into text using a remote
// speech-to-text API.
//
// Supported backends:
//   - gladia: Gladia v2 pre-recorded transcription (default)
//   - openai: OpenAI audio transcriptions (whisper-1, gpt-4o-transcribe)
//
// Recordings longer than the per-request limit are split into segments by the
// Coordinator and reassembled in order.
package transcribe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chaz8081/stt-notepad/internal/config"
)

// Format names the container of an uploaded audio buffer.
type Format string

// FormatWAV is the only container the recorder produces.
const FormatWAV Format = "wav"

// MIMEType returns the content type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// Client transcribes one bounded audio buffer per call.
type Client interface {
	Transcribe(ctx context.Context, audio io.Reader, format Format) (string, error)
}

// openAIMaxSegment keeps OpenAI uploads of 16 kHz mono WAV under the
// 25 MB request limit.
const openAIMaxSegment = 10 * time.Minute

// New creates a Client for the configured backend, wrapped with the
// configured retry policy.
func New(cfg config.TranscribeConfig) (Client, error) {
	key := cfg.ResolvedAPIKey()
	if key == "" {
		return nil, fmt.Errorf("transcribe: no API key for backend %q (set transcribe.api_key or %s)", cfg.Backend, cfg.APIKeyEnv())
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	var c Client
	switch cfg.Backend {
	case "gladia", "":
		c = NewGladiaClient(key, GladiaOptions{
			BaseURL:      cfg.BaseURL,
			PollInterval: cfg.PollInterval,
			PollTimeout:  cfg.PollTimeout,
			HTTPClient:   httpClient,
		})
	case "openai":
		c = NewOpenAIClient(key, OpenAIOptions{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Language:   cfg.Language,
			HTTPClient: httpClient,
		})
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q (supported: gladia, openai)", cfg.Backend)
	}

	return Retrying(c, RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}), nil
}

// MaxSegmentFor caps the configured segment duration at what the backend
// accepts in a single request.
func MaxSegmentFor(backend string, configured time.Duration) time.Duration {
	if backend == "openai" && (configured <= 0 || configured > openAIMaxSegment) {
		return openAIMaxSegment
	}
	return configured
}
