package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIOptions configures an OpenAIClient.
type OpenAIOptions struct {
	BaseURL    string // OpenAI-compatible endpoint, e.g. a LocalAI server
	Model      string // default whisper-1
	Language   string // ISO-639-1 hint, empty for auto-detect
	HTTPClient *http.Client
}

// OpenAIClient transcribes audio with the OpenAI audio transcriptions API.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAIClient creates a client authenticated with apiKey.
func NewOpenAIClient(apiKey string, opts OpenAIOptions) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	model := opts.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		language: opts.Language,
	}
}

// Transcribe uploads audio and returns the recognized text.
func (c *OpenAIClient) Transcribe(ctx context.Context, audio io.Reader, format Format) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: "audio." + string(format),
		Reader:   audio,
		Language: c.language,
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", openAIError(err))
	}
	return strings.TrimSpace(resp.Text), nil
}

// openAIError maps go-openai errors carrying an HTTP status to *APIError so
// retry and reporting treat both backends alike.
func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		msg := reqErr.HTTPStatus
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: msg}
	}
	return err
}
