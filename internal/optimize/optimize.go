// Package optimize cleans up raw transcripts with a remote language model:
// punctuation, casing and obvious recognition slips, without changing what
// was said.
package optimize

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"github.com/chaz8081/stt-notepad/internal/config"
)

// DefaultPrompt is the system prompt used when none is configured.
const DefaultPrompt = `You clean up dictated text produced by speech recognition.
Fix punctuation, capitalization, grammar and obvious misrecognized words.
Split run-on text into sentences and paragraphs where natural.
Do not summarize, translate, add content, or change the meaning.
Reply with the corrected text only, without any preamble.`

// DefaultMaxDrift is the largest share of words a cleanup may change before
// the original chunk is kept instead.
const DefaultMaxDrift = 0.5

// Optimizer rewrites text.
type Optimizer interface {
	Optimize(ctx context.Context, text string) (string, error)
}

// Completer sends one system+user exchange to a language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Options configures a Service.
type Options struct {
	Prompt        string
	MaxChunkChars int
	MaxDrift      float64
}

// Service splits text into chunks the model can handle, cleans each one up
// and stitches the results back together.
type Service struct {
	completer Completer
	opts      Options
}

// NewService creates a Service around completer. Zero option values take
// defaults.
func NewService(completer Completer, opts Options) *Service {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.MaxChunkChars <= 0 {
		opts.MaxChunkChars = 6000
	}
	if opts.MaxDrift <= 0 {
		opts.MaxDrift = DefaultMaxDrift
	}
	return &Service{completer: completer, opts: opts}
}

// New creates an Optimizer for the configured provider.
func New(cfg config.OptimizeConfig) (Optimizer, error) {
	key := cfg.ResolvedAPIKey()
	if key == "" {
		return nil, fmt.Errorf("optimize: no API key for provider %q (set optimize.api_key or %s)", cfg.Provider, cfg.APIKeyEnv())
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	var c Completer
	switch cfg.Provider {
	case "openai", "":
		c = NewOpenAI(key, cfg.Model, cfg.BaseURL, httpClient)
	case "anthropic":
		c = NewAnthropic(key, cfg.Model, cfg.BaseURL, httpClient)
	default:
		return nil, fmt.Errorf("optimize: unknown provider %q (supported: openai, anthropic)", cfg.Provider)
	}

	return NewService(c, Options{Prompt: cfg.Prompt, MaxChunkChars: cfg.MaxChunkChars}), nil
}

// Optimize returns the cleaned-up text. Empty input is returned as-is
// without calling the model.
func (s *Service) Optimize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	chunks := chunkText(strings.TrimSpace(text), s.opts.MaxChunkChars)
	var b strings.Builder
	for i, chunk := range chunks {
		trimmed := strings.TrimLeftFunc(chunk, unicode.IsSpace)
		lead := chunk[:len(chunk)-len(trimmed)]
		body := strings.TrimRightFunc(trimmed, unicode.IsSpace)
		trail := trimmed[len(body):]
		if body == "" {
			b.WriteString(chunk)
			continue
		}

		cleaned, err := s.completer.Complete(ctx, s.opts.Prompt, body)
		if err != nil {
			return "", fmt.Errorf("optimize: chunk %d of %d: %w", i+1, len(chunks), err)
		}
		cleaned = strings.TrimSpace(cleaned)

		if d := drift(body, cleaned); d > s.opts.MaxDrift {
			slog.Warn("[optimize] model rewrote too much, keeping original chunk", "chunk", i+1, "drift", fmt.Sprintf("%.2f", d))
			cleaned = body
		}

		b.WriteString(lead)
		b.WriteString(cleaned)
		if trail == "" && i < len(chunks)-1 {
			trail = " "
		}
		b.WriteString(trail)
	}
	return b.String(), nil
}
