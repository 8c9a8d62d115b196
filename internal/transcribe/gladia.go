package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGladiaBaseURL      = "https://api.gladia.io"
	defaultGladiaPollInterval = time.Second
)

// GladiaOptions configures a GladiaClient.
type GladiaOptions struct {
	BaseURL      string
	PollInterval time.Duration
	PollTimeout  time.Duration // 0 polls until ctx is done
	HTTPClient   *http.Client
}

// GladiaClient transcribes audio with the Gladia v2 pre-recorded API: the
// audio is uploaded once, then the returned result URL is polled until the
// job is done.
type GladiaClient struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	pollTimeout  time.Duration
	http         *http.Client
}

// NewGladiaClient creates a client authenticated with apiKey.
func NewGladiaClient(apiKey string, opts GladiaOptions) *GladiaClient {
	c := &GladiaClient{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		pollInterval: opts.PollInterval,
		pollTimeout:  opts.PollTimeout,
		http:         opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = defaultGladiaBaseURL
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultGladiaPollInterval
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	return c
}

// ErrJobTimeout is returned when a Gladia job is still pending after the
// configured poll timeout.
var ErrJobTimeout = errors.New("gladia: job did not finish in time")

var errUploadFinished = errors.New("gladia: upload finished")

type gladiaJob struct {
	ID        string `json:"id"`
	ResultURL string `json:"result_url"`
}

type gladiaResult struct {
	Status string          `json:"status"`
	Error  json.RawMessage `json:"error"`
	Result struct {
		Transcription struct {
			FullTranscript string `json:"full_transcript"`
		} `json:"transcription"`
	} `json:"result"`
}

// Transcribe uploads audio and waits for the transcript.
func (c *GladiaClient) Transcribe(ctx context.Context, audio io.Reader, format Format) (string, error) {
	job, err := c.submit(ctx, audio, format)
	if err != nil {
		return "", err
	}
	slog.Debug("[transcribe] Gladia job submitted", "id", job.ID)
	return c.poll(ctx, job.ResultURL)
}

func (c *GladiaClient) submit(ctx context.Context, audio io.Reader, format Format) (gladiaJob, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	written := make(chan struct{})
	go func() {
		defer close(written)
		pw.CloseWithError(writeAudioPart(mw, audio, format))
	}()
	// The writer must be done with audio before returning: a retry rewinds
	// the same reader.
	defer func() {
		pr.CloseWithError(errUploadFinished)
		<-written
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transcription/", pr)
	if err != nil {
		return gladiaJob{}, fmt.Errorf("gladia: build request: %w", err)
	}
	req.Header.Set("x-gladia-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return gladiaJob{}, fmt.Errorf("gladia: upload: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return gladiaJob{}, fmt.Errorf("gladia: upload: %w", err)
	}

	var job gladiaJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return gladiaJob{}, fmt.Errorf("gladia: decode upload response: %w", err)
	}
	if job.ResultURL == "" {
		return gladiaJob{}, fmt.Errorf("gladia: no result_url in upload response")
	}
	return job, nil
}

func writeAudioPart(mw *multipart.Writer, audio io.Reader, format Format) error {
	fw, err := mw.CreateFormFile("audio", "audio."+string(format))
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return err
	}
	return mw.Close()
}

func (c *GladiaClient) poll(ctx context.Context, resultURL string) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if c.pollTimeout > 0 {
		timer := time.NewTimer(c.pollTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	started := time.Now()
	for round := 1; ; round++ {
		res, err := c.fetchResult(ctx, resultURL)
		if err != nil {
			return "", err
		}
		switch res.Status {
		case "done":
			return strings.TrimSpace(res.Result.Transcription.FullTranscript), nil
		case "error":
			msg := strings.Trim(string(res.Error), `"`)
			if msg == "" || msg == "null" {
				msg = "unknown error"
			}
			return "", fmt.Errorf("gladia: transcription failed: %s", msg)
		default:
			slog.Debug("[transcribe] Gladia job pending", "status", res.Status, "round", round, "elapsed", time.Since(started).Round(time.Millisecond))
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline:
			return "", fmt.Errorf("%w: still %q after %s", ErrJobTimeout, res.Status, c.pollTimeout)
		case <-ticker.C:
		}
	}
}

func (c *GladiaClient) fetchResult(ctx context.Context, resultURL string) (gladiaResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return gladiaResult{}, fmt.Errorf("gladia: build poll request: %w", err)
	}
	req.Header.Set("x-gladia-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gladiaResult{}, fmt.Errorf("gladia: poll: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return gladiaResult{}, fmt.Errorf("gladia: poll: %w", err)
	}

	var res gladiaResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return gladiaResult{}, fmt.Errorf("gladia: decode result: %w", err)
	}
	return res, nil
}

// checkStatus turns a non-2xx response into an *APIError.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
