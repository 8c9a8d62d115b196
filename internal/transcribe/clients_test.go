package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/stt-notepad/internal/config"
)

func newGladiaServer(t *testing.T, pendingPolls int, final map[string]any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-gladia-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"invalid key"}`)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/transcription/":
			f, hdr, err := r.FormFile("audio")
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			defer f.Close()
			data, _ := io.ReadAll(f)
			if string(data) != "RIFF-data" || hdr.Filename != "audio.wav" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				return
			}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"id":         "job-1",
				"result_url": srv.URL + "/v2/transcription/job-1",
			})
		case r.Method == http.MethodGet && r.URL.Path == "/v2/transcription/job-1":
			if int(polls.Add(1)) <= pendingPolls {
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
				return
			}
			_ = json.NewEncoder(w).Encode(final)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &polls
}

func TestGladiaClientPollsUntilDone(t *testing.T) {
	srv, polls := newGladiaServer(t, 2, map[string]any{
		"status": "done",
		"result": map[string]any{
			"transcription": map[string]any{"full_transcript": " Hello from Gladia. "},
		},
	})
	c := NewGladiaClient("test-key", GladiaOptions{BaseURL: srv.URL, PollInterval: time.Millisecond})

	text, err := c.Transcribe(context.Background(), strings.NewReader("RIFF-data"), FormatWAV)
	require.NoError(t, err)
	require.Equal(t, "Hello from Gladia.", text)
	require.Equal(t, int32(3), polls.Load())
}

func TestGladiaClientJobError(t *testing.T) {
	srv, _ := newGladiaServer(t, 0, map[string]any{"status": "error", "error": "audio too short"})
	c := NewGladiaClient("test-key", GladiaOptions{BaseURL: srv.URL, PollInterval: time.Millisecond})

	_, err := c.Transcribe(context.Background(), strings.NewReader("RIFF-data"), FormatWAV)
	require.ErrorContains(t, err, "audio too short")
}

func TestGladiaClientUploadRejected(t *testing.T) {
	srv, _ := newGladiaServer(t, 0, nil)
	c := NewGladiaClient("wrong-key", GladiaOptions{BaseURL: srv.URL})

	_, err := c.Transcribe(context.Background(), strings.NewReader("RIFF-data"), FormatWAV)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Contains(t, apiErr.Message, "invalid key")
	require.False(t, apiErr.Temporary())
}

func TestGladiaClientCancelWhilePolling(t *testing.T) {
	srv, _ := newGladiaServer(t, 1<<30, nil)
	c := NewGladiaClient("test-key", GladiaOptions{BaseURL: srv.URL, PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Transcribe(ctx, strings.NewReader("RIFF-data"), FormatWAV)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGladiaClientPollTimeout(t *testing.T) {
	srv, _ := newGladiaServer(t, 1<<30, nil)
	c := NewGladiaClient("test-key", GladiaOptions{
		BaseURL:      srv.URL,
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  30 * time.Millisecond,
	})

	_, err := c.Transcribe(context.Background(), strings.NewReader("RIFF-data"), FormatWAV)
	require.ErrorIs(t, err, ErrJobTimeout)
	require.ErrorContains(t, err, "processing")
}

func TestGladiaRetryAfterEarlyRejectUploadsWholeFile(t *testing.T) {
	audio := make([]byte, 256<<10)
	for i := range audio {
		audio[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), "rec.wav")
	require.NoError(t, os.WriteFile(path, audio, 0o600))

	var attempts atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && attempts.Add(1) == 1:
			// Reject after reading only the start of the body.
			_, _ = io.CopyN(io.Discard, r.Body, 8<<10)
			w.WriteHeader(http.StatusTooManyRequests)
		case r.Method == http.MethodPost:
			f, _, err := r.FormFile("audio")
			if !assert.NoError(t, err) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			defer f.Close()
			got, _ := io.ReadAll(f)
			if !assert.True(t, bytes.Equal(audio, got), "retried upload = %d bytes, want %d", len(got), len(audio)) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "job-2", "result_url": srv.URL + "/result"})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "done",
				"result": map[string]any{"transcription": map[string]any{"full_transcript": "complete"}},
			})
		}
	}))
	t.Cleanup(srv.Close)

	gladia := NewGladiaClient("test-key", GladiaOptions{BaseURL: srv.URL, PollInterval: time.Millisecond})
	c := Retrying(gladia, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	text, err := c.Transcribe(context.Background(), f, FormatWAV)
	require.NoError(t, err)
	require.Equal(t, "complete", text)
	require.Equal(t, int32(2), attempts.Load())
}

func TestOpenAIClientTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		f, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		assert.Equal(t, "RIFF-data", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"  transcribed by openai \n"}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", OpenAIOptions{BaseURL: srv.URL + "/v1/"})
	text, err := c.Transcribe(context.Background(), strings.NewReader("RIFF-data"), FormatWAV)
	require.NoError(t, err)
	require.Equal(t, "transcribed by openai", text)
}

func TestOpenAIClientMapsStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantTemp bool
	}{
		{name: "rate_limited", status: 429, body: `{"error":{"message":"Rate limit reached","type":"requests"}}`, wantTemp: true},
		{name: "unauthorized", status: 401, body: `{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`},
		{name: "gateway_html", status: 502, body: `<html>bad gateway</html>`, wantTemp: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewOpenAIClient("sk-test", OpenAIOptions{BaseURL: srv.URL})
			_, err := c.Transcribe(context.Background(), strings.NewReader("x"), FormatWAV)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.status, apiErr.StatusCode)
			require.Equal(t, tt.wantTemp, apiErr.Temporary())
		})
	}
}

func TestNewSelectsBackend(t *testing.T) {
	t.Setenv("GLADIA_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg := config.Default().Transcribe
	cfg.APIKey = "k"

	cfg.Backend = "gladia"
	c, err := New(cfg)
	require.NoError(t, err)
	require.IsType(t, &GladiaClient{}, c)

	cfg.Backend = "openai"
	c, err = New(cfg)
	require.NoError(t, err)
	require.IsType(t, &OpenAIClient{}, c)

	cfg.Retry.MaxAttempts = 3
	c, err = New(cfg)
	require.NoError(t, err)
	require.IsType(t, &retryingClient{}, c)

	cfg.Backend = "speechmatics"
	_, err = New(cfg)
	require.ErrorContains(t, err, "unknown backend")

	cfg.Backend = "gladia"
	cfg.APIKey = ""
	_, err = New(cfg)
	require.ErrorContains(t, err, "GLADIA_API_KEY")
}

func TestMaxSegmentFor(t *testing.T) {
	require.Equal(t, time.Hour, MaxSegmentFor("gladia", time.Hour))
	require.Equal(t, 10*time.Minute, MaxSegmentFor("openai", time.Hour))
	require.Equal(t, 10*time.Minute, MaxSegmentFor("openai", 0))
	require.Equal(t, 5*time.Minute, MaxSegmentFor("openai", 5*time.Minute))
}
