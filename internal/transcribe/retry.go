package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls how a failed request is repeated. Only rate limiting
// (429) and server errors (5xx) are retried. MaxAttempts <= 1 disables retry.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy performs a single attempt.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 1, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

type retryingClient struct {
	next   Client
	policy RetryPolicy
	timer  backoff.Timer // nil uses a real timer
}

// Retrying wraps c so that temporary failures are repeated according to
// policy. With a single attempt c is returned unchanged.
func Retrying(c Client, policy RetryPolicy) Client {
	if policy.MaxAttempts <= 1 {
		return c
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	return &retryingClient{next: c, policy: policy}
}

// newBackOff doubles the delay from BaseDelay up to MaxDelay, without
// jitter, and stops after MaxAttempts-1 retries.
func (p RetryPolicy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(max(p.MaxAttempts-1, 0)))
}

func (r *retryingClient) Transcribe(ctx context.Context, audio io.Reader, format Format) (string, error) {
	body, start, err := replayable(audio)
	if err != nil {
		return "", err
	}

	var (
		text    string
		attempt int
	)
	op := func() error {
		attempt++
		if attempt > 1 {
			if _, err := body.Seek(start, io.SeekStart); err != nil {
				return backoff.Permanent(fmt.Errorf("transcribe: rewind audio: %w", err))
			}
		}
		var err error
		text, err = r.next.Transcribe(ctx, body, format)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		slog.Warn("[transcribe] request failed, retrying", "attempt", attempt, "max_attempts", r.policy.MaxAttempts, "delay", delay, "error", err)
	}

	b := backoff.WithContext(r.policy.newBackOff(), ctx)
	if err := backoff.RetryNotifyWithTimer(op, b, notify, r.timer); err != nil {
		return "", err
	}
	return text, nil
}

// replayable returns a seekable view of audio and the offset to rewind to.
// Readers that cannot seek are buffered in memory.
func replayable(audio io.Reader) (io.ReadSeeker, int64, error) {
	if rs, ok := audio.(io.ReadSeeker); ok {
		start, err := rs.Seek(0, io.SeekCurrent)
		if err == nil {
			return rs, start, nil
		}
	}
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, 0, fmt.Errorf("transcribe: buffer audio: %w", err)
	}
	return bytes.NewReader(data), 0, nil
}

func retryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}
