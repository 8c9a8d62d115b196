package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chaz8081/stt-notepad/internal/audio"
)

// DefaultMaxOverlapWords bounds how many repeated words are trimmed at a
// segment boundary.
const DefaultMaxOverlapWords = 30

// Source opens a recording, or a sub-range of one, as a self-contained
// audio buffer. Closing a segment reader releases its temporary storage.
type Source interface {
	Whole(rec audio.Recording) (io.ReadCloser, error)
	Segment(rec audio.Recording, from, to time.Duration) (io.ReadCloser, error)
}

// Options configures a Coordinator.
type Options struct {
	MaxSegment      time.Duration // longest audio per request (default 1h)
	Overlap         time.Duration // extra audio uploaded before each later segment
	Concurrency     int           // segments in flight at once (default 1)
	MaxOverlapWords int           // longest repeated run trimmed at a boundary
	Format          Format

	// OnProgress is called after each segment's text is stored. Calls are
	// serialized.
	OnProgress func(done, total int)
}

// Coordinator splits long recordings into segments, submits them to a
// Client, and joins the results in order.
type Coordinator struct {
	client Client
	source Source
	opts   Options
}

// NewCoordinator creates a Coordinator. Zero option values take defaults.
func NewCoordinator(client Client, source Source, opts Options) *Coordinator {
	if opts.MaxSegment <= 0 {
		opts.MaxSegment = DefaultMaxSegment
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxOverlapWords <= 0 {
		opts.MaxOverlapWords = DefaultMaxOverlapWords
	}
	if opts.Format == "" {
		opts.Format = FormatWAV
	}
	return &Coordinator{client: client, source: source, opts: opts}
}

// Transcribe produces the full transcript of rec. A recording that fits in
// one segment is uploaded as-is and its text returned unchanged. Any failing
// segment aborts the run with a *SegmentError; cancellation yields
// ErrCancelled. No partial transcript is ever returned.
func (c *Coordinator) Transcribe(ctx context.Context, rec audio.Recording) (string, error) {
	if ctx.Err() != nil {
		return "", cancelled(ctx)
	}

	segments := Plan(rec.Duration, c.opts.MaxSegment, c.opts.Overlap)
	switch len(segments) {
	case 0:
		return "", nil
	case 1:
		return c.transcribeWhole(ctx, rec)
	}

	slog.Info("[transcribe] splitting recording", "duration", rec.Duration, "segments", len(segments), "max_segment", c.opts.MaxSegment)

	total := len(segments)
	pieces := make([]string, total)

	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for _, seg := range segments {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Blocked on the limit until a slot frees; the run may have
			// ended in the meantime.
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := c.transcribeSegment(gctx, rec, seg, total)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			pieces[seg.Index] = text
			completed++
			c.progress(completed, total)
			return nil
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return "", cancelled(ctx)
	}
	if err != nil {
		return "", err
	}
	return c.join(segments, pieces), nil
}

func (c *Coordinator) transcribeWhole(ctx context.Context, rec audio.Recording) (string, error) {
	rc, err := c.source.Whole(rec)
	if err != nil {
		return "", &SegmentError{Index: 0, Total: 1, Kind: ErrSegmentExtraction, Err: err}
	}
	defer rc.Close()

	text, err := c.client.Transcribe(ctx, rc, c.opts.Format)
	if err != nil {
		if ctx.Err() != nil {
			return "", cancelled(ctx)
		}
		return "", &SegmentError{Index: 0, Total: 1, Kind: ErrRequestFailed, Err: err}
	}
	c.progress(1, 1)
	return text, nil
}

func (c *Coordinator) transcribeSegment(ctx context.Context, rec audio.Recording, seg Segment, total int) (string, error) {
	start := time.Now()

	rc, err := c.source.Segment(rec, seg.From(), seg.End)
	if err != nil {
		return "", &SegmentError{Index: seg.Index, Total: total, Kind: ErrSegmentExtraction, Err: err}
	}
	defer func() {
		if err := rc.Close(); err != nil {
			slog.Warn("[transcribe] failed to release segment", "index", seg.Index, "error", err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := c.client.Transcribe(ctx, rc, c.opts.Format)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &SegmentError{Index: seg.Index, Total: total, Kind: ErrRequestFailed, Err: err}
	}

	slog.Debug("[transcribe] segment done", "index", seg.Index, "start", seg.Start, "end", seg.End, "elapsed", time.Since(start))
	return text, nil
}

// join concatenates pieces in index order with single spaces, trimming
// words repeated across overlapping boundaries.
func (c *Coordinator) join(segments []Segment, pieces []string) string {
	var b strings.Builder
	prev := ""
	for i, piece := range pieces {
		text := strings.TrimSpace(piece)
		if i > 0 && segments[i].Lead > 0 {
			text = trimOverlap(prev, text, c.opts.MaxOverlapWords)
		}
		prev = strings.TrimSpace(piece)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
	return b.String()
}

func (c *Coordinator) progress(done, total int) {
	if c.opts.OnProgress != nil {
		c.opts.OnProgress(done, total)
	}
}

func cancelled(ctx context.Context) error {
	if cause := context.Cause(ctx); cause != nil && cause != context.Canceled {
		return fmt.Errorf("transcribe: %w: %v", ErrCancelled, cause)
	}
	return fmt.Errorf("transcribe: %w", ErrCancelled)
}

// Task is a transcription running in the background.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	text   string
	err    error
}

// Start runs Transcribe in a new goroutine.
func (c *Coordinator) Start(ctx context.Context, rec audio.Recording) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer cancel()
		t.text, t.err = c.Transcribe(ctx, rec)
	}()
	return t
}

// Cancel stops further segment submissions. The task then finishes with
// ErrCancelled unless it already completed.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes and returns its result.
func (t *Task) Wait() (string, error) {
	<-t.done
	return t.text, t.err
}
