package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/stt-notepad/internal/audio"
)

// frameCountingClient decodes every upload and answers with its frame count.
type frameCountingClient struct {
	mu     sync.Mutex
	frames []int
}

func (c *frameCountingClient) Transcribe(ctx context.Context, r io.Reader, format Format) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return "", fmt.Errorf("upload of %d bytes is not a wav: %w", len(data), err)
	}
	n := buf.NumFrames()
	if n == 0 {
		return "", fmt.Errorf("upload of %d bytes holds no frames", len(data))
	}
	c.mu.Lock()
	c.frames = append(c.frames, n)
	c.mu.Unlock()
	return fmt.Sprintf("frames=%d", n), nil
}

func writeWAV(t *testing.T, path string, rate, frames int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	data := make([]int, frames)
	for i := range data {
		data[i] = i % 1000
	}
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

func TestTranscribeOneFramePastMaxSegment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.wav")
	writeWAV(t, path, 44100, 44100+1)

	rec, err := audio.Probe(path)
	require.NoError(t, err)

	client := &frameCountingClient{}
	c := NewCoordinator(client, audio.WAVSource{TempDir: dir}, Options{MaxSegment: time.Second, Concurrency: 1})

	text, err := c.Transcribe(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, "frames=44100 frames=1", text)
	require.Equal(t, []int{44100, 1}, client.frames)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "segment files must be removed after upload")
}
