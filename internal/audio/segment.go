package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
)

// ErrTruncated is returned when a WAV data chunk ends before the requested range.
var ErrTruncated = errors.New("audio: recording truncated")

// copyBlockFrames bounds how many frames are decoded per read.
const copyBlockFrames = 16384

// ExtractSegment copies frames [from, to) of the PCM WAV at path into a new
// temporary WAV file in tmpDir with the same sample format, and returns the
// new file's path. Samples are copied verbatim so the segment boundaries carry
// no re-encoding artifacts. The caller owns the returned file.
func ExtractSegment(path string, from, to time.Duration, tmpDir string) (string, error) {
	if to <= from {
		return "", fmt.Errorf("audio: empty segment range [%s, %s)", from, to)
	}

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer src.Close()

	dec, err := openPCM(src)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidWAV, path, err)
	}

	channels := int64(dec.NumChans)
	sampleBytes := int64(dec.BitDepth / 8)
	totalFrames := dec.PCMLen() / (channels * sampleBytes)

	first := durationToFrame(from, dec.SampleRate)
	last := durationToFrame(to, dec.SampleRate)
	if last <= first {
		return "", fmt.Errorf("audio: segment [%s, %s) holds no frames", from, to)
	}
	if last > totalFrames {
		return "", fmt.Errorf("%w: want frames up to %d, file has %d", ErrTruncated, last, totalFrames)
	}

	if first > 0 {
		skip := first * channels * sampleBytes
		if n, err := io.CopyN(io.Discard, dec.PCMChunk.R, skip); err != nil {
			return "", fmt.Errorf("%w: skipped %d of %d bytes: %v", ErrTruncated, n, skip, err)
		}
	}

	dst, err := os.CreateTemp(tmpDir, "stt-notepad-segment-*.wav")
	if err != nil {
		return "", fmt.Errorf("audio: create segment file: %w", err)
	}
	sink := newWAVSink(dst, int(dec.SampleRate), int(dec.NumChans), int(dec.BitDepth))

	fail := func(err error) (string, error) {
		_ = sink.close()
		_ = os.Remove(dst.Name())
		return "", err
	}

	remaining := (last - first) * channels
	buf := &goaudio.IntBuffer{Data: make([]int, copyBlockFrames*channels)}
	for remaining > 0 {
		want := min(int64(len(buf.Data)), remaining)
		buf.Data = buf.Data[:want]
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return fail(fmt.Errorf("audio: read pcm: %w", err))
		}
		if n == 0 {
			return fail(fmt.Errorf("%w: %d samples missing", ErrTruncated, remaining))
		}
		if err := sink.write(buf.Data[:n]); err != nil {
			return fail(err)
		}
		remaining -= int64(n)
	}

	if err := sink.close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

// WAVSource opens recordings for upload. Whole returns the recording file
// itself; Segment extracts a sub-range into a temporary file that is removed
// when the returned reader is closed.
type WAVSource struct {
	TempDir string
}

// Whole opens the full recording for reading.
func (s WAVSource) Whole(rec Recording) (io.ReadCloser, error) {
	f, err := os.Open(rec.Path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", rec.Path, err)
	}
	return f, nil
}

// Segment extracts [from, to) of rec into a self-contained WAV buffer.
func (s WAVSource) Segment(rec Recording, from, to time.Duration) (io.ReadCloser, error) {
	path, err := ExtractSegment(rec.Path, from, to, s.TempDir)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("audio: open segment: %w", err)
	}
	return &tempFile{File: f}, nil
}

// tempFile deletes itself on Close.
type tempFile struct {
	*os.File
}

func (t *tempFile) Close() error {
	closeErr := t.File.Close()
	if err := os.Remove(t.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("audio: remove segment: %w", err)
	}
	return closeErr
}
