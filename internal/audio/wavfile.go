// Package audio captures microphone input into temporary WAV files and
// reads those files back, whole or as bounded sub-ranges, for upload.
package audio

import (
	"errors"
	"fmt"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// BitDepth is the PCM sample width of microphone captures.
const BitDepth = 16

// ErrInvalidWAV is returned when a file is not a readable PCM WAV.
var ErrInvalidWAV = errors.New("audio: invalid wav file")

// Recording describes a finished capture on disk. It is handed to the
// transcription coordinator by value and treated as read-only.
type Recording struct {
	Path       string
	Frames     int64
	SampleRate uint32
	Channels   uint16
	BitDepth   uint16
	Duration   time.Duration
}

// Empty reports whether the recording holds no audio.
func (r Recording) Empty() bool {
	return r.Frames == 0 || r.Duration <= 0
}

// framesToDuration converts a frame count at the given rate to a duration.
func framesToDuration(frames int64, sampleRate uint32) time.Duration {
	if sampleRate == 0 {
		return 0
	}
	return time.Duration(frames * int64(time.Second) / int64(sampleRate))
}

// durationToFrame returns the frame nearest to offset d. framesToDuration
// truncates by less than a nanosecond, so rounding to nearest maps its result
// back to the exact frame at any audio sample rate.
func durationToFrame(d time.Duration, sampleRate uint32) int64 {
	if d <= 0 {
		return 0
	}
	return (int64(d)*int64(sampleRate) + int64(time.Second)/2) / int64(time.Second)
}

// wavSink streams interleaved PCM samples into a WAV file. The header is
// finalised on close.
type wavSink struct {
	f        *os.File
	enc      *wav.Encoder
	format   *goaudio.Format
	channels int
	bitDepth int
	samples  int64
}

func newWAVSink(f *os.File, sampleRate, channels, bitDepth int) *wavSink {
	return &wavSink{
		f:        f,
		enc:      wav.NewEncoder(f, sampleRate, bitDepth, channels, 1),
		format:   &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		channels: channels,
		bitDepth: bitDepth,
	}
}

func (s *wavSink) write(samples []int) error {
	if len(samples) == 0 {
		return nil
	}
	buf := &goaudio.IntBuffer{
		Format:         s.format,
		Data:           samples,
		SourceBitDepth: s.bitDepth,
	}
	if err := s.enc.Write(buf); err != nil {
		return fmt.Errorf("audio: write wav: %w", err)
	}
	s.samples += int64(len(samples))
	return nil
}

// close finalises the header and closes the file. A sink that never
// received samples still produces a valid header with an empty data chunk.
func (s *wavSink) close() error {
	var encErr error
	if s.samples == 0 {
		encErr = s.enc.Write(&goaudio.IntBuffer{Format: s.format, SourceBitDepth: s.bitDepth})
	}
	if encErr == nil {
		encErr = s.enc.Close()
	}
	fileErr := s.f.Close()
	if encErr != nil {
		return fmt.Errorf("audio: finalise wav: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("audio: close wav: %w", fileErr)
	}
	return nil
}

func (s *wavSink) recording() Recording {
	frames := s.samples / int64(s.channels)
	rate := uint32(s.format.SampleRate)
	return Recording{
		Path:       s.f.Name(),
		Frames:     frames,
		SampleRate: rate,
		Channels:   uint16(s.channels),
		BitDepth:   uint16(s.bitDepth),
		Duration:   framesToDuration(frames, rate),
	}
}

// Probe reads the header of an existing PCM WAV file and returns it as a
// Recording. A file with an empty data chunk yields a zero-length Recording.
func Probe(path string) (Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return Recording{}, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()

	dec, err := openPCM(f)
	if err != nil {
		return Recording{}, fmt.Errorf("%w: %s: %v", ErrInvalidWAV, path, err)
	}

	frameBytes := int64(dec.NumChans) * int64(dec.BitDepth/8)
	frames := dec.PCMLen() / frameBytes
	return Recording{
		Path:       path,
		Frames:     frames,
		SampleRate: dec.SampleRate,
		Channels:   dec.NumChans,
		BitDepth:   dec.BitDepth,
		Duration:   framesToDuration(frames, dec.SampleRate),
	}, nil
}

// openPCM reads the WAV headers and positions the decoder at the start of
// the PCM data.
func openPCM(f *os.File) (*wav.Decoder, error) {
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, err
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("unsupported audio format %d (want PCM)", dec.WavAudioFormat)
	}
	if dec.NumChans == 0 || dec.SampleRate == 0 || dec.BitDepth%8 != 0 || dec.BitDepth == 0 {
		return nil, fmt.Errorf("bad format: %d channels, %d Hz, %d bit", dec.NumChans, dec.SampleRate, dec.BitDepth)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, err
	}
	return dec, nil
}
