package audio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := NewRecorder(Options{SampleRate: 16000, Channels: 1, TempDir: t.TempDir()})
	if err != nil {
		t.Skipf("no audio backend available: %v", err)
	}
	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return r
}

func TestNewRecorderRejectsZeroFormat(t *testing.T) {
	if _, err := NewRecorder(Options{SampleRate: 0, Channels: 1}); err == nil {
		t.Error("NewRecorder() with zero sample rate should fail")
	}
	if _, err := NewRecorder(Options{SampleRate: 16000, Channels: 0}); err == nil {
		t.Error("NewRecorder() with zero channels should fail")
	}
}

func TestRecorderNotRecordingByDefault(t *testing.T) {
	r := newTestRecorder(t)

	if r.IsRecording() {
		t.Error("IsRecording() should be false after creation")
	}
	if r.IsPaused() {
		t.Error("IsPaused() should be false after creation")
	}
	if _, ok := r.Recording(); ok {
		t.Error("Recording() should report no recording after creation")
	}
}

func TestStopWithoutStart(t *testing.T) {
	r := newTestRecorder(t)

	if _, err := r.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop() without Start() error = %v, want ErrNotRecording", err)
	}
	if _, err := r.TogglePause(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("TogglePause() without Start() error = %v, want ErrNotRecording", err)
	}
}

func TestStartUnknownDevice(t *testing.T) {
	r := newTestRecorder(t)
	r.SetDevice("definitely-not-a-real-microphone")

	err := r.Start()
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("Start() error = %v, want ErrCaptureUnavailable", err)
	}
	if r.IsRecording() {
		t.Error("IsRecording() should be false after failed Start()")
	}
}

func TestFailedStartKeepsPreviousRecording(t *testing.T) {
	r := newTestRecorder(t)
	prev := filepath.Join(t.TempDir(), "previous.wav")
	if err := os.WriteFile(prev, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}
	r.last = &Recording{Path: prev, Frames: 1, SampleRate: 16000, Channels: 1, BitDepth: 16, Duration: time.Second}
	r.SetDevice("definitely-not-a-real-microphone")

	if err := r.Start(); !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("Start() error = %v, want ErrCaptureUnavailable", err)
	}
	if _, err := os.Stat(prev); err != nil {
		t.Errorf("previous recording removed by failed Start(): %v", err)
	}
	if rec, ok := r.Recording(); !ok || rec.Path != prev {
		t.Errorf("Recording() = %+v, %v; want the previous recording", rec, ok)
	}
}

func TestOnDataRespectsPause(t *testing.T) {
	r := &Recorder{
		opts:      Options{SampleRate: 16000, Channels: 1},
		blocks:    make(chan []int, 4),
		recording: true,
	}
	data := []byte{0x01, 0x00, 0xFF, 0xFF} // 1, -1

	r.onData(nil, data, 2)
	if got := len(r.blocks); got != 1 {
		t.Fatalf("queued blocks = %d, want 1", got)
	}
	block := <-r.blocks
	if len(block) != 2 || block[0] != 1 || block[1] != -1 {
		t.Errorf("block = %v, want [1 -1]", block)
	}

	r.paused = true
	r.onData(nil, data, 2)
	if got := len(r.blocks); got != 0 {
		t.Errorf("queued blocks while paused = %d, want 0", got)
	}

	r.paused = false
	r.recording = false
	r.onData(nil, data, 2)
	if got := len(r.blocks); got != 0 {
		t.Errorf("queued blocks while stopped = %d, want 0", got)
	}
}

func TestOnDataDropsWhenQueueFull(t *testing.T) {
	r := &Recorder{
		opts:      Options{SampleRate: 16000, Channels: 1},
		blocks:    make(chan []int, 1),
		recording: true,
	}
	data := []byte{0x00, 0x00}
	r.onData(nil, data, 1)
	r.onData(nil, data, 1)
	if r.dropped != 1 {
		t.Errorf("dropped = %d, want 1", r.dropped)
	}
}

func TestDrainWritesBlocks(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "drain.wav"))
	if err != nil {
		t.Fatal(err)
	}
	sink := newWAVSink(f, 8000, 1, BitDepth)
	blocks := make(chan []int, 3)
	done := make(chan error, 1)
	blocks <- []int{1, 2, 3}
	blocks <- []int{4, 5}
	close(blocks)

	drain(sink, blocks, done)
	if err := <-done; err != nil {
		t.Fatalf("drain() error = %v", err)
	}
	if err := sink.close(); err != nil {
		t.Fatalf("close() error = %v", err)
	}

	rec := sink.recording()
	if rec.Frames != 5 {
		t.Errorf("Frames = %d, want 5", rec.Frames)
	}
}

func TestDeleteRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.wav")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	r := &Recorder{last: &Recording{Path: path}}

	if err := r.DeleteRecording(); err != nil {
		t.Fatalf("DeleteRecording() error = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("recording file still exists: %v", err)
	}
	if _, ok := r.Recording(); ok {
		t.Error("Recording() should be empty after delete")
	}
	if err := r.DeleteRecording(); err != nil {
		t.Errorf("second DeleteRecording() error = %v", err)
	}
}

func TestBytesToInt16(t *testing.T) {
	data := []byte{
		0x00, 0x00, // 0
		0xFF, 0x7F, // 32767
		0x00, 0x80, // -32768
	}
	samples := bytesToInt16(data, 3)

	want := []int{0, 32767, -32768}
	if len(samples) != len(want) {
		t.Fatalf("bytesToInt16() returned %d samples, want %d", len(samples), len(want))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("samples[%d] = %d, want %d", i, samples[i], want[i])
		}
	}
}

func TestBytesToInt16ShortBuffer(t *testing.T) {
	samples := bytesToInt16([]byte{0x01, 0x00, 0x02}, 2)
	if len(samples) != 1 {
		t.Errorf("bytesToInt16() returned %d samples, want 1", len(samples))
	}
}
