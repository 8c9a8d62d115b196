package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	// ErrCaptureUnavailable is returned when no usable input device exists or
	// the OS denies microphone access.
	ErrCaptureUnavailable = errors.New("audio: capture unavailable")
	// ErrNotRecording is returned by Stop and pause controls when idle.
	ErrNotRecording = errors.New("audio: not recording")
)

// blockQueue is how many capture callbacks may be buffered ahead of the
// file writer before frames are dropped.
const blockQueue = 512

// Options configures a Recorder.
type Options struct {
	Device     string // input device name; empty selects the system default
	SampleRate uint32
	Channels   uint32
	TempDir    string // where recordings are written; empty uses os.TempDir
}

// Recorder captures audio from an input device into a temporary 16-bit WAV
// file. Capture can be paused and resumed; paused frames are discarded.
// The finished file is kept until DeleteRecording, Cancel, or the next Start.
type Recorder struct {
	ctx  *malgo.AllocatedContext
	opts Options

	mu        sync.Mutex
	device    *malgo.Device
	deviceID  malgo.DeviceID
	sink      *wavSink
	blocks    chan []int
	done      chan error
	recording bool
	paused    bool
	dropped   int
	last      *Recording
}

// NewRecorder creates a new audio recorder. Call Close() when done.
func NewRecorder(opts Options) (*Recorder, error) {
	if opts.SampleRate == 0 || opts.Channels == 0 {
		return nil, fmt.Errorf("audio: sample rate and channels must be > 0")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing audio context: %v", ErrCaptureUnavailable, err)
	}

	return &Recorder{ctx: ctx, opts: opts}, nil
}

// ListDevices returns the names of the available capture devices.
func (r *Recorder) ListDevices() ([]string, error) {
	infos, err := r.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("%w: listing capture devices: %v", ErrCaptureUnavailable, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

// SetDevice selects the input device used by the next Start.
func (r *Recorder) SetDevice(name string) {
	r.mu.Lock()
	r.opts.Device = name
	r.mu.Unlock()
}

func (r *Recorder) findDevice(name string) (malgo.DeviceID, error) {
	infos, err := r.ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, fmt.Errorf("%w: listing capture devices: %v", ErrCaptureUnavailable, err)
	}
	for _, info := range infos {
		if info.Name() == name {
			return info.ID, nil
		}
	}
	return malgo.DeviceID{}, fmt.Errorf("%w: input device %q not found", ErrCaptureUnavailable, name)
}

// Start begins capturing into a fresh temporary WAV file. The previous
// recording is deleted once the device is capturing; if Start fails it is
// left untouched.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return fmt.Errorf("audio: already recording")
	}
	opts := r.opts
	r.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = opts.Channels
	deviceCfg.SampleRate = opts.SampleRate
	if opts.Device != "" {
		id, err := r.findDevice(opts.Device)
		if err != nil {
			return err
		}
		r.deviceID = id
		deviceCfg.Capture.DeviceID = r.deviceID.Pointer()
	}

	f, err := os.CreateTemp(opts.TempDir, "stt-notepad-*.wav")
	if err != nil {
		return fmt.Errorf("audio: create recording file: %w", err)
	}
	sink := newWAVSink(f, int(opts.SampleRate), int(opts.Channels), BitDepth)
	blocks := make(chan []int, blockQueue)
	done := make(chan error, 1)
	go drain(sink, blocks, done)

	r.mu.Lock()
	r.sink = sink
	r.blocks = blocks
	r.done = done
	r.recording = true
	r.paused = false
	r.dropped = 0
	r.mu.Unlock()

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, malgo.DeviceCallbacks{Data: r.onData})
	if err != nil {
		r.abort()
		return fmt.Errorf("%w: initializing capture device: %v", ErrCaptureUnavailable, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		r.abort()
		return fmt.Errorf("%w: starting capture device: %v", ErrCaptureUnavailable, err)
	}

	r.mu.Lock()
	r.device = device
	prev := r.last
	r.last = nil
	r.mu.Unlock()

	if prev != nil {
		removeRecording(*prev)
	}

	slog.Info("[audio] recording started", "file", f.Name(), "device", deviceLabel(opts.Device))
	return nil
}

// Pause stops appending captured frames until Resume.
func (r *Recorder) Pause() error {
	return r.setPaused(true)
}

// Resume continues appending captured frames after Pause.
func (r *Recorder) Resume() error {
	return r.setPaused(false)
}

// TogglePause flips the paused state and returns the new state.
func (r *Recorder) TogglePause() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return false, ErrNotRecording
	}
	r.paused = !r.paused
	slog.Debug("[audio] pause toggled", "paused", r.paused)
	return r.paused, nil
}

func (r *Recorder) setPaused(p bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ErrNotRecording
	}
	r.paused = p
	return nil
}

// Stop ends the capture, finalises the WAV file and returns it.
func (r *Recorder) Stop() (Recording, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return Recording{}, ErrNotRecording
	}
	device, sink, blocks, done := r.device, r.sink, r.blocks, r.done
	dropped := r.dropped
	r.device = nil
	r.sink = nil
	r.blocks = nil
	r.recording = false
	r.paused = false
	r.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	close(blocks)
	writeErr := <-done
	closeErr := sink.close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(sink.f.Name())
		return Recording{}, err
	}

	rec := sink.recording()
	if dropped > 0 {
		slog.Warn("[audio] capture blocks dropped, writer fell behind", "blocks", dropped)
	}
	slog.Info("[audio] recording stopped", "file", rec.Path, "duration", rec.Duration)

	r.mu.Lock()
	r.last = &rec
	r.mu.Unlock()
	return rec, nil
}

// Cancel stops an active capture and deletes its file.
func (r *Recorder) Cancel() error {
	if _, err := r.Stop(); err != nil && !errors.Is(err, ErrNotRecording) {
		return err
	}
	return r.DeleteRecording()
}

// Recording returns the last finished recording, if any.
func (r *Recorder) Recording() (Recording, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Recording{}, false
	}
	return *r.last, true
}

// DeleteRecording removes the last finished recording from disk.
func (r *Recorder) DeleteRecording() error {
	r.mu.Lock()
	prev := r.last
	r.last = nil
	r.mu.Unlock()
	if prev == nil {
		return nil
	}
	if err := os.Remove(prev.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("audio: delete recording: %w", err)
	}
	return nil
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// IsPaused returns whether an active capture is paused.
func (r *Recorder) IsPaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording && r.paused
}

// Close stops any active capture, deletes the temporary recording and
// releases the audio context.
func (r *Recorder) Close() error {
	cancelErr := r.Cancel()

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("audio: uninitializing audio context: %w", err)
		}
		r.ctx.Free()
		r.ctx = nil
	}
	return cancelErr
}

// abort tears down a Start that failed after the sink was created.
func (r *Recorder) abort() {
	r.mu.Lock()
	sink, blocks, done := r.sink, r.blocks, r.done
	r.sink = nil
	r.blocks = nil
	r.recording = false
	r.mu.Unlock()

	close(blocks)
	<-done
	_ = sink.close()
	_ = os.Remove(sink.f.Name())
}

// onData is the malgo callback invoked when audio data is available.
// pSample holds little-endian signed 16-bit frames.
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || r.paused {
		return
	}
	samples := bytesToInt16(pSample, frameCount*r.opts.Channels)
	select {
	case r.blocks <- samples:
	default:
		r.dropped++
	}
}

// drain writes queued capture blocks to the sink until blocks is closed.
// After the first write error the remaining blocks are discarded.
func drain(sink *wavSink, blocks <-chan []int, done chan<- error) {
	var err error
	for b := range blocks {
		if err != nil {
			continue
		}
		err = sink.write(b)
	}
	done <- err
}

// bytesToInt16 converts raw little-endian int16 bytes to samples.
func bytesToInt16(data []byte, sampleCount uint32) []int {
	samples := make([]int, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 2
		if offset+2 > uint32(len(data)) {
			break
		}
		samples = append(samples, int(int16(binary.LittleEndian.Uint16(data[offset:offset+2]))))
	}
	return samples
}

func removeRecording(rec Recording) {
	if err := os.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("[audio] failed to remove previous recording", "file", rec.Path, "error", err)
	}
}

func deviceLabel(name string) string {
	if name == "" {
		return "default"
	}
	return name
}
