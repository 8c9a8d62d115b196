// Package app runs the interactive notepad session: it reads commands from
// the terminal and global hotkeys, drives recording, and hands finished
// recordings to the transcription coordinator in the background.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/chaz8081/stt-notepad/internal/audio"
	"github.com/chaz8081/stt-notepad/internal/hotkey"
	"github.com/chaz8081/stt-notepad/internal/inject"
	"github.com/chaz8081/stt-notepad/internal/notepad"
	"github.com/chaz8081/stt-notepad/internal/optimize"
	"github.com/chaz8081/stt-notepad/internal/transcribe"
)

// Recorder is the capture side of the session. *audio.Recorder implements it.
type Recorder interface {
	Start() error
	TogglePause() (bool, error)
	Stop() (audio.Recording, error)
	Cancel() error
	Recording() (audio.Recording, bool)
	IsRecording() bool
	IsPaused() bool
}

// Transcriber starts a background transcription. *transcribe.Coordinator
// implements it.
type Transcriber interface {
	Start(ctx context.Context, rec audio.Recording) *transcribe.Task
}

// Injector delivers finished text to another application.
type Injector interface {
	Enabled() bool
	Inject(text string) error
}

// Deps are the collaborators a Session drives. Optimizer and Injector may
// be nil.
type Deps struct {
	Recorder    Recorder
	Transcriber Transcriber
	Optimizer   optimize.Optimizer
	Injector    Injector
	Copy        func(text string) error
	Document    *notepad.Document
	Now         func() time.Time
}

// Options tune session behaviour.
type Options struct {
	OutputDir string // where "s" saves Markdown notes
	AutoCopy  bool   // copy each new transcript to the clipboard
	Quiet     bool   // don't echo transcripts; print a summary line instead
}

type taskResult struct {
	rec  audio.Recording
	text string
	err  error
}

type optimizeResult struct {
	before string
	after  string
	err    error
}

// Session is one interactive notepad run.
type Session struct {
	deps Deps
	opts Options
	out  io.Writer

	task    *transcribe.Task
	results chan taskResult

	optCancel  context.CancelFunc
	optResults chan optimizeResult
}

// NewSession creates a Session writing its output to out.
func NewSession(deps Deps, opts Options, out io.Writer) *Session {
	if deps.Document == nil {
		deps.Document = &notepad.Document{}
	}
	if deps.Copy == nil {
		deps.Copy = inject.Copy
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Session{
		deps:       deps,
		opts:       opts,
		out:        out,
		results:    make(chan taskResult, 1),
		optResults: make(chan optimizeResult, 1),
	}
}

// Document returns the session's notepad buffer.
func (s *Session) Document() *notepad.Document {
	return s.deps.Document
}

// Run reads commands from in and hotkey actions from actions until the user
// quits, in reaches EOF, or ctx is cancelled. At EOF, work already running
// is allowed to finish first. On exit any active capture is stopped and the
// temporary recording deleted.
func (s *Session) Run(ctx context.Context, in io.Reader, actions <-chan hotkey.Action) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			slog.Warn("[app] reading input failed", "error", err)
		}
	}()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil

		case line, ok := <-lines:
			if !ok {
				s.drain()
				s.shutdown()
				return nil
			}
			if quit := s.Handle(ctx, line); quit {
				s.shutdown()
				return nil
			}

		case a, ok := <-actions:
			if !ok {
				actions = nil
				continue
			}
			s.handleAction(a)

		case r := <-s.results:
			s.finishTranscription(r)

		case r := <-s.optResults:
			s.finishOptimize(r)
		}
	}
}

// Handle executes one command line and reports whether the session should
// end.
func (s *Session) Handle(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch strings.ToLower(cmd) {
	case "":
	case "r":
		s.toggleRecord()
	case "p":
		s.togglePause()
	case "t":
		s.transcribe(ctx)
	case "c":
		s.cancel()
	case "x":
		s.discardRecording()
	case "o":
		s.optimize(ctx)
	case "y":
		s.copyText()
	case "s":
		s.save()
	case "v":
		s.view()
	case "a":
		s.appendText(arg)
	case "n":
		s.deps.Document.Clear()
		s.say("Notepad cleared.")
	case "h", "?", "help":
		s.printHelp()
	case "q", "quit", "exit":
		return true
	default:
		s.say("Unknown command %q (h for help).", cmd)
	}
	return false
}

func (s *Session) handleAction(a hotkey.Action) {
	slog.Debug("[app] hotkey", "action", a)
	switch a {
	case hotkey.ActionRecord:
		s.toggleRecord()
	case hotkey.ActionPause:
		s.togglePause()
	case hotkey.ActionCancel:
		s.cancel()
	}
}

func (s *Session) busy() bool {
	return s.task != nil
}

func (s *Session) toggleRecord() {
	rec := s.deps.Recorder
	if rec.IsRecording() {
		r, err := rec.Stop()
		if err != nil {
			s.say("Stopping the recording failed: %v", err)
			return
		}
		s.say("Recording stopped (%s). Press t to transcribe.", r.Duration.Round(time.Second))
		return
	}

	// Starting a new capture replaces the kept recording, which a running
	// transcription is still reading.
	if s.busy() {
		s.say("A transcription is running; cancel it (c) or wait before recording again.")
		return
	}
	if err := rec.Start(); err != nil {
		if errors.Is(err, audio.ErrCaptureUnavailable) {
			s.say("No microphone available: %v", err)
			return
		}
		s.say("Starting the recording failed: %v", err)
		return
	}
	s.say("Recording... (r to stop, p to pause)")
}

func (s *Session) togglePause() {
	paused, err := s.deps.Recorder.TogglePause()
	if errors.Is(err, audio.ErrNotRecording) {
		s.say("Not recording.")
		return
	}
	if err != nil {
		s.say("Pause failed: %v", err)
		return
	}
	if paused {
		s.say("Paused. (p to resume)")
	} else {
		s.say("Recording resumed.")
	}
}

func (s *Session) transcribe(ctx context.Context) {
	if s.busy() {
		s.say("A transcription is already running (c to cancel).")
		return
	}

	rec := s.deps.Recorder
	if rec.IsRecording() {
		if _, err := rec.Stop(); err != nil {
			s.say("Stopping the recording failed: %v", err)
			return
		}
	}
	r, ok := rec.Recording()
	if !ok {
		s.say("Nothing recorded yet (r to record).")
		return
	}

	s.say("Transcribing %s of audio... (c to cancel)", r.Duration.Round(time.Second))
	slog.Info("[app] transcription started", "file", r.Path, "duration", r.Duration)

	task := s.deps.Transcriber.Start(ctx, r)
	s.task = task
	go func() {
		text, err := task.Wait()
		s.results <- taskResult{rec: r, text: text, err: err}
	}()
}

func (s *Session) finishTranscription(r taskResult) {
	s.task = nil

	if r.err != nil {
		s.reportTranscriptionError(r.err)
		return
	}

	if !s.deps.Document.Append(r.text) {
		s.say("No speech detected. Recording kept.")
		return
	}
	slog.Info("[app] transcription finished", "file", r.rec.Path, "words", len(strings.Fields(r.text)))

	if s.opts.Quiet {
		s.say("Transcript added (%d words).", len(strings.Fields(r.text)))
	} else {
		s.say("Transcript:\n%s", r.text)
	}

	if s.opts.AutoCopy {
		if err := s.deps.Copy(r.text); err != nil {
			s.say("Copy to clipboard failed: %v", err)
		}
	}
	if inj := s.deps.Injector; inj != nil && inj.Enabled() {
		if err := inj.Inject(r.text); err != nil {
			s.say("Text injection failed: %v", err)
		}
	}
}

func (s *Session) reportTranscriptionError(err error) {
	var segErr *transcribe.SegmentError
	switch {
	case errors.Is(err, transcribe.ErrCancelled):
		s.say("Transcription cancelled. Recording kept; press t to retry.")
	case errors.As(err, &segErr):
		s.say("Transcription failed at segment %d of %d: %v", segErr.Index+1, segErr.Total, segErr.Err)
		s.say("Recording kept; press t to retry.")
	default:
		s.say("Transcription failed: %v", err)
		s.say("Recording kept; press t to retry.")
	}
	slog.Warn("[app] transcription failed", "error", err)
}

func (s *Session) cancel() {
	switch {
	case s.task != nil:
		s.task.Cancel()
		s.say("Cancelling transcription...")
	case s.optCancel != nil:
		s.optCancel()
		s.say("Cancelling optimization...")
	default:
		s.say("Nothing to cancel.")
	}
}

func (s *Session) discardRecording() {
	if s.busy() {
		s.say("A transcription is using the recording; cancel it (c) first.")
		return
	}
	if err := s.deps.Recorder.Cancel(); err != nil {
		s.say("Deleting the recording failed: %v", err)
		return
	}
	s.say("Recording discarded.")
}

func (s *Session) optimize(ctx context.Context) {
	if s.deps.Optimizer == nil {
		s.say("Optimization is not configured (set optimize.api_key).")
		return
	}
	if s.optCancel != nil {
		s.say("Optimization already running (c to cancel).")
		return
	}
	before := s.deps.Document.Text()
	if strings.TrimSpace(before) == "" {
		s.say("No text to optimize.")
		return
	}

	octx, cancel := context.WithCancel(ctx)
	s.optCancel = cancel
	s.say("Optimizing %d words...", len(strings.Fields(before)))
	go func() {
		after, err := s.deps.Optimizer.Optimize(octx, before)
		s.optResults <- optimizeResult{before: before, after: after, err: err}
	}()
}

func (s *Session) finishOptimize(r optimizeResult) {
	if s.optCancel != nil {
		s.optCancel()
		s.optCancel = nil
	}
	switch {
	case errors.Is(r.err, context.Canceled):
		s.say("Optimization cancelled.")
	case r.err != nil:
		s.say("Optimization failed: %v", r.err)
	case !s.deps.Document.Replace(r.before, r.after):
		s.say("Notepad changed while optimizing; result discarded.")
	default:
		s.say("Optimized text:\n%s", r.after)
	}
}

func (s *Session) copyText() {
	err := s.deps.Copy(s.deps.Document.Text())
	switch {
	case errors.Is(err, inject.ErrEmpty):
		s.say("No text to copy.")
	case err != nil:
		s.say("Copy to clipboard failed: %v", err)
	default:
		s.say("Copied to clipboard.")
	}
}

func (s *Session) save() {
	path, err := s.deps.Document.SaveMarkdown(s.opts.OutputDir, s.deps.Now())
	switch {
	case errors.Is(err, notepad.ErrEmpty):
		s.say("No text to save.")
	case err != nil:
		s.say("Saving failed: %v", err)
	default:
		s.say("Saved %s", path)
	}
}

func (s *Session) view() {
	text := s.deps.Document.Text()
	if strings.TrimSpace(text) == "" {
		s.say("(notepad is empty)")
		return
	}
	s.say("%s\n(%d words)", text, s.deps.Document.Words())
}

func (s *Session) appendText(text string) {
	if !s.deps.Document.Append(text) {
		s.say("Usage: a <text>")
		return
	}
	s.say("Added.")
}

// drain waits for background work to finish and reports it.
func (s *Session) drain() {
	if s.task != nil {
		s.finishTranscription(<-s.results)
	}
	if s.optCancel != nil {
		s.finishOptimize(<-s.optResults)
	}
}

// shutdown cancels background work, stops any capture and deletes the
// temporary recording.
func (s *Session) shutdown() {
	if s.task != nil {
		s.task.Cancel()
		<-s.task.Done()
		s.task = nil
	}
	if s.optCancel != nil {
		s.optCancel()
		<-s.optResults
		s.optCancel = nil
	}
	if err := s.deps.Recorder.Cancel(); err != nil {
		slog.Warn("[app] deleting recording on exit failed", "error", err)
	}
}

func (s *Session) state() string {
	switch {
	case s.deps.Recorder.IsPaused():
		return "paused"
	case s.deps.Recorder.IsRecording():
		return "recording"
	case s.task != nil:
		return "transcribing"
	case s.optCancel != nil:
		return "optimizing"
	default:
		return "idle"
	}
}

func (s *Session) printHelp() {
	s.say(`Commands (%s):
  r  record / stop        p  pause / resume
  t  transcribe           c  cancel transcription
  x  discard recording    o  optimize text
  y  copy to clipboard    s  save as Markdown
  v  view notepad         a  append text: a <text>
  n  clear notepad        h  help
  q  quit`, s.state())
}

func (s *Session) say(format string, args ...any) {
	fmt.Fprintf(s.out, format+"\n", args...)
}
