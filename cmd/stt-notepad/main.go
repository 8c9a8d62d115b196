// Command stt-notepad is a terminal notepad that records from the
// microphone, transcribes recordings with a cloud speech-to-text API and
// optionally cleans the text up with a language model.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/chaz8081/stt-notepad/internal/audio"
	"github.com/chaz8081/stt-notepad/internal/transcribe"
)

// Exit codes for different failure modes
const (
	ExitSuccess   = 0
	ExitFailed    = 1   // transcription or optimization request failed
	ExitError     = 2   // configuration, input or runtime error
	ExitNoCapture = 3   // no usable microphone
	ExitCancelled = 130 // interrupted by the user
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, transcribe.ErrCancelled):
		return ExitCancelled
	case errors.Is(err, audio.ErrCaptureUnavailable):
		return ExitNoCapture
	case errors.Is(err, transcribe.ErrRequestFailed), errors.Is(err, transcribe.ErrSegmentExtraction):
		return ExitFailed
	default:
		return ExitError
	}
}
