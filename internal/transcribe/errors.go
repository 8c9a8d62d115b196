package transcribe

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds reported by the Coordinator. Match them with errors.Is.
var (
	ErrSegmentExtraction = errors.New("segment extraction failed")
	ErrRequestFailed     = errors.New("transcription request failed")
	ErrCancelled         = errors.New("transcription cancelled")
)

// SegmentError reports which segment aborted a transcription and why.
// Index is the 0-based sequence index; messages show it 1-based.
type SegmentError struct {
	Index int
	Total int
	Kind  error
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("transcribe: segment %d of %d: %v: %v", e.Index+1, e.Total, e.Kind, e.Err)
}

func (e *SegmentError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// APIError is a non-success response from a transcription API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if text := http.StatusText(e.StatusCode); text != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, text, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed if repeated:
// rate limiting and server-side failures.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
