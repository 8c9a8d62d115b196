// Package notepad holds the editable text buffer that transcripts are
// appended to, and saves it as Markdown.
package notepad

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Separator is inserted between an existing buffer and a new transcript.
const Separator = "\n\n--- New Transcription ---\n\n"

// ErrEmpty is returned when there is no text to save.
var ErrEmpty = errors.New("notepad: no text")

// Document is a text buffer safe for concurrent use.
type Document struct {
	mu   sync.Mutex
	text string
}

// Append adds transcript to the buffer. A blank buffer is replaced; otherwise
// the transcript follows a separator. Blank transcripts are ignored and
// Append reports false.
func (d *Document) Append(transcript string) bool {
	if strings.TrimSpace(transcript) == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if strings.TrimSpace(d.text) == "" {
		d.text = transcript
	} else {
		d.text = d.text + Separator + transcript
	}
	return true
}

// Set replaces the buffer.
func (d *Document) Set(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = text
}

// Replace swaps in replacement only if the buffer still equals expected, so
// a slow rewrite never clobbers edits made in the meantime.
func (d *Document) Replace(expected, replacement string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.text != expected {
		return false
	}
	d.text = replacement
	return true
}

// Text returns the buffer contents.
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// Clear empties the buffer.
func (d *Document) Clear() {
	d.Set("")
}

// Words counts whitespace separated words in the buffer.
func (d *Document) Words() int {
	return len(strings.Fields(d.Text()))
}

// MarkdownFilename names a saved note after its timestamp, e.g.
// 17102026_0930_transcribed.md.
func MarkdownFilename(t time.Time) string {
	return t.Format("02012006_1504") + "_transcribed.md"
}

// SaveMarkdown writes the buffer to dir under MarkdownFilename(now) and
// returns the path. An existing note from the same minute is never
// overwritten; a numeric suffix is added instead.
func (d *Document) SaveMarkdown(dir string, now time.Time) (string, error) {
	text := d.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmpty
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("notepad: create %s: %w", dir, err)
	}

	name := MarkdownFilename(now)
	base := strings.TrimSuffix(name, ".md")
	for n := 1; n < 100; n++ {
		if n > 1 {
			name = fmt.Sprintf("%s-%d.md", base, n)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("notepad: create %s: %w", path, err)
		}
		if _, err := f.WriteString(text); err != nil {
			f.Close()
			return "", fmt.Errorf("notepad: write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("notepad: write %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("notepad: too many notes named %s in %s", base, dir)
}
