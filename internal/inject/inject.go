// Package inject puts notepad text on the system clipboard or into the
// active application using robotgo for keystroke simulation or paste.
package inject

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/go-vgo/robotgo"
)

// ErrEmpty is returned when there is no text to copy or inject.
var ErrEmpty = errors.New("inject: no text")

// Method values accepted by NewInjector.
const (
	MethodNone  = "none"
	MethodType  = "type"
	MethodPaste = "paste"
)

// robotgo entry points, swapped out in tests.
var (
	readClipboard  = robotgo.ReadAll
	writeClipboard = robotgo.WriteAll
	keyTap         = func(key string, mods ...any) error { return robotgo.KeyTap(key, mods...) }
	typeText       = func(text string) { robotgo.Type(text) }
)

// Copy places text on the system clipboard.
func Copy(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmpty
	}
	if err := writeClipboard(text); err != nil {
		return fmt.Errorf("inject: write to clipboard: %w", err)
	}
	return nil
}

// Injector handles typing or pasting text into the active application.
type Injector struct {
	method string
}

// NewInjector creates an Injector with the given method: "type"
// (keystroke simulation), "paste" (clipboard) or "none".
func NewInjector(method string) *Injector {
	return &Injector{method: method}
}

// Enabled reports whether Inject does anything.
func (inj *Injector) Enabled() bool {
	return inj.method == MethodType || inj.method == MethodPaste
}

// Inject sends text to the active application using the configured method.
func (inj *Injector) Inject(text string) error {
	if text == "" {
		return ErrEmpty
	}

	switch inj.method {
	case MethodPaste:
		return paste(text)
	case MethodType:
		typeText(text)
		return nil
	default:
		return nil
	}
}

// paste copies text to the clipboard and sends the platform paste shortcut.
// Faster for long text; the previous clipboard is restored afterwards.
func paste(text string) error {
	prev, _ := readClipboard()

	if err := writeClipboard(text); err != nil {
		return fmt.Errorf("inject: write to clipboard: %w", err)
	}

	mod := pasteModifier(runtime.GOOS)
	if err := keyTap("v", mod); err != nil {
		return fmt.Errorf("inject: key tap %s+v: %w", mod, err)
	}

	// best effort
	_ = writeClipboard(prev)

	return nil
}

func pasteModifier(goos string) string {
	if goos == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
