// Package hotkey provides global hotkeys for the notepad session using
// gohook. Each configured key combination maps to one Action, emitted on a
// channel when the combination is pressed.
package hotkey

import (
	"strings"
	"sync"
	"time"

	hook "github.com/robotn/gohook"

	"github.com/chaz8081/stt-notepad/internal/config"
)

// Action is what a hotkey asks the session to do.
type Action int

const (
	// ActionRecord starts recording, or stops it if one is running.
	ActionRecord Action = iota
	// ActionPause pauses or resumes the running recording.
	ActionPause
	// ActionCancel cancels the running transcription.
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionRecord:
		return "record"
	case ActionPause:
		return "pause"
	case ActionCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Binding ties a key combination to an action.
type Binding struct {
	Action Action
	Keys   []string
}

// String renders the combination as "ctrl+shift+r".
func (b Binding) String() string {
	return strings.Join(b.Keys, "+")
}

// Bindings returns the configured bindings, skipping empty combinations.
func Bindings(cfg config.HotkeyConfig) []Binding {
	var out []Binding
	for _, b := range []Binding{
		{ActionRecord, cfg.Record},
		{ActionPause, cfg.Pause},
		{ActionCancel, cfg.Cancel},
	} {
		if len(b.Keys) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// repeatWindow swallows key auto-repeat while a combination is held.
const repeatWindow = 300 * time.Millisecond

// Listener manages the global hotkeys and emits actions.
type Listener struct {
	bindings []Binding
	ch       chan Action
	done     chan struct{}
	once     sync.Once

	mu   sync.Mutex
	last map[Action]time.Time
}

// NewListener creates a Listener for the given bindings.
func NewListener(bindings []Binding) *Listener {
	return &Listener{
		bindings: bindings,
		ch:       make(chan Action, 16),
		done:     make(chan struct{}),
		last:     make(map[Action]time.Time),
	}
}

// Events returns the channel that receives actions.
// The channel is closed when the listener stops.
func (l *Listener) Events() <-chan Action {
	return l.ch
}

// Start begins listening for the global hotkeys.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	for _, b := range l.bindings {
		action := b.Action
		hook.Register(hook.KeyDown, b.Keys, func(hook.Event) {
			l.emit(action, time.Now())
		})
	}

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// emit queues action unless the same action fired within repeatWindow.
func (l *Listener) emit(action Action, now time.Time) bool {
	l.mu.Lock()
	if prev, ok := l.last[action]; ok && now.Sub(prev) < repeatWindow {
		l.mu.Unlock()
		return false
	}
	l.last[action] = now
	l.mu.Unlock()

	select {
	case l.ch <- action:
		return true
	default: // don't block the hook thread if nobody is reading
		return false
	}
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
