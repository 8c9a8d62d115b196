package hotkey

import (
	"testing"
	"time"

	"github.com/chaz8081/stt-notepad/internal/config"
)

func TestBindings(t *testing.T) {
	cfg := config.HotkeyConfig{
		Enabled: true,
		Record:  []string{"ctrl", "shift", "r"},
		Cancel:  []string{"ctrl", "shift", "x"},
	}

	got := Bindings(cfg)
	if len(got) != 2 {
		t.Fatalf("Bindings() returned %d bindings, want 2 (empty pause skipped)", len(got))
	}
	if got[0].Action != ActionRecord || got[0].String() != "ctrl+shift+r" {
		t.Errorf("first binding = %v %q", got[0].Action, got[0])
	}
	if got[1].Action != ActionCancel {
		t.Errorf("second binding action = %v, want cancel", got[1].Action)
	}
}

func TestEmitSuppressesRepeat(t *testing.T) {
	l := NewListener(nil)
	t0 := time.Now()

	if !l.emit(ActionRecord, t0) {
		t.Fatal("first press should be emitted")
	}
	if l.emit(ActionRecord, t0.Add(50*time.Millisecond)) {
		t.Error("auto-repeat within window should be dropped")
	}
	if !l.emit(ActionPause, t0.Add(60*time.Millisecond)) {
		t.Error("a different action should not be suppressed")
	}
	if !l.emit(ActionRecord, t0.Add(repeatWindow+time.Millisecond)) {
		t.Error("press after the window should be emitted")
	}

	want := []Action{ActionRecord, ActionPause, ActionRecord}
	for i, w := range want {
		select {
		case got := <-l.Events():
			if got != w {
				t.Errorf("event %d = %v, want %v", i, got, w)
			}
		default:
			t.Fatalf("missing event %d", i)
		}
	}
}

func TestEmitDoesNotBlockWhenFull(t *testing.T) {
	l := NewListener(nil)
	t0 := time.Now()
	for i := 0; i < cap(l.ch); i++ {
		l.emit(ActionPause, t0.Add(time.Duration(i)*time.Second))
	}

	done := make(chan bool, 1)
	go func() { done <- l.emit(ActionPause, t0.Add(time.Hour)) }()

	select {
	case ok := <-done:
		if ok {
			t.Error("emit() into a full channel should report false")
		}
	case <-time.After(time.Second):
		t.Fatal("emit() blocked on a full channel")
	}
}

func TestActionString(t *testing.T) {
	tests := []struct {
		a    Action
		want string
	}{
		{ActionRecord, "record"},
		{ActionPause, "pause"},
		{ActionCancel, "cancel"},
		{Action(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.a.String(); got != tt.want {
			t.Errorf("Action(%d).String() = %q, want %q", tt.a, got, tt.want)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	l := NewListener(nil)
	l.Stop()
	l.Stop()
}
