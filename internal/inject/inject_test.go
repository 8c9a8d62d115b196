package inject

import (
	"errors"
	"testing"
)

type fakeDesktop struct {
	clipboard string
	writes    []string
	taps      [][]any
	typed     []string
	writeErr  error
	tapErr    error
}

func installFake(t *testing.T, f *fakeDesktop) {
	t.Helper()
	origRead, origWrite, origTap, origType := readClipboard, writeClipboard, keyTap, typeText
	t.Cleanup(func() {
		readClipboard, writeClipboard, keyTap, typeText = origRead, origWrite, origTap, origType
	})

	readClipboard = func() (string, error) { return f.clipboard, nil }
	writeClipboard = func(s string) error {
		if f.writeErr != nil {
			return f.writeErr
		}
		f.writes = append(f.writes, s)
		f.clipboard = s
		return nil
	}
	keyTap = func(key string, mods ...any) error {
		f.taps = append(f.taps, append([]any{key}, mods...))
		return f.tapErr
	}
	typeText = func(s string) { f.typed = append(f.typed, s) }
}

func TestCopy(t *testing.T) {
	f := &fakeDesktop{}
	installFake(t, f)

	if err := Copy("hello world"); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if f.clipboard != "hello world" {
		t.Errorf("clipboard = %q, want %q", f.clipboard, "hello world")
	}
}

func TestCopyEmpty(t *testing.T) {
	f := &fakeDesktop{}
	installFake(t, f)

	if err := Copy("  \n"); !errors.Is(err, ErrEmpty) {
		t.Errorf("Copy() error = %v, want ErrEmpty", err)
	}
	if len(f.writes) != 0 {
		t.Errorf("clipboard written for empty text: %v", f.writes)
	}
}

func TestCopyClipboardError(t *testing.T) {
	boom := errors.New("no display")
	installFake(t, &fakeDesktop{writeErr: boom})

	if err := Copy("text"); !errors.Is(err, boom) {
		t.Errorf("Copy() error = %v, want %v", err, boom)
	}
}

func TestInjectType(t *testing.T) {
	f := &fakeDesktop{}
	installFake(t, f)

	if err := NewInjector(MethodType).Inject("typed text"); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if len(f.typed) != 1 || f.typed[0] != "typed text" {
		t.Errorf("typed = %v", f.typed)
	}
	if len(f.writes) != 0 {
		t.Errorf("type method touched clipboard: %v", f.writes)
	}
}

func TestInjectPasteRestoresClipboard(t *testing.T) {
	f := &fakeDesktop{clipboard: "previous"}
	installFake(t, f)

	if err := NewInjector(MethodPaste).Inject("pasted"); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if len(f.writes) != 2 || f.writes[0] != "pasted" || f.writes[1] != "previous" {
		t.Errorf("clipboard writes = %v, want [pasted previous]", f.writes)
	}
	if len(f.taps) != 1 || f.taps[0][0] != "v" {
		t.Errorf("taps = %v, want one paste shortcut", f.taps)
	}
}

func TestInjectPasteKeyError(t *testing.T) {
	boom := errors.New("accessibility denied")
	installFake(t, &fakeDesktop{tapErr: boom})

	if err := NewInjector(MethodPaste).Inject("x"); !errors.Is(err, boom) {
		t.Errorf("Inject() error = %v, want %v", err, boom)
	}
}

func TestInjectNone(t *testing.T) {
	f := &fakeDesktop{}
	installFake(t, f)

	inj := NewInjector(MethodNone)
	if inj.Enabled() {
		t.Error("Enabled() = true for none")
	}
	if err := inj.Inject("ignored"); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if len(f.typed)+len(f.writes)+len(f.taps) != 0 {
		t.Error("none method should not touch the desktop")
	}
}

func TestPasteModifier(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"darwin", "cmd"},
		{"linux", "ctrl"},
		{"windows", "ctrl"},
	}
	for _, tt := range tests {
		if got := pasteModifier(tt.goos); got != tt.want {
			t.Errorf("pasteModifier(%q) = %q, want %q", tt.goos, got, tt.want)
		}
	}
}
