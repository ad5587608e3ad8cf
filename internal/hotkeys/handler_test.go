package hotkeys

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/1broseidon/panewm/internal/svc"
	"github.com/google/go-cmp/cmp"
)

type fakeGrabber struct {
	mu        sync.Mutex
	bound     map[string]func()
	capture   func(string)
	failKeys  map[string]bool
	failStart bool
}

func newFakeGrabber() *fakeGrabber {
	return &fakeGrabber{bound: map[string]func(){}, failKeys: map[string]bool{}}
}

func (g *fakeGrabber) Bind(keys string, fn func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failKeys[keys] {
		return errors.New("bad keys")
	}
	g.bound[keys] = fn
	return nil
}

func (g *fakeGrabber) UnbindAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bound = map[string]func(){}
}

func (g *fakeGrabber) StartCapture(on func(string)) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failStart {
		return errors.New("grab refused")
	}
	g.capture = on
	return nil
}

func (g *fakeGrabber) StopCapture() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.capture = nil
}

func (g *fakeGrabber) press(keys string) {
	g.mu.Lock()
	fn := g.bound[keys]
	g.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (g *fakeGrabber) boundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.bound)
}

func TestEnable_PressRunsCommand(t *testing.T) {
	g := newFakeGrabber()
	var ran [][]string
	h := NewHandler(g, func(ctx context.Context, args []string) error {
		ran = append(ran, args)
		return nil
	}, nil)

	err := h.Enable([]svc.HotkeyBinding{
		{Keys: "Mod4-Right", Command: []string{"workspace", "switch-next"}},
		{Keys: "Mod4-Left", Command: []string{"workspace", "switch-prev"}},
	})
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	g.press("Mod4-Left")
	g.press("Mod4-Right")

	want := [][]string{{"workspace", "switch-prev"}, {"workspace", "switch-next"}}
	if diff := cmp.Diff(want, ran); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}

	h.Disable()
	if g.boundCount() != 0 {
		t.Fatalf("Disable left grabs behind")
	}
}

func TestEnable_ReportsBadBindingsButKeepsGoodOnes(t *testing.T) {
	g := newFakeGrabber()
	g.failKeys["Nope-x"] = true
	h := NewHandler(g, func(context.Context, []string) error { return nil }, nil)

	err := h.Enable([]svc.HotkeyBinding{
		{Keys: "Nope-x", Command: []string{"status"}},
		{Keys: "Mod4-r", Command: []string{"reload"}},
		{Keys: "Mod4-e"},
	})
	if err == nil {
		t.Fatal("expected error for bad bindings")
	}
	if g.boundCount() != 1 {
		t.Fatalf("bound = %d, want 1", g.boundCount())
	}
}

func TestRegistration_RecordsAndRestoresBindings(t *testing.T) {
	g := newFakeGrabber()
	h := NewHandler(g, func(context.Context, []string) error { return nil }, nil)
	if err := h.Enable([]svc.HotkeyBinding{{Keys: "Mod4-r", Command: []string{"reload"}}}); err != nil {
		t.Fatal(err)
	}

	if err := h.StartRegistration(); err != nil {
		t.Fatalf("StartRegistration: %v", err)
	}
	if g.boundCount() != 0 {
		t.Fatalf("bindings must be suspended while registering")
	}
	if err := h.StartRegistration(); !errors.Is(err, ErrRegistrationActive) {
		t.Fatalf("second start err = %v", err)
	}

	g.capture("Mod4-a")
	g.capture("Control-Shift-Return")

	seqs, err := h.StopRegistration()
	if err != nil {
		t.Fatalf("StopRegistration: %v", err)
	}
	if diff := cmp.Diff([]string{"Mod4-a", "Control-Shift-Return"}, seqs); diff != "" {
		t.Fatalf("recorded mismatch (-want +got):\n%s", diff)
	}
	if g.boundCount() != 1 {
		t.Fatalf("bindings not restored after registration")
	}
	if h.Registering() {
		t.Fatal("still registering")
	}
}

func TestRegistration_CaptureFailureRestoresBindings(t *testing.T) {
	g := newFakeGrabber()
	g.failStart = true
	h := NewHandler(g, func(context.Context, []string) error { return nil }, nil)
	if err := h.Enable([]svc.HotkeyBinding{{Keys: "Mod4-r", Command: []string{"reload"}}}); err != nil {
		t.Fatal(err)
	}
	if err := h.StartRegistration(); err == nil {
		t.Fatal("expected capture failure")
	}
	if g.boundCount() != 1 {
		t.Fatalf("bindings lost after failed capture")
	}
}

func TestFormatSequence(t *testing.T) {
	cases := []struct {
		mods, key, want string
	}{
		{"mod4", "Right", "Mod4-Right"},
		{"shift-control", "Return", "Shift-Control-Return"},
		{"lock-mod2-mod1", "a", "Mod1-a"},
		{"", "F5", "F5"},
	}
	for _, tc := range cases {
		if got := FormatSequence(tc.mods, tc.key); got != tc.want {
			t.Errorf("FormatSequence(%q, %q) = %q, want %q", tc.mods, tc.key, got, tc.want)
		}
	}
}
