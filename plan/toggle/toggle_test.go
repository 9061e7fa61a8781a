package toggle

import (
	"reflect"
	"testing"
	"time"

	"github.com/usedbytes/goldfish-bot/clock"
	"github.com/usedbytes/goldfish-bot/config"
	"github.com/usedbytes/goldfish-bot/model"
	"github.com/usedbytes/goldfish-bot/plan"
	"github.com/usedbytes/goldfish-bot/plan/plantest"
)

type harness struct {
	m *Machine
	state *model.RunState
	sw *plantest.Switch
	pl *plantest.Platform
	clk *clock.Fake
}

func newHarness(t *testing.T, mode string) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.Toggle.Mode = mode

	h := &harness{
		state: model.NewRunState(),
		sw: &plantest.Switch{},
		pl: plantest.NewPlatform(),
		clk: clock.NewFake(time.Unix(1000, 0)),
	}

	var err error
	h.m, err = NewMachine(h.state, h.sw, h.pl, h.clk, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return h
}

// at advances the clock, sets the switch and ticks.
func (h *harness) at(t *testing.T, d time.Duration, level bool) {
	t.Helper()

	h.clk.Advance(d)
	h.sw.Set(level)
	if err := h.m.Tick(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func (h *harness) expectRunning(t *testing.T, want bool) {
	t.Helper()

	if got := h.state.Running(); got != want {
		t.Fatalf("Running() = %v, want %v", got, want)
	}
}

var stopCalls = []string{"drive 0 0", "brush off", "mouth 0", "status stopped"}

func TestLatchStart(t *testing.T) {
	h := newHarness(t, "latch")

	// Too soon after power-on
	h.at(t, 10*time.Millisecond, true)
	h.expectRunning(t, false)
	if calls := h.pl.Calls(); len(calls) != 0 {
		t.Fatalf("unexpected commands while stopped: %v", calls)
	}

	h.at(t, 40*time.Millisecond, true)
	h.expectRunning(t, true)

	want := []string{"drive 32768 32768", "status running"}
	if calls := h.pl.Calls(); !reflect.DeepEqual(calls, want) {
		t.Errorf("calls %v, want %v", calls, want)
	}
	if h.m.Session() == "" {
		t.Error("no session ID while running")
	}
}

func TestLatchStop(t *testing.T) {
	h := newHarness(t, "latch")

	h.at(t, time.Second, true)
	h.expectRunning(t, true)
	h.pl.ResetCalls()

	h.at(t, time.Second, false)
	h.expectRunning(t, false)

	if calls := h.pl.Calls(); !reflect.DeepEqual(calls, stopCalls) {
		t.Errorf("calls %v, want %v", calls, stopCalls)
	}
	if h.m.Session() != "" {
		t.Error("session ID kept after stop")
	}
}

func TestLatchDebounce(t *testing.T) {
	h := newHarness(t, "latch")

	h.at(t, time.Second, true)
	h.expectRunning(t, true)

	// Bounces inside the interval are ignored, and don't restart it
	h.at(t, 20*time.Millisecond, false)
	h.expectRunning(t, true)
	h.at(t, 10*time.Millisecond, true)
	h.expectRunning(t, true)
	h.at(t, 10*time.Millisecond, false)
	h.expectRunning(t, true)

	// 50ms since the accepted transition
	h.at(t, 10*time.Millisecond, false)
	h.expectRunning(t, false)
}

func TestMomentary(t *testing.T) {
	h := newHarness(t, "momentary")

	h.at(t, 60*time.Millisecond, true)
	h.expectRunning(t, true)

	// Release does nothing
	h.at(t, 10*time.Millisecond, false)
	h.expectRunning(t, true)

	// Bounce: second press 20ms after the first
	h.at(t, 10*time.Millisecond, true)
	h.expectRunning(t, true)

	// Holding doesn't toggle
	h.at(t, 200*time.Millisecond, true)
	h.expectRunning(t, true)

	h.at(t, 10*time.Millisecond, false)
	h.at(t, 10*time.Millisecond, true)
	h.expectRunning(t, false)
}

func TestLatchFault(t *testing.T) {
	h := newHarness(t, "latch")

	h.at(t, time.Second, true)
	h.expectRunning(t, true)
	h.pl.ResetCalls()

	if err := h.m.Fault(plan.ErrEdgeStuck); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.expectRunning(t, false)
	if !h.m.Faulted() {
		t.Error("fault not latched")
	}
	if h.pl.Status() != model.StatusFault {
		t.Errorf("status %v, want fault", h.pl.Status())
	}

	// Switch still on: stays stopped
	h.at(t, time.Second, true)
	h.expectRunning(t, false)

	h.at(t, time.Second, false)
	h.expectRunning(t, false)
	if h.m.Faulted() {
		t.Error("fault not cleared by switching off")
	}

	h.at(t, time.Second, true)
	h.expectRunning(t, true)
}

func TestMomentaryFault(t *testing.T) {
	h := newHarness(t, "momentary")

	h.at(t, time.Second, true)
	h.at(t, time.Second, false)
	h.expectRunning(t, true)

	h.m.Fault(plan.ErrEdgeStuck)
	h.expectRunning(t, false)

	h.at(t, time.Second, true)
	h.expectRunning(t, true)
	if h.m.Faulted() {
		t.Error("fault still latched after restart")
	}
}

func TestNoCommandsWhileStopped(t *testing.T) {
	h := newHarness(t, "latch")

	h.at(t, time.Second, true)
	h.at(t, time.Second, false)
	h.expectRunning(t, false)
	h.pl.ResetCalls()

	for i := 0; i < 50; i++ {
		h.at(t, 100*time.Millisecond, false)
	}

	if calls := h.pl.Calls(); len(calls) != 0 {
		t.Errorf("commands issued while stopped: %v", calls)
	}
}

func TestShutdown(t *testing.T) {
	h := newHarness(t, "latch")

	h.at(t, time.Second, true)
	h.pl.ResetCalls()

	if err := h.m.Shutdown(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.expectRunning(t, false)
	if calls := h.pl.Calls(); !reflect.DeepEqual(calls, stopCalls) {
		t.Errorf("calls %v, want %v", calls, stopCalls)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in string
		mode Mode
		ok bool
	}{
		{"latch", Latch, true},
		{"", Latch, true},
		{"momentary", Momentary, true},
		{"toggle", Latch, false},
	}

	for _, tt := range tests {
		mode, err := ParseMode(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseMode(%q) error %v", tt.in, err)
		}
		if tt.ok && mode != tt.mode {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, mode, tt.mode)
		}
	}
}
