package service_test

import (
	"testing"
	"time"

	"github.com/BrandonDHaskell/Portunus/station/internal/station/service"
	"github.com/BrandonDHaskell/Portunus/station/internal/station/types"
)

var t0 = time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

func newTestMachine(requireCard bool) *service.Machine {
	return service.NewMachine(service.MachineConfig{
		RequireCard:   requireCard,
		StopFilter:    100 * time.Millisecond,
		RemovalFilter: 3 * time.Second,
	})
}

func authOf(r types.AuthResult) *types.AuthResult { return &r }

// machineIn drives a fresh machine into the requested state.
func machineIn(t *testing.T, s types.State, requireCard bool) *service.Machine {
	t.Helper()

	m := newTestMachine(requireCard)
	if s == types.Standby {
		return m
	}
	m.Advance(types.Snapshot{CardPresent: true, At: t0}, nil)
	if s == types.Identification {
		return m
	}
	m.Advance(types.Snapshot{CardPresent: true, At: t0}, authOf(types.AuthGranted))
	if s == types.Running {
		return m
	}
	m.Advance(types.Snapshot{HardStop: true, At: t0}, nil)
	if m.State() != s {
		t.Fatalf("could not drive machine to %s, got %s", s, m.State())
	}
	return m
}

var allStates = []types.State{types.Standby, types.Identification, types.Running, types.Reset}

// ── Hard stop ───────────────────────────────────────────────────────────────

func TestAdvance_HardStopPreemptsEveryState(t *testing.T) {
	inputs := []types.Snapshot{
		{HardStop: true, At: t0},
		{HardStop: true, CardPresent: true, At: t0},
		{HardStop: true, StopPressed: true, At: t0},
		{HardStop: true, CardPresent: true, StopPressed: true, At: t0},
	}
	auths := []*types.AuthResult{nil, authOf(types.AuthGranted), authOf(types.AuthDenied), authOf(types.AuthBusy)}

	for _, s := range allStates {
		for _, in := range inputs {
			for _, a := range auths {
				m := machineIn(t, s, true)
				if got := m.Advance(in, a); got != types.Reset {
					t.Errorf("from %s with %+v: expected reset, got %s", s, in, got)
				}
			}
		}
	}
}

// ── Standby ─────────────────────────────────────────────────────────────────

func TestAdvance_StandbyToIdentificationOnlyWithCard(t *testing.T) {
	m := newTestMachine(true)

	if got := m.Advance(types.Snapshot{At: t0}, nil); got != types.Standby {
		t.Fatalf("expected standby without card, got %s", got)
	}
	if got := m.Advance(types.Snapshot{StopPressed: true, At: t0}, nil); got != types.Standby {
		t.Fatalf("expected stop alone to keep standby, got %s", got)
	}
	if got := m.Advance(types.Snapshot{CardPresent: true, At: t0}, nil); got != types.Identification {
		t.Fatalf("expected identification, got %s", got)
	}
}

func TestAdvance_IdentificationOnlyReachedFromStandby(t *testing.T) {
	for _, s := range []types.State{types.Running, types.Reset} {
		m := machineIn(t, s, true)
		got := m.Advance(types.Snapshot{CardPresent: true, StopPressed: true, At: t0}, nil)
		if got == types.Identification {
			t.Errorf("from %s: card presence must not enter identification", s)
		}
	}
}

func TestAdvance_SingleStepPerCall(t *testing.T) {
	m := newTestMachine(true)

	// A grant offered while still in standby must not skip identification.
	got := m.Advance(types.Snapshot{CardPresent: true, At: t0}, authOf(types.AuthGranted))
	if got != types.Identification {
		t.Fatalf("expected identification, got %s", got)
	}
}

// ── Identification ──────────────────────────────────────────────────────────

func TestAdvance_IdentificationOutcomes(t *testing.T) {
	cases := []struct {
		name string
		auth *types.AuthResult
		want types.State
	}{
		{"no result", nil, types.Identification},
		{"busy", authOf(types.AuthBusy), types.Identification},
		{"granted", authOf(types.AuthGranted), types.Running},
		{"denied", authOf(types.AuthDenied), types.Reset},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := machineIn(t, types.Identification, true)
			if got := m.Advance(types.Snapshot{CardPresent: true, At: t0}, c.auth); got != c.want {
				t.Errorf("expected %s, got %s", c.want, got)
			}
		})
	}
}

func TestAdvance_RepeatedBusyNeverTransitions(t *testing.T) {
	m := machineIn(t, types.Identification, true)
	for i := 0; i < 50; i++ {
		// Card removal and stop are ignored while identifying.
		in := types.Snapshot{CardPresent: i%2 == 0, StopPressed: i%3 == 0, At: t0.Add(time.Duration(i) * time.Second)}
		if got := m.Advance(in, authOf(types.AuthBusy)); got != types.Identification {
			t.Fatalf("tick %d: expected identification, got %s", i, got)
		}
	}
}

// ── Running: card removal ───────────────────────────────────────────────────

func TestAdvance_RemovalConfirmedAfterFilter(t *testing.T) {
	m := machineIn(t, types.Running, true)
	removed := t0.Add(100 * time.Millisecond)

	for _, d := range []time.Duration{0, time.Second, 2900 * time.Millisecond} {
		if got := m.Advance(types.Snapshot{At: removed.Add(d)}, nil); got != types.Running {
			t.Fatalf("after %s removed: expected running, got %s", d, got)
		}
	}
	if got := m.Advance(types.Snapshot{At: removed.Add(3 * time.Second)}, nil); got != types.Reset {
		t.Fatalf("after 3s removed: expected reset, got %s", got)
	}
}

func TestAdvance_RemovalInterruptionRestartsFilter(t *testing.T) {
	m := machineIn(t, types.Running, true)
	at := func(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

	steps := []struct {
		ms      int
		present bool
	}{
		{0, false},
		{2000, false},
		{2500, true}, // signal flaps back before 3s
		{2600, false},
		{5000, false},
		{5500, false}, // 2.9s since re-arm
	}
	for _, s := range steps {
		if got := m.Advance(types.Snapshot{CardPresent: s.present, At: at(s.ms)}, nil); got != types.Running {
			t.Fatalf("at %dms: expected running, got %s", s.ms, got)
		}
	}
	if got := m.Advance(types.Snapshot{At: at(5600)}, nil); got != types.Reset {
		t.Fatalf("at 5600ms: expected reset, got %s", got)
	}
}

func TestAdvance_RemovalIgnoredWhenCardNotRequired(t *testing.T) {
	m := machineIn(t, types.Running, false)
	for i := 0; i <= 100; i++ {
		in := types.Snapshot{At: t0.Add(time.Duration(i) * 100 * time.Millisecond)}
		if got := m.Advance(in, nil); got != types.Running {
			t.Fatalf("tick %d: expected running, got %s", i, got)
		}
	}
}

// ── Running: stop button ────────────────────────────────────────────────────

func TestAdvance_StopDebounced(t *testing.T) {
	m := machineIn(t, types.Running, true)
	at := func(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

	if got := m.Advance(types.Snapshot{CardPresent: true, StopPressed: true, At: at(0)}, nil); got != types.Running {
		t.Fatalf("expected running on first press sample, got %s", got)
	}
	if got := m.Advance(types.Snapshot{CardPresent: true, StopPressed: true, At: at(100)}, nil); got != types.Reset {
		t.Fatalf("expected reset after 100ms press, got %s", got)
	}
}

func TestAdvance_StopBounceRestartsFilter(t *testing.T) {
	m := machineIn(t, types.Running, true)
	at := func(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

	seq := []struct {
		ms      int
		pressed bool
	}{
		{0, true},
		{50, false},
		{80, true},
		{150, true},
	}
	for _, s := range seq {
		if got := m.Advance(types.Snapshot{CardPresent: true, StopPressed: s.pressed, At: at(s.ms)}, nil); got != types.Running {
			t.Fatalf("at %dms: expected running, got %s", s.ms, got)
		}
	}
	if got := m.Advance(types.Snapshot{CardPresent: true, StopPressed: true, At: at(180)}, nil); got != types.Reset {
		t.Fatalf("at 180ms: expected reset, got %s", got)
	}
}

func TestAdvance_FiltersStartUnarmedEachRunningVisit(t *testing.T) {
	m := machineIn(t, types.Running, true)

	// Arm the removal filter, then leave Running via the stop button.
	m.Advance(types.Snapshot{StopPressed: true, At: t0}, nil)
	if got := m.Advance(types.Snapshot{StopPressed: true, At: t0.Add(200 * time.Millisecond)}, nil); got != types.Reset {
		t.Fatalf("expected reset, got %s", got)
	}

	later := t0.Add(time.Minute)
	m.Advance(types.Snapshot{At: later}, nil)
	m.Advance(types.Snapshot{CardPresent: true, At: later}, nil)
	if got := m.Advance(types.Snapshot{CardPresent: true, At: later}, authOf(types.AuthGranted)); got != types.Running {
		t.Fatalf("expected running, got %s", got)
	}

	// The stale arm time from the first visit must not confirm removal.
	if got := m.Advance(types.Snapshot{At: later.Add(100 * time.Millisecond)}, nil); got != types.Running {
		t.Fatalf("expected running on first removed sample, got %s", got)
	}
}

// ── Reset ───────────────────────────────────────────────────────────────────

func TestAdvance_ResetNeedsBothInputsInactive(t *testing.T) {
	cases := []struct {
		card, stop bool
		want       types.State
	}{
		{true, true, types.Reset},
		{true, false, types.Reset},
		{false, true, types.Reset},
		{false, false, types.Standby},
	}
	for _, c := range cases {
		m := machineIn(t, types.Reset, true)
		got := m.Advance(types.Snapshot{CardPresent: c.card, StopPressed: c.stop, At: t0}, nil)
		if got != c.want {
			t.Errorf("card=%t stop=%t: expected %s, got %s", c.card, c.stop, c.want, got)
		}
	}
}
