package service

import (
	"time"

	"github.com/BrandonDHaskell/Portunus/station/internal/station/types"
)

// MachineConfig fixes the behaviour of a Machine for its lifetime.
type MachineConfig struct {
	// RequireCard keeps Running only while the card stays in range.
	RequireCard bool

	// StopFilter is the dwell time before a stop press ends Running.
	StopFilter time.Duration

	// RemovalFilter is the dwell time before a missing card ends Running.
	RemovalFilter time.Duration
}

// Machine is the four-state access machine.  It is not safe for concurrent
// use; the controller owns it and advances it once per tick.
type Machine struct {
	cfg     MachineConfig
	state   types.State
	stop    *Filter
	removal *Filter
}

func NewMachine(cfg MachineConfig) *Machine {
	return &Machine{
		cfg:     cfg,
		state:   types.Standby,
		stop:    NewFilter(cfg.StopFilter),
		removal: NewFilter(cfg.RemovalFilter),
	}
}

func (m *Machine) State() types.State { return m.state }

func (m *Machine) RequireCard() bool { return m.cfg.RequireCard }

// Advance evaluates one tick against the current state and returns the new
// state.  auth is nil when no authentication result was polled this tick.
// At most one transition happens per call.
func (m *Machine) Advance(in types.Snapshot, auth *types.AuthResult) types.State {
	next := m.next(in, auth)
	if next != m.state && (next == types.Running || m.state == types.Running) {
		m.stop.Reset()
		m.removal.Reset()
	}
	m.state = next
	return next
}

func (m *Machine) next(in types.Snapshot, auth *types.AuthResult) types.State {
	if in.HardStop {
		return types.Reset
	}

	switch m.state {
	case types.Standby:
		if in.CardPresent {
			return types.Identification
		}

	case types.Identification:
		if auth == nil {
			return types.Identification
		}
		switch *auth {
		case types.AuthGranted:
			return types.Running
		case types.AuthDenied:
			return types.Reset
		}

	case types.Running:
		// Both filters are fed every tick so neither misses a sample.
		stopped := m.stop.Observe(in.StopPressed, in.At)
		removed := m.removal.Observe(!in.CardPresent, in.At)
		if stopped {
			return types.Reset
		}
		if m.cfg.RequireCard && removed {
			return types.Reset
		}

	case types.Reset:
		if !in.StopPressed && !in.CardPresent {
			return types.Standby
		}
	}

	return m.state
}
