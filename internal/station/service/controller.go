package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Portunus/station/internal/station/store"
	"github.com/BrandonDHaskell/Portunus/station/internal/station/types"
)

var ErrMissingDependency = errors.New("controller dependency missing")

// Inputs samples the momentary input pins.  Implementations return logical
// values; active-low wiring is resolved by the hardware layer.
type Inputs interface {
	CardPresent() bool
	StopPressed() bool
}

// CardReader returns the id of the tag in range, or types.NoCard.
type CardReader interface {
	ReadCardID() string
}

// Indicators drives the LEDs and the relay.
type Indicators interface {
	Apply(out types.Outputs) error
}

// Authenticator is the non-blocking oracle client.
type Authenticator interface {
	TryAuthenticate(cardID string) types.AuthResult
	// Forget discards any result not yet claimed by TryAuthenticate.
	Forget()
}

type SessionExtender interface {
	ExtendSession()
}

// Recorder receives journal events.  Calls must not block the tick.
type Recorder interface {
	Transition(from, to types.State, cardID string, at time.Time)
	AccessDecision(cardID string, granted bool, reason string, at time.Time)
}

type Dependencies struct {
	Logger     *log.Logger
	Machine    *Machine
	Inputs     Inputs
	Reader     CardReader
	Auth       Authenticator
	Indicators Indicators

	// Optional.
	Extender SessionExtender
	Recorder Recorder

	Tick time.Duration // defaults to 100ms
	// SessionExtendTicks is the number of Running ticks between session
	// extensions.  0 disables extension.
	SessionExtendTicks int
	Now                func() time.Time
}

// Status is a copy of the controller's externally visible state.
type Status struct {
	State   types.State
	Since   time.Time
	Outputs types.Outputs
	Ticks   uint64
}

// Controller runs the tick loop: it samples inputs, polls the reader and the
// oracle while identifying, advances the machine and drives the outputs.
type Controller struct {
	logger     *log.Logger
	machine    *Machine
	latch      Latch
	inputs     Inputs
	reader     CardReader
	auth       Authenticator
	indicators Indicators
	extender   SessionExtender
	recorder   Recorder
	tick       time.Duration
	extendN    int
	now        func() time.Time

	// Tick-loop owned.
	cardID       string
	cardRead     bool
	runningTicks int

	mu     sync.RWMutex
	status Status
}

func NewController(d Dependencies) (*Controller, error) {
	if d.Machine == nil || d.Inputs == nil || d.Reader == nil || d.Auth == nil || d.Indicators == nil {
		return nil, ErrMissingDependency
	}
	if d.Tick <= 0 {
		d.Tick = 100 * time.Millisecond
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = log.Default()
	}

	c := &Controller{
		logger:     d.Logger,
		machine:    d.Machine,
		inputs:     d.Inputs,
		reader:     d.Reader,
		auth:       d.Auth,
		indicators: d.Indicators,
		extender:   d.Extender,
		recorder:   d.Recorder,
		tick:       d.Tick,
		extendN:    d.SessionExtendTicks,
		now:        d.Now,
	}
	c.status = Status{
		State:   d.Machine.State(),
		Since:   d.Now().UTC(),
		Outputs: types.OutputsFor(d.Machine.State()),
	}
	return c, nil
}

// HardStop raises the hard-stop latch.  It is the interrupt callback and may
// be called from any goroutine.
func (c *Controller) HardStop() { c.latch.Set() }

// Status returns the state published by the last tick.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Run steps the machine every tick until ctx ends, then forces the outputs to
// the Reset configuration so the relay is released.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	c.logger.Printf("controller started (tick=%s, require_card=%t)", c.tick, c.machine.RequireCard())
	c.Step()

	for {
		select {
		case <-ctx.Done():
			c.release()
			c.logger.Printf("controller stopped")
			return nil
		case <-ticker.C:
			c.Step()
		}
	}
}

// Step runs exactly one tick and returns the new state.
func (c *Controller) Step() types.State {
	now := c.now()
	in := types.Snapshot{
		CardPresent: c.inputs.CardPresent(),
		StopPressed: c.inputs.StopPressed(),
		HardStop:    c.latch.Consume(),
		At:          now,
	}

	prev := c.machine.State()

	var auth *types.AuthResult
	if prev == types.Identification && !in.HardStop {
		auth = c.identify(now)
	}

	next := c.machine.Advance(in, auth)
	if next != prev {
		c.onTransition(prev, next, in, now)
	}

	if next == types.Running {
		c.runningTicks++
		if c.extender != nil && c.extendN > 0 && c.runningTicks%c.extendN == 0 {
			c.extender.ExtendSession()
		}
	}

	out := types.OutputsFor(next)
	if err := c.indicators.Apply(out); err != nil {
		c.logger.Printf("apply outputs (%s): %v", next, err)
	}

	c.mu.Lock()
	c.status.Ticks++
	c.status.Outputs = out
	if next != c.status.State {
		c.status.State = next
		c.status.Since = now.UTC()
	}
	c.mu.Unlock()

	return next
}

// identify reads the card once per Identification visit and polls the
// oracle.  A failed read is reported as a denial.
func (c *Controller) identify(now time.Time) *types.AuthResult {
	if !c.cardRead {
		c.cardID = c.reader.ReadCardID()
		c.cardRead = true

		if types.IsNoCard(c.cardID) {
			c.logger.Printf("card read failed")
			c.recordDecision(false, "card_read_failed", now)
			denied := types.AuthDenied
			return &denied
		}
		c.logger.Printf("card %s presented", store.CardTag(c.cardID))
	}

	r := c.auth.TryAuthenticate(c.cardID)
	switch r {
	case types.AuthGranted:
		c.logger.Printf("card %s granted", store.CardTag(c.cardID))
		c.recordDecision(true, "oracle_granted", now)
	case types.AuthDenied:
		c.logger.Printf("card %s denied", store.CardTag(c.cardID))
		c.recordDecision(false, "oracle_denied", now)
	}
	return &r
}

func (c *Controller) onTransition(prev, next types.State, in types.Snapshot, now time.Time) {
	if in.HardStop {
		c.logger.Printf("hard stop: %s -> %s", prev, next)
	} else {
		c.logger.Printf("state %s -> %s", prev, next)
	}

	if c.recorder != nil {
		c.recorder.Transition(prev, next, c.cardID, now)
	}

	switch next {
	case types.Identification:
		c.cardID = ""
		c.cardRead = false
		c.auth.Forget()
	case types.Running:
		c.runningTicks = 0
	case types.Standby:
		c.cardID = ""
		c.cardRead = false
	}
}

func (c *Controller) recordDecision(granted bool, reason string, now time.Time) {
	if c.recorder != nil {
		c.recorder.AccessDecision(c.cardID, granted, reason, now)
	}
}

func (c *Controller) release() {
	out := types.OutputsFor(types.Reset)
	if err := c.indicators.Apply(out); err != nil {
		c.logger.Printf("release outputs: %v", err)
	}
	c.mu.Lock()
	c.status.Outputs = out
	c.mu.Unlock()
}
